package decision

import (
	"testing"

	"github.com/selivandex/macro-sentinel/pkg/models"
)

func snapshot(values map[string]float64) models.MacroSnapshot {
	s := models.MacroSnapshot{}
	for k, v := range values {
		s[k] = models.IndicatorReading{Value: v}
	}
	return s
}

func withTrend(s models.MacroSnapshot, trend string) models.MacroSnapshot {
	s[models.IndicatorSPYTrend] = models.IndicatorReading{Level: trend}
	return s
}

func TestRegimeDetector(t *testing.T) {
	d := NewRegimeDetector()

	t.Run("liquidity crisis on high vix and strong dollar", func(t *testing.T) {
		s := snapshot(map[string]float64{"VIX": 32, "DXY": 107})
		if got := d.Detect(s); got != models.RegimeLiquidityCrisis {
			t.Errorf("expected LIQUIDITY_CRISIS, got %s", got)
		}
	})

	t.Run("liquidity crisis on high vix and crash trend", func(t *testing.T) {
		s := withTrend(snapshot(map[string]float64{"VIX": 31, "DXY": 100}), models.TrendCrash)
		if got := d.Detect(s); got != models.RegimeLiquidityCrisis {
			t.Errorf("expected LIQUIDITY_CRISIS, got %s", got)
		}
	})

	t.Run("vix exactly 30 is not a crisis", func(t *testing.T) {
		s := snapshot(map[string]float64{"VIX": 30, "DXY": 110})
		if got := d.Detect(s); got == models.RegimeLiquidityCrisis {
			t.Errorf("VIX=30 must not trigger LIQUIDITY_CRISIS, got %s", got)
		}
	})

	t.Run("stagflation on hot cpi and falling market", func(t *testing.T) {
		s := withTrend(snapshot(map[string]float64{"CPI": 3.5, "VIX": 22}), models.TrendDown)
		if got := d.Detect(s); got != models.RegimeStagflation {
			t.Errorf("expected STAGFLATION, got %s", got)
		}
	})

	t.Run("inflation fear on hot cpi with high yields", func(t *testing.T) {
		s := snapshot(map[string]float64{"CPI": 3.1, "US10Y": 4.2, "VIX": 22})
		if got := d.Detect(s); got != models.RegimeInflationFear {
			t.Errorf("expected INFLATION_FEAR, got %s", got)
		}
	})

	t.Run("inflation fear on hot cpi with expensive oil", func(t *testing.T) {
		s := snapshot(map[string]float64{"CPI": 3.1, "WTI": 90, "VIX": 22})
		if got := d.Detect(s); got != models.RegimeInflationFear {
			t.Errorf("expected INFLATION_FEAR, got %s", got)
		}
	})

	t.Run("goldilocks on calm vix with rising market", func(t *testing.T) {
		s := withTrend(snapshot(map[string]float64{"VIX": 15, "US10Y": 3.5}), models.TrendUp)
		if got := d.Detect(s); got != models.RegimeGrowthGoldilocks {
			t.Errorf("expected GROWTH_GOLDILOCKS, got %s", got)
		}
	})

	t.Run("neutral when nothing matches", func(t *testing.T) {
		s := snapshot(map[string]float64{"VIX": 22, "US10Y": 3.8, "CPI": 2.5})
		if got := d.Detect(s); got != models.RegimeNeutral {
			t.Errorf("expected NEUTRAL, got %s", got)
		}
	})

	t.Run("empty snapshot is neutral", func(t *testing.T) {
		if got := d.Detect(models.MacroSnapshot{}); got != models.RegimeNeutral {
			t.Errorf("expected NEUTRAL on empty snapshot, got %s", got)
		}
	})

	t.Run("rule order wins over severity", func(t *testing.T) {
		// Qualifies for both stagflation and inflation fear; order picks
		// stagflation.
		s := withTrend(snapshot(map[string]float64{"CPI": 3.5, "US10Y": 4.5, "VIX": 22}), models.TrendDown)
		if got := d.Detect(s); got != models.RegimeStagflation {
			t.Errorf("expected STAGFLATION by rule order, got %s", got)
		}
	})

	t.Run("detection is deterministic", func(t *testing.T) {
		s := withTrend(snapshot(map[string]float64{"CPI": 3.5, "VIX": 28, "DXY": 104}), models.TrendDown)
		first := d.Detect(s)
		for i := 0; i < 50; i++ {
			if got := d.Detect(s); got != first {
				t.Fatalf("detection flapped: %s then %s", first, got)
			}
		}
	})

	t.Run("lowercase keys are normalized", func(t *testing.T) {
		s := models.MacroSnapshot{
			"vix": {Value: 32},
			"dxy": {Value: 107},
		}
		if got := d.Detect(s); got != models.RegimeLiquidityCrisis {
			t.Errorf("expected LIQUIDITY_CRISIS with lowercase keys, got %s", got)
		}
	})
}

func TestInferTrendFromVIX(t *testing.T) {
	cases := []struct {
		vix  float64
		want string
	}{
		{15, models.TrendUp},
		{17.99, models.TrendUp},
		{18, models.TrendNeutral},
		{25, models.TrendNeutral},
		{25.01, models.TrendDown},
		{30, models.TrendDown},
		{30.01, models.TrendCrash},
		{45, models.TrendCrash},
	}

	for _, tc := range cases {
		if got := inferTrendFromVIX(tc.vix); got != tc.want {
			t.Errorf("inferTrendFromVIX(%v) = %s, want %s", tc.vix, got, tc.want)
		}
	}
}
