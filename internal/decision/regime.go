package decision

import (
	"go.uber.org/zap"

	"github.com/selivandex/macro-sentinel/pkg/logger"
	"github.com/selivandex/macro-sentinel/pkg/models"
)

// regimeInputs holds the scalar view of a snapshot that the regime rules read.
type regimeInputs struct {
	VIX      float64
	DXY      float64
	CPI      float64
	US10Y    float64
	WTI      float64
	SPYTrend string
}

// regimeRule is one classification rule. Rules are evaluated in slice order
// and the first match wins; severity does not reorder them.
type regimeRule struct {
	Name    string
	Regime  models.Regime
	Matches func(in regimeInputs) bool
}

var regimeRules = []regimeRule{
	{
		Name:   "liquidity_crisis",
		Regime: models.RegimeLiquidityCrisis,
		Matches: func(in regimeInputs) bool {
			return in.VIX > 30 && (in.DXY > 106 || in.SPYTrend == models.TrendCrash)
		},
	},
	{
		Name:   "stagflation",
		Regime: models.RegimeStagflation,
		Matches: func(in regimeInputs) bool {
			return in.CPI > 3.2 && in.SPYTrend == models.TrendDown
		},
	},
	{
		Name:   "inflation_fear",
		Regime: models.RegimeInflationFear,
		Matches: func(in regimeInputs) bool {
			return in.CPI > 3.0 && (in.US10Y > 4.0 || in.WTI > 85)
		},
	},
	{
		Name:   "growth_goldilocks",
		Regime: models.RegimeGrowthGoldilocks,
		Matches: func(in regimeInputs) bool {
			return in.VIX < 20 && in.US10Y < 4.0 && in.SPYTrend == models.TrendUp
		},
	},
}

// RegimeDetector classifies a macro snapshot into one of five regimes.
// Detection is deterministic and never fails; absent indicators default to
// zero values and the fallthrough regime is NEUTRAL.
type RegimeDetector struct{}

// NewRegimeDetector creates new regime detector
func NewRegimeDetector() *RegimeDetector {
	return &RegimeDetector{}
}

// Detect returns the regime label for a macro snapshot.
func (d *RegimeDetector) Detect(macro models.MacroSnapshot) models.Regime {
	snapshot := macro.Normalized()

	in := regimeInputs{
		VIX:      snapshot.Value(models.IndicatorVIX),
		DXY:      snapshot.Value(models.IndicatorDXY),
		CPI:      snapshot.Value(models.IndicatorCPI),
		US10Y:    snapshot.Value(models.IndicatorUS10Y),
		WTI:      snapshot.Value(models.IndicatorWTI),
		SPYTrend: snapshot.Trend(models.IndicatorSPYTrend),
	}

	if in.SPYTrend == models.TrendNeutral {
		in.SPYTrend = inferTrendFromVIX(in.VIX)
	}

	for _, rule := range regimeRules {
		if rule.Matches(in) {
			logger.Debug("regime rule matched",
				zap.String("rule", rule.Name),
				zap.String("regime", string(rule.Regime)),
				zap.Float64("vix", in.VIX),
				zap.String("spy_trend", in.SPYTrend),
			)
			return rule.Regime
		}
	}

	return models.RegimeNeutral
}

// inferTrendFromVIX backfills the SPY trend from volatility when the snapshot
// carries no usable trend label.
func inferTrendFromVIX(vix float64) string {
	switch {
	case vix < 18:
		return models.TrendUp
	case vix > 30:
		return models.TrendCrash
	case vix > 25:
		return models.TrendDown
	default:
		return models.TrendNeutral
	}
}
