package decision

import (
	"math"
	"testing"

	"github.com/selivandex/macro-sentinel/pkg/models"
)

func matchWith(level models.OverrideLevel, riskWeight float64, failType models.FailType) *models.FailureMatch {
	return &models.FailureMatch{
		Entry: models.FailureLogEntry{
			Reason: models.FailReason{
				FailType:   failType,
				RiskWeight: riskWeight,
			},
		},
		RiskWeight:    riskWeight,
		OverrideLevel: level,
	}
}

func TestUnifiedRiskScorer(t *testing.T) {
	s := NewUnifiedRiskScorer()

	t.Run("crisis with hard override is high risk", func(t *testing.T) {
		macro := snapshot(map[string]float64{"VIX": 32})
		risk := s.Score(macro, models.RegimeLiquidityCrisis, "P-005A", matchWith(models.OverrideHard, 3.0, models.FailFalseSell))

		// 0.35*100 + 0.25*90 + 0.25*80 + 0.15*100
		want := 92.5
		if math.Abs(risk.Score-want) > 0.001 {
			t.Errorf("expected score %.2f, got %.2f", want, risk.Score)
		}
		if risk.Label != "High Risk" {
			t.Errorf("expected High Risk, got %s", risk.Label)
		}
		if risk.Action != "Reduce Position or Hold Cash" {
			t.Errorf("unexpected action: %s", risk.Action)
		}
	})

	t.Run("moderate blend", func(t *testing.T) {
		macro := snapshot(map[string]float64{"VIX": 25})
		risk := s.Score(macro, models.RegimeInflationFear, "P-001A", matchWith(models.OverrideSoft, 2.0, models.FailFalseBuy))

		// 0.35*60 + 0.25*50 + 0.25*40 + 0.15*60
		want := 52.5
		if math.Abs(risk.Score-want) > 0.001 {
			t.Errorf("expected score %.2f, got %.2f", want, risk.Score)
		}
		if risk.Label != "Moderate Risk" {
			t.Errorf("expected Moderate Risk, got %s", risk.Label)
		}
	})

	t.Run("clean neutral day is low risk", func(t *testing.T) {
		macro := snapshot(map[string]float64{"VIX": 15})
		risk := s.Score(macro, models.RegimeNeutral, "", nil)

		// 0.35*40 + 0.25*20 + 0 + 0.15*20
		want := 22.0
		if math.Abs(risk.Score-want) > 0.001 {
			t.Errorf("expected score %.2f, got %.2f", want, risk.Score)
		}
		if risk.Label != "Low Risk" {
			t.Errorf("expected Low Risk, got %s", risk.Label)
		}
		if risk.Details.MetaRAG != 0 {
			t.Errorf("expected zero meta-rag component without match, got %.1f", risk.Details.MetaRAG)
		}
	})

	t.Run("hard override floors meta-rag component at 80", func(t *testing.T) {
		macro := snapshot(map[string]float64{"VIX": 15})
		risk := s.Score(macro, models.RegimeNeutral, "", matchWith(models.OverrideHard, 1.0, models.FailOmission))

		if risk.Details.MetaRAG != 80 {
			t.Errorf("expected meta-rag floor 80, got %.1f", risk.Details.MetaRAG)
		}
	})

	t.Run("meta-rag component caps at 100", func(t *testing.T) {
		macro := snapshot(map[string]float64{"VIX": 15})
		risk := s.Score(macro, models.RegimeNeutral, "", matchWith(models.OverrideHard, 9.0, models.FailFalseHold))

		if risk.Details.MetaRAG != 100 {
			t.Errorf("expected meta-rag cap 100, got %.1f", risk.Details.MetaRAG)
		}
	})

	t.Run("pattern component tiers", func(t *testing.T) {
		macro := snapshot(map[string]float64{"VIX": 15})

		cases := []struct {
			pattern string
			want    float64
		}{
			{"P-005", 90},
			{"P-008B", 90},
			{"P-047", 90},
			{"P-001", 50},
			{"P-003", 50},
			{"P-099", 20},
			{"", 20},
		}

		for _, tc := range cases {
			risk := s.Score(macro, models.RegimeNeutral, tc.pattern, nil)
			if risk.Details.Pattern != tc.want {
				t.Errorf("pattern %q: expected component %.0f, got %.0f", tc.pattern, tc.want, risk.Details.Pattern)
			}
		}
	})
}
