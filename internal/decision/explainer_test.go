package decision

import (
	"strings"
	"testing"

	"github.com/selivandex/macro-sentinel/pkg/models"
)

func TestRiskExplainer(t *testing.T) {
	e := NewRiskExplainer()

	t.Run("empty without match", func(t *testing.T) {
		if got := e.Explain(nil, models.ActionBuy, models.ActionBuy); got != "" {
			t.Errorf("expected empty explanation, got %q", got)
		}
	})

	t.Run("empty for NONE level", func(t *testing.T) {
		match := matchWith(models.OverrideNone, 1.0, models.FailFalseSell)
		if got := e.Explain(match, models.ActionBuy, models.ActionBuy); got != "" {
			t.Errorf("expected empty explanation, got %q", got)
		}
	})

	t.Run("hard override with action change", func(t *testing.T) {
		match := matchWith(models.OverrideHard, 3.0, models.FailFalseSell)
		match.Entry.OriginPatternID = "P-008"
		match.Entry.Reason.RecurrenceCount = 2

		got := e.Explain(match, models.ActionSell, models.ActionHoldCash)

		for _, want := range []string{
			"[Meta-RAG Risk Override: HARD]",
			"premature SELL",
			"recurred 2 time(s)",
			"origin pattern P-008",
			"System action: SELL → HOLD_CASH",
			"Recommendation: 포지션 최소화 및 유동성 확보",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("explanation missing %q:\n%s", want, got)
			}
		}
	})

	t.Run("soft override keeping action", func(t *testing.T) {
		match := matchWith(models.OverrideSoft, 2.0, models.FailFalseBuy)
		match.Entry.Reason.RecurrenceCount = 1

		got := e.Explain(match, models.ActionHold, models.ActionHold)

		for _, want := range []string{
			"[Meta-RAG Risk Override: SOFT]",
			"falling knife",
			"HOLD maintained, caution advised",
			"Recommendation: 분할 매매 및 리스크 관리 강화",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("explanation missing %q:\n%s", want, got)
			}
		}
	})

	t.Run("generic cause for other failure classes", func(t *testing.T) {
		match := matchWith(models.OverrideSoft, 2.0, models.FailOmission)
		got := e.Explain(match, models.ActionHold, models.ActionHold)

		if !strings.Contains(got, "costly decision error") {
			t.Errorf("expected generic cause clause:\n%s", got)
		}
	})
}
