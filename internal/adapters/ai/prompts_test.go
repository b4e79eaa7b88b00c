package ai

import (
	"strings"
	"testing"

	"github.com/selivandex/macro-sentinel/internal/decision"
	"github.com/selivandex/macro-sentinel/pkg/models"
)

func TestParseStrategyResponse(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		content := `{"ticker": "SPY", "action": "BUY", "reason": "Momentum", "confidence": 0.8}`

		got, err := parseStrategyResponse(content)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Action != models.ActionBuy {
			t.Errorf("expected BUY, got %s", got.Action)
		}
		if got.Confidence != 0.8 {
			t.Errorf("expected 0.8, got %v", got.Confidence)
		}
	})

	t.Run("markdown wrapped json", func(t *testing.T) {
		content := "Here is my analysis:\n```json\n{\"action\": \"sell\", \"reason\": \"Risk off\", \"confidence\": 0.6}\n```"

		got, err := parseStrategyResponse(content)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Action != models.ActionSell {
			t.Errorf("expected SELL, got %s", got.Action)
		}
	})

	t.Run("percent confidence normalized", func(t *testing.T) {
		content := `{"action": "HOLD", "reason": "Unclear", "confidence": 65}`

		got, err := parseStrategyResponse(content)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Confidence != 0.65 {
			t.Errorf("expected 0.65, got %v", got.Confidence)
		}
	})

	t.Run("invalid action rejected", func(t *testing.T) {
		content := `{"action": "HOLD_CASH", "reason": "Panic", "confidence": 0.9}`

		if _, err := parseStrategyResponse(content); err == nil {
			t.Fatal("expected error: providers may not emit HOLD_CASH")
		}
	})

	t.Run("garbage rejected", func(t *testing.T) {
		if _, err := parseStrategyResponse("I think you should buy"); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestBuildUserPrompt(t *testing.T) {
	req := &decision.StrategyRequest{
		News: models.NewsItem{
			Title:   "Fed signals pause",
			Summary: "Rate path flattens",
			Ticker:  "SPY",
		},
		Macro: models.MacroSnapshot{
			models.IndicatorVIX:      {Value: 18.5, Change1W: "+2.0%"},
			models.IndicatorSPYTrend: {Level: models.TrendUp},
		},
		Regime:     models.RegimeGrowthGoldilocks,
		PatternID:  "P-003",
		ZScore:     2.1,
		WarningDoc: "[Failure Memory Warning — similarity 62.0%]",
	}

	got := buildUserPrompt(req)

	for _, want := range []string{
		"Fed signals pause",
		"VIX: 18.50",
		"1w change +2.0%",
		"SPY_TREND: UP",
		"Regime: GROWTH_GOLDILOCKS",
		"Matched pattern: P-003",
		"Z-score: 2.10",
		"Failure Memory Warning",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
}
