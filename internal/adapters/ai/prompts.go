package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/selivandex/macro-sentinel/internal/decision"
	"github.com/selivandex/macro-sentinel/pkg/models"
)

const systemPrompt = `You are a macro-driven trading strategist. Given a news event, the current macro snapshot, the detected regime and a matched historical pattern, propose ONE trading action.

Respond with JSON only:
{
  "ticker": "affected ticker or index",
  "action": "BUY | SELL | HOLD",
  "reason": "one or two sentences",
  "confidence": 0.0-1.0
}

Rules:
- Only BUY, SELL or HOLD. Risk overrides are applied downstream, never by you.
- If a failure-memory warning is present, take its lesson seriously.
- Ground the reason in the macro data, not the headline alone.`

// buildUserPrompt renders the decision context for the LLM.
func buildUserPrompt(req *decision.StrategyRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "News: %s\n", req.News.Title)
	if req.News.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", req.News.Summary)
	}
	if req.News.Ticker != "" {
		fmt.Fprintf(&b, "Ticker: %s\n", req.News.Ticker)
	}

	b.WriteString("\nMacro snapshot:\n")
	for key, reading := range req.Macro {
		if key == models.IndicatorSPYTrend {
			fmt.Fprintf(&b, "- %s: %s\n", key, reading.Level)
			continue
		}
		fmt.Fprintf(&b, "- %s: %.2f", key, reading.Value)
		if reading.Change1W != "" {
			fmt.Fprintf(&b, " (1w change %s)", reading.Change1W)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nRegime: %s\n", req.Regime)
	if req.PatternID != "" {
		fmt.Fprintf(&b, "Matched pattern: %s\n", req.PatternID)
	}
	fmt.Fprintf(&b, "Z-score: %.2f\n", req.ZScore)

	if req.WarningDoc != "" {
		fmt.Fprintf(&b, "\n%s\n", req.WarningDoc)
	}

	for key, value := range req.Context {
		fmt.Fprintf(&b, "\n%s: %s", key, value)
	}

	return b.String()
}

// parseStrategyResponse extracts and validates the suggestion JSON.
func parseStrategyResponse(content string) (*models.StrategySuggestion, error) {
	jsonStr := extractJSON(content)

	var response struct {
		Ticker     string  `json:"ticker"`
		Action     string  `json:"action"`
		Reason     string  `json:"reason"`
		Confidence float64 `json:"confidence"`
	}

	if err := json.Unmarshal([]byte(jsonStr), &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w (content: %s)", err, jsonStr)
	}

	action := models.Action(strings.ToUpper(strings.TrimSpace(response.Action)))
	switch action {
	case models.ActionBuy, models.ActionSell, models.ActionHold:
	default:
		return nil, fmt.Errorf("invalid action: %s", response.Action)
	}

	confidence := response.Confidence
	// Some models answer in percent despite the instructions
	if confidence > 1.0 && confidence <= 100.0 {
		confidence = confidence / 100.0
	}
	if confidence < 0 || confidence > 1.0 {
		return nil, fmt.Errorf("invalid confidence: %v", response.Confidence)
	}

	return &models.StrategySuggestion{
		Ticker:     response.Ticker,
		Action:     action,
		Reason:     response.Reason,
		Confidence: confidence,
	}, nil
}

var codeBlockRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// extractJSON pulls a JSON object out of markdown-wrapped or chatty output.
func extractJSON(text string) string {
	matches := codeBlockRe.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return strings.TrimSpace(text[start : end+1])
	}

	return strings.TrimSpace(text)
}
