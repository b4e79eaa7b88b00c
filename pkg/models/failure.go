package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FailType classifies how a past decision went wrong.
type FailType string

const (
	FailFalseSell FailType = "false_sell"
	FailFalseBuy  FailType = "false_buy"
	FailFalseHold FailType = "false_hold"
	FailOmission  FailType = "omission"
)

// OverrideLevel is how strongly a failure-memory match suppresses a decision.
type OverrideLevel string

const (
	OverrideNone OverrideLevel = "NONE"
	OverrideSoft OverrideLevel = "SOFT"
	OverrideHard OverrideLevel = "HARD"
)

// FailReason is the typed payload describing one historical failure.
// It is serialized as JSON only at the storage boundary; in memory it is
// always this struct, never a loose map.
type FailReason struct {
	UpdatedAt         time.Time       `json:"updated_at"`
	FailType          FailType        `json:"fail_type"`
	EventName         string          `json:"event_name"`
	HistoricalContext string          `json:"historical_context"`
	LessonSummary     string          `json:"lesson_summary"`
	PastOutcome       string          `json:"past_outcome"`
	RecommendedAction string          `json:"recommended_action"`
	CorrectionHint    string          `json:"correction_hint"`
	Impact            decimal.Decimal `json:"impact"`
	RiskWeight        float64         `json:"risk_weight"`
	RecurrenceCount   int             `json:"recurrence_count"`
}

// EffectiveRiskWeight returns the severity multiplier for weighted scoring,
// defaulting to 1.0 for entries persisted without a usable weight.
func (fr FailReason) EffectiveRiskWeight() float64 {
	if fr.RiskWeight <= 0 {
		return 1.0
	}
	return fr.RiskWeight
}

// FailureLogEntry is one persistent record of a historical bad decision.
// Entries are created once per distinct failure pattern and updated in place
// when the same failure recurs; this core never deletes them.
type FailureLogEntry struct {
	CreatedAt       time.Time  `json:"created_at"`
	ID              string     `json:"id"`
	OriginPatternID string     `json:"origin_pattern_id"`
	CorrectionRule  string     `json:"correction_rule"`
	RegimeContext   Regime     `json:"regime_context"`
	Reason          FailReason `json:"fail_reason"`
	Embedding       []float32  `json:"-"`
}

// FailureMatch is a failure-log entry annotated with how it matched the
// current situation.
type FailureMatch struct {
	Entry         FailureLogEntry `json:"entry"`
	Similarity    float64         `json:"similarity"`
	WeightedScore float64         `json:"weighted_score"`
	RiskWeight    float64         `json:"risk_weight"`
	OverrideLevel OverrideLevel   `json:"override_level"`
}

// FailureEvent describes a freshly observed bad decision for Auto-Learn.
type FailureEvent struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	PatternID    string          `json:"pattern_id"`
	Regime       Regime          `json:"regime"`
	Decision     Action          `json:"decision"`
	ActualReturn decimal.Decimal `json:"actual_return"`
	FailType     FailType        `json:"fail_type"`
}

// EmbeddingText returns the text Auto-Learn embeds for recurrence detection.
func (e FailureEvent) EmbeddingText() string {
	return e.Name + ". " + e.Description
}
