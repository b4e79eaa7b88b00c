package models

import "time"

// Regime is a discrete macroeconomic state derived from indicator thresholds.
type Regime string

const (
	RegimeLiquidityCrisis  Regime = "LIQUIDITY_CRISIS"
	RegimeStagflation      Regime = "STAGFLATION"
	RegimeInflationFear    Regime = "INFLATION_FEAR"
	RegimeGrowthGoldilocks Regime = "GROWTH_GOLDILOCKS"
	RegimeNeutral          Regime = "NEUTRAL"
)

// Regimes lists all valid regime labels.
var Regimes = []Regime{
	RegimeLiquidityCrisis,
	RegimeStagflation,
	RegimeInflationFear,
	RegimeGrowthGoldilocks,
	RegimeNeutral,
}

// IsValid reports whether r is one of the five closed regime labels.
func (r Regime) IsValid() bool {
	for _, known := range Regimes {
		if r == known {
			return true
		}
	}
	return false
}

// Action is the final trading action emitted by the decision engine.
type Action string

const (
	ActionBuy      Action = "BUY"
	ActionSell     Action = "SELL"
	ActionHold     Action = "HOLD"
	ActionHoldCash Action = "HOLD_CASH"
	ActionSkip     Action = "SKIP"
)

// IsHoldLike reports whether the action keeps the book flat.
func (a Action) IsHoldLike() bool {
	return a == ActionHold || a == ActionHoldCash
}

// DecisionMode selects the engine's gating behavior.
type DecisionMode string

const (
	ModeGeneral DecisionMode = "general"
	ModeAnomaly DecisionMode = "anomaly"
)

// MetaRAGStatus describes the failure-memory outcome of a decision.
type MetaRAGStatus string

const (
	MetaRAGClean       MetaRAGStatus = "Clean"
	MetaRAGWarning     MetaRAGStatus = "Warning"
	MetaRAGWarningHard MetaRAGStatus = "Warning (HARD)"
	MetaRAGWarningSoft MetaRAGStatus = "Warning (SOFT)"
)

// NewsItem is the news event a decision is made about.
type NewsItem struct {
	PublishedAt time.Time `json:"published_at"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Ticker      string    `json:"ticker,omitempty"`
	Source      string    `json:"source,omitempty"`
}

// EmbeddingText returns the text the engine embeds for similarity lookups.
func (n NewsItem) EmbeddingText() string {
	return n.Title + ". " + n.Summary
}

// StrategySuggestion is the raw LLM-backed suggestion before overrides.
type StrategySuggestion struct {
	Ticker     string  `json:"ticker"`
	Action     Action  `json:"action"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// PatternCandidate is one hit from the historical pattern library.
type PatternCandidate struct {
	PatternID  string  `json:"pattern_id"`
	Title      string  `json:"title"`
	Core       string  `json:"core"`
	Similarity float64 `json:"similarity"`
}

// RiskDetails breaks the unified risk score into its weighted components.
// Each component is on a 0-100 scale before weighting.
type RiskDetails struct {
	Macro    float64 `json:"macro"`
	Pattern  float64 `json:"pattern"`
	MetaRAG  float64 `json:"meta_rag"`
	Momentum float64 `json:"momentum"`
}

// UnifiedRisk is the blended 0-100 risk assessment attached to a decision.
type UnifiedRisk struct {
	Score   float64     `json:"score"`
	Label   string      `json:"label"`
	Action  string      `json:"action"`
	Details RiskDetails `json:"details"`
}

// DecisionResult is the composite output of one engine call.
type DecisionResult struct {
	Action          Action        `json:"action"`
	Reason          string        `json:"reason"`
	Confidence      float64       `json:"confidence"`
	Regime          Regime        `json:"regime"`
	Pattern         string        `json:"pattern"`
	ZScore          float64       `json:"z_score"`
	ImpactScore     float64       `json:"impact_score"`
	MetaRAGStatus   MetaRAGStatus `json:"meta_rag_status"`
	UnifiedRisk     UnifiedRisk   `json:"unified_risk"`
	RiskExplanation string        `json:"risk_explanation,omitempty"`
	Ticker          string        `json:"ticker,omitempty"`
	Mode            DecisionMode  `json:"mode"`
	DecidedAt       time.Time     `json:"decided_at"`
}
