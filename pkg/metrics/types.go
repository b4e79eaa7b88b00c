package metrics

import "time"

// DecisionMetric is one row of the decision audit trail.
type DecisionMetric struct {
	Timestamp       time.Time
	NewsID          string
	Ticker          string
	Mode            string
	Regime          string
	Pattern         string
	Action          string
	MetaRAGStatus   string
	RiskScore       float64
	RiskLabel       string
	ZScore          float64
	ImpactScore     float64
	Confidence      float64
	Overridden      bool
	ExecutionTimeMs int
}

func (m *DecisionMetric) TableName() string {
	return "decision_audit"
}

func (m *DecisionMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp,
		m.NewsID,
		m.Ticker,
		m.Mode,
		m.Regime,
		m.Pattern,
		m.Action,
		m.MetaRAGStatus,
		m.RiskScore,
		m.RiskLabel,
		m.ZScore,
		m.ImpactScore,
		m.Confidence,
		m.Overridden,
		m.ExecutionTimeMs,
	}
}

// EmbeddingDeduplicationMetric tracks embedding store hits and misses.
type EmbeddingDeduplicationMetric struct {
	Timestamp    time.Time
	TextHash     string
	Model        string
	TextLength   int
	CostSavedUSD float64
	CacheHit     bool
}

func (m *EmbeddingDeduplicationMetric) TableName() string {
	return "embedding_deduplication_metrics"
}

func (m *EmbeddingDeduplicationMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp,
		m.TextHash,
		m.TextLength,
		m.Model,
		m.CacheHit,
		m.CostSavedUSD,
	}
}
