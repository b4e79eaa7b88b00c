package metrics

import "context"

// Metric is one row bound for the audit sink. Implementations pair a
// destination table with the row values; DecisionMetric and
// EmbeddingDeduplicationMetric are the two rows this system emits.
type Metric interface {
	// TableName returns the audit table this metric lands in
	TableName() string
	// Values returns the row values in table column order
	Values() []interface{}
}

// Writer delivers metric batches to the audit sink (ClickHouse in
// production, anything batch-shaped in tests).
type Writer interface {
	// Write delivers one batch destined for tableName
	Write(ctx context.Context, tableName string, metrics []Metric) error
	// Close flushes and releases the sink connection
	Close() error
}

// Buffer accumulates metrics between flushes so a decision never blocks on
// the audit sink.
type Buffer interface {
	// Add appends a metric to the buffer (thread-safe)
	Add(metric Metric) error
	// Flush drains the buffer to the writer
	Flush(ctx context.Context) error
	// Size returns the number of buffered metrics
	Size() int
	// Close flushes remaining metrics and shuts the buffer down
	Close(ctx context.Context) error
}
