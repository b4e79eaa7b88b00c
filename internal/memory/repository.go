package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/selivandex/macro-sentinel/pkg/models"
)

// Repository persists failure-log entries in PostgreSQL. The fail_reason
// payload crosses the boundary as JSONB and is always a typed FailReason in
// memory.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new failure-log repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// ListEntries loads the whole failure log. The log is small by design
// (hundreds of distinct failure patterns, updated in place), so similarity
// scans happen in memory.
func (r *Repository) ListEntries(ctx context.Context) ([]models.FailureLogEntry, error) {
	query := `
		SELECT id, origin_pattern_id, correction_rule, regime_context,
		       fail_reason, embedding, created_at
		FROM failure_logs
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query failure logs: %w", err)
	}
	defer rows.Close()

	entries := []models.FailureLogEntry{}

	for rows.Next() {
		var entry models.FailureLogEntry
		var reasonJSON []byte
		var embeddingFloats pq.Float32Array

		err := rows.Scan(
			&entry.ID,
			&entry.OriginPatternID,
			&entry.CorrectionRule,
			&entry.RegimeContext,
			&reasonJSON,
			&embeddingFloats,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan failure log row: %w", err)
		}

		if err := json.Unmarshal(reasonJSON, &entry.Reason); err != nil {
			return nil, fmt.Errorf("failed to decode fail_reason for %s: %w", entry.ID, err)
		}

		embedding := make([]float32, len(embeddingFloats))
		copy(embedding, embeddingFloats)
		entry.Embedding = embedding

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate failure logs: %w", err)
	}

	return entries, nil
}

// Insert stores a new failure-log entry and fills in its generated ID and
// creation timestamp.
func (r *Repository) Insert(ctx context.Context, entry *models.FailureLogEntry) error {
	reasonJSON, err := json.Marshal(entry.Reason)
	if err != nil {
		return fmt.Errorf("failed to encode fail_reason: %w", err)
	}

	query := `
		INSERT INTO failure_logs (
			origin_pattern_id, correction_rule, regime_context,
			fail_reason, embedding
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err = r.db.QueryRowContext(
		ctx, query,
		entry.OriginPatternID,
		entry.CorrectionRule,
		entry.RegimeContext,
		reasonJSON,
		pq.Array(entry.Embedding),
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert failure log: %w", err)
	}

	return nil
}

// UpdateReason replaces the fail_reason payload of an existing entry.
// Entries are never deleted; recurrence is recorded by rewriting the reason.
func (r *Repository) UpdateReason(ctx context.Context, id string, reason models.FailReason) error {
	reasonJSON, err := json.Marshal(reason)
	if err != nil {
		return fmt.Errorf("failed to encode fail_reason: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE failure_logs SET fail_reason = $2 WHERE id = $1`,
		id, reasonJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to update failure log %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("failure log %s not found", id)
	}

	return nil
}

// Count returns the number of failure-log entries.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM failure_logs`); err != nil {
		return 0, fmt.Errorf("failed to count failure logs: %w", err)
	}
	return count, nil
}
