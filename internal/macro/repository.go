package macro

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Observation is one stored indicator reading.
type Observation struct {
	Indicator  string          `db:"indicator"`
	Value      decimal.Decimal `db:"value"`
	ObservedAt time.Time       `db:"observed_at"`
}

// Repository reads and writes macro indicator history in PostgreSQL.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new macro-history repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// InsertObservation stores one indicator reading.
func (r *Repository) InsertObservation(ctx context.Context, obs Observation) error {
	query := `
		INSERT INTO macro_indicators (indicator, value, observed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (indicator, observed_at) DO UPDATE SET value = EXCLUDED.value
	`

	if _, err := r.db.ExecContext(ctx, query, obs.Indicator, obs.Value, obs.ObservedAt); err != nil {
		return fmt.Errorf("failed to insert observation for %s: %w", obs.Indicator, err)
	}

	return nil
}

// Latest returns the most recent observation for an indicator.
func (r *Repository) Latest(ctx context.Context, indicator string) (*Observation, error) {
	var obs Observation
	query := `
		SELECT indicator, value, observed_at
		FROM macro_indicators
		WHERE indicator = $1
		ORDER BY observed_at DESC
		LIMIT 1
	`

	if err := r.db.GetContext(ctx, &obs, query, indicator); err != nil {
		return nil, fmt.Errorf("failed to load latest %s: %w", indicator, err)
	}

	return &obs, nil
}

// ValueAt returns the observation closest at or before the given time.
func (r *Repository) ValueAt(ctx context.Context, indicator string, at time.Time) (*Observation, error) {
	var obs Observation
	query := `
		SELECT indicator, value, observed_at
		FROM macro_indicators
		WHERE indicator = $1 AND observed_at <= $2
		ORDER BY observed_at DESC
		LIMIT 1
	`

	if err := r.db.GetContext(ctx, &obs, query, indicator, at); err != nil {
		return nil, fmt.Errorf("failed to load %s as of %s: %w", indicator, at.Format(time.RFC3339), err)
	}

	return &obs, nil
}

// Series returns an indicator's values over the trailing window, oldest
// first, as float64 for indicator math.
func (r *Repository) Series(ctx context.Context, indicator string, days int) ([]float64, error) {
	query := `
		SELECT value
		FROM macro_indicators
		WHERE indicator = $1 AND observed_at >= NOW() - ($2 || ' days')::interval
		ORDER BY observed_at ASC
	`

	var values []decimal.Decimal
	if err := r.db.SelectContext(ctx, &values, query, indicator, days); err != nil {
		return nil, fmt.Errorf("failed to load %s series: %w", indicator, err)
	}

	series := make([]float64, len(values))
	for i, v := range values {
		series[i], _ = v.Float64()
	}

	return series, nil
}
