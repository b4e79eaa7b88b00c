package patterns

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// LibraryPattern is one row of the historical pattern library.
type LibraryPattern struct {
	PatternID string
	Title     string
	Core      string
	Embedding []float32
}

// Repository reads the pattern library from PostgreSQL.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new pattern-library repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// ListPatterns loads the whole library. It is a fixed catalog of a few dozen
// historical patterns, so similarity scans happen in memory.
func (r *Repository) ListPatterns(ctx context.Context) ([]LibraryPattern, error) {
	query := `
		SELECT pattern_id, title, core, embedding
		FROM pattern_library
		ORDER BY pattern_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern library: %w", err)
	}
	defer rows.Close()

	patterns := []LibraryPattern{}

	for rows.Next() {
		var p LibraryPattern
		var embeddingFloats pq.Float32Array

		if err := rows.Scan(&p.PatternID, &p.Title, &p.Core, &embeddingFloats); err != nil {
			return nil, fmt.Errorf("failed to scan pattern row: %w", err)
		}

		embedding := make([]float32, len(embeddingFloats))
		copy(embedding, embeddingFloats)
		p.Embedding = embedding

		patterns = append(patterns, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pattern library: %w", err)
	}

	return patterns, nil
}

// Upsert inserts or replaces a library pattern, used by catalog loading.
func (r *Repository) Upsert(ctx context.Context, p LibraryPattern) error {
	query := `
		INSERT INTO pattern_library (pattern_id, title, core, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pattern_id) DO UPDATE
		SET title = EXCLUDED.title,
		    core = EXCLUDED.core,
		    embedding = EXCLUDED.embedding
	`

	if _, err := r.db.ExecContext(ctx, query, p.PatternID, p.Title, p.Core, pq.Array(p.Embedding)); err != nil {
		return fmt.Errorf("failed to upsert pattern %s: %w", p.PatternID, err)
	}

	return nil
}
