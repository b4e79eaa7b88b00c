package patterns

import (
	"context"
	"errors"
	"testing"
)

type fakeSource struct {
	patterns []LibraryPattern
	err      error
}

func (f *fakeSource) ListPatterns(ctx context.Context) ([]LibraryPattern, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.patterns, nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Generate(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func TestRetriever(t *testing.T) {
	ctx := context.Background()

	library := []LibraryPattern{
		{PatternID: "P-001", Title: "Yield spike", Embedding: []float32{0, 1, 0}},
		{PatternID: "P-005", Title: "Inflation shock", Embedding: []float32{1, 0.2, 0}},
		{PatternID: "P-008", Title: "Geopolitical", Embedding: []float32{1, 0, 0}},
	}

	t.Run("orders by similarity", func(t *testing.T) {
		r := NewRetriever(&fakeSource{patterns: library}, &fakeEmbedder{vector: []float32{1, 0, 0}})

		got, err := r.Retrieve(ctx, "war headline", 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 candidates, got %d", len(got))
		}
		if got[0].PatternID != "P-008" {
			t.Errorf("expected P-008 first, got %s", got[0].PatternID)
		}
		if got[1].PatternID != "P-005" {
			t.Errorf("expected P-005 second, got %s", got[1].PatternID)
		}
	})

	t.Run("truncates to topK", func(t *testing.T) {
		r := NewRetriever(&fakeSource{patterns: library}, &fakeEmbedder{vector: []float32{1, 0, 0}})

		got, err := r.Retrieve(ctx, "war headline", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 candidate, got %d", len(got))
		}
	})

	t.Run("empty library yields empty result", func(t *testing.T) {
		r := NewRetriever(&fakeSource{}, &fakeEmbedder{vector: []float32{1, 0, 0}})

		got, err := r.Retrieve(ctx, "anything", 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no candidates, got %d", len(got))
		}
	})

	t.Run("embedder failure surfaces", func(t *testing.T) {
		r := NewRetriever(&fakeSource{patterns: library}, &fakeEmbedder{err: errors.New("api down")})

		if _, err := r.Retrieve(ctx, "anything", 3); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("source failure surfaces", func(t *testing.T) {
		r := NewRetriever(&fakeSource{err: errors.New("db down")}, &fakeEmbedder{vector: []float32{1, 0, 0}})

		if _, err := r.Retrieve(ctx, "anything", 3); err == nil {
			t.Fatal("expected error")
		}
	})
}
