package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/selivandex/macro-sentinel/internal/adapters/redis"
	"github.com/selivandex/macro-sentinel/pkg/models"
)

type fakeRepo struct {
	entries  []models.FailureLogEntry
	inserted []models.FailureLogEntry
	updated  map[string]models.FailReason
	listErr  error
}

func (f *fakeRepo) ListEntries(ctx context.Context) ([]models.FailureLogEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.entries, nil
}

func (f *fakeRepo) Insert(ctx context.Context, entry *models.FailureLogEntry) error {
	entry.ID = fmt.Sprintf("id-%d", len(f.inserted)+1)
	f.inserted = append(f.inserted, *entry)
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeRepo) UpdateReason(ctx context.Context, id string, reason models.FailReason) error {
	if f.updated == nil {
		f.updated = map[string]models.FailReason{}
	}
	f.updated[id] = reason
	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries[i].Reason = reason
		}
	}
	return nil
}

type busyLockFactory struct{}

func (busyLockFactory) CreateLearnLock(scope string) redis.LearnLock {
	return busyLock{scope: scope}
}

// busyLock simulates another pod holding the learn lock for good.
type busyLock struct {
	scope string
}

func (l busyLock) TryAcquire(ctx context.Context) (bool, error) { return false, nil }
func (l busyLock) Release(ctx context.Context) error            { return nil }
func (l busyLock) Scope() string                                { return l.scope }

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

func entry(id string, embedding []float32, riskWeight float64, failType models.FailType) models.FailureLogEntry {
	return models.FailureLogEntry{
		ID:        id,
		Embedding: embedding,
		Reason: models.FailReason{
			FailType:        failType,
			EventName:       "event " + id,
			RiskWeight:      riskWeight,
			RecurrenceCount: 1,
		},
	}
}

func TestStoreCheck(t *testing.T) {
	ctx := context.Background()
	query := []float32{1, 0, 0}

	t.Run("selects by weighted score not raw similarity", func(t *testing.T) {
		// a: similarity 1.0, weight 0.8 -> weighted 0.80
		// b: similarity ~0.894, weight 3.0 -> weighted ~2.68
		repo := &fakeRepo{entries: []models.FailureLogEntry{
			entry("a", []float32{1, 0, 0}, 0.8, models.FailOmission),
			entry("b", []float32{2, 1, 0}, 3.0, models.FailFalseHold),
		}}
		store := NewStore(repo, &fakeEmbedder{}, nil, 0.85)

		match, err := store.Check(ctx, query, 0.45)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if match == nil {
			t.Fatal("expected a match")
		}
		if match.Entry.ID != "b" {
			t.Errorf("expected entry b by weighted score, got %s", match.Entry.ID)
		}
		if match.OverrideLevel != models.OverrideHard {
			t.Errorf("expected HARD, got %s", match.OverrideLevel)
		}
	})

	t.Run("soft band", func(t *testing.T) {
		// similarity ~0.466 * weight 1.0 lands between the cutoffs
		repo := &fakeRepo{entries: []models.FailureLogEntry{
			entry("a", []float32{1, 1.9, 0}, 1.0, models.FailFalseSell),
		}}
		store := NewStore(repo, &fakeEmbedder{}, nil, 0.85)

		match, err := store.Check(ctx, query, 0.40)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if match == nil {
			t.Fatal("expected a match")
		}
		if match.OverrideLevel != models.OverrideSoft {
			t.Errorf("expected SOFT at weighted %.2f, got %s", match.WeightedScore, match.OverrideLevel)
		}
	})

	t.Run("below soft cutoff returns nil", func(t *testing.T) {
		repo := &fakeRepo{entries: []models.FailureLogEntry{
			entry("a", []float32{1, 2.1, 0}, 0.8, models.FailOmission), // similarity ~0.43, weighted ~0.34
		}}
		store := NewStore(repo, &fakeEmbedder{}, nil, 0.85)

		match, err := store.Check(ctx, query, 0.40)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if match != nil {
			t.Errorf("expected nil below soft cutoff, got %+v", match)
		}
	})

	t.Run("similarity pre-filter drops heavy but distant entries", func(t *testing.T) {
		// Orthogonal vector: similarity 0, any weight is irrelevant.
		repo := &fakeRepo{entries: []models.FailureLogEntry{
			entry("far", []float32{0, 1, 0}, 99.0, models.FailFalseHold),
		}}
		store := NewStore(repo, &fakeEmbedder{}, nil, 0.85)

		match, err := store.Check(ctx, query, 0.45)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if match != nil {
			t.Errorf("expected nil, got %+v", match)
		}
	})

	t.Run("empty log returns nil", func(t *testing.T) {
		store := NewStore(&fakeRepo{}, &fakeEmbedder{}, nil, 0.85)

		match, err := store.Check(ctx, query, 0.45)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if match != nil {
			t.Errorf("expected nil on empty log, got %+v", match)
		}
	})

	t.Run("repository failure surfaces", func(t *testing.T) {
		store := NewStore(&fakeRepo{listErr: errors.New("db down")}, &fakeEmbedder{}, nil, 0.85)

		if _, err := store.Check(ctx, query, 0.45); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("soft cutoff boundary is inclusive", func(t *testing.T) {
		// Identical vectors make similarity exactly 1.0, so the weighted
		// score equals the stored weight and the cutoff comparison is exact.
		repo := &fakeRepo{entries: []models.FailureLogEntry{
			entry("edge", []float32{2, 0, 0}, 0.40, models.FailOmission),
		}}
		store := NewStore(repo, &fakeEmbedder{}, nil, 0.85)

		match, err := store.Check(ctx, query, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if match == nil {
			t.Fatal("expected a match at weighted score 0.40")
		}
		if match.OverrideLevel != models.OverrideSoft {
			t.Errorf("expected SOFT at exactly 0.40, got %s", match.OverrideLevel)
		}

		repo = &fakeRepo{entries: []models.FailureLogEntry{
			entry("under", []float32{2, 0, 0}, 0.39999, models.FailOmission),
		}}
		store = NewStore(repo, &fakeEmbedder{}, nil, 0.85)

		match, err = store.Check(ctx, query, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if match != nil {
			t.Errorf("expected nil just below the cutoff, got %+v", match)
		}
	})

	t.Run("zero risk weight defaults to one", func(t *testing.T) {
		repo := &fakeRepo{entries: []models.FailureLogEntry{
			entry("a", []float32{1, 0, 0}, 0, models.FailOmission), // weighted = similarity = 1.0
		}}
		store := NewStore(repo, &fakeEmbedder{}, nil, 0.85)

		match, err := store.Check(ctx, query, 0.45)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if match == nil || match.RiskWeight != 1.0 {
			t.Fatalf("expected default risk weight 1.0, got %+v", match)
		}
		if match.OverrideLevel != models.OverrideHard {
			t.Errorf("weighted 1.0 must be HARD, got %s", match.OverrideLevel)
		}
	})
}

func TestStoreRecordFailure(t *testing.T) {
	ctx := context.Background()

	newEvent := func(failType models.FailType) models.FailureEvent {
		return models.FailureEvent{
			Name:         "SVB collapse",
			Description:  "Regional bank run after bond losses",
			PatternID:    "P-008",
			Regime:       models.RegimeLiquidityCrisis,
			Decision:     models.ActionBuy,
			ActualReturn: decimal.NewFromFloat(-12.5),
			FailType:     failType,
		}
	}

	t.Run("new failure inserts with base weight", func(t *testing.T) {
		repo := &fakeRepo{}
		store := NewStore(repo, &fakeEmbedder{vector: []float32{1, 0, 0}}, redis.NewMockLockFactory(), 0.85)

		if err := store.RecordFailure(ctx, newEvent(models.FailFalseBuy)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(repo.inserted) != 1 {
			t.Fatalf("expected 1 insert, got %d", len(repo.inserted))
		}
		got := repo.inserted[0]
		if got.Reason.RiskWeight != 1.2 {
			t.Errorf("expected base weight 1.2 for false_buy, got %v", got.Reason.RiskWeight)
		}
		if got.Reason.RecurrenceCount != 1 {
			t.Errorf("expected recurrence 1, got %d", got.Reason.RecurrenceCount)
		}
		if got.OriginPatternID != "P-008" {
			t.Errorf("expected origin pattern P-008, got %s", got.OriginPatternID)
		}
		if got.CorrectionRule != "momentum_priority" {
			t.Errorf("unexpected correction rule %s", got.CorrectionRule)
		}
	})

	t.Run("recurrence escalates in place", func(t *testing.T) {
		existing := entry("known", []float32{1, 0, 0}, 1.2, models.FailFalseBuy)
		repo := &fakeRepo{entries: []models.FailureLogEntry{existing}}
		store := NewStore(repo, &fakeEmbedder{vector: []float32{1, 0, 0}}, redis.NewMockLockFactory(), 0.85)

		if err := store.RecordFailure(ctx, newEvent(models.FailFalseBuy)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(repo.inserted) != 0 {
			t.Fatalf("expected no insert on recurrence, got %d", len(repo.inserted))
		}
		updated, ok := repo.updated["known"]
		if !ok {
			t.Fatal("expected entry to be updated")
		}
		if updated.RecurrenceCount != 2 {
			t.Errorf("expected recurrence 2, got %d", updated.RecurrenceCount)
		}
		if updated.RiskWeight != 1.5 {
			t.Errorf("expected weight 1.2+0.3=1.5, got %v", updated.RiskWeight)
		}
	})

	t.Run("false_hold recurrence escalates faster", func(t *testing.T) {
		existing := entry("known", []float32{1, 0, 0}, 2.0, models.FailFalseHold)
		repo := &fakeRepo{entries: []models.FailureLogEntry{existing}}
		store := NewStore(repo, &fakeEmbedder{vector: []float32{1, 0, 0}}, redis.NewMockLockFactory(), 0.85)

		if err := store.RecordFailure(ctx, newEvent(models.FailFalseHold)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		updated := repo.updated["known"]
		if updated.RiskWeight != 3.5 {
			t.Errorf("expected weight 2.0+1.5=3.5, got %v", updated.RiskWeight)
		}
	})

	t.Run("below learn similarity inserts fresh entry", func(t *testing.T) {
		existing := entry("known", []float32{0, 1, 0}, 2.0, models.FailFalseBuy)
		repo := &fakeRepo{entries: []models.FailureLogEntry{existing}}
		store := NewStore(repo, &fakeEmbedder{vector: []float32{1, 0, 0}}, redis.NewMockLockFactory(), 0.85)

		if err := store.RecordFailure(ctx, newEvent(models.FailFalseSell)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(repo.inserted) != 1 {
			t.Fatalf("expected insert, got %d inserts, %d updates", len(repo.inserted), len(repo.updated))
		}
		if repo.inserted[0].Reason.RiskWeight != 1.5 {
			t.Errorf("expected base weight 1.5 for false_sell, got %v", repo.inserted[0].Reason.RiskWeight)
		}
	})

	t.Run("embedding failure aborts without writes", func(t *testing.T) {
		repo := &fakeRepo{}
		store := NewStore(repo, &fakeEmbedder{err: errors.New("api down")}, redis.NewMockLockFactory(), 0.85)

		if err := store.RecordFailure(ctx, newEvent(models.FailFalseBuy)); err == nil {
			t.Fatal("expected error")
		}
		if len(repo.inserted) != 0 || len(repo.updated) != 0 {
			t.Error("no writes expected after embedding failure")
		}
	})

	t.Run("same failure twice aggregates into one entry", func(t *testing.T) {
		repo := &fakeRepo{}
		store := NewStore(repo, &fakeEmbedder{vector: []float32{1, 0, 0}}, redis.NewMockLockFactory(), 0.85)

		if err := store.RecordFailure(ctx, newEvent(models.FailFalseBuy)); err != nil {
			t.Fatalf("unexpected error on first record: %v", err)
		}
		if err := store.RecordFailure(ctx, newEvent(models.FailFalseBuy)); err != nil {
			t.Fatalf("unexpected error on second record: %v", err)
		}

		if len(repo.entries) != 1 {
			t.Fatalf("expected one aggregated entry, got %d", len(repo.entries))
		}
		if len(repo.inserted) != 1 {
			t.Fatalf("expected a single insert, got %d", len(repo.inserted))
		}
		reason := repo.entries[0].Reason
		if reason.RecurrenceCount != 2 {
			t.Errorf("expected recurrence 2 after repeat, got %d", reason.RecurrenceCount)
		}
		if reason.RiskWeight != 1.5 {
			t.Errorf("expected weight 1.2+0.3=1.5 after repeat, got %v", reason.RiskWeight)
		}
	})

	t.Run("busy lock degrades to lock-free write", func(t *testing.T) {
		repo := &fakeRepo{}
		store := NewStore(repo, &fakeEmbedder{vector: []float32{1, 0, 0}}, busyLockFactory{}, 0.85)

		if err := store.RecordFailure(ctx, newEvent(models.FailFalseBuy)); err != nil {
			t.Fatalf("expected lock-free write, got error: %v", err)
		}
		if len(repo.inserted) != 1 {
			t.Fatalf("expected 1 insert despite busy lock, got %d", len(repo.inserted))
		}
	})

	t.Run("works without lock factory", func(t *testing.T) {
		repo := &fakeRepo{}
		store := NewStore(repo, &fakeEmbedder{vector: []float32{1, 0, 0}}, nil, 0.85)

		if err := store.RecordFailure(ctx, newEvent(models.FailOmission)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(repo.inserted) != 1 {
			t.Fatalf("expected insert, got %d", len(repo.inserted))
		}
		if repo.inserted[0].Reason.RiskWeight != 0.8 {
			t.Errorf("expected base weight 0.8 for omission, got %v", repo.inserted[0].Reason.RiskWeight)
		}
	})
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := cosineSimilarity(tc.a, tc.b)
			if diff := got - tc.want; diff > 0.0001 || diff < -0.0001 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tc.want)
			}
		})
	}
}
