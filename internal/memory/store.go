package memory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/macro-sentinel/internal/adapters/redis"
	"github.com/selivandex/macro-sentinel/pkg/logger"
	"github.com/selivandex/macro-sentinel/pkg/models"
)

// Weighted-score cutoffs for the override decision. These are part of the
// override contract and deliberately not configurable.
const (
	overrideHardCutoff = 0.55
	overrideSoftCutoff = 0.40
)

// learnLockScope serializes Auto-Learn's check-then-write across pods.
const learnLockScope = "failure-memory"

// Risk-weight bumps applied when a known failure recurs. A repeated
// false_hold escalates much faster because missing the same move twice is
// the costliest mistake this system makes.
const (
	recurrenceBoost          = 0.3
	recurrenceBoostFalseHold = 1.5
)

// baseRiskWeights seeds a fresh entry's severity by failure class.
var baseRiskWeights = map[models.FailType]float64{
	models.FailFalseSell: 1.5,
	models.FailFalseBuy:  1.2,
	models.FailFalseHold: 2.0,
	models.FailOmission:  0.8,
}

const defaultRiskWeight = 1.0

// correctionRules maps a failure class to the pipeline rule that would have
// prevented it.
var correctionRules = map[models.FailType]string{
	models.FailFalseSell: "trend_confirmation",
	models.FailFalseBuy:  "momentum_priority",
	models.FailFalseHold: "meta_rag_hold_correction",
	models.FailOmission:  "hold_restriction",
}

// recommendedActions is the guidance surfaced to the strategy LLM when a
// similar situation comes back.
var recommendedActions = map[models.FailType]string{
	models.FailFalseSell: "Do not sell on similar headlines without trend confirmation",
	models.FailFalseBuy:  "Do not buy on similar headlines without momentum support",
	models.FailFalseHold: "Do not stay flat on similar headlines; take the directional side",
	models.FailOmission:  "Do not skip similar headlines; evaluate them explicitly",
}

// EntryRepository is the persistence surface the store needs.
type EntryRepository interface {
	ListEntries(ctx context.Context) ([]models.FailureLogEntry, error)
	Insert(ctx context.Context, entry *models.FailureLogEntry) error
	UpdateReason(ctx context.Context, id string, reason models.FailReason) error
}

// Embedder produces vectors for recurrence detection.
type Embedder interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// Store is the failure memory: it answers "have we been burned by something
// like this before" (Check) and records fresh failures without duplicating
// known ones (RecordFailure).
type Store struct {
	repo     EntryRepository
	embedder Embedder
	locks    redis.LockFactory // nil disables distributed locking

	// learnMinSimilarity is the raw-similarity bar for treating a new
	// failure as a recurrence of an existing entry.
	learnMinSimilarity float64
}

// NewStore creates new failure-memory store. locks may be nil when running
// single-instance.
func NewStore(repo EntryRepository, embedder Embedder, locks redis.LockFactory, learnMinSimilarity float64) *Store {
	return &Store{
		repo:               repo,
		embedder:           embedder,
		locks:              locks,
		learnMinSimilarity: learnMinSimilarity,
	}
}

// Check scans the failure log for the strongest weighted match against the
// query embedding. minSimilarity is a raw-similarity pre-filter; selection
// and the SOFT/HARD decision both use similarity multiplied by the entry's
// risk weight. Returns nil when nothing clears the SOFT cutoff.
func (s *Store) Check(ctx context.Context, embedding []float32, minSimilarity float64) (*models.FailureMatch, error) {
	entries, err := s.repo.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load failure log: %w", err)
	}

	var best *models.FailureMatch
	for i := range entries {
		entry := entries[i]

		similarity := cosineSimilarity(embedding, entry.Embedding)
		if similarity < minSimilarity {
			continue
		}

		riskWeight := entry.Reason.EffectiveRiskWeight()
		weighted := similarity * riskWeight

		if best == nil || weighted > best.WeightedScore {
			best = &models.FailureMatch{
				Entry:         entry,
				Similarity:    similarity,
				WeightedScore: weighted,
				RiskWeight:    riskWeight,
			}
		}
	}

	if best == nil {
		return nil, nil
	}

	switch {
	case best.WeightedScore >= overrideHardCutoff:
		best.OverrideLevel = models.OverrideHard
	case best.WeightedScore >= overrideSoftCutoff:
		best.OverrideLevel = models.OverrideSoft
	default:
		return nil, nil
	}

	logger.Debug("failure memory matched",
		zap.String("entry_id", best.Entry.ID),
		zap.String("event", best.Entry.Reason.EventName),
		zap.Float64("similarity", best.Similarity),
		zap.Float64("weighted_score", best.WeightedScore),
		zap.String("override", string(best.OverrideLevel)),
	)

	return best, nil
}

// RecordFailure implements Auto-Learn: a failure similar enough to a known
// entry escalates that entry in place, anything else becomes a new entry.
// The check-then-write runs under the distributed learn lock when one is
// available, so two pods do not both conclude "this is new" for the same
// failure; a busy lock degrades to a lock-free write.
func (s *Store) RecordFailure(ctx context.Context, event models.FailureEvent) error {
	embedding, err := s.embedder.Generate(ctx, event.EmbeddingText())
	if err != nil {
		return fmt.Errorf("failed to embed failure event: %w", err)
	}

	release, err := s.acquireLearnLock(ctx)
	if err != nil {
		return err
	}
	defer release()

	entries, err := s.repo.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to load failure log: %w", err)
	}

	if existing, similarity := s.closestEntry(embedding, entries); existing != nil && similarity >= s.learnMinSimilarity {
		return s.escalate(ctx, existing, event, similarity)
	}

	return s.insert(ctx, event, embedding)
}

// acquireLearnLock takes the distributed lock, returning a release func.
// Without a lock factory this is a no-op. The lock is best effort: when it
// stays busy past the retry window the caller proceeds lock-free, because a
// rare duplicate entry is cheaper than a dropped lesson.
func (s *Store) acquireLearnLock(ctx context.Context) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}

	lock := s.locks.CreateLearnLock(learnLockScope)

	// A held lock means another pod is mid-learn; wait briefly rather than
	// failing the caller outright.
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}

		acquired, err := lock.TryAcquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire learn lock: %w", err)
		}
		if acquired {
			return func() {
				if err := lock.Release(context.Background()); err != nil {
					logger.Warn("failed to release learn lock", zap.Error(err))
				}
			}, nil
		}
	}

	logger.Warn("learn lock busy, recording failure without serialization")
	return func() {}, nil
}

// closestEntry returns the entry with the highest raw similarity.
func (s *Store) closestEntry(embedding []float32, entries []models.FailureLogEntry) (*models.FailureLogEntry, float64) {
	var best *models.FailureLogEntry
	bestSimilarity := 0.0

	for i := range entries {
		similarity := cosineSimilarity(embedding, entries[i].Embedding)
		if best == nil || similarity > bestSimilarity {
			best = &entries[i]
			bestSimilarity = similarity
		}
	}

	return best, bestSimilarity
}

// escalate records a recurrence on an existing entry.
func (s *Store) escalate(ctx context.Context, entry *models.FailureLogEntry, event models.FailureEvent, similarity float64) error {
	reason := entry.Reason
	reason.RecurrenceCount++
	boost := recurrenceBoost
	if event.FailType == models.FailFalseHold {
		boost = recurrenceBoostFalseHold
	}
	reason.RiskWeight = reason.EffectiveRiskWeight() + boost
	reason.PastOutcome = fmt.Sprintf("Last occurrence %q returned %s%%", event.Name, event.ActualReturn.StringFixed(2))
	reason.Impact = event.ActualReturn
	reason.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateReason(ctx, entry.ID, reason); err != nil {
		return fmt.Errorf("failed to escalate failure %s: %w", entry.ID, err)
	}

	logger.Info("failure recurrence recorded",
		zap.String("entry_id", entry.ID),
		zap.String("event", event.Name),
		zap.Float64("similarity", similarity),
		zap.Int("recurrence_count", reason.RecurrenceCount),
		zap.Float64("risk_weight", reason.RiskWeight),
	)

	return nil
}

// insert records a brand-new failure pattern.
func (s *Store) insert(ctx context.Context, event models.FailureEvent, embedding []float32) error {
	weight, ok := baseRiskWeights[event.FailType]
	if !ok {
		weight = defaultRiskWeight
	}

	entry := &models.FailureLogEntry{
		OriginPatternID: event.PatternID,
		CorrectionRule:  correctionRules[event.FailType],
		RegimeContext:   event.Regime,
		Embedding:       embedding,
		Reason: models.FailReason{
			UpdatedAt:         time.Now().UTC(),
			FailType:          event.FailType,
			EventName:         event.Name,
			HistoricalContext: event.Description,
			LessonSummary:     fmt.Sprintf("%s on %q during %s regime lost %s%%", event.Decision, event.Name, event.Regime, event.ActualReturn.StringFixed(2)),
			PastOutcome:       fmt.Sprintf("Decision %s, actual return %s%%", event.Decision, event.ActualReturn.StringFixed(2)),
			RecommendedAction: recommendedActions[event.FailType],
			CorrectionHint:    fmt.Sprintf("Apply %s before finalizing similar decisions", correctionRules[event.FailType]),
			Impact:            event.ActualReturn,
			RiskWeight:        weight,
			RecurrenceCount:   1,
		},
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}

	logger.Info("new failure recorded",
		zap.String("entry_id", entry.ID),
		zap.String("event", event.Name),
		zap.String("fail_type", string(event.FailType)),
		zap.Float64("risk_weight", weight),
	)

	return nil
}
