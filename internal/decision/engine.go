package decision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/macro-sentinel/pkg/logger"
	"github.com/selivandex/macro-sentinel/pkg/metrics"
	"github.com/selivandex/macro-sentinel/pkg/models"
)

// Embedder produces fixed-length vectors for similarity search.
type Embedder interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// FailureChecker queries the failure memory for the strongest weighted match.
type FailureChecker interface {
	Check(ctx context.Context, embedding []float32, minSimilarity float64) (*models.FailureMatch, error)
}

// PatternRetriever searches the historical pattern library.
type PatternRetriever interface {
	Retrieve(ctx context.Context, text string, topK int) ([]models.PatternCandidate, error)
}

// StrategyRequest carries everything the strategy LLM is allowed to see.
type StrategyRequest struct {
	News       models.NewsItem
	Macro      models.MacroSnapshot
	Regime     models.Regime
	PatternID  string
	ZScore     float64
	WarningDoc string
	Context    map[string]string
}

// StrategyProvider generates the raw trading suggestion. A nil suggestion
// with nil error means the provider declined to suggest anything.
type StrategyProvider interface {
	GenerateStrategy(ctx context.Context, req *StrategyRequest) (*models.StrategySuggestion, error)
}

// OverrideNotifier receives decisions whose action was forced by a HARD
// override or the safety lock.
type OverrideNotifier interface {
	NotifyOverride(ctx context.Context, result *models.DecisionResult) error
}

// Config holds the engine's tunable thresholds.
type Config struct {
	// CheckMinSimilarity is the raw-similarity pre-filter for failure
	// lookups during a decision. The SOFT/HARD gates on the weighted score
	// are fixed and not configurable.
	CheckMinSimilarity float64
	// PatternTopK is how many library candidates to retrieve.
	PatternTopK int
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		CheckMinSimilarity: 0.45,
		PatternTopK:        3,
	}
}

// Z-score gates per regime for anomaly mode.
var anomalyZThresholds = map[models.Regime]float64{
	models.RegimeLiquidityCrisis: 1.2,
	models.RegimeInflationFear:   1.8,
	models.RegimeStagflation:     1.5,
}

const anomalyZThresholdDefault = 2.5

// stagflationLockPatterns trips the absolute safety lock in anomaly mode.
var stagflationLockPatterns = map[string]struct{}{
	"P-005": {}, "P-007": {}, "P-047": {},
}

// Input is one decision request.
type Input struct {
	News        models.NewsItem
	Macro       models.MacroSnapshot
	ZScore      float64
	ImpactScore float64
	Mode        models.DecisionMode
	Context     map[string]string
}

// Engine orchestrates one decision: failure-memory lookup, regime detection,
// pattern refinement, the raw strategy suggestion, and the override pipeline.
// An Engine holds only read-only configuration; calls are independent and
// safe to run concurrently.
type Engine struct {
	cfg       Config
	detector  *RegimeDetector
	refiner   *PatternRefiner
	scorer    *UnifiedRiskScorer
	explainer *RiskExplainer

	embedder Embedder
	failures FailureChecker
	patterns PatternRetriever
	strategy StrategyProvider

	notifier OverrideNotifier // optional
	audit    metrics.Buffer   // optional
}

// NewEngine creates new decision engine with injected collaborators.
// notifier and audit may be nil.
func NewEngine(
	cfg Config,
	embedder Embedder,
	failures FailureChecker,
	patterns PatternRetriever,
	strategy StrategyProvider,
	notifier OverrideNotifier,
	audit metrics.Buffer,
) *Engine {
	return &Engine{
		cfg:       cfg,
		detector:  NewRegimeDetector(),
		refiner:   NewPatternRefiner(),
		scorer:    NewUnifiedRiskScorer(),
		explainer: NewRiskExplainer(),
		embedder:  embedder,
		failures:  failures,
		patterns:  patterns,
		strategy:  strategy,
		notifier:  notifier,
		audit:     audit,
	}
}

// Decide runs the full decision pipeline for one news item. It either
// returns a complete DecisionResult or fails with ErrMissingMacroData; all
// collaborator failures short of that degrade and are logged.
func (e *Engine) Decide(ctx context.Context, in Input) (*models.DecisionResult, error) {
	if len(in.Macro) == 0 {
		return nil, models.ErrMissingMacroData
	}
	started := time.Now()

	macro := in.Macro.Normalized()

	// Failure-memory lookup. Store or embedding trouble degrades to Clean
	// rather than failing the decision.
	match, warningDoc := e.lookupFailureMemory(ctx, in.News)

	regime := e.detector.Detect(macro)
	patternID := e.retrievePattern(ctx, in.News, macro)

	result := &models.DecisionResult{
		Regime:        regime,
		Pattern:       patternID,
		ZScore:        in.ZScore,
		ImpactScore:   in.ImpactScore,
		MetaRAGStatus: models.MetaRAGClean,
		Ticker:        in.News.Ticker,
		Mode:          in.Mode,
		DecidedAt:     started,
	}
	if match != nil {
		result.MetaRAGStatus = models.MetaRAGWarning
	}

	// Anomaly mode carries two early exits: the stagflation safety lock and
	// the z-score noise filter. Both bypass the suggestion and the
	// correction pipeline entirely.
	if in.Mode == models.ModeAnomaly {
		if done := e.applyAnomalyGates(ctx, result, macro, regime, patternID, in.ZScore, match); done {
			e.recordAudit(result, in.News, started, true)
			return result, nil
		}
	}

	suggestion := e.generateSuggestion(ctx, in, macro, regime, patternID, warningDoc)

	rawAction := suggestion.Action
	state := ruleState{
		Action:      suggestion.Action,
		Reasons:     []string{e.tagSignalStrength(suggestion.Reason, in.Mode, in.ZScore)},
		Regime:      regime,
		ZScore:      in.ZScore,
		ImpactScore: in.ImpactScore,
		VIX:         macro.Value(models.IndicatorVIX),
		US10Y:       macro.Value(models.IndicatorUS10Y),
		DXY:         macro.Value(models.IndicatorDXY),
		Match:       match,
	}

	state = e.applyOverride(state, match, result)
	state = runCorrectionPipeline(state)

	result.Action = state.Action
	result.Reason = strings.Join(state.Reasons, " | ")
	result.Confidence = suggestion.Confidence
	result.UnifiedRisk = e.scorer.Score(macro, regime, patternID, match)
	result.RiskExplanation = e.explainer.Explain(match, rawAction, state.Action)

	e.notifyIfForced(ctx, result, match)
	e.recordAudit(result, in.News, started, rawAction != state.Action)

	logger.Info("decision made",
		zap.String("news_id", in.News.ID),
		zap.String("regime", string(regime)),
		zap.String("pattern", patternID),
		zap.String("raw_action", string(rawAction)),
		zap.String("action", string(result.Action)),
		zap.String("meta_rag", string(result.MetaRAGStatus)),
		zap.Float64("risk_score", result.UnifiedRisk.Score),
	)

	return result, nil
}

// lookupFailureMemory embeds the news text and queries the failure store.
// Returns the match (nil on miss or degrade) and the rendered warning doc.
func (e *Engine) lookupFailureMemory(ctx context.Context, news models.NewsItem) (*models.FailureMatch, string) {
	embedding, err := e.embedder.Generate(ctx, news.EmbeddingText())
	if err != nil {
		logger.Warn("embedding failed, skipping failure-memory lookup",
			zap.String("news_id", news.ID),
			zap.Error(err),
		)
		return nil, ""
	}

	match, err := e.failures.Check(ctx, embedding, e.cfg.CheckMinSimilarity)
	if err != nil {
		logger.Warn("failure-memory read failed, degrading to clean",
			zap.String("news_id", news.ID),
			zap.Error(err),
		)
		return nil, ""
	}
	if match == nil {
		return nil, ""
	}

	return match, renderWarningDoc(match)
}

// renderWarningDoc builds the failure-memory context block handed to the
// strategy LLM.
func renderWarningDoc(match *models.FailureMatch) string {
	reason := match.Entry.Reason
	var b strings.Builder
	fmt.Fprintf(&b, "[Failure Memory Warning — similarity %.1f%%]\n", match.Similarity*100)
	fmt.Fprintf(&b, "Event: %s\n", reason.EventName)
	fmt.Fprintf(&b, "Historical context: %s\n", reason.HistoricalContext)
	fmt.Fprintf(&b, "Past outcome: %s\n", reason.PastOutcome)
	fmt.Fprintf(&b, "Lesson: %s\n", reason.LessonSummary)
	fmt.Fprintf(&b, "Correction rule: %s\n", match.Entry.CorrectionRule)
	fmt.Fprintf(&b, "Recommended action: %s", reason.RecommendedAction)
	return b.String()
}

// retrievePattern fetches the best library pattern and refines it. Retrieval
// trouble degrades to an empty pattern.
func (e *Engine) retrievePattern(ctx context.Context, news models.NewsItem, macro models.MacroSnapshot) string {
	candidates, err := e.patterns.Retrieve(ctx, news.EmbeddingText(), e.cfg.PatternTopK)
	if err != nil {
		logger.Warn("pattern retrieval failed",
			zap.String("news_id", news.ID),
			zap.Error(err),
		)
		return ""
	}
	if len(candidates) == 0 {
		return ""
	}
	return e.refiner.Refine(candidates[0].PatternID, macro)
}

// applyAnomalyGates applies the safety lock and the z-score filter. Returns
// true when the decision is final and the pipeline must not run.
func (e *Engine) applyAnomalyGates(
	ctx context.Context,
	result *models.DecisionResult,
	macro models.MacroSnapshot,
	regime models.Regime,
	patternID string,
	zScore float64,
	match *models.FailureMatch,
) bool {
	if regime == models.RegimeStagflation {
		if _, locked := stagflationLockPatterns[basePatternID(patternID)]; locked {
			result.Action = models.ActionHoldCash
			result.Reason = "Stagflation Exception Rule (Safety Lock Triggered)"
			result.UnifiedRisk = e.scorer.Score(macro, regime, patternID, match)
			logger.Warn("safety lock triggered",
				zap.String("pattern", patternID),
				zap.String("regime", string(regime)),
			)
			e.notifyIfForced(ctx, result, match)
			return true
		}
	}

	threshold := anomalyZThresholdDefault
	if t, ok := anomalyZThresholds[regime]; ok {
		threshold = t
	}
	if zScore < threshold {
		result.Action = models.ActionSkip
		result.Reason = fmt.Sprintf("Low Z-Score (%.2f < %.2f): Noise Filtered", zScore, threshold)
		result.UnifiedRisk = e.scorer.Score(macro, regime, patternID, match)
		return true
	}

	return false
}

// basePatternID strips the refinement letter so lock tables can be keyed on
// coarse IDs.
func basePatternID(patternID string) string {
	if len(patternID) == 6 && patternID[len(patternID)-1] >= 'A' && patternID[len(patternID)-1] <= 'Z' {
		return patternID[:5]
	}
	return patternID
}

// generateSuggestion calls the strategy provider, defaulting to a HOLD when
// the provider declines or fails.
func (e *Engine) generateSuggestion(
	ctx context.Context,
	in Input,
	macro models.MacroSnapshot,
	regime models.Regime,
	patternID string,
	warningDoc string,
) models.StrategySuggestion {
	req := &StrategyRequest{
		News:       in.News,
		Macro:      macro,
		Regime:     regime,
		PatternID:  patternID,
		ZScore:     in.ZScore,
		WarningDoc: warningDoc,
		Context:    in.Context,
	}

	suggestion, err := e.strategy.GenerateStrategy(ctx, req)
	if err != nil {
		logger.Warn("strategy generation failed, defaulting to HOLD",
			zap.String("news_id", in.News.ID),
			zap.Error(err),
		)
		return models.StrategySuggestion{Action: models.ActionHold, Reason: "No strategy suggestion available", Confidence: 0}
	}
	if suggestion == nil {
		return models.StrategySuggestion{Action: models.ActionHold, Reason: "No strategy suggestion available", Confidence: 0}
	}
	return *suggestion
}

// tagSignalStrength annotates the raw reason with the z-score band in
// general mode. Anomaly mode already gated on z-score.
func (e *Engine) tagSignalStrength(reason string, mode models.DecisionMode, zScore float64) string {
	if mode != models.ModeGeneral {
		return reason
	}
	label := "WEAK"
	switch {
	case zScore >= 4.0:
		label = "STRONG"
	case zScore >= 2.5:
		label = "NORMAL"
	}
	return fmt.Sprintf("[Signal: %s] %s", label, reason)
}

// applyOverride applies the failure-memory override to the raw suggestion.
func (e *Engine) applyOverride(state ruleState, match *models.FailureMatch, result *models.DecisionResult) ruleState {
	if match == nil {
		return state
	}

	switch match.OverrideLevel {
	case models.OverrideHard:
		result.MetaRAGStatus = models.MetaRAGWarningHard
		state.Action = models.ActionHoldCash
		state.Reasons = []string{fmt.Sprintf(
			"Meta-RAG HARD override: repeat of %q (weighted score %.2f), forcing HOLD_CASH",
			match.Entry.Reason.EventName, match.WeightedScore,
		)}
	case models.OverrideSoft:
		result.MetaRAGStatus = models.MetaRAGWarningSoft
		if state.Action == models.ActionSell || state.Action == models.ActionBuy {
			downgraded := state.Action
			state.Action = models.ActionHold
			state.Reasons = append(state.Reasons, fmt.Sprintf(
				"Meta-RAG SOFT override: %s downgraded to HOLD (similar to %q)",
				downgraded, match.Entry.Reason.EventName,
			))
		} else {
			state.Reasons = append(state.Reasons, fmt.Sprintf(
				"Meta-RAG caution: similar to past failure %q", match.Entry.Reason.EventName,
			))
		}
	}

	return state
}

// notifyIfForced pushes an alert for HARD overrides and safety-lock trips.
func (e *Engine) notifyIfForced(ctx context.Context, result *models.DecisionResult, match *models.FailureMatch) {
	if e.notifier == nil {
		return
	}
	hard := match != nil && match.OverrideLevel == models.OverrideHard
	locked := result.Action == models.ActionHoldCash && strings.Contains(result.Reason, "Safety Lock")
	if !hard && !locked {
		return
	}
	if err := e.notifier.NotifyOverride(ctx, result); err != nil {
		logger.Warn("override notification failed", zap.Error(err))
	}
}

// recordAudit appends the decision to the audit trail when configured.
func (e *Engine) recordAudit(result *models.DecisionResult, news models.NewsItem, started time.Time, overridden bool) {
	if e.audit == nil {
		return
	}
	metric := &metrics.DecisionMetric{
		Timestamp:       started,
		NewsID:          news.ID,
		Ticker:          result.Ticker,
		Mode:            string(result.Mode),
		Regime:          string(result.Regime),
		Pattern:         result.Pattern,
		Action:          string(result.Action),
		MetaRAGStatus:   string(result.MetaRAGStatus),
		RiskScore:       result.UnifiedRisk.Score,
		RiskLabel:       result.UnifiedRisk.Label,
		ZScore:          result.ZScore,
		ImpactScore:     result.ImpactScore,
		Confidence:      result.Confidence,
		Overridden:      overridden,
		ExecutionTimeMs: int(time.Since(started).Milliseconds()),
	}
	if err := e.audit.Add(metric); err != nil {
		logger.Warn("failed to record decision audit", zap.Error(err))
	}
}
