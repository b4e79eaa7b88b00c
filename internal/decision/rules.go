package decision

import (
	"fmt"

	"github.com/selivandex/macro-sentinel/pkg/models"
)

// ruleState is the mutable decision state threaded through the correction
// pipeline. Rules are pure: each returns a new state and never touches
// anything outside it.
type ruleState struct {
	Action      models.Action
	Reasons     []string
	Regime      models.Regime
	ZScore      float64
	ImpactScore float64
	VIX         float64
	US10Y       float64
	DXY         float64
	Match       *models.FailureMatch
}

func (s ruleState) withAction(action models.Action, reason string) ruleState {
	s.Action = action
	s.Reasons = append(s.Reasons, reason)
	return s
}

// CorrectionRule is one post-override rewrite of the action. The pipeline
// order is part of the contract: later rules win disagreements.
type CorrectionRule struct {
	Name  string
	Apply func(s ruleState) ruleState
}

// correctionPipeline is the fixed rule sequence applied after the meta-RAG
// override. Momentum priority deliberately runs after trend confirmation and
// may override it.
var correctionPipeline = []CorrectionRule{
	{Name: "hold_restriction", Apply: applyHoldRestriction},
	{Name: "trend_confirmation", Apply: applyTrendConfirmation},
	{Name: "momentum_priority", Apply: applyMomentumPriority},
	{Name: "meta_rag_hold_correction", Apply: applyMetaRAGHoldCorrection},
}

// applyHoldRestriction breaks a HOLD when the day's impact is large enough
// that sitting out is itself a bet. Boundaries are strict: |5.0| exactly
// leaves the action unchanged.
func applyHoldRestriction(s ruleState) ruleState {
	if !s.Action.IsHoldLike() {
		return s
	}
	if s.ImpactScore > 5.0 {
		return s.withAction(models.ActionBuy,
			fmt.Sprintf("Hold Restriction: impact %.2f > 5.0 forces BUY", s.ImpactScore))
	}
	if s.ImpactScore < -5.0 {
		return s.withAction(models.ActionSell,
			fmt.Sprintf("Hold Restriction: impact %.2f < -5.0 forces SELL", s.ImpactScore))
	}
	return s
}

// applyTrendConfirmation converts a lingering HOLD into a directional action
// when enough independent macro conditions line up.
func applyTrendConfirmation(s ruleState) ruleState {
	if !s.Action.IsHoldLike() {
		return s
	}

	score := 0
	if s.VIX < 20 {
		score++
	}
	if s.US10Y < 4.0 {
		score++
	}
	if s.DXY < 102 {
		score++
	}
	if s.ZScore > 0.5 {
		score++
	}
	if s.ImpactScore > 2.0 {
		score++
	}

	if score < 2 {
		return s
	}

	if s.ZScore > -1.0 {
		return s.withAction(models.ActionBuy,
			fmt.Sprintf("Trend Confirmation: %d/5 conditions support entry, BUY", score))
	}
	return s.withAction(models.ActionSell,
		fmt.Sprintf("Trend Confirmation: %d/5 conditions with negative z-score, SELL", score))
}

// applyMomentumPriority enforces the bull-proxy posture: calm volatility in a
// benign regime always rides the trend, while crisis volatility pushes a
// HOLD into cash.
func applyMomentumPriority(s ruleState) ruleState {
	bullProxy := s.VIX < 20 &&
		(s.Regime == models.RegimeNeutral || s.Regime == models.RegimeGrowthGoldilocks)

	if bullProxy && s.Action != models.ActionBuy {
		return s.withAction(models.ActionBuy,
			"Momentum Priority: bull proxy (low VIX, benign regime) forces BUY")
	}

	if (s.VIX > 30 || s.Regime == models.RegimeLiquidityCrisis) && s.Action == models.ActionHold {
		return s.withAction(models.ActionHoldCash,
			"Momentum Priority: crisis volatility, HOLD upgraded to HOLD_CASH")
	}

	return s
}

// applyMetaRAGHoldCorrection breaks a HOLD when the failure memory says
// holding is exactly the mistake that keeps recurring.
func applyMetaRAGHoldCorrection(s ruleState) ruleState {
	if s.Match == nil || !s.Action.IsHoldLike() {
		return s
	}
	if s.Match.RiskWeight < 3.0 || s.Match.Entry.Reason.FailType != models.FailFalseHold {
		return s
	}

	if s.ZScore >= 0 {
		return s.withAction(models.ActionBuy,
			"Meta-RAG Hold Correction: repeated false_hold failures, BUY")
	}
	return s.withAction(models.ActionSell,
		"Meta-RAG Hold Correction: repeated false_hold failures, SELL")
}

// runCorrectionPipeline folds the state through the ordered rule list.
func runCorrectionPipeline(s ruleState) ruleState {
	for _, rule := range correctionPipeline {
		s = rule.Apply(s)
	}
	return s
}
