package decision

import (
	"math"

	"github.com/selivandex/macro-sentinel/pkg/models"
)

// Component weights of the unified risk blend.
const (
	weightMacro    = 0.35
	weightPattern  = 0.25
	weightMetaRAG  = 0.25
	weightMomentum = 0.15
)

// macroRiskByRegime maps each regime to its 0-100 macro risk component.
var macroRiskByRegime = map[models.Regime]float64{
	models.RegimeLiquidityCrisis:  100,
	models.RegimeStagflation:      80,
	models.RegimeInflationFear:    60,
	models.RegimeGrowthGoldilocks: 20,
}

// highRiskPatterns carry a 90-point pattern component; elevatedRiskPatterns
// carry 50. Everything else scores the 20-point floor.
var highRiskPatterns = map[string]struct{}{
	"P-005": {}, "P-005A": {}, "P-008": {}, "P-008B": {}, "P-028": {}, "P-047": {},
}

var elevatedRiskPatterns = map[string]struct{}{
	"P-001": {}, "P-001A": {}, "P-003": {},
}

// Label thresholds for the blended score.
const (
	highRiskThreshold     = 70.0
	moderateRiskThreshold = 40.0
)

// UnifiedRiskScorer blends regime, pattern, failure-memory and volatility
// risk into a single 0-100 score with an operator-facing label.
type UnifiedRiskScorer struct{}

// NewUnifiedRiskScorer creates new risk scorer
func NewUnifiedRiskScorer() *UnifiedRiskScorer {
	return &UnifiedRiskScorer{}
}

// Score computes the unified risk assessment for one decision.
func (s *UnifiedRiskScorer) Score(
	macro models.MacroSnapshot,
	regime models.Regime,
	patternID string,
	match *models.FailureMatch,
) models.UnifiedRisk {
	details := models.RiskDetails{
		Macro:    s.macroComponent(regime),
		Pattern:  s.patternComponent(patternID),
		MetaRAG:  s.metaRAGComponent(match),
		Momentum: s.momentumComponent(macro),
	}

	total := weightMacro*details.Macro +
		weightPattern*details.Pattern +
		weightMetaRAG*details.MetaRAG +
		weightMomentum*details.Momentum

	// Guard against float drift at the label boundaries.
	total = math.Round(total*100) / 100

	label, action := riskLabel(total)

	return models.UnifiedRisk{
		Score:   total,
		Label:   label,
		Action:  action,
		Details: details,
	}
}

func (s *UnifiedRiskScorer) macroComponent(regime models.Regime) float64 {
	if v, ok := macroRiskByRegime[regime]; ok {
		return v
	}
	return 40
}

func (s *UnifiedRiskScorer) patternComponent(patternID string) float64 {
	if _, ok := highRiskPatterns[patternID]; ok {
		return 90
	}
	if _, ok := elevatedRiskPatterns[patternID]; ok {
		return 50
	}
	return 20
}

func (s *UnifiedRiskScorer) metaRAGComponent(match *models.FailureMatch) float64 {
	if match == nil || match.OverrideLevel == models.OverrideNone {
		return 0
	}

	component := math.Min(match.RiskWeight*20, 100)
	if match.OverrideLevel == models.OverrideHard && component < 80 {
		component = 80
	}
	return component
}

func (s *UnifiedRiskScorer) momentumComponent(macro models.MacroSnapshot) float64 {
	vix := macro.Normalized().Value(models.IndicatorVIX)
	switch {
	case vix > 30:
		return 100
	case vix > 20:
		return 60
	default:
		return 20
	}
}

func riskLabel(score float64) (label, action string) {
	switch {
	case score >= highRiskThreshold:
		return "High Risk", "Reduce Position or Hold Cash"
	case score >= moderateRiskThreshold:
		return "Moderate Risk", "Trade Lightly"
	default:
		return "Low Risk", "Normal Operations"
	}
}
