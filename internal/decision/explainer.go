package decision

import (
	"fmt"
	"strings"

	"github.com/selivandex/macro-sentinel/pkg/models"
)

// Operator recommendations rendered per override level. Kept verbatim from
// the desk's runbook wording.
const (
	recommendationHard = "포지션 최소화 및 유동성 확보"
	recommendationSoft = "분할 매매 및 리스크 관리 강화"
)

// RiskExplainer renders the human-readable justification attached to a
// decision that was touched by the failure memory.
type RiskExplainer struct{}

// NewRiskExplainer creates new risk explainer
func NewRiskExplainer() *RiskExplainer {
	return &RiskExplainer{}
}

// Explain renders the override justification. Returns an empty string when
// no failure match influenced the decision.
func (e *RiskExplainer) Explain(match *models.FailureMatch, originalAction, finalAction models.Action) string {
	if match == nil || match.OverrideLevel == models.OverrideNone {
		return ""
	}

	var b strings.Builder

	fmt.Fprintf(&b, "[Meta-RAG Risk Override: %s]\n", match.OverrideLevel)
	fmt.Fprintf(&b, "Cause: %s (recurred %d time(s), origin pattern %s)\n",
		e.causeClause(match.Entry.Reason.FailType),
		match.Entry.Reason.RecurrenceCount,
		match.Entry.OriginPatternID,
	)

	if originalAction != finalAction {
		fmt.Fprintf(&b, "System action: %s → %s\n", originalAction, finalAction)
	} else {
		fmt.Fprintf(&b, "System action: %s maintained, caution advised\n", finalAction)
	}

	recommendation := recommendationSoft
	if match.OverrideLevel == models.OverrideHard {
		recommendation = recommendationHard
	}
	fmt.Fprintf(&b, "Recommendation: %s", recommendation)

	return b.String()
}

func (e *RiskExplainer) causeClause(failType models.FailType) string {
	switch failType {
	case models.FailFalseSell:
		return "a premature SELL in a similar setup previously locked in losses"
	case models.FailFalseBuy:
		return "a BUY into a similar setup previously bought a falling knife"
	default:
		return "a similar setup previously led to a costly decision error"
	}
}
