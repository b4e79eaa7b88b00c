package decision

import (
	"github.com/selivandex/macro-sentinel/pkg/models"
)

// Coarse pattern IDs with refinement rules.
const (
	PatternYieldSpike     = "P-001"
	PatternInflationShock = "P-005"
	PatternGeopolitical   = "P-008"
)

// refineRule maps one coarse pattern ID to its sub-variant decision.
type refineRule struct {
	// Pick returns the refined sub-variant for the snapshot.
	Pick func(macro models.MacroSnapshot) string
}

// PatternRefiner turns coarse historical-pattern IDs into lettered
// sub-variants based on the current macro context. It is a pure function of
// its inputs; unknown IDs pass through unchanged and malformed indicator
// values fall back to defaults instead of failing.
type PatternRefiner struct {
	rules map[string]refineRule
}

// NewPatternRefiner creates new pattern refiner
func NewPatternRefiner() *PatternRefiner {
	return &PatternRefiner{
		rules: map[string]refineRule{
			// Yield spike: a >5% weekly move in the 10-year is the damaging
			// variant, anything slower is benign.
			PatternYieldSpike: {
				Pick: func(macro models.MacroSnapshot) string {
					if macro.Change1W(models.IndicatorUS10Y) > 5.0 {
						return PatternYieldSpike + "A"
					}
					return PatternYieldSpike + "B"
				},
			},
			// Inflation shock: rising CPI is the bad variant, falling is the
			// relief variant.
			PatternInflationShock: {
				Pick: func(macro models.MacroSnapshot) string {
					if macro.Change1W(models.IndicatorCPI) > 0 {
						return PatternInflationShock + "A"
					}
					return PatternInflationShock + "B"
				},
			},
			// Geopolitical: above VIX 35 the panic has peaked and the
			// contrarian-buy variant applies; below it we are still in the
			// rumor stage.
			PatternGeopolitical: {
				Pick: func(macro models.MacroSnapshot) string {
					if macro.Value(models.IndicatorVIX) > 35.0 {
						return PatternGeopolitical + "B"
					}
					return PatternGeopolitical + "A"
				},
			},
		},
	}
}

// Refine returns the sub-variant for a coarse pattern ID given the current
// macro snapshot.
func (r *PatternRefiner) Refine(patternID string, macro models.MacroSnapshot) string {
	rule, ok := r.rules[patternID]
	if !ok {
		return patternID
	}
	return rule.Pick(macro.Normalized())
}
