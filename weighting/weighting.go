// Package weighting implements the influence-weighting engine: a pure,
// deterministic combination of a configured relationship score with a computed
// interest-alignment score. It has no side effects and no dependencies beyond
// core, so decision audits can be recomputed and verified offline.
package weighting

import "github.com/hupe1980/councilmesh/core"

// Default coefficients: the decision-maker favors trusted advisors but still
// rewards advisors whose priorities line up with its own.
const (
	DefaultRelationshipCoef = 0.6
	DefaultAlignmentCoef    = 0.4
)

// Config holds the combination coefficients. Callers may override per
// decision-maker; the zero value is replaced by the defaults.
type Config struct {
	RelationshipCoef float64
	AlignmentCoef    float64
}

// DefaultConfig returns the 0.6/0.4 default split.
func DefaultConfig() Config {
	return Config{RelationshipCoef: DefaultRelationshipCoef, AlignmentCoef: DefaultAlignmentCoef}
}

// Validate rejects negative coefficients. Coefficients need not sum to one;
// the final weight is clamped to [0,1] regardless.
func (c Config) Validate() error {
	if c.RelationshipCoef < 0 || c.AlignmentCoef < 0 {
		return core.NewConfigError("weighting", "coefficients must be non-negative, got %v/%v", c.RelationshipCoef, c.AlignmentCoef)
	}
	return nil
}

func (c Config) orDefault() Config {
	if c.RelationshipCoef == 0 && c.AlignmentCoef == 0 {
		return DefaultConfig()
	}
	return c
}

// Alignment computes the normalized similarity of two priority-weight maps
// over their shared dimensions:
//
//	dot          = Σ decider[d] * advisor[d]        for d in both maps
//	maxPossible  = Σ max(decider[d], advisor[d])    for d in both maps
//	alignment    = dot / maxPossible
//
// No shared dimensions, or a zero maxPossible, yields 0. The result is always
// in [0,1] and independent of map iteration order.
func Alignment(deciderWeights, advisorWeights map[string]float64) float64 {
	var dot, maxPossible float64
	for dim, dw := range deciderWeights {
		aw, ok := advisorWeights[dim]
		if !ok {
			continue
		}
		dot += dw * aw
		if dw > aw {
			maxPossible += dw
		} else {
			maxPossible += aw
		}
	}
	if maxPossible == 0 {
		return 0
	}
	return dot / maxPossible
}

// Weight combines the relationship score with the computed alignment into the
// final influence weight, clamped to [0,1].
func Weight(relationship float64, deciderWeights, advisorWeights map[string]float64, cfg Config) core.AdvisorWeight {
	cfg = cfg.orDefault()
	alignment := Alignment(deciderWeights, advisorWeights)
	final := cfg.RelationshipCoef*relationship + cfg.AlignmentCoef*alignment
	if final < 0 {
		final = 0
	}
	if final > 1 {
		final = 1
	}
	return core.AdvisorWeight{
		Relationship: relationship,
		Alignment:    alignment,
		Final:        final,
	}
}
