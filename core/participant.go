package core

// Participant describes one configured council role. Instances are built once
// by the roster loader and treated as immutable afterwards; the engine only
// ever reads them.
type Participant struct {
	// Role is the stable tag used throughout the engine (e.g. "President",
	// "SecDef"). It keys relationship scores, memory streams and transcripts.
	Role string

	// Person is the display name of whoever currently holds the role.
	Person string

	// Title is the formal title rendered into prompts ("Secretary of Defense").
	Title string

	// Mandate and Priorities are free-text dossier sections injected verbatim
	// into the participant's role context.
	Mandate    string
	Priorities string

	// Weights maps named priority dimensions to values in [0,1]. The snapshot
	// attached to a Recommendation is copied from here.
	Weights map[string]float64

	// RedLines are the participant's non-negotiable constraint statements.
	RedLines []string

	// Relationships holds a decision-maker's trust score per advisor role.
	// Only meaningful on the decision-maker; empty for advisors.
	Relationships map[string]float64
}

// CloneWeights returns an independent copy of the priority-weight map so that
// snapshots stored on recommendations cannot alias the participant's map.
func (p *Participant) CloneWeights() map[string]float64 {
	if p.Weights == nil {
		return nil
	}
	cp := make(map[string]float64, len(p.Weights))
	for k, v := range p.Weights {
		cp[k] = v
	}
	return cp
}

// CloneRedLines returns an independent copy of the red-line constraints.
func (p *Participant) CloneRedLines() []string {
	if p.RedLines == nil {
		return nil
	}
	cp := make([]string, len(p.RedLines))
	copy(cp, p.RedLines)
	return cp
}
