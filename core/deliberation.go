package core

import "time"

// Recommendation is one advisor's contribution to a hub-and-spoke run.
// Created once per advisor per deliberation and never mutated afterwards.
type Recommendation struct {
	Role     string             `json:"role"`
	Person   string             `json:"person"`
	Body     string             `json:"body"`
	Weights  map[string]float64 `json:"weights"` // snapshot of the advisor's priority weights
	RedLines []string           `json:"red_lines,omitempty"`
	Index    int                `json:"index"` // creation order within the run
	Usage    TokenUsage         `json:"token_usage"`
}

// AdvisorWeight is the decision-maker's influence breakdown for one advisor.
type AdvisorWeight struct {
	Role         string  `json:"role"`
	Relationship float64 `json:"relationship_score"`
	Alignment    float64 `json:"alignment_score"`
	Final        float64 `json:"final_weight"`
}

// Decision is the terminal output of a hub-and-spoke run. Weights is ordered
// as the advisors were consulted and references only advisors whose
// Recommendation exists in the run state.
type Decision struct {
	Role    string          `json:"role"`
	Person  string          `json:"person"`
	Body    string          `json:"body"`
	Weights []AdvisorWeight `json:"advisor_weights"`
	Usage   TokenUsage      `json:"token_usage"`
}

// AuditEntry records one step of a run for the persisted audit trail.
type AuditEntry struct {
	Step   string         `json:"step"`
	Role   string         `json:"role,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
	At     time.Time      `json:"at"`
}

// DeliberationState is the mutable working record of one hub-and-spoke run.
// It is owned exclusively by the orchestrator for the run's duration and
// handed to the caller at the terminal state.
type DeliberationState struct {
	RunID           string                    `json:"run_id"`
	Query           string                    `json:"query"`
	Context         string                    `json:"context"`
	Memories        map[string][]ScoredMemory `json:"memories,omitempty"`
	Recommendations []Recommendation          `json:"recommendations"`
	Decision        *Decision                 `json:"decision,omitempty"`
	Audit           []AuditEntry              `json:"audit_trail"`
	Usage           Usage                     `json:"usage"`
}

// HasRecommendation reports whether an advisor already contributed to the run.
func (s *DeliberationState) HasRecommendation(role string) bool {
	for _, r := range s.Recommendations {
		if r.Role == role {
			return true
		}
	}
	return false
}

// AddAudit appends an audit entry stamped with the current time.
func (s *DeliberationState) AddAudit(step, role string, detail map[string]any) {
	s.Audit = append(s.Audit, AuditEntry{Step: step, Role: role, Detail: detail, At: time.Now().UTC()})
}
