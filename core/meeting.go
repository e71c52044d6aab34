package core

import "time"

// ProblemsPerMeeting is the number of candidate problems an advisor must
// present in every sequential meeting.
const ProblemsPerMeeting = 3

// Problem is one candidate problem presented during a sequential meeting.
type Problem struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"initial_recommendation"`
}

// MeetingTranscript records one completed advisor meeting: the problems
// presented, the decision-maker's selection with follow-up question, and the
// advisor's answer. Transcripts are visible to all subsequent meetings.
type MeetingTranscript struct {
	Role          string     `json:"role"`
	Person        string     `json:"person"`
	Problems      []Problem  `json:"problems"` // exactly ProblemsPerMeeting entries
	SelectedIndex int        `json:"selected_index"`
	Reason        string     `json:"reason,omitempty"`
	Question      string     `json:"question"`
	Answer        string     `json:"answer"`
	Usage         TokenUsage `json:"token_usage"`
}

// Selected returns the problem the decision-maker chose to pursue.
func (t *MeetingTranscript) Selected() Problem {
	if t.SelectedIndex < 0 || t.SelectedIndex >= len(t.Problems) {
		return Problem{}
	}
	return t.Problems[t.SelectedIndex]
}

// PolicyDocument is the synthesized outcome of a sequential-meeting run.
type PolicyDocument struct {
	Role   string     `json:"role"`
	Person string     `json:"person"`
	Body   string     `json:"body"`
	Usage  TokenUsage `json:"token_usage"`
}

// MeetingState is the mutable working record of one sequential-meeting run.
// AdvisorOrder is a permutation of the configured advisor set, generated once
// at initialization from the orchestrator's seeded random source.
type MeetingState struct {
	RunID        string                    `json:"run_id"`
	Query        string                    `json:"query"`
	Context      string                    `json:"context"`
	Memories     map[string][]ScoredMemory `json:"memories,omitempty"`
	AdvisorOrder []string                  `json:"advisor_order"`
	Completed    []MeetingTranscript       `json:"completed_meetings"`
	Policy       *PolicyDocument           `json:"policy_document,omitempty"`
	Audit        []AuditEntry              `json:"audit_trail"`
	Usage        Usage                     `json:"usage"`
}

// AddAudit appends an audit entry stamped with the current time.
func (s *MeetingState) AddAudit(step, role string, detail map[string]any) {
	s.Audit = append(s.Audit, AuditEntry{Step: step, Role: role, Detail: detail, At: time.Now().UTC()})
}
