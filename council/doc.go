// Package council implements the deliberation state machine. An Orchestrator
// drives one decision-maker and a fixed set of advisors through either the
// hub-and-spoke protocol (every advisor recommends, the decision-maker weighs
// and decides) or the sequential-meeting protocol (one-on-one meetings in
// randomized order followed by a synthesized policy document).
//
// All collaborator calls within a run are issued and awaited one at a time;
// the ordering is a correctness requirement because later participants see
// earlier participants' output. Independent runs may execute concurrently
// against shared collaborators.
package council
