// Package roster loads the council configuration: an explicit registry
// mapping role tags to participant dossiers, with the decision-maker and the
// advisor consultation order named up front. There is no directory scanning;
// one document defines the whole council.
package roster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/councilmesh/core"
)

// Role is one participant's dossier as it appears in the document.
type Role struct {
	Person        string             `yaml:"person"`
	Title         string             `yaml:"title"`
	Mandate       string             `yaml:"mandate"`
	Priorities    string             `yaml:"priorities"`
	Weights       map[string]float64 `yaml:"weights"`
	RedLines      []string           `yaml:"red_lines"`
	Relationships map[string]float64 `yaml:"relationships"`
}

// Document is the on-disk council definition.
type Document struct {
	// DecisionMaker names the role that weighs advice and decides.
	DecisionMaker string `yaml:"decision_maker"`

	// Advisors lists advisor roles in consultation order.
	Advisors []string `yaml:"advisors"`

	Roles map[string]Role `yaml:"roles"`
}

// Roster is the validated, loaded council.
type Roster struct {
	Decider  core.Participant
	Advisors []core.Participant // consultation order from the document
}

// Load reads and validates a council document from path.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates a council document. Every advisor listed must have a role
// entry, and the decision-maker must carry a relationship score for each.
func Parse(data []byte) (*Roster, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, core.NewConfigError("roster", "parse document: %v", err)
	}

	if doc.DecisionMaker == "" {
		return nil, core.NewConfigError("roster.decision_maker", "decision_maker is required")
	}
	if len(doc.Advisors) == 0 {
		return nil, core.NewConfigError("roster.advisors", "at least one advisor is required")
	}

	deciderRole, ok := doc.Roles[doc.DecisionMaker]
	if !ok {
		return nil, core.NewConfigError("roster.roles", "decision_maker %q has no role entry", doc.DecisionMaker)
	}
	if err := validateRole(doc.DecisionMaker, deciderRole); err != nil {
		return nil, err
	}

	roster := &Roster{
		Decider:  toParticipant(doc.DecisionMaker, deciderRole),
		Advisors: make([]core.Participant, 0, len(doc.Advisors)),
	}

	seen := make(map[string]bool, len(doc.Advisors))
	for _, tag := range doc.Advisors {
		if tag == doc.DecisionMaker {
			return nil, core.NewConfigError("roster.advisors", "decision_maker %q listed as advisor", tag)
		}
		if seen[tag] {
			return nil, core.NewConfigError("roster.advisors", "advisor %q listed twice", tag)
		}
		seen[tag] = true

		role, ok := doc.Roles[tag]
		if !ok {
			return nil, core.NewConfigError("roster.roles", "advisor %q has no role entry", tag)
		}
		if err := validateRole(tag, role); err != nil {
			return nil, err
		}
		if _, ok := deciderRole.Relationships[tag]; !ok {
			return nil, core.NewConfigError("roster.relationships",
				"decision_maker %q has no relationship score for advisor %q", doc.DecisionMaker, tag)
		}
		roster.Advisors = append(roster.Advisors, toParticipant(tag, role))
	}

	return roster, nil
}

func validateRole(tag string, r Role) error {
	for dim, w := range r.Weights {
		if w < 0 || w > 1 {
			return core.NewConfigError("roster.weights",
				"role %q weight %q must be in [0,1], got %v", tag, dim, w)
		}
	}
	for other, score := range r.Relationships {
		if score < 0 || score > 1 {
			return core.NewConfigError("roster.relationships",
				"role %q relationship with %q must be in [0,1], got %v", tag, other, score)
		}
	}
	return nil
}

func toParticipant(tag string, r Role) core.Participant {
	title := r.Title
	if title == "" {
		title = tag
	}
	return core.Participant{
		Role:          tag,
		Person:        r.Person,
		Title:         title,
		Mandate:       r.Mandate,
		Priorities:    r.Priorities,
		Weights:       r.Weights,
		RedLines:      r.RedLines,
		Relationships: r.Relationships,
	}
}
