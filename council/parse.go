package council

import (
	"fmt"
	"strings"

	"github.com/hupe1980/councilmesh/core"
)

// parseProblems extracts the structured problem list from an advisor's
// response. The advisor must return exactly three problems; anything else is
// an invalid response and subject to the normal retry policy.
func parseProblems(content string) ([]core.Problem, error) {
	var problems []core.Problem
	var current *core.Problem
	var field *string

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, "**PROBLEM") {
			if current != nil {
				problems = append(problems, *current)
			}
			current = &core.Problem{}
			field = nil
			continue
		}
		if current == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Title:"):
			current.Title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
			field = &current.Title
		case strings.HasPrefix(line, "Description:"):
			current.Description = strings.TrimSpace(strings.TrimPrefix(line, "Description:"))
			field = &current.Description
		case strings.HasPrefix(line, "Initial Recommendation:"):
			current.Recommendation = strings.TrimSpace(strings.TrimPrefix(line, "Initial Recommendation:"))
			field = &current.Recommendation
		default:
			// continuation of the current field
			if field != nil && line != "" {
				if *field != "" {
					*field += " " + line
				} else {
					*field = line
				}
			}
		}
	}
	if current != nil {
		problems = append(problems, *current)
	}

	if len(problems) != core.ProblemsPerMeeting {
		return nil, core.NewCollaboratorError(core.CollaboratorInvalidResponse, "parse problems",
			fmt.Errorf("expected %d problems, parsed %d", core.ProblemsPerMeeting, len(problems)))
	}
	for i, p := range problems {
		if p.Title == "" {
			return nil, core.NewCollaboratorError(core.CollaboratorInvalidResponse, "parse problems",
				fmt.Errorf("problem %d has no title", i+1))
		}
	}
	return problems, nil
}

// selection is the decision-maker's parsed problem choice.
type selection struct {
	Index    int // zero-based into the presented problems
	Reason   string
	Question string
}

// parseSelection extracts the selected problem number, the reason and the
// follow-up question from the decision-maker's response.
func parseSelection(content string, problemCount int) (*selection, error) {
	sel := &selection{Index: -1}
	var field *string

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "**SELECTED PROBLEM"):
			field = nil
			for i := 1; i <= problemCount; i++ {
				if strings.Contains(line, fmt.Sprintf("%d", i)) {
					sel.Index = i - 1
					break
				}
			}
		case strings.HasPrefix(line, "**REASON"):
			sel.Reason = trimMarker(line, "**REASON**")
			field = &sel.Reason
		case strings.HasPrefix(line, "**QUESTION"):
			sel.Question = trimMarker(line, "**QUESTION**")
			field = &sel.Question
		default:
			if field != nil && line != "" {
				if *field != "" {
					*field += " " + line
				} else {
					*field = line
				}
			}
		}
	}

	if sel.Index < 0 || sel.Index >= problemCount {
		return nil, core.NewCollaboratorError(core.CollaboratorInvalidResponse, "parse selection",
			fmt.Errorf("no valid problem number in range 1..%d", problemCount))
	}
	if sel.Question == "" {
		return nil, core.NewCollaboratorError(core.CollaboratorInvalidResponse, "parse selection",
			fmt.Errorf("no follow-up question"))
	}
	return sel, nil
}

func trimMarker(line, marker string) string {
	line = strings.TrimPrefix(line, marker+":")
	line = strings.TrimPrefix(line, marker)
	return strings.TrimSpace(line)
}
