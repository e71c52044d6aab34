// Package report persists completed runs: a lossless JSON record of the run
// state for audit and analysis, plus human-readable markdown documents for
// each meeting, the decision and the synthesized policy memo.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/councilmesh/core"
	"github.com/hupe1980/councilmesh/logging"
)

// Options configure a Writer.
type Options struct {
	// OutputDir is the root under which one session directory per run is
	// created. Defaults to ./output.
	OutputDir string

	// Logger defaults to NoOp if nil.
	Logger logging.Logger

	// Clock stamps the documents; override in tests.
	Clock func() time.Time
}

// Writer saves run records to disk.
type Writer struct {
	dir    string
	logger logging.Logger
	now    func() time.Time
}

// NewWriter creates a Writer.
func NewWriter(optFns ...func(o *Options)) *Writer {
	opts := Options{
		OutputDir: "./output",
		Logger:    logging.NoOpLogger{},
		Clock:     time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Writer{dir: opts.OutputDir, logger: logging.OrNoOp(opts.Logger), now: opts.Clock}
}

// SaveDeliberation writes a hub-and-spoke run: the decision document and the
// raw JSON record. It returns the session directory path.
func (w *Writer) SaveDeliberation(state *core.DeliberationState) (string, error) {
	dir, err := w.sessionDir("deliberation", state.RunID)
	if err != nil {
		return "", err
	}

	if err := w.writeFile(dir, "decision.md", DecisionDocument(state, w.now())); err != nil {
		return "", err
	}
	if err := w.writeJSON(dir, state); err != nil {
		return "", err
	}

	w.logger.Info("deliberation saved", "run_id", state.RunID, "dir", dir)
	return dir, nil
}

// SaveSequential writes a sequential-meeting run: one document per meeting,
// the policy memo, a session index and the raw JSON record. It returns the
// session directory path.
func (w *Writer) SaveSequential(state *core.MeetingState) (string, error) {
	dir, err := w.sessionDir("meetings", state.RunID)
	if err != nil {
		return "", err
	}
	now := w.now()

	for i, meeting := range state.Completed {
		name := meetingFilename(i+1, meeting)
		if err := w.writeFile(dir, name, MeetingDocument(meeting, i+1, state.Query, now)); err != nil {
			return "", err
		}
	}
	if state.Policy != nil {
		if err := w.writeFile(dir, "policy_memo.md", PolicyMemo(state, now)); err != nil {
			return "", err
		}
	}
	if err := w.writeFile(dir, "index.md", SessionIndex(state, filepath.Base(dir), now)); err != nil {
		return "", err
	}
	if err := w.writeJSON(dir, state); err != nil {
		return "", err
	}

	w.logger.Info("sequential run saved", "run_id", state.RunID, "dir", dir, "meetings", len(state.Completed))
	return dir, nil
}

func (w *Writer) sessionDir(kind, runID string) (string, error) {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	dir := filepath.Join(w.dir, fmt.Sprintf("%s_%s_%s", kind, w.now().Format("20060102_150405"), short))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	return dir, nil
}

func (w *Writer) writeFile(dir, name, content string) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (w *Writer) writeJSON(dir string, state any) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	return w.writeFile(dir, "raw_data.json", string(data))
}

func meetingFilename(number int, t core.MeetingTranscript) string {
	person := strings.ReplaceAll(t.Person, " ", "_")
	return fmt.Sprintf("meeting_%02d_%s_%s.md", number, t.Role, person)
}

// DecisionDocument renders a hub-and-spoke run as markdown.
func DecisionDocument(state *core.DeliberationState, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Council Decision Record\n\n")
	fmt.Fprintf(&b, "**Date:** %s\n", now.Format("January 2, 2006 at 3:04 PM"))
	fmt.Fprintf(&b, "**Run:** %s\n\n", state.RunID)
	fmt.Fprintf(&b, "## Question\n\n%s\n\n---\n\n", state.Query)

	b.WriteString("## Advisor Recommendations\n\n")
	for _, rec := range state.Recommendations {
		fmt.Fprintf(&b, "### %s (%s)\n\n%s\n\n", rec.Person, rec.Role, rec.Body)
	}

	if state.Decision != nil {
		b.WriteString("---\n\n## Decision\n\n")
		b.WriteString("**Influence weights:**\n\n")
		for _, w := range state.Decision.Weights {
			fmt.Fprintf(&b, "- %s: relationship %.2f, alignment %.2f, final %.2f\n",
				w.Role, w.Relationship, w.Alignment, w.Final)
		}
		fmt.Fprintf(&b, "\n%s\n\n", state.Decision.Body)
	}

	fmt.Fprintf(&b, "---\n\n**Run Statistics:**\n- Total tokens used: %d across %d calls\n",
		state.Usage.Total(), state.Usage.Calls)
	return b.String()
}

// MeetingDocument renders one advisor meeting as markdown.
func MeetingDocument(t core.MeetingTranscript, number int, scenario string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Council Meeting #%d: %s %s\n", number, t.Role, t.Person)
	fmt.Fprintf(&b, "**Date:** %s\n", now.Format("January 2, 2006 at 3:04 PM"))
	fmt.Fprintf(&b, "**Scenario:** %s\n\n---\n\n", clip(scenario, 200))

	fmt.Fprintf(&b, "## Problems Presented by %s\n\n", t.Role)
	for i, p := range t.Problems {
		fmt.Fprintf(&b, "### Problem %d: %s\n\n", i+1, p.Title)
		fmt.Fprintf(&b, "**Description:** %s\n\n", p.Description)
		fmt.Fprintf(&b, "**Initial Recommendation:** %s\n\n", p.Recommendation)
	}

	b.WriteString("---\n\n## Decision-Maker's Focus\n\n")
	fmt.Fprintf(&b, "**Selected Problem:** %s\n\n", t.Selected().Title)
	if t.Reason != "" {
		fmt.Fprintf(&b, "**Why This Problem:** %s\n\n", t.Reason)
	}
	fmt.Fprintf(&b, "**Question:**\n> %s\n\n", t.Question)

	fmt.Fprintf(&b, "---\n\n## %s's Response\n\n%s\n\n", t.Person, t.Answer)

	fmt.Fprintf(&b, "---\n\n**Meeting Statistics:**\n- Total tokens used: %d\n", t.Usage.Total())
	return b.String()
}

// PolicyMemo renders the synthesized policy document as markdown.
func PolicyMemo(state *core.MeetingState, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Council Policy Memorandum\n\n")
	fmt.Fprintf(&b, "**Date:** %s\n", now.Format("January 2, 2006"))
	fmt.Fprintf(&b, "**From:** %s\n\n---\n\n", state.Policy.Person)

	b.WriteString("## Context\n\n")
	fmt.Fprintf(&b, "This policy memorandum addresses: *%s*\n\n", clip(state.Query, 300))
	b.WriteString("This assessment is based on individual consultations with:\n")
	for _, meeting := range state.Completed {
		fmt.Fprintf(&b, "- %s %s\n", meeting.Role, meeting.Person)
	}
	b.WriteString("\n---\n\n")

	b.WriteString(state.Policy.Body)
	b.WriteString("\n\n---\n\n## Document Metadata\n\n")
	fmt.Fprintf(&b, "- **Generated:** %s\n", now.Format("January 2, 2006 at 3:04 PM"))
	fmt.Fprintf(&b, "- **Based on:** %d individual advisor consultations\n", len(state.Completed))
	fmt.Fprintf(&b, "- **Run tokens:** %d\n", state.Usage.Total())
	return b.String()
}

// SessionIndex renders the session index with links to the other documents.
func SessionIndex(state *core.MeetingState, sessionDir string, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Council Session Index\n\n")
	fmt.Fprintf(&b, "**Date:** %s\n", now.Format("January 2, 2006 at 3:04 PM"))
	fmt.Fprintf(&b, "**Session:** %s\n\n---\n\n", sessionDir)

	fmt.Fprintf(&b, "## Scenario\n\n%s\n\n---\n\n", state.Query)

	b.WriteString("## Individual Meeting Documents\n\n")
	for i, meeting := range state.Completed {
		name := meetingFilename(i+1, meeting)
		fmt.Fprintf(&b, "### Meeting %d: %s %s\n", i+1, meeting.Role, meeting.Person)
		fmt.Fprintf(&b, "- **Focus:** %s\n", meeting.Selected().Title)
		fmt.Fprintf(&b, "- **Document:** [%s](./%s)\n\n", name, name)
	}

	b.WriteString("---\n\n## Final Policy Memorandum\n\n")
	b.WriteString("- **Document:** [policy_memo.md](./policy_memo.md)\n\n")
	b.WriteString("---\n\n## Additional Files\n\n")
	b.WriteString("- **Raw Data (JSON):** [raw_data.json](./raw_data.json)\n")
	return b.String()
}

// clip shortens s to at most n bytes without splitting a multibyte rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
