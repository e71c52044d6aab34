package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeRosterFixture(t *testing.T) string {
	t.Helper()

	doc := `decision_maker: President
advisors:
  - SecDef
  - SecState
roles:
  President:
    person: Alex Vance
    title: President
    mandate: Balance national interests.
    weights:
      deterrence: 0.8
      economy: 0.9
    relationships:
      SecDef: 0.5
      SecState: 0.9
  SecDef:
    person: Dana Reyes
    title: Secretary of Defense
    mandate: Maintain military readiness.
    weights:
      deterrence: 0.9
  SecState:
    person: Sam Okafor
    title: Secretary of State
    mandate: Preserve alliances.
    weights:
      economy: 0.7
`
	path := filepath.Join(t.TempDir(), "council.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "dev")
}

func TestRosterCommandShowsComposition(t *testing.T) {
	path := writeRosterFixture(t)

	stdout, _, err := executeCLI(t, "roster", "--roster", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Decision-maker: Alex Vance (President)")
	assert.Contains(t, stdout, "Advisors (2, consultation order):")
	assert.Contains(t, stdout, "1. Dana Reyes (SecDef), relationship 0.50")
	assert.Contains(t, stdout, "2. Sam Okafor (SecState), relationship 0.90")
}

func TestRosterCommandMissingFile(t *testing.T) {
	_, _, err := executeCLI(t, "roster", "--roster", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDeliberateEndToEndWithMockProvider(t *testing.T) {
	rosterPath := writeRosterFixture(t)
	outDir := t.TempDir()

	stdout, _, err := executeCLI(t, "deliberate",
		"--roster", rosterPath,
		"--output", outDir,
		"--provider", "mock",
		"--seed", "1",
		"Border incident escalation",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Alex Vance decided after 2 consultations.")
	assert.Contains(t, stdout, "Report: ")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	decision, err := os.ReadFile(filepath.Join(outDir, entries[0].Name(), "decision.md"))
	require.NoError(t, err)
	assert.Contains(t, string(decision), "Border incident escalation")
	assert.Contains(t, string(decision), "Dana Reyes")
}

func TestDeliberateSharesMemoryAcrossScenarios(t *testing.T) {
	rosterPath := writeRosterFixture(t)
	outDir := t.TempDir()

	stdout, _, err := executeCLI(t, "deliberate",
		"--roster", rosterPath,
		"--output", outDir,
		"--provider", "mock",
		"First scenario",
		"Second scenario",
	)
	require.NoError(t, err)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Contains(t, stdout, "over 6 calls")
}

func TestDeliberateUnknownProviderFails(t *testing.T) {
	rosterPath := writeRosterFixture(t)

	_, _, err := executeCLI(t, "deliberate",
		"--roster", rosterPath,
		"--provider", "hal9000",
		"scenario",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestDeliberateRequiresScenario(t *testing.T) {
	_, _, err := executeCLI(t, "deliberate", "--provider", "mock")
	require.Error(t, err)
}

func TestMeetingsMissingRosterFails(t *testing.T) {
	_, _, err := executeCLI(t, "meetings",
		"--roster", filepath.Join(t.TempDir(), "absent.yaml"),
		"--provider", "mock",
		"scenario",
	)
	require.Error(t, err)
}
