package council

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/councilmesh/core"
	"github.com/hupe1980/councilmesh/model"
)

func testDecider() core.Participant {
	return core.Participant{
		Role:    "President",
		Person:  "Alex Vance",
		Title:   "President",
		Weights: map[string]float64{"x": 1.0},
		Relationships: map[string]float64{
			"AdvisorA": 0.5,
			"AdvisorB": 0.9,
		},
	}
}

func testAdvisors() []core.Participant {
	return []core.Participant{
		{Role: "AdvisorA", Person: "Dana Reyes", Title: "Secretary of Trade", Weights: map[string]float64{"x": 1.0}},
		{Role: "AdvisorB", Person: "Sam Okafor", Title: "Secretary of Defense", Weights: map[string]float64{"x": 0.2}},
	}
}

// fastRetry keeps test retries instant.
func fastRetry(o *Options) {
	o.Retry = RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

type appendedMemory struct {
	role       string
	kind       core.MemoryKind
	content    string
	importance float64
}

type fakeMemory struct {
	mu       sync.Mutex
	appends  []appendedMemory
	recalled map[string][]core.ScoredMemory
}

func (f *fakeMemory) Append(_ context.Context, role string, kind core.MemoryKind, content string, importance float64) (*core.MemoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends = append(f.appends, appendedMemory{role: role, kind: kind, content: content, importance: importance})
	return &core.MemoryRecord{ID: core.NewID(), Role: role, Kind: kind, Content: content, Importance: importance}, nil
}

func (f *fakeMemory) Retrieve(_ context.Context, role, _ string, _ int) ([]core.ScoredMemory, error) {
	return f.recalled[role], nil
}

func (f *fakeMemory) Count(role string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.appends {
		if a.role == role {
			n++
		}
	}
	return n
}

func (f *fakeMemory) Clear(string) {}
func (f *fakeMemory) ClearAll()   {}

type fakeRetriever struct {
	chunks []core.Chunk
}

func (f *fakeRetriever) Embed(context.Context, string) ([]float32, error) {
	return []float32{1}, nil
}

func (f *fakeRetriever) Search(context.Context, string, int) ([]core.Chunk, error) {
	return f.chunks, nil
}

func TestNewValidation(t *testing.T) {
	gen := model.NewMockGenerator("mock")

	t.Run("nil generator", func(t *testing.T) {
		_, err := New(testDecider(), testAdvisors(), nil)
		require.Error(t, err)
		assert.True(t, core.IsConfiguration(err))
	})

	t.Run("empty advisor set", func(t *testing.T) {
		_, err := New(testDecider(), nil, gen)
		require.Error(t, err)
		assert.True(t, core.IsConfiguration(err))
	})

	t.Run("missing relationship score", func(t *testing.T) {
		decider := testDecider()
		delete(decider.Relationships, "AdvisorB")
		_, err := New(decider, testAdvisors(), gen)
		require.Error(t, err)
		assert.True(t, core.IsConfiguration(err))
		assert.Contains(t, err.Error(), "AdvisorB")
	})

	t.Run("duplicate advisor roles", func(t *testing.T) {
		advisors := append(testAdvisors(), core.Participant{Role: "AdvisorA"})
		_, err := New(testDecider(), advisors, gen)
		require.Error(t, err)
	})
}

func TestDeliberate(t *testing.T) {
	gen := model.NewMockGenerator("mock")
	gen.Enqueue("ALPHA-REC")
	gen.Enqueue("BETA-REC")
	gen.Enqueue("FINAL-DECISION")

	mem := &fakeMemory{}
	orch, err := New(testDecider(), testAdvisors(), gen, fastRetry, func(o *Options) {
		o.Memory = mem
	})
	require.NoError(t, err)

	state, err := orch.Deliberate(context.Background(), "How do we respond to the tariff round?")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.NotEmpty(t, state.RunID)

	// recommendations in configuration order with creation indices
	require.Len(t, state.Recommendations, 2)
	assert.Equal(t, "AdvisorA", state.Recommendations[0].Role)
	assert.Equal(t, "ALPHA-REC", state.Recommendations[0].Body)
	assert.Equal(t, 0, state.Recommendations[0].Index)
	assert.Equal(t, "AdvisorB", state.Recommendations[1].Role)
	assert.Equal(t, 1, state.Recommendations[1].Index)

	// decision carries the full weight audit: A 0.6*0.5+0.4*1.0=0.70,
	// B 0.6*0.9+0.4*0.2=0.62, so A outweighs B despite B's relationship
	require.NotNil(t, state.Decision)
	assert.Equal(t, "FINAL-DECISION", state.Decision.Body)
	require.Len(t, state.Decision.Weights, 2)
	assert.InDelta(t, 0.70, state.Decision.Weights[0].Final, 1e-9)
	assert.InDelta(t, 0.62, state.Decision.Weights[1].Final, 1e-9)

	// three generation calls, usage accumulated
	assert.Equal(t, 3, gen.CallCount())
	assert.Equal(t, 45, state.Usage.Total())
	assert.Equal(t, 3, state.Usage.Calls)

	// one observation per participant, decision-maker's names the top advisor
	require.Len(t, mem.appends, 3)
	assert.Equal(t, "AdvisorA", mem.appends[0].role)
	assert.Equal(t, 0.7, mem.appends[0].importance)
	assert.Equal(t, "President", mem.appends[2].role)
	assert.Equal(t, 0.9, mem.appends[2].importance)
	assert.Contains(t, mem.appends[2].content, "most weight to AdvisorA")

	// audit trail covers the weighting computations
	var weightEntries int
	for _, e := range state.Audit {
		if e.Step == "advisor_weight" {
			weightEntries++
		}
	}
	assert.Equal(t, 2, weightEntries)
}

func TestDeliberateVisibilityChain(t *testing.T) {
	gen := model.NewMockGenerator("mock")
	gen.Enqueue("ALPHA-REC")
	gen.Enqueue("BETA-REC")
	gen.Enqueue("FINAL-DECISION")

	orch, err := New(testDecider(), testAdvisors(), gen, fastRetry)
	require.NoError(t, err)

	_, err = orch.Deliberate(context.Background(), "query")
	require.NoError(t, err)

	reqs := gen.Requests()
	require.Len(t, reqs, 3)

	// first advisor sees no prior recommendations
	assert.NotContains(t, reqs[0].Prompt, "Other Advisors' Recommendations")
	// second advisor sees the first advisor's output, not vice versa
	assert.Contains(t, reqs[1].Prompt, "ALPHA-REC")
	assert.NotContains(t, reqs[0].Prompt, "BETA-REC")
	// the decision-maker sees both plus the computed weights
	assert.Contains(t, reqs[2].Prompt, "ALPHA-REC")
	assert.Contains(t, reqs[2].Prompt, "BETA-REC")
	assert.Contains(t, reqs[2].Prompt, "0.70")
}

func TestDeliberateVisibilityFollowsOrder(t *testing.T) {
	gen := model.NewMockGenerator("mock")
	gen.Enqueue("BETA-REC")
	gen.Enqueue("ALPHA-REC")
	gen.Enqueue("FINAL-DECISION")

	// reversed configuration order flips who sees whom
	advisors := testAdvisors()
	advisors[0], advisors[1] = advisors[1], advisors[0]
	orch, err := New(testDecider(), advisors, gen, fastRetry)
	require.NoError(t, err)

	_, err = orch.Deliberate(context.Background(), "query")
	require.NoError(t, err)

	reqs := gen.Requests()
	assert.Contains(t, reqs[0].System, "Sam Okafor")
	assert.Contains(t, reqs[1].Prompt, "BETA-REC")
}

func TestDeliberateRetriesTransientFailures(t *testing.T) {
	gen := model.NewMockGenerator("mock")
	gen.EnqueueError(core.NewCollaboratorError(core.CollaboratorRateLimited, "generate", errors.New("429")))
	gen.Enqueue("ALPHA-REC")
	gen.Enqueue("BETA-REC")
	gen.Enqueue("FINAL-DECISION")

	orch, err := New(testDecider(), testAdvisors(), gen, fastRetry)
	require.NoError(t, err)

	state, err := orch.Deliberate(context.Background(), "query")
	require.NoError(t, err)
	assert.NotNil(t, state.Decision)
	assert.Equal(t, 4, gen.CallCount())
}

func TestDeliberateAuthFailureNotRetried(t *testing.T) {
	gen := model.NewMockGenerator("mock")
	gen.EnqueueError(core.NewCollaboratorError(core.CollaboratorAuthFailure, "generate", errors.New("401")))

	orch, err := New(testDecider(), testAdvisors(), gen, fastRetry)
	require.NoError(t, err)

	_, err = orch.Deliberate(context.Background(), "query")
	require.Error(t, err)
	assert.Equal(t, 1, gen.CallCount())

	collab, ok := core.AsCollaborator(err)
	require.True(t, ok)
	assert.Equal(t, core.CollaboratorAuthFailure, collab.Kind)
}

func TestDeliberateExhaustedRetriesFailRun(t *testing.T) {
	gen := model.NewMockGenerator("mock")
	gen.EnqueueError(core.NewCollaboratorError(core.CollaboratorTimeout, "generate", errors.New("t1")))
	gen.EnqueueError(core.NewCollaboratorError(core.CollaboratorTimeout, "generate", errors.New("t2")))

	mem := &fakeMemory{}
	orch, err := New(testDecider(), testAdvisors(), gen, fastRetry, func(o *Options) {
		o.Memory = mem
	})
	require.NoError(t, err)

	_, err = orch.Deliberate(context.Background(), "query")
	require.Error(t, err)
	assert.Equal(t, 2, gen.CallCount())
	assert.Empty(t, mem.appends, "failed runs must not commit memory")
}

func TestDeliberateCancelled(t *testing.T) {
	gen := model.NewMockGenerator("mock")
	mem := &fakeMemory{}
	orch, err := New(testDecider(), testAdvisors(), gen, fastRetry, func(o *Options) {
		o.Memory = mem
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = orch.Deliberate(ctx, "query")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mem.appends)
}

func TestDeliberateUsesRetrievedContextAndMemories(t *testing.T) {
	gen := model.NewMockGenerator("mock")
	retriever := &fakeRetriever{chunks: []core.Chunk{
		{Source: "briefing.md", Content: "TARIFF-BACKGROUND"},
	}}
	mem := &fakeMemory{recalled: map[string][]core.ScoredMemory{
		"AdvisorA": {{Record: core.MemoryRecord{Role: "AdvisorA", Kind: core.KindObservation,
			Content: "PAST-RECOMMENDATION", CreatedAt: time.Now()}}},
	}}

	orch, err := New(testDecider(), testAdvisors(), gen, fastRetry, func(o *Options) {
		o.Retriever = retriever
		o.Memory = mem
	})
	require.NoError(t, err)

	state, err := orch.Deliberate(context.Background(), "query")
	require.NoError(t, err)
	assert.Contains(t, state.Context, "TARIFF-BACKGROUND")

	reqs := gen.Requests()
	assert.Contains(t, reqs[0].Prompt, "TARIFF-BACKGROUND")
	assert.Contains(t, reqs[0].Prompt, "PAST-RECOMMENDATION")
	// AdvisorB has no memories, so no memory section in its prompt
	assert.NotContains(t, reqs[1].Prompt, "PAST-RECOMMENDATION")
}

func TestPermutationProperty(t *testing.T) {
	advisors := []core.Participant{
		{Role: "A", Weights: map[string]float64{"x": 1}},
		{Role: "B", Weights: map[string]float64{"x": 1}},
		{Role: "C", Weights: map[string]float64{"x": 1}},
		{Role: "D", Weights: map[string]float64{"x": 1}},
		{Role: "E", Weights: map[string]float64{"x": 1}},
	}
	decider := core.Participant{
		Role: "President",
		Relationships: map[string]float64{
			"A": 0.5, "B": 0.5, "C": 0.5, "D": 0.5, "E": 0.5,
		},
	}

	for seed := int64(0); seed < 20; seed++ {
		orch, err := New(decider, advisors, model.NewMockGenerator("mock"), func(o *Options) {
			o.Rand = rand.New(rand.NewSource(seed))
		})
		require.NoError(t, err)

		order := orch.permuteAdvisors()
		require.Len(t, order, len(advisors))
		seen := make(map[string]bool)
		for _, role := range order {
			assert.False(t, seen[role], "duplicate role %s for seed %d", role, seed)
			seen[role] = true
		}
		assert.Len(t, seen, len(advisors), "omission for seed %d", seed)
	}
}

func TestPermutationDeterministicPerSeed(t *testing.T) {
	newOrch := func() *Orchestrator {
		orch, err := New(testDecider(), testAdvisors(), model.NewMockGenerator("mock"), func(o *Options) {
			o.Rand = rand.New(rand.NewSource(42))
		})
		require.NoError(t, err)
		return orch
	}
	assert.Equal(t, newOrch().permuteAdvisors(), newOrch().permuteAdvisors())
}

const selectionSecond = `**SELECTED PROBLEM**: 2

**REASON**: It is the most urgent.

**QUESTION**: What would it take to resolve this quarter?
`

func scriptMeeting(gen *model.MockGenerator, answer string) {
	gen.Enqueue(threeProblems)
	gen.Enqueue(selectionSecond)
	gen.Enqueue(answer)
}

func TestDeliberateSequential(t *testing.T) {
	gen := model.NewMockGenerator("mock")
	scriptMeeting(gen, "MEETING-ONE-ANSWER")
	scriptMeeting(gen, "MEETING-TWO-ANSWER")
	gen.Enqueue("POLICY-DOC")

	mem := &fakeMemory{}
	orch, err := New(testDecider(), testAdvisors(), gen, fastRetry, func(o *Options) {
		o.Memory = mem
		o.Rand = rand.New(rand.NewSource(7))
	})
	require.NoError(t, err)

	state, err := orch.DeliberateSequential(context.Background(), "the tariff scenario")
	require.NoError(t, err)

	// the permutation covers both advisors and meetings follow it
	require.ElementsMatch(t, []string{"AdvisorA", "AdvisorB"}, state.AdvisorOrder)
	require.Len(t, state.Completed, 2)
	for i, transcript := range state.Completed {
		assert.Equal(t, state.AdvisorOrder[i], transcript.Role)
		assert.Len(t, transcript.Problems, core.ProblemsPerMeeting)
		assert.Equal(t, 1, transcript.SelectedIndex)
		assert.Equal(t, "Alliance cohesion strain", transcript.Selected().Title)
		assert.Equal(t, "What would it take to resolve this quarter?", transcript.Question)
		assert.Equal(t, "It is the most urgent.", transcript.Reason)
	}
	assert.Equal(t, "MEETING-ONE-ANSWER", state.Completed[0].Answer)
	assert.Equal(t, "MEETING-TWO-ANSWER", state.Completed[1].Answer)

	require.NotNil(t, state.Policy)
	assert.Equal(t, "POLICY-DOC", state.Policy.Body)

	// 3 calls per meeting plus synthesis
	assert.Equal(t, 7, gen.CallCount())
	assert.Equal(t, 7, state.Usage.Calls)

	// two observations per meeting plus the synthesis observation
	require.Len(t, mem.appends, 5)
	assert.Equal(t, 0.95, mem.appends[4].importance)
	assert.Equal(t, "President", mem.appends[4].role)
}

func TestSequentialTranscriptVisibility(t *testing.T) {
	gen := model.NewMockGenerator("mock")
	scriptMeeting(gen, "MEETING-ONE-ANSWER")
	scriptMeeting(gen, "MEETING-TWO-ANSWER")
	gen.Enqueue("POLICY-DOC")

	orch, err := New(testDecider(), testAdvisors(), gen, fastRetry, func(o *Options) {
		o.Rand = rand.New(rand.NewSource(7))
	})
	require.NoError(t, err)

	state, err := orch.DeliberateSequential(context.Background(), "scenario")
	require.NoError(t, err)

	reqs := gen.Requests()
	require.Len(t, reqs, 7)

	// the second meeting's problems prompt references the first meeting
	firstPerson := personFor(t, state.AdvisorOrder[0])
	assert.NotContains(t, reqs[0].Prompt, "Previous Advisor Meetings")
	assert.Contains(t, reqs[3].Prompt, "Meeting with "+firstPerson)
	assert.Contains(t, reqs[3].Prompt, "Alliance cohesion strain")

	// the synthesis prompt carries both answers
	assert.Contains(t, reqs[6].Prompt, "MEETING-ONE-ANSWER")
	assert.Contains(t, reqs[6].Prompt, "MEETING-TWO-ANSWER")
}

func personFor(t *testing.T, role string) string {
	t.Helper()
	for _, a := range testAdvisors() {
		if a.Role == role {
			return a.Person
		}
	}
	t.Fatalf("unknown role %s", role)
	return ""
}

func TestSequentialInvalidProblemsAbortRun(t *testing.T) {
	gen := model.NewMockGenerator("mock")
	// both attempts return a malformed problem list
	gen.Enqueue("**PROBLEM 1**\nTitle: only one\nDescription: d\nInitial Recommendation: r\n")
	gen.Enqueue("**PROBLEM 1**\nTitle: still one\nDescription: d\nInitial Recommendation: r\n")

	mem := &fakeMemory{}
	orch, err := New(testDecider(), testAdvisors(), gen, fastRetry, func(o *Options) {
		o.Memory = mem
		o.Rand = rand.New(rand.NewSource(1))
	})
	require.NoError(t, err)

	_, err = orch.DeliberateSequential(context.Background(), "scenario")
	require.Error(t, err)

	collab, ok := core.AsCollaborator(err)
	require.True(t, ok)
	assert.Equal(t, core.CollaboratorInvalidResponse, collab.Kind)
	assert.Equal(t, 2, gen.CallCount(), "malformed responses are retried before aborting")
	assert.Empty(t, mem.appends, "aborted runs must not commit memory")
}

func TestSequentialSelectionRetriedOnInvalidResponse(t *testing.T) {
	gen := model.NewMockGenerator("mock")
	gen.Enqueue(threeProblems)
	gen.Enqueue("I pick the second one.") // unparseable selection
	gen.Enqueue(selectionSecond)
	gen.Enqueue("ANSWER")
	scriptMeeting(gen, "ANSWER-TWO")
	gen.Enqueue("POLICY-DOC")

	orch, err := New(testDecider(), testAdvisors(), gen, fastRetry, func(o *Options) {
		o.Rand = rand.New(rand.NewSource(7))
	})
	require.NoError(t, err)

	state, err := orch.DeliberateSequential(context.Background(), "scenario")
	require.NoError(t, err)
	assert.Equal(t, 8, gen.CallCount())
	require.NotNil(t, state.Policy)
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))

	// 3-byte runes: a cut landing mid-rune backs off to the boundary.
	got := truncate("日本語の意見", 4)
	assert.Equal(t, "日...", got)
	assert.True(t, utf8.ValidString(got))

	got = truncate("naïve analysis of the situation", 3)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}
