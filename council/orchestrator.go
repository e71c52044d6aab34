package council

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/councilmesh/core"
	"github.com/hupe1980/councilmesh/logging"
	"github.com/hupe1980/councilmesh/model"
	"github.com/hupe1980/councilmesh/weighting"
)

// Observation importance assigned per contribution kind when committing run
// memory.
const (
	importanceRecommendation = 0.7
	importanceMeeting        = 0.8
	importanceDecision       = 0.9
	importanceSynthesis      = 0.95
)

// Options configures an Orchestrator.
type Options struct {
	// Retriever supplies shared background context; nil disables retrieval.
	Retriever core.KnowledgeRetriever

	// Memory enables per-participant memory for the whole run; nil disables.
	Memory     core.MemoryStore
	MemoryTopK int

	// ContextTopK caps the number of retrieved chunks per run.
	ContextTopK int

	// Weighting overrides the 0.6/0.4 relationship/alignment coefficients.
	Weighting weighting.Config

	// Retry bounds collaborator retries; see DefaultRetryConfig.
	Retry RetryConfig

	// Rand drives the sequential-meeting permutation; seed it in tests for a
	// deterministic advisor order. Defaults to a time-seeded source.
	Rand *rand.Rand

	// Temperature for all generation calls.
	Temperature float64

	// Logger defaults to NoOp if nil.
	Logger logging.Logger
}

// Orchestrator sequences one decision-maker and a fixed, ordered set of
// advisors through a deliberation run. It is safe for concurrent runs; each
// run owns its state exclusively.
type Orchestrator struct {
	decider  core.Participant
	advisors []core.Participant

	gen       model.Generator
	retriever core.KnowledgeRetriever
	memory    core.MemoryStore

	weighting   weighting.Config
	retry       RetryConfig
	temperature float64
	contextTopK int
	memoryTopK  int
	logger      logging.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New validates the council configuration and builds an Orchestrator. Every
// configured advisor needs a relationship score in the decision-maker's
// record; an empty advisor set is a configuration error.
func New(decider core.Participant, advisors []core.Participant, gen model.Generator, optFns ...func(o *Options)) (*Orchestrator, error) {
	opts := Options{
		Retry:       DefaultRetryConfig(),
		MemoryTopK:  5,
		ContextTopK: 5,
		Temperature: 0.7,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if gen == nil {
		return nil, core.NewConfigError("council.generator", "generator is required")
	}
	if decider.Role == "" {
		return nil, core.NewConfigError("council.decider", "decision-maker role is required")
	}
	if len(advisors) == 0 {
		return nil, core.NewConfigError("council.advisors", "at least one advisor is required")
	}
	seen := make(map[string]bool, len(advisors))
	for _, a := range advisors {
		if a.Role == "" {
			return nil, core.NewConfigError("council.advisors", "advisor with empty role")
		}
		if seen[a.Role] {
			return nil, core.NewConfigError("council.advisors", "duplicate advisor role %q", a.Role)
		}
		seen[a.Role] = true
		if _, ok := decider.Relationships[a.Role]; !ok {
			return nil, core.NewConfigError("council.relationships",
				"decision-maker %q has no relationship score for advisor %q", decider.Role, a.Role)
		}
	}
	if err := opts.Weighting.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Retry.validate(); err != nil {
		return nil, err
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Orchestrator{
		decider:     decider,
		advisors:    advisors,
		gen:         gen,
		retriever:   opts.Retriever,
		memory:      opts.Memory,
		weighting:   opts.Weighting,
		retry:       opts.Retry,
		temperature: opts.Temperature,
		contextTopK: opts.ContextTopK,
		memoryTopK:  opts.MemoryTopK,
		logger:      logging.OrNoOp(opts.Logger),
		rng:         rng,
	}, nil
}

// observation is a pending memory commit, buffered until the run reaches its
// commit stage so a cancelled run never writes partial memory.
type observation struct {
	role       string
	content    string
	importance float64
}

// Deliberate runs the hub-and-spoke protocol: retrieve context, consult every
// advisor in configuration order (each sees all earlier recommendations),
// weigh and decide, commit memory. On any failure the run terminates without
// partial results.
func (o *Orchestrator) Deliberate(ctx context.Context, query string) (*core.DeliberationState, error) {
	state := &core.DeliberationState{
		RunID: core.NewID(),
		Query: query,
	}
	logger := o.logger
	logger.Info("deliberation started", "run_id", state.RunID, "protocol", "hub-and-spoke", "advisors", len(o.advisors))

	// CONTEXT_RETRIEVAL
	if err := o.retrieveContext(ctx, query, &state.Context, &state.Memories, state.AddAudit); err != nil {
		return nil, o.fail(state.RunID, "context_retrieval", err)
	}

	// CONSULT
	var pending []observation
	for _, advisor := range o.advisors {
		if err := checkpoint(ctx); err != nil {
			return nil, o.fail(state.RunID, "consult", err)
		}

		prompt := recommendationPrompt(query, state.Context, state.Memories[advisor.Role], state.Recommendations)
		resp, err := o.generate(ctx, systemPrompt(advisor), prompt)
		if err != nil {
			return nil, o.fail(state.RunID, "consult", fmt.Errorf("advisor %s: %w", advisor.Role, err))
		}

		state.Recommendations = append(state.Recommendations, core.Recommendation{
			Role:     advisor.Role,
			Person:   advisor.Person,
			Body:     resp.Text,
			Weights:  advisor.CloneWeights(),
			RedLines: advisor.CloneRedLines(),
			Index:    len(state.Recommendations),
			Usage:    resp.Usage,
		})
		state.Usage.Add(resp.Usage)
		state.AddAudit("advisor_recommendation", advisor.Role, map[string]any{
			"person":       advisor.Person,
			"memories":     len(state.Memories[advisor.Role]),
			"total_tokens": resp.Usage.Total(),
		})
		logger.Debug("recommendation produced", "run_id", state.RunID, "role", advisor.Role)

		pending = append(pending, observation{
			role:       advisor.Role,
			content:    fmt.Sprintf("I recommended: %s on the question: '%s'", truncate(resp.Text, 200), query),
			importance: importanceRecommendation,
		})
	}

	// DECIDE
	if err := checkpoint(ctx); err != nil {
		return nil, o.fail(state.RunID, "decide", err)
	}
	decision, err := o.decide(ctx, state)
	if err != nil {
		return nil, o.fail(state.RunID, "decide", err)
	}
	state.Decision = decision
	state.Usage.Add(decision.Usage)

	top := topWeighted(decision.Weights)
	pending = append(pending, observation{
		role: o.decider.Role,
		content: fmt.Sprintf("I decided: %s on the question: '%s'. I gave most weight to %s.",
			truncate(decision.Body, 200), query, top),
		importance: importanceDecision,
	})

	// COMMIT_MEMORY
	if err := o.commitMemory(ctx, state.RunID, pending, state.AddAudit); err != nil {
		return nil, o.fail(state.RunID, "commit_memory", err)
	}

	logger.Info("deliberation completed", "run_id", state.RunID, "total_tokens", state.Usage.Total())
	return state, nil
}

// decide computes the weight audit, issues the decision call and enforces the
// advisor-reference invariant.
func (o *Orchestrator) decide(ctx context.Context, state *core.DeliberationState) (*core.Decision, error) {
	weights := make([]core.AdvisorWeight, 0, len(o.advisors))
	for _, advisor := range o.advisors {
		w := weighting.Weight(o.decider.Relationships[advisor.Role], o.decider.Weights, advisor.Weights, o.weighting)
		w.Role = advisor.Role
		weights = append(weights, w)
		state.AddAudit("advisor_weight", advisor.Role, map[string]any{
			"relationship": w.Relationship,
			"alignment":    w.Alignment,
			"final":        w.Final,
		})
	}
	for _, w := range weights {
		if !state.HasRecommendation(w.Role) {
			return nil, core.NewInvariantError("decision-advisor-reference",
				"weight computed for %q without a recommendation", w.Role)
		}
	}

	prompt := decisionPrompt(state.Query, state.Context, state.Memories[o.decider.Role], state.Recommendations, weights)
	resp, err := o.generate(ctx, systemPrompt(o.decider), prompt)
	if err != nil {
		return nil, fmt.Errorf("decision-maker %s: %w", o.decider.Role, err)
	}

	state.AddAudit("decision", o.decider.Role, map[string]any{
		"person":       o.decider.Person,
		"total_tokens": resp.Usage.Total(),
	})
	return &core.Decision{
		Role:    o.decider.Role,
		Person:  o.decider.Person,
		Body:    resp.Text,
		Weights: weights,
		Usage:   resp.Usage,
	}, nil
}

// DeliberateSequential runs the sequential-meeting protocol: a randomized
// permutation of advisors each holds a four-step one-on-one meeting with the
// decision-maker, transcripts accumulate across meetings, and a final
// synthesis call produces the policy document. A failed collaborator call in
// any meeting aborts the run; partial policy documents are never produced.
func (o *Orchestrator) DeliberateSequential(ctx context.Context, query string) (*core.MeetingState, error) {
	state := &core.MeetingState{
		RunID:        core.NewID(),
		Query:        query,
		AdvisorOrder: o.permuteAdvisors(),
	}
	logger := o.logger
	logger.Info("deliberation started", "run_id", state.RunID, "protocol", "sequential",
		"advisor_order", strings.Join(state.AdvisorOrder, ","))

	byRole := make(map[string]core.Participant, len(o.advisors))
	for _, a := range o.advisors {
		byRole[a.Role] = a
	}

	// CONTEXT_RETRIEVAL
	if err := o.retrieveContext(ctx, query, &state.Context, &state.Memories, state.AddAudit); err != nil {
		return nil, o.fail(state.RunID, "context_retrieval", err)
	}

	// MEET, once per advisor in permutation order
	var pending []observation
	for i, role := range state.AdvisorOrder {
		if err := checkpoint(ctx); err != nil {
			return nil, o.fail(state.RunID, "meet", err)
		}

		advisor := byRole[role]
		transcript, err := o.conductMeeting(ctx, query, advisor, state)
		if err != nil {
			return nil, o.fail(state.RunID, "meet", fmt.Errorf("meeting %d with %s: %w", i+1, role, err))
		}
		state.Completed = append(state.Completed, *transcript)
		state.AddAudit("meeting", role, map[string]any{
			"number":   i + 1,
			"selected": transcript.Selected().Title,
		})
		logger.Info("meeting completed", "run_id", state.RunID, "role", role,
			"number", i+1, "total", len(state.AdvisorOrder))

		pending = append(pending,
			observation{
				role: role,
				content: fmt.Sprintf("I presented %d problems on '%s' and discussed: %s",
					core.ProblemsPerMeeting, truncate(query, 100), transcript.Selected().Title),
				importance: importanceRecommendation,
			},
			observation{
				role: o.decider.Role,
				content: fmt.Sprintf("Met with %s. Discussed: %s. Asked: %s",
					advisor.Person, transcript.Selected().Title, truncate(transcript.Question, 100)),
				importance: importanceMeeting,
			},
		)
	}

	// SYNTHESIZE
	if err := checkpoint(ctx); err != nil {
		return nil, o.fail(state.RunID, "synthesize", err)
	}
	prompt := synthesisPrompt(query, state.Context, state.Memories[o.decider.Role], state.Completed)
	system := systemPrompt(o.decider) +
		"\n## Your Task\nYou are synthesizing all advisor discussions into a comprehensive policy document.\n"
	resp, err := o.generate(ctx, system, prompt)
	if err != nil {
		return nil, o.fail(state.RunID, "synthesize", err)
	}
	state.Policy = &core.PolicyDocument{
		Role:   o.decider.Role,
		Person: o.decider.Person,
		Body:   resp.Text,
		Usage:  resp.Usage,
	}
	state.Usage.Add(resp.Usage)
	state.AddAudit("synthesis", o.decider.Role, map[string]any{
		"meetings":     len(state.Completed),
		"total_tokens": resp.Usage.Total(),
	})

	pending = append(pending, observation{
		role: o.decider.Role,
		content: fmt.Sprintf("I synthesized a policy document on '%s' after meeting with %d advisors",
			truncate(query, 100), len(state.Completed)),
		importance: importanceSynthesis,
	})

	// COMMIT_MEMORY
	if err := o.commitMemory(ctx, state.RunID, pending, state.AddAudit); err != nil {
		return nil, o.fail(state.RunID, "commit_memory", err)
	}

	logger.Info("deliberation completed", "run_id", state.RunID, "total_tokens", state.Usage.Total())
	return state, nil
}

// conductMeeting runs the four meeting sub-steps for one advisor.
func (o *Orchestrator) conductMeeting(ctx context.Context, query string, advisor core.Participant, state *core.MeetingState) (*core.MeetingTranscript, error) {
	var usage core.TokenUsage

	// 1. advisor presents exactly three problems
	var problems []core.Problem
	prompt := problemsPrompt(query, state.Context, state.Memories[advisor.Role], state.Completed)
	err := withRetry(ctx, o.retry, func(ctx context.Context) error {
		resp, err := o.gen.Generate(ctx, model.Request{
			System:      systemPrompt(advisor),
			Prompt:      prompt,
			Temperature: o.temperature,
		})
		if err != nil {
			return err
		}
		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens
		state.Usage.Add(resp.Usage)
		problems, err = parseProblems(resp.Text)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("present problems: %w", err)
	}

	// 2. decision-maker selects one and formulates a question
	var sel *selection
	prompt = selectionPrompt(advisor, problems, state.Context, state.Memories[o.decider.Role], state.Completed)
	err = withRetry(ctx, o.retry, func(ctx context.Context) error {
		resp, err := o.gen.Generate(ctx, model.Request{
			System:      systemPrompt(o.decider),
			Prompt:      prompt,
			Temperature: o.temperature,
		})
		if err != nil {
			return err
		}
		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens
		state.Usage.Add(resp.Usage)
		sel, err = parseSelection(resp.Text, len(problems))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("select problem: %w", err)
	}

	// 3. advisor answers the question
	resp, err := o.generate(ctx, systemPrompt(advisor),
		answerPrompt(problems[sel.Index], sel.Question, state.Context, state.Memories[advisor.Role]))
	if err != nil {
		return nil, fmt.Errorf("answer question: %w", err)
	}
	usage.InputTokens += resp.Usage.InputTokens
	usage.OutputTokens += resp.Usage.OutputTokens
	state.Usage.Add(resp.Usage)

	// 4. completed transcript, visible to all subsequent meetings
	return &core.MeetingTranscript{
		Role:          advisor.Role,
		Person:        advisor.Person,
		Problems:      problems,
		SelectedIndex: sel.Index,
		Reason:        sel.Reason,
		Question:      sel.Question,
		Answer:        resp.Text,
		Usage:         usage,
	}, nil
}

// permuteAdvisors draws a fresh permutation of the advisor roles from the
// orchestrator's random source. The mutex keeps concurrent runs from racing
// on the shared source.
func (o *Orchestrator) permuteAdvisors() []string {
	order := make([]string, len(o.advisors))
	for i, a := range o.advisors {
		order[i] = a.Role
	}
	o.rngMu.Lock()
	o.rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	o.rngMu.Unlock()
	return order
}

// retrieveContext performs the single knowledge search plus the per-
// participant memory retrievals that open every run.
func (o *Orchestrator) retrieveContext(ctx context.Context, query string, contextOut *string, memoriesOut *map[string][]core.ScoredMemory, audit func(string, string, map[string]any)) error {
	if err := checkpoint(ctx); err != nil {
		return err
	}

	if o.retriever != nil {
		var chunks []core.Chunk
		err := withRetry(ctx, o.retry, func(ctx context.Context) error {
			var err error
			chunks, err = o.retriever.Search(ctx, query, o.contextTopK)
			return err
		})
		if err != nil {
			return fmt.Errorf("context retrieval: %w", err)
		}
		*contextOut = formatChunks(chunks)
		audit("context_retrieval", "", map[string]any{
			"chunks":  len(chunks),
			"sources": chunkSources(chunks),
		})
	}

	if o.memory != nil {
		memories := make(map[string][]core.ScoredMemory, len(o.advisors)+1)
		roles := make([]string, 0, len(o.advisors)+1)
		for _, a := range o.advisors {
			roles = append(roles, a.Role)
		}
		roles = append(roles, o.decider.Role)

		for _, role := range roles {
			var scored []core.ScoredMemory
			err := withRetry(ctx, o.retry, func(ctx context.Context) error {
				var err error
				scored, err = o.memory.Retrieve(ctx, role, query, o.memoryTopK)
				return err
			})
			if err != nil {
				return fmt.Errorf("memory retrieval for %s: %w", role, err)
			}
			if len(scored) > 0 {
				memories[role] = scored
			}
		}
		*memoriesOut = memories
	}
	return nil
}

// commitMemory writes the buffered observations, one per participant
// contribution. Reflection synthesis happens inside the store when a
// participant's threshold is crossed.
func (o *Orchestrator) commitMemory(ctx context.Context, runID string, pending []observation, audit func(string, string, map[string]any)) error {
	if o.memory == nil || len(pending) == 0 {
		return nil
	}
	if err := checkpoint(ctx); err != nil {
		return err
	}
	for _, obs := range pending {
		err := withRetry(ctx, o.retry, func(ctx context.Context) error {
			_, err := o.memory.Append(ctx, obs.role, core.KindObservation, obs.content, obs.importance)
			return err
		})
		if err != nil {
			return fmt.Errorf("commit memory for %s: %w", obs.role, err)
		}
	}
	audit("memory_commit", "", map[string]any{"observations": len(pending)})
	o.logger.Debug("memory committed", "run_id", runID, "observations", len(pending))
	return nil
}

// generate issues one retried, timed generation call.
func (o *Orchestrator) generate(ctx context.Context, system, prompt string) (*model.Response, error) {
	var resp *model.Response
	err := withRetry(ctx, o.retry, func(ctx context.Context) error {
		r, err := o.gen.Generate(ctx, model.Request{
			System:      system,
			Prompt:      prompt,
			Temperature: o.temperature,
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (o *Orchestrator) fail(runID, stage string, err error) error {
	o.logger.Error("deliberation failed", "run_id", runID, "stage", stage, "error", err)
	return fmt.Errorf("%s: %w", stage, err)
}

// checkpoint enforces cancellation at state-machine boundaries.
func checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

func topWeighted(weights []core.AdvisorWeight) string {
	top := ""
	best := -1.0
	for _, w := range weights {
		if w.Final > best {
			best = w.Final
			top = w.Role
		}
	}
	return top
}

func formatChunks(chunks []core.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		if c.Source != "" {
			fmt.Fprintf(&b, "[Source: %s]\n", c.Source)
		}
		b.WriteString(c.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func chunkSources(chunks []core.Chunk) []string {
	sources := make([]string, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, c.Source)
	}
	return sources
}

// truncate shortens s to at most n bytes without splitting a multibyte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
