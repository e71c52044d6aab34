// Package councilmesh provides a high-level façade over the deliberation
// engine: a council of advisor participants producing recommendations to one
// decision-maker, with influence weighting, per-participant memory and shared
// knowledge retrieval. Most applications interact with this package by:
//  1. Loading a council roster (roster.Load) or building participants directly
//  2. Creating a CouncilMesh via New() with a model generator
//  3. Running Deliberate (hub-and-spoke) or DeliberateSequential (one-on-one
//     meetings plus a synthesized policy document)
//
// The façade delegates orchestration to council.Orchestrator while keeping
// setup ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a real generator, an
// embedding-backed memory store and a structured logger.
package councilmesh

import (
	"context"
	"math/rand"

	"github.com/hupe1980/councilmesh/core"
	"github.com/hupe1980/councilmesh/council"
	"github.com/hupe1980/councilmesh/logging"
	"github.com/hupe1980/councilmesh/model"
	"github.com/hupe1980/councilmesh/weighting"
)

// Options configures the CouncilMesh instance.
type Options struct {
	// Retriever supplies shared background context; nil disables retrieval.
	Retriever core.KnowledgeRetriever

	// Memory enables per-participant memory across runs; nil disables it.
	Memory core.MemoryStore

	// Weighting overrides the default 0.6/0.4 relationship/alignment split.
	Weighting weighting.Config

	// Retry bounds collaborator retries for every call in a run.
	Retry council.RetryConfig

	// Rand seeds the sequential-meeting permutation; defaults to a
	// time-seeded source. Supply a fixed seed for reproducible runs.
	Rand *rand.Rand

	// Temperature for all generation calls.
	Temperature float64

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// CouncilMesh is the high-level façade aggregating the orchestrator and its
// collaborators.
type CouncilMesh struct {
	orch *council.Orchestrator
}

// New creates a CouncilMesh for one decision-maker and an ordered advisor
// set. The advisor order is the hub-and-spoke consultation order.
func New(decider core.Participant, advisors []core.Participant, gen model.Generator, optFns ...func(o *Options)) (*CouncilMesh, error) {
	opts := Options{
		Retry:       council.DefaultRetryConfig(),
		Temperature: 0.7,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	orch, err := council.New(decider, advisors, gen, func(o *council.Options) {
		o.Retriever = opts.Retriever
		o.Memory = opts.Memory
		o.Weighting = opts.Weighting
		o.Retry = opts.Retry
		o.Rand = opts.Rand
		o.Temperature = opts.Temperature
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}
	return &CouncilMesh{orch: orch}, nil
}

// Deliberate runs the hub-and-spoke protocol and returns the completed run
// state, including every recommendation, the weighted decision and the audit
// trail.
func (m *CouncilMesh) Deliberate(ctx context.Context, query string) (*core.DeliberationState, error) {
	return m.orch.Deliberate(ctx, query)
}

// DeliberateSequential runs the sequential-meeting protocol and returns the
// completed run state, including every meeting transcript and the synthesized
// policy document.
func (m *CouncilMesh) DeliberateSequential(ctx context.Context, query string) (*core.MeetingState, error) {
	return m.orch.DeliberateSequential(ctx, query)
}
