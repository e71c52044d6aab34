package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/councilmesh/core"
)

// Request captures one normalized generation call. System carries the
// participant's role context; Prompt carries the instructions and materials
// for this step. Calls are blocking: the engine issues and awaits them one at
// a time, so there is no streaming surface here.
type Request struct {
	System      string  `json:"system"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int64   `json:"max_tokens,omitempty"`
}

// Response is the completed generation result.
type Response struct {
	Text  string          `json:"text"`
	Usage core.TokenUsage `json:"usage"`
}

// Info contains metadata about a generator implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Generator is the minimal interface the engine needs to drive generation.
// Implementations return CollaboratorError values so the engine's retry
// policy can classify failures.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the generator implementation.
	Info() Info
}

type scripted struct {
	text  string
	usage core.TokenUsage
	err   error
}

// MockGenerator is a lightweight in-memory Generator for tests and examples.
// Scripted responses are consumed in FIFO order; when the script is empty a
// canned per-prompt response (or a generic echo) is returned. Every request is
// recorded so tests can assert on prompt contents and call order.
type MockGenerator struct {
	mu        sync.Mutex
	info      Info
	script    []scripted
	responses map[string]string
	requests  []Request
}

// NewMockGenerator constructs an empty MockGenerator.
func NewMockGenerator(name string) *MockGenerator {
	return &MockGenerator{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// Enqueue schedules the next scripted completion.
func (m *MockGenerator) Enqueue(text string) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{text: text, usage: core.TokenUsage{InputTokens: 10, OutputTokens: 5}})
	return m
}

// EnqueueWithUsage schedules a scripted completion with explicit token usage.
func (m *MockGenerator) EnqueueWithUsage(text string, usage core.TokenUsage) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{text: text, usage: usage})
	return m
}

// EnqueueError schedules a scripted failure.
func (m *MockGenerator) EnqueueError(err error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{err: err})
	return m
}

// AddResponse registers a deterministic canned completion for an exact prompt.
func (m *MockGenerator) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Requests returns a copy of all requests seen so far, in call order.
func (m *MockGenerator) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Request, len(m.requests))
	copy(cp, m.requests)
	return cp
}

// CallCount returns the number of Generate calls observed.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Generate implements Generator.
func (m *MockGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		if next.err != nil {
			return nil, next.err
		}
		return &Response{Text: next.text, Usage: next.usage}, nil
	}

	if canned, ok := m.responses[req.Prompt]; ok {
		return &Response{Text: canned, Usage: core.TokenUsage{InputTokens: 10, OutputTokens: 5}}, nil
	}

	return &Response{
		Text:  fmt.Sprintf("Mock response to: %s", req.Prompt),
		Usage: core.TokenUsage{InputTokens: 10, OutputTokens: 5},
	}, nil
}

// Info implements Generator.
func (m *MockGenerator) Info() Info { return m.info }
