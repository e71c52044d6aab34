// Package model defines the text generation collaborator interface used by
// the orchestrator and memory store, plus a scripted mock for tests. Provider
// adapters live in the openai and anthropic subpackages.
package model
