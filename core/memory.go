package core

import (
	"context"
	"time"
)

// MemoryKind distinguishes concrete observations from synthesized reflections.
type MemoryKind string

const (
	// KindObservation records a concrete event such as a recommendation given
	// or a decision made.
	KindObservation MemoryKind = "observation"
	// KindReflection is a higher-level insight synthesized from a batch of
	// prior observations.
	KindReflection MemoryKind = "reflection"
)

// MemoryRecord is one append-only entry in a participant's memory stream.
// Records are never mutated or deleted in normal operation; timestamps within
// a single participant's stream are monotonically non-decreasing.
type MemoryRecord struct {
	ID         string     `json:"id"`
	Role       string     `json:"role"`
	Kind       MemoryKind `json:"kind"`
	Content    string     `json:"content"`
	Importance float64    `json:"importance"` // [0,1]
	CreatedAt  time.Time  `json:"created_at"`
	Embedding  []float32  `json:"-"`
}

// ScoredMemory pairs a record with its retrieval score breakdown.
type ScoredMemory struct {
	Record    MemoryRecord `json:"record"`
	Relevance float64      `json:"relevance"`
	Recency   float64      `json:"recency"`
	Score     float64      `json:"score"`
}

// MemoryStore is what the orchestrator depends on to recall and commit
// participant memories. The canonical implementation lives in the memory
// package; tests substitute doubles.
type MemoryStore interface {
	// Append adds a record to the participant's stream, assigning timestamp
	// and embedding. Appending an observation may trigger reflection
	// synthesis as a side effect. A negative importance selects the store's
	// default for the kind; 0 is a valid explicit value.
	Append(ctx context.Context, role string, kind MemoryKind, content string, importance float64) (*MemoryRecord, error)

	// Retrieve returns the participant's topK records ranked by the combined
	// relevance/recency/importance score, ties broken most-recent-first.
	Retrieve(ctx context.Context, role, query string, topK int) ([]ScoredMemory, error)

	// Count returns the number of records in the participant's stream.
	Count(role string) int

	// Clear removes one participant's records and resets its observation
	// counter. ClearAll does the same for every participant.
	Clear(role string)
	ClearAll()
}
