package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/councilmesh/core"
	"github.com/hupe1980/councilmesh/logging"
	"github.com/hupe1980/councilmesh/model"
)

// Options configures a Store.
type Options struct {
	// Config tunes scoring and the reflection lifecycle.
	Config Config

	// Generator synthesizes reflections. Required when Config.ReflectEnabled.
	Generator model.Generator

	// Logger defaults to NoOp if nil.
	Logger logging.Logger

	// Clock supplies record timestamps; override in tests to control decay.
	Clock func() time.Time
}

// stream is one participant's append-only record log. Its mutex serializes
// appends (single writer per participant) while allowing concurrent reads.
type stream struct {
	mu              sync.RWMutex
	records         []core.MemoryRecord
	sinceReflection int
}

// Store is the canonical in-process core.MemoryStore implementation. Records
// are embedded on append via the injected Embedder and scored on retrieval.
type Store struct {
	cfg      Config
	embedder core.Embedder
	gen      model.Generator
	logger   logging.Logger
	now      func() time.Time

	mu      sync.RWMutex
	streams map[string]*stream
}

var _ core.MemoryStore = (*Store)(nil)

// NewStore builds a Store around the given embedder.
func NewStore(embedder core.Embedder, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		Config: DefaultConfig(),
		Logger: logging.NoOpLogger{},
		Clock:  time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, core.NewConfigError("memory.embedder", "embedder is required")
	}
	if opts.Config.ReflectEnabled && opts.Generator == nil {
		return nil, core.NewConfigError("memory.generator", "generator is required when reflection is enabled")
	}
	return &Store{
		cfg:      opts.Config,
		embedder: embedder,
		gen:      opts.Generator,
		logger:   logging.OrNoOp(opts.Logger),
		now:      opts.Clock,
		streams:  make(map[string]*stream),
	}, nil
}

func (s *Store) stream(role string) *stream {
	s.mu.RLock()
	st, ok := s.streams[role]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok = s.streams[role]; ok {
		return st
	}
	st = &stream{}
	s.streams[role] = st
	return st
}

// Append implements core.MemoryStore. The record is embedded, timestamped and
// appended to the participant's stream; appending an observation that crosses
// the reflection threshold synthesizes one reflection record before Append
// returns, so the reflection precedes any later observation in the stream.
// The crossing is atomic: if synthesis fails, the observation is rolled back
// with the counter, so retrying the Append cannot duplicate it. A negative
// importance selects the kind's configured default.
func (s *Store) Append(ctx context.Context, role string, kind core.MemoryKind, content string, importance float64) (*core.MemoryRecord, error) {
	if importance < 0 {
		if kind == core.KindReflection {
			importance = s.cfg.ReflectionImportance
		} else {
			importance = s.cfg.ObservationImportance
		}
	}
	if importance > 1 {
		return nil, core.NewConfigError("memory.importance", "importance must be in [0,1], got %v", importance)
	}

	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embed memory for %s: %w", role, err)
	}

	st := s.stream(role)
	st.mu.Lock()
	defer st.mu.Unlock()

	rec, err := s.appendLocked(st, role, kind, content, importance, embedding)
	if err != nil {
		return nil, err
	}

	if kind == core.KindObservation && s.cfg.ReflectEnabled {
		st.sinceReflection++
		if st.sinceReflection%s.cfg.ReflectionThreshold == 0 {
			if err := s.reflectLocked(ctx, st, role); err != nil {
				// Roll back the observation and the counter so a retried
				// Append replays the threshold crossing cleanly instead of
				// duplicating the observation and dropping the reflection.
				st.records = st.records[:len(st.records)-1]
				st.sinceReflection--
				return nil, err
			}
			st.sinceReflection = 0
		}
	}

	return rec, nil
}

// appendLocked assigns the timestamp and appends; caller holds st.mu.
func (s *Store) appendLocked(st *stream, role string, kind core.MemoryKind, content string, importance float64, embedding []float32) (*core.MemoryRecord, error) {
	ts := s.now().UTC()
	if n := len(st.records); n > 0 && ts.Before(st.records[n-1].CreatedAt) {
		return nil, core.NewInvariantError("monotonic-timestamps",
			"record for %s at %s predates stream head %s", role, ts, st.records[n-1].CreatedAt)
	}

	rec := core.MemoryRecord{
		ID:         core.NewID(),
		Role:       role,
		Kind:       kind,
		Content:    content,
		Importance: importance,
		CreatedAt:  ts,
		Embedding:  embedding,
	}
	st.records = append(st.records, rec)
	s.logger.Debug("memory appended", "role", role, "kind", string(kind), "importance", importance)
	return &st.records[len(st.records)-1], nil
}

// reflectLocked synthesizes a reflection from the most recent observations and
// appends it; caller holds st.mu.
func (s *Store) reflectLocked(ctx context.Context, st *stream, role string) error {
	recent := make([]string, 0, s.cfg.ReflectionThreshold)
	for i := len(st.records) - 1; i >= 0 && len(recent) < s.cfg.ReflectionThreshold; i-- {
		if st.records[i].Kind == core.KindObservation {
			recent = append(recent, st.records[i].Content)
		}
	}
	// restore chronological order
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	resp, err := s.gen.Generate(ctx, model.Request{
		System: fmt.Sprintf("You are %s, a thoughtful council participant capable of reflection and pattern recognition.", role),
		Prompt: reflectionPrompt(role, recent),
	})
	if err != nil {
		return fmt.Errorf("synthesize reflection for %s: %w", role, err)
	}

	embedding, err := s.embedder.Embed(ctx, resp.Text)
	if err != nil {
		return fmt.Errorf("embed reflection for %s: %w", role, err)
	}

	if _, err := s.appendLocked(st, role, core.KindReflection, resp.Text, s.cfg.ReflectionImportance, embedding); err != nil {
		return err
	}
	s.logger.Info("reflection synthesized", "role", role, "observations", len(recent))
	return nil
}

func reflectionPrompt(role string, observations []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. Review your recent observations from deliberations and generate a high-level insight or pattern you've noticed.\n\n", role)
	b.WriteString("Recent observations:\n")
	for _, obs := range observations {
		fmt.Fprintf(&b, "- %s\n", obs)
	}
	b.WriteString("\nGenerate a single insightful reflection (1-2 sentences) about patterns in your recommendations, the decisions made, or advisor dynamics. This should be a higher-level synthesis, not just a summary.\n\nReflection:")
	return b.String()
}

// Retrieve implements core.MemoryStore. Score is
// relevanceW*relevance + recencyW*recency + importanceW*importance with
// relevance the cosine similarity clipped to [0,1] and recency the half-life
// decay 0.5^(age_days/half_life). Ties break toward the most recent record.
func (s *Store) Retrieve(ctx context.Context, role, query string, topK int) ([]core.ScoredMemory, error) {
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query for %s: %w", role, err)
	}

	st := s.stream(role)
	st.mu.RLock()
	records := make([]core.MemoryRecord, len(st.records))
	copy(records, st.records)
	st.mu.RUnlock()

	if len(records) == 0 {
		return nil, nil
	}

	now := s.now().UTC()
	scored := make([]core.ScoredMemory, 0, len(records))
	for _, rec := range records {
		relevance := clip01(cosine(queryEmbedding, rec.Embedding))
		ageDays := now.Sub(rec.CreatedAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		recency := math.Pow(0.5, ageDays/s.cfg.HalfLifeDays)
		scored = append(scored, core.ScoredMemory{
			Record:    rec,
			Relevance: relevance,
			Recency:   recency,
			Score: s.cfg.RelevanceWeight*relevance +
				s.cfg.RecencyWeight*recency +
				s.cfg.ImportanceWeight*rec.Importance,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Record.CreatedAt.After(scored[j].Record.CreatedAt)
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	s.logger.Debug("memory retrieved", "role", role, "results", len(scored))
	return scored, nil
}

// Count implements core.MemoryStore.
func (s *Store) Count(role string) int {
	st := s.stream(role)
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.records)
}

// Clear implements core.MemoryStore: drops one participant's records and
// resets its observation counter.
func (s *Store) Clear(role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, role)
}

// ClearAll implements core.MemoryStore.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = make(map[string]*stream)
}

// cosine returns the cosine similarity of two vectors in [-1,1]; mismatched or
// zero-norm vectors yield 0.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
