package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/councilmesh/core"
	"github.com/hupe1980/councilmesh/model"
)

// vecEmbedder returns canned vectors per text, falling back to a unit vector.
type vecEmbedder struct {
	vectors map[string][]float32
}

func (e *vecEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func newTestStore(t *testing.T, optFns ...func(o *Options)) (*Store, *time.Time) {
	t.Helper()

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	base := func(o *Options) {
		o.Config.ReflectEnabled = false
		o.Clock = func() time.Time { return now }
	}
	store, err := NewStore(&vecEmbedder{}, append([]func(o *Options){base}, optFns...)...)
	require.NoError(t, err)
	return store, &now
}

func TestNewStore(t *testing.T) {
	t.Run("rejects nil embedder", func(t *testing.T) {
		_, err := NewStore(nil)
		require.Error(t, err)
		assert.True(t, core.IsConfiguration(err))
	})

	t.Run("rejects invalid weights", func(t *testing.T) {
		_, err := NewStore(&vecEmbedder{}, func(o *Options) {
			o.Config.RelevanceWeight = 0.5
		})
		require.Error(t, err)
		assert.True(t, core.IsConfiguration(err))
	})

	t.Run("requires generator when reflection enabled", func(t *testing.T) {
		_, err := NewStore(&vecEmbedder{})
		require.Error(t, err)
		assert.True(t, core.IsConfiguration(err))
	})
}

func TestAppendDefaults(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	obs, err := store.Append(ctx, "advisor", core.KindObservation, "a recommendation was made", -1)
	require.NoError(t, err)
	assert.Equal(t, DefaultObservationImportance, obs.Importance)
	assert.NotEmpty(t, obs.ID)

	refl, err := store.Append(ctx, "advisor", core.KindReflection, "a pattern emerged", -1)
	require.NoError(t, err)
	assert.Equal(t, DefaultReflectionImportance, refl.Importance)

	explicit, err := store.Append(ctx, "advisor", core.KindObservation, "a decision landed", 0.7)
	require.NoError(t, err)
	assert.Equal(t, 0.7, explicit.Importance)

	// Zero is a value, not "unset": only negatives select the default.
	zero, err := store.Append(ctx, "advisor", core.KindObservation, "a trivial aside", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, zero.Importance)

	assert.Equal(t, 4, store.Count("advisor"))
	assert.Equal(t, 0, store.Count("someone-else"))
}

func TestAppendRejectsOutOfRangeImportance(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Append(context.Background(), "advisor", core.KindObservation, "x", 1.5)
	require.Error(t, err)
	assert.True(t, core.IsConfiguration(err))
}

func TestAppendRejectsNonMonotonicTimestamps(t *testing.T) {
	store, now := newTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, "advisor", core.KindObservation, "first", 0)
	require.NoError(t, err)

	*now = now.Add(-time.Hour)
	_, err = store.Append(ctx, "advisor", core.KindObservation, "second", 0)
	require.Error(t, err)

	var invErr *core.DataInvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "monotonic-timestamps", invErr.Invariant)
	assert.Equal(t, 1, store.Count("advisor"))
}

func TestReflectionCadence(t *testing.T) {
	gen := model.NewMockGenerator("mock")
	for i := 0; i < 2; i++ {
		gen.Enqueue("my recommendations keep favoring diplomacy over force")
	}

	store, _ := newTestStore(t, func(o *Options) {
		o.Config.ReflectEnabled = true
		o.Config.ReflectionThreshold = 3
		o.Generator = gen
	})
	ctx := context.Background()

	// Two observations: below threshold, no reflection.
	for i := 0; i < 2; i++ {
		_, err := store.Append(ctx, "advisor", core.KindObservation, "observation", 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.Count("advisor"))
	assert.Equal(t, 0, gen.CallCount())

	// Third observation crosses the threshold: exactly one reflection.
	_, err := store.Append(ctx, "advisor", core.KindObservation, "observation", 0)
	require.NoError(t, err)
	assert.Equal(t, 4, store.Count("advisor"))
	assert.Equal(t, 1, gen.CallCount())

	// Three more observations: exactly one more reflection.
	for i := 0; i < 3; i++ {
		_, err := store.Append(ctx, "advisor", core.KindObservation, "observation", 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 8, store.Count("advisor"))
	assert.Equal(t, 2, gen.CallCount())
}

func TestReflectionsDoNotTriggerReflections(t *testing.T) {
	gen := model.NewMockGenerator("mock")
	gen.Enqueue("reflection text")

	store, _ := newTestStore(t, func(o *Options) {
		o.Config.ReflectEnabled = true
		o.Config.ReflectionThreshold = 2
		o.Generator = gen
	})
	ctx := context.Background()

	// Manually appended reflections never count toward the threshold.
	for i := 0; i < 4; i++ {
		_, err := store.Append(ctx, "advisor", core.KindReflection, "manual reflection", 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, gen.CallCount())
}

func TestReflectionFailurePropagates(t *testing.T) {
	gen := model.NewMockGenerator("mock")
	gen.EnqueueError(core.NewCollaboratorError(core.CollaboratorRateLimited, "generate", nil))

	store, _ := newTestStore(t, func(o *Options) {
		o.Config.ReflectEnabled = true
		o.Config.ReflectionThreshold = 1
		o.Generator = gen
	})

	_, err := store.Append(context.Background(), "advisor", core.KindObservation, "observation", 0)
	require.Error(t, err)

	collab, ok := core.AsCollaborator(err)
	require.True(t, ok)
	assert.Equal(t, core.CollaboratorRateLimited, collab.Kind)
}

func TestAppendRolledBackOnReflectionFailure(t *testing.T) {
	gen := model.NewMockGenerator("mock")
	gen.EnqueueError(core.NewCollaboratorError(core.CollaboratorRateLimited, "generate", nil))
	gen.Enqueue("diplomacy keeps winning out")

	store, _ := newTestStore(t, func(o *Options) {
		o.Config.ReflectEnabled = true
		o.Config.ReflectionThreshold = 1
		o.Generator = gen
	})
	ctx := context.Background()

	// The failed crossing must leave no trace: no observation, counter intact.
	_, err := store.Append(ctx, "advisor", core.KindObservation, "I recommended restraint", 0)
	require.Error(t, err)
	assert.Equal(t, 0, store.Count("advisor"))

	// Retrying the same Append replays the crossing: one observation plus
	// one reflection, never a duplicate.
	_, err = store.Append(ctx, "advisor", core.KindObservation, "I recommended restraint", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Count("advisor"))
	assert.Equal(t, 2, gen.CallCount())

	got, err := store.Retrieve(ctx, "advisor", "restraint", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	var observations, reflections int
	for _, m := range got {
		switch m.Record.Kind {
		case core.KindObservation:
			observations++
		case core.KindReflection:
			reflections++
		}
	}
	assert.Equal(t, 1, observations)
	assert.Equal(t, 1, reflections)
}

func TestRetrieveRecencyDecay(t *testing.T) {
	store, now := newTestStore(t, func(o *Options) {
		// Score purely by recency.
		o.Config.RelevanceWeight = 0
		o.Config.RecencyWeight = 1
		o.Config.ImportanceWeight = 0
	})
	ctx := context.Background()

	_, err := store.Append(ctx, "advisor", core.KindObservation, "old", 0)
	require.NoError(t, err)

	*now = now.Add(7 * 24 * time.Hour) // one half-life later
	_, err = store.Append(ctx, "advisor", core.KindObservation, "fresh", 0)
	require.NoError(t, err)

	got, err := store.Retrieve(ctx, "advisor", "anything", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "fresh", got[0].Record.Content)
	assert.InDelta(t, 1.0, got[0].Recency, 1e-9)
	assert.InDelta(t, 0.5, got[1].Recency, 1e-9)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestRetrieveRelevanceOrdering(t *testing.T) {
	embedder := &vecEmbedder{vectors: map[string][]float32{
		"trade policy":          {1, 0, 0},
		"tariffs on steel":      {0.9, 0.1, 0},
		"naval exercise timing": {0, 1, 0},
	}}
	store, err := NewStore(embedder, func(o *Options) {
		o.Config.ReflectEnabled = false
		o.Config.RelevanceWeight = 1
		o.Config.RecencyWeight = 0
		o.Config.ImportanceWeight = 0
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Append(ctx, "advisor", core.KindObservation, "naval exercise timing", 0)
	require.NoError(t, err)
	_, err = store.Append(ctx, "advisor", core.KindObservation, "tariffs on steel", 0)
	require.NoError(t, err)

	got, err := store.Retrieve(ctx, "advisor", "trade policy", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "tariffs on steel", got[0].Record.Content)
	assert.Greater(t, got[0].Relevance, got[1].Relevance)
}

func TestRetrieveTieBreaksMostRecentFirst(t *testing.T) {
	store, now := newTestStore(t, func(o *Options) {
		// Recency excluded so records with equal relevance and importance tie.
		o.Config.RelevanceWeight = 0.5
		o.Config.RecencyWeight = 0
		o.Config.ImportanceWeight = 0.5
	})
	ctx := context.Background()

	_, err := store.Append(ctx, "advisor", core.KindObservation, "earlier", 0.8)
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	_, err = store.Append(ctx, "advisor", core.KindObservation, "later", 0.8)
	require.NoError(t, err)

	got, err := store.Retrieve(ctx, "advisor", "query", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, got[0].Score, got[1].Score)
	assert.Equal(t, "later", got[0].Record.Content)
}

func TestRetrieveTopK(t *testing.T) {
	store, now := newTestStore(t, func(o *Options) {
		o.Config.TopK = 2
	})
	ctx := context.Background()

	for i, content := range []string{"a", "b", "c", "d"} {
		*now = now.Add(time.Duration(i) * time.Minute)
		_, err := store.Append(ctx, "advisor", core.KindObservation, content, 0)
		require.NoError(t, err)
	}

	// Explicit topK caps the result.
	got, err := store.Retrieve(ctx, "advisor", "query", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// topK <= 0 falls back to the configured default.
	got, err = store.Retrieve(ctx, "advisor", "query", 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRetrieveEmptyStream(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.Retrieve(context.Background(), "advisor", "query", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClear(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, "advisor", core.KindObservation, "x", 0)
	require.NoError(t, err)
	_, err = store.Append(ctx, "decider", core.KindObservation, "y", 0)
	require.NoError(t, err)

	store.Clear("advisor")
	assert.Equal(t, 0, store.Count("advisor"))
	assert.Equal(t, 1, store.Count("decider"))

	store.ClearAll()
	assert.Equal(t, 0, store.Count("decider"))
}
