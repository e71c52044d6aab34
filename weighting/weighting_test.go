package weighting

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignment_WorkedExample(t *testing.T) {
	decider := map[string]float64{"deterrence": 0.8, "alliances": 0.5}
	advisor := map[string]float64{"deterrence": 0.9, "readiness": 0.7}

	// shared dims = {deterrence}; dot = 0.72; max = 0.9
	assert.InDelta(t, 0.8, Alignment(decider, advisor), 1e-9)

	w := Weight(0.60, decider, advisor, DefaultConfig())
	assert.InDelta(t, 0.68, w.Final, 1e-9) // 0.6*0.6 + 0.4*0.8
	assert.InDelta(t, 0.8, w.Alignment, 1e-9)
	assert.InDelta(t, 0.6, w.Relationship, 1e-9)
}

func TestAlignment_NoOverlap(t *testing.T) {
	a := map[string]float64{"trade": 0.9}
	b := map[string]float64{"readiness": 0.7}
	assert.Zero(t, Alignment(a, b))
	assert.Zero(t, Alignment(nil, b))
	assert.Zero(t, Alignment(a, nil))
}

func TestAlignment_IdenticalMaps(t *testing.T) {
	m := map[string]float64{"deterrence": 0.8, "alliances": 0.5, "economy": 0.3}
	assert.InDelta(t, 1.0, Alignment(m, m), 1e-9)
}

func TestAlignment_ZeroWeights(t *testing.T) {
	a := map[string]float64{"deterrence": 0}
	b := map[string]float64{"deterrence": 0}
	assert.Zero(t, Alignment(a, b)) // maxPossible guard, no division by zero
}

func TestAlignment_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	dims := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < 500; i++ {
		x := map[string]float64{}
		y := map[string]float64{}
		for _, d := range dims {
			if rng.Intn(2) == 0 {
				x[d] = rng.Float64()
			}
			if rng.Intn(2) == 0 {
				y[d] = rng.Float64()
			}
		}
		al := Alignment(x, y)
		require.GreaterOrEqual(t, al, 0.0)
		require.LessOrEqual(t, al, 1.0)
	}
}

func TestWeight_Deterministic(t *testing.T) {
	decider := map[string]float64{"x": 1.0, "y": 0.4}
	advisor := map[string]float64{"x": 0.2, "z": 0.9}

	first := Weight(0.55, decider, advisor, DefaultConfig())
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Weight(0.55, decider, advisor, DefaultConfig()))
	}
}

func TestWeight_OrderIndependent(t *testing.T) {
	decider := map[string]float64{"x": 1.0}
	advisorA := map[string]float64{"x": 1.0}
	advisorB := map[string]float64{"x": 0.2}

	// A then B
	a1 := Weight(0.5, decider, advisorA, DefaultConfig())
	b1 := Weight(0.9, decider, advisorB, DefaultConfig())
	// B then A
	b2 := Weight(0.9, decider, advisorB, DefaultConfig())
	a2 := Weight(0.5, decider, advisorA, DefaultConfig())

	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
}

func TestWeight_EndToEndScenario(t *testing.T) {
	decider := map[string]float64{"x": 1.0}

	a := Weight(0.5, decider, map[string]float64{"x": 1.0}, Config{})
	b := Weight(0.9, decider, map[string]float64{"x": 0.2}, Config{})

	assert.InDelta(t, 1.0, a.Alignment, 1e-9)
	assert.InDelta(t, 0.70, a.Final, 1e-9)
	assert.InDelta(t, 0.2, b.Alignment, 1e-9)
	assert.InDelta(t, 0.62, b.Final, 1e-9)

	// alignment dominates B's higher relationship score
	assert.Greater(t, a.Final, b.Final)
}

func TestWeight_Clamped(t *testing.T) {
	m := map[string]float64{"x": 1.0}
	w := Weight(2.0, m, m, Config{RelationshipCoef: 1.0, AlignmentCoef: 1.0})
	assert.Equal(t, 1.0, w.Final)

	w = Weight(-3.0, m, map[string]float64{"y": 1}, Config{RelationshipCoef: 1.0, AlignmentCoef: 0})
	assert.Equal(t, 0.0, w.Final)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{RelationshipCoef: -0.1, AlignmentCoef: 0.4}.Validate())
}

func TestConfig_ZeroValueUsesDefaults(t *testing.T) {
	m := map[string]float64{"x": 1.0}
	w := Weight(1.0, m, m, Config{})
	assert.InDelta(t, 1.0, w.Final, 1e-9) // 0.6*1 + 0.4*1
}
