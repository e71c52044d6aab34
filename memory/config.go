package memory

import (
	"math"

	"github.com/hupe1980/councilmesh/core"
)

// Default scoring and lifecycle parameters.
const (
	DefaultRelevanceWeight  = 0.4
	DefaultRecencyWeight    = 0.3
	DefaultImportanceWeight = 0.3

	DefaultHalfLifeDays        = 7.0
	DefaultReflectionThreshold = 10
	DefaultTopK                = 5

	DefaultObservationImportance = 0.9
	DefaultReflectionImportance  = 0.95
)

// Config tunes retrieval scoring and the reflection lifecycle.
type Config struct {
	// Retrieval score weights; must sum to 1.
	RelevanceWeight  float64
	RecencyWeight    float64
	ImportanceWeight float64

	// HalfLifeDays controls the exponential recency decay.
	HalfLifeDays float64

	// ReflectionThreshold is the number of observations per participant that
	// triggers one reflection. ReflectEnabled gates synthesis entirely.
	ReflectionThreshold int
	ReflectEnabled      bool

	// TopK is the default retrieval depth when the caller passes 0.
	TopK int

	// Importance assigned to records appended without an explicit score.
	ObservationImportance float64
	ReflectionImportance  float64
}

// DefaultConfig returns the standard 0.4/0.3/0.3 scoring with a 7 day
// half-life and reflection every 10 observations.
func DefaultConfig() Config {
	return Config{
		RelevanceWeight:       DefaultRelevanceWeight,
		RecencyWeight:         DefaultRecencyWeight,
		ImportanceWeight:      DefaultImportanceWeight,
		HalfLifeDays:          DefaultHalfLifeDays,
		ReflectionThreshold:   DefaultReflectionThreshold,
		ReflectEnabled:        true,
		TopK:                  DefaultTopK,
		ObservationImportance: DefaultObservationImportance,
		ReflectionImportance:  DefaultReflectionImportance,
	}
}

// Validate rejects configurations the scoring model cannot support.
func (c Config) Validate() error {
	sum := c.RelevanceWeight + c.RecencyWeight + c.ImportanceWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return core.NewConfigError("memory.weights", "retrieval weights must sum to 1, got %v", sum)
	}
	if c.RelevanceWeight < 0 || c.RecencyWeight < 0 || c.ImportanceWeight < 0 {
		return core.NewConfigError("memory.weights", "retrieval weights must be non-negative")
	}
	if c.HalfLifeDays <= 0 {
		return core.NewConfigError("memory.half_life_days", "half-life must be positive, got %v", c.HalfLifeDays)
	}
	if c.ReflectionThreshold <= 0 {
		return core.NewConfigError("memory.reflection_threshold", "threshold must be positive, got %d", c.ReflectionThreshold)
	}
	if c.TopK <= 0 {
		return core.NewConfigError("memory.top_k", "top_k must be positive, got %d", c.TopK)
	}
	if c.ObservationImportance < 0 || c.ObservationImportance > 1 ||
		c.ReflectionImportance < 0 || c.ReflectionImportance > 1 {
		return core.NewConfigError("memory.importance", "importance defaults must be in [0,1]")
	}
	return nil
}
