package core

import "github.com/google/uuid"

// NewID returns a new globally unique identifier for runs and memory records.
func NewID() string { return uuid.NewString() }
