package core

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an invalid or incomplete configuration: a missing
// relationship score, retrieval weights that do not sum to one, an empty
// advisor set. It is fatal at run initialization and never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NewConfigError builds a ConfigurationError with a formatted reason.
func NewConfigError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// CollaboratorKind classifies failures of external collaborators.
type CollaboratorKind string

const (
	CollaboratorRateLimited      CollaboratorKind = "rate_limited"
	CollaboratorTimeout          CollaboratorKind = "timeout"
	CollaboratorAuthFailure      CollaboratorKind = "auth_failure"
	CollaboratorInvalidResponse  CollaboratorKind = "invalid_response"
	CollaboratorIndexUnavailable CollaboratorKind = "index_unavailable"
)

// CollaboratorError wraps a failed generation or retrieval call. Retryable
// kinds are retried with bounded exponential backoff before a run fails.
type CollaboratorError struct {
	Kind CollaboratorKind
	Op   string // the failed operation, e.g. "generate recommendation"
	Err  error
}

func (e *CollaboratorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("collaborator error (%s) during %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("collaborator error (%s) during %s", e.Kind, e.Op)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Retryable reports whether the engine may retry the call. Authentication
// failures never succeed on retry; everything else is transient in principle.
func (e *CollaboratorError) Retryable() bool {
	return e.Kind != CollaboratorAuthFailure
}

// NewCollaboratorError wraps err as a CollaboratorError of the given kind.
func NewCollaboratorError(kind CollaboratorKind, op string, err error) *CollaboratorError {
	return &CollaboratorError{Kind: kind, Op: op, Err: err}
}

// DataInvariantError reports a violated internal invariant, such as a
// non-monotonic memory timestamp or a decision referencing an advisor without
// a recommendation. Violations are rejected locally and fail the run; they are
// never silently coerced.
type DataInvariantError struct {
	Invariant string
	Detail    string
}

func (e *DataInvariantError) Error() string {
	return fmt.Sprintf("data invariant violated (%s): %s", e.Invariant, e.Detail)
}

// NewInvariantError builds a DataInvariantError with a formatted detail.
func NewInvariantError(invariant, format string, args ...any) *DataInvariantError {
	return &DataInvariantError{Invariant: invariant, Detail: fmt.Sprintf(format, args...)}
}

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// AsCollaborator extracts a wrapped CollaboratorError, if any.
func AsCollaborator(err error) (*CollaboratorError, bool) {
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
