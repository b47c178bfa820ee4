package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the recoverable/unrecoverable taxonomy.
var (
	// ErrIndexUnavailable means every index strategy, including the full
	// scan, failed. Queries escalate this to a terminal ERROR state.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrModelTimeout and ErrModelUnavailable are recoverable: the rerank
	// term is zeroed and the response is flagged degraded.
	ErrModelTimeout     = errors.New("rerank model timed out")
	ErrModelUnavailable = errors.New("rerank model unavailable")

	// ErrVersionConflict signals a concurrent version bump that survived
	// one optimistic retry. Surfaced to the ingestion collaborator.
	ErrVersionConflict = errors.New("conflicting document version")
)

// ValidationError rejects malformed input synchronously, before any work
// enters the pipeline.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ReasonCode labels a terminal ERROR state for consumers.
type ReasonCode string

const (
	ReasonIndexUnavailable ReasonCode = "index_unavailable"
	ReasonInternal         ReasonCode = "internal"
)
