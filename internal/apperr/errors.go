// Package apperr defines the error taxonomy shared across the pipeline.
package apperr

import "errors"

var (
	// ErrMalformedContent marks a document that cannot be decoded or
	// normalized. Unrecoverable; the document is rejected.
	ErrMalformedContent = errors.New("malformed content")

	// ErrValidationCritical marks a document with critical schema or field
	// violations. Blocks allocation; the document is held for correction.
	ErrValidationCritical = errors.New("critical validation failure")

	// ErrAllocationExhausted marks an allocation that ran out of sequence
	// retries. Fatal for the document, escalated in the job error list.
	ErrAllocationExhausted = errors.New("allocation retries exhausted")

	// ErrConflict marks a uniqueness collision in a store (sequence or ID
	// already claimed by a concurrent worker).
	ErrConflict = errors.New("conflict")

	ErrNotFound = errors.New("not found")

	// ErrSourceUnavailable marks a transient store or connector failure
	// eligible for backoff retry.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceTimeout marks a retrieval source call that exceeded its
	// per-source deadline; the source is excluded from that query.
	ErrSourceTimeout = errors.New("source timeout")
)

// Transient reports whether err should be retried with backoff.
func Transient(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrSourceTimeout)
}
