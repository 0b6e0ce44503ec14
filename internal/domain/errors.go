package domain

import "errors"

// Sentinel errors shared across the relay, repositories and the capture
// agent. Callers match them with errors.Is; wrapping with fmt.Errorf("%w")
// is expected so the original cause stays attached.
var (
	// ErrInvalidInput signals malformed input: empty byte payloads,
	// non-hex hashes, empty or overlong storage keys.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamFetch signals that a source image could not be fetched
	// (non-2xx, network error, or timeout).
	ErrUpstreamFetch = errors.New("upstream fetch failed")

	// ErrStoreUnavailable signals a blob storage transport failure.
	ErrStoreUnavailable = errors.New("object store unavailable")

	// ErrValidation signals a missing required metadata field.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound signals a hash or page lookup miss.
	ErrNotFound = errors.New("not found")

	// ErrInconsistentState signals that a delete found matching rows but
	// removed none. Treated as a hard stop, never retried.
	ErrInconsistentState = errors.New("inconsistent state")

	// ErrUnauthorized signals an API key mismatch.
	ErrUnauthorized = errors.New("unauthorized")
)
