package model

import "errors"

// Error taxonomy shared across handlers and the reconciler. Stores and
// provider clients wrap these so callers can pick the right HTTP status and
// retry behavior with errors.Is.
var (
	// ErrPrecondition marks a command issued against a team with no linked
	// billing customer or no active subscription. Surfaced as a business
	// error, never retried.
	ErrPrecondition = errors.New("precondition failed")

	// ErrVersionConflict is returned by compare-and-set team updates when a
	// concurrent writer advanced the version first. The reconciler re-reads
	// and re-applies; it is never surfaced to callers.
	ErrVersionConflict = errors.New("version conflict")

	// ErrNotFound is returned where absence is an error rather than a nil
	// result.
	ErrNotFound = errors.New("not found")
)
