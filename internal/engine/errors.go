package engine

import (
	"errors"
	"fmt"

	"dublett/internal/similarity"
)

// Error kinds surfaced by the engine. The API layer translates these into
// structured responses; callers distinguish them with errors.Is.
var (
	// ErrIngestion marks an upload whose bytes could not be read or
	// fingerprinted. Fatal to that single file, never to the engine.
	ErrIngestion = errors.New("ingestion failure")

	// ErrTenantMismatch rejects any cross-tenant comparison or action.
	ErrTenantMismatch = similarity.ErrTenantMismatch

	// ErrGroupContention signals a lock or claim conflict on concurrent
	// group mutation. Retryable with backoff.
	ErrGroupContention = errors.New("group contention")

	// ErrResolutionInvariant rejects resolutions that would violate a
	// group invariant, such as deleting the master or the last member.
	// No state changes when it is returned.
	ErrResolutionInvariant = errors.New("resolution invariant violation")

	// ErrGroupNotFound reports an operation on a stale or deleted group.
	ErrGroupNotFound = errors.New("group not found")

	// ErrFileNotFound reports an operation on an unknown file id.
	ErrFileNotFound = errors.New("file not found")
)

func ingestionFailure(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrIngestion, name, err)
}

func invariantViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrResolutionInvariant, fmt.Sprintf(format, args...))
}
