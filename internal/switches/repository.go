package switches

import (
	"context"
	"errors"
	"fmt"
)

// Repository is the durable backing for switch state.
//
// Implementations must make Save atomic for a single record: after a
// crash, LoadAll returns either the previous or the new record, never a
// partial one.
type Repository interface {
	// LoadAll returns every decodable record keyed by switch id.
	// Undecodable records are left out and reported in an error that
	// matches ErrCorruptState; the returned map is still usable.
	LoadAll(ctx context.Context) (map[string]Record, error)

	// Save durably writes one record.
	Save(ctx context.Context, rec Record) error

	// Close releases the backend.
	Close() error
}

// corruptError joins per-record decode failures under ErrCorruptState.
// Returns nil when errs is empty.
func corruptError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrCorruptState, errors.Join(errs...))
}
