package pending

import "context"

// Store persists the single pending-verification record for the duration of
// one verification attempt. The store is intentionally volatile: it exists to
// survive a reload or deep-link arrival, not as durable state.
type Store interface {
	// Save serializes and persists the record.
	Save(ctx context.Context, record Record) error

	// Load returns the persisted record, or nil when no usable record exists.
	Load(ctx context.Context) (*Record, error)

	// Clear removes the persisted record.
	Clear(ctx context.Context) error
}
