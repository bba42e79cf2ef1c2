package grant

import "context"

// Store persists applied grants. Record is the idempotency gate: the
// backing store enforces uniqueness of CorrelationID, so two concurrent
// deliveries of the same event cannot both pass.
type Store interface {
	// Record inserts the grant. Returns the package-level duplicate
	// sentinel when the correlation id has already been recorded.
	Record(ctx context.Context, e *Event) error

	// Get looks up a previously recorded grant by correlation id.
	Get(ctx context.Context, correlationID string) (*Event, error)

	// Delete removes a recorded grant so a failed application can be
	// retried under the same correlation id.
	Delete(ctx context.Context, correlationID string) error
}
