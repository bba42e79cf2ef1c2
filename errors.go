package credits

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("credits: not found")
	ErrAlreadyExists = errors.New("credits: already exists")
	ErrInvalidInput  = errors.New("credits: invalid input")

	// Account errors
	ErrAccountNotFound = errors.New("credits: account not found")

	// Plan errors
	ErrPlanNotFound = errors.New("credits: plan not found")
	ErrPlanArchived = errors.New("credits: plan is archived")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("credits: subscription not found")
	ErrNoActiveSubscription = errors.New("credits: no active subscription")
	ErrSubscriptionExpired  = errors.New("credits: subscription is expired")

	// Grant errors
	ErrDuplicateGrant = errors.New("credits: grant already applied for correlation id")
	ErrGrantNotFound  = errors.New("credits: grant not found")

	// Debit errors
	ErrInvalidAmount = errors.New("credits: debit/grant amount must be positive")

	// Store errors
	ErrStoreNotReady     = errors.New("credits: store not ready")
	ErrStoreClosed       = errors.New("credits: store is closed")
	ErrMigrationFailed   = errors.New("credits: migration failed")
	ErrUpstreamTransient = errors.New("credits: store did not respond; retry")

	// Audit errors
	ErrAuditBufferFull = errors.New("credits: audit buffer full")
)

// InsufficientFundsError is the structured denial returned when neither
// balance can cover a charge. It reports both the required amount and the
// sum of the balances so callers can present an actionable message
// without a second round trip. Insufficient funds is an expected business
// outcome, not a system fault.
type InsufficientFundsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("credits: insufficient funds: required %d, available %d", e.Required, e.Available)
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("credits: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrGrantNotFound)
}

// IsInsufficientFunds returns true if the error is a structured denial.
func IsInsufficientFunds(err error) bool {
	var ife *InsufficientFundsError
	return errors.As(err, &ife)
}

// IsDuplicateGrant returns true if the error marks an already-applied
// correlation id. Callers should treat this as a no-op success.
func IsDuplicateGrant(err error) bool {
	return errors.Is(err, ErrDuplicateGrant)
}

// IsRetryable returns true if the error is temporary and the operation can
// be retried. Grant applications are safe to retry under the same
// correlation id; debits are not idempotent and must not be blindly
// retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrUpstreamTransient) ||
		errors.Is(err, ErrAuditBufferFull)
}
