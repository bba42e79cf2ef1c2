package subscription

import (
	"time"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/types"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusCanceled Status = "canceled"
	StatusExpired  Status = "expired"
)

// Subscription attaches a credit pool (and optionally unlimited posting)
// to an account for the [CurrentPeriodStart, CurrentPeriodEnd) window.
// At most one subscription per account is active at any instant.
//
// UnlimitedPosting and PoolBalance are snapshotted from the plan at grant
// time; later plan edits never affect a live subscription.
type Subscription struct {
	types.Entity
	ID                 id.SubscriptionID `json:"id"`
	AccountID          id.AccountID      `json:"account_id"`
	PlanID             id.PlanID         `json:"plan_id"`
	Status             Status            `json:"status"`
	CurrentPeriodStart time.Time         `json:"current_period_start"`
	CurrentPeriodEnd   time.Time         `json:"current_period_end"`
	PoolBalance        int64             `json:"pool_balance"`
	UnlimitedPosting   bool              `json:"unlimited_posting"`
	CanceledAt         *time.Time        `json:"canceled_at,omitempty"`
	EndedAt            *time.Time        `json:"ended_at,omitempty"`

	// Payment-provider identifiers used by the grant reconciler to match
	// webhook deliveries to this row.
	ProviderSubscriptionID string `json:"provider_subscription_id,omitempty"`
	ProviderCustomerID     string `json:"provider_customer_id,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// ActiveAt reports whether the subscription is usable at the given instant:
// status is active and the instant falls inside the current period.
// Expiry is evaluated at read time; a row whose period has lapsed is not
// active even if its status column still says so.
func (s *Subscription) ActiveAt(at time.Time) bool {
	if s.Status != StatusActive {
		return false
	}
	return !at.Before(s.CurrentPeriodStart) && at.Before(s.CurrentPeriodEnd)
}
