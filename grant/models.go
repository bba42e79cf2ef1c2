package grant

import (
	"fmt"
	"time"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/types"
)

// Kind distinguishes the two grant shapes the reconciler applies.
type Kind string

const (
	// KindCredits adds a fixed number of credits to the personal balance
	// or to a named subscription's pool.
	KindCredits Kind = "credits"

	// KindSubscription mints (or upgrades) a subscription from a plan.
	KindSubscription Kind = "subscription"
)

// Outcome is the result of applying a grant.
type Outcome string

const (
	// Applied means the grant mutated a balance or created a subscription.
	Applied Outcome = "applied"

	// AlreadyApplied means the correlation id was seen before and nothing
	// was mutated. This is a success, not an error: webhook delivery is
	// at-least-once and redeliveries are expected.
	AlreadyApplied Outcome = "already_applied"
)

// Event is a credit or subscription grant keyed by an external correlation
// id (payment intent id, checkout session id, or a synthetic admin id).
// A given correlation id is applied at most once.
type Event struct {
	types.Entity
	ID            id.GrantID   `json:"id"`
	CorrelationID string       `json:"correlation_id"`
	AccountID     id.AccountID `json:"account_id"`
	Kind          Kind         `json:"kind"`

	// Credits grants.
	Amount int64 `json:"amount,omitempty"`
	// SubscriptionID targets a named subscription's pool; when nil the
	// personal balance receives the credits.
	SubscriptionID id.SubscriptionID `json:"subscription_id,omitempty"`

	// Subscription grants.
	PlanID                 id.PlanID `json:"plan_id,omitempty"`
	ProviderSubscriptionID string    `json:"provider_subscription_id,omitempty"`
	ProviderCustomerID     string    `json:"provider_customer_id,omitempty"`

	// Administrative grants record the acting operator instead of a
	// payment-provider correlation id.
	ActorID string `json:"actor_id,omitempty"`
	Memo    string `json:"memo,omitempty"`

	AppliedAt time.Time         `json:"applied_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AdminCorrelationID builds the synthetic correlation id for an
// administrative grant so retried admin actions stay idempotent.
func AdminCorrelationID(actorID string, at time.Time) string {
	return fmt.Sprintf("admin:%s:%d", actorID, at.Unix())
}
