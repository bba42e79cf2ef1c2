// Package webhook turns payment-provider deliveries into grant
// applications. Providers deliver at least once; the processor leans on
// the engine's correlation-id idempotency, so redeliveries are absorbed
// without double-crediting.
package webhook

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types the processor understands. Unknown types are acknowledged
// and ignored so a provider adding event types never breaks deliveries.
const (
	EventCheckoutCompleted   = "checkout.completed"
	EventSubscriptionCreated = "subscription.created"
	EventSubscriptionUpdated = "subscription.updated"
	EventSubscriptionDeleted = "subscription.deleted"
	EventPaymentSucceeded    = "payment.succeeded"
)

// Event is the normalized provider envelope. The delivery id doubles as
// the grant correlation id.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
	Data      Data      `json:"data"`
}

// Data carries the event payload fields the ledger cares about.
type Data struct {
	AccountID string `json:"account_id"`
	UserID    string `json:"user_id,omitempty"`

	// Credit purchases.
	Credits int64 `json:"credits,omitempty"`

	// Subscription events.
	PlanSlug               string `json:"plan_slug,omitempty"`
	ProviderSubscriptionID string `json:"provider_subscription_id,omitempty"`
	ProviderCustomerID     string `json:"provider_customer_id,omitempty"`
}

// Parse decodes a raw delivery into an Event.
func Parse(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("webhook: decode event: %w", err)
	}
	if ev.ID == "" {
		return nil, fmt.Errorf("webhook: event missing id")
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("webhook: event missing type")
	}
	return &ev, nil
}
