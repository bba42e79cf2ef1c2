// Package plugin provides an extensible plugin system for the credits
// engine. Plugins can hook into lifecycle and ledger events to extend
// functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Debit hooks
// ──────────────────────────────────────────────────

// OnDebit is called after a successful debit.
type OnDebit interface {
	Plugin
	OnDebit(ctx context.Context, accountID string, amount int64, source string) error
}

// OnDenied is called when a publish is denied for insufficient funds.
type OnDenied interface {
	Plugin
	OnDenied(ctx context.Context, accountID string, required, available int64) error
}

// OnRefund is called after a compensating refund is applied.
type OnRefund interface {
	Plugin
	OnRefund(ctx context.Context, accountID string, amount int64, source string) error
}

// ──────────────────────────────────────────────────
// Grant hooks
// ──────────────────────────────────────────────────

// OnGrantApplied is called when a grant is applied for the first time.
type OnGrantApplied interface {
	Plugin
	OnGrantApplied(ctx context.Context, event interface{}) error
}

// OnDuplicateGrant is called when a grant is replayed under an
// already-seen correlation id and absorbed as a no-op.
type OnDuplicateGrant interface {
	Plugin
	OnDuplicateGrant(ctx context.Context, correlationID string) error
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionGranted is called when a subscription grant creates or
// renews a subscription.
type OnSubscriptionGranted interface {
	Plugin
	OnSubscriptionGranted(ctx context.Context, sub interface{}) error
}

// OnSubscriptionCanceled is called when a subscription is canceled.
type OnSubscriptionCanceled interface {
	Plugin
	OnSubscriptionCanceled(ctx context.Context, sub interface{}) error
}

// OnSubscriptionExpired is called when the expiry sweep transitions
// subscriptions past their period end.
type OnSubscriptionExpired interface {
	Plugin
	OnSubscriptionExpired(ctx context.Context, count int64) error
}

// ──────────────────────────────────────────────────
// Plan lifecycle hooks
// ──────────────────────────────────────────────────

// OnPlanCreated is called when a new plan is created.
type OnPlanCreated interface {
	Plugin
	OnPlanCreated(ctx context.Context, p interface{}) error
}

// OnPlanArchived is called when a plan is archived.
type OnPlanArchived interface {
	Plugin
	OnPlanArchived(ctx context.Context, planID string) error
}

// ──────────────────────────────────────────────────
// Audit hooks
// ──────────────────────────────────────────────────

// OnAuditFlushed is called when buffered audit records are flushed to
// the store.
type OnAuditFlushed interface {
	Plugin
	OnAuditFlushed(ctx context.Context, count int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Provider hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived is called when a payment-provider webhook is received.
type OnWebhookReceived interface {
	Plugin
	OnWebhookReceived(ctx context.Context, provider string, payload []byte) error
}

// Notifier delivers user-facing notifications (denial messages, low
// balance warnings) through an external channel.
type Notifier interface {
	Plugin
	Notify(ctx context.Context, accountID, kind, message string) error
}
