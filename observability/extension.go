// Package observability provides a metrics extension for the credits
// engine that records ledger event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/credits/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnDebit                = (*MetricsExtension)(nil)
	_ plugin.OnDenied               = (*MetricsExtension)(nil)
	_ plugin.OnRefund               = (*MetricsExtension)(nil)
	_ plugin.OnGrantApplied         = (*MetricsExtension)(nil)
	_ plugin.OnDuplicateGrant       = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionGranted  = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCanceled = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionExpired  = (*MetricsExtension)(nil)
	_ plugin.OnAuditFlushed         = (*MetricsExtension)(nil)
	_ plugin.OnWebhookReceived      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide ledger metrics.
// Register it as an engine plugin to automatically track credit flows.
type MetricsExtension struct {
	factory MetricFactory

	// Debit metrics
	DebitsExecuted Counter
	DebitsDenied   Counter
	DebitsRefunded Counter
	DebitAmount    Histogram

	// Grant metrics
	GrantsApplied   Counter
	GrantsDuplicate Counter
	GrantAmount     Histogram

	// Subscription metrics
	SubscriptionsGranted  Counter
	SubscriptionsCanceled Counter
	SubscriptionsExpired  Counter

	// Audit metrics
	AuditBatchSize    Histogram
	AuditFlushLatency Histogram

	// Provider metrics
	WebhooksReceived Counter

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Debit metrics
		DebitsExecuted: factory.Counter("credits.debit.executed"),
		DebitsDenied:   factory.Counter("credits.debit.denied"),
		DebitsRefunded: factory.Counter("credits.debit.refunded"),
		DebitAmount:    factory.Histogram("credits.debit.amount"),

		// Grant metrics
		GrantsApplied:   factory.Counter("credits.grant.applied"),
		GrantsDuplicate: factory.Counter("credits.grant.duplicate"),
		GrantAmount:     factory.Histogram("credits.grant.amount"),

		// Subscription metrics
		SubscriptionsGranted:  factory.Counter("credits.subscription.granted"),
		SubscriptionsCanceled: factory.Counter("credits.subscription.canceled"),
		SubscriptionsExpired:  factory.Counter("credits.subscription.expired"),

		// Audit metrics
		AuditBatchSize:    factory.Histogram("credits.audit.batch.size"),
		AuditFlushLatency: factory.Histogram("credits.audit.flush.latency_ms"),

		// Provider metrics
		WebhooksReceived: factory.Counter("credits.webhook.received"),

		// Error metrics
		StoreErrors:  factory.Counter("credits.store.errors"),
		PluginErrors: factory.Counter("credits.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Debit hooks
// ──────────────────────────────────────────────────

// OnDebit implements plugin.OnDebit.
func (m *MetricsExtension) OnDebit(_ context.Context, _ string, amount int64, _ string) error {
	m.DebitsExecuted.Inc()
	m.DebitAmount.Observe(float64(amount))
	return nil
}

// OnDenied implements plugin.OnDenied.
func (m *MetricsExtension) OnDenied(_ context.Context, _ string, _, _ int64) error {
	m.DebitsDenied.Inc()
	return nil
}

// OnRefund implements plugin.OnRefund.
func (m *MetricsExtension) OnRefund(_ context.Context, _ string, _ int64, _ string) error {
	m.DebitsRefunded.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Grant hooks
// ──────────────────────────────────────────────────

// OnGrantApplied implements plugin.OnGrantApplied.
func (m *MetricsExtension) OnGrantApplied(_ context.Context, _ interface{}) error {
	m.GrantsApplied.Inc()
	return nil
}

// OnDuplicateGrant implements plugin.OnDuplicateGrant.
func (m *MetricsExtension) OnDuplicateGrant(_ context.Context, _ string) error {
	m.GrantsDuplicate.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionGranted implements plugin.OnSubscriptionGranted.
func (m *MetricsExtension) OnSubscriptionGranted(_ context.Context, _ interface{}) error {
	m.SubscriptionsGranted.Inc()
	return nil
}

// OnSubscriptionCanceled implements plugin.OnSubscriptionCanceled.
func (m *MetricsExtension) OnSubscriptionCanceled(_ context.Context, _ interface{}) error {
	m.SubscriptionsCanceled.Inc()
	return nil
}

// OnSubscriptionExpired implements plugin.OnSubscriptionExpired.
func (m *MetricsExtension) OnSubscriptionExpired(_ context.Context, count int64) error {
	m.SubscriptionsExpired.Add(float64(count))
	return nil
}

// ──────────────────────────────────────────────────
// Audit hooks
// ──────────────────────────────────────────────────

// OnAuditFlushed implements plugin.OnAuditFlushed.
func (m *MetricsExtension) OnAuditFlushed(_ context.Context, count int, elapsed time.Duration) error {
	m.AuditBatchSize.Observe(float64(count))
	m.AuditFlushLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Provider hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived implements plugin.OnWebhookReceived.
func (m *MetricsExtension) OnWebhookReceived(_ context.Context, _ string, _ []byte) error {
	m.WebhooksReceived.Inc()
	return nil
}
