// Package audithook bridges credits engine events to an external audit
// trail backend.
//
// It defines a local Recorder interface so the package does not import
// any particular backend. Callers inject a RecorderFunc adapter that
// bridges to their trail at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/credits/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnDebit                = (*Extension)(nil)
	_ plugin.OnDenied               = (*Extension)(nil)
	_ plugin.OnRefund               = (*Extension)(nil)
	_ plugin.OnGrantApplied         = (*Extension)(nil)
	_ plugin.OnDuplicateGrant       = (*Extension)(nil)
	_ plugin.OnSubscriptionGranted  = (*Extension)(nil)
	_ plugin.OnSubscriptionCanceled = (*Extension)(nil)
	_ plugin.OnSubscriptionExpired  = (*Extension)(nil)
	_ plugin.OnPlanCreated          = (*Extension)(nil)
	_ plugin.OnPlanArchived         = (*Extension)(nil)
	_ plugin.OnWebhookReceived      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. It is
// defined locally so callers can inject any concrete trail at wiring
// time without this package depending on it.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges engine events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Debit hooks
// ──────────────────────────────────────────────────

// OnDebit implements plugin.OnDebit.
func (e *Extension) OnDebit(ctx context.Context, accountID string, amount int64, source string) error {
	return e.record(ctx, ActionDebitExecuted, SeverityInfo, OutcomeSuccess,
		ResourceAccount, accountID, CategoryLedger, nil,
		"amount", amount,
		"source", source,
	)
}

// OnDenied implements plugin.OnDenied.
func (e *Extension) OnDenied(ctx context.Context, accountID string, required, available int64) error {
	return e.record(ctx, ActionPublishDenied, SeverityWarning, OutcomeDenied,
		ResourceAccount, accountID, CategoryLedger, nil,
		"required", required,
		"available", available,
	)
}

// OnRefund implements plugin.OnRefund.
func (e *Extension) OnRefund(ctx context.Context, accountID string, amount int64, source string) error {
	return e.record(ctx, ActionDebitRefunded, SeverityWarning, OutcomeSuccess,
		ResourceAccount, accountID, CategoryLedger, nil,
		"amount", amount,
		"source", source,
	)
}

// ──────────────────────────────────────────────────
// Grant hooks
// ──────────────────────────────────────────────────

// OnGrantApplied implements plugin.OnGrantApplied.
func (e *Extension) OnGrantApplied(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionGrantApplied, SeverityInfo, OutcomeSuccess,
		ResourceGrant, "", CategoryPayment, nil,
		"event", "grant_applied",
	)
}

// OnDuplicateGrant implements plugin.OnDuplicateGrant.
func (e *Extension) OnDuplicateGrant(ctx context.Context, correlationID string) error {
	return e.record(ctx, ActionGrantDuplicate, SeverityInfo, OutcomeSuccess,
		ResourceGrant, correlationID, CategoryPayment, nil,
		"correlation_id", correlationID,
	)
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionGranted implements plugin.OnSubscriptionGranted.
func (e *Extension) OnSubscriptionGranted(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionSubscriptionGranted, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, "", CategorySubscription, nil,
		"event", "subscription_granted",
	)
}

// OnSubscriptionCanceled implements plugin.OnSubscriptionCanceled.
func (e *Extension) OnSubscriptionCanceled(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionSubscriptionCanceled, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, "", CategorySubscription, nil,
		"event", "subscription_canceled",
	)
}

// OnSubscriptionExpired implements plugin.OnSubscriptionExpired.
func (e *Extension) OnSubscriptionExpired(ctx context.Context, count int64) error {
	return e.record(ctx, ActionSubscriptionExpired, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, "", CategorySubscription, nil,
		"count", count,
	)
}

// ──────────────────────────────────────────────────
// Plan lifecycle hooks
// ──────────────────────────────────────────────────

// OnPlanCreated implements plugin.OnPlanCreated.
func (e *Extension) OnPlanCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionPlanCreated, SeverityInfo, OutcomeSuccess,
		ResourcePlan, "", CategoryLedger, nil,
		"event", "plan_created",
	)
}

// OnPlanArchived implements plugin.OnPlanArchived.
func (e *Extension) OnPlanArchived(ctx context.Context, planID string) error {
	return e.record(ctx, ActionPlanArchived, SeverityInfo, OutcomeSuccess,
		ResourcePlan, planID, CategoryLedger, nil,
		"plan_id", planID,
	)
}

// ──────────────────────────────────────────────────
// Provider hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived implements plugin.OnWebhookReceived.
func (e *Extension) OnWebhookReceived(ctx context.Context, provider string, payload []byte) error {
	return e.record(ctx, ActionWebhookReceived, SeverityInfo, OutcomeSuccess,
		ResourceWebhook, "", CategoryIntegration, nil,
		"provider", provider,
		"payload_bytes", len(payload),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
