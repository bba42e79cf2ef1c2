package webhook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/credits"
	"github.com/xraph/credits/grant"
	"github.com/xraph/credits/id"
)

// Processor maps provider events onto engine operations. It is safe for
// concurrent use; all state lives in the engine.
type Processor struct {
	engine *credits.Engine
	logger *slog.Logger
}

// NewProcessor creates a webhook processor bound to an engine.
func NewProcessor(engine *credits.Engine, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{engine: engine, logger: logger}
}

// Process handles one raw delivery. Redeliveries of an already-applied
// event succeed without mutating anything. Errors are returned so the
// caller can NACK and let the provider retry.
func (p *Processor) Process(ctx context.Context, provider string, payload []byte) error {
	ev, err := Parse(payload)
	if err != nil {
		return err
	}
	ev.Provider = provider

	p.engine.Plugins().EmitWebhookReceived(ctx, provider, payload)

	switch ev.Type {
	case EventCheckoutCompleted:
		return p.handleCheckoutCompleted(ctx, ev)
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventPaymentSucceeded:
		return p.handleSubscriptionGrant(ctx, ev)
	case EventSubscriptionDeleted:
		return p.handleSubscriptionDeleted(ctx, ev)
	default:
		p.logger.Debug("ignoring webhook event",
			"provider", provider,
			"type", ev.Type,
			"event_id", ev.ID,
		)
		return nil
	}
}

// handleCheckoutCompleted applies a one-off credit purchase to the
// buyer's personal balance.
func (p *Processor) handleCheckoutCompleted(ctx context.Context, ev *Event) error {
	accountID, err := p.resolveAccount(ctx, ev)
	if err != nil {
		return err
	}
	if ev.Data.Credits <= 0 {
		return fmt.Errorf("webhook: %s event %s carries no credits", ev.Type, ev.ID)
	}

	outcome, err := p.engine.ApplyGrant(ctx, &grant.Event{
		CorrelationID: ev.ID,
		AccountID:     accountID,
		Kind:          grant.KindCredits,
		Amount:        ev.Data.Credits,
		Metadata:      map[string]string{"provider": ev.Provider},
	})
	if err != nil {
		return err
	}

	p.logger.Info("checkout processed",
		"event_id", ev.ID,
		"account_id", accountID,
		"credits", ev.Data.Credits,
		"outcome", outcome,
	)
	return nil
}

// handleSubscriptionGrant creates or renews a subscription from the
// plan named in the event.
func (p *Processor) handleSubscriptionGrant(ctx context.Context, ev *Event) error {
	accountID, err := p.resolveAccount(ctx, ev)
	if err != nil {
		return err
	}

	pl, err := p.engine.GetPlanBySlug(ctx, ev.Data.PlanSlug)
	if err != nil {
		return fmt.Errorf("webhook: resolve plan %q: %w", ev.Data.PlanSlug, err)
	}

	outcome, err := p.engine.ApplyGrant(ctx, &grant.Event{
		CorrelationID:          ev.ID,
		AccountID:              accountID,
		Kind:                   grant.KindSubscription,
		PlanID:                 pl.ID,
		ProviderSubscriptionID: ev.Data.ProviderSubscriptionID,
		ProviderCustomerID:     ev.Data.ProviderCustomerID,
		Metadata:               map[string]string{"provider": ev.Provider},
	})
	if err != nil {
		return err
	}

	p.logger.Info("subscription event processed",
		"event_id", ev.ID,
		"account_id", accountID,
		"plan", ev.Data.PlanSlug,
		"outcome", outcome,
	)
	return nil
}

// handleSubscriptionDeleted cancels the matching subscription
// immediately. An unknown provider subscription id is acknowledged; the
// row may have been canceled through another path already.
func (p *Processor) handleSubscriptionDeleted(ctx context.Context, ev *Event) error {
	sub, err := p.engine.Store().GetSubscriptionByProviderID(ctx, ev.Data.ProviderSubscriptionID)
	if err != nil {
		if credits.IsNotFound(err) {
			p.logger.Warn("subscription delete for unknown provider id",
				"event_id", ev.ID,
				"provider_subscription_id", ev.Data.ProviderSubscriptionID,
			)
			return nil
		}
		return err
	}
	return p.engine.CancelSubscription(ctx, sub.ID, true)
}

// resolveAccount maps the event's account or user reference onto a
// ledger account id.
func (p *Processor) resolveAccount(ctx context.Context, ev *Event) (id.AccountID, error) {
	if ev.Data.AccountID != "" {
		return id.ParseAccountID(ev.Data.AccountID)
	}
	if ev.Data.UserID != "" {
		acct, err := p.engine.GetAccountByUserID(ctx, ev.Data.UserID)
		if err != nil {
			return id.AccountID{}, fmt.Errorf("webhook: resolve user %q: %w", ev.Data.UserID, err)
		}
		return acct.ID, nil
	}
	return id.AccountID{}, fmt.Errorf("webhook: event %s names no account", ev.ID)
}
