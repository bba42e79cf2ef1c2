package credits

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/audit"
	"github.com/xraph/credits/entitlement"
	"github.com/xraph/credits/grant"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/policy"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/subscription"
	"github.com/xraph/credits/types"
)

// Engine is the main credits ledger engine.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// Background workers
	auditBuffer chan *audit.Record
	stopChan    chan struct{}
	wg          sync.WaitGroup

	// Configuration
	auditBatchSize     int
	auditFlushInterval time.Duration
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:              s,
		plugins:            plugin.NewRegistry(),
		logger:             slog.Default(),
		auditBuffer:        make(chan *audit.Record, 10000),
		stopChan:           make(chan struct{}),
		auditBatchSize:     100,
		auditFlushInterval: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithAuditConfig configures audit buffering parameters.
func WithAuditConfig(batchSize int, flushInterval time.Duration) Option {
	return func(e *Engine) {
		e.auditBatchSize = batchSize
		e.auditFlushInterval = flushInterval
	}
}

// Start begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	// Migrate database
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	// Initialize plugins
	e.plugins.EmitInit(ctx, e)

	// Start audit flush worker
	e.wg.Add(1)
	go e.auditFlushWorker(ctx)

	e.logger.Info("credits engine started",
		"audit_batch_size", e.auditBatchSize,
		"audit_flush_interval", e.auditFlushInterval,
	)

	return nil
}

// Stop shuts down the Engine. Buffered audit records are flushed before
// the store closes.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// Store exposes the underlying store for advanced integrations.
func (e *Engine) Store() store.Store {
	return e.store
}

// Plugins exposes the plugin registry.
func (e *Engine) Plugins() *plugin.Registry {
	return e.plugins
}

// ──────────────────────────────────────────────────
// Publish Authorization
// ──────────────────────────────────────────────────

// PublishRequest describes a listing the caller wants to publish.
type PublishRequest struct {
	AccountID id.AccountID `json:"account_id"`
	Category  string       `json:"category"`

	// ItemPrice is the asking price of the listing. A zero price makes
	// the publish free regardless of category.
	ItemPrice *types.Money `json:"item_price,omitempty"`

	// ListingID is recorded in the audit trail and nowhere else.
	ListingID string `json:"listing_id,omitempty"`
}

// Authorization is the result of an authorized (or denied) publish. When
// Debited is non-zero the caller owes a compensating Refund if listing
// creation subsequently fails.
type Authorization struct {
	AccountID id.AccountID   `json:"account_id"`
	Verdict   policy.Verdict `json:"verdict"`

	// Debited is the amount actually taken, and Source the pool it came
	// from. Zero for free and denied outcomes.
	Debited        int64             `json:"debited"`
	Source         policy.Source     `json:"source,omitempty"`
	SubscriptionID id.SubscriptionID `json:"subscription_id,omitempty"`
}

// Allowed reports whether the publish may proceed.
func (a *Authorization) Allowed() bool { return a.Verdict.Allowed() }

// Price resolves the credit cost for a category and asking price. It
// never fails; unknown categories cost the general-goods default.
func (e *Engine) Price(category string, itemPrice *types.Money) int64 {
	return pricing.Resolve(category, itemPrice)
}

// Evaluate reads the account's current standing: free-tier flag, active
// subscription, and personal balance. The snapshot is advisory; the
// conditional decrements in Authorize are the source of truth.
func (e *Engine) Evaluate(ctx context.Context, accountID id.AccountID) (*entitlement.Snapshot, error) {
	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	snap := &entitlement.Snapshot{
		AccountID:       accountID.String(),
		FreeTier:        acct.FreeTier,
		PersonalBalance: acct.PersonalBalance,
	}

	sub, err := e.store.GetActiveSubscription(ctx, accountID, time.Now())
	if err == nil {
		snap.Subscription = sub
	} else if !IsNotFound(err) && !errors.Is(err, ErrNoActiveSubscription) {
		return nil, err
	}

	return snap, nil
}

// Decide runs the posting policy without charging anything. Use it for
// previews ("this listing will cost 4 credits").
func (e *Engine) Decide(ctx context.Context, accountID id.AccountID, category string, itemPrice *types.Money) (policy.Verdict, error) {
	snap, err := e.Evaluate(ctx, accountID)
	if err != nil {
		return policy.Verdict{}, err
	}
	return policy.Decide(snap, pricing.Resolve(category, itemPrice)), nil
}

// Authorize prices the request, decides the policy, and executes the
// debit when one is required. A denial for insufficient funds is a
// normal outcome, not an error: the returned Authorization carries a
// Denied verdict with the required and available amounts.
//
// The debit draws from the subscription pool first and falls back to the
// personal balance. Both attempts are single conditional decrements, so
// concurrent authorizations can never overdraw a pool or debit twice.
func (e *Engine) Authorize(ctx context.Context, req PublishRequest) (*Authorization, error) {
	snap, err := e.Evaluate(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	cost := pricing.Resolve(req.Category, req.ItemPrice)
	verdict := policy.Decide(snap, cost)

	auth := &Authorization{AccountID: req.AccountID, Verdict: verdict}
	if !verdict.Chargeable() {
		return auth, nil
	}

	source, subID, err := e.executeDebit(ctx, req.AccountID, snap, verdict)
	if err != nil {
		return nil, err
	}

	if source == "" {
		// Neither pool could cover the charge.
		available := snap.TotalAvailable()
		auth.Verdict = policy.Deny(cost, available)

		e.recordAudit(&audit.Record{
			ID:        id.NewAuditID(),
			Action:    audit.ActionDeny,
			AccountID: req.AccountID,
			Amount:    cost,
			Outcome:   audit.OutcomeDenied,
			Timestamp: time.Now(),
			Metadata:  auditMeta(req),
		})
		e.plugins.EmitDenied(ctx, req.AccountID.String(), cost, available)

		e.logger.Info("publish denied",
			"account_id", req.AccountID,
			"required", cost,
			"available", available,
		)
		return auth, nil
	}

	auth.Debited = cost
	auth.Source = source
	auth.SubscriptionID = subID

	e.recordAudit(&audit.Record{
		ID:        id.NewAuditID(),
		Action:    audit.ActionDebit,
		AccountID: req.AccountID,
		Amount:    cost,
		Source:    audit.Source(source),
		Outcome:   audit.OutcomeSuccess,
		Timestamp: time.Now(),
		Metadata:  auditMeta(req),
	})
	e.plugins.EmitDebit(ctx, req.AccountID.String(), cost, string(source))

	e.logger.Debug("publish debited",
		"account_id", req.AccountID,
		"amount", cost,
		"source", source,
	)
	return auth, nil
}

// executeDebit attempts the conditional decrements in pool order. It
// returns the pool that paid, or an empty source when both declined.
func (e *Engine) executeDebit(ctx context.Context, accountID id.AccountID, snap *entitlement.Snapshot, verdict policy.Verdict) (policy.Source, id.SubscriptionID, error) {
	if verdict.Source == policy.SourceSubscriptionPool && snap.Subscription != nil {
		ok, err := e.store.DebitPool(ctx, snap.Subscription.ID, verdict.Amount)
		if err != nil {
			return "", id.SubscriptionID{}, err
		}
		if ok {
			return policy.SourceSubscriptionPool, snap.Subscription.ID, nil
		}
	}

	ok, err := e.store.DebitPersonal(ctx, accountID, verdict.Amount)
	if err != nil {
		return "", id.SubscriptionID{}, err
	}
	if ok {
		return policy.SourcePersonalPool, id.SubscriptionID{}, nil
	}

	return "", id.SubscriptionID{}, nil
}

// Refund compensates a debit whose listing creation failed downstream.
// Credits return to the pool they came from; if the subscription row no
// longer accepts them the personal balance receives them instead, so the
// user is never left short.
func (e *Engine) Refund(ctx context.Context, auth *Authorization, reason string) error {
	if auth == nil || auth.Debited <= 0 {
		return nil
	}

	if auth.Source == policy.SourceSubscriptionPool && !auth.SubscriptionID.IsNil() {
		if err := e.store.AddPoolCredits(ctx, auth.SubscriptionID, auth.Debited); err == nil {
			e.auditRefund(ctx, auth, reason)
			return nil
		}
		// Fall through to the personal balance.
	}

	if err := e.store.AddPersonalCredits(ctx, auth.AccountID, auth.Debited); err != nil {
		return err
	}
	auth.Source = policy.SourcePersonalPool
	e.auditRefund(ctx, auth, reason)
	return nil
}

func (e *Engine) auditRefund(ctx context.Context, auth *Authorization, reason string) {
	e.recordAudit(&audit.Record{
		ID:        id.NewAuditID(),
		Action:    audit.ActionRefund,
		AccountID: auth.AccountID,
		Amount:    auth.Debited,
		Source:    audit.Source(auth.Source),
		Outcome:   audit.OutcomeSuccess,
		Timestamp: time.Now(),
		Metadata:  map[string]string{"reason": reason},
	})
	e.plugins.EmitRefund(ctx, auth.AccountID.String(), auth.Debited, string(auth.Source))

	e.logger.Info("debit refunded",
		"account_id", auth.AccountID,
		"amount", auth.Debited,
		"source", auth.Source,
		"reason", reason,
	)
}

func auditMeta(req PublishRequest) map[string]string {
	m := map[string]string{"category": pricing.Normalize(req.Category)}
	if req.ListingID != "" {
		m["listing_id"] = req.ListingID
	}
	return m
}

// ──────────────────────────────────────────────────
// Grant Reconciliation
// ──────────────────────────────────────────────────

// ApplyGrant applies a credit or subscription grant exactly once per
// correlation id. Replays return AlreadyApplied with no mutation, so
// at-least-once webhook delivery and admin retries are safe.
//
// The grant row is recorded before the balance mutation: the unique
// correlation-id index is the atomicity gate. If the mutation then
// fails, the row is removed so the caller can retry.
func (e *Engine) ApplyGrant(ctx context.Context, event *grant.Event) (grant.Outcome, error) {
	if event.CorrelationID == "" {
		return "", ValidationError{Field: "correlation_id", Message: "required"}
	}
	if event.Kind == grant.KindCredits && event.Amount <= 0 {
		return "", ErrInvalidAmount
	}

	if event.ID.IsNil() {
		event.ID = id.NewGrantID()
	}
	event.Entity = types.NewEntity()
	if event.AppliedAt.IsZero() {
		event.AppliedAt = time.Now()
	}

	if err := e.store.RecordGrant(ctx, event); err != nil {
		if IsDuplicateGrant(err) {
			e.plugins.EmitDuplicateGrant(ctx, event.CorrelationID)
			e.logger.Info("grant replayed, absorbing",
				"correlation_id", event.CorrelationID,
			)
			return grant.AlreadyApplied, nil
		}
		return "", err
	}

	var applyErr error
	switch event.Kind {
	case grant.KindCredits:
		applyErr = e.applyCreditsGrant(ctx, event)
	case grant.KindSubscription:
		applyErr = e.applySubscriptionGrant(ctx, event)
	default:
		applyErr = ValidationError{Field: "kind", Message: "unknown grant kind"}
	}

	if applyErr != nil {
		// Remove the gate row so a retry under the same correlation id
		// can succeed.
		_ = e.store.DeleteGrant(ctx, event.CorrelationID) //nolint:errcheck // best-effort compensation
		return "", applyErr
	}

	e.recordAudit(&audit.Record{
		ID:            id.NewAuditID(),
		Action:        audit.ActionGrant,
		AccountID:     event.AccountID,
		Amount:        event.Amount,
		CorrelationID: event.CorrelationID,
		Outcome:       audit.OutcomeSuccess,
		Timestamp:     time.Now(),
		Metadata:      map[string]string{"kind": string(event.Kind)},
	})
	e.plugins.EmitGrantApplied(ctx, event)

	e.logger.Info("grant applied",
		"correlation_id", event.CorrelationID,
		"account_id", event.AccountID,
		"kind", event.Kind,
		"amount", event.Amount,
	)
	return grant.Applied, nil
}

func (e *Engine) applyCreditsGrant(ctx context.Context, event *grant.Event) error {
	if !event.SubscriptionID.IsNil() {
		return e.store.AddPoolCredits(ctx, event.SubscriptionID, event.Amount)
	}
	return e.store.AddPersonalCredits(ctx, event.AccountID, event.Amount)
}

func (e *Engine) applySubscriptionGrant(ctx context.Context, event *grant.Event) error {
	p, err := e.store.GetPlan(ctx, event.PlanID)
	if err != nil {
		return err
	}
	if p.Status == plan.StatusArchived {
		return ErrPlanArchived
	}

	now := event.AppliedAt
	start, end := p.PeriodFrom(now)

	// A renewal for a known provider subscription extends the existing
	// row instead of minting a second one.
	if event.ProviderSubscriptionID != "" {
		existing, err := e.store.GetSubscriptionByProviderID(ctx, event.ProviderSubscriptionID)
		if err == nil {
			existing.PlanID = p.ID
			existing.Status = subscription.StatusActive
			existing.CurrentPeriodStart = start
			existing.CurrentPeriodEnd = end
			existing.PoolBalance += p.IncludedCredits
			existing.UnlimitedPosting = p.UnlimitedPosting
			existing.CanceledAt = nil
			existing.EndedAt = nil
			existing.Touch()
			if err := e.store.UpdateSubscription(ctx, existing); err != nil {
				return err
			}
			if err := e.store.SetFreeTier(ctx, event.AccountID, false); err != nil {
				return err
			}
			e.plugins.EmitSubscriptionGranted(ctx, existing)
			return nil
		}
		if !IsNotFound(err) {
			return err
		}
	}

	sub := &subscription.Subscription{
		Entity:             types.NewEntity(),
		ID:                 id.NewSubscriptionID(),
		AccountID:          event.AccountID,
		PlanID:             p.ID,
		Status:             subscription.StatusActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		// Terms are snapshotted from the plan at grant time; later plan
		// edits never reach this row.
		PoolBalance:            p.IncludedCredits,
		UnlimitedPosting:       p.UnlimitedPosting,
		ProviderSubscriptionID: event.ProviderSubscriptionID,
		ProviderCustomerID:     event.ProviderCustomerID,
	}
	if err := e.store.CreateSubscription(ctx, sub); err != nil {
		return err
	}

	// Acquiring a paid subscription exits free-tier status.
	if err := e.store.SetFreeTier(ctx, event.AccountID, false); err != nil {
		return err
	}

	e.plugins.EmitSubscriptionGranted(ctx, sub)
	return nil
}

// GrantCredits is the administrative entry point for topping up a
// personal balance. The synthetic correlation id keeps retried admin
// actions idempotent.
func (e *Engine) GrantCredits(ctx context.Context, accountID id.AccountID, amount int64, actorID, memo string) (grant.Outcome, error) {
	now := time.Now()
	return e.ApplyGrant(ctx, &grant.Event{
		CorrelationID: grant.AdminCorrelationID(actorID, now),
		AccountID:     accountID,
		Kind:          grant.KindCredits,
		Amount:        amount,
		ActorID:       actorID,
		Memo:          memo,
		AppliedAt:     now,
	})
}

// GetGrant retrieves a previously applied grant by correlation id.
func (e *Engine) GetGrant(ctx context.Context, correlationID string) (*grant.Event, error) {
	return e.store.GetGrant(ctx, correlationID)
}

// ──────────────────────────────────────────────────
// Account Management
// ──────────────────────────────────────────────────

// CreateAccount creates a new credits account.
func (e *Engine) CreateAccount(ctx context.Context, a *account.Account) error {
	if a.ID.IsNil() {
		a.ID = id.NewAccountID()
	}
	a.Entity = types.NewEntity()
	return e.store.CreateAccount(ctx, a)
}

// GetAccount retrieves an account by ID.
func (e *Engine) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	return e.store.GetAccount(ctx, accountID)
}

// GetAccountByUserID retrieves an account by its external user id.
func (e *Engine) GetAccountByUserID(ctx context.Context, userID string) (*account.Account, error) {
	return e.store.GetAccountByUserID(ctx, userID)
}

// SetFreeTier flips the account's free-tier flag.
func (e *Engine) SetFreeTier(ctx context.Context, accountID id.AccountID, freeTier bool) error {
	return e.store.SetFreeTier(ctx, accountID, freeTier)
}

// ──────────────────────────────────────────────────
// Plan Management
// ──────────────────────────────────────────────────

// CreatePlan creates a new plan.
func (e *Engine) CreatePlan(ctx context.Context, p *plan.Plan) error {
	if p.ID.IsNil() {
		p.ID = id.NewPlanID()
	}
	if p.Status == "" {
		p.Status = plan.StatusActive
	}
	p.Entity = types.NewEntity()

	if err := e.store.CreatePlan(ctx, p); err != nil {
		return err
	}

	e.plugins.EmitPlanCreated(ctx, p)
	return nil
}

// GetPlan retrieves a plan by ID.
func (e *Engine) GetPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error) {
	return e.store.GetPlan(ctx, planID)
}

// GetPlanBySlug retrieves a plan by slug.
func (e *Engine) GetPlanBySlug(ctx context.Context, slug string) (*plan.Plan, error) {
	return e.store.GetPlanBySlug(ctx, slug)
}

// ListPlans lists plans.
func (e *Engine) ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	return e.store.ListPlans(ctx, opts)
}

// UpdatePlan updates a plan. Live subscriptions are unaffected.
func (e *Engine) UpdatePlan(ctx context.Context, p *plan.Plan) error {
	p.Touch()
	return e.store.UpdatePlan(ctx, p)
}

// ArchivePlan archives a plan so no new subscriptions can be minted
// from it.
func (e *Engine) ArchivePlan(ctx context.Context, planID id.PlanID) error {
	if err := e.store.ArchivePlan(ctx, planID); err != nil {
		return err
	}
	e.plugins.EmitPlanArchived(ctx, planID.String())
	return nil
}

// ──────────────────────────────────────────────────
// Subscription Management
// ──────────────────────────────────────────────────

// GetSubscription retrieves a subscription by ID.
func (e *Engine) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return e.store.GetSubscription(ctx, subID)
}

// GetActiveSubscription retrieves the account's currently active
// subscription, if any.
func (e *Engine) GetActiveSubscription(ctx context.Context, accountID id.AccountID) (*subscription.Subscription, error) {
	return e.store.GetActiveSubscription(ctx, accountID, time.Now())
}

// ListSubscriptions lists an account's subscriptions.
func (e *Engine) ListSubscriptions(ctx context.Context, accountID id.AccountID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return e.store.ListSubscriptions(ctx, accountID, opts)
}

// CancelSubscription cancels a subscription, at period end by default or
// immediately when requested.
func (e *Engine) CancelSubscription(ctx context.Context, subID id.SubscriptionID, immediately bool) error {
	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return err
	}

	cancelAt := sub.CurrentPeriodEnd
	if immediately {
		cancelAt = time.Now()
	}

	if err := e.store.CancelSubscription(ctx, subID, cancelAt); err != nil {
		return err
	}

	e.plugins.EmitSubscriptionCanceled(ctx, sub)
	return nil
}

// ExpireSubscriptions transitions active subscriptions whose period
// ended before the given instant. Expiry is already enforced at read
// time; this sweep keeps the status column honest for reporting.
func (e *Engine) ExpireSubscriptions(ctx context.Context, before time.Time) (int64, error) {
	count, err := e.store.ExpireSubscriptions(ctx, before)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		e.plugins.EmitSubscriptionExpired(ctx, count)
		e.logger.Info("expired subscriptions", "count", count)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Audit Trail
// ──────────────────────────────────────────────────

// ListAudit lists an account's audit records.
func (e *Engine) ListAudit(ctx context.Context, accountID id.AccountID, opts audit.ListOpts) ([]*audit.Record, error) {
	return e.store.ListAudit(ctx, accountID, opts)
}

// recordAudit enqueues a record for asynchronous persistence. Emission
// never blocks or fails the ledger operation it describes; a full
// buffer drops the record with a warning.
func (e *Engine) recordAudit(r *audit.Record) {
	select {
	case e.auditBuffer <- r:
	default:
		e.logger.Warn("audit buffer full, dropping record",
			"action", r.Action,
			"account_id", r.AccountID,
		)
	}
}

// auditFlushWorker flushes buffered audit records to the store.
func (e *Engine) auditFlushWorker(ctx context.Context) {
	defer e.wg.Done()

	batch := make([]*audit.Record, 0, e.auditBatchSize)
	ticker := time.NewTicker(e.auditFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			// Drain whatever is still buffered, then final flush.
			for {
				select {
				case r := <-e.auditBuffer:
					batch = append(batch, r)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				e.flushAuditBatch(ctx, batch)
			}
			return

		case r := <-e.auditBuffer:
			batch = append(batch, r)
			if len(batch) >= e.auditBatchSize {
				e.flushAuditBatch(ctx, batch)
				batch = make([]*audit.Record, 0, e.auditBatchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				e.flushAuditBatch(ctx, batch)
				batch = make([]*audit.Record, 0, e.auditBatchSize)
			}
		}
	}
}

func (e *Engine) flushAuditBatch(ctx context.Context, batch []*audit.Record) {
	start := time.Now()

	if err := e.store.AppendAudit(ctx, batch); err != nil {
		e.logger.Error("failed to flush audit batch",
			"error", err,
			"batch_size", len(batch),
		)
		return
	}

	elapsed := time.Since(start)
	e.plugins.EmitAuditFlushed(ctx, len(batch), elapsed)

	e.logger.Debug("flushed audit batch",
		"batch_size", len(batch),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}
