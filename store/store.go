package store

import (
	"context"
	"time"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/audit"
	"github.com/xraph/credits/grant"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/subscription"
)

// Store is the unified storage interface for all Credits entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
//
// DebitPersonal, DebitPool, and RecordGrant are the concurrency-sensitive
// methods: each must be a single atomic operation against the backing
// store (conditional decrement, conditional decrement, unique insert).
// Everything else is plain CRUD.
type Store interface {
	// Account methods
	CreateAccount(ctx context.Context, a *account.Account) error
	GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error)
	GetAccountByUserID(ctx context.Context, userID string) (*account.Account, error)
	SetFreeTier(ctx context.Context, accountID id.AccountID, freeTier bool) error
	AddPersonalCredits(ctx context.Context, accountID id.AccountID, amount int64) error
	DebitPersonal(ctx context.Context, accountID id.AccountID, amount int64) (bool, error)

	// Subscription methods
	CreateSubscription(ctx context.Context, s *subscription.Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error)
	GetActiveSubscription(ctx context.Context, accountID id.AccountID, at time.Time) (*subscription.Subscription, error)
	GetSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*subscription.Subscription, error)
	ListSubscriptions(ctx context.Context, accountID id.AccountID, opts subscription.ListOpts) ([]*subscription.Subscription, error)
	UpdateSubscription(ctx context.Context, s *subscription.Subscription) error
	CancelSubscription(ctx context.Context, subID id.SubscriptionID, cancelAt time.Time) error
	ExpireSubscriptions(ctx context.Context, before time.Time) (int64, error)
	AddPoolCredits(ctx context.Context, subID id.SubscriptionID, amount int64) error
	DebitPool(ctx context.Context, subID id.SubscriptionID, amount int64) (bool, error)

	// Plan methods
	CreatePlan(ctx context.Context, p *plan.Plan) error
	GetPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error)
	GetPlanBySlug(ctx context.Context, slug string) (*plan.Plan, error)
	ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error)
	UpdatePlan(ctx context.Context, p *plan.Plan) error
	ArchivePlan(ctx context.Context, planID id.PlanID) error

	// Grant methods
	RecordGrant(ctx context.Context, e *grant.Event) error
	GetGrant(ctx context.Context, correlationID string) (*grant.Event, error)
	DeleteGrant(ctx context.Context, correlationID string) error

	// Audit methods
	AppendAudit(ctx context.Context, records []*audit.Record) error
	ListAudit(ctx context.Context, accountID id.AccountID, opts audit.ListOpts) ([]*audit.Record, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
