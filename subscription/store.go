package subscription

import (
	"context"
	"time"

	"github.com/xraph/credits/id"
)

// Store is the subscription-scoped persistence interface. DebitPool is the
// only conditional mutation: a single atomic compare-and-decrement that also
// requires the row to still be active at the time of the write.
type Store interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, subID id.SubscriptionID) (*Subscription, error)

	// GetActive returns the account's subscription whose status is active
	// and whose [start, end) period contains at. At most one such row exists.
	GetActive(ctx context.Context, accountID id.AccountID, at time.Time) (*Subscription, error)

	// GetByProviderID looks a subscription up by the payment provider's
	// subscription identifier, used for webhook reconciliation.
	GetByProviderID(ctx context.Context, providerSubscriptionID string) (*Subscription, error)

	List(ctx context.Context, accountID id.AccountID, opts ListOpts) ([]*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	Cancel(ctx context.Context, subID id.SubscriptionID, cancelAt time.Time) error

	// ExpireSubscriptions flips status to expired on every active row whose
	// period end has passed, returning the number of rows affected.
	ExpireSubscriptions(ctx context.Context, before time.Time) (int64, error)

	// AddPool increments the subscription's credit pool by amount.
	AddPool(ctx context.Context, subID id.SubscriptionID, amount int64) error

	// DebitPool decrements the pool by amount only if the row is still
	// active and its balance is at least amount. Returns false when no row
	// was affected.
	DebitPool(ctx context.Context, subID id.SubscriptionID, amount int64) (bool, error)
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
