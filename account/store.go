package account

import (
	"context"

	"github.com/xraph/credits/id"
)

// Store is the account-scoped persistence interface. DebitPersonal is the
// only conditional mutation: it must be a single atomic compare-and-decrement
// against the backing store.
type Store interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, accountID id.AccountID) (*Account, error)
	GetByUserID(ctx context.Context, userID string) (*Account, error)
	SetFreeTier(ctx context.Context, accountID id.AccountID, freeTier bool) error

	// AddPersonal increments the personal balance by amount.
	AddPersonal(ctx context.Context, accountID id.AccountID, amount int64) error

	// DebitPersonal decrements the personal balance by amount only if the
	// current balance is at least amount. Returns false when no row was
	// affected (insufficient balance or unknown account).
	DebitPersonal(ctx context.Context, accountID id.AccountID, amount int64) (bool, error)
}
