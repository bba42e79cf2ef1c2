package account

import (
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/types"
)

// Account is the ledger record for a single user: their personal credit
// balance and free-tier standing. The personal balance is only ever
// decremented by the debit executor and incremented by the grant
// reconciler; it never goes negative.
type Account struct {
	types.Entity
	ID              id.AccountID      `json:"id"`
	UserID          string            `json:"user_id"`
	PersonalBalance int64             `json:"personal_balance"`
	FreeTier        bool              `json:"free_tier"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}
