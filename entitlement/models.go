package entitlement

import "github.com/xraph/credits/subscription"

// Snapshot is an account's standing at a single read: free-tier flag,
// the active subscription (nil when none covers the read instant), and
// the personal credit balance.
//
// A Snapshot is advisory only; concurrent grants and debits may change
// either balance between the read and any subsequent write. The debit
// executor's own conditional decrements are the source of truth.
type Snapshot struct {
	AccountID       string                     `json:"account_id"`
	FreeTier        bool                       `json:"free_tier"`
	Subscription    *subscription.Subscription `json:"subscription,omitempty"`
	PersonalBalance int64                      `json:"personal_balance"`
}

// HasActiveSubscription reports whether the snapshot saw a live subscription.
func (s *Snapshot) HasActiveSubscription() bool {
	return s.Subscription != nil
}

// TotalAvailable sums both pools for reporting denials. The sum is not a
// spendable amount; a single debit draws from exactly one pool.
func (s *Snapshot) TotalAvailable() int64 {
	total := s.PersonalBalance
	if s.Subscription != nil {
		total += s.Subscription.PoolBalance
	}
	return total
}
