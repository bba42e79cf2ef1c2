// Package policy decides whether and how a publish request must pay.
// Decide is pure: it combines a pricing result with an entitlement
// snapshot and never touches a balance itself.
package policy

import (
	"github.com/xraph/credits/entitlement"
	"github.com/xraph/credits/id"
)

// Kind enumerates the possible posting verdicts.
type Kind string

const (
	// FreeAlways means the resolved cost is zero; nothing to charge.
	FreeAlways Kind = "free_always"

	// UnlimitedSubscription means the active subscription exempts the
	// account from charges regardless of resolved cost.
	UnlimitedSubscription Kind = "unlimited_subscription"

	// FreeTierAccount means the account's free-tier flag supersedes paid
	// categories. This is a product rule, not a fallback: free-tier
	// accounts are never charged.
	FreeTierAccount Kind = "free_tier_account"

	// ChargeRequired means the publish must pay Amount credits from Source.
	ChargeRequired Kind = "charge_required"

	// Denied means a charge was attempted and funds were insufficient.
	// Produced by the engine after the debit executor reports failure,
	// never by Decide directly.
	Denied Kind = "denied"
)

// Source names which balance pool a charge draws from.
type Source string

const (
	SourceSubscriptionPool Source = "subscription_pool"
	SourcePersonalPool     Source = "personal_pool"
)

// Verdict is the outcome of the posting policy decision.
type Verdict struct {
	Kind   Kind   `json:"kind"`
	Amount int64  `json:"amount,omitempty"`
	Source Source `json:"source,omitempty"`

	// SubscriptionID is set when Source is the subscription pool.
	SubscriptionID id.SubscriptionID `json:"subscription_id,omitempty"`

	// Required and Available are populated on Denied verdicts so the
	// caller can present an actionable top-up message.
	Required  int64 `json:"required,omitempty"`
	Available int64 `json:"available,omitempty"`
}

// Chargeable reports whether the verdict demands a debit before publishing.
func (v Verdict) Chargeable() bool { return v.Kind == ChargeRequired }

// Allowed reports whether the publish may proceed.
func (v Verdict) Allowed() bool { return v.Kind != Denied }

// Decide combines the resolved credit cost with the account's standing.
//
// Precedence: zero cost first, then unlimited subscription, then
// free tier, then charge. When both an active subscription and a personal
// balance exist, the subscription pool is always the preferred source,
// even with a zero pool balance, since the debit executor falls back to
// the personal pool on its own.
func Decide(snap *entitlement.Snapshot, cost int64) Verdict {
	if cost <= 0 {
		return Verdict{Kind: FreeAlways}
	}

	if sub := snap.Subscription; sub != nil && sub.UnlimitedPosting {
		return Verdict{Kind: UnlimitedSubscription, SubscriptionID: sub.ID}
	}

	if snap.FreeTier {
		return Verdict{Kind: FreeTierAccount}
	}

	v := Verdict{Kind: ChargeRequired, Amount: cost, Source: SourcePersonalPool}
	if sub := snap.Subscription; sub != nil {
		v.Source = SourceSubscriptionPool
		v.SubscriptionID = sub.ID
	}
	return v
}

// Deny builds the denial verdict reported after a failed debit.
func Deny(required, available int64) Verdict {
	return Verdict{Kind: Denied, Required: required, Available: available}
}
