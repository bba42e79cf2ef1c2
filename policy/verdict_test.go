package policy

import (
	"testing"
	"time"

	"github.com/xraph/credits/entitlement"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/subscription"
)

func activeSub(pool int64, unlimited bool) *subscription.Subscription {
	now := time.Now()
	return &subscription.Subscription{
		ID:                 id.NewSubscriptionID(),
		AccountID:          id.NewAccountID(),
		Status:             subscription.StatusActive,
		CurrentPeriodStart: now.Add(-time.Hour),
		CurrentPeriodEnd:   now.Add(time.Hour),
		PoolBalance:        pool,
		UnlimitedPosting:   unlimited,
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		snap       *entitlement.Snapshot
		cost       int64
		wantKind   Kind
		wantSource Source
	}{
		{
			name:     "zero cost is always free",
			snap:     &entitlement.Snapshot{PersonalBalance: 0},
			cost:     0,
			wantKind: FreeAlways,
		},
		{
			name:     "unlimited subscription beats cost",
			snap:     &entitlement.Snapshot{Subscription: activeSub(0, true)},
			cost:     10,
			wantKind: UnlimitedSubscription,
		},
		{
			name:     "free tier supersedes paid category",
			snap:     &entitlement.Snapshot{FreeTier: true},
			cost:     4,
			wantKind: FreeTierAccount,
		},
		{
			name:     "free tier with subscription still free when unlimited",
			snap:     &entitlement.Snapshot{FreeTier: true, Subscription: activeSub(5, true)},
			cost:     4,
			wantKind: UnlimitedSubscription,
		},
		{
			name:       "charge from personal pool without subscription",
			snap:       &entitlement.Snapshot{PersonalBalance: 10},
			cost:       2,
			wantKind:   ChargeRequired,
			wantSource: SourcePersonalPool,
		},
		{
			name:       "subscription pool preferred when present",
			snap:       &entitlement.Snapshot{PersonalBalance: 100, Subscription: activeSub(1, false)},
			cost:       2,
			wantKind:   ChargeRequired,
			wantSource: SourceSubscriptionPool,
		},
		{
			name:       "subscription pool preferred even at zero balance",
			snap:       &entitlement.Snapshot{PersonalBalance: 100, Subscription: activeSub(0, false)},
			cost:       2,
			wantKind:   ChargeRequired,
			wantSource: SourceSubscriptionPool,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Decide(tt.snap, tt.cost)
			if v.Kind != tt.wantKind {
				t.Fatalf("Kind = %q, want %q", v.Kind, tt.wantKind)
			}
			if tt.wantKind == ChargeRequired {
				if v.Source != tt.wantSource {
					t.Errorf("Source = %q, want %q", v.Source, tt.wantSource)
				}
				if v.Amount != tt.cost {
					t.Errorf("Amount = %d, want %d", v.Amount, tt.cost)
				}
				if tt.wantSource == SourceSubscriptionPool && v.SubscriptionID.IsNil() {
					t.Error("expected subscription id on subscription-pool charge")
				}
			}
		})
	}
}

func TestDecideFreeTierNeverCharged(t *testing.T) {
	snap := &entitlement.Snapshot{FreeTier: true, PersonalBalance: 50}
	for _, cost := range []int64{1, 4, 10, 1000} {
		if v := Decide(snap, cost); v.Kind == ChargeRequired {
			t.Errorf("cost %d: free-tier account got ChargeRequired", cost)
		}
	}
}

func TestDeny(t *testing.T) {
	v := Deny(4, 2)
	if v.Kind != Denied {
		t.Fatalf("Kind = %q, want %q", v.Kind, Denied)
	}
	if v.Required != 4 || v.Available != 2 {
		t.Errorf("Required/Available = %d/%d, want 4/2", v.Required, v.Available)
	}
	if v.Allowed() {
		t.Error("denied verdict should not be allowed")
	}
}
