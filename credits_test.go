package credits_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/grant"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/policy"
	"github.com/xraph/credits/store/memory"
	"github.com/xraph/credits/subscription"
	"github.com/xraph/credits/types"
)

func newEngine(t *testing.T) *credits.Engine {
	t.Helper()

	e := credits.New(memory.New())
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		_ = e.Stop()
	})
	return e
}

func newAccount(t *testing.T, e *credits.Engine, balance int64) *account.Account {
	t.Helper()

	a := &account.Account{
		UserID:          "user-" + id.NewAccountID().String(),
		PersonalBalance: balance,
	}
	if err := e.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return a
}

func grantSubscription(t *testing.T, e *credits.Engine, accountID id.AccountID, p *plan.Plan) *subscription.Subscription {
	t.Helper()
	ctx := context.Background()

	if err := e.CreatePlan(ctx, p); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	outcome, err := e.ApplyGrant(ctx, &grant.Event{
		CorrelationID: "cs_" + id.NewGrantID().String(),
		AccountID:     accountID,
		Kind:          grant.KindSubscription,
		PlanID:        p.ID,
	})
	if err != nil {
		t.Fatalf("ApplyGrant: %v", err)
	}
	if outcome != grant.Applied {
		t.Fatalf("ApplyGrant outcome = %q, want %q", outcome, grant.Applied)
	}

	sub, err := e.GetActiveSubscription(ctx, accountID)
	if err != nil {
		t.Fatalf("GetActiveSubscription: %v", err)
	}
	return sub
}

func TestAuthorizeCategories(t *testing.T) {
	tests := []struct {
		name        string
		category    string
		itemPrice   *types.Money
		balance     int64
		wantKind    policy.Kind
		wantDebited int64
	}{
		{
			name:        "general goods cost one credit",
			category:    "furniture",
			balance:     10,
			wantKind:    policy.ChargeRequired,
			wantDebited: 1,
		},
		{
			name:        "vehicles cost four credits",
			category:    "vehicles",
			balance:     10,
			wantKind:    policy.ChargeRequired,
			wantDebited: 4,
		},
		{
			name:        "commercial vehicles cost ten credits",
			category:    "commercial-vehicles",
			balance:     10,
			wantKind:    policy.ChargeRequired,
			wantDebited: 10,
		},
		{
			name:     "free category costs nothing",
			category: "freebies",
			balance:  0,
			wantKind: policy.FreeAlways,
		},
		{
			name:      "zero asking price is free even for vehicles",
			category:  "vehicles",
			itemPrice: &types.Money{Amount: 0, Currency: "usd"},
			balance:   0,
			wantKind:  policy.FreeAlways,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t)
			a := newAccount(t, e, tt.balance)

			auth, err := e.Authorize(context.Background(), credits.PublishRequest{
				AccountID: a.ID,
				Category:  tt.category,
				ItemPrice: tt.itemPrice,
			})
			if err != nil {
				t.Fatalf("Authorize: %v", err)
			}
			if auth.Verdict.Kind != tt.wantKind {
				t.Errorf("verdict kind = %q, want %q", auth.Verdict.Kind, tt.wantKind)
			}
			if auth.Debited != tt.wantDebited {
				t.Errorf("debited = %d, want %d", auth.Debited, tt.wantDebited)
			}

			got, err := e.GetAccount(context.Background(), a.ID)
			if err != nil {
				t.Fatalf("GetAccount: %v", err)
			}
			if want := tt.balance - tt.wantDebited; got.PersonalBalance != want {
				t.Errorf("personal balance = %d, want %d", got.PersonalBalance, want)
			}
		})
	}
}

func TestAuthorizeFreeTier(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 0)

	if err := e.SetFreeTier(ctx, a.ID, true); err != nil {
		t.Fatalf("SetFreeTier: %v", err)
	}

	auth, err := e.Authorize(ctx, credits.PublishRequest{AccountID: a.ID, Category: "vehicles"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if auth.Verdict.Kind != policy.FreeTierAccount {
		t.Fatalf("verdict kind = %q, want %q", auth.Verdict.Kind, policy.FreeTierAccount)
	}
	if !auth.Allowed() || auth.Debited != 0 {
		t.Fatalf("free-tier publish should be allowed with no debit, got debited=%d", auth.Debited)
	}
}

func TestAuthorizeUnlimitedSubscription(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 0)

	grantSubscription(t, e, a.ID, &plan.Plan{
		Name:             "Dealer Unlimited",
		Slug:             "dealer-unlimited",
		DurationDays:     30,
		UnlimitedPosting: true,
	})

	auth, err := e.Authorize(ctx, credits.PublishRequest{AccountID: a.ID, Category: "commercial-vehicles"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if auth.Verdict.Kind != policy.UnlimitedSubscription {
		t.Fatalf("verdict kind = %q, want %q", auth.Verdict.Kind, policy.UnlimitedSubscription)
	}
	if auth.Debited != 0 {
		t.Fatalf("unlimited publish should not debit, got %d", auth.Debited)
	}
}

func TestAuthorizePoolFirstThenPersonal(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 5)

	sub := grantSubscription(t, e, a.ID, &plan.Plan{
		Name:            "Starter",
		Slug:            "starter",
		DurationDays:    30,
		IncludedCredits: 4,
	})

	// First vehicle publish drains the pool exactly.
	auth, err := e.Authorize(ctx, credits.PublishRequest{AccountID: a.ID, Category: "vehicles"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if auth.Source != policy.SourceSubscriptionPool {
		t.Fatalf("first debit source = %q, want %q", auth.Source, policy.SourceSubscriptionPool)
	}
	if auth.SubscriptionID.String() != sub.ID.String() {
		t.Fatalf("debit charged subscription %s, want %s", auth.SubscriptionID, sub.ID)
	}

	// Second publish finds an empty pool and falls back to personal.
	auth, err = e.Authorize(ctx, credits.PublishRequest{AccountID: a.ID, Category: "vehicles"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if auth.Source != policy.SourcePersonalPool {
		t.Fatalf("fallback debit source = %q, want %q", auth.Source, policy.SourcePersonalPool)
	}

	got, err := e.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.PersonalBalance != 1 {
		t.Fatalf("personal balance = %d, want 1", got.PersonalBalance)
	}
	gotSub, err := e.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if gotSub.PoolBalance != 0 {
		t.Fatalf("pool balance = %d, want 0", gotSub.PoolBalance)
	}
}

func TestAuthorizePartialPoolFallsBack(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 5)

	sub := grantSubscription(t, e, a.ID, &plan.Plan{
		Name:            "Small",
		Slug:            "small",
		DurationDays:    30,
		IncludedCredits: 3,
	})

	// Pool holds 3 but the vehicle costs 4: the pool attempt declines
	// without partially draining, and the personal balance pays in full.
	auth, err := e.Authorize(ctx, credits.PublishRequest{AccountID: a.ID, Category: "vehicles"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if auth.Source != policy.SourcePersonalPool {
		t.Fatalf("debit source = %q, want %q", auth.Source, policy.SourcePersonalPool)
	}

	got, err := e.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.PersonalBalance != 1 {
		t.Fatalf("personal balance = %d, want 1", got.PersonalBalance)
	}
	gotSub, err := e.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if gotSub.PoolBalance != 3 {
		t.Fatalf("pool balance = %d, want 3 (untouched)", gotSub.PoolBalance)
	}
}

func TestAuthorizeDenied(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 2)

	auth, err := e.Authorize(ctx, credits.PublishRequest{AccountID: a.ID, Category: "vehicles"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if auth.Allowed() {
		t.Fatal("expected denial for insufficient balance")
	}
	if auth.Verdict.Kind != policy.Denied {
		t.Fatalf("verdict kind = %q, want %q", auth.Verdict.Kind, policy.Denied)
	}
	if auth.Verdict.Required != 4 || auth.Verdict.Available != 2 {
		t.Fatalf("denial reported required=%d available=%d, want 4 and 2",
			auth.Verdict.Required, auth.Verdict.Available)
	}

	// A denial must not touch the balance.
	got, err := e.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.PersonalBalance != 2 {
		t.Fatalf("personal balance = %d, want 2", got.PersonalBalance)
	}
}

func TestAuthorizeConcurrent(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	// 10 credits, 25 workers each trying to publish a 1-credit listing:
	// exactly 10 may win, and the balance must land on zero.
	a := newAccount(t, e, 10)

	const workers = 25
	var wg sync.WaitGroup
	results := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			auth, err := e.Authorize(ctx, credits.PublishRequest{AccountID: a.ID, Category: "general"})
			if err != nil {
				t.Errorf("Authorize: %v", err)
				return
			}
			results <- auth.Allowed()
		}()
	}
	wg.Wait()
	close(results)

	allowed := 0
	for ok := range results {
		if ok {
			allowed++
		}
	}
	if allowed != 10 {
		t.Errorf("allowed = %d, want exactly 10", allowed)
	}

	got, err := e.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.PersonalBalance != 0 {
		t.Errorf("personal balance = %d, want 0", got.PersonalBalance)
	}
}

func TestAuthorizeConcurrentPool(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 0)

	sub := grantSubscription(t, e, a.ID, &plan.Plan{
		Name:            "Pool",
		Slug:            "pool",
		DurationDays:    30,
		IncludedCredits: 8,
	})

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			auth, err := e.Authorize(ctx, credits.PublishRequest{AccountID: a.ID, Category: "vehicles"})
			if err != nil {
				t.Errorf("Authorize: %v", err)
				return
			}
			results <- auth.Allowed()
		}()
	}
	wg.Wait()
	close(results)

	allowed := 0
	for ok := range results {
		if ok {
			allowed++
		}
	}
	// 8 pool credits at 4 per publish: two winners, never three.
	if allowed != 2 {
		t.Errorf("allowed = %d, want exactly 2", allowed)
	}

	gotSub, err := e.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if gotSub.PoolBalance != 0 {
		t.Errorf("pool balance = %d, want 0", gotSub.PoolBalance)
	}
}

func TestRefund(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 4)

	auth, err := e.Authorize(ctx, credits.PublishRequest{AccountID: a.ID, Category: "vehicles"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if auth.Debited != 4 {
		t.Fatalf("debited = %d, want 4", auth.Debited)
	}

	if err := e.Refund(ctx, auth, "listing creation failed"); err != nil {
		t.Fatalf("Refund: %v", err)
	}

	got, err := e.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.PersonalBalance != 4 {
		t.Fatalf("personal balance after refund = %d, want 4", got.PersonalBalance)
	}
}

func TestRefundPool(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 0)

	sub := grantSubscription(t, e, a.ID, &plan.Plan{
		Name:            "Starter",
		Slug:            "starter",
		DurationDays:    30,
		IncludedCredits: 10,
	})

	auth, err := e.Authorize(ctx, credits.PublishRequest{AccountID: a.ID, Category: "vehicles"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if auth.Source != policy.SourceSubscriptionPool {
		t.Fatalf("debit source = %q, want subscription pool", auth.Source)
	}

	if err := e.Refund(ctx, auth, "listing creation failed"); err != nil {
		t.Fatalf("Refund: %v", err)
	}

	gotSub, err := e.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if gotSub.PoolBalance != 10 {
		t.Fatalf("pool balance after refund = %d, want 10", gotSub.PoolBalance)
	}
}

func TestRefundNothingDebited(t *testing.T) {
	e := newEngine(t)

	// Free and denied outcomes carry no debit; Refund must be a no-op.
	if err := e.Refund(context.Background(), &credits.Authorization{}, "noop"); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if err := e.Refund(context.Background(), nil, "noop"); err != nil {
		t.Fatalf("Refund(nil): %v", err)
	}
}

func TestApplyGrantIdempotent(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 0)

	ev := func() *grant.Event {
		return &grant.Event{
			CorrelationID: "pi_3OqX8w2eZvKYlo2C",
			AccountID:     a.ID,
			Kind:          grant.KindCredits,
			Amount:        25,
		}
	}

	outcome, err := e.ApplyGrant(ctx, ev())
	if err != nil {
		t.Fatalf("ApplyGrant: %v", err)
	}
	if outcome != grant.Applied {
		t.Fatalf("first outcome = %q, want %q", outcome, grant.Applied)
	}

	// Webhook redelivery: same correlation id, no second mutation.
	outcome, err = e.ApplyGrant(ctx, ev())
	if err != nil {
		t.Fatalf("ApplyGrant replay: %v", err)
	}
	if outcome != grant.AlreadyApplied {
		t.Fatalf("replay outcome = %q, want %q", outcome, grant.AlreadyApplied)
	}

	got, err := e.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.PersonalBalance != 25 {
		t.Fatalf("personal balance = %d, want 25 (applied exactly once)", got.PersonalBalance)
	}
}

func TestApplyGrantValidation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 0)

	if _, err := e.ApplyGrant(ctx, &grant.Event{
		AccountID: a.ID,
		Kind:      grant.KindCredits,
		Amount:    10,
	}); err == nil {
		t.Error("expected error for missing correlation id")
	}

	if _, err := e.ApplyGrant(ctx, &grant.Event{
		CorrelationID: "pi_zero",
		AccountID:     a.ID,
		Kind:          grant.KindCredits,
		Amount:        0,
	}); err == nil {
		t.Error("expected error for non-positive amount")
	}
}

func TestApplyGrantSubscriptionRenewal(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 0)

	p := &plan.Plan{
		Name:            "Pro",
		Slug:            "pro",
		DurationDays:    30,
		IncludedCredits: 100,
	}
	if err := e.CreatePlan(ctx, p); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	mint := func(correlationID string) {
		t.Helper()
		outcome, err := e.ApplyGrant(ctx, &grant.Event{
			CorrelationID:          correlationID,
			AccountID:              a.ID,
			Kind:                   grant.KindSubscription,
			PlanID:                 p.ID,
			ProviderSubscriptionID: "sub_provider_1",
		})
		if err != nil {
			t.Fatalf("ApplyGrant: %v", err)
		}
		if outcome != grant.Applied {
			t.Fatalf("outcome = %q, want %q", outcome, grant.Applied)
		}
	}

	mint("invoice_1")
	first, err := e.GetActiveSubscription(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetActiveSubscription: %v", err)
	}

	// Next billing cycle arrives under a new correlation id but the same
	// provider subscription: the row renews instead of duplicating.
	mint("invoice_2")
	renewed, err := e.GetActiveSubscription(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetActiveSubscription after renewal: %v", err)
	}
	if renewed.ID.String() != first.ID.String() {
		t.Fatalf("renewal minted a second subscription: %s vs %s", renewed.ID, first.ID)
	}
	if renewed.PoolBalance != 200 {
		t.Fatalf("renewed pool balance = %d, want 200", renewed.PoolBalance)
	}

	subs, err := e.ListSubscriptions(ctx, a.ID, subscription.ListOpts{})
	if err != nil {
		t.Fatalf("ListSubscriptions: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("subscription count = %d, want 1", len(subs))
	}
}

func TestSubscriptionGrantClearsFreeTier(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 0)

	if err := e.SetFreeTier(ctx, a.ID, true); err != nil {
		t.Fatalf("SetFreeTier: %v", err)
	}

	grantSubscription(t, e, a.ID, &plan.Plan{
		Name:            "Pro",
		Slug:            "pro",
		DurationDays:    30,
		IncludedCredits: 100,
	})

	// Buying a paid subscription exits free-tier status.
	got, err := e.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.FreeTier {
		t.Fatal("free-tier flag should be cleared after a subscription grant")
	}
}

func TestApplyGrantArchivedPlan(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 0)

	p := &plan.Plan{Name: "Legacy", Slug: "legacy", DurationDays: 30}
	if err := e.CreatePlan(ctx, p); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if err := e.ArchivePlan(ctx, p.ID); err != nil {
		t.Fatalf("ArchivePlan: %v", err)
	}

	_, err := e.ApplyGrant(ctx, &grant.Event{
		CorrelationID: "cs_archived",
		AccountID:     a.ID,
		Kind:          grant.KindSubscription,
		PlanID:        p.ID,
	})
	if err == nil {
		t.Fatal("expected error granting from an archived plan")
	}

	// The failed grant must not leave its gate row behind.
	if _, err := e.GetGrant(ctx, "cs_archived"); !credits.IsNotFound(err) {
		t.Fatalf("GetGrant after failed grant = %v, want not-found", err)
	}
}

func TestGrantCredits(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 0)

	outcome, err := e.GrantCredits(ctx, a.ID, 50, "admin-7", "support goodwill")
	if err != nil {
		t.Fatalf("GrantCredits: %v", err)
	}
	if outcome != grant.Applied {
		t.Fatalf("outcome = %q, want %q", outcome, grant.Applied)
	}

	got, err := e.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.PersonalBalance != 50 {
		t.Fatalf("personal balance = %d, want 50", got.PersonalBalance)
	}
}

func TestCancelSubscription(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 0)

	sub := grantSubscription(t, e, a.ID, &plan.Plan{
		Name:            "Pro",
		Slug:            "pro",
		DurationDays:    30,
		IncludedCredits: 100,
	})

	if err := e.CancelSubscription(ctx, sub.ID, false); err != nil {
		t.Fatalf("CancelSubscription: %v", err)
	}

	// Cancel-at-period-end leaves the subscription usable until the window
	// closes.
	got, err := e.GetActiveSubscription(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetActiveSubscription after soft cancel: %v", err)
	}
	if got.CanceledAt == nil {
		t.Fatal("expected canceled_at to be set")
	}

	if err := e.CancelSubscription(ctx, sub.ID, true); err != nil {
		t.Fatalf("CancelSubscription immediate: %v", err)
	}
	if _, err := e.GetActiveSubscription(ctx, a.ID); err == nil {
		t.Fatal("expected no active subscription after immediate cancel")
	}
}

func TestExpireSubscriptions(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 0)

	sub := grantSubscription(t, e, a.ID, &plan.Plan{
		Name:            "Short",
		Slug:            "short",
		DurationDays:    7,
		IncludedCredits: 10,
	})

	count, err := e.ExpireSubscriptions(ctx, time.Now().AddDate(0, 0, 8))
	if err != nil {
		t.Fatalf("ExpireSubscriptions: %v", err)
	}
	if count != 1 {
		t.Fatalf("expired count = %d, want 1", count)
	}

	got, err := e.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if got.Status != subscription.StatusExpired {
		t.Fatalf("status = %q, want %q", got.Status, subscription.StatusExpired)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(sub.CurrentPeriodEnd) {
		t.Fatalf("ended_at = %v, want period end %v", got.EndedAt, sub.CurrentPeriodEnd)
	}
}

func TestDecidePreview(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 3)

	verdict, err := e.Decide(ctx, a.ID, "vehicles", nil)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if verdict.Kind != policy.ChargeRequired || verdict.Amount != 4 {
		t.Fatalf("preview verdict = %+v, want charge of 4", verdict)
	}

	// Preview never debits.
	got, err := e.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.PersonalBalance != 3 {
		t.Fatalf("personal balance = %d, want 3", got.PersonalBalance)
	}
}

func TestConcurrentGrantsAndDebits(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := newAccount(t, e, 0)

	// Interleave 10 distinct 1-credit grants with 10 1-credit debits.
	// Whatever the schedule, the balance never goes negative and the final
	// ledger adds up.
	var wg sync.WaitGroup
	debited := make(chan bool, 10)

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_, err := e.ApplyGrant(ctx, &grant.Event{
				CorrelationID: fmt.Sprintf("pi_load_%d", n),
				AccountID:     a.ID,
				Kind:          grant.KindCredits,
				Amount:        1,
			})
			if err != nil {
				t.Errorf("ApplyGrant: %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			auth, err := e.Authorize(ctx, credits.PublishRequest{AccountID: a.ID, Category: "general"})
			if err != nil {
				t.Errorf("Authorize: %v", err)
				return
			}
			debited <- auth.Allowed()
		}()
	}
	wg.Wait()
	close(debited)

	spent := int64(0)
	for ok := range debited {
		if ok {
			spent++
		}
	}

	got, err := e.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.PersonalBalance < 0 {
		t.Fatalf("personal balance went negative: %d", got.PersonalBalance)
	}
	if got.PersonalBalance != 10-spent {
		t.Fatalf("personal balance = %d, want %d (10 granted, %d spent)",
			got.PersonalBalance, 10-spent, spent)
	}
}
