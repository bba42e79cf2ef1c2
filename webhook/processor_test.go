package webhook_test

import (
	"context"
	"fmt"
	"testing"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/store/memory"
	"github.com/xraph/credits/subscription"
	"github.com/xraph/credits/webhook"
)

func setup(t *testing.T) (*credits.Engine, *webhook.Processor, *account.Account) {
	t.Helper()
	ctx := context.Background()

	e := credits.New(memory.New())
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		_ = e.Stop()
	})

	a := &account.Account{UserID: "user-42"}
	if err := e.CreateAccount(ctx, a); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	return e, webhook.NewProcessor(e, nil), a
}

func TestProcessCheckoutCompleted(t *testing.T) {
	e, p, a := setup(t)
	ctx := context.Background()

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_checkout_1",
		"type": "checkout.completed",
		"data": {"account_id": %q, "credits": 30}
	}`, a.ID))

	if err := p.Process(ctx, "stripe", payload); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, err := e.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.PersonalBalance != 30 {
		t.Fatalf("personal balance = %d, want 30", got.PersonalBalance)
	}

	// Redelivery of the same event id must not credit twice.
	if err := p.Process(ctx, "stripe", payload); err != nil {
		t.Fatalf("Process redelivery: %v", err)
	}
	got, err = e.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.PersonalBalance != 30 {
		t.Fatalf("personal balance after redelivery = %d, want 30", got.PersonalBalance)
	}
}

func TestProcessCheckoutByUserID(t *testing.T) {
	e, p, a := setup(t)
	ctx := context.Background()

	payload := []byte(`{
		"id": "evt_checkout_2",
		"type": "checkout.completed",
		"data": {"user_id": "user-42", "credits": 10}
	}`)

	if err := p.Process(ctx, "stripe", payload); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, err := e.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.PersonalBalance != 10 {
		t.Fatalf("personal balance = %d, want 10", got.PersonalBalance)
	}
}

func TestProcessSubscriptionLifecycle(t *testing.T) {
	e, p, a := setup(t)
	ctx := context.Background()

	if err := e.CreatePlan(ctx, &plan.Plan{
		Name:            "Pro",
		Slug:            "pro",
		DurationDays:    30,
		IncludedCredits: 100,
	}); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	created := []byte(fmt.Sprintf(`{
		"id": "evt_sub_1",
		"type": "subscription.created",
		"data": {
			"account_id": %q,
			"plan_slug": "pro",
			"provider_subscription_id": "sub_stripe_1"
		}
	}`, a.ID))
	if err := p.Process(ctx, "stripe", created); err != nil {
		t.Fatalf("Process created: %v", err)
	}

	sub, err := e.GetActiveSubscription(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetActiveSubscription: %v", err)
	}
	if sub.PoolBalance != 100 {
		t.Fatalf("pool balance = %d, want 100", sub.PoolBalance)
	}

	deleted := []byte(`{
		"id": "evt_sub_2",
		"type": "subscription.deleted",
		"data": {"provider_subscription_id": "sub_stripe_1"}
	}`)
	if err := p.Process(ctx, "stripe", deleted); err != nil {
		t.Fatalf("Process deleted: %v", err)
	}

	got, err := e.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if got.Status != subscription.StatusCanceled {
		t.Fatalf("status = %q, want %q", got.Status, subscription.StatusCanceled)
	}
}

func TestProcessDeleteUnknownSubscription(t *testing.T) {
	_, p, _ := setup(t)

	// A delete for a row canceled through another path is acknowledged.
	payload := []byte(`{
		"id": "evt_sub_gone",
		"type": "subscription.deleted",
		"data": {"provider_subscription_id": "sub_never_seen"}
	}`)
	if err := p.Process(context.Background(), "stripe", payload); err != nil {
		t.Fatalf("Process: %v", err)
	}
}

func TestProcessUnknownEventType(t *testing.T) {
	_, p, _ := setup(t)

	payload := []byte(`{"id": "evt_x", "type": "customer.updated", "data": {}}`)
	if err := p.Process(context.Background(), "stripe", payload); err != nil {
		t.Fatalf("Process: %v", err)
	}
}

func TestProcessMalformedPayload(t *testing.T) {
	_, p, _ := setup(t)
	ctx := context.Background()

	cases := [][]byte{
		[]byte(`not json`),
		[]byte(`{"type": "checkout.completed"}`),
		[]byte(`{"id": "evt_y"}`),
	}
	for _, payload := range cases {
		if err := p.Process(ctx, "stripe", payload); err == nil {
			t.Errorf("Process(%s): expected error", payload)
		}
	}
}
