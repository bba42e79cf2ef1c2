// Package credits provides a composable posting-credit ledger for Go applications.
//
// Credits is designed as a library, not a service. Import it directly into your
// marketplace backend for maximum performance and flexibility. It provides:
//
//   - Category-based posting prices with a total default fallback
//   - Policy decisions ordered free-always, unlimited plan, free tier, charge
//   - Race-free conditional debits against subscription pool and personal balance
//   - Idempotent grant application keyed by payment correlation id
//   - Compensating refunds when a post fails after its debit
//   - Async buffered audit trail with pluggable hooks
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/credits"
//	    "github.com/xraph/credits/store/memory"
//	)
//
//	engine := credits.New(memory.New())
//
//	// Start the engine (runs migrations, begins background workers)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Core Concepts
//
// Accounts hold a personal credit balance and an optional free-tier flag:
//
//	acct, err := engine.CreateAccount(ctx, &account.Account{UserID: "user-42"})
//
// Plans define what a subscription grants:
//
//	p := &plan.Plan{
//	    Name:            "Pro",
//	    Slug:            "pro",
//	    IncludedCredits: 500,
//	    DurationDays:    30,
//	}
//
// Authorize runs the full decision and debit for a publish request:
//
//	auth, err := engine.Authorize(ctx, credits.PublishRequest{
//	    AccountID: acct.ID,
//	    Category:  "vehicles",
//	})
//	if auth.Allowed() {
//	    // Publish the listing; on failure roll the debit back:
//	    // engine.Refund(ctx, auth, "publish failed")
//	}
//
// Grants from payment providers are applied exactly once per correlation id:
//
//	outcome, err := engine.ApplyGrant(ctx, &grant.Event{
//	    CorrelationID: checkoutSessionID,
//	    AccountID:     acct.ID,
//	    Kind:          grant.KindCredits,
//	    Amount:        100,
//	})
package credits
