package audit

import (
	"time"

	"github.com/xraph/credits/id"
)

// Action names what the ledger did.
type Action string

const (
	ActionDebit  Action = "debit"
	ActionGrant  Action = "grant"
	ActionDeny   Action = "deny"
	ActionRefund Action = "refund"
)

// Source names the balance pool an action touched.
type Source string

const (
	SourceSubscriptionPool Source = "subscription_pool"
	SourcePersonalPool     Source = "personal_pool"
	SourceNone             Source = ""
)

// Outcome of the recorded action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeDenied  Outcome = "denied"
)

// Record is one immutable line in the compliance trail. Records are
// append-only; reporting consumes them elsewhere.
type Record struct {
	ID            id.AuditID        `json:"id"`
	Action        Action            `json:"action"`
	AccountID     id.AccountID      `json:"account_id"`
	Amount        int64             `json:"amount"`
	Source        Source            `json:"source,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Outcome       Outcome           `json:"outcome"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
