package audithook

// Action constants for audit events.
const (
	// Debit actions
	ActionDebitExecuted  = "debit.executed"
	ActionPublishDenied  = "publish.denied"
	ActionDebitRefunded  = "debit.refunded"

	// Grant actions
	ActionGrantApplied   = "grant.applied"
	ActionGrantDuplicate = "grant.duplicate"

	// Subscription actions
	ActionSubscriptionGranted  = "subscription.granted"
	ActionSubscriptionCanceled = "subscription.canceled"
	ActionSubscriptionExpired  = "subscription.expired"

	// Plan actions
	ActionPlanCreated  = "plan.created"
	ActionPlanArchived = "plan.archived"

	// Provider actions
	ActionWebhookReceived = "webhook.received"
)

// Resource constants for audit events.
const (
	ResourceAccount      = "account"
	ResourceSubscription = "subscription"
	ResourceGrant        = "grant"
	ResourcePlan         = "plan"
	ResourceWebhook      = "webhook"
)

// Category constants for audit events.
const (
	CategoryLedger       = "ledger"
	CategorySubscription = "subscription"
	CategoryPayment      = "payment"
	CategoryIntegration  = "integration"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeFailure = "failure"
)
