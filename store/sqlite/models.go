package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/audit"
	"github.com/xraph/credits/grant"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/subscription"
	"github.com/xraph/credits/types"
)

type accountModel struct {
	grove.BaseModel `grove:"table:credits_accounts"`

	ID              string            `grove:"id,pk"`
	UserID          string            `grove:"user_id"`
	PersonalBalance int64             `grove:"personal_balance"`
	FreeTier        bool              `grove:"free_tier"`
	Metadata        map[string]string `grove:"metadata,type:json"`
	CreatedAt       time.Time         `grove:"created_at"`
	UpdatedAt       time.Time         `grove:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:              a.ID.String(),
		UserID:          a.UserID,
		PersonalBalance: a.PersonalBalance,
		FreeTier:        a.FreeTier,
		Metadata:        a.Metadata,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	accountID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, err
	}

	return &account.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              accountID,
		UserID:          m.UserID,
		PersonalBalance: m.PersonalBalance,
		FreeTier:        m.FreeTier,
		Metadata:        m.Metadata,
	}, nil
}

type subscriptionModel struct {
	grove.BaseModel `grove:"table:credits_subscriptions"`

	ID                     string            `grove:"id,pk"`
	AccountID              string            `grove:"account_id"`
	PlanID                 string            `grove:"plan_id"`
	Status                 string            `grove:"status"`
	CurrentPeriodStart     time.Time         `grove:"current_period_start"`
	CurrentPeriodEnd       time.Time         `grove:"current_period_end"`
	PoolBalance            int64             `grove:"pool_balance"`
	UnlimitedPosting       bool              `grove:"unlimited_posting"`
	CanceledAt             *time.Time        `grove:"canceled_at"`
	EndedAt                *time.Time        `grove:"ended_at"`
	ProviderSubscriptionID string            `grove:"provider_subscription_id"`
	ProviderCustomerID     string            `grove:"provider_customer_id"`
	Metadata               map[string]string `grove:"metadata,type:json"`
	CreatedAt              time.Time         `grove:"created_at"`
	UpdatedAt              time.Time         `grove:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:                     s.ID.String(),
		AccountID:              s.AccountID.String(),
		PlanID:                 s.PlanID.String(),
		Status:                 string(s.Status),
		CurrentPeriodStart:     s.CurrentPeriodStart,
		CurrentPeriodEnd:       s.CurrentPeriodEnd,
		PoolBalance:            s.PoolBalance,
		UnlimitedPosting:       s.UnlimitedPosting,
		CanceledAt:             s.CanceledAt,
		EndedAt:                s.EndedAt,
		ProviderSubscriptionID: s.ProviderSubscriptionID,
		ProviderCustomerID:     s.ProviderCustomerID,
		Metadata:               s.Metadata,
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}
	planID, err := id.ParsePlanID(m.PlanID)
	if err != nil {
		return nil, err
	}

	return &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                     subID,
		AccountID:              accountID,
		PlanID:                 planID,
		Status:                 subscription.Status(m.Status),
		CurrentPeriodStart:     m.CurrentPeriodStart,
		CurrentPeriodEnd:       m.CurrentPeriodEnd,
		PoolBalance:            m.PoolBalance,
		UnlimitedPosting:       m.UnlimitedPosting,
		CanceledAt:             m.CanceledAt,
		EndedAt:                m.EndedAt,
		ProviderSubscriptionID: m.ProviderSubscriptionID,
		ProviderCustomerID:     m.ProviderCustomerID,
		Metadata:               m.Metadata,
	}, nil
}

type planModel struct {
	grove.BaseModel `grove:"table:credits_plans"`

	ID               string            `grove:"id,pk"`
	Name             string            `grove:"name"`
	Slug             string            `grove:"slug"`
	Description      string            `grove:"description"`
	Status           string            `grove:"status"`
	PriceCents       int64             `grove:"price_cents"`
	PriceCurrency    string            `grove:"price_currency"`
	DurationDays     int               `grove:"duration_days"`
	IncludedCredits  int64             `grove:"included_credits"`
	UnlimitedPosting bool              `grove:"unlimited_posting"`
	CostPerPost      int64             `grove:"cost_per_post"`
	Metadata         map[string]string `grove:"metadata,type:json"`
	CreatedAt        time.Time         `grove:"created_at"`
	UpdatedAt        time.Time         `grove:"updated_at"`
}

func toPlanModel(p *plan.Plan) *planModel {
	return &planModel{
		ID:               p.ID.String(),
		Name:             p.Name,
		Slug:             p.Slug,
		Description:      p.Description,
		Status:           string(p.Status),
		PriceCents:       p.Price.Amount,
		PriceCurrency:    p.Price.Currency,
		DurationDays:     p.DurationDays,
		IncludedCredits:  p.IncludedCredits,
		UnlimitedPosting: p.UnlimitedPosting,
		CostPerPost:      p.CostPerPost,
		Metadata:         p.Metadata,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func fromPlanModel(m *planModel) (*plan.Plan, error) {
	planID, err := id.ParsePlanID(m.ID)
	if err != nil {
		return nil, err
	}

	return &plan.Plan{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               planID,
		Name:             m.Name,
		Slug:             m.Slug,
		Description:      m.Description,
		Status:           plan.Status(m.Status),
		Price:            types.Money{Amount: m.PriceCents, Currency: m.PriceCurrency},
		DurationDays:     m.DurationDays,
		IncludedCredits:  m.IncludedCredits,
		UnlimitedPosting: m.UnlimitedPosting,
		CostPerPost:      m.CostPerPost,
		Metadata:         m.Metadata,
	}, nil
}

type grantModel struct {
	grove.BaseModel `grove:"table:credits_grants"`

	ID                     string            `grove:"id,pk"`
	CorrelationID          string            `grove:"correlation_id"`
	AccountID              string            `grove:"account_id"`
	Kind                   string            `grove:"kind"`
	Amount                 int64             `grove:"amount"`
	SubscriptionID         string            `grove:"subscription_id"`
	PlanID                 string            `grove:"plan_id"`
	ProviderSubscriptionID string            `grove:"provider_subscription_id"`
	ProviderCustomerID     string            `grove:"provider_customer_id"`
	ActorID                string            `grove:"actor_id"`
	Memo                   string            `grove:"memo"`
	AppliedAt              time.Time         `grove:"applied_at"`
	Metadata               map[string]string `grove:"metadata,type:json"`
	CreatedAt              time.Time         `grove:"created_at"`
	UpdatedAt              time.Time         `grove:"updated_at"`
}

func toGrantModel(e *grant.Event) *grantModel {
	m := &grantModel{
		ID:                     e.ID.String(),
		CorrelationID:          e.CorrelationID,
		AccountID:              e.AccountID.String(),
		Kind:                   string(e.Kind),
		Amount:                 e.Amount,
		ProviderSubscriptionID: e.ProviderSubscriptionID,
		ProviderCustomerID:     e.ProviderCustomerID,
		ActorID:                e.ActorID,
		Memo:                   e.Memo,
		AppliedAt:              e.AppliedAt,
		Metadata:               e.Metadata,
		CreatedAt:              e.CreatedAt,
		UpdatedAt:              e.UpdatedAt,
	}
	if !e.SubscriptionID.IsNil() {
		m.SubscriptionID = e.SubscriptionID.String()
	}
	if !e.PlanID.IsNil() {
		m.PlanID = e.PlanID.String()
	}
	return m
}

func fromGrantModel(m *grantModel) (*grant.Event, error) {
	grantID, err := id.ParseGrantID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}

	e := &grant.Event{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                     grantID,
		CorrelationID:          m.CorrelationID,
		AccountID:              accountID,
		Kind:                   grant.Kind(m.Kind),
		Amount:                 m.Amount,
		ProviderSubscriptionID: m.ProviderSubscriptionID,
		ProviderCustomerID:     m.ProviderCustomerID,
		ActorID:                m.ActorID,
		Memo:                   m.Memo,
		AppliedAt:              m.AppliedAt,
		Metadata:               m.Metadata,
	}
	if m.SubscriptionID != "" {
		subID, err := id.ParseSubscriptionID(m.SubscriptionID)
		if err != nil {
			return nil, err
		}
		e.SubscriptionID = subID
	}
	if m.PlanID != "" {
		planID, err := id.ParsePlanID(m.PlanID)
		if err != nil {
			return nil, err
		}
		e.PlanID = planID
	}
	return e, nil
}

type auditModel struct {
	grove.BaseModel `grove:"table:credits_audit"`

	ID            string            `grove:"id,pk"`
	Action        string            `grove:"action"`
	AccountID     string            `grove:"account_id"`
	Amount        int64             `grove:"amount"`
	Source        string            `grove:"source"`
	CorrelationID string            `grove:"correlation_id"`
	Outcome       string            `grove:"outcome"`
	Timestamp     time.Time         `grove:"timestamp"`
	Metadata      map[string]string `grove:"metadata,type:json"`
}

func toAuditModel(r *audit.Record) *auditModel {
	return &auditModel{
		ID:            r.ID.String(),
		Action:        string(r.Action),
		AccountID:     r.AccountID.String(),
		Amount:        r.Amount,
		Source:        string(r.Source),
		CorrelationID: r.CorrelationID,
		Outcome:       string(r.Outcome),
		Timestamp:     r.Timestamp,
		Metadata:      r.Metadata,
	}
}

func fromAuditModel(m *auditModel) (*audit.Record, error) {
	auditID, err := id.ParseAuditID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}

	return &audit.Record{
		ID:            auditID,
		Action:        audit.Action(m.Action),
		AccountID:     accountID,
		Amount:        m.Amount,
		Source:        audit.Source(m.Source),
		CorrelationID: m.CorrelationID,
		Outcome:       audit.Outcome(m.Outcome),
		Timestamp:     m.Timestamp,
		Metadata:      m.Metadata,
	}, nil
}
