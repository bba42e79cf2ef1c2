package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/audit"
	"github.com/xraph/credits/grant"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/subscription"
)

// Store is the in-memory reference implementation. One mutex guards all
// maps; the conditional decrements therefore have the same atomicity the
// SQL stores get from single-statement conditional updates.
type Store struct {
	mu sync.RWMutex

	accounts      map[string]*account.Account
	accountByUser map[string]string // userID -> accountID

	subscriptions map[string]*subscription.Subscription

	plans map[string]*plan.Plan

	grants map[string]*grant.Event // keyed by correlation id

	auditLog []audit.Record
}

func New() *Store {
	return &Store{
		accounts:      make(map[string]*account.Account),
		accountByUser: make(map[string]string),
		subscriptions: make(map[string]*subscription.Subscription),
		plans:         make(map[string]*plan.Plan),
		grants:        make(map[string]*grant.Event),
		auditLog:      make([]audit.Record, 0),
	}
}

// Account Store implementation

func (s *Store) CreateAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.ID.String()]; exists {
		return credits.ErrAlreadyExists
	}
	if a.UserID != "" {
		if _, exists := s.accountByUser[a.UserID]; exists {
			return credits.ErrAlreadyExists
		}
		s.accountByUser[a.UserID] = a.ID.String()
	}
	cp := *a
	s.accounts[a.ID.String()] = &cp
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID id.AccountID) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[accountID.String()]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, credits.ErrAccountNotFound
}

func (s *Store) GetAccountByUserID(_ context.Context, userID string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if acctID, ok := s.accountByUser[userID]; ok {
		if a, ok := s.accounts[acctID]; ok {
			cp := *a
			return &cp, nil
		}
	}
	return nil, credits.ErrAccountNotFound
}

func (s *Store) SetFreeTier(_ context.Context, accountID id.AccountID, freeTier bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID.String()]
	if !ok {
		return credits.ErrAccountNotFound
	}
	a.FreeTier = freeTier
	a.Touch()
	return nil
}

func (s *Store) AddPersonalCredits(_ context.Context, accountID id.AccountID, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID.String()]
	if !ok {
		return credits.ErrAccountNotFound
	}
	a.PersonalBalance += amount
	a.Touch()
	return nil
}

// DebitPersonal is the atomic compare-and-decrement for the personal pool.
func (s *Store) DebitPersonal(_ context.Context, accountID id.AccountID, amount int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID.String()]
	if !ok {
		return false, nil
	}
	if a.PersonalBalance < amount {
		return false, nil
	}
	a.PersonalBalance -= amount
	a.Touch()
	return true, nil
}

// Subscription Store implementation

func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID.String()]; exists {
		return credits.ErrAlreadyExists
	}
	cp := *sub
	s.subscriptions[sub.ID.String()] = &cp
	return nil
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subscriptions[subID.String()]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, credits.ErrSubscriptionNotFound
}

func (s *Store) GetActiveSubscription(_ context.Context, accountID id.AccountID, at time.Time) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscriptions {
		if sub.AccountID.String() == accountID.String() && sub.ActiveAt(at) {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, credits.ErrNoActiveSubscription
}

func (s *Store) GetSubscriptionByProviderID(_ context.Context, providerSubscriptionID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if providerSubscriptionID == "" {
		return nil, credits.ErrSubscriptionNotFound
	}
	for _, sub := range s.subscriptions {
		if sub.ProviderSubscriptionID == providerSubscriptionID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, credits.ErrSubscriptionNotFound
}

func (s *Store) ListSubscriptions(_ context.Context, accountID id.AccountID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if sub.AccountID.String() != accountID.String() {
			continue
		}
		if opts.Status != "" && sub.Status != opts.Status {
			continue
		}
		cp := *sub
		result = append(result, &cp)
	}
	return result, nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID.String()]; !exists {
		return credits.ErrSubscriptionNotFound
	}
	cp := *sub
	s.subscriptions[sub.ID.String()] = &cp
	return nil
}

func (s *Store) CancelSubscription(_ context.Context, subID id.SubscriptionID, cancelAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.subscriptions[subID.String()]
	if !exists {
		return credits.ErrSubscriptionNotFound
	}
	now := time.Now().UTC()
	sub.CanceledAt = &cancelAt
	if !now.Before(cancelAt) {
		sub.Status = subscription.StatusCanceled
		sub.EndedAt = &now
	}
	sub.Touch()
	return nil
}

func (s *Store) ExpireSubscriptions(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, sub := range s.subscriptions {
		if sub.Status == subscription.StatusActive && sub.CurrentPeriodEnd.Before(before) {
			sub.Status = subscription.StatusExpired
			ended := sub.CurrentPeriodEnd
			sub.EndedAt = &ended
			sub.Touch()
			count++
		}
	}
	return count, nil
}

func (s *Store) AddPoolCredits(_ context.Context, subID id.SubscriptionID, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subID.String()]
	if !ok {
		return credits.ErrSubscriptionNotFound
	}
	sub.PoolBalance += amount
	sub.Touch()
	return nil
}

// DebitPool is the atomic compare-and-decrement for a subscription pool.
// The row must still be active at the time of the write.
func (s *Store) DebitPool(_ context.Context, subID id.SubscriptionID, amount int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subID.String()]
	if !ok {
		return false, nil
	}
	if !sub.ActiveAt(time.Now()) {
		return false, nil
	}
	if sub.PoolBalance < amount {
		return false, nil
	}
	sub.PoolBalance -= amount
	sub.Touch()
	return true, nil
}

// Plan Store implementation

func (s *Store) CreatePlan(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[p.ID.String()]; exists {
		return credits.ErrAlreadyExists
	}
	cp := *p
	s.plans[p.ID.String()] = &cp
	return nil
}

func (s *Store) GetPlan(_ context.Context, planID id.PlanID) (*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.plans[planID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, credits.ErrPlanNotFound
}

func (s *Store) GetPlanBySlug(_ context.Context, slug string) (*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.plans {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, credits.ErrPlanNotFound
}

func (s *Store) ListPlans(_ context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*plan.Plan, 0)
	for _, p := range s.plans {
		if opts.Status == "" || p.Status == opts.Status {
			cp := *p
			result = append(result, &cp)
		}
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) UpdatePlan(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[p.ID.String()]; !exists {
		return credits.ErrPlanNotFound
	}
	cp := *p
	s.plans[p.ID.String()] = &cp
	return nil
}

func (s *Store) ArchivePlan(_ context.Context, planID id.PlanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, exists := s.plans[planID.String()]; exists {
		p.Status = plan.StatusArchived
		p.Touch()
		return nil
	}
	return credits.ErrPlanNotFound
}

// Grant Store implementation

// RecordGrant is the idempotency gate: the correlation-id key makes the
// insert-or-reject atomic under the store lock.
func (s *Store) RecordGrant(_ context.Context, e *grant.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.grants[e.CorrelationID]; exists {
		return credits.ErrDuplicateGrant
	}
	cp := *e
	s.grants[e.CorrelationID] = &cp
	return nil
}

func (s *Store) GetGrant(_ context.Context, correlationID string) (*grant.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.grants[correlationID]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, credits.ErrGrantNotFound
}

func (s *Store) DeleteGrant(_ context.Context, correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.grants, correlationID)
	return nil
}

// Audit Store implementation

func (s *Store) AppendAudit(_ context.Context, records []*audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.auditLog = append(s.auditLog, *r)
	}
	return nil
}

func (s *Store) ListAudit(_ context.Context, accountID id.AccountID, opts audit.ListOpts) ([]*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*audit.Record, 0)
	for i := range s.auditLog {
		r := s.auditLog[i]
		if r.AccountID.String() != accountID.String() {
			continue
		}
		if opts.Action != "" && r.Action != opts.Action {
			continue
		}
		result = append(result, &r)
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Store management

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}
