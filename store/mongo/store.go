package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/audit"
	"github.com/xraph/credits/grant"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/plan"
	creditsstore "github.com/xraph/credits/store"
	"github.com/xraph/credits/subscription"
)

// Collection name constants.
const (
	colAccounts      = "credits_accounts"
	colSubscriptions = "credits_subscriptions"
	colPlans         = "credits_plans"
	colGrants        = "credits_grants"
	colAudit         = "credits_audit"
)

// compile-time interface check
var _ creditsstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all credits collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("credits/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	m := toAccountModel(a)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": accountID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrAccountNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) GetAccountByUserID(ctx context.Context, userID string) (*account.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"user_id": userID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrAccountNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get account by user: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) SetFreeTier(ctx context.Context, accountID id.AccountID, freeTier bool) error {
	res, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": accountID.String()}).
		Set("free_tier", freeTier).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: set free tier: %w", err)
	}
	if res.MatchedCount() == 0 {
		return credits.ErrAccountNotFound
	}
	return nil
}

func (s *Store) AddPersonalCredits(ctx context.Context, accountID id.AccountID, amount int64) error {
	res, err := s.mdb.Collection(colAccounts).UpdateOne(ctx,
		bson.M{"_id": accountID.String()},
		bson.M{
			"$inc": bson.M{"personal_balance": amount},
			"$set": bson.M{"updated_at": now()},
		})
	if err != nil {
		return fmt.Errorf("credits/mongo: add personal credits: %w", err)
	}
	if res.MatchedCount == 0 {
		return credits.ErrAccountNotFound
	}
	return nil
}

// DebitPersonal is a single conditional decrement. The balance guard in
// the filter makes concurrent debits race-free: only one of two
// competing updates for the last credits can match the document.
func (s *Store) DebitPersonal(ctx context.Context, accountID id.AccountID, amount int64) (bool, error) {
	res, err := s.mdb.Collection(colAccounts).UpdateOne(ctx,
		bson.M{
			"_id":              accountID.String(),
			"personal_balance": bson.M{"$gte": amount},
		},
		bson.M{
			"$inc": bson.M{"personal_balance": -amount},
			"$set": bson.M{"updated_at": now()},
		})
	if err != nil {
		return false, fmt.Errorf("credits/mongo: debit personal: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: create subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": subID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) GetActiveSubscription(ctx context.Context, accountID id.AccountID, at time.Time) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{
			"account_id":           accountID.String(),
			"status":               string(subscription.StatusActive),
			"current_period_start": bson.M{"$lte": at},
			"current_period_end":   bson.M{"$gt": at},
		}).
		Sort(bson.D{{Key: "created_at", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("credits/mongo: get active subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) GetSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*subscription.Subscription, error) {
	if providerSubscriptionID == "" {
		return nil, credits.ErrSubscriptionNotFound
	}
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"provider_subscription_id": providerSubscriptionID}).
		Sort(bson.D{{Key: "created_at", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get subscription by provider id: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) ListSubscriptions(ctx context.Context, accountID id.AccountID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel

	filter := bson.M{"account_id": accountID.String()}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list subscriptions: %w", err)
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: update subscription: %w", err)
	}
	if res.MatchedCount() == 0 {
		return credits.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) CancelSubscription(ctx context.Context, subID id.SubscriptionID, cancelAt time.Time) error {
	t := now()
	update := s.mdb.NewUpdate((*subscriptionModel)(nil)).
		Filter(bson.M{"_id": subID.String()}).
		Set("canceled_at", cancelAt).
		Set("updated_at", t)

	if !time.Now().Before(cancelAt) {
		update = update.
			Set("status", string(subscription.StatusCanceled)).
			Set("ended_at", t)
	}

	res, err := update.Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: cancel subscription: %w", err)
	}
	if res.MatchedCount() == 0 {
		return credits.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ExpireSubscriptions(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.Collection(colSubscriptions).UpdateMany(ctx,
		bson.M{
			"status":             string(subscription.StatusActive),
			"current_period_end": bson.M{"$lt": before},
		},
		bson.A{bson.M{"$set": bson.M{
			"status":     string(subscription.StatusExpired),
			"ended_at":   "$current_period_end",
			"updated_at": now(),
		}}})
	if err != nil {
		return 0, fmt.Errorf("credits/mongo: expire subscriptions: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *Store) AddPoolCredits(ctx context.Context, subID id.SubscriptionID, amount int64) error {
	res, err := s.mdb.Collection(colSubscriptions).UpdateOne(ctx,
		bson.M{"_id": subID.String()},
		bson.M{
			"$inc": bson.M{"pool_balance": amount},
			"$set": bson.M{"updated_at": now()},
		})
	if err != nil {
		return fmt.Errorf("credits/mongo: add pool credits: %w", err)
	}
	if res.MatchedCount == 0 {
		return credits.ErrSubscriptionNotFound
	}
	return nil
}

// DebitPool is a single conditional decrement. The filter carries the
// balance guard and the liveness window, so a lapsed or drained
// subscription simply fails to match.
func (s *Store) DebitPool(ctx context.Context, subID id.SubscriptionID, amount int64) (bool, error) {
	t := now()
	res, err := s.mdb.Collection(colSubscriptions).UpdateOne(ctx,
		bson.M{
			"_id":                  subID.String(),
			"pool_balance":         bson.M{"$gte": amount},
			"status":               string(subscription.StatusActive),
			"current_period_start": bson.M{"$lte": t},
			"current_period_end":   bson.M{"$gt": t},
		},
		bson.M{
			"$inc": bson.M{"pool_balance": -amount},
			"$set": bson.M{"updated_at": t},
		})
	if err != nil {
		return false, fmt.Errorf("credits/mongo: debit pool: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// ==================== Plan Store ====================

func (s *Store) CreatePlan(ctx context.Context, p *plan.Plan) error {
	m := toPlanModel(p)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: create plan: %w", err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error) {
	var m planModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": planID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrPlanNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get plan: %w", err)
	}
	return fromPlanModel(&m)
}

func (s *Store) GetPlanBySlug(ctx context.Context, slug string) (*plan.Plan, error) {
	var m planModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"slug": slug}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrPlanNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get plan by slug: %w", err)
	}
	return fromPlanModel(&m)
}

func (s *Store) ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	var models []planModel

	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list plans: %w", err)
	}

	result := make([]*plan.Plan, len(models))
	for i := range models {
		p, err := fromPlanModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) UpdatePlan(ctx context.Context, p *plan.Plan) error {
	m := toPlanModel(p)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: update plan: %w", err)
	}
	if res.MatchedCount() == 0 {
		return credits.ErrPlanNotFound
	}
	return nil
}

func (s *Store) ArchivePlan(ctx context.Context, planID id.PlanID) error {
	res, err := s.mdb.NewUpdate((*planModel)(nil)).
		Filter(bson.M{"_id": planID.String()}).
		Set("status", string(plan.StatusArchived)).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: archive plan: %w", err)
	}
	if res.MatchedCount() == 0 {
		return credits.ErrPlanNotFound
	}
	return nil
}

// ==================== Grant Store ====================

// RecordGrant inserts the grant document, relying on the unique
// correlation-id index as the idempotency gate. A duplicate-key error
// is reported as ErrDuplicateGrant.
func (s *Store) RecordGrant(ctx context.Context, e *grant.Event) error {
	m := toGrantModel(e)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return credits.ErrDuplicateGrant
		}
		return fmt.Errorf("credits/mongo: record grant: %w", err)
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, correlationID string) (*grant.Event, error) {
	var m grantModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"correlation_id": correlationID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrGrantNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get grant: %w", err)
	}
	return fromGrantModel(&m)
}

func (s *Store) DeleteGrant(ctx context.Context, correlationID string) error {
	_, err := s.mdb.NewDelete((*grantModel)(nil)).
		Filter(bson.M{"correlation_id": correlationID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: delete grant: %w", err)
	}
	return nil
}

// ==================== Audit Store ====================

func (s *Store) AppendAudit(ctx context.Context, records []*audit.Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		m := toAuditModel(r)
		if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
			return fmt.Errorf("credits/mongo: append audit: %w", err)
		}
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, accountID id.AccountID, opts audit.ListOpts) ([]*audit.Record, error) {
	var models []auditModel

	filter := bson.M{"account_id": accountID.String()}
	if opts.Action != "" {
		filter["action"] = string(opts.Action)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list audit: %w", err)
	}

	result := make([]*audit.Record, len(models))
	for i := range models {
		r, err := fromAuditModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all credits collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{
				Keys: bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"user_id": bson.M{"$gt": ""}}),
			},
		},
		colSubscriptions: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "current_period_end", Value: 1}}},
			{
				Keys:    bson.D{{Key: "provider_subscription_id", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
		colPlans: {
			{
				Keys:    bson.D{{Key: "slug", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colGrants: {
			{
				Keys:    bson.D{{Key: "correlation_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "applied_at", Value: 1}}},
		},
		colAudit: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "action", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
	}
}
