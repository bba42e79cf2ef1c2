package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Credits store.
var Migrations = migrate.NewGroup("credits")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_credits_accounts",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credits_accounts (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL DEFAULT '',
    personal_balance BIGINT NOT NULL DEFAULT 0 CHECK (personal_balance >= 0),
    free_tier        BOOLEAN NOT NULL DEFAULT FALSE,
    metadata         JSONB NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_credits_accounts_user ON credits_accounts (user_id) WHERE user_id != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credits_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credits_subscriptions",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credits_subscriptions (
    id                       TEXT PRIMARY KEY,
    account_id               TEXT NOT NULL DEFAULT '',
    plan_id                  TEXT NOT NULL DEFAULT '',
    status                   TEXT NOT NULL DEFAULT 'active',
    current_period_start     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    current_period_end       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    pool_balance             BIGINT NOT NULL DEFAULT 0 CHECK (pool_balance >= 0),
    unlimited_posting        BOOLEAN NOT NULL DEFAULT FALSE,
    canceled_at              TIMESTAMPTZ,
    ended_at                 TIMESTAMPTZ,
    provider_subscription_id TEXT NOT NULL DEFAULT '',
    provider_customer_id     TEXT NOT NULL DEFAULT '',
    metadata                 JSONB NOT NULL DEFAULT '{}',
    created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_credits_subs_account ON credits_subscriptions (account_id, status);
CREATE INDEX IF NOT EXISTS idx_credits_subs_provider ON credits_subscriptions (provider_subscription_id) WHERE provider_subscription_id != '';
CREATE INDEX IF NOT EXISTS idx_credits_subs_period_end ON credits_subscriptions (status, current_period_end);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credits_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credits_plans",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credits_plans (
    id                TEXT PRIMARY KEY,
    name              TEXT NOT NULL DEFAULT '',
    slug              TEXT NOT NULL DEFAULT '',
    description       TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL DEFAULT 'draft',
    price_cents       BIGINT NOT NULL DEFAULT 0,
    price_currency    TEXT NOT NULL DEFAULT '',
    duration_days     INT NOT NULL DEFAULT 0,
    included_credits  BIGINT NOT NULL DEFAULT 0,
    unlimited_posting BOOLEAN NOT NULL DEFAULT FALSE,
    cost_per_post     BIGINT NOT NULL DEFAULT 0,
    metadata          JSONB NOT NULL DEFAULT '{}',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_credits_plans_slug ON credits_plans (slug);
CREATE INDEX IF NOT EXISTS idx_credits_plans_status ON credits_plans (status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credits_plans`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credits_grants",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credits_grants (
    id                       TEXT PRIMARY KEY,
    correlation_id           TEXT NOT NULL,
    account_id               TEXT NOT NULL DEFAULT '',
    kind                     TEXT NOT NULL DEFAULT '',
    amount                   BIGINT NOT NULL DEFAULT 0,
    subscription_id          TEXT NOT NULL DEFAULT '',
    plan_id                  TEXT NOT NULL DEFAULT '',
    provider_subscription_id TEXT NOT NULL DEFAULT '',
    provider_customer_id     TEXT NOT NULL DEFAULT '',
    actor_id                 TEXT NOT NULL DEFAULT '',
    memo                     TEXT NOT NULL DEFAULT '',
    applied_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    metadata                 JSONB NOT NULL DEFAULT '{}',
    created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_credits_grants_correlation ON credits_grants (correlation_id);
CREATE INDEX IF NOT EXISTS idx_credits_grants_account ON credits_grants (account_id, applied_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credits_grants`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credits_audit",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credits_audit (
    id             TEXT PRIMARY KEY,
    action         TEXT NOT NULL DEFAULT '',
    account_id     TEXT NOT NULL DEFAULT '',
    amount         BIGINT NOT NULL DEFAULT 0,
    source         TEXT NOT NULL DEFAULT '',
    correlation_id TEXT NOT NULL DEFAULT '',
    outcome        TEXT NOT NULL DEFAULT '',
    timestamp      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    metadata       JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_credits_audit_account ON credits_audit (account_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_credits_audit_action ON credits_audit (action, timestamp);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credits_audit`)
				return err
			},
		},
	)
}
