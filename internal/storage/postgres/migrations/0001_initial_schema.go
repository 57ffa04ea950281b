package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260101-000000",
		Description: "initial schema: users, tasks, escrows, proofs, disputes, ledgers, fabric tables",
		Up: []string{
			`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`,

			`CREATE TABLE IF NOT EXISTS users (
				id                      UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				email                   TEXT NOT NULL UNIQUE,
				role_hint               TEXT NOT NULL DEFAULT 'both',
				trust_tier              TEXT NOT NULL DEFAULT 'ROOKIE',
				banned                  BOOLEAN NOT NULL DEFAULT FALSE,
				ban_reason              TEXT,
				trust_hold              BOOLEAN NOT NULL DEFAULT FALSE,
				trust_hold_reason       TEXT,
				trust_hold_until        TIMESTAMPTZ,
				payouts_locked          BOOLEAN NOT NULL DEFAULT FALSE,
				payouts_locked_reason   TEXT,
				payouts_locked_at       TIMESTAMPTZ,
				plan                    TEXT NOT NULL DEFAULT 'free',
				plan_subscribed_at      TIMESTAMPTZ,
				plan_expires_at         TIMESTAMPTZ,
				phone_verified          BOOLEAN NOT NULL DEFAULT FALSE,
				payment_method_verified BOOLEAN NOT NULL DEFAULT FALSE,
				id_verified             BOOLEAN NOT NULL DEFAULT FALSE,
				xp_total                BIGINT NOT NULL DEFAULT 0,
				current_streak_days     INT NOT NULL DEFAULT 0,
				recurring_series_count  INT NOT NULL DEFAULT 0,
				version                 INT NOT NULL DEFAULT 0,
				created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,

			`CREATE TABLE IF NOT EXISTS admin_roles (
				user_id              UUID PRIMARY KEY REFERENCES users(id),
				can_resolve_disputes BOOLEAN NOT NULL DEFAULT FALSE,
				created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,

			`CREATE TABLE IF NOT EXISTS recurring_series (
				id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				owner_id   UUID NOT NULL REFERENCES users(id),
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,

			`CREATE TABLE IF NOT EXISTS tasks (
				id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				owner_id            UUID NOT NULL REFERENCES users(id),
				worker_id           UUID REFERENCES users(id),
				title               TEXT NOT NULL,
				description         TEXT NOT NULL DEFAULT '',
				price_cents         BIGINT NOT NULL,
				location            TEXT NOT NULL DEFAULT '',
				category            TEXT NOT NULL DEFAULT '',
				requires_proof      BOOLEAN NOT NULL DEFAULT TRUE,
				risk_tier           TEXT NOT NULL DEFAULT 'TIER_0',
				mode                TEXT NOT NULL DEFAULT 'STANDARD',
				instant_mode        BOOLEAN NOT NULL DEFAULT FALSE,
				sensitive           BOOLEAN NOT NULL DEFAULT FALSE,
				lifecycle_state     TEXT NOT NULL DEFAULT 'OPEN',
				progress_state      TEXT NOT NULL DEFAULT 'POSTED',
				recurring_series_id UUID REFERENCES recurring_series(id),
				accepted_at         TIMESTAMPTZ,
				proof_submitted_at  TIMESTAMPTZ,
				completed_at        TIMESTAMPTZ,
				cancelled_at        TIMESTAMPTZ,
				expired_at          TIMESTAMPTZ,
				disputed_at         TIMESTAMPTZ,
				version             INT NOT NULL DEFAULT 0,
				created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_worker ON tasks(worker_id)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_lifecycle_state ON tasks(lifecycle_state)`,

			`CREATE TABLE IF NOT EXISTS escrows (
				id                          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				task_id                     UUID NOT NULL UNIQUE REFERENCES tasks(id),
				amount_cents                BIGINT NOT NULL,
				state                       TEXT NOT NULL DEFAULT 'PENDING',
				external_payment_intent_id  TEXT,
				external_transfer_id        TEXT,
				external_refund_id          TEXT,
				refund_amount_cents         BIGINT,
				release_amount_cents        BIGINT,
				version                     INT NOT NULL DEFAULT 0,
				created_at                  TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at                  TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_escrows_state ON escrows(state)`,

			`CREATE TABLE IF NOT EXISTS proofs (
				id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				task_id       UUID NOT NULL REFERENCES tasks(id),
				submitter_id  UUID NOT NULL REFERENCES users(id),
				state         TEXT NOT NULL DEFAULT 'PENDING',
				description   TEXT NOT NULL DEFAULT '',
				media_url     TEXT,
				created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_proofs_task ON proofs(task_id)`,

			`CREATE TABLE IF NOT EXISTS disputes (
				id                   UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				task_id              UUID NOT NULL REFERENCES tasks(id),
				escrow_id            UUID NOT NULL REFERENCES escrows(id),
				initiated_by         UUID NOT NULL REFERENCES users(id),
				poster_id            UUID NOT NULL REFERENCES users(id),
				worker_id            UUID NOT NULL REFERENCES users(id),
				reason               TEXT NOT NULL,
				state                TEXT NOT NULL DEFAULT 'OPEN',
				evidence             JSONB NOT NULL DEFAULT '[]',
				resolution_outcome   TEXT,
				resolved_by          UUID REFERENCES users(id),
				resolved_at          TIMESTAMPTZ,
				refund_amount_cents  BIGINT,
				release_amount_cents BIGINT,
				version              INT NOT NULL DEFAULT 0,
				created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_disputes_task ON disputes(task_id)`,
			`CREATE INDEX IF NOT EXISTS idx_disputes_escrow ON disputes(escrow_id)`,

			`CREATE TABLE IF NOT EXISTS external_payment_events (
				external_id   TEXT PRIMARY KEY,
				event_type    TEXT NOT NULL,
				payload       JSONB NOT NULL,
				claimed_at    TIMESTAMPTZ,
				processed_at  TIMESTAMPTZ,
				result        TEXT,
				error_message TEXT,
				created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_payment_events_unclaimed ON external_payment_events(claimed_at) WHERE claimed_at IS NULL`,

			`CREATE TABLE IF NOT EXISTS outbox (
				id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				event_type      TEXT NOT NULL,
				aggregate_type  TEXT NOT NULL,
				aggregate_id    UUID NOT NULL,
				event_version   INT NOT NULL,
				idempotency_key TEXT NOT NULL UNIQUE,
				payload         JSONB NOT NULL,
				queue_name      TEXT NOT NULL,
				claimed_at      TIMESTAMPTZ,
				dispatched_at   TIMESTAMPTZ,
				attempts        INT NOT NULL DEFAULT 0,
				created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_outbox_undispatched ON outbox(queue_name) WHERE dispatched_at IS NULL`,

			`CREATE TABLE IF NOT EXISTS xp_ledger (
				id                    UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id               UUID NOT NULL REFERENCES users(id),
				task_id               UUID NOT NULL REFERENCES tasks(id),
				escrow_id             UUID NOT NULL REFERENCES escrows(id),
				base_xp               INT NOT NULL,
				effective_xp          INT NOT NULL,
				xp_before             BIGINT NOT NULL,
				xp_after              BIGINT NOT NULL,
				streak_days_at_award  INT NOT NULL,
				reason                TEXT NOT NULL,
				created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
				UNIQUE (user_id, task_id, escrow_id)
			)`,

			`CREATE TABLE IF NOT EXISTS badges (
				id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id    UUID NOT NULL REFERENCES users(id),
				badge_type TEXT NOT NULL,
				metadata   JSONB NOT NULL DEFAULT '{}',
				awarded_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,

			`CREATE TABLE IF NOT EXISTS trust_ledger (
				id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id         UUID NOT NULL REFERENCES users(id),
				before_tier     TEXT NOT NULL,
				after_tier      TEXT NOT NULL,
				source          TEXT NOT NULL,
				idempotency_key TEXT NOT NULL UNIQUE,
				created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,

			`CREATE TABLE IF NOT EXISTS revenue_ledger (
				id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				task_id      UUID REFERENCES tasks(id),
				escrow_id    UUID REFERENCES escrows(id),
				entry_type   TEXT NOT NULL,
				amount_cents BIGINT NOT NULL,
				created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,

			`CREATE TABLE IF NOT EXISTS xp_tax_ledger (
				id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id            UUID NOT NULL REFERENCES users(id),
				task_id            UUID NOT NULL REFERENCES tasks(id),
				gross_amount_cents BIGINT NOT NULL,
				tax_amount_cents   BIGINT NOT NULL,
				xp_held_back       BOOLEAN NOT NULL DEFAULT TRUE,
				tax_paid           BOOLEAN NOT NULL DEFAULT FALSE,
				paid_at            TIMESTAMPTZ,
				created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,

			`CREATE TABLE IF NOT EXISTS user_xp_tax_status (
				user_id                 UUID PRIMARY KEY REFERENCES users(id),
				total_unpaid_tax_cents  BIGINT NOT NULL DEFAULT 0,
				updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,

			`CREATE TABLE IF NOT EXISTS payment_disputes (
				id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				external_event_id  TEXT NOT NULL,
				task_id            UUID REFERENCES tasks(id),
				dispute_type       TEXT NOT NULL,
				payload            JSONB NOT NULL DEFAULT '{}',
				created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,

			`CREATE TABLE IF NOT EXISTS capability_profiles (
				user_id               UUID PRIMARY KEY REFERENCES users(id),
				trust_tier            TEXT NOT NULL,
				insurance_valid_until TIMESTAMPTZ,
				computed_at           TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,

			`CREATE TABLE IF NOT EXISTS verified_trades (
				id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id     UUID NOT NULL REFERENCES users(id),
				trade_type  TEXT NOT NULL,
				verified_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				expires_at  TIMESTAMPTZ
			)`,
			`CREATE INDEX IF NOT EXISTS idx_verified_trades_user ON verified_trades(user_id)`,
		},
	})
}
