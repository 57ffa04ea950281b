package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260101-000100",
		Description: "storage-kernel invariant triggers (HX codes)",
		Up: []string{
			// HX001: a task in a terminal lifecycle state cannot be modified.
			`CREATE OR REPLACE FUNCTION hx001_task_terminal_guard() RETURNS TRIGGER AS $$
			BEGIN
				IF OLD.lifecycle_state IN ('COMPLETED', 'CANCELLED', 'EXPIRED') THEN
					RAISE EXCEPTION 'HX001: task % is in terminal lifecycle state %', OLD.id, OLD.lifecycle_state
						USING ERRCODE = 'P0001';
				END IF;
				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql`,
			`DROP TRIGGER IF EXISTS trg_hx001_task_terminal_guard ON tasks`,
			`CREATE TRIGGER trg_hx001_task_terminal_guard
				BEFORE UPDATE ON tasks FOR EACH ROW EXECUTE FUNCTION hx001_task_terminal_guard()`,

			// HX002: an escrow in a terminal state cannot be modified.
			`CREATE OR REPLACE FUNCTION hx002_escrow_terminal_guard() RETURNS TRIGGER AS $$
			BEGIN
				IF OLD.state IN ('RELEASED', 'REFUNDED', 'REFUND_PARTIAL') THEN
					RAISE EXCEPTION 'HX002: escrow % is in terminal state %', OLD.id, OLD.state
						USING ERRCODE = 'P0001';
				END IF;
				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql`,
			`DROP TRIGGER IF EXISTS trg_hx002_escrow_terminal_guard ON escrows`,
			`CREATE TRIGGER trg_hx002_escrow_terminal_guard
				BEFORE UPDATE ON escrows FOR EACH ROW EXECUTE FUNCTION hx002_escrow_terminal_guard()`,

			// HX004: escrow.amount_cents is immutable after INSERT.
			`CREATE OR REPLACE FUNCTION hx004_escrow_amount_immutable() RETURNS TRIGGER AS $$
			BEGIN
				IF NEW.amount_cents IS DISTINCT FROM OLD.amount_cents THEN
					RAISE EXCEPTION 'HX004: escrow % amount is immutable (was %, attempted %)', OLD.id, OLD.amount_cents, NEW.amount_cents
						USING ERRCODE = 'P0001';
				END IF;
				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql`,
			`DROP TRIGGER IF EXISTS trg_hx004_escrow_amount_immutable ON escrows`,
			`CREATE TRIGGER trg_hx004_escrow_amount_immutable
				BEFORE UPDATE ON escrows FOR EACH ROW EXECUTE FUNCTION hx004_escrow_amount_immutable()`,

			// HX101 / HX201(tax): xp_ledger INSERT requires the referenced escrow
			// to be RELEASED, and is blocked while the user has unpaid offline
			// tax. Both gates share the xp_ledger insert path per §4.1/§4.8.
			`CREATE OR REPLACE FUNCTION hx101_xp_ledger_insert_guard() RETURNS TRIGGER AS $$
			DECLARE
				escrow_state TEXT;
				unpaid_tax BIGINT;
			BEGIN
				SELECT state INTO escrow_state FROM escrows WHERE id = NEW.escrow_id;
				IF escrow_state IS DISTINCT FROM 'RELEASED' THEN
					RAISE EXCEPTION 'HX101: escrow % is not RELEASED (state=%)', NEW.escrow_id, escrow_state
						USING ERRCODE = 'P0001';
				END IF;

				SELECT total_unpaid_tax_cents INTO unpaid_tax
					FROM user_xp_tax_status WHERE user_id = NEW.user_id;
				IF unpaid_tax IS NOT NULL AND unpaid_tax > 0 THEN
					RAISE EXCEPTION 'HX201: user % has unpaid offline tax (% cents)', NEW.user_id, unpaid_tax
						USING ERRCODE = 'P0001';
				END IF;

				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql`,
			`DROP TRIGGER IF EXISTS trg_hx101_xp_ledger_insert_guard ON xp_ledger`,
			`CREATE TRIGGER trg_hx101_xp_ledger_insert_guard
				BEFORE INSERT ON xp_ledger FOR EACH ROW EXECUTE FUNCTION hx101_xp_ledger_insert_guard()`,

			// HX102: DELETE and TRUNCATE on xp_ledger forbidden (append-only).
			`CREATE OR REPLACE FUNCTION hx102_xp_ledger_append_only() RETURNS TRIGGER AS $$
			BEGIN
				RAISE EXCEPTION 'HX102: xp_ledger is append-only' USING ERRCODE = 'P0001';
			END;
			$$ LANGUAGE plpgsql`,
			`DROP TRIGGER IF EXISTS trg_hx102_xp_ledger_no_delete ON xp_ledger`,
			`CREATE TRIGGER trg_hx102_xp_ledger_no_delete
				BEFORE DELETE ON xp_ledger FOR EACH ROW EXECUTE FUNCTION hx102_xp_ledger_append_only()`,
			`DROP TRIGGER IF EXISTS trg_hx102_xp_ledger_no_truncate ON xp_ledger`,
			`CREATE TRIGGER trg_hx102_xp_ledger_no_truncate
				BEFORE TRUNCATE ON xp_ledger FOR EACH STATEMENT EXECUTE FUNCTION hx102_xp_ledger_append_only()`,

			// HX201: escrow may reach RELEASED only if the task is COMPLETED.
			// HX801/HX810: escrow release blocked while the worker's payouts_locked is TRUE.
			`CREATE OR REPLACE FUNCTION hx201_escrow_release_guard() RETURNS TRIGGER AS $$
			DECLARE
				task_lifecycle TEXT;
				worker_locked  BOOLEAN;
			BEGIN
				IF NEW.state = 'RELEASED' AND OLD.state IS DISTINCT FROM 'RELEASED' THEN
					SELECT t.lifecycle_state, COALESCE(u.payouts_locked, FALSE)
						INTO task_lifecycle, worker_locked
						FROM tasks t LEFT JOIN users u ON u.id = t.worker_id
						WHERE t.id = (SELECT task_id FROM escrows WHERE id = NEW.id);

					IF task_lifecycle IS DISTINCT FROM 'COMPLETED' THEN
						RAISE EXCEPTION 'HX201: escrow % cannot release, task is not COMPLETED (state=%)', NEW.id, task_lifecycle
							USING ERRCODE = 'P0001';
					END IF;

					IF worker_locked THEN
						RAISE EXCEPTION 'HX801: escrow % cannot release, worker payouts are locked', NEW.id
							USING ERRCODE = 'P0001';
					END IF;
				END IF;
				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql`,
			`DROP TRIGGER IF EXISTS trg_hx201_escrow_release_guard ON escrows`,
			`CREATE TRIGGER trg_hx201_escrow_release_guard
				BEFORE UPDATE ON escrows FOR EACH ROW EXECUTE FUNCTION hx201_escrow_release_guard()`,

			// HX301: task may reach COMPLETED only if an ACCEPTED proof exists
			// (when the task requires proof).
			`CREATE OR REPLACE FUNCTION hx301_task_completion_guard() RETURNS TRIGGER AS $$
			DECLARE
				accepted_proof_exists BOOLEAN;
			BEGIN
				IF NEW.lifecycle_state = 'COMPLETED' AND OLD.lifecycle_state IS DISTINCT FROM 'COMPLETED' AND NEW.requires_proof THEN
					SELECT EXISTS(
						SELECT 1 FROM proofs WHERE task_id = NEW.id AND state = 'ACCEPTED'
					) INTO accepted_proof_exists;

					IF NOT accepted_proof_exists THEN
						RAISE EXCEPTION 'HX301: task % has no ACCEPTED proof', NEW.id
							USING ERRCODE = 'P0001';
					END IF;
				END IF;
				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql`,
			`DROP TRIGGER IF EXISTS trg_hx301_task_completion_guard ON tasks`,
			`CREATE TRIGGER trg_hx301_task_completion_guard
				BEFORE UPDATE ON tasks FOR EACH ROW EXECUTE FUNCTION hx301_task_completion_guard()`,

			// HX401: DELETE/UPDATE/TRUNCATE on badges forbidden (append-only).
			`CREATE OR REPLACE FUNCTION hx401_badges_append_only() RETURNS TRIGGER AS $$
			BEGIN
				RAISE EXCEPTION 'HX401: badges is append-only' USING ERRCODE = 'P0001';
			END;
			$$ LANGUAGE plpgsql`,
			`DROP TRIGGER IF EXISTS trg_hx401_badges_no_update ON badges`,
			`CREATE TRIGGER trg_hx401_badges_no_update
				BEFORE UPDATE ON badges FOR EACH ROW EXECUTE FUNCTION hx401_badges_append_only()`,
			`DROP TRIGGER IF EXISTS trg_hx401_badges_no_delete ON badges`,
			`CREATE TRIGGER trg_hx401_badges_no_delete
				BEFORE DELETE ON badges FOR EACH ROW EXECUTE FUNCTION hx401_badges_append_only()`,
			`DROP TRIGGER IF EXISTS trg_hx401_badges_no_truncate ON badges`,
			`CREATE TRIGGER trg_hx401_badges_no_truncate
				BEFORE TRUNCATE ON badges FOR EACH STATEMENT EXECUTE FUNCTION hx401_badges_append_only()`,

			// HX501: creating a recurring task series is blocked past the
			// configured per-owner limit.
			`CREATE OR REPLACE FUNCTION hx501_recurring_series_limit() RETURNS TRIGGER AS $$
			DECLARE
				existing_count INT;
				series_limit   CONSTANT INT := 5;
			BEGIN
				SELECT count(*) INTO existing_count FROM recurring_series WHERE owner_id = NEW.owner_id;
				IF existing_count >= series_limit THEN
					RAISE EXCEPTION 'HX501: user % would exceed recurring_task_limit (%)', NEW.owner_id, series_limit
						USING ERRCODE = 'P0001';
				END IF;
				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql`,
			`DROP TRIGGER IF EXISTS trg_hx501_recurring_series_limit ON recurring_series`,
			`CREATE TRIGGER trg_hx501_recurring_series_limit
				BEFORE INSERT ON recurring_series FOR EACH ROW EXECUTE FUNCTION hx501_recurring_series_limit()`,

			// HX701/HX702: UPDATE/DELETE on chargeback-type revenue ledger rows forbidden.
			`CREATE OR REPLACE FUNCTION hx701_revenue_ledger_chargeback_guard() RETURNS TRIGGER AS $$
			BEGIN
				IF OLD.entry_type = 'chargeback' THEN
					IF TG_OP = 'UPDATE' THEN
						RAISE EXCEPTION 'HX701: chargeback revenue ledger row % is append-only', OLD.id
							USING ERRCODE = 'P0001';
					ELSE
						RAISE EXCEPTION 'HX702: chargeback revenue ledger row % is append-only', OLD.id
							USING ERRCODE = 'P0001';
					END IF;
				END IF;
				IF TG_OP = 'UPDATE' THEN
					RETURN NEW;
				END IF;
				RETURN OLD;
			END;
			$$ LANGUAGE plpgsql`,
			`DROP TRIGGER IF EXISTS trg_hx701_revenue_ledger_no_update ON revenue_ledger`,
			`CREATE TRIGGER trg_hx701_revenue_ledger_no_update
				BEFORE UPDATE ON revenue_ledger FOR EACH ROW EXECUTE FUNCTION hx701_revenue_ledger_chargeback_guard()`,
			`DROP TRIGGER IF EXISTS trg_hx702_revenue_ledger_no_delete ON revenue_ledger`,
			`CREATE TRIGGER trg_hx702_revenue_ledger_no_delete
				BEFORE DELETE ON revenue_ledger FOR EACH ROW EXECUTE FUNCTION hx701_revenue_ledger_chargeback_guard()`,

			// HX811: DELETE on payment_disputes forbidden (append-only).
			`CREATE OR REPLACE FUNCTION hx811_payment_disputes_no_delete() RETURNS TRIGGER AS $$
			BEGIN
				RAISE EXCEPTION 'HX811: payment_disputes is append-only' USING ERRCODE = 'P0001';
			END;
			$$ LANGUAGE plpgsql`,
			`DROP TRIGGER IF EXISTS trg_hx811_payment_disputes_no_delete ON payment_disputes`,
			`CREATE TRIGGER trg_hx811_payment_disputes_no_delete
				BEFORE DELETE ON payment_disputes FOR EACH ROW EXECUTE FUNCTION hx811_payment_disputes_no_delete()`,

			// HX902: LIVE mode requires price >= 1500.
			`CREATE OR REPLACE FUNCTION hx902_live_mode_min_price() RETURNS TRIGGER AS $$
			BEGIN
				IF NEW.mode = 'LIVE' AND NEW.price_cents < 1500 THEN
					RAISE EXCEPTION 'HX902: LIVE mode requires price_cents >= 1500 (got %)', NEW.price_cents
						USING ERRCODE = 'P0001';
				END IF;
				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql`,
			`DROP TRIGGER IF EXISTS trg_hx902_live_mode_min_price ON tasks`,
			`CREATE TRIGGER trg_hx902_live_mode_min_price
				BEFORE INSERT OR UPDATE ON tasks FOR EACH ROW EXECUTE FUNCTION hx902_live_mode_min_price()`,
		},
	})
}
