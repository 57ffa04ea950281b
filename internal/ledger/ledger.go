// Package ledger implements the XP & Tax Ledger (§4.8): awarding XP under
// serializable isolation, recording offline-payment tax debt, and paying
// down that debt.
package ledger

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/domain"
	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/escrow"
	"github.com/hustlexp/hustlexp-core/internal/logging"
	"github.com/hustlexp/hustlexp-core/internal/storage/postgres"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

// PaymentVerifier confirms an external payment intent succeeded and is
// tagged for XP tax payment before payTax trusts it (§4.8, §9's injected-
// collaborator pattern).
type PaymentVerifier interface {
	VerifyXPTaxPayment(ctx context.Context, paymentIntentID string, userID uuid.UUID) (amountCents int64, ok bool, err error)
}

// DenyVerifier is a safe default PaymentVerifier for deployments that
// haven't wired the real processor client yet: every payment intent is
// reported unverified, so PayTax always fails closed rather than clearing
// tax debt on a payment nothing actually confirmed.
type DenyVerifier struct{}

func (DenyVerifier) VerifyXPTaxPayment(ctx context.Context, paymentIntentID string, userID uuid.UUID) (int64, bool, error) {
	return 0, false, nil
}

// Engine is the sole writer of xp_ledger and xp_tax_ledger state.
type Engine struct {
	runner   *txrunner.Runner
	xp       *postgres.XPLedgerRepository
	tax      *postgres.XPTaxRepository
	users    *postgres.UserRepository
	tasks    *postgres.TaskRepository
	escrow   *escrow.Engine
	verifier PaymentVerifier
	log      *logging.Logger
}

func New(runner *txrunner.Runner, escrowEngine *escrow.Engine, verifier PaymentVerifier) *Engine {
	return &Engine{
		runner:   runner,
		xp:       postgres.NewXPLedgerRepository(),
		tax:      postgres.NewXPTaxRepository(),
		users:    postgres.NewUserRepository(),
		tasks:    postgres.NewTaskRepository(),
		escrow:   escrowEngine,
		verifier: verifier,
		log:      logging.GetDefault().Component("ledger"),
	}
}

// AwardXPParams groups awardXP's inputs (§4.8).
type AwardXPParams struct {
	UserID   uuid.UUID
	TaskID   uuid.UUID
	EscrowID uuid.UUID
	BaseXP   int
	Reason   string
}

// AwardXP runs under serializable isolation (the Engine owns its own
// transaction rather than accepting a caller's executor, since the award
// must see a consistent snapshot of the user/task/escrow rows regardless of
// what else is concurrently committing). The kernel's HX101 (escrow not
// RELEASED) and HX201 (unpaid tax) triggers are the final word; this method
// pre-checks the escrow state for a friendlier failure ahead of HX101.
// Returns (nil, nil) if the award was already recorded (at-most-once via
// the (user, task, escrow) unique index).
func (e *Engine) AwardXP(ctx context.Context, p AwardXPParams) (*postgres.XPLedgerEntry, error) {
	var result *postgres.XPLedgerEntry
	err := e.runner.WithSerializableTransaction(ctx, func(ctx context.Context, ex txrunner.Executor) error {
		user, err := e.users.Get(ctx, ex, p.UserID)
		if err != nil {
			return err
		}
		es, err := e.escrow.Get(ctx, ex, p.EscrowID)
		if err != nil {
			return err
		}
		if es.State != domain.EscrowReleased {
			return hxerrors.NewStateError("escrow must be RELEASED before XP can be awarded", "escrow_id", es.ID, "state", es.State)
		}
		t, err := e.tasks.Get(ctx, ex, p.TaskID)
		if err != nil {
			return err
		}

		liveMultiplier := 1.0
		if t.Mode == domain.ModeLive {
			liveMultiplier = 1.25
		}
		streakMultiplier := math.Min(2.0, 1.0+0.05*float64(user.CurrentStreakDays))
		trustMultiplier := user.TrustTier.XPMultiplier()
		effective := int(math.Floor(float64(p.BaseXP) * streakMultiplier * trustMultiplier * liveMultiplier))

		xpBefore := user.XPTotal
		xpAfter := xpBefore + int64(effective)

		entry, alreadyAwarded, err := e.xp.Append(ctx, ex, p.UserID, p.TaskID, p.EscrowID, p.BaseXP, effective, xpBefore, xpAfter, user.CurrentStreakDays, p.Reason)
		if err != nil {
			return err
		}
		if alreadyAwarded {
			return nil
		}
		if _, err := e.users.AddXP(ctx, ex, p.UserID, int64(effective), user.Version); err != nil {
			return err
		}
		result = entry
		return nil
	})
	return result, err
}

// RecordOfflinePayment appends a tax-owed entry for an offline-paid task,
// incrementing the user's running unpaid-tax balance in the same write
// (§4.8). Tax is a flat 10% of the gross offline payment. Runs inside the
// caller's transaction (typically the task-completion flow), not its own:
// unlike AwardXP there is no serializability requirement on this insert.
func (e *Engine) RecordOfflinePayment(ctx context.Context, ex txrunner.Executor, userID, taskID uuid.UUID, grossAmountCents int64) (*postgres.XPTaxEntry, error) {
	if grossAmountCents <= 0 {
		return nil, hxerrors.NewValidationError("gross amount must be positive", "gross_amount_cents", grossAmountCents)
	}
	taxAmountCents := grossAmountCents / 10
	return e.tax.RecordTax(ctx, ex, userID, taskID, grossAmountCents, taxAmountCents)
}

// PayTax verifies the external payment, then clears the user's unpaid tax
// entries FIFO up to the verified amount (§4.8). Once the running balance
// reaches zero the kernel's HX201 trigger no longer blocks this user's
// xp_ledger inserts: the "held XP" release is that unblocking, not a
// stored XP amount replayed here — xp_tax_ledger carries no XP column to
// replay, only the gross/tax cents owed, so there is nothing to fabricate
// a number for. Returns the tax entries that were marked paid.
func (e *Engine) PayTax(ctx context.Context, userID uuid.UUID, paymentIntentID string) ([]*postgres.XPTaxEntry, error) {
	amountCents, ok, err := e.verifier.VerifyXPTaxPayment(ctx, paymentIntentID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, hxerrors.NewValidationError("payment intent did not succeed or is not tagged xp_tax", "payment_intent_id", paymentIntentID)
	}

	var cleared []*postgres.XPTaxEntry
	err = e.runner.WithTransaction(ctx, func(ctx context.Context, ex txrunner.Executor) error {
		unpaid, err := e.tax.ListUnpaidForUser(ctx, ex, userID)
		if err != nil {
			return err
		}
		remaining := amountCents
		for _, entry := range unpaid {
			if remaining < entry.TaxAmountCents {
				break
			}
			remaining -= entry.TaxAmountCents
			marked, err := e.tax.MarkPaid(ctx, ex, entry.ID)
			if err != nil {
				return err
			}
			if marked == nil {
				continue // already paid by a concurrent call
			}
			cleared = append(cleared, marked)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("xp tax paid", "user_id", userID, "payment_intent_id", paymentIntentID, "entries_cleared", len(cleared))
	return cleared, nil
}
