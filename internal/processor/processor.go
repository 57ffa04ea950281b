// Package processor defines the external payment-processor client contract
// (§6): creating payment intents/transfers/refunds and verifying a
// standalone payment (the xp_tax payment flow, §4.8). The concrete
// processor integration is out of scope; only the interface and a
// mockgen-generated double for tests live here.
package processor

import (
	"context"

	"github.com/google/uuid"
)

// PaymentIntent is the subset of a created payment intent callers need.
type PaymentIntent struct {
	ID     string
	Status string
}

// Transfer is the subset of a created transfer (escrow release payout)
// callers need.
type Transfer struct {
	ID     string
	Status string
}

// Refund is the subset of a created refund callers need.
type Refund struct {
	ID     string
	Status string
}

// Client is the outbound contract this core holds against the external
// payment processor. internal/ledger.PaymentVerifier is satisfied by the
// VerifyXPTaxPayment method alone; the other methods exist for the task
// poster-funding flow described in §6 but are not yet called from any
// engine in this module (no operation in scope today issues an outbound
// CreatePaymentIntent/CreateTransfer/CreateRefund call — those happen on
// the processor's side and arrive here as inbound webhooks instead, per
// §4.5). They are kept on the interface because a concrete client needs
// them regardless of which direction drives a given flow.
type Client interface {
	CreatePaymentIntent(ctx context.Context, taskID uuid.UUID, amountCents int64) (*PaymentIntent, error)
	CreateTransfer(ctx context.Context, escrowID uuid.UUID, amountCents int64, destinationAccountID string) (*Transfer, error)
	CreateRefund(ctx context.Context, escrowID uuid.UUID, amountCents int64, paymentIntentID string) (*Refund, error)
	VerifyXPTaxPayment(ctx context.Context, paymentIntentID string, userID uuid.UUID) (amountCents int64, ok bool, err error)
}
