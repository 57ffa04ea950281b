package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/domain"
)

// User mirrors the users table (§3).
type User struct {
	ID                    uuid.UUID
	Email                 string
	RoleHint              string
	TrustTier             domain.TrustTier
	Banned                bool
	BanReason             string
	TrustHold             bool
	TrustHoldReason       string
	TrustHoldUntil        *time.Time
	PayoutsLocked         bool
	PayoutsLockedReason   string
	PayoutsLockedAt       *time.Time
	Plan                  domain.UserPlan
	PlanSubscribedAt      *time.Time
	PlanExpiresAt         *time.Time
	PhoneVerified         bool
	PaymentMethodVerified bool
	IDVerified            bool
	XPTotal               int64
	CurrentStreakDays     int
	RecurringSeriesCount  int
	Version               int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Task mirrors the tasks table (§3).
type Task struct {
	ID                uuid.UUID
	OwnerID           uuid.UUID
	WorkerID          *uuid.UUID
	Title             string
	Description       string
	PriceCents        int64
	Location          string
	Category          string
	RequiresProof     bool
	RiskTier          domain.RiskTier
	Mode              domain.TaskMode
	InstantMode       bool
	Sensitive         bool
	LifecycleState    domain.TaskLifecycleState
	ProgressState     domain.TaskProgressState
	RecurringSeriesID *uuid.UUID
	AcceptedAt        *time.Time
	ProofSubmittedAt  *time.Time
	CompletedAt       *time.Time
	CancelledAt       *time.Time
	ExpiredAt         *time.Time
	DisputedAt        *time.Time
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Escrow mirrors the escrows table (§3).
type Escrow struct {
	ID                      uuid.UUID
	TaskID                  uuid.UUID
	AmountCents             int64
	State                   domain.EscrowState
	ExternalPaymentIntentID *string
	ExternalTransferID      *string
	ExternalRefundID        *string
	RefundAmountCents       *int64
	ReleaseAmountCents      *int64
	Version                 int
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Proof mirrors the proofs table (§3).
type Proof struct {
	ID           uuid.UUID
	TaskID       uuid.UUID
	SubmitterID  uuid.UUID
	State        domain.ProofState
	Description  string
	MediaURL     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Dispute mirrors the disputes table (§3).
type Dispute struct {
	ID                 uuid.UUID
	TaskID             uuid.UUID
	EscrowID           uuid.UUID
	InitiatedBy        uuid.UUID
	PosterID           uuid.UUID
	WorkerID           uuid.UUID
	Reason             string
	State              domain.DisputeState
	Evidence           []byte // raw JSON array
	ResolutionOutcome  *domain.DisputeOutcome
	ResolvedBy         *uuid.UUID
	ResolvedAt         *time.Time
	RefundAmountCents  *int64
	ReleaseAmountCents *int64
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ExternalPaymentEvent mirrors the external_payment_events fabric table (§3).
type ExternalPaymentEvent struct {
	ExternalID   string
	EventType    string
	Payload      []byte
	ClaimedAt    *time.Time
	ProcessedAt  *time.Time
	Result       *domain.PaymentEventResult
	ErrorMessage *string
	CreatedAt    time.Time
}

// OutboxEvent mirrors the outbox fabric table (§3/§4.2).
type OutboxEvent struct {
	ID             uuid.UUID
	EventType      string
	AggregateType  string
	AggregateID    uuid.UUID
	EventVersion   int
	IdempotencyKey string
	Payload        []byte
	QueueName      string
	ClaimedAt      *time.Time
	DispatchedAt   *time.Time
	Attempts       int
	CreatedAt      time.Time
}

// XPLedgerEntry mirrors one append-only xp_ledger row (§3).
type XPLedgerEntry struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	TaskID            uuid.UUID
	EscrowID          uuid.UUID
	BaseXP            int
	EffectiveXP       int
	XPBefore          int64
	XPAfter           int64
	StreakDaysAtAward int
	Reason            string
	CreatedAt         time.Time
}

// TrustLedgerEntry mirrors one append-only trust_ledger row (§3).
type TrustLedgerEntry struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	BeforeTier     domain.TrustTier
	AfterTier      domain.TrustTier
	Source         string
	IdempotencyKey string
	CreatedAt      time.Time
}

// RevenueLedgerEntry mirrors one revenue_ledger row (§3); chargeback-type
// rows are append-only (HX701/HX702).
type RevenueLedgerEntry struct {
	ID          uuid.UUID
	TaskID      *uuid.UUID
	EscrowID    *uuid.UUID
	EntryType   string
	AmountCents int64
	CreatedAt   time.Time
}

// XPTaxEntry mirrors one xp_tax_ledger row (§3).
type XPTaxEntry struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	TaskID           uuid.UUID
	GrossAmountCents int64
	TaxAmountCents   int64
	XPHeldBack       bool
	TaxPaid          bool
	PaidAt           *time.Time
	CreatedAt        time.Time
}

// Badge mirrors one append-only badges row (§3).
type Badge struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	BadgeType string
	Metadata  []byte
	AwardedAt time.Time
}

// UserXPTaxStatus mirrors the per-user running-balance projection (§3/§4.8).
type UserXPTaxStatus struct {
	UserID              uuid.UUID
	TotalUnpaidTaxCents int64
	UpdatedAt           time.Time
}

// PaymentDispute mirrors one payment_disputes row: a chargeback or
// processor-side dispute notification, distinct from the buyer/worker
// disputes table (§3/§4.5).
type PaymentDispute struct {
	ID              uuid.UUID
	ExternalEventID string
	TaskID          *uuid.UUID
	DisputeType     string
	Payload         []byte
	CreatedAt       time.Time
}

// AdminRole mirrors the admin_roles table (§4.7).
type AdminRole struct {
	UserID             uuid.UUID
	CanResolveDisputes bool
	CreatedAt          time.Time
}

// CapabilityProfile mirrors the capability_profiles projection (§3).
type CapabilityProfile struct {
	UserID              uuid.UUID
	TrustTier           domain.TrustTier
	InsuranceValidUntil *time.Time
	ComputedAt          time.Time
}

// VerifiedTrade mirrors one verified_trades projection row (§3).
type VerifiedTrade struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TradeType  string
	VerifiedAt time.Time
	ExpiresAt  *time.Time
}
