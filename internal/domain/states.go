package domain

// TaskLifecycleState is the primary business state of a task (§4.4).
type TaskLifecycleState string

const (
	LifecycleOpen           TaskLifecycleState = "OPEN"
	LifecycleMatching       TaskLifecycleState = "MATCHING"
	LifecycleAccepted       TaskLifecycleState = "ACCEPTED"
	LifecycleProofSubmitted TaskLifecycleState = "PROOF_SUBMITTED"
	LifecycleDisputed       TaskLifecycleState = "DISPUTED"
	LifecycleCompleted      TaskLifecycleState = "COMPLETED"
	LifecycleCancelled      TaskLifecycleState = "CANCELLED"
	LifecycleExpired        TaskLifecycleState = "EXPIRED"
)

// Terminal reports whether the lifecycle state is immutable (HX001).
func (s TaskLifecycleState) Terminal() bool {
	switch s {
	case LifecycleCompleted, LifecycleCancelled, LifecycleExpired:
		return true
	default:
		return false
	}
}

// taskLifecycleTransitions enumerates the legal "from -> {to...}" moves of
// the lifecycle state machine (§4.4 diagram), excluding the always-legal
// cancel/expire escapes handled separately by CanCancelOrExpire.
var taskLifecycleTransitions = map[TaskLifecycleState]map[TaskLifecycleState]bool{
	LifecycleOpen:           {LifecycleAccepted: true},
	LifecycleMatching:       {LifecycleAccepted: true},
	LifecycleAccepted:       {LifecycleProofSubmitted: true},
	LifecycleProofSubmitted: {LifecycleCompleted: true, LifecycleAccepted: true, LifecycleDisputed: true},
	LifecycleDisputed:       {LifecycleCompleted: true, LifecycleCancelled: true},
}

// CanTransitionLifecycle reports whether from -> to is a legal lifecycle move.
func CanTransitionLifecycle(from, to TaskLifecycleState) bool {
	return taskLifecycleTransitions[from][to]
}

// CanCancelOrExpire reports whether a task in state s may be cancelled or
// expired directly (only non-terminal, non-disputed states).
func CanCancelOrExpire(s TaskLifecycleState) bool {
	switch s {
	case LifecycleOpen, LifecycleMatching, LifecycleAccepted:
		return true
	default:
		return false
	}
}

// TaskProgressState is the delivery-tracking axis of a task (§4.4), frozen
// independently of the lifecycle state.
type TaskProgressState string

const (
	ProgressPosted    TaskProgressState = "POSTED"
	ProgressAccepted  TaskProgressState = "ACCEPTED"
	ProgressTraveling TaskProgressState = "TRAVELING"
	ProgressWorking   TaskProgressState = "WORKING"
	ProgressCompleted TaskProgressState = "COMPLETED"
	ProgressClosed    TaskProgressState = "CLOSED"
)

var progressOrder = []TaskProgressState{
	ProgressPosted, ProgressAccepted, ProgressTraveling, ProgressWorking, ProgressCompleted, ProgressClosed,
}

var progressRank = func() map[TaskProgressState]int {
	m := make(map[TaskProgressState]int, len(progressOrder))
	for i, s := range progressOrder {
		m[s] = i
	}
	return m
}()

// CanTransitionProgress reports whether from -> to is a legal, strictly
// forward progress move. Equal states are handled by the caller as an
// idempotent no-op, not as a transition.
func CanTransitionProgress(from, to TaskProgressState) bool {
	return progressRank[to] == progressRank[from]+1
}

// ProgressActor identifies who may drive a progress transition.
type ProgressActor string

const (
	ActorWorker ProgressActor = "WORKER"
	ActorSystem ProgressActor = "SYSTEM"
)

// RequiredActor returns which actor is authorized to drive the transition
// into the given target state (§4.4: "ACCEPTED and CLOSED are
// system-driven; TRAVELING, WORKING, COMPLETED are worker-driven").
func RequiredActor(to TaskProgressState) ProgressActor {
	switch to {
	case ProgressAccepted, ProgressClosed:
		return ActorSystem
	default:
		return ActorWorker
	}
}

// EscrowState is the custody state of an escrow (§4.3).
type EscrowState string

const (
	EscrowPending       EscrowState = "PENDING"
	EscrowFunded        EscrowState = "FUNDED"
	EscrowLockedDispute EscrowState = "LOCKED_DISPUTE"
	EscrowReleased      EscrowState = "RELEASED"
	EscrowRefunded      EscrowState = "REFUNDED"
	EscrowRefundPartial EscrowState = "REFUND_PARTIAL"
)

// Terminal reports whether the escrow state is immutable (HX002).
func (s EscrowState) Terminal() bool {
	switch s {
	case EscrowReleased, EscrowRefunded, EscrowRefundPartial:
		return true
	default:
		return false
	}
}

var escrowTransitions = map[EscrowState]map[EscrowState]bool{
	EscrowPending: {
		EscrowFunded: true,
	},
	EscrowFunded: {
		EscrowReleased:      true,
		EscrowRefunded:      true,
		EscrowRefundPartial: true,
		EscrowLockedDispute: true,
	},
	EscrowLockedDispute: {
		EscrowReleased:      true,
		EscrowRefunded:      true,
		EscrowRefundPartial: true,
	},
}

// CanTransitionEscrow reports whether from -> to is a legal escrow move.
func CanTransitionEscrow(from, to EscrowState) bool {
	return escrowTransitions[from][to]
}

// ProofState is the review state of a submitted proof.
type ProofState string

const (
	ProofPending  ProofState = "PENDING"
	ProofAccepted ProofState = "ACCEPTED"
	ProofRejected ProofState = "REJECTED"
)

// DisputeState is the review state of a dispute (§4.7).
type DisputeState string

const (
	DisputeOpen         DisputeState = "OPEN"
	DisputeUnderReview  DisputeState = "UNDER_REVIEW"
	DisputeResolved     DisputeState = "RESOLVED"
)

// Terminal reports whether the dispute state is immutable.
func (s DisputeState) Terminal() bool { return s == DisputeResolved }

// DisputeOutcome is the admin-selected resolution of a dispute.
type DisputeOutcome string

const (
	OutcomeRelease DisputeOutcome = "RELEASE"
	OutcomeRefund  DisputeOutcome = "REFUND"
	OutcomeSplit   DisputeOutcome = "SPLIT"
)

// PaymentEventResult is the terminal disposition of an external payment event.
type PaymentEventResult string

const (
	PaymentEventProcessing PaymentEventResult = "processing"
	PaymentEventSuccess    PaymentEventResult = "success"
	PaymentEventFailed     PaymentEventResult = "failed"
	PaymentEventSkipped    PaymentEventResult = "skipped"
)

// TaskMode distinguishes the two pricing/operational modes a task may run in.
type TaskMode string

const (
	ModeStandard TaskMode = "STANDARD"
	ModeLive     TaskMode = "LIVE"
)

// MinPriceCents returns the minimum legal price (in cents) for the mode,
// per §3: "Minimum prices: STANDARD >= 500, LIVE >= 1500."
func (m TaskMode) MinPriceCents() int64 {
	if m == ModeLive {
		return 1500
	}
	return 500
}

// UserPlan is a user's subscription plan.
type UserPlan string

const (
	PlanFree    UserPlan = "free"
	PlanPremium UserPlan = "premium"
	PlanPro     UserPlan = "pro"
)
