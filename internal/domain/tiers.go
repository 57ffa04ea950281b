// Package domain holds the leaf types shared across every engine: trust
// tiers, risk tiers, and the state-machine enums for tasks, escrows,
// proofs, and disputes. Extracting them here breaks the import cycles that
// would otherwise exist between internal/trust, internal/task, and
// internal/escrow (§9 "cycles are broken by extracting shared types into
// leaf modules").
package domain

import (
	"fmt"
	"strings"
)

// TrustTier is a totally ordered trust level, except BANNED which is
// terminal and incomparable to every other tier.
type TrustTier string

const (
	TierRookie   TrustTier = "ROOKIE"
	TierVerified TrustTier = "VERIFIED"
	TierTrusted  TrustTier = "TRUSTED"
	TierElite    TrustTier = "ELITE"
	TierBanned   TrustTier = "BANNED"
)

var tierRank = map[TrustTier]int{
	TierRookie:   1,
	TierVerified: 2,
	TierTrusted:  3,
	TierElite:    4,
}

// Rank returns the tier's position in the total order, or 0 for BANNED and
// unrecognized tiers (BANNED is intentionally excluded from the order: it
// is never "lower" or "higher", only disqualifying).
func (t TrustTier) Rank() int { return tierRank[t] }

// AtLeast reports whether t meets or exceeds required in the total order.
// BANNED never satisfies any requirement, including ROOKIE.
func (t TrustTier) AtLeast(required TrustTier) bool {
	if t == TierBanned {
		return false
	}
	return t.Rank() >= required.Rank()
}

// Valid reports whether t is a recognized tier name.
func (t TrustTier) Valid() bool {
	if t == TierBanned {
		return true
	}
	_, ok := tierRank[t]
	return ok
}

// Demote returns the tier one rank below t, floored at ROOKIE. Demoting an
// already-ROOKIE (or BANNED) tier is a no-op.
func (t TrustTier) Demote() TrustTier {
	switch t {
	case TierElite:
		return TierTrusted
	case TierTrusted:
		return TierVerified
	case TierVerified:
		return TierRookie
	default:
		return t
	}
}

// XPMultiplier returns the trust_multiplier factor used in the XP award
// formula (§3): 1.0 for ROOKIE, 1.5 for VERIFIED, 2.0 for TRUSTED and ELITE.
func (t TrustTier) XPMultiplier() float64 {
	switch t {
	case TierVerified:
		return 1.5
	case TierTrusted, TierElite:
		return 2.0
	default:
		return 1.0
	}
}

// RiskTier classifies a task's risk level. TIER_3 is always rejected in
// the current product phase ("blocked in alpha").
type RiskTier string

const (
	RiskTier0 RiskTier = "TIER_0"
	RiskTier1 RiskTier = "TIER_1"
	RiskTier2 RiskTier = "TIER_2"
	RiskTier3 RiskTier = "TIER_3"
)

// RequiredTier returns the minimum trust tier required to accept a task of
// this risk level, per the authoritative table in §4.6. TIER_3 has no
// satisfiable requirement: callers must check BlockedInAlpha first.
func (r RiskTier) RequiredTier() TrustTier {
	switch r {
	case RiskTier2:
		return TierTrusted
	case RiskTier3:
		return TierElite // unreachable in practice; TIER_3 is rejected outright
	default:
		return TierVerified
	}
}

// ParseTrustTier parses a tier name case-insensitively, rejecting anything
// not in the fixed tier set. config.parseTierName runs its own check rather
// than importing this package, and accepts only the four promotable tiers:
// BANNED is valid here and rejected there.
func ParseTrustTier(name string) (TrustTier, error) {
	t := TrustTier(strings.ToUpper(strings.TrimSpace(name)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown trust tier %q", name)
	}
	return t, nil
}

// BlockedInAlpha reports whether this risk tier is categorically rejected.
func (r RiskTier) BlockedInAlpha() bool { return r == RiskTier3 }

// IsLow reports whether the risk tier is low enough to bypass a trust hold
// (§4.6 "trust_hold blocks non-LOW-risk task creation/acceptance").
func (r RiskTier) IsLow() bool { return r == RiskTier0 }
