package task

import "github.com/hustlexp/hustlexp-core/internal/domain"

// PlanGate decides whether a poster's subscription plan permits posting a
// task of a given risk tier (§4.4 "risk/plan gating via plan service", §6;
// the failure code PLAN_REQUIRED in §7 implies such a gate exists, though
// spec.md leaves its concrete thresholds unspecified — resolved here as an
// injected interface, following the same "dynamic imports... interface
// abstractions passed at construction" convention as ratelimit/killswitch).
type PlanGate interface {
	Allows(plan domain.UserPlan, risk domain.RiskTier) bool
}

// DefaultPlanGate requires a paid plan (premium or pro) to post TIER_2 risk
// tasks; TIER_0/TIER_1 are open to every plan. TIER_3 is rejected outright
// by the risk gate itself before a plan check is ever reached.
type DefaultPlanGate struct{}

func (DefaultPlanGate) Allows(plan domain.UserPlan, risk domain.RiskTier) bool {
	if risk == domain.RiskTier2 {
		return plan == domain.PlanPremium || plan == domain.PlanPro
	}
	return true
}
