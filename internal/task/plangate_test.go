package task

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hustlexp/hustlexp-core/internal/domain"
)

func TestDefaultPlanGate_Tier2RequiresPaidPlan(t *testing.T) {
	var g DefaultPlanGate

	assert.True(t, g.Allows(domain.PlanPremium, domain.RiskTier2))
	assert.True(t, g.Allows(domain.PlanPro, domain.RiskTier2))
	assert.False(t, g.Allows(domain.PlanFree, domain.RiskTier2))
}

func TestDefaultPlanGate_LowerTiersOpenToEveryPlan(t *testing.T) {
	var g DefaultPlanGate

	assert.True(t, g.Allows(domain.PlanFree, domain.RiskTier0))
	assert.True(t, g.Allows(domain.PlanFree, domain.RiskTier1))
}
