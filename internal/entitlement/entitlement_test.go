package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappanel/zappanel/internal/plan"
	"github.com/zappanel/zappanel/internal/subscription"
)

func testCatalog() *plan.Catalog {
	return plan.NewCatalog(
		plan.Definition{
			Key:         "starter",
			DisplayName: "Starter",
			PackAllotment: plan.Allotment{
				NativeInstances:   2,
				ExternalInstances: 1,
				InternalAgents:    2,
				ExternalAgents:    1,
			},
		},
		plan.Definition{
			Key:         "pro",
			DisplayName: "Pro",
			PackAllotment: plan.Allotment{
				NativeInstances:   5,
				ExternalInstances: 3,
				InternalAgents:    5,
				ExternalAgents:    3,
			},
		},
	)
}

func TestAggregateLimits_SumsActiveSubscriptions(t *testing.T) {
	calc := NewCalculator(testCatalog(), nil)

	subs := []*subscription.Subscription{
		{ID: "sub_1", PlanName: "Starter", Quantity: 2, Status: subscription.StatusActive},
		{ID: "sub_2", PlanName: "Pro", Quantity: 1, Status: subscription.StatusActive},
	}

	limits := calc.AggregateLimits(subs)
	assert.Equal(t, 9, limits.NativeInstances) // 2*2 + 5
	assert.Equal(t, 5, limits.ExternalInstances)
	assert.Equal(t, 9, limits.InternalAgents)
	assert.Equal(t, 5, limits.ExternalAgents)
	assert.Len(t, limits.Contributing, 2)
}

func TestAggregateLimits_TrialContributesNothing(t *testing.T) {
	calc := NewCalculator(testCatalog(), nil)

	subs := []*subscription.Subscription{
		{ID: "sub_1", PlanName: "Pro", Quantity: 3, Status: subscription.StatusTrial},
		{ID: "sub_2", PlanName: "Pro", Quantity: 1, Status: subscription.StatusSuspended},
		{ID: "sub_3", PlanName: "Pro", Quantity: 1, Status: subscription.StatusCancelled},
	}

	limits := calc.AggregateLimits(subs)
	assert.Equal(t, 0, limits.NativeInstances)
	assert.Empty(t, limits.Contributing)
}

func TestAggregateLimits_UnknownPlanSkipped(t *testing.T) {
	calc := NewCalculator(testCatalog(), nil)

	subs := []*subscription.Subscription{
		{ID: "sub_1", PlanName: "Legacy Gold", Quantity: 4, Status: subscription.StatusActive},
		{ID: "sub_2", PlanName: "Starter", Quantity: 1, Status: subscription.StatusActive},
	}

	limits := calc.AggregateLimits(subs)
	assert.Equal(t, 2, limits.NativeInstances)
	require.Len(t, limits.Contributing, 1)
	assert.Equal(t, "sub_2", limits.Contributing[0].ID)
}

func TestAggregateLimits_PlanNameCaseInsensitive(t *testing.T) {
	calc := NewCalculator(testCatalog(), nil)

	limits := calc.AggregateLimits([]*subscription.Subscription{
		{ID: "sub_1", PlanName: "sTARTER", Quantity: 1, Status: subscription.StatusActive},
	})
	assert.Equal(t, 2, limits.NativeInstances)
}

func TestCheckEntitlement(t *testing.T) {
	limits := TotalLimits{NativeInstances: 2, ExternalAgents: 1}

	res := CheckEntitlement(limits, UsageSnapshot{NativeInstances: 1}, plan.ResourceNativeInstances)
	assert.True(t, res.Allowed)
	assert.Empty(t, res.Reason)

	res = CheckEntitlement(limits, UsageSnapshot{NativeInstances: 2}, plan.ResourceNativeInstances)
	assert.False(t, res.Allowed)
	assert.Equal(t, "limit of 2 native instances reached", res.Reason)

	// Singular noun at a limit of one.
	res = CheckEntitlement(limits, UsageSnapshot{ExternalAgents: 1}, plan.ResourceExternalAgents)
	assert.False(t, res.Allowed)
	assert.Equal(t, "limit of 1 external agent reached", res.Reason)
}

func TestCheckEntitlement_ZeroLimitDenies(t *testing.T) {
	res := CheckEntitlement(TotalLimits{}, UsageSnapshot{}, plan.ResourceInternalAgents)
	assert.False(t, res.Allowed)
	assert.Equal(t, "limit of 0 internal agents reached", res.Reason)
}

func TestUsagePercentage(t *testing.T) {
	limits := TotalLimits{NativeInstances: 4, InternalAgents: 2}
	usage := UsageSnapshot{NativeInstances: 1, InternalAgents: 3}

	pct := UsagePercentage(limits, usage)
	assert.InDelta(t, 25.0, pct[plan.ResourceNativeInstances], 0.001)
	assert.InDelta(t, 150.0, pct[plan.ResourceInternalAgents], 0.001)
	// Zero limit maps to zero, not a division by zero.
	assert.Zero(t, pct[plan.ResourceExternalInstances])
}

func TestLimitError_Message(t *testing.T) {
	err := &LimitError{Resource: plan.ResourceExternalInstances, Limit: 3}
	assert.Equal(t, "limit of 3 external instances reached", err.Error())
}
