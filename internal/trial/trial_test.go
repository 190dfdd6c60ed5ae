package trial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappanel/zappanel/internal/subscription"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func trialSub(due time.Time) *subscription.Subscription {
	return &subscription.Subscription{
		ID:          "sub_1",
		TenantID:    "ten_1",
		Status:      subscription.StatusTrial,
		NextDueDate: due,
	}
}

func TestEvaluate_ActiveTrial(t *testing.T) {
	end := now.Add(3 * 24 * time.Hour)
	res := Evaluate(trialSub(end), time.Time{}, now)

	assert.True(t, res.CanUseFeatures)
	assert.False(t, res.IsTrialExpired)
	assert.False(t, res.NeedsPlanSelection)
	assert.Equal(t, 3, res.DaysRemaining)
	assert.Equal(t, "3 days remaining in your trial.", res.Message)
	require.NotNil(t, res.TrialEndDate)
	assert.True(t, res.TrialEndDate.Equal(end))
}

func TestEvaluate_PartialDayRoundsUp(t *testing.T) {
	res := Evaluate(trialSub(now.Add(25*time.Hour)), time.Time{}, now)
	assert.Equal(t, 2, res.DaysRemaining)

	res = Evaluate(trialSub(now.Add(time.Minute)), time.Time{}, now)
	assert.Equal(t, 1, res.DaysRemaining)
	assert.Equal(t, "1 day remaining in your trial.", res.Message)
}

func TestEvaluate_EndBoundaryIsInclusive(t *testing.T) {
	// A trial ending exactly now is still usable.
	res := Evaluate(trialSub(now), time.Time{}, now)
	assert.True(t, res.CanUseFeatures)
	assert.False(t, res.IsTrialExpired)
	assert.Equal(t, 0, res.DaysRemaining)

	// One nanosecond past the end it is not.
	res = Evaluate(trialSub(now.Add(-time.Nanosecond)), time.Time{}, now)
	assert.False(t, res.CanUseFeatures)
	assert.True(t, res.IsTrialExpired)
}

func TestEvaluate_ExpiredTrial(t *testing.T) {
	res := Evaluate(trialSub(now.Add(-48*time.Hour)), time.Time{}, now)

	assert.False(t, res.CanUseFeatures)
	assert.True(t, res.IsTrialExpired)
	assert.True(t, res.NeedsPlanSelection)
	assert.Equal(t, 0, res.DaysRemaining)
	assert.Equal(t, "Your trial has expired. Choose a plan to continue.", res.Message)
}

func TestEvaluate_SubscriptionStatuses(t *testing.T) {
	tests := []struct {
		status  subscription.Status
		canUse  bool
		message string
	}{
		{subscription.StatusActive, true, "Your subscription is active."},
		{subscription.StatusSuspended, false, "Your subscription is suspended. Renew your plan to regain access."},
		{subscription.StatusCancelled, false, "Your subscription was cancelled. Choose a plan to continue."},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			sub := &subscription.Subscription{ID: "sub_1", Status: tt.status}
			res := Evaluate(sub, time.Time{}, now)

			assert.Equal(t, tt.canUse, res.CanUseFeatures)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, !tt.canUse, res.NeedsPlanSelection)
		})
	}
}

func TestEvaluate_NoSubscriptionUsesAccountAge(t *testing.T) {
	created := now.Add(-2 * 24 * time.Hour)
	res := Evaluate(nil, created, now)

	assert.True(t, res.CanUseFeatures)
	assert.Equal(t, 5, res.DaysRemaining)
	require.NotNil(t, res.TrialEndDate)
	assert.True(t, res.TrialEndDate.Equal(created.Add(DefaultDays*24*time.Hour)))
}

func TestEvaluate_AccountAgeFallbackExpires(t *testing.T) {
	created := now.Add(-10 * 24 * time.Hour)
	res := Evaluate(nil, created, now)

	assert.False(t, res.CanUseFeatures)
	assert.True(t, res.NeedsPlanSelection)
	assert.Equal(t, "Your trial has expired. Choose a plan to continue.", res.Message)
}

func TestEvaluateWindow_ConfiguredFallback(t *testing.T) {
	// A 14-day window keeps a 10-day-old account inside the trial.
	created := now.Add(-10 * 24 * time.Hour)
	res := EvaluateWindow(nil, created, now, 14)

	assert.True(t, res.CanUseFeatures)
	assert.Equal(t, 4, res.DaysRemaining)

	// The same account is expired under the 7-day default.
	res = EvaluateWindow(nil, created, now, DefaultDays)
	assert.False(t, res.CanUseFeatures)
}

func TestEvaluateWindow_NonPositiveFallsBackToDefault(t *testing.T) {
	created := now.Add(-5 * 24 * time.Hour)

	for _, days := range []int{0, -3} {
		res := EvaluateWindow(nil, created, now, days)
		assert.True(t, res.CanUseFeatures)
		assert.Equal(t, 2, res.DaysRemaining)
	}
}

func TestEvaluate_SubscriptionWinsOverAccountAge(t *testing.T) {
	// Brand-new account, but the cancelled row decides.
	sub := &subscription.Subscription{ID: "sub_1", Status: subscription.StatusCancelled}
	res := Evaluate(sub, now.Add(-time.Hour), now)

	assert.False(t, res.CanUseFeatures)
	assert.Equal(t, "Your subscription was cancelled. Choose a plan to continue.", res.Message)
}
