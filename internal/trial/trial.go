// Package trial computes trial grace-period status for a tenant's user.
// The evaluator is a read-only projection, deliberately separate from the
// access gate so UI surfaces (banners, countdowns) can reuse it without side
// effects. The clock is injected; nothing here reads time.Now.
package trial

import (
	"fmt"
	"time"

	"github.com/zappanel/zappanel/internal/subscription"
)

// DefaultDays is the account-age trial window granted to users who have no
// subscription row at all.
const DefaultDays = 7

// Result describes a user's trial access at a point in time.
type Result struct {
	CanUseFeatures     bool       `json:"canUseFeatures"`
	IsTrialExpired     bool       `json:"isTrialExpired"`
	DaysRemaining      int        `json:"daysRemaining"`
	TrialEndDate       *time.Time `json:"trialEndDate,omitempty"`
	NeedsPlanSelection bool       `json:"needsPlanSelection"`
	Message            string     `json:"message"`
}

// Evaluate computes trial access for the given current subscription (nil when
// the tenant has none) and the user's account creation time, as of now, using
// the default account-age window.
//
// Priority order: a subscription row wins over the account-age fallback, and
// within a row the status decides everything. The expiry boundary is
// inclusive: a trial ending exactly now is still usable.
func Evaluate(sub *subscription.Subscription, userCreatedAt, now time.Time) Result {
	return EvaluateWindow(sub, userCreatedAt, now, DefaultDays)
}

// EvaluateWindow is Evaluate with a configurable account-age window in days
// (TRIAL_DAYS). Values below 1 fall back to DefaultDays. The window only
// matters for users with no subscription row; a trial subscription carries
// its own end date.
func EvaluateWindow(sub *subscription.Subscription, userCreatedAt, now time.Time, fallbackDays int) Result {
	if fallbackDays < 1 {
		fallbackDays = DefaultDays
	}
	if sub != nil {
		switch sub.Status {
		case subscription.StatusTrial:
			return trialWindow(sub.NextDueDate, now)
		case subscription.StatusSuspended:
			return Result{
				CanUseFeatures:     false,
				IsTrialExpired:     true,
				NeedsPlanSelection: true,
				Message:            "Your subscription is suspended. Renew your plan to regain access.",
			}
		case subscription.StatusCancelled:
			return Result{
				CanUseFeatures:     false,
				IsTrialExpired:     true,
				NeedsPlanSelection: true,
				Message:            "Your subscription was cancelled. Choose a plan to continue.",
			}
		case subscription.StatusActive:
			return Result{
				CanUseFeatures: true,
				Message:        "Your subscription is active.",
			}
		}
	}

	end := userCreatedAt.Add(time.Duration(fallbackDays) * 24 * time.Hour)
	return trialWindow(end, now)
}

func trialWindow(end, now time.Time) Result {
	expired := now.After(end)
	days := daysRemaining(end, now)

	r := Result{
		CanUseFeatures:     !expired,
		IsTrialExpired:     expired,
		DaysRemaining:      days,
		TrialEndDate:       &end,
		NeedsPlanSelection: expired,
	}
	if expired {
		r.Message = "Your trial has expired. Choose a plan to continue."
	} else if days == 1 {
		r.Message = "1 day remaining in your trial."
	} else {
		r.Message = fmt.Sprintf("%d days remaining in your trial.", days)
	}
	return r
}

// daysRemaining is ceil((end - now) / 1 day), clamped to >= 0.
func daysRemaining(end, now time.Time) int {
	remaining := end.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) != 0 {
		days++
	}
	return days
}
