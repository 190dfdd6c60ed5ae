// Package subscription tracks a tenant's purchased plan packs and their
// lifecycle. Rows are written by checkout, renewed by billing, and lazily
// suspended by the access gate; they are never deleted, only superseded by
// newer rows for the same tenant.
package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/zappanel/zappanel/internal/plan"
)

// Errors
var (
	ErrNotFound = errors.New("subscription: not found")
)

// Status represents a subscription's lifecycle state.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// Valid returns true if s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusSuspended, StatusCancelled:
		return true
	}
	return false
}

// Subscription is a purchase of quantity packs of a plan by a tenant.
// PlanName references a plan.Definition by display name, free text rather than a
// foreign key, so it may stop resolving if the catalogue renames a plan.
type Subscription struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenantId"`
	PlanName    string     `json:"planName"`
	Quantity    int        `json:"quantity"` // packs purchased, always >= 1
	Status      Status     `json:"status"`
	Cycle       plan.Cycle `json:"cycle"`
	ValueCents  int64      `json:"valueCents"`
	StartedAt   time.Time  `json:"startedAt"`
	NextDueDate time.Time  `json:"nextDueDate"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// StatusWriter is the slice of Store needed to persist a status transition.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error
}

// Store persists subscriptions.
type Store interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	// FindCurrent returns the tenant's most recent subscription with status
	// trial or active, or ErrNotFound. Older rows with those statuses are
	// ignored; absence is a valid outcome for the caller, not a failure.
	FindCurrent(ctx context.Context, tenantID string) (*Subscription, error)
	// ListByTenant returns all of a tenant's rows, newest first, starting
	// after the cursor position (zero time means from the top).
	ListByTenant(ctx context.Context, tenantID string, before time.Time, beforeID string, limit int) ([]*Subscription, error)
	UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error
	// Renew reactivates a row: status active, due date pushed to nextDue,
	// paid_at stamped with paidAt.
	Renew(ctx context.Context, id string, nextDue, paidAt time.Time) error
}

// ExpireIfDue suspends a trial subscription whose next due date has passed,
// persisting the transition through the store. It returns the subscription as
// it should be seen by the caller (mutated in memory on success so no second
// read is needed) and whether a transition happened.
//
// The write is idempotent and unsynchronized: two requests racing on the same
// expired trial both land on suspended, so the duplicate write is harmless.
func ExpireIfDue(ctx context.Context, w StatusWriter, s *Subscription, now time.Time) (*Subscription, bool, error) {
	if s.Status != StatusTrial || !now.After(s.NextDueDate) {
		return s, false, nil
	}
	if err := w.UpdateStatus(ctx, s.ID, StatusSuspended, now); err != nil {
		return s, false, err
	}
	s.Status = StatusSuspended
	s.UpdatedAt = now
	return s, true, nil
}
