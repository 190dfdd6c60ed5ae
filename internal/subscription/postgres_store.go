package subscription

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/zappanel/zappanel/internal/plan"
)

// PostgresStore persists subscriptions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed subscription store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const subscriptionColumns = `id, tenant_id, plan_name, quantity, status, cycle,
	value_cents, started_at, next_due_date, paid_at, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, s *Subscription) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, tenant_id, plan_name, quantity, status, cycle,
			value_cents, started_at, next_due_date, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, s.TenantID, s.PlanName, s.Quantity, string(s.Status), string(s.Cycle),
		s.ValueCents, s.StartedAt, s.NextDueDate, s.PaidAt, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Subscription, error) {
	return p.scan(p.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
}

func (p *PostgresStore) FindCurrent(ctx context.Context, tenantID string) (*Subscription, error) {
	return p.scan(p.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE tenant_id = $1 AND status IN ('trial', 'active')
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, tenantID))
}

func (p *PostgresStore) ListByTenant(ctx context.Context, tenantID string, before time.Time, beforeID string, limit int) ([]*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if !before.IsZero() {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, before, beforeID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Subscription
	for rows.Next() {
		s, err := p.scanRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE subscriptions SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), updatedAt, id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Renew(ctx context.Context, id string, nextDue, paidAt time.Time) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = 'active', next_due_date = $1, paid_at = $2, updated_at = $2
		WHERE id = $3`,
		nextDue, paidAt, id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) scan(row *sql.Row) (*Subscription, error) {
	s := &Subscription{}
	var status, cycle string
	var paidAt sql.NullTime
	err := row.Scan(&s.ID, &s.TenantID, &s.PlanName, &s.Quantity, &status, &cycle,
		&s.ValueCents, &s.StartedAt, &s.NextDueDate, &paidAt, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Status = Status(status)
	s.Cycle = plan.Cycle(cycle)
	if paidAt.Valid {
		t := paidAt.Time
		s.PaidAt = &t
	}
	return s, nil
}

func (p *PostgresStore) scanRows(rows *sql.Rows) (*Subscription, error) {
	s := &Subscription{}
	var status, cycle string
	var paidAt sql.NullTime
	err := rows.Scan(&s.ID, &s.TenantID, &s.PlanName, &s.Quantity, &status, &cycle,
		&s.ValueCents, &s.StartedAt, &s.NextDueDate, &paidAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = Status(status)
	s.Cycle = plan.Cycle(cycle)
	if paidAt.Valid {
		t := paidAt.Time
		s.PaidAt = &t
	}
	return s, nil
}

// Migrate creates the subscriptions table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS subscriptions (
			id            TEXT PRIMARY KEY,
			tenant_id     TEXT NOT NULL,
			plan_name     TEXT NOT NULL,
			quantity      INT NOT NULL DEFAULT 1 CHECK (quantity >= 1),
			status        TEXT NOT NULL DEFAULT 'trial',
			cycle         TEXT NOT NULL DEFAULT 'monthly',
			value_cents   BIGINT NOT NULL DEFAULT 0,
			started_at    TIMESTAMPTZ NOT NULL,
			next_due_date TIMESTAMPTZ NOT NULL,
			paid_at       TIMESTAMPTZ,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_tenant_current
			ON subscriptions(tenant_id, created_at DESC) WHERE status IN ('trial', 'active');
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
