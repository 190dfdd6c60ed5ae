package agent

import (
	"context"
	"database/sql"
)

// PostgresStore persists agents in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed agent store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateWithinLimit performs the quota check and the insert in one statement,
// keeping check-and-create atomic under concurrency.
func (p *PostgresStore) CreateWithinLimit(ctx context.Context, a *Agent, limit int) error {
	if limit < 0 {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO agents (id, tenant_id, instance_id, name, kind, model, webhook_url, enabled, created_at, updated_at)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)`,
			a.ID, a.TenantID, a.InstanceID, a.Name, string(a.Kind), a.Model,
			a.WebhookURL, a.Enabled, a.CreatedAt, a.UpdatedAt,
		)
		return err
	}

	result, err := p.db.ExecContext(ctx, `
		INSERT INTO agents (id, tenant_id, instance_id, name, kind, model, webhook_url, enabled, created_at, updated_at)
		SELECT $1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10
		WHERE (SELECT COUNT(*) FROM agents WHERE tenant_id = $2 AND kind = $5) < $11`,
		a.ID, a.TenantID, a.InstanceID, a.Name, string(a.Kind), a.Model,
		a.WebhookURL, a.Enabled, a.CreatedAt, a.UpdatedAt, limit,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrLimitReached
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Agent, error) {
	return p.scan(p.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, COALESCE(instance_id, ''), name, kind, model, webhook_url, enabled, created_at, updated_at
		FROM agents WHERE id = $1`, id))
}

func (p *PostgresStore) ListByTenant(ctx context.Context, tenantID string) ([]*Agent, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, tenant_id, COALESCE(instance_id, ''), name, kind, model, webhook_url, enabled, created_at, updated_at
		FROM agents WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Agent
	for rows.Next() {
		a := &Agent{}
		var kind string
		if err := rows.Scan(&a.ID, &a.TenantID, &a.InstanceID, &a.Name, &kind,
			&a.Model, &a.WebhookURL, &a.Enabled, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Kind = Kind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, a *Agent) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE agents SET name = $1, instance_id = NULLIF($2, ''), model = $3,
			webhook_url = $4, enabled = $5, updated_at = $6
		WHERE id = $7`,
		a.Name, a.InstanceID, a.Model, a.WebhookURL, a.Enabled, a.UpdatedAt, a.ID,
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

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM agents WHERE id = $1`, id)
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

func (p *PostgresStore) CountByKind(ctx context.Context, tenantID string) (internal, external int, err error) {
	err = p.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE kind = 'internal'),
			COUNT(*) FILTER (WHERE kind = 'external')
		FROM agents WHERE tenant_id = $1`, tenantID).Scan(&internal, &external)
	return internal, external, err
}

func (p *PostgresStore) scan(row *sql.Row) (*Agent, error) {
	a := &Agent{}
	var kind string
	err := row.Scan(&a.ID, &a.TenantID, &a.InstanceID, &a.Name, &kind,
		&a.Model, &a.WebhookURL, &a.Enabled, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Kind = Kind(kind)
	return a, nil
}

// Migrate creates the agents table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS agents (
			id          TEXT PRIMARY KEY,
			tenant_id   TEXT NOT NULL,
			instance_id TEXT,
			name        TEXT NOT NULL,
			kind        TEXT NOT NULL,
			model       TEXT NOT NULL DEFAULT '',
			webhook_url TEXT NOT NULL DEFAULT '',
			enabled     BOOLEAN NOT NULL DEFAULT TRUE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_agents_tenant_kind ON agents(tenant_id, kind);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
