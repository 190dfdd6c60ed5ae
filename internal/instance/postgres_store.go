package instance

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists instances in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed instance store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateWithinLimit performs the quota check and the insert as one statement,
// so two concurrent provisioning calls cannot both slip under the limit.
func (p *PostgresStore) CreateWithinLimit(ctx context.Context, inst *Instance, limit int) error {
	if limit < 0 {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO instances (id, tenant_id, name, kind, phone, endpoint_url, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			inst.ID, inst.TenantID, inst.Name, string(inst.Kind), inst.Phone,
			inst.EndpointURL, string(inst.Status), inst.CreatedAt, inst.UpdatedAt,
		)
		return err
	}

	result, err := p.db.ExecContext(ctx, `
		INSERT INTO instances (id, tenant_id, name, kind, phone, endpoint_url, status, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9
		WHERE (SELECT COUNT(*) FROM instances WHERE tenant_id = $2 AND kind = $4) < $10`,
		inst.ID, inst.TenantID, inst.Name, string(inst.Kind), inst.Phone,
		inst.EndpointURL, string(inst.Status), inst.CreatedAt, inst.UpdatedAt, limit,
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

func (p *PostgresStore) Get(ctx context.Context, id string) (*Instance, error) {
	return p.scan(p.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, kind, phone, endpoint_url, status, created_at, updated_at
		FROM instances WHERE id = $1`, id))
}

func (p *PostgresStore) ListByTenant(ctx context.Context, tenantID string) ([]*Instance, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, kind, phone, endpoint_url, status, created_at, updated_at
		FROM instances WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Instance
	for rows.Next() {
		inst := &Instance{}
		var kind, status string
		if err := rows.Scan(&inst.ID, &inst.TenantID, &inst.Name, &kind, &inst.Phone,
			&inst.EndpointURL, &status, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
			return nil, err
		}
		inst.Kind = Kind(kind)
		inst.Status = Status(status)
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE instances SET status = $1, updated_at = $2 WHERE id = $3`,
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

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM instances WHERE id = $1`, id)
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

func (p *PostgresStore) CountByKind(ctx context.Context, tenantID string) (native, external int, err error) {
	err = p.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE kind = 'native'),
			COUNT(*) FILTER (WHERE kind = 'external')
		FROM instances WHERE tenant_id = $1`, tenantID).Scan(&native, &external)
	return native, external, err
}

func (p *PostgresStore) scan(row *sql.Row) (*Instance, error) {
	inst := &Instance{}
	var kind, status string
	err := row.Scan(&inst.ID, &inst.TenantID, &inst.Name, &kind, &inst.Phone,
		&inst.EndpointURL, &status, &inst.CreatedAt, &inst.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	inst.Kind = Kind(kind)
	inst.Status = Status(status)
	return inst, nil
}

// Migrate creates the instances table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS instances (
			id           TEXT PRIMARY KEY,
			tenant_id    TEXT NOT NULL,
			name         TEXT NOT NULL,
			kind         TEXT NOT NULL,
			phone        TEXT NOT NULL DEFAULT '',
			endpoint_url TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_instances_tenant_kind ON instances(tenant_id, kind);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
