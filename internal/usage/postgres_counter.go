package usage

import (
	"context"
	"database/sql"

	"github.com/zappanel/zappanel/internal/entitlement"
)

// PostgresCounter counts provisioned resources from the instances and agents
// tables.
type PostgresCounter struct {
	db *sql.DB
}

// NewPostgresCounter creates a PostgreSQL-backed usage counter.
func NewPostgresCounter(db *sql.DB) *PostgresCounter {
	return &PostgresCounter{db: db}
}

func (p *PostgresCounter) Snapshot(ctx context.Context, tenantID string) (entitlement.UsageSnapshot, error) {
	var snap entitlement.UsageSnapshot
	err := p.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM instances WHERE tenant_id = $1 AND kind = 'native'),
			(SELECT COUNT(*) FROM instances WHERE tenant_id = $1 AND kind = 'external'),
			(SELECT COUNT(*) FROM agents WHERE tenant_id = $1 AND kind = 'internal'),
			(SELECT COUNT(*) FROM agents WHERE tenant_id = $1 AND kind = 'external')`,
		tenantID,
	).Scan(&snap.NativeInstances, &snap.ExternalInstances, &snap.InternalAgents, &snap.ExternalAgents)
	return snap, err
}

var _ Counter = (*PostgresCounter)(nil)
