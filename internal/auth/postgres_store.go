package auth

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresUserStore persists users in PostgreSQL.
type PostgresUserStore struct {
	db *sql.DB
}

// NewPostgresUserStore creates a new PostgreSQL-backed user store.
func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func (p *PostgresUserStore) Create(ctx context.Context, u *User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, tenant_id, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`,
		u.ID, u.Email, u.PasswordHash, u.TenantID, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (p *PostgresUserStore) Get(ctx context.Context, id string) (*User, error) {
	return p.scan(p.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, COALESCE(tenant_id, ''), created_at, updated_at
		FROM users WHERE id = $1`, id))
}

func (p *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return p.scan(p.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, COALESCE(tenant_id, ''), created_at, updated_at
		FROM users WHERE email = $1`, email))
}

func (p *PostgresUserStore) Update(ctx context.Context, u *User) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET email = $1, password_hash = $2, tenant_id = NULLIF($3, ''),
			updated_at = $4
		WHERE id = $5`,
		u.Email, u.PasswordHash, u.TenantID, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (p *PostgresUserStore) scan(row *sql.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.TenantID, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Migrate creates the users table (used in dev/test; prod uses migration files).
func (p *PostgresUserStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			tenant_id     TEXT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_tenant ON users(tenant_id);
	`)
	return err
}

var _ UserStore = (*PostgresUserStore)(nil)

// PostgresSessionStore persists sessions in PostgreSQL.
type PostgresSessionStore struct {
	db *sql.DB
}

// NewPostgresSessionStore creates a new PostgreSQL-backed session store.
func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

func (p *PostgresSessionStore) Create(ctx context.Context, s *Session) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sessions (id, hash, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.Hash, s.UserID, s.CreatedAt, s.ExpiresAt,
	)
	return err
}

func (p *PostgresSessionStore) GetByHash(ctx context.Context, hash string) (*Session, error) {
	s := &Session{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, hash, user_id, created_at, expires_at
		FROM sessions WHERE hash = $1 AND expires_at > NOW()`, hash).
		Scan(&s.ID, &s.Hash, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (p *PostgresSessionStore) Delete(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// Migrate creates the sessions table (used in dev/test; prod uses migration files).
func (p *PostgresSessionStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			hash       TEXT NOT NULL UNIQUE,
			user_id    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_hash ON sessions(hash);
	`)
	return err
}

var _ SessionStore = (*PostgresSessionStore)(nil)
