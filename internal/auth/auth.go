// Package auth provides user accounts and session-token authentication for
// the control panel.
//
// Sessions are opaque bearer tokens ("sess_..."), stored hashed. A token is
// accepted from the Authorization header or the session cookie, so the same
// mechanism serves both the browser panel and API callers.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/zappanel/zappanel/internal/idgen"
)

// Errors
var (
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrEmailTaken         = errors.New("auth: email already registered")
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	ErrInvalidSession     = errors.New("auth: invalid or expired session")
)

// SessionTTL is how long a login session stays valid.
const SessionTTL = 30 * 24 * time.Hour

// User is a panel account. TenantID is empty until the user creates or joins
// a tenant; CreatedAt anchors the account-age trial fallback.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	TenantID     string    `json:"tenantId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Session is a stored login session. Hash is the SHA256 of the raw token.
type Session struct {
	ID        string    `json:"id"`
	Hash      string    `json:"-"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UserStore persists users.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
}

// SessionStore persists sessions.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	GetByHash(ctx context.Context, hash string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// Manager handles registration, login, and session validation.
type Manager struct {
	users    UserStore
	sessions SessionStore
}

// NewManager creates a new auth manager.
func NewManager(users UserStore, sessions SessionStore) *Manager {
	return &Manager{users: users, sessions: sessions}
}

// Users exposes the underlying user store.
func (m *Manager) Users() UserStore { return m.users }

// Register creates a new user account.
func (m *Manager) Register(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	u := &User{
		ID:           idgen.WithPrefix("usr_"),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login validates credentials and issues a session token.
// The raw token is shown once; only its hash is stored.
func (m *Manager) Login(ctx context.Context, email, password string) (rawToken string, u *User, err error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err = m.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", nil, err
	}
	rawToken = "sess_" + hex.EncodeToString(b)

	now := time.Now()
	s := &Session{
		ID:        idgen.WithPrefix("ses_"),
		Hash:      hashToken(rawToken),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionTTL),
	}
	if err := m.sessions.Create(ctx, s); err != nil {
		return "", nil, err
	}
	return rawToken, u, nil
}

// Validate resolves a raw session token to its user.
// Infrastructure failures are returned as-is so callers can tell a broken
// store apart from a bad token.
func (m *Manager) Validate(ctx context.Context, rawToken string) (*User, error) {
	rawToken = strings.TrimPrefix(rawToken, "Bearer ")
	rawToken = strings.TrimSpace(rawToken)
	if !strings.HasPrefix(rawToken, "sess_") {
		return nil, ErrInvalidSession
	}

	s, err := m.sessions.GetByHash(ctx, hashToken(rawToken))
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if time.Now().After(s.ExpiresAt) {
		return nil, ErrInvalidSession
	}

	u, err := m.users.Get(ctx, s.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	return u, nil
}

// Logout deletes the session behind a raw token. Unknown tokens are a no-op.
func (m *Manager) Logout(ctx context.Context, rawToken string) error {
	rawToken = strings.TrimPrefix(rawToken, "Bearer ")
	rawToken = strings.TrimSpace(rawToken)

	s, err := m.sessions.GetByHash(ctx, hashToken(rawToken))
	if err != nil {
		return nil
	}
	return m.sessions.Delete(ctx, s.ID)
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
