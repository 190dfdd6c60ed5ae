package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(NewMemoryUserStore(), NewMemorySessionStore())
}

func TestManager_Register(t *testing.T) {
	mgr := newTestManager()
	ctx := context.Background()

	u, err := mgr.Register(ctx, "  Alice@Example.COM ", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NotEmpty(t, u.ID)
	assert.Empty(t, u.TenantID)
	// The stored hash is bcrypt, never the password itself.
	assert.NotContains(t, u.PasswordHash, "hunter22")

	_, err = mgr.Register(ctx, "alice@example.com", "other")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestManager_LoginAndValidate(t *testing.T) {
	mgr := newTestManager()
	ctx := context.Background()

	reg, err := mgr.Register(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)

	token, u, err := mgr.Login(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, reg.ID, u.ID)
	assert.True(t, strings.HasPrefix(token, "sess_"))

	got, err := mgr.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, got.ID)

	// Bearer prefix is accepted.
	got, err = mgr.Validate(ctx, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, got.ID)
}

func TestManager_LoginRejectsBadCredentials(t *testing.T) {
	mgr := newTestManager()
	ctx := context.Background()

	_, err := mgr.Register(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)

	_, _, err = mgr.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown email reads the same as a bad password.
	_, _, err = mgr.Login(ctx, "bob@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestManager_ValidateRejectsGarbage(t *testing.T) {
	mgr := newTestManager()
	ctx := context.Background()

	for _, token := range []string{"", "sess_deadbeef", "tok_abc", "Bearer "} {
		_, err := mgr.Validate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidSession, "token %q", token)
	}
}

func TestManager_Logout(t *testing.T) {
	mgr := newTestManager()
	ctx := context.Background()

	_, err := mgr.Register(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)
	token, _, err := mgr.Login(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)

	require.NoError(t, mgr.Logout(ctx, token))
	_, err = mgr.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	// Logging out twice is a no-op.
	assert.NoError(t, mgr.Logout(ctx, token))
}
