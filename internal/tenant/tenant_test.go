package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ten := &Tenant{
		ID:        "ten_1",
		Name:      "Acme Corp",
		Slug:      "acme",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.Create(ctx, ten))

	got, err := store.Get(ctx, "ten_1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.Name)

	got, err = store.GetBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "ten_1", got.ID)

	ten.Name = "Acme Inc"
	require.NoError(t, store.Update(ctx, ten))
	got, err = store.Get(ctx, "ten_1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Inc", got.Name)

	_, err = store.Get(ctx, "ten_missing")
	assert.ErrorIs(t, err, ErrTenantNotFound)
	_, err = store.GetBySlug(ctx, "nope")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestMemoryStore_UpdateReindexesSlug(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Tenant{ID: "ten_1", Name: "Acme", Slug: "acme"}))
	require.NoError(t, store.Create(ctx, &Tenant{ID: "ten_2", Name: "Beta", Slug: "beta"}))

	// Renaming the slug frees the old one and claims the new one.
	require.NoError(t, store.Update(ctx, &Tenant{ID: "ten_1", Name: "Acme", Slug: "acme-corp"}))

	got, err := store.GetBySlug(ctx, "acme-corp")
	require.NoError(t, err)
	assert.Equal(t, "ten_1", got.ID)
	_, err = store.GetBySlug(ctx, "acme")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	// Moving onto another tenant's slug is rejected.
	err = store.Update(ctx, &Tenant{ID: "ten_1", Name: "Acme", Slug: "beta"})
	assert.ErrorIs(t, err, ErrSlugTaken)
}

func TestMemoryStore_SlugConflict(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Tenant{ID: "ten_1", Name: "First", Slug: "acme"}))

	err := store.Create(ctx, &Tenant{ID: "ten_2", Name: "Second", Slug: "acme"})
	assert.ErrorIs(t, err, ErrSlugTaken)
}
