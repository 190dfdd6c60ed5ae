package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappanel/zappanel/internal/entitlement"
	"github.com/zappanel/zappanel/internal/instance"
	"github.com/zappanel/zappanel/internal/plan"
	"github.com/zappanel/zappanel/internal/subscription"
	"github.com/zappanel/zappanel/internal/usage"
)

// fixedSubs serves a canned current subscription and row list.
type fixedSubs struct {
	current *subscription.Subscription
	all     []*subscription.Subscription
}

func (f *fixedSubs) FindCurrent(_ context.Context, _ string) (*subscription.Subscription, error) {
	if f.current == nil {
		return nil, subscription.ErrNotFound
	}
	return f.current, nil
}

func (f *fixedSubs) ListByTenant(_ context.Context, _ string, _ time.Time, _ string, _ int) ([]*subscription.Subscription, error) {
	return f.all, nil
}

func activeStarter() *fixedSubs {
	return &fixedSubs{all: []*subscription.Subscription{
		{ID: "sub_1", PlanName: "Starter", Quantity: 1, Status: subscription.StatusActive},
	}}
}

func newTestService(t *testing.T, subs instance.SubscriptionSource) (*Service, *MemoryStore, *instance.MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	instances := instance.NewMemoryStore()
	calc := entitlement.NewCalculator(plan.Default(), nil)
	counter := &usage.StoreCounter{Instances: instances, Agents: store}
	return NewService(store, instances, subs, counter, calc, nil), store, instances
}

func TestServiceCreate_Internal(t *testing.T) {
	svc, _, _ := newTestService(t, activeStarter())

	a, err := svc.Create(context.Background(), "ten_1", CreateInput{
		Name:  "greeter",
		Kind:  KindInternal,
		Model: "gpt-4o-mini",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.True(t, a.Enabled)
	assert.Equal(t, "ten_1", a.TenantID)
}

func TestServiceCreate_QuotaReached(t *testing.T) {
	// Starter grants 1 external agent.
	svc, _, _ := newTestService(t, activeStarter())
	ctx := context.Background()

	_, err := svc.Create(ctx, "ten_1", CreateInput{Name: "a", Kind: KindExternal, WebhookURL: "https://hooks.example.com/a"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, "ten_1", CreateInput{Name: "b", Kind: KindExternal, WebhookURL: "https://hooks.example.com/b"})
	var limitErr *entitlement.LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, plan.ResourceExternalAgents, limitErr.Resource)
	assert.Equal(t, 1, limitErr.Limit)
}

func TestServiceCreate_TrialBypassesQuota(t *testing.T) {
	subs := &fixedSubs{current: &subscription.Subscription{
		ID:          "sub_1",
		Status:      subscription.StatusTrial,
		NextDueDate: time.Now().Add(24 * time.Hour),
	}}
	svc, _, _ := newTestService(t, subs)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, "ten_1", CreateInput{Name: "bot", Kind: KindInternal})
		require.NoError(t, err)
	}
}

func TestServiceCreate_BoundInstanceMustBelongToTenant(t *testing.T) {
	svc, _, instances := newTestService(t, activeStarter())
	ctx := context.Background()

	require.NoError(t, instances.CreateWithinLimit(ctx, &instance.Instance{
		ID:       "wi_other",
		TenantID: "ten_2",
		Kind:     instance.KindNative,
	}, -1))

	// Another tenant's instance reads as not found, not as forbidden.
	_, err := svc.Create(ctx, "ten_1", CreateInput{Name: "bot", Kind: KindInternal, InstanceID: "wi_other"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wi_other not found")

	_, err = svc.Create(ctx, "ten_1", CreateInput{Name: "bot", Kind: KindInternal, InstanceID: "wi_missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestServiceCreate_BoundInstanceAccepted(t *testing.T) {
	svc, _, instances := newTestService(t, activeStarter())
	ctx := context.Background()

	require.NoError(t, instances.CreateWithinLimit(ctx, &instance.Instance{
		ID:       "wi_1",
		TenantID: "ten_1",
		Kind:     instance.KindNative,
	}, -1))

	a, err := svc.Create(ctx, "ten_1", CreateInput{Name: "bot", Kind: KindInternal, InstanceID: "wi_1"})
	require.NoError(t, err)
	assert.Equal(t, "wi_1", a.InstanceID)
}

func TestServiceUpdateAndDelete(t *testing.T) {
	svc, store, _ := newTestService(t, activeStarter())
	ctx := context.Background()

	a, err := svc.Create(ctx, "ten_1", CreateInput{Name: "bot", Kind: KindInternal})
	require.NoError(t, err)

	a.Name = "support bot"
	a.Enabled = false
	require.NoError(t, svc.Update(ctx, a))

	got, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "support bot", got.Name)
	assert.False(t, got.Enabled)

	require.NoError(t, svc.Delete(ctx, a.ID))
	_, err = store.Get(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
