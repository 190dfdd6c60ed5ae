package trial

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappanel/zappanel/internal/auth"
	"github.com/zappanel/zappanel/internal/entitlement"
	"github.com/zappanel/zappanel/internal/plan"
	"github.com/zappanel/zappanel/internal/subscription"
	"github.com/zappanel/zappanel/internal/usage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedCounter struct {
	snap entitlement.UsageSnapshot
}

func (f fixedCounter) Snapshot(_ context.Context, _ string) (entitlement.UsageSnapshot, error) {
	return f.snap, nil
}

func accessRouter(t *testing.T, user *auth.User, subs subscription.Store, counter usage.Counter) *gin.Engine {
	t.Helper()
	h := NewHandler(subs, counter, entitlement.NewCalculator(plan.Default(), nil), DefaultDays)
	h.clock = func() time.Time { return now }

	r := gin.New()
	grp := r.Group("/v1")
	grp.Use(func(c *gin.Context) {
		if user != nil {
			c.Set(auth.ContextKeyUser, user)
		}
		c.Next()
	})
	h.RegisterRoutes(grp)
	return r
}

func getAccess(t *testing.T, r *gin.Engine) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/access", nil))
	out := map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w, out
}

func TestGetAccess_Unauthenticated(t *testing.T) {
	r := accessRouter(t, nil, subscription.NewMemoryStore(), fixedCounter{})
	w, _ := getAccess(t, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetAccess_NoTenant(t *testing.T) {
	u := &auth.User{ID: "usr_1", CreatedAt: now.Add(-2 * 24 * time.Hour)}
	r := accessRouter(t, u, subscription.NewMemoryStore(), fixedCounter{})

	w, out := getAccess(t, r)
	require.Equal(t, http.StatusOK, w.Code)

	var res Result
	require.NoError(t, json.Unmarshal(out["access"], &res))
	assert.True(t, res.CanUseFeatures)
	assert.Equal(t, 5, res.DaysRemaining)
	// Limits and usage only make sense once a tenant exists.
	assert.NotContains(t, out, "limits")
}

func TestGetAccess_FullPayload(t *testing.T) {
	store := subscription.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), &subscription.Subscription{
		ID:        "sub_1",
		TenantID:  "ten_1",
		PlanName:  "Starter",
		Quantity:  1,
		Status:    subscription.StatusActive,
		CreatedAt: now,
	}))

	u := &auth.User{ID: "usr_1", TenantID: "ten_1", CreatedAt: now.Add(-60 * 24 * time.Hour)}
	counter := fixedCounter{snap: entitlement.UsageSnapshot{NativeInstances: 1}}
	r := accessRouter(t, u, store, counter)

	w, out := getAccess(t, r)
	require.Equal(t, http.StatusOK, w.Code)

	var res Result
	require.NoError(t, json.Unmarshal(out["access"], &res))
	assert.True(t, res.CanUseFeatures)
	assert.Equal(t, "Your subscription is active.", res.Message)

	var limits entitlement.TotalLimits
	require.NoError(t, json.Unmarshal(out["limits"], &limits))
	assert.Equal(t, 2, limits.NativeInstances)

	var snap entitlement.UsageSnapshot
	require.NoError(t, json.Unmarshal(out["usage"], &snap))
	assert.Equal(t, 1, snap.NativeInstances)

	var util map[plan.Resource]float64
	require.NoError(t, json.Unmarshal(out["utilization"], &util))
	assert.InDelta(t, 50.0, util[plan.ResourceNativeInstances], 0.001)
}

func TestGetAccess_SuspendedSubscription(t *testing.T) {
	store := subscription.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), &subscription.Subscription{
		ID:        "sub_1",
		TenantID:  "ten_1",
		PlanName:  "Starter",
		Quantity:  1,
		Status:    subscription.StatusSuspended,
		CreatedAt: now,
	}))

	// FindCurrent skips suspended rows; the account is old, so the fallback
	// window is exhausted too.
	u := &auth.User{ID: "usr_1", TenantID: "ten_1", CreatedAt: now.Add(-60 * 24 * time.Hour)}
	r := accessRouter(t, u, store, fixedCounter{})

	w, out := getAccess(t, r)
	require.Equal(t, http.StatusOK, w.Code)

	var res Result
	require.NoError(t, json.Unmarshal(out["access"], &res))
	assert.False(t, res.CanUseFeatures)
	assert.True(t, res.NeedsPlanSelection)
}
