package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappanel/zappanel/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal in-memory config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		Env:                "development",
		LogLevel:           "error",
		LoginPath:          config.DefaultLoginPath,
		PlanSelectionPath:  config.DefaultPlanSelectionPath,
		SubscriptionPrefix: config.DefaultSubscriptionPrefix,
		QRPrefix:           config.DefaultQRPrefix,
		TrialDays:          7,
		RateLimitRPS:       10000,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	require.NoError(t, err)
	return s
}

func (s *Server) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do("GET", "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConfiguredCORSOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.CORSAllowedOrigins = []string{"https://panel.example.com"}
	s, err := New(cfg)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://panel.example.com")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "https://panel.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do("GET", "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotZero(t, w.Body.Len())
}

func TestLoginPageServed(t *testing.T) {
	s := newTestServer(t)

	w := s.do("GET", "/login", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
}

func TestAppRedirectsWithoutSession(t *testing.T) {
	s := newTestServer(t)

	w := s.do("GET", "/app/dashboard", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?redirect=%2Fapp%2Fdashboard", w.Header().Get("Location"))
}

// register + login, returning the session token.
func registerAndLogin(t *testing.T, s *Server, email string) string {
	t.Helper()

	w := s.do("POST", "/v1/auth/register", "", gin.H{"email": email, "password": "hunter2222"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do("POST", "/v1/auth/login", "", gin.H{"email": email, "password": "hunter2222"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestSignupToProvisioningFlow(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s, "owner@example.com")

	// No tenant yet: everything funnels to plan selection.
	w := s.do("GET", "/app/dashboard", token, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/app/plans", w.Header().Get("Location"))

	// Create the tenant.
	w = s.do("POST", "/v1/tenants", token, gin.H{"name": "Acme Corp", "slug": "acme-corp"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// With a tenant and no subscription row, the account-age trial applies.
	w = s.do("GET", "/app/dashboard", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Session user now carries the tenant.
	w = s.do("GET", "/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ten_")

	// Access summary reports the account-age trial.
	w = s.do("GET", "/v1/access", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var access struct {
		Access struct {
			CanUseFeatures bool `json:"canUseFeatures"`
			DaysRemaining  int  `json:"daysRemaining"`
		} `json:"access"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &access))
	assert.True(t, access.Access.CanUseFeatures)
	assert.Equal(t, 7, access.Access.DaysRemaining)

	// Buy a plan and provision within its quota.
	w = s.do("POST", "/v1/subscriptions", token, gin.H{"planKey": "starter"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do("POST", "/v1/instances", token, gin.H{"name": "Support line", "kind": "native"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Starter grants one external agent; the second hits the wall.
	// Public IP literals keep the endpoint check off DNS.
	w = s.do("POST", "/v1/agents", token, gin.H{
		"name": "Forwarder", "kind": "external", "webhookUrl": "http://93.184.216.34/wa",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do("POST", "/v1/agents", token, gin.H{
		"name": "Forwarder 2", "kind": "external", "webhookUrl": "http://93.184.216.34/wa2",
	})
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "entitlement_exceeded")
}

func TestLogoutInvalidatesSession(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s, "owner@example.com")

	w := s.do("POST", "/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do("GET", "/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/v1/access", "/v1/subscriptions", "/v1/instances", "/v1/agents"} {
		w := s.do("GET", path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "path %s", path)
	}
}
