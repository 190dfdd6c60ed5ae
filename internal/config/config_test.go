package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_WithValidConfig(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "TRIAL_DAYS", "14")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 14, cfg.TrialDays)
	assert.Equal(t, DefaultLoginPath, cfg.LoginPath)
	assert.Equal(t, DefaultPlanSelectionPath, cfg.PlanSelectionPath)
	assert.Equal(t, DefaultQRPrefix, cfg.QRPrefix)
}

func TestLoad_InvalidTrialDays(t *testing.T) {
	setEnv(t, "TRIAL_DAYS", "0")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "TRIAL_DAYS")
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		Env:               "development",
		LoginPath:         "/login",
		PlanSelectionPath: "/app/plans",
		TrialDays:         7,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "relative login path",
			mutate:  func(c *Config) { c.LoginPath = "login" },
			wantErr: "LOGIN_PATH",
		},
		{
			name:    "empty plan selection path",
			mutate:  func(c *Config) { c.PlanSelectionPath = "" },
			wantErr: "PLAN_SELECTION_PATH",
		},
		{
			name:    "zero trial days",
			mutate:  func(c *Config) { c.TrialDays = 0 },
			wantErr: "TRIAL_DAYS",
		},
		{
			name:    "production without admin secret",
			mutate:  func(c *Config) { c.Env = "production" },
			wantErr: "ADMIN_SECRET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestLoad_CORSAllowedOrigins(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)

	setEnv(t, "CORS_ALLOWED_ORIGINS", "https://panel.example.com, https://admin.example.com")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://panel.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
}

func TestGetEnvList(t *testing.T) {
	setEnv(t, "TEST_LIST", "a, b ,,c")
	assert.Equal(t, []string{"a", "b", "c"}, getEnvList("TEST_LIST", nil))
	assert.Equal(t, []string{"*"}, getEnvList("NONEXISTENT_VAR", []string{"*"}))

	setEnv(t, "TEST_LIST_BLANK", " , ")
	assert.Equal(t, []string{"*"}, getEnvList("TEST_LIST_BLANK", []string{"*"}))
}

func TestGetEnvInt64(t *testing.T) {
	setEnv(t, "TEST_INT", "42")
	setEnv(t, "TEST_INVALID", "not_a_number")

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99)) // Falls back on parse error
}
