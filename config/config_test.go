package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-authflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Log.Env)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "authflow:hub", cfg.Hub.Prefix)
	assert.Equal(t, "authflow", cfg.Metrics.Namespace)
	assert.Equal(t, time.Hour, cfg.Memory.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.Memory.CodeTTL)
	assert.Equal(t, authflow.RouteNone, cfg.InitialRoute())
	assert.False(t, cfg.OIDCEnabled())

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory")
}

func TestParseEnvironment(t *testing.T) {
	t.Setenv("AUTHFLOW_LOG_ENV", " PROD ")
	t.Setenv("AUTHFLOW_FLOW_INITIAL_ROUTE", "signUp")
	t.Setenv("AUTHFLOW_MEMORY_SIGNING_KEY", testKey)
	t.Setenv("AUTHFLOW_MEMORY_SESSION_TTL", "15m")
	t.Setenv("AUTHFLOW_MEMORY_AUTO_VERIFY", "true")
	t.Setenv("AUTHFLOW_HUB_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("AUTHFLOW_OIDC_SCOPES", "openid,email")

	cfg, err := Parse()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "prod", cfg.Log.Env)
	assert.Equal(t, authflow.RouteSignUp, cfg.InitialRoute())
	assert.Equal(t, []string{"openid", "email"}, cfg.OIDC.Scopes)

	mem := cfg.MemoryProviderConfig()
	assert.Equal(t, []byte(testKey), mem.SigningKey)
	assert.Equal(t, 15*time.Minute, mem.SessionTTL)
	assert.True(t, mem.AutoVerify)
	assert.Equal(t, "authflow-memory", mem.Issuer)

	lc := cfg.LoggerConfig()
	assert.Equal(t, "prod", lc.Env)
	assert.Equal(t, "authflow", lc.Service)
}

func TestValidateInitialRoute(t *testing.T) {
	cases := map[string]bool{
		"":               true,
		"signIn":         true,
		"forgotPassword": true,
		"authenticated":  false,
		"nowhere":        false,
	}
	for route, ok := range cases {
		t.Run(route, func(t *testing.T) {
			err := FlowConfig{InitialRoute: route}.Validate()
			if ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateHubRedisURL(t *testing.T) {
	cases := map[string]bool{
		"":                              true,
		"redis://localhost:6379/0":      true,
		"rediss://user:pw@cache:6380/2": true,
		"http://localhost:6379":         false,
		"localhost:6379":                false,
	}
	for url, ok := range cases {
		t.Run(url, func(t *testing.T) {
			err := HubConfig{RedisURL: url, Prefix: "authflow:hub"}.Validate()
			if ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateOIDC(t *testing.T) {
	cfg := Config{
		Log:    LogConfig{Env: "dev", Level: "info"},
		Hub:    HubConfig{Prefix: "p"},
		Memory: MemoryConfig{SigningKey: testKey},
		OIDC: OIDCConfig{
			Provider: "Google",
			Issuer:   "https://accounts.example.com",
			ClientID: "client",
		},
	}
	require.True(t, cfg.OIDCEnabled())

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oidc")

	cfg.OIDC.RedirectURL = "http://localhost:8080/auth/social/google/callback"
	cfg.OIDC.StateKey = "short"
	cfg.OIDC.StateHMACKey = testKey
	require.Error(t, cfg.Validate())

	cfg.OIDC.StateKey = testKey[:16]
	require.NoError(t, cfg.Validate())

	pc := cfg.ProviderConfig()
	assert.Equal(t, "Google", pc.Name)
	assert.Equal(t, "client", pc.ClientID)
	assert.NotNil(t, cfg.StateManager())
	assert.False(t, cfg.LinkPolicy().AllowSignUp)

	cfg.OIDC.AllowSignUp = true
	assert.True(t, cfg.LinkPolicy().AllowSignUp)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := strings.Join([]string{
		"AUTHFLOW_MEMORY_SIGNING_KEY=" + testKey,
		"AUTHFLOW_METRICS_NAMESPACE=fromfile",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// variables already present win over the file
	t.Setenv("AUTHFLOW_METRICS_NAMESPACE", "fromenv")
	t.Setenv("AUTHFLOW_MEMORY_SIGNING_KEY", "")
	require.NoError(t, os.Unsetenv("AUTHFLOW_MEMORY_SIGNING_KEY"))

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.Metrics.Namespace)
	assert.Equal(t, testKey, cfg.Memory.SigningKey)
	require.NoError(t, cfg.Validate())
}
