package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/coselpro/pkg/httpx"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"COSELPRO_URL", "COSELPRO_SCHEMA", "COSELPRO_LOGIN", "COSELPRO_TOKEN_FILE",
	"COSELPRO_SAFETY_MARGIN", "COSELPRO_TIMEOUT", "COSELPRO_RETRY_MAX", "COSELPRO_CONFIG",
	"ENV", "LOG_LEVEL", "LOG_FORMAT",
	"RATELIMIT_CLIENT_REQUESTS", "RATELIMIT_CLIENT_WINDOW_SEC", "RATELIMIT_CLIENT_BURST",
}

// isolateEnv unsets every configuration variable for the duration of the test
// and moves to an empty working directory.
func isolateEnv(t *testing.T) {
	t.Helper()

	for _, key := range configKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Setenv("COSELPRO_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Chdir(t.TempDir())
}

func TestLoadConfigDefaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Empty(t, cfg.URL)
	require.Equal(t, "rest", cfg.Schema)
	require.Empty(t, cfg.TokenFile)
	require.Equal(t, 5*time.Minute, cfg.SafetyMargin)
	require.Equal(t, 30*time.Second, cfg.Timeout)
	require.Equal(t, 3, cfg.RetryMax)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, "text", cfg.LogFormat)
	require.Equal(t, httpx.DefaultClientLimit, cfg.RateLimit)
}

func TestLoadConfigFromEnv(t *testing.T) {
	isolateEnv(t)

	t.Setenv("COSELPRO_URL", "http://gw:3000")
	t.Setenv("COSELPRO_SCHEMA", "api")
	t.Setenv("COSELPRO_LOGIN", "jdoe")
	t.Setenv("COSELPRO_SAFETY_MARGIN", "2m")
	t.Setenv("COSELPRO_TIMEOUT", "45")
	t.Setenv("COSELPRO_RETRY_MAX", "not-a-number")
	t.Setenv("RATELIMIT_CLIENT_BURST", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "http://gw:3000", cfg.URL)
	require.Equal(t, "api", cfg.Schema)
	require.Equal(t, "jdoe", cfg.Login)
	require.Equal(t, 2*time.Minute, cfg.SafetyMargin)
	require.Equal(t, 45*time.Second, cfg.Timeout, "bare integers are seconds")
	require.Equal(t, 3, cfg.RetryMax, "invalid values keep the default")
	require.Equal(t, 5, cfg.RateLimit.Burst)
}

func TestLoadConfigProfile(t *testing.T) {
	isolateEnv(t)

	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
url: http://profile:3000
schema: rest
login: consult
token_file: /tmp/profile-token.json
safety_margin: 90s
timeout: 10s
`), 0o600))
	t.Setenv("COSELPRO_CONFIG", path)
	t.Setenv("COSELPRO_LOGIN", "override")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "http://profile:3000", cfg.URL)
	require.Equal(t, "override", cfg.Login, "environment wins over the profile")
	require.Equal(t, "/tmp/profile-token.json", cfg.TokenFile)
	require.Equal(t, 90*time.Second, cfg.SafetyMargin)
	require.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestLoadConfigBadProfile(t *testing.T) {
	isolateEnv(t)

	tests := map[string]string{
		"not yaml":     "url: [unterminated",
		"bad duration": "safety_margin: soon",
		"bad timeout":  "timeout: 5 parsecs",
		"wrong shape":  "- just\n- a list",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "profile.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			t.Setenv("COSELPRO_CONFIG", path)

			_, err := LoadConfig()
			require.Error(t, err)
			require.Contains(t, err.Error(), path)
		})
	}
}

func TestLoadConfigDotEnv(t *testing.T) {
	isolateEnv(t)

	require.NoError(t, os.WriteFile(".env", []byte("COSELPRO_URL=http://dotenv:3000\nLOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("COSELPRO_URL")
		_ = os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "http://dotenv:3000", cfg.URL)
	require.Equal(t, "debug", cfg.LogLevel)
}
