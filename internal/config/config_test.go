package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, Default(), cfg)
	assert.FileExists(t, path)

	again, _, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
addr: ":9000"
history_limit: 10
default_channels: [Lobby, Ops]
moderation:
  url: http://moderation:8000
  timeout: 1500ms
  failure_policy: fail_closed
store:
  driver: sqlite
  dsn: /tmp/chat.db
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("MODCHAT_ADDR", ":9100")
	t.Setenv("MODCHAT_MODERATION_FAILURE_POLICY", "fail_flag")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, 10, cfg.HistoryLimit)
	assert.Equal(t, []string{"Lobby", "Ops"}, cfg.DefaultChannels)
	assert.Equal(t, "http://moderation:8000", cfg.Moderation.URL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Moderation.Timeout)
	assert.Equal(t, "fail_flag", cfg.Moderation.FailurePolicy)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/chat.db", cfg.Store.DSN)
	assert.Equal(t, Default().RateLimitPerMinute, cfg.RateLimitPerMinute)
	require.NoError(t, cfg.Validate())
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: [unterminated"), 0o600))

	_, _, err := Load(nil, path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	cases := map[string]func(*Config){
		"zero timeout":       func(c *Config) { c.Moderation.Timeout = 0 },
		"unknown policy":     func(c *Config) { c.Moderation.FailurePolicy = "fail_maybe" },
		"unknown driver":     func(c *Config) { c.Store.Driver = "mongo" },
		"missing dsn":        func(c *Config) { c.Store.Driver = DriverPostgres },
		"no channels":        func(c *Config) { c.DefaultChannels = nil },
		"required no secret": func(c *Config) { c.JWTRequired = true },
		"negative limit":     func(c *Config) { c.HistoryLimit = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
