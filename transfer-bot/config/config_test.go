package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Transfer.PollInterval)
	assert.Equal(t, 200, cfg.Transfer.JobTarget)
	assert.Equal(t, 40, cfg.Transfer.PerAccount)
	assert.Equal(t, 3000, cfg.Transfer.FetchLimit)
	assert.Equal(t, 45*time.Second, cfg.Transfer.MinDelay)
	assert.Equal(t, 100*time.Second, cfg.Transfer.MaxDelay)
	assert.Equal(t, 20*time.Second, cfg.Transfer.FloodMargin)
	assert.Equal(t, 6*time.Hour, cfg.Health.Interval)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(".", AccountsFile), cfg.Storage.Path(AccountsFile))
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bot:
  token: "from-yaml"
  adminUserId: 99
transfer:
  jobTarget: 50
  minDelay: 1s
  maxDelay: 2s
ledger:
  backend: redis
  redisUrl: redis://localhost:6379/0
`), 0o644))

	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("TRANSFER_PER_ACCOUNT", "7")
	t.Setenv("ADMIN_USER_ID", "123")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Bot.Token)
	assert.Equal(t, int64(123), cfg.Bot.AdminID)
	assert.Equal(t, 50, cfg.Transfer.JobTarget)
	assert.Equal(t, 7, cfg.Transfer.PerAccount)
	assert.Equal(t, time.Second, cfg.Transfer.MinDelay)
	assert.Equal(t, BackendRedis, cfg.Ledger.Backend)
	require.NoError(t, cfg.ValidateBot())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidation(t *testing.T) {
	t.Chdir(t.TempDir())

	for name, tc := range map[string]struct {
		env   map[string]string
		field string
	}{
		"unknown storage": {env: map[string]string{"STORAGE_BACKEND": "mongo"}, field: "STORAGE_BACKEND"},
		"postgres dsn":    {env: map[string]string{"STORAGE_BACKEND": "postgres"}, field: "STORAGE_DSN"},
		"redis url":       {env: map[string]string{"LEDGER_BACKEND": "redis"}, field: "LEDGER_REDIS_URL"},
		"delay order":     {env: map[string]string{"TRANSFER_MIN_DELAY": "2m", "TRANSFER_MAX_DELAY": "1m"}, field: "TRANSFER_MAX_DELAY"},
		"zero cap":        {env: map[string]string{"TRANSFER_PER_ACCOUNT": "0"}, field: "TRANSFER_PER_ACCOUNT"},
		"webhook secret":  {env: map[string]string{"WEBHOOK_URL": "https://example.org/hook"}, field: "WEBHOOK_SECRET"},
	} {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			var cfgErr ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestValidateBot(t *testing.T) {
	cfg := Default()
	var cfgErr ConfigError
	require.ErrorAs(t, cfg.ValidateBot(), &cfgErr)
	assert.Equal(t, "BOT_TOKEN", cfgErr.Field)
}

func TestContext(t *testing.T) {
	cfg := Default()
	assert.Same(t, cfg, FromContext(WithContext(context.Background(), cfg)))
	assert.Nil(t, FromContext(context.Background()))
}
