package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

// isolate points CONFIG_FILE at a path that does not exist so a stray
// config.yaml in the package directory cannot leak in.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
}

func TestDefaultNeedsDatabaseURL(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/exchange")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, "Asia/Kolkata", cfg.App.Location.String())
	assert.Equal(t, timeutil.NewClock(9, 30), cfg.Matching.Open)
	assert.Equal(t, timeutil.NewClock(18, 30), cfg.Matching.Close)
	assert.Len(t, cfg.Matching.Windows, 3)
	assert.Equal(t, 10, cfg.Matching.MaxExchanges)
	assert.Equal(t, "0 8 * * 1-5", cfg.Scheduler.Cron)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("MATCHING_STORE_BACKEND", "memory")
	t.Setenv("MATCHING_LOCK_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("PORT", "9090")
	t.Setenv("MATCHING_OPEN", "08:00")
	t.Setenv("MATCHING_MAX_EXCHANGES", "4")
	t.Setenv("SCHEDULER_ENABLED", "true")
	t.Setenv("SCHEDULER_JOB_TIMEOUT", "2m")
	t.Setenv("API_KEY_HASHES", "h1,h2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Matching.StoreBackend)
	assert.Equal(t, BackendRedis, cfg.Matching.LockBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, timeutil.NewClock(8, 0), cfg.Matching.Open)
	assert.Equal(t, 4, cfg.Matching.AllocatorOptions().MaxExchanges)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.JobTimeout)
	assert.Equal(t, []string{"h1", "h2"}, cfg.HTTP.APIKeyHashes)
}

func TestYAMLFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  name: bookx
  log_level: debug
matching:
  store_backend: memory
  lock_backend: memory
  open: "10:00"
  close: "17:00"
  max_exchanges: 6
  windows:
    - period: morning
      start: "10:00"
      end: "13:00"
    - period: afternoon
      start: "14:00"
      end: "17:00"
scheduler:
  cron: "30 9 * * 1-5"
  job_timeout: 3m
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bookx", cfg.App.Name)
	assert.Equal(t, "warn", cfg.App.LogLevel)
	assert.Equal(t, 6, cfg.Matching.MaxExchanges)
	require.Len(t, cfg.Matching.Windows, 2)
	assert.Equal(t, timeutil.NewClock(14, 0), cfg.Matching.Windows[1].Start)
	assert.Equal(t, timeutil.NewClock(17, 0), cfg.Matching.DatePolicy().Close)
	assert.Equal(t, "30 9 * * 1-5", cfg.Scheduler.Cron)
	assert.Equal(t, 3*time.Minute, cfg.Scheduler.JobTimeout)
}

func TestBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app: [unterminated"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.ErrorContains(t, err, "parse config file")
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.App.Environment = EnvProduction
	cfg.App.LogLevel = "loud"
	cfg.Matching.StoreBackend = BackendMemory
	cfg.Matching.LockBackend = BackendPostgres
	cfg.Matching.Close = cfg.Matching.Open
	cfg.Database.MinConns = 20

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "configuration errors:")
	assert.Contains(t, msg, "log_level")
	assert.Contains(t, msg, "memory store is not allowed in production")
	assert.Contains(t, msg, "postgres lock requires the postgres store")
	assert.Contains(t, msg, "matching.close must be after matching.open")
	assert.Contains(t, msg, "min_conns exceeds")
}

func TestValidateWindowsInsideHours(t *testing.T) {
	cfg := Default()
	cfg.Database.URL = "postgres://localhost/exchange"
	cfg.Matching.Open = timeutil.NewClock(10, 0)

	err := cfg.Validate()
	assert.ErrorContains(t, err, "inside the open/close range")
}

func TestValidateRedisLockNeedsURL(t *testing.T) {
	cfg := Default()
	cfg.Database.URL = "postgres://localhost/exchange"
	cfg.Matching.LockBackend = BackendRedis

	assert.ErrorContains(t, cfg.Validate(), "REDIS_URL is required")
}

func TestValidateUnknownTimezone(t *testing.T) {
	cfg := Default()
	cfg.Database.URL = "postgres://localhost/exchange"
	cfg.App.Timezone = "Mars/Olympus"

	assert.ErrorContains(t, cfg.Validate(), "app.timezone")
}

func TestValidateLockOutlivesRuns(t *testing.T) {
	cfg := Default()
	cfg.Database.URL = "postgres://localhost/exchange"
	require.NoError(t, cfg.Validate())
	assert.Greater(t, cfg.Matching.LockTTL, cfg.Scheduler.JobTimeout)
	assert.Greater(t, cfg.Matching.LockTTL, cfg.HTTP.RunTimeout)

	cfg.Matching.LockTTL = 5 * time.Minute
	cfg.Scheduler.JobTimeout = 5 * time.Minute
	assert.ErrorContains(t, cfg.Validate(), "lock_ttl must exceed scheduler.job_timeout")

	cfg.Scheduler.JobTimeout = time.Minute
	cfg.HTTP.RunTimeout = 10 * time.Minute
	err := cfg.Validate()
	assert.ErrorContains(t, err, "lock_ttl must exceed http.run_timeout")
	assert.NotContains(t, err.Error(), "scheduler.job_timeout")
}
