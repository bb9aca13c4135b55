package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bondledger.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeFile(t, `
mode = "server"

[storage]
backend = "postgres"

[postgres]
dsn = "postgres://u:p@db:5432/ledger"

[ledger]
forfeit_policy = "return"
score_source = "bond"
lock_ttl = "3s"
lock_wait = "2s"
chain_id = 137

[ledger.clock]
mode = "manual"

[monitor]
vaults = ["v1", "v2"]
low_water = 5000
poll_interval = "30s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, domain.ForfeitReturn, cfg.Ledger.ForfeitPolicy)
	assert.Equal(t, domain.ScoreBond, cfg.Ledger.ScoreSource)
	assert.Equal(t, 3*time.Second, cfg.Ledger.LockTTL.Duration)
	assert.Equal(t, 2*time.Second, cfg.Ledger.LockWait.Duration)
	assert.Equal(t, 137, cfg.Ledger.ChainID)
	assert.Equal(t, "manual", cfg.Ledger.Clock.Mode)
	assert.Equal(t, []string{"v1", "v2"}, cfg.Monitor.Vaults)
	assert.Equal(t, uint64(5000), cfg.Monitor.LowWater)
	// Untouched sections keep their defaults.
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 400*time.Millisecond, cfg.Ledger.Clock.SlotDuration.Duration)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeFile(t, "[ledger]\nforfeit = \"burn\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger.forfeit")

	_, err = Load(writeFile(t, "[ledger]\nforfeit_policy = \"shred\"\n"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BONDLEDGER_SERVER_PORT", "9100")
	t.Setenv("BONDLEDGER_SERVER_ADMIN_SECRET", "s3cret")
	t.Setenv("BONDLEDGER_MONITOR_VAULTS", "a, b ,,c")
	t.Setenv("BONDLEDGER_LEDGER_FORFEIT_POLICY", "return")
	t.Setenv("BONDLEDGER_LEDGER_CLOCK_GENESIS", "2026-03-01T00:00:00Z")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Server.AdminSecret)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Monitor.Vaults)
	assert.Equal(t, domain.ForfeitReturn, cfg.Ledger.ForfeitPolicy)
	assert.Equal(t, time.March, cfg.Ledger.Clock.Genesis.Month())

	t.Setenv("BONDLEDGER_LEDGER_SCORE_SOURCE", "vibes")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "worker"
	cfg.LogLevel = "loud"
	cfg.Ledger.Clock.Mode = "sundial"
	cfg.Server.RateLimit = 10
	cfg.Notify.TelegramToken = "tok"
	cfg.Ledger.ChainID = 0

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"worker mode needs a shared backend",
		`unknown log_level "loud"`,
		`unknown mode "sundial"`,
		"rate_limit requires redis",
		"telegram_token and telegram_chat_id",
		"chain_id must be > 0",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pw"
	cfg.Server.AdminSecret = "admin"
	cfg.Monitor.Vaults = []string{"v1"}

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Server.AdminSecret)
	assert.Empty(t, out.Server.APIKey)

	out.Monitor.Vaults[0] = "changed"
	assert.Equal(t, "v1", cfg.Monitor.Vaults[0])
	assert.Equal(t, "pw", cfg.Postgres.Password)
}
