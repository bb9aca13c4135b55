package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BONDLEDGER_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	// Load .env file if present (silently ignore if missing).
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides reads well-known BONDLEDGER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) error {
	setStr(&cfg.Storage.Backend, "BONDLEDGER_STORAGE_BACKEND")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BONDLEDGER_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "BONDLEDGER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BONDLEDGER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BONDLEDGER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BONDLEDGER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BONDLEDGER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BONDLEDGER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BONDLEDGER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BONDLEDGER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BONDLEDGER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BONDLEDGER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BONDLEDGER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BONDLEDGER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BONDLEDGER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BONDLEDGER_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "BONDLEDGER_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "BONDLEDGER_REDIS_KEY_PREFIX")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BONDLEDGER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BONDLEDGER_S3_REGION")
	setStr(&cfg.S3.Bucket, "BONDLEDGER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BONDLEDGER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BONDLEDGER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BONDLEDGER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BONDLEDGER_S3_FORCE_PATH_STYLE")

	// ── Ledger ──
	if v := os.Getenv("BONDLEDGER_LEDGER_FORFEIT_POLICY"); v != "" {
		p, ok := domain.ParseForfeitPolicy(v)
		if !ok {
			return fmt.Errorf("config: BONDLEDGER_LEDGER_FORFEIT_POLICY %q", v)
		}
		cfg.Ledger.ForfeitPolicy = p
	}
	if v := os.Getenv("BONDLEDGER_LEDGER_SCORE_SOURCE"); v != "" {
		s, ok := domain.ParseScoreSource(v)
		if !ok {
			return fmt.Errorf("config: BONDLEDGER_LEDGER_SCORE_SOURCE %q", v)
		}
		cfg.Ledger.ScoreSource = s
	}
	setDuration(&cfg.Ledger.LockTTL, "BONDLEDGER_LEDGER_LOCK_TTL")
	setDuration(&cfg.Ledger.LockWait, "BONDLEDGER_LEDGER_LOCK_WAIT")
	setInt(&cfg.Ledger.ChainID, "BONDLEDGER_LEDGER_CHAIN_ID")
	setStr(&cfg.Ledger.Clock.Mode, "BONDLEDGER_LEDGER_CLOCK_MODE")
	setDuration(&cfg.Ledger.Clock.SlotDuration, "BONDLEDGER_LEDGER_CLOCK_SLOT_DURATION")
	if v := os.Getenv("BONDLEDGER_LEDGER_CLOCK_GENESIS"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("config: BONDLEDGER_LEDGER_CLOCK_GENESIS: %w", err)
		}
		cfg.Ledger.Clock.Genesis = t
	}

	// ── Monitor / Archive ──
	setBool(&cfg.Monitor.Enabled, "BONDLEDGER_MONITOR_ENABLED")
	setStringSlice(&cfg.Monitor.Vaults, "BONDLEDGER_MONITOR_VAULTS")
	setUint64(&cfg.Monitor.LowWater, "BONDLEDGER_MONITOR_LOW_WATER")
	setDuration(&cfg.Monitor.PollInterval, "BONDLEDGER_MONITOR_POLL_INTERVAL")
	setBool(&cfg.Archive.Enabled, "BONDLEDGER_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "BONDLEDGER_ARCHIVE_INTERVAL")
	setDuration(&cfg.Archive.Retention, "BONDLEDGER_ARCHIVE_RETENTION")
	setStr(&cfg.Archive.Prefix, "BONDLEDGER_ARCHIVE_PREFIX")

	// ── Server ──
	setInt(&cfg.Server.Port, "BONDLEDGER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BONDLEDGER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BONDLEDGER_SERVER_API_KEY")
	setStr(&cfg.Server.AdminSecret, "BONDLEDGER_SERVER_ADMIN_SECRET")
	setInt(&cfg.Server.RateLimit, "BONDLEDGER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "BONDLEDGER_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BONDLEDGER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BONDLEDGER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BONDLEDGER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BONDLEDGER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BONDLEDGER_MODE")
	setStr(&cfg.LogLevel, "BONDLEDGER_LOG_LEVEL")
	return nil
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
