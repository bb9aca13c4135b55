// Package config defines the bondledger configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BONDLEDGER_* environment variables.
type Config struct {
	Storage  StorageConfig  `toml:"storage"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// StorageConfig selects where ledger state lives.
type StorageConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `toml:"backend"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Without Redis the process
// uses an in-memory event bus and takes no cross-process locks.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// LedgerConfig holds the reward policies and the clock the ledger runs on.
type LedgerConfig struct {
	ForfeitPolicy domain.ForfeitPolicy `toml:"forfeit_policy"`
	ScoreSource   domain.ScoreSource   `toml:"score_source"`

	// LockTTL bounds how long one operation may hold its vault lock.
	LockTTL duration `toml:"lock_ttl"`

	// LockWait bounds how long an operation queues behind another holder of
	// its vault lock before failing with 423.
	LockWait duration `toml:"lock_wait"`

	// ChainID is the EIP-712 domain chain id staker signatures are bound to.
	ChainID int `toml:"chain_id"`

	Clock ClockConfig `toml:"clock"`
}

// ClockConfig selects the clock. "system" derives ticks from wall time since
// Genesis in SlotDuration steps; "manual" starts at zero and only moves
// through the admin API.
type ClockConfig struct {
	Mode         string    `toml:"mode"`
	Genesis      time.Time `toml:"genesis"`
	SlotDuration duration  `toml:"slot_duration"`
}

// MonitorConfig configures the reserve monitor worker.
type MonitorConfig struct {
	Enabled      bool     `toml:"enabled"`
	Vaults       []string `toml:"vaults"`
	LowWater     uint64   `toml:"low_water"`
	PollInterval duration `toml:"poll_interval"`
}

// ArchiveConfig configures journal archiving to S3.
type ArchiveConfig struct {
	Enabled    bool     `toml:"enabled"`
	Interval   duration `toml:"interval"`
	Retention  duration `toml:"retention"`
	Prefix     string   `toml:"prefix"`
	BatchLimit int      `toml:"batch_limit"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port int `toml:"port"`

	// CORSOrigins lists the browser origins allowed to call the API. "*"
	// admits any origin.
	CORSOrigins []string `toml:"cors_origins"`

	APIKey string `toml:"api_key"`

	// AdminSecret keys the HMAC on /api/admin requests. Empty closes them.
	AdminSecret  string   `toml:"admin_secret"`
	AdminMaxSkew duration `toml:"admin_max_skew"`

	// RateLimit is requests per RateWindow per caller. Needs Redis.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramAPIURL    string   `toml:"telegram_api_url"`
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration to support TOML string decoding (e.g. "5m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so TOML strings like
// "30s" or "5m" are parsed into a time.Duration.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Storage: StorageConfig{Backend: "memory"},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "bondledger",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "bondledger:",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "bondledger-journal",
			ForcePathStyle: true,
		},
		Ledger: LedgerConfig{
			ForfeitPolicy: domain.ForfeitBurn,
			ScoreSource:   domain.ScoreLedger,
			LockTTL:       duration{10 * time.Second},
			LockWait:      duration{5 * time.Second},
			ChainID:       1,
			Clock: ClockConfig{
				Mode:         "system",
				Genesis:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				SlotDuration: duration{400 * time.Millisecond},
			},
		},
		Monitor: MonitorConfig{
			Enabled:      true,
			PollInterval: duration{time.Minute},
		},
		Archive: ArchiveConfig{
			Interval:   duration{24 * time.Hour},
			Retention:  duration{90 * 24 * time.Hour},
			Prefix:     "bondledger",
			BatchLimit: 50_000,
		},
		Server: ServerConfig{
			Port:         8000,
			CORSOrigins:  []string{"http://localhost:3000"},
			AdminMaxSkew: duration{5 * time.Minute},
			RateWindow:   duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"reserve_low", "penalty_collected"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"worker": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, worker, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	switch c.Storage.Backend {
	case "memory":
		if strings.ToLower(c.Mode) == "worker" {
			errs = append(errs, "storage: worker mode needs a shared backend, memory state is per process")
		}
	case "postgres":
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be within 0..pool_max_conns")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage: unknown backend %q (valid: memory, postgres)", c.Storage.Backend))
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Ledger.LockTTL.Duration <= 0 {
		errs = append(errs, "ledger: lock_ttl must be > 0")
	}
	if c.Ledger.LockWait.Duration <= 0 {
		errs = append(errs, "ledger: lock_wait must be > 0")
	}
	if c.Ledger.ChainID <= 0 {
		errs = append(errs, "ledger: chain_id must be > 0")
	}
	switch c.Ledger.Clock.Mode {
	case "system":
		if c.Ledger.Clock.SlotDuration.Duration <= 0 {
			errs = append(errs, "ledger.clock: slot_duration must be > 0")
		}
		if c.Ledger.Clock.Genesis.IsZero() {
			errs = append(errs, "ledger.clock: genesis must be set")
		}
	case "manual":
	default:
		errs = append(errs, fmt.Sprintf("ledger.clock: unknown mode %q (valid: system, manual)", c.Ledger.Clock.Mode))
	}

	if c.Monitor.Enabled && c.Monitor.PollInterval.Duration <= 0 {
		errs = append(errs, "monitor: poll_interval must be > 0")
	}

	if c.Archive.Enabled {
		if c.S3.Bucket == "" || c.S3.Region == "" {
			errs = append(errs, "archive: s3.bucket and s3.region must be set")
		}
		if c.Archive.Interval.Duration <= 0 || c.Archive.Retention.Duration <= 0 {
			errs = append(errs, "archive: interval and retention must be > 0")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit > 0 {
		if !c.Redis.Enabled {
			errs = append(errs, "server: rate_limit requires redis")
		}
		if c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0")
		}
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
