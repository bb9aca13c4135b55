package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/bondledger/internal/blob/s3"
	"github.com/alanyoungcy/bondledger/internal/bonding"
	"github.com/alanyoungcy/bondledger/internal/cache/local"
	"github.com/alanyoungcy/bondledger/internal/cache/redis"
	"github.com/alanyoungcy/bondledger/internal/clock"
	"github.com/alanyoungcy/bondledger/internal/config"
	"github.com/alanyoungcy/bondledger/internal/crypto"
	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/notify"
	"github.com/alanyoungcy/bondledger/internal/proof"
	"github.com/alanyoungcy/bondledger/internal/server/handler"
	"github.com/alanyoungcy/bondledger/internal/service"
	"github.com/alanyoungcy/bondledger/internal/store/memory"
	"github.com/alanyoungcy/bondledger/internal/store/postgres"
)

// localStreamMaxLen caps the in-process journal stream when Redis is off.
const localStreamMaxLen = 10_000

// Dependencies bundles every dependency the run modes need. It is constructed
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Store    domain.LedgerStore
	Journal  domain.JournalStore
	Registry domain.AssetRegistry

	// Ledger
	Clock       domain.Clock
	ManualClock *clock.Manual // set only in manual clock mode
	Ledger      *bonding.Ledger

	// Coordination
	Locks       domain.LockManager
	Bus         domain.SignalBus
	RateLimiter domain.RateLimiter

	// Blob storage
	Archiver domain.Archiver

	// Notifications
	Alerts service.Alerter

	// Health checks reported by /api/health.
	Checks map[string]handler.Check
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Checks: map[string]handler.Check{}}

	// --- Ledger storage ---
	switch cfg.Storage.Backend {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.Store = postgres.NewLedgerStore(pool)
		deps.Journal = postgres.NewJournalStore(pool)
		deps.Registry = postgres.NewAssetStore(pool)
		deps.Checks["postgres"] = pgClient.Ping
	default:
		mem := memory.New()
		deps.Store = mem
		deps.Journal = mem
		deps.Registry = mem
	}

	// --- Clock and ledger ---
	if cfg.Ledger.Clock.Mode == "manual" {
		deps.ManualClock = clock.NewManual(0, 0)
		deps.Clock = deps.ManualClock
	} else {
		deps.Clock = clock.NewSystem(cfg.Ledger.Clock.Genesis, cfg.Ledger.Clock.SlotDuration.Duration)
	}
	deps.Ledger = bonding.New(proof.NewVerifier(deps.Registry), deps.Clock, bonding.Policy{
		Forfeit: cfg.Ledger.ForfeitPolicy,
		Score:   cfg.Ledger.ScoreSource,
	})

	// --- Redis, or the in-process bus ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Locks = redis.NewLockManager(redisClient)
		deps.Bus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	} else {
		logger.WarnContext(ctx, "redis disabled: events and vault locks stay in process")
		deps.Locks = local.NewLocks()
		deps.Bus = local.NewBus(localStreamMaxLen)
	}

	// --- S3 journal archive ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewJournalArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			deps.Journal,
			cfg.Archive.Prefix,
			cfg.Archive.BatchLimit,
		)
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramAPIURL,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Alerts = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}

// LedgerService builds the operation service over deps.
func (d *Dependencies) LedgerService(cfg *config.Config, logger *slog.Logger) *service.LedgerService {
	return service.NewLedgerService(service.LedgerDeps{
		Store:    d.Store,
		Journal:  d.Journal,
		Registry: d.Registry,
		Ledger:   d.Ledger,
		Locks:    d.Locks,
		Bus:      d.Bus,
		Alerts:   d.Alerts,
		Owners:   crypto.NewOwnerVerifier(int64(cfg.Ledger.ChainID)),
		LockTTL:  cfg.Ledger.LockTTL.Duration,
		LockWait: cfg.Ledger.LockWait.Duration,
	}, logger)
}
