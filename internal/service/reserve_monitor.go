package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/bondledger/internal/bonding"
	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/notify"
)

// MonitorConfig configures a ReserveMonitor.
type MonitorConfig struct {
	Vaults       []string
	// LowWater is the reserve below which an alert is raised.
	LowWater     uint64
	PollInterval time.Duration

	// ArchiveEvery is how often journal rows older than Retention are moved
	// to cold storage. Zero disables archiving.
	ArchiveEvery time.Duration
	Retention    time.Duration
}

// ReserveMonitor watches reward reserves and archives the journal. It only
// reads ledger state; projections are computed on copies.
type ReserveMonitor struct {
	store    domain.LedgerStore
	ledger   *bonding.Ledger
	bus      domain.SignalBus
	alerts   Alerter
	archiver domain.Archiver
	cfg      MonitorConfig
	logger   *slog.Logger

	mu          sync.Mutex
	low         map[string]bool
	lastArchive time.Time
	now         func() time.Time
}

// NewReserveMonitor creates a ReserveMonitor. bus, alerts and archiver may be
// nil.
func NewReserveMonitor(
	store domain.LedgerStore,
	ledger *bonding.Ledger,
	bus domain.SignalBus,
	alerts Alerter,
	archiver domain.Archiver,
	cfg MonitorConfig,
	logger *slog.Logger,
) *ReserveMonitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	return &ReserveMonitor{
		store:    store,
		ledger:   ledger,
		bus:      bus,
		alerts:   alerts,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "reserve_monitor")),
		low:      make(map[string]bool),
		now:      time.Now,
	}
}

// Run checks reserves every poll interval until ctx is cancelled.
func (m *ReserveMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.CheckReserves(ctx)
			if err := m.MaybeArchive(ctx); err != nil {
				m.logger.ErrorContext(ctx, "journal archive failed", slog.String("error", err.Error()))
			}
		}
	}
}

// ReserveStatus is one vault's projected reserve.
type ReserveStatus struct {
	Vault   string `json:"vault"`
	Reserve uint64 `json:"reserve"`
	Low     bool   `json:"low"`
}

// CheckReserves projects every watched pool to now and alerts on vaults
// whose reserve has newly dropped below the low-water mark. A vault alerts
// again only after recovering above it.
func (m *ReserveMonitor) CheckReserves(ctx context.Context) []ReserveStatus {
	var out []ReserveStatus
	for _, vault := range m.cfg.Vaults {
		pool, err := m.project(ctx, vault)
		if err != nil {
			m.logger.WarnContext(ctx, "reserve projection failed",
				slog.String("vault", vault),
				slog.String("error", err.Error()),
			)
			continue
		}
		st := ReserveStatus{
			Vault:   vault,
			Reserve: pool.Reserve,
			Low:     pool.State == domain.StateActive && pool.Reserve < m.cfg.LowWater,
		}
		out = append(out, st)

		m.mu.Lock()
		wasLow := m.low[vault]
		m.low[vault] = st.Low
		m.mu.Unlock()
		if st.Low && !wasLow {
			m.raise(ctx, pool)
		}
	}
	return out
}

func (m *ReserveMonitor) project(ctx context.Context, vault string) (domain.RewardPool, error) {
	var pool domain.RewardPool
	err := m.store.View(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		txn, err := m.ledger.Begin(ctx, tx, bonding.Scope{Vault: vault})
		if err != nil {
			return err
		}
		pool, err = txn.ProjectPool()
		return err
	})
	return pool, err
}

func (m *ReserveMonitor) raise(ctx context.Context, pool domain.RewardPool) {
	m.logger.WarnContext(ctx, "reward reserve low",
		slog.String("vault", pool.Vault),
		slog.Uint64("reserve", pool.Reserve),
		slog.Uint64("low_water", m.cfg.LowWater),
	)
	if m.bus != nil {
		payload, _ := json.Marshal(domain.LedgerEvent{
			Op:        domain.OpReserveLow,
			Vault:     pool.Vault,
			Amount:    pool.Reserve,
			Timestamp: m.now().UTC(),
		})
		if err := m.bus.Publish(ctx, domain.ChannelLedgerEvents, payload); err != nil {
			m.logger.WarnContext(ctx, "publish reserve alert failed", slog.String("error", err.Error()))
		}
	}
	if m.alerts != nil {
		a := notify.ReserveLow(pool.Vault, pool.Reserve, m.cfg.LowWater, pool.RatePerTick)
		if err := m.alerts.Notify(ctx, a); err != nil {
			m.logger.WarnContext(ctx, "reserve alert failed", slog.String("error", err.Error()))
		}
	}
}

// MaybeArchive archives the journal when ArchiveEvery has passed since the
// last run.
func (m *ReserveMonitor) MaybeArchive(ctx context.Context) error {
	if m.archiver == nil || m.cfg.ArchiveEvery <= 0 {
		return nil
	}
	now := m.now()
	m.mu.Lock()
	due := now.Sub(m.lastArchive) >= m.cfg.ArchiveEvery
	if due {
		m.lastArchive = now
	}
	m.mu.Unlock()
	if !due {
		return nil
	}

	cutoff := now.Add(-m.cfg.Retention).UTC()
	n, err := m.archiver.ArchiveJournal(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("service: archive journal before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		m.logger.InfoContext(ctx, "journal archived",
			slog.Int64("rows", n),
			slog.Time("before", cutoff),
		)
	}
	return nil
}
