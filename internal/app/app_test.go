package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondledger/internal/config"
	"github.com/alanyoungcy/bondledger/internal/domain"
)

func TestWireMemoryManual(t *testing.T) {
	cfg := config.Defaults()
	cfg.Ledger.Clock.Mode = "manual"
	cfg.Ledger.ForfeitPolicy = domain.ForfeitReturn
	require.NoError(t, cfg.Validate())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps, cleanup, err := Wire(context.Background(), &cfg, logger)
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, deps.ManualClock)
	assert.NotNil(t, deps.Locks)
	assert.Nil(t, deps.RateLimiter)
	assert.Nil(t, deps.Archiver)
	assert.Nil(t, deps.Alerts)
	assert.Empty(t, deps.Checks)
	assert.Equal(t, domain.ForfeitReturn, deps.Ledger.Policy().Forfeit)

	svc := deps.LedgerService(&cfg, logger)
	_, err = svc.Credit(context.Background(), "alice", 100)
	require.NoError(t, err)
	bal, err := svc.Balance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal)
}

func TestWireNotifier(t *testing.T) {
	cfg := config.Defaults()
	cfg.Notify.DiscordWebhookURL = "http://127.0.0.1:1/hook"

	deps, cleanup, err := Wire(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, deps.Alerts)
	assert.Nil(t, deps.ManualClock)
}

func TestWorkerModeIdlesUntilCancelled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Monitor.Enabled = false
	a := New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	deps, cleanup, err := Wire(context.Background(), &cfg, a.logger)
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.WorkerMode(ctx, deps))
}
