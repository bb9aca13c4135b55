package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/bondledger/internal/crypto"
	"github.com/alanyoungcy/bondledger/internal/server"
	"github.com/alanyoungcy/bondledger/internal/server/handler"
	"github.com/alanyoungcy/bondledger/internal/server/ws"
	"github.com/alanyoungcy/bondledger/internal/service"
)

// ServerMode serves the HTTP API and the event stream.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering server mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return ignoreCanceled(g.Wait())
}

// WorkerMode runs the reserve monitor and journal archiver only.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering worker mode")
	g, ctx := errgroup.WithContext(ctx)
	if !a.startMonitor(ctx, g, deps) {
		a.logger.WarnContext(ctx, "worker mode with monitor and archive disabled, idling")
		g.Go(func() error {
			<-ctx.Done()
			return ctx.Err()
		})
	}
	return ignoreCanceled(g.Wait())
}

// FullMode runs the server and the worker in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering full mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	a.startMonitor(ctx, g, deps)
	return ignoreCanceled(g.Wait())
}

// startMonitor adds the reserve monitor goroutine when either the monitor or
// the archive is enabled and reports whether it did.
func (a *App) startMonitor(ctx context.Context, g *errgroup.Group, deps *Dependencies) bool {
	mc, ac := a.cfg.Monitor, a.cfg.Archive
	if !mc.Enabled && !ac.Enabled {
		return false
	}

	cfg := service.MonitorConfig{PollInterval: mc.PollInterval.Duration}
	if mc.Enabled {
		cfg.Vaults = mc.Vaults
		cfg.LowWater = mc.LowWater
	}
	archiver := deps.Archiver
	if ac.Enabled {
		cfg.ArchiveEvery = ac.Interval.Duration
		cfg.Retention = ac.Retention.Duration
	} else {
		archiver = nil
	}

	monitor := service.NewReserveMonitor(deps.Store, deps.Ledger, deps.Bus, deps.Alerts, archiver, cfg, a.logger)
	g.Go(func() error {
		return monitor.Run(ctx)
	})
	return true
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to g.
// The server is shut down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	sc := a.cfg.Server
	svc := deps.LedgerService(a.cfg, a.logger)

	hub := ws.NewHub(deps.Bus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	var signer *crypto.AdminSigner
	if sc.AdminSecret != "" {
		signer = crypto.NewAdminSigner(sc.AdminSecret, sc.AdminMaxSkew.Duration)
	} else {
		a.logger.WarnContext(ctx, "admin_secret not set: /api/admin routes are closed")
	}

	// Only hand the admin API a clock it can move.
	var advancer handler.Advancer
	if deps.ManualClock != nil {
		advancer = deps.ManualClock
	}

	srv := server.NewServer(server.Config{
		Port:        sc.Port,
		CORSOrigins: sc.CORSOrigins,
		APIKey:      sc.APIKey,
		AdminSigner: signer,
		Limiter:     deps.RateLimiter,
		RateLimit:   sc.RateLimit,
		RateWindow:  sc.RateWindow.Duration,
	}, server.Handlers{
		Health: handler.NewHealthHandler(deps.Checks, a.logger),
		Ledger: handler.NewLedgerHandler(svc, a.logger),
		Admin:  handler.NewAdminHandler(svc, advancer, a.logger),
	}, hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
