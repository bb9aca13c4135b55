// Package server is the HTTP and WebSocket front end of the ledger.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/bondledger/internal/crypto"
	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/server/handler"
	"github.com/alanyoungcy/bondledger/internal/server/middleware"
	"github.com/alanyoungcy/bondledger/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// AdminSigner verifies /api/admin requests. Nil closes the admin routes.
	AdminSigner *crypto.AdminSigner

	// Limiter, when set, caps each caller at RateLimit requests per
	// RateWindow.
	Limiter    domain.RateLimiter
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health *handler.HealthHandler
	Ledger *handler.LedgerHandler
	Admin  *handler.AdminHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with every route registered and the middleware
// chain applied. wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, wsHub, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed, wrapped handler NewServer serves.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	l := handlers.Ledger
	mux.HandleFunc("GET /api/vaults/{vault}/pool", l.GetVault)
	mux.HandleFunc("GET /api/vaults/{vault}/stakers/{owner}", l.GetStaker)
	mux.HandleFunc("POST /api/vaults/{vault}/stakers/{owner}", l.InitializeStaker)
	mux.HandleFunc("GET /api/vaults/{vault}/stakers/{owner}/positions", l.ListPositions)
	mux.HandleFunc("POST /api/vaults/{vault}/bonds", l.CreateBond)
	mux.HandleFunc("POST /api/vaults/{vault}/bonds/{id}/renew", l.Renew())
	mux.HandleFunc("POST /api/vaults/{vault}/bonds/{id}/topup", l.TopUp())
	mux.HandleFunc("POST /api/vaults/{vault}/bonds/{id}/withdraw", l.Withdraw())
	mux.HandleFunc("POST /api/vaults/{vault}/bonds/{id}/compound", l.Compound())
	mux.HandleFunc("POST /api/vaults/{vault}/bonds/{id}/claim", l.Claim())
	mux.HandleFunc("POST /api/vaults/{vault}/bonds/{id}/bind", l.Bind())
	mux.HandleFunc("POST /api/vaults/{vault}/ranges", l.CreateRange)
	mux.HandleFunc("GET /api/accounts/{account}/balance", l.GetBalance)
	mux.HandleFunc("GET /api/journal", l.ListJournal)

	// Admin routes sit behind the HMAC signature check.
	if a := handlers.Admin; a != nil {
		admin := http.NewServeMux()
		admin.HandleFunc("POST /api/admin/vaults/{vault}/rewards/add", a.AddRewards)
		admin.HandleFunc("POST /api/admin/vaults/{vault}/rewards/remove", a.RemoveRewards)
		admin.HandleFunc("PUT /api/admin/vaults/{vault}/bond-config", a.PutBondConfig)
		admin.HandleFunc("PUT /api/admin/vaults/{vault}/pool", a.PutPool)
		admin.HandleFunc("POST /api/admin/accounts/{account}/credit", a.Credit)
		admin.HandleFunc("PUT /api/admin/assets/{mint}", a.PutAsset)
		admin.HandleFunc("PUT /api/admin/trees/{tree}/root", a.PutTreeRoot)
		admin.HandleFunc("POST /api/admin/trees/{tree}/leaves", a.PostTreeLeaves)
		admin.HandleFunc("POST /api/admin/clock/advance", a.AdvanceClock)
		mux.Handle("/api/admin/", middleware.AdminAuth(cfg.AdminSigner)(admin))
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.Logging(logger)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
