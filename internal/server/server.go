// Package server exposes the prediction game over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Clish254/prediction-game/internal/domain"
	"github.com/Clish254/prediction-game/internal/server/handler"
	"github.com/Clish254/prediction-game/internal/server/middleware"
	"github.com/Clish254/prediction-game/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, admin endpoints are open

	// BetRateLimit caps bet placements per client IP per BetRateWindow.
	// Zero disables rate limiting.
	BetRateLimit  int
	BetRateWindow time.Duration
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Rounds *handler.RoundHandler
	Bets   *handler.BetHandler
	Funds  *handler.FundsHandler
	Admin  *handler.AdminHandler
}

// Server is the HTTP + WebSocket API server for the prediction game.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. Admin routes sit
// behind API-key auth; bet placement is rate limited when a limiter is
// provided; everything passes through request logging and CORS.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Round endpoints. The lifecycle transitions are deliberately public;
	// they are permissionless and idempotent.
	mux.HandleFunc("GET /api/rounds", handlers.Rounds.ListRounds)
	mux.HandleFunc("GET /api/rounds/active", handlers.Rounds.GetActiveRound)
	mux.HandleFunc("GET /api/rounds/latest", handlers.Rounds.GetLatestRound)
	mux.HandleFunc("GET /api/rounds/{epoch}", handlers.Rounds.GetRound)
	mux.HandleFunc("GET /api/rounds/{epoch}/bets", handlers.Rounds.ListRoundBets)
	mux.HandleFunc("POST /api/rounds/lock", handlers.Rounds.LockRound)
	mux.HandleFunc("POST /api/rounds/close", handlers.Rounds.CloseRound)

	// Bet endpoints.
	placeBet := http.Handler(http.HandlerFunc(handlers.Bets.PlaceBet))
	if limiter != nil && cfg.BetRateLimit > 0 {
		window := cfg.BetRateWindow
		if window <= 0 {
			window = time.Minute
		}
		placeBet = middleware.RateLimit(limiter, cfg.BetRateLimit, window)(placeBet)
	}
	mux.Handle("POST /api/bets", placeBet)
	mux.HandleFunc("POST /api/bets/withdraw", handlers.Bets.WithdrawBet)
	mux.HandleFunc("POST /api/rounds/{epoch}/claim", handlers.Bets.Claim)
	mux.HandleFunc("GET /api/rounds/{epoch}/bets/{participant}", handlers.Bets.GetBet)
	mux.HandleFunc("GET /api/participants/{participant}/bets", handlers.Bets.ListParticipantBets)

	// Balance endpoints.
	mux.HandleFunc("POST /api/balances/deposit", handlers.Funds.Deposit)
	mux.HandleFunc("POST /api/balances/withdraw", handlers.Funds.Withdraw)
	mux.HandleFunc("GET /api/balances/{participant}", handlers.Funds.GetBalance)

	// Game config is publicly readable.
	mux.HandleFunc("GET /api/config", handlers.Admin.GetConfig)

	// Admin endpoints, behind API-key auth.
	admin := http.NewServeMux()
	admin.HandleFunc("POST /api/admin/genesis", handlers.Admin.Genesis)
	admin.HandleFunc("PUT /api/admin/config", handlers.Admin.UpdateConfig)
	admin.HandleFunc("GET /api/admin/treasury", handlers.Admin.GetTreasury)
	admin.HandleFunc("POST /api/admin/treasury/withdraw", handlers.Admin.WithdrawTreasury)
	mux.Handle("/api/admin/", middleware.Auth(cfg.APIKey)(admin))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
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

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0 // allow all if none specified
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
