package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Clish254/prediction-game/internal/keeper"
	"github.com/Clish254/prediction-game/internal/server"
	"github.com/Clish254/prediction-game/internal/server/handler"
	"github.com/Clish254/prediction-game/internal/server/ws"
)

// shutdownGrace bounds how long in-flight HTTP requests may run after a
// shutdown signal.
const shutdownGrace = 10 * time.Second

// ServerMode runs the HTTP and WebSocket API without a keeper. Round
// transitions still happen when external callers hit the lock and close
// endpoints.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// KeeperMode runs only the round-transition keeper. Use it to add settlement
// redundancy next to a separate server deployment.
func (a *App) KeeperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting keeper mode")

	k := keeper.New(deps.Game, deps.LockManager, deps.Notifier, keeper.Config{
		TickInterval: a.cfg.Keeper.TickInterval.Duration,
		LockTTL:      a.cfg.Keeper.LockTTL.Duration,
	}, a.logger)
	return k.Run(ctx)
}

// ArchiveMode exports settled rounds older than the retention window to
// object storage and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.S3.RetentionDays)
	a.logger.InfoContext(ctx, "starting archive run",
		slog.Time("cutoff", cutoff),
	)

	n, err := deps.Archiver.ArchiveRounds(ctx, cutoff)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int64("rounds_archived", n),
	)
	return nil
}

// FullMode runs the API server and the keeper in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startHTTPServer(ctx, g, deps)

	k := keeper.New(deps.Game, deps.LockManager, deps.Notifier, keeper.Config{
		TickInterval: a.cfg.Keeper.TickInterval.Duration,
		LockTTL:      a.cfg.Keeper.LockTTL.Duration,
	}, a.logger)
	g.Go(func() error {
		return k.Run(ctx)
	})

	return g.Wait()
}

// startHTTPServer builds the handler set, the WebSocket hub, and the HTTP
// server, then registers their goroutines on g. The server shuts down
// gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Rounds: handler.NewRoundHandler(deps.Game, a.logger),
		Bets:   handler.NewBetHandler(deps.Game, a.logger),
		Funds:  handler.NewFundsHandler(deps.Game, a.logger),
		Admin:  handler.NewAdminHandler(deps.Game, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:          a.cfg.Server.Port,
		CORSOrigins:   a.cfg.Server.CORSOrigins,
		APIKey:        a.cfg.Server.APIKey,
		BetRateLimit:  a.cfg.Server.BetRateLimit,
		BetRateWindow: a.cfg.Server.BetRateWindow.Duration,
	}, handlers, deps.RateLimiter, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("http server shutdown", slog.String("error", err.Error()))
		}
		return ctx.Err()
	})
}
