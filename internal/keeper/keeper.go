// Package keeper drives the round lifecycle forward. The game's transitions
// are permissionless and idempotent, so any number of keepers may run; a
// distributed leader lock keeps redundant instances from hammering the
// stores on every tick.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Clish254/prediction-game/internal/domain"
	"github.com/Clish254/prediction-game/internal/notify"
)

// leaderLockKey is the shared lock all keeper instances compete for.
const leaderLockKey = "keeper"

// Game is the slice of the game service the keeper drives.
type Game interface {
	LockRound(ctx context.Context) (domain.Round, error)
	CloseRound(ctx context.Context) (domain.Round, error)
}

// Config holds keeper tuning parameters.
type Config struct {
	// TickInterval is how often the keeper checks for due transitions.
	TickInterval time.Duration
	// LockTTL bounds how long a crashed keeper can hold leadership.
	LockTTL time.Duration
}

// Keeper periodically locks and closes rounds whose scheduled times have
// passed.
type Keeper struct {
	game     Game
	locks    domain.LockManager
	notifier *notify.Notifier
	cfg      Config
	logger   *slog.Logger
}

// New creates a Keeper. The notifier may be nil when settlement alerts are
// not wanted.
func New(game Game, locks domain.LockManager, notifier *notify.Notifier, cfg Config, logger *slog.Logger) *Keeper {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 5 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &Keeper{
		game:     game,
		locks:    locks,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "keeper")),
	}
}

// Run ticks until the context is cancelled.
func (k *Keeper) Run(ctx context.Context) error {
	k.logger.InfoContext(ctx, "keeper started",
		slog.Duration("tick_interval", k.cfg.TickInterval),
	)

	ticker := time.NewTicker(k.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			k.logger.InfoContext(ctx, "keeper stopped")
			return ctx.Err()
		case <-ticker.C:
			k.Tick(ctx)
		}
	}
}

// Tick runs one advancement pass under the leader lock. Losing the lock
// race is normal operation; another keeper is doing the work.
func (k *Keeper) Tick(ctx context.Context) {
	unlock, err := k.locks.Acquire(ctx, leaderLockKey, k.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			k.logger.DebugContext(ctx, "leader lock held elsewhere")
			return
		}
		k.logger.ErrorContext(ctx, "acquire leader lock failed",
			slog.String("error", err.Error()),
		)
		return
	}
	defer unlock()

	k.advanceLock(ctx)
	k.advanceClose(ctx)
}

func (k *Keeper) advanceLock(ctx context.Context) {
	r, err := k.game.LockRound(ctx)
	if err != nil {
		if expectedTransitionError(err) {
			k.logger.DebugContext(ctx, "no round to lock",
				slog.String("reason", err.Error()),
			)
			return
		}
		k.logger.ErrorContext(ctx, "lock round failed",
			slog.String("error", err.Error()),
		)
		return
	}
	k.logger.InfoContext(ctx, "locked round",
		slog.Uint64("epoch", r.Epoch),
	)
}

// advanceClose closes every round whose close time has passed. More than
// one can be due after keeper downtime.
func (k *Keeper) advanceClose(ctx context.Context) {
	for {
		r, err := k.game.CloseRound(ctx)
		if err != nil {
			if expectedTransitionError(err) {
				k.logger.DebugContext(ctx, "no round to close",
					slog.String("reason", err.Error()),
				)
				return
			}
			k.logger.ErrorContext(ctx, "close round failed",
				slog.String("error", err.Error()),
			)
			return
		}

		k.logger.InfoContext(ctx, "closed round",
			slog.Uint64("epoch", r.Epoch),
			slog.Any("outcome", r.Outcome),
		)
		k.notifySettled(ctx, r)
	}
}

func (k *Keeper) notifySettled(ctx context.Context, r domain.Round) {
	if k.notifier == nil {
		return
	}

	outcome := "unknown"
	if r.Outcome != nil {
		outcome = string(*r.Outcome)
	}
	msg := fmt.Sprintf("Round %d settled: %s (up pool %d, down pool %d)",
		r.Epoch, outcome, r.TotalUpAmount, r.TotalDownAmount)
	if err := k.notifier.Notify(ctx, "round_settled", "Round settled", msg); err != nil {
		k.logger.WarnContext(ctx, "settlement notification failed",
			slog.String("error", err.Error()),
		)
	}
}

// expectedTransitionError reports whether the error is part of normal
// operation rather than a fault: the transition is not due yet, there is
// nothing to transition, or another actor got there first.
func expectedTransitionError(err error) bool {
	return errors.Is(err, domain.ErrTooEarly) ||
		errors.Is(err, domain.ErrRoundNotFound) ||
		errors.Is(err, domain.ErrAlreadyLocked) ||
		errors.Is(err, domain.ErrNotLocked)
}
