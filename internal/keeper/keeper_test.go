package keeper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Clish254/prediction-game/internal/domain"
)

type fakeGame struct {
	lockErr   error
	closeErrs []error
	closed    []domain.Round

	lockCalls  int
	closeCalls int
}

func (g *fakeGame) LockRound(context.Context) (domain.Round, error) {
	g.lockCalls++
	if g.lockErr != nil {
		return domain.Round{}, g.lockErr
	}
	return domain.Round{Epoch: 1, State: domain.RoundStateLocked}, nil
}

func (g *fakeGame) CloseRound(context.Context) (domain.Round, error) {
	i := g.closeCalls
	g.closeCalls++
	if i < len(g.closed) {
		return g.closed[i], nil
	}
	if len(g.closeErrs) > 0 {
		return domain.Round{}, g.closeErrs[0]
	}
	return domain.Round{}, domain.ErrTooEarly
}

type fakeLocks struct {
	held     bool
	acquires int
	releases int
}

func (l *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	l.acquires++
	if l.held {
		return nil, domain.ErrLockHeld
	}
	return func() { l.releases++ }, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTickAdvancesRounds(t *testing.T) {
	outcome := domain.OutcomeUp
	game := &fakeGame{
		lockErr: domain.ErrTooEarly,
		closed: []domain.Round{
			{Epoch: 1, State: domain.RoundStateClosed, Outcome: &outcome},
			{Epoch: 2, State: domain.RoundStateClosed, Outcome: &outcome},
		},
	}
	locks := &fakeLocks{}

	k := New(game, locks, nil, Config{}, testLogger())
	k.Tick(context.Background())

	if game.lockCalls != 1 {
		t.Errorf("lock calls = %d, want 1", game.lockCalls)
	}
	// Both overdue rounds close in one tick, then the loop stops on the
	// first expected error.
	if game.closeCalls != 3 {
		t.Errorf("close calls = %d, want 3", game.closeCalls)
	}
	if locks.releases != 1 {
		t.Errorf("lock releases = %d, want 1", locks.releases)
	}
}

func TestTickSkipsWhenLockHeld(t *testing.T) {
	game := &fakeGame{lockErr: domain.ErrTooEarly}
	locks := &fakeLocks{held: true}

	k := New(game, locks, nil, Config{}, testLogger())
	k.Tick(context.Background())

	if game.lockCalls != 0 || game.closeCalls != 0 {
		t.Errorf("game calls = %d/%d, want none when lock is held", game.lockCalls, game.closeCalls)
	}
}

func TestExpectedTransitionErrors(t *testing.T) {
	for _, err := range []error{
		domain.ErrTooEarly,
		domain.ErrRoundNotFound,
		domain.ErrAlreadyLocked,
		domain.ErrNotLocked,
	} {
		if !expectedTransitionError(err) {
			t.Errorf("%v should be an expected transition error", err)
		}
	}
	if expectedTransitionError(domain.ErrInsufficientBalance) {
		t.Error("unrelated error treated as expected")
	}
}
