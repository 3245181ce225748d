package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// RoundStore owns the sequence of Round records, keyed by epoch. Rounds are
// never deleted; state changes only happen through these operations.
type RoundStore interface {
	// Create inserts a new round in the created state. It returns
	// ErrRoundAlreadyActive when another round is still in the created
	// state (single-round-ahead policy).
	Create(ctx context.Context, round Round) error

	Get(ctx context.Context, epoch uint64) (Round, error)

	// GetActive returns the round currently accepting bets (state created).
	GetActive(ctx context.Context) (Round, error)

	// GetOldestLocked returns the earliest round awaiting close.
	GetOldestLocked(ctx context.Context) (Round, error)

	GetLatest(ctx context.Context) (Round, error)
	List(ctx context.Context, opts ListOpts) ([]Round, error)

	// AddStake bumps the side total and bet count of a created round.
	AddStake(ctx context.Context, epoch uint64, side Side, amount uint64) error

	// RemoveStake reverses AddStake when a bet is withdrawn before lock.
	RemoveStake(ctx context.Context, epoch uint64, side Side, amount uint64) error

	// Lock transitions a created round to locked and, in the same atomic
	// step, creates the next round so betting windows stay contiguous.
	// A nil price records an oracle failure at lock; the round will refund
	// at close. Returns ErrAlreadyLocked if the round is no longer created.
	Lock(ctx context.Context, epoch uint64, price *decimal.Decimal, lockedAt time.Time, next Round) error

	// Close transitions a locked round to closed with its outcome and the
	// fee rate applied to it. A nil price records an oracle failure at
	// close. Returns ErrNotLocked if the round is not in the locked state.
	Close(ctx context.Context, epoch uint64, price *decimal.Decimal, outcome Outcome, feeBps uint32, closedAt time.Time) error
}

// BetStore owns Bet records. Bets reference rounds only by epoch.
type BetStore interface {
	// Create inserts a bet. It returns ErrDuplicateBet when the
	// participant already has a bet in the epoch.
	Create(ctx context.Context, bet Bet) error

	Get(ctx context.Context, epoch uint64, participant string) (Bet, error)

	// Delete removes an unclaimed bet (pre-lock withdrawal).
	Delete(ctx context.Context, epoch uint64, participant string) error

	// MarkClaimed sets claimed exactly once, recording the payout. It
	// returns ErrAlreadyClaimed when the bet was already claimed.
	MarkClaimed(ctx context.Context, epoch uint64, participant string, payout uint64, at time.Time) error

	ListByRound(ctx context.Context, epoch uint64, opts ListOpts) ([]Bet, error)
	ListByParticipant(ctx context.Context, participant string, opts ListOpts) ([]Bet, error)
}

// BalanceStore persists account balances for the custody layer.
type BalanceStore interface {
	// Get returns the balance for an account, zero when the account has
	// never been credited.
	Get(ctx context.Context, account string) (uint64, error)

	// Credit adds amount to an account, creating it if needed.
	Credit(ctx context.Context, account string, amount uint64) error

	// Debit subtracts amount from an account. It returns
	// ErrInsufficientBalance without mutating when funds are short.
	Debit(ctx context.Context, account string, amount uint64) error
}

// GameConfigStore persists the singleton game configuration.
type GameConfigStore interface {
	Get(ctx context.Context) (GameConfig, error)
	Put(ctx context.Context, cfg GameConfig) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
