package domain

import "context"

// PoolAccount holds all staked funds between bet placement and payout.
// Rounding dust accumulates here and is never reconciled.
const PoolAccount = "pool"

// Custody moves funds between accounts. The game core defers every fund
// movement to this collaborator and never tracks balances itself.
type Custody interface {
	// Deposit credits external funds to an account.
	Deposit(ctx context.Context, account string, amount uint64) error

	// Withdraw removes funds from an account back to the outside world.
	// Returns ErrInsufficientBalance when funds are short.
	Withdraw(ctx context.Context, account string, amount uint64) error

	// Transfer moves funds between two internal accounts atomically.
	Transfer(ctx context.Context, from, to string, amount uint64) error

	Balance(ctx context.Context, account string) (uint64, error)
}
