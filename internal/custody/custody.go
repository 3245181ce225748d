// Package custody implements account-based fund custody on top of the
// balance store.
package custody

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Clish254/prediction-game/internal/domain"
)

// AccountCustody implements domain.Custody over a BalanceStore. Amounts are
// unsigned; every movement checks for overflow against domain.MaxAmount and
// fails closed.
type AccountCustody struct {
	balances domain.BalanceStore
	logger   *slog.Logger
}

// New creates an AccountCustody.
func New(balances domain.BalanceStore, logger *slog.Logger) *AccountCustody {
	return &AccountCustody{
		balances: balances,
		logger:   logger.With(slog.String("component", "custody")),
	}
}

// Deposit credits external funds to an account.
func (c *AccountCustody) Deposit(ctx context.Context, account string, amount uint64) error {
	if err := c.checkHeadroom(ctx, account, amount); err != nil {
		return err
	}
	if err := c.balances.Credit(ctx, account, amount); err != nil {
		return fmt.Errorf("custody: deposit to %q: %w", account, err)
	}
	c.logger.DebugContext(ctx, "deposit",
		slog.String("account", account),
		slog.Uint64("amount", amount),
	)
	return nil
}

// Withdraw removes funds from an account back to the outside world.
func (c *AccountCustody) Withdraw(ctx context.Context, account string, amount uint64) error {
	if err := c.balances.Debit(ctx, account, amount); err != nil {
		return fmt.Errorf("custody: withdraw from %q: %w", account, err)
	}
	c.logger.DebugContext(ctx, "withdraw",
		slog.String("account", account),
		slog.Uint64("amount", amount),
	)
	return nil
}

// Transfer moves funds from one account to another. The debit runs first so
// a short source account aborts before any credit happens; a failed credit
// is compensated by re-crediting the source.
func (c *AccountCustody) Transfer(ctx context.Context, from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := c.checkHeadroom(ctx, to, amount); err != nil {
		return err
	}
	if err := c.balances.Debit(ctx, from, amount); err != nil {
		return fmt.Errorf("custody: transfer %q -> %q: %w", from, to, err)
	}
	if err := c.balances.Credit(ctx, to, amount); err != nil {
		if compErr := c.balances.Credit(ctx, from, amount); compErr != nil {
			c.logger.ErrorContext(ctx, "transfer compensation failed",
				slog.String("from", from),
				slog.String("to", to),
				slog.Uint64("amount", amount),
				slog.String("error", compErr.Error()),
			)
		}
		return fmt.Errorf("custody: transfer %q -> %q: %w", from, to, err)
	}
	c.logger.DebugContext(ctx, "transfer",
		slog.String("from", from),
		slog.String("to", to),
		slog.Uint64("amount", amount),
	)
	return nil
}

// Balance returns the current balance of an account.
func (c *AccountCustody) Balance(ctx context.Context, account string) (uint64, error) {
	bal, err := c.balances.Get(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("custody: balance of %q: %w", account, err)
	}
	return bal, nil
}

func (c *AccountCustody) checkHeadroom(ctx context.Context, account string, amount uint64) error {
	bal, err := c.balances.Get(ctx, account)
	if err != nil {
		return fmt.Errorf("custody: balance of %q: %w", account, err)
	}
	if amount > domain.MaxAmount-bal {
		return fmt.Errorf("custody: credit %q by %d: %w", account, amount, domain.ErrAmountOverflow)
	}
	return nil
}

// Compile-time interface check.
var _ domain.Custody = (*AccountCustody)(nil)
