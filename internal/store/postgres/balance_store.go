package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clish254/prediction-game/internal/domain"
)

// BalanceStore implements domain.BalanceStore using PostgreSQL.
type BalanceStore struct {
	pool *pgxpool.Pool
}

// NewBalanceStore creates a new BalanceStore backed by the given connection
// pool.
func NewBalanceStore(pool *pgxpool.Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

// Get returns the balance of an account, zero if the account is unknown.
func (s *BalanceStore) Get(ctx context.Context, account string) (uint64, error) {
	var balance int64
	err := s.pool.QueryRow(ctx,
		`SELECT balance FROM balances WHERE account = $1`, account).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: get balance %s: %w", account, err)
	}
	return uint64(balance), nil
}

// Credit adds amount to an account, creating the row on first use.
func (s *BalanceStore) Credit(ctx context.Context, account string, amount uint64) error {
	const query = `
		INSERT INTO balances (account, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account) DO UPDATE
		SET balance = balances.balance + EXCLUDED.balance, updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query, account, int64(amount))
	if err != nil {
		return fmt.Errorf("postgres: credit %s: %w", account, err)
	}
	return nil
}

// Debit subtracts amount from an account. The balance >= amount guard in
// the UPDATE rejects overdrafts without mutating the row.
func (s *BalanceStore) Debit(ctx context.Context, account string, amount uint64) error {
	const query = `
		UPDATE balances
		SET balance = balance - $2, updated_at = NOW()
		WHERE account = $1 AND balance >= $2`

	tag, err := s.pool.Exec(ctx, query, account, int64(amount))
	if err != nil {
		return fmt.Errorf("postgres: debit %s: %w", account, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

// Compile-time interface check.
var _ domain.BalanceStore = (*BalanceStore)(nil)
