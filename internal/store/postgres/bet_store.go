package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clish254/prediction-game/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

const betCols = `epoch, participant, side, amount, claimed, payout, placed_at, claimed_at`

// Create inserts a bet. The (epoch, participant) primary key rejects a
// second bet in the same round.
func (s *BetStore) Create(ctx context.Context, b domain.Bet) error {
	const query = `
		INSERT INTO bets (epoch, participant, side, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		int64(b.Epoch), b.Participant, string(b.Side), int64(b.Amount), b.PlacedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateBet
		}
		return fmt.Errorf("postgres: create bet %d/%s: %w", b.Epoch, b.Participant, err)
	}
	return nil
}

// Get retrieves a bet by its composite key.
func (s *BetStore) Get(ctx context.Context, epoch uint64, participant string) (domain.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betCols+` FROM bets WHERE epoch = $1 AND participant = $2`,
		int64(epoch), participant)
	b, err := scanBet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, domain.ErrBetNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %d/%s: %w", epoch, participant, err)
	}
	return b, nil
}

// Delete removes an unclaimed bet during the pre-lock withdrawal window.
func (s *BetStore) Delete(ctx context.Context, epoch uint64, participant string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM bets WHERE epoch = $1 AND participant = $2 AND claimed = FALSE`,
		int64(epoch), participant)
	if err != nil {
		return fmt.Errorf("postgres: delete bet %d/%s: %w", epoch, participant, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBetNotFound
	}
	return nil
}

// MarkClaimed sets claimed exactly once. The claimed = FALSE guard makes a
// second claim fail with ErrAlreadyClaimed instead of overwriting the
// recorded payout.
func (s *BetStore) MarkClaimed(ctx context.Context, epoch uint64, participant string, payout uint64, at time.Time) error {
	const query = `
		UPDATE bets
		SET claimed = TRUE, payout = $3, claimed_at = $4
		WHERE epoch = $1 AND participant = $2 AND claimed = FALSE`

	tag, err := s.pool.Exec(ctx, query,
		int64(epoch), participant, int64(payout), at)
	if err != nil {
		return fmt.Errorf("postgres: mark bet %d/%s claimed: %w", epoch, participant, err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.Get(ctx, epoch, participant); getErr != nil {
			return getErr
		}
		return domain.ErrAlreadyClaimed
	}
	return nil
}

// ListByRound returns all bets in a round ordered by placement time.
func (s *BetStore) ListByRound(ctx context.Context, epoch uint64, opts domain.ListOpts) ([]domain.Bet, error) {
	return s.list(ctx,
		`SELECT `+betCols+` FROM bets WHERE epoch = $1 ORDER BY placed_at ASC`,
		int64(epoch), opts)
}

// ListByParticipant returns a participant's bets, newest epoch first.
func (s *BetStore) ListByParticipant(ctx context.Context, participant string, opts domain.ListOpts) ([]domain.Bet, error) {
	return s.list(ctx,
		`SELECT `+betCols+` FROM bets WHERE participant = $1 ORDER BY epoch DESC`,
		participant, opts)
}

func (s *BetStore) list(ctx context.Context, query string, key any, opts domain.ListOpts) ([]domain.Bet, error) {
	args := []any{key}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets: %w", err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bets rows: %w", err)
	}
	return bets, nil
}

func scanBet(row pgx.Row) (domain.Bet, error) {
	var (
		b              domain.Bet
		epoch          int64
		side           string
		amount, payout int64
	)
	err := row.Scan(&epoch, &b.Participant, &side, &amount, &b.Claimed, &payout, &b.PlacedAt, &b.ClaimedAt)
	if err != nil {
		return domain.Bet{}, err
	}
	b.Epoch = uint64(epoch)
	b.Side = domain.Side(side)
	b.Amount = uint64(amount)
	b.Payout = uint64(payout)
	return b, nil
}

// Compile-time interface check.
var _ domain.BetStore = (*BetStore)(nil)
