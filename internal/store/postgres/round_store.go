package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Clish254/prediction-game/internal/domain"
)

// RoundStore implements domain.RoundStore using PostgreSQL.
type RoundStore struct {
	pool *pgxpool.Pool
}

// NewRoundStore creates a new RoundStore backed by the given connection pool.
func NewRoundStore(pool *pgxpool.Pool) *RoundStore {
	return &RoundStore{pool: pool}
}

const roundCols = `epoch, state, open_time, lock_time, close_time,
	lock_price::text, close_price::text,
	total_up_amount, total_down_amount, up_bet_count, down_bet_count,
	outcome, fee_bps, locked_at, closed_at, created_at, updated_at`

// Create inserts a new round in the created state. The partial unique index
// rounds_single_created enforces the single-round-ahead policy at the
// database level.
func (s *RoundStore) Create(ctx context.Context, r domain.Round) error {
	const query = `
		INSERT INTO rounds (
			epoch, state, open_time, lock_time, close_time, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $6)`

	_, err := s.pool.Exec(ctx, query,
		int64(r.Epoch), string(r.State),
		r.OpenTime, r.LockTime, r.CloseTime, r.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrRoundAlreadyActive
		}
		return fmt.Errorf("postgres: create round %d: %w", r.Epoch, err)
	}
	return nil
}

// Get retrieves a round by epoch.
func (s *RoundStore) Get(ctx context.Context, epoch uint64) (domain.Round, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roundCols+` FROM rounds WHERE epoch = $1`, int64(epoch))
	r, err := scanRound(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Round{}, domain.ErrRoundNotFound
		}
		return domain.Round{}, fmt.Errorf("postgres: get round %d: %w", epoch, err)
	}
	return r, nil
}

// GetActive returns the round currently accepting bets.
func (s *RoundStore) GetActive(ctx context.Context) (domain.Round, error) {
	return s.oldestInState(ctx, domain.RoundStateCreated)
}

// GetOldestLocked returns the earliest locked round awaiting close.
func (s *RoundStore) GetOldestLocked(ctx context.Context) (domain.Round, error) {
	return s.oldestInState(ctx, domain.RoundStateLocked)
}

func (s *RoundStore) oldestInState(ctx context.Context, state domain.RoundState) (domain.Round, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roundCols+` FROM rounds WHERE state = $1 ORDER BY epoch ASC LIMIT 1`,
		string(state))
	r, err := scanRound(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Round{}, domain.ErrRoundNotFound
		}
		return domain.Round{}, fmt.Errorf("postgres: get oldest %s round: %w", state, err)
	}
	return r, nil
}

// GetLatest returns the highest-epoch round.
func (s *RoundStore) GetLatest(ctx context.Context) (domain.Round, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roundCols+` FROM rounds ORDER BY epoch DESC LIMIT 1`)
	r, err := scanRound(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Round{}, domain.ErrRoundNotFound
		}
		return domain.Round{}, fmt.Errorf("postgres: get latest round: %w", err)
	}
	return r, nil
}

// List returns rounds in descending epoch order with pagination.
func (s *RoundStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Round, error) {
	query := `SELECT ` + roundCols + ` FROM rounds WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND open_time >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND open_time <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY epoch DESC"

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
		return nil, fmt.Errorf("postgres: list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan round: %w", err)
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list rounds rows: %w", err)
	}
	return rounds, nil
}

// AddStake bumps the side total of a round that is still accepting bets.
func (s *RoundStore) AddStake(ctx context.Context, epoch uint64, side domain.Side, amount uint64) error {
	return s.adjustStake(ctx, epoch, side, int64(amount), 1)
}

// RemoveStake reverses AddStake for a pre-lock bet withdrawal.
func (s *RoundStore) RemoveStake(ctx context.Context, epoch uint64, side domain.Side, amount uint64) error {
	return s.adjustStake(ctx, epoch, side, -int64(amount), -1)
}

func (s *RoundStore) adjustStake(ctx context.Context, epoch uint64, side domain.Side, delta int64, countDelta int64) error {
	col := "total_up_amount"
	countCol := "up_bet_count"
	if side == domain.SideDown {
		col = "total_down_amount"
		countCol = "down_bet_count"
	}

	query := fmt.Sprintf(`
		UPDATE rounds
		SET %s = %s + $2, %s = %s + $3, updated_at = NOW()
		WHERE epoch = $1 AND state = 'created'`,
		col, col, countCol, countCol)

	tag, err := s.pool.Exec(ctx, query, int64(epoch), delta, countDelta)
	if err != nil {
		return fmt.Errorf("postgres: adjust stake on round %d: %w", epoch, err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.Get(ctx, epoch); getErr != nil {
			return getErr
		}
		return domain.ErrRoundNotBiddable
	}
	return nil
}

// Lock transitions a round to locked and creates the next round in one
// transaction. The state guard in the UPDATE makes repeated Lock calls fail
// with ErrAlreadyLocked instead of capturing a second price.
func (s *RoundStore) Lock(ctx context.Context, epoch uint64, price *decimal.Decimal, lockedAt time.Time, next domain.Round) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin lock tx for round %d: %w", epoch, err)
	}
	defer tx.Rollback(ctx)

	const lockQuery = `
		UPDATE rounds
		SET state = 'locked', lock_price = $2::numeric, locked_at = $3, updated_at = $3
		WHERE epoch = $1 AND state = 'created'`

	tag, err := tx.Exec(ctx, lockQuery, int64(epoch), decimalPtrString(price), lockedAt)
	if err != nil {
		return fmt.Errorf("postgres: lock round %d: %w", epoch, err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.Get(ctx, epoch); getErr != nil {
			return getErr
		}
		return domain.ErrAlreadyLocked
	}

	const nextQuery = `
		INSERT INTO rounds (
			epoch, state, open_time, lock_time, close_time, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $6)`

	_, err = tx.Exec(ctx, nextQuery,
		int64(next.Epoch), string(next.State),
		next.OpenTime, next.LockTime, next.CloseTime, next.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrRoundAlreadyActive
		}
		return fmt.Errorf("postgres: start round %d: %w", next.Epoch, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit lock tx for round %d: %w", epoch, err)
	}
	return nil
}

// Close transitions a locked round to closed with its outcome.
func (s *RoundStore) Close(ctx context.Context, epoch uint64, price *decimal.Decimal, outcome domain.Outcome, feeBps uint32, closedAt time.Time) error {
	const query = `
		UPDATE rounds
		SET state = 'closed', close_price = $2::numeric, outcome = $3,
			fee_bps = $4, closed_at = $5, updated_at = $5
		WHERE epoch = $1 AND state = 'locked'`

	tag, err := s.pool.Exec(ctx, query,
		int64(epoch), decimalPtrString(price), string(outcome), int32(feeBps), closedAt)
	if err != nil {
		return fmt.Errorf("postgres: close round %d: %w", epoch, err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.Get(ctx, epoch); getErr != nil {
			return getErr
		}
		return domain.ErrNotLocked
	}
	return nil
}

// scanRound scans a single round row into a domain.Round.
func scanRound(row pgx.Row) (domain.Round, error) {
	var (
		r                     domain.Round
		epoch                 int64
		state, outcome        *string
		lockPrice, closePrice *string
		totalUp, totalDown    int64
		feeBps                int32
	)
	err := row.Scan(
		&epoch, &state, &r.OpenTime, &r.LockTime, &r.CloseTime,
		&lockPrice, &closePrice,
		&totalUp, &totalDown, &r.UpBetCount, &r.DownBetCount,
		&outcome, &feeBps, &r.LockedAt, &r.ClosedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return domain.Round{}, err
	}

	r.Epoch = uint64(epoch)
	if state != nil {
		r.State = domain.RoundState(*state)
	}
	r.TotalUpAmount = uint64(totalUp)
	r.TotalDownAmount = uint64(totalDown)
	if outcome != nil {
		o := domain.Outcome(*outcome)
		r.Outcome = &o
	}
	r.FeeBps = uint32(feeBps)

	if r.LockPrice, err = parseDecimalPtr(lockPrice); err != nil {
		return domain.Round{}, fmt.Errorf("parse lock price: %w", err)
	}
	if r.ClosePrice, err = parseDecimalPtr(closePrice); err != nil {
		return domain.Round{}, fmt.Errorf("parse close price: %w", err)
	}
	return r, nil
}

// decimalPtrString renders an optional decimal for a NUMERIC parameter.
func decimalPtrString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseDecimalPtr(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Compile-time interface check.
var _ domain.RoundStore = (*RoundStore)(nil)
