package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clish254/prediction-game/internal/domain"
)

// GameConfigStore implements domain.GameConfigStore using a singleton row.
type GameConfigStore struct {
	pool *pgxpool.Pool
}

// NewGameConfigStore creates a new GameConfigStore backed by the given
// connection pool.
func NewGameConfigStore(pool *pgxpool.Pool) *GameConfigStore {
	return &GameConfigStore{pool: pool}
}

// Get retrieves the game configuration. Returns domain.ErrNotFound before
// the first Put.
func (s *GameConfigStore) Get(ctx context.Context) (domain.GameConfig, error) {
	const query = `
		SELECT asset_id, round_interval_seconds, bid_buffer_seconds,
			min_bet_amount, fee_bps, treasury_address, oracle_address, updated_at
		FROM game_config WHERE id = 1`

	var (
		cfg    domain.GameConfig
		minBet int64
		feeBps int32
	)
	err := s.pool.QueryRow(ctx, query).Scan(
		&cfg.AssetID, &cfg.RoundIntervalSeconds, &cfg.BidBufferSeconds,
		&minBet, &feeBps, &cfg.TreasuryAddress, &cfg.OracleAddress, &cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.GameConfig{}, domain.ErrNotFound
		}
		return domain.GameConfig{}, fmt.Errorf("postgres: get game config: %w", err)
	}
	cfg.MinBetAmount = uint64(minBet)
	cfg.FeeBps = uint32(feeBps)
	return cfg, nil
}

// Put inserts or replaces the singleton configuration row.
func (s *GameConfigStore) Put(ctx context.Context, cfg domain.GameConfig) error {
	const query = `
		INSERT INTO game_config (
			id, asset_id, round_interval_seconds, bid_buffer_seconds,
			min_bet_amount, fee_bps, treasury_address, oracle_address, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO UPDATE SET
			asset_id               = EXCLUDED.asset_id,
			round_interval_seconds = EXCLUDED.round_interval_seconds,
			bid_buffer_seconds     = EXCLUDED.bid_buffer_seconds,
			min_bet_amount         = EXCLUDED.min_bet_amount,
			fee_bps                = EXCLUDED.fee_bps,
			treasury_address       = EXCLUDED.treasury_address,
			oracle_address         = EXCLUDED.oracle_address,
			updated_at             = NOW()`

	_, err := s.pool.Exec(ctx, query,
		cfg.AssetID, cfg.RoundIntervalSeconds, cfg.BidBufferSeconds,
		int64(cfg.MinBetAmount), int32(cfg.FeeBps),
		cfg.TreasuryAddress, cfg.OracleAddress,
	)
	if err != nil {
		return fmt.Errorf("postgres: put game config: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.GameConfigStore = (*GameConfigStore)(nil)
