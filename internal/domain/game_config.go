package domain

import (
	"fmt"
	"time"
)

// MaxAmount is the largest accepted bet or deposit. Amounts are stored as
// BIGINT in Postgres, so values above int64 range are rejected at the edge.
const MaxAmount uint64 = 1<<63 - 1

// GameConfig is the game's runtime configuration. It is read by every
// operation and mutated only through the admin path.
type GameConfig struct {
	AssetID              string    `json:"asset_id"`
	RoundIntervalSeconds int64     `json:"round_interval_seconds"`
	BidBufferSeconds     int64     `json:"bid_buffer_seconds"`
	MinBetAmount         uint64    `json:"min_bet_amount"`
	FeeBps               uint32    `json:"fee_bps"`
	TreasuryAddress      string    `json:"treasury_address"`
	OracleAddress        string    `json:"oracle_address"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Interval returns the round interval as a duration.
func (c GameConfig) Interval() time.Duration {
	return time.Duration(c.RoundIntervalSeconds) * time.Second
}

// BidBuffer returns the bidding close buffer as a duration.
func (c GameConfig) BidBuffer() time.Duration {
	return time.Duration(c.BidBufferSeconds) * time.Second
}

// Validate checks the config for values that would break round scheduling
// or settlement arithmetic.
func (c GameConfig) Validate() error {
	if c.AssetID == "" {
		return fmt.Errorf("game config: asset_id is required")
	}
	if c.RoundIntervalSeconds <= 0 {
		return fmt.Errorf("game config: round_interval_seconds must be positive")
	}
	if c.BidBufferSeconds < 0 {
		return fmt.Errorf("game config: bid_buffer_seconds must not be negative")
	}
	if c.BidBufferSeconds >= c.RoundIntervalSeconds {
		return fmt.Errorf("game config: bid_buffer_seconds must be shorter than the round interval")
	}
	if c.FeeBps >= 10000 {
		return fmt.Errorf("game config: fee_bps must be below 10000")
	}
	if c.MinBetAmount == 0 {
		return fmt.Errorf("game config: min_bet_amount must be positive")
	}
	if c.TreasuryAddress == "" {
		return fmt.Errorf("game config: treasury_address is required")
	}
	return nil
}
