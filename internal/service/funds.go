package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Clish254/prediction-game/internal/domain"
)

// Deposit credits external funds to a participant's account.
func (s *GameService) Deposit(ctx context.Context, participant string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if participant == "" {
		return fmt.Errorf("game_service: participant is required")
	}
	if amount == 0 {
		return fmt.Errorf("game_service: deposit amount must be positive")
	}

	if err := s.custody.Deposit(ctx, participant, amount); err != nil {
		return fmt.Errorf("game_service: deposit: %w", err)
	}

	s.auditLog(ctx, "funds_deposited", map[string]any{
		"participant": participant,
		"amount":      amount,
	})
	return nil
}

// Withdraw moves funds from a participant's account back out of the game.
func (s *GameService) Withdraw(ctx context.Context, participant string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount == 0 {
		return fmt.Errorf("game_service: withdraw amount must be positive")
	}

	if err := s.custody.Withdraw(ctx, participant, amount); err != nil {
		return fmt.Errorf("game_service: withdraw: %w", err)
	}

	s.auditLog(ctx, "funds_withdrawn", map[string]any{
		"participant": participant,
		"amount":      amount,
	})
	return nil
}

// Balance returns a participant's account balance.
func (s *GameService) Balance(ctx context.Context, participant string) (uint64, error) {
	return s.custody.Balance(ctx, participant)
}

// TreasuryBalance returns the accumulated fee balance.
func (s *GameService) TreasuryBalance(ctx context.Context) (uint64, error) {
	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("game_service: load config: %w", err)
	}
	return s.custody.Balance(ctx, cfg.TreasuryAddress)
}

// WithdrawTreasury moves accumulated fees out of the treasury to the given
// destination. This is an admin operation; the HTTP layer gates it.
func (s *GameService) WithdrawTreasury(ctx context.Context, to string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if to == "" {
		return fmt.Errorf("game_service: destination is required")
	}
	if amount == 0 {
		return fmt.Errorf("game_service: treasury withdrawal must be positive")
	}

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return fmt.Errorf("game_service: load config: %w", err)
	}

	if err := s.custody.Transfer(ctx, cfg.TreasuryAddress, to, amount); err != nil {
		return fmt.Errorf("game_service: withdraw treasury: %w", err)
	}

	s.logger.InfoContext(ctx, "treasury withdrawal",
		slog.String("to", to),
		slog.Uint64("amount", amount),
	)
	s.auditLog(ctx, "treasury_withdrawn", map[string]any{
		"to":     to,
		"amount": amount,
	})
	return nil
}

// ConfigUpdate carries the admin-updatable configuration fields. Nil fields
// are left unchanged. The round interval and bid buffer are deliberately
// absent; changing them mid-sequence would break window contiguity.
type ConfigUpdate struct {
	AssetID         *string
	MinBetAmount    *uint64
	FeeBps          *uint32
	TreasuryAddress *string
	OracleAddress   *string
}

// UpdateConfig applies an admin configuration update. Fee changes take
// effect for rounds closed after the update; already closed rounds keep
// the rate captured at close.
func (s *GameService) UpdateConfig(ctx context.Context, upd ConfigUpdate) (domain.GameConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return domain.GameConfig{}, fmt.Errorf("game_service: load config: %w", err)
	}

	if upd.AssetID != nil {
		cfg.AssetID = *upd.AssetID
	}
	if upd.MinBetAmount != nil {
		cfg.MinBetAmount = *upd.MinBetAmount
	}
	if upd.FeeBps != nil {
		cfg.FeeBps = *upd.FeeBps
	}
	if upd.TreasuryAddress != nil {
		cfg.TreasuryAddress = *upd.TreasuryAddress
	}
	if upd.OracleAddress != nil {
		cfg.OracleAddress = *upd.OracleAddress
	}

	if err := cfg.Validate(); err != nil {
		return domain.GameConfig{}, err
	}

	cfg.UpdatedAt = s.clock.Now()
	if err := s.config.Put(ctx, cfg); err != nil {
		return domain.GameConfig{}, fmt.Errorf("game_service: store config: %w", err)
	}

	s.logger.InfoContext(ctx, "config updated",
		slog.String("asset_id", cfg.AssetID),
		slog.Uint64("min_bet", cfg.MinBetAmount),
		slog.Int("fee_bps", int(cfg.FeeBps)),
	)
	s.auditLog(ctx, "config_updated", map[string]any{
		"asset_id":         cfg.AssetID,
		"min_bet_amount":   cfg.MinBetAmount,
		"fee_bps":          cfg.FeeBps,
		"treasury_address": cfg.TreasuryAddress,
	})

	return cfg, nil
}
