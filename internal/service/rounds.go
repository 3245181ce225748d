package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Clish254/prediction-game/internal/domain"
	"github.com/Clish254/prediction-game/internal/settlement"
)

// Genesis initializes the game: it persists the configuration and creates
// the first round, open immediately. It fails with ErrAlreadyInitialized
// when a configuration already exists.
func (s *GameService) Genesis(ctx context.Context, cfg domain.GameConfig) (domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := cfg.Validate(); err != nil {
		return domain.Round{}, err
	}

	if _, err := s.config.Get(ctx); err == nil {
		return domain.Round{}, domain.ErrAlreadyInitialized
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Round{}, fmt.Errorf("game_service: load config: %w", err)
	}

	now := s.clock.Now()
	cfg.UpdatedAt = now
	if err := s.config.Put(ctx, cfg); err != nil {
		return domain.Round{}, fmt.Errorf("game_service: store config: %w", err)
	}

	first := domain.Round{
		Epoch:     1,
		State:     domain.RoundStateCreated,
		OpenTime:  now,
		LockTime:  now.Add(cfg.Interval()),
		CloseTime: now.Add(2 * cfg.Interval()),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.rounds.Create(ctx, first); err != nil {
		return domain.Round{}, fmt.Errorf("game_service: create genesis round: %w", err)
	}

	s.logger.InfoContext(ctx, "game initialized",
		slog.String("asset_id", cfg.AssetID),
		slog.Int64("interval_s", cfg.RoundIntervalSeconds),
		slog.Uint64("epoch", first.Epoch),
	)
	s.publishEvent(ctx, ChannelRounds, "round_started", map[string]any{
		"epoch":     first.Epoch,
		"open_time": first.OpenTime,
		"lock_time": first.LockTime,
	})
	s.auditLog(ctx, "genesis", map[string]any{
		"asset_id":   cfg.AssetID,
		"interval_s": cfg.RoundIntervalSeconds,
		"fee_bps":    cfg.FeeBps,
		"epoch":      first.Epoch,
	})

	return first, nil
}

// LockRound locks the active round once its scheduled lock time has passed,
// capturing the lock price and atomically starting the next round so the
// betting windows stay contiguous. Oracle failure does not block the
// transition; the round locks without a price and will refund at close.
//
// The call is permissionless: anyone may drive the round forward. It fails
// with ErrTooEarly before the lock time and ErrAlreadyLocked when the
// round has already moved on.
func (s *GameService) LockRound(ctx context.Context) (domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return domain.Round{}, fmt.Errorf("game_service: load config: %w", err)
	}

	r, err := s.rounds.GetActive(ctx)
	if err != nil {
		return domain.Round{}, fmt.Errorf("game_service: get active round: %w", err)
	}

	now := s.clock.Now()
	if now.Before(r.LockTime) {
		return domain.Round{}, fmt.Errorf("game_service: lock round %d before %s: %w",
			r.Epoch, r.LockTime.Format("15:04:05"), domain.ErrTooEarly)
	}

	price := s.fetchPrice(ctx, cfg, "lock", r.Epoch)

	next := domain.Round{
		Epoch:     r.Epoch + 1,
		State:     domain.RoundStateCreated,
		OpenTime:  r.LockTime,
		LockTime:  r.LockTime.Add(cfg.Interval()),
		CloseTime: r.LockTime.Add(2 * cfg.Interval()),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.rounds.Lock(ctx, r.Epoch, price, now, next); err != nil {
		return domain.Round{}, fmt.Errorf("game_service: lock round %d: %w", r.Epoch, err)
	}

	locked, err := s.rounds.Get(ctx, r.Epoch)
	if err != nil {
		return domain.Round{}, fmt.Errorf("game_service: reload round %d: %w", r.Epoch, err)
	}

	s.logger.InfoContext(ctx, "round locked",
		slog.Uint64("epoch", r.Epoch),
		slog.Any("lock_price", price),
		slog.Uint64("next_epoch", next.Epoch),
	)
	s.publishEvent(ctx, ChannelRounds, "round_locked", map[string]any{
		"epoch":      r.Epoch,
		"lock_price": price,
		"next_epoch": next.Epoch,
	})
	s.auditLog(ctx, "round_locked", map[string]any{
		"epoch":      r.Epoch,
		"lock_price": decimalPtrAny(price),
		"next_epoch": next.Epoch,
	})

	return locked, nil
}

// CloseRound closes the oldest locked round once its scheduled close time
// has passed: it captures the close price, decides the outcome, and moves
// the fee to the treasury for decided rounds. Oracle failure (now or back
// at lock) resolves the round to a refund with no fee.
//
// Like LockRound the call is permissionless; it fails with ErrTooEarly
// before the close time.
func (s *GameService) CloseRound(ctx context.Context) (domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return domain.Round{}, fmt.Errorf("game_service: load config: %w", err)
	}

	r, err := s.rounds.GetOldestLocked(ctx)
	if err != nil {
		return domain.Round{}, fmt.Errorf("game_service: get locked round: %w", err)
	}

	now := s.clock.Now()
	if now.Before(r.CloseTime) {
		return domain.Round{}, fmt.Errorf("game_service: close round %d before %s: %w",
			r.Epoch, r.CloseTime.Format("15:04:05"), domain.ErrTooEarly)
	}

	// No lock price means the round is already bound for a refund; skip
	// the oracle round trip.
	var price *decimal.Decimal
	if r.LockPrice != nil {
		price = s.fetchPrice(ctx, cfg, "close", r.Epoch)
	}

	candidate := r
	candidate.ClosePrice = price
	outcome := settlement.Decide(candidate)

	if err := s.rounds.Close(ctx, r.Epoch, price, outcome, cfg.FeeBps, now); err != nil {
		return domain.Round{}, fmt.Errorf("game_service: close round %d: %w", r.Epoch, err)
	}

	// The fee exists only on decided rounds; refunds return every stake
	// in full.
	var fee uint64
	if outcome == domain.OutcomeUp || outcome == domain.OutcomeDown {
		pool, poolErr := settlement.Pool(r)
		if poolErr != nil {
			return domain.Round{}, fmt.Errorf("game_service: pool of round %d: %w", r.Epoch, poolErr)
		}
		fee = settlement.Fee(pool, cfg.FeeBps)
		if fee > 0 {
			if err := s.custody.Transfer(ctx, domain.PoolAccount, cfg.TreasuryAddress, fee); err != nil {
				// The round is closed; the fee move is reconciled from
				// the audit log rather than reopening the round.
				s.logger.ErrorContext(ctx, "fee transfer failed",
					slog.Uint64("epoch", r.Epoch),
					slog.Uint64("fee", fee),
					slog.String("error", err.Error()),
				)
				s.auditLog(ctx, "fee_transfer_failed", map[string]any{
					"epoch": r.Epoch,
					"fee":   fee,
					"error": err.Error(),
				})
			}
		}
	}

	closed, err := s.rounds.Get(ctx, r.Epoch)
	if err != nil {
		return domain.Round{}, fmt.Errorf("game_service: reload round %d: %w", r.Epoch, err)
	}

	s.logger.InfoContext(ctx, "round closed",
		slog.Uint64("epoch", r.Epoch),
		slog.String("outcome", string(outcome)),
		slog.Uint64("fee", fee),
	)
	s.publishEvent(ctx, ChannelRounds, "round_closed", map[string]any{
		"epoch":       r.Epoch,
		"outcome":     outcome,
		"close_price": price,
		"fee":         fee,
	})
	s.auditLog(ctx, "round_closed", map[string]any{
		"epoch":       r.Epoch,
		"outcome":     string(outcome),
		"close_price": decimalPtrAny(price),
		"fee":         fee,
	})

	return closed, nil
}

// fetchPrice queries the oracle at the current clock time. Any failure is
// logged and reported as a missing price; the lifecycle never blocks on
// the oracle.
func (s *GameService) fetchPrice(ctx context.Context, cfg domain.GameConfig, stage string, epoch uint64) *decimal.Decimal {
	pt, err := s.oracle.GetPrice(ctx, cfg.AssetID, s.clock.Now())
	if err != nil {
		s.logger.WarnContext(ctx, "oracle unavailable",
			slog.String("stage", stage),
			slog.Uint64("epoch", epoch),
			slog.String("asset_id", cfg.AssetID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return &pt.Price
}

func decimalPtrAny(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
