package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Clish254/prediction-game/internal/domain"
	"github.com/Clish254/prediction-game/internal/settlement"
)

// PlaceBet stakes funds on one side of the active round. The participant
// must have the funds on their custody account; the stake moves to the pool
// account and the round's side total is bumped in the same serialized
// operation. One bet per participant per round.
func (s *GameService) PlaceBet(ctx context.Context, participant string, side domain.Side, amount uint64) (domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !side.Valid() {
		return domain.Bet{}, fmt.Errorf("game_service: invalid side %q", side)
	}
	if participant == "" {
		return domain.Bet{}, fmt.Errorf("game_service: participant is required")
	}

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("game_service: load config: %w", err)
	}
	if amount < cfg.MinBetAmount {
		return domain.Bet{}, fmt.Errorf("game_service: bet of %d below minimum %d: %w",
			amount, cfg.MinBetAmount, domain.ErrBetTooSmall)
	}

	r, err := s.rounds.GetActive(ctx)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("game_service: get active round: %w", err)
	}

	now := s.clock.Now()
	if !r.Biddable(now, cfg.BidBuffer()) {
		return domain.Bet{}, fmt.Errorf("game_service: round %d: %w", r.Epoch, domain.ErrRoundNotBiddable)
	}

	pool, err := settlement.Pool(r)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("game_service: pool of round %d: %w", r.Epoch, err)
	}
	if amount > domain.MaxAmount-pool {
		return domain.Bet{}, fmt.Errorf("game_service: bet of %d on round %d: %w",
			amount, r.Epoch, domain.ErrAmountOverflow)
	}

	bet := domain.Bet{
		Epoch:       r.Epoch,
		Participant: participant,
		Side:        side,
		Amount:      amount,
		PlacedAt:    now,
	}

	// The bet row goes in first so a duplicate is rejected before any
	// funds move. Later failures unwind in reverse order.
	if err := s.bets.Create(ctx, bet); err != nil {
		return domain.Bet{}, fmt.Errorf("game_service: create bet: %w", err)
	}
	if err := s.custody.Transfer(ctx, participant, domain.PoolAccount, amount); err != nil {
		if delErr := s.bets.Delete(ctx, r.Epoch, participant); delErr != nil {
			s.logger.ErrorContext(ctx, "bet unwind failed",
				slog.Uint64("epoch", r.Epoch),
				slog.String("participant", participant),
				slog.String("error", delErr.Error()),
			)
		}
		return domain.Bet{}, fmt.Errorf("game_service: stake bet: %w", err)
	}
	if err := s.rounds.AddStake(ctx, r.Epoch, side, amount); err != nil {
		if refundErr := s.custody.Transfer(ctx, domain.PoolAccount, participant, amount); refundErr != nil {
			s.logger.ErrorContext(ctx, "stake unwind failed",
				slog.Uint64("epoch", r.Epoch),
				slog.String("participant", participant),
				slog.String("error", refundErr.Error()),
			)
		}
		if delErr := s.bets.Delete(ctx, r.Epoch, participant); delErr != nil {
			s.logger.ErrorContext(ctx, "bet unwind failed",
				slog.Uint64("epoch", r.Epoch),
				slog.String("participant", participant),
				slog.String("error", delErr.Error()),
			)
		}
		return domain.Bet{}, fmt.Errorf("game_service: add stake: %w", err)
	}

	s.logger.InfoContext(ctx, "bet placed",
		slog.Uint64("epoch", r.Epoch),
		slog.String("participant", participant),
		slog.String("side", string(side)),
		slog.Uint64("amount", amount),
	)
	s.publishEvent(ctx, ChannelBets, "bet_placed", map[string]any{
		"epoch":       r.Epoch,
		"participant": participant,
		"side":        side,
		"amount":      amount,
	})
	s.auditLog(ctx, "bet_placed", map[string]any{
		"epoch":       r.Epoch,
		"participant": participant,
		"side":        string(side),
		"amount":      amount,
	})

	return bet, nil
}

// WithdrawBet cancels the participant's bet on the active round while
// bidding is still open, returning the stake to their account. Once the
// bidding window has closed the stake is committed.
func (s *GameService) WithdrawBet(ctx context.Context, participant string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("game_service: load config: %w", err)
	}

	r, err := s.rounds.GetActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("game_service: get active round: %w", err)
	}

	now := s.clock.Now()
	if !r.Biddable(now, cfg.BidBuffer()) {
		return 0, fmt.Errorf("game_service: round %d: %w", r.Epoch, domain.ErrRoundNotBiddable)
	}

	bet, err := s.bets.Get(ctx, r.Epoch, participant)
	if err != nil {
		return 0, fmt.Errorf("game_service: get bet: %w", err)
	}

	if err := s.bets.Delete(ctx, r.Epoch, participant); err != nil {
		return 0, fmt.Errorf("game_service: delete bet: %w", err)
	}
	if err := s.rounds.RemoveStake(ctx, r.Epoch, bet.Side, bet.Amount); err != nil {
		return 0, fmt.Errorf("game_service: remove stake: %w", err)
	}
	if err := s.custody.Transfer(ctx, domain.PoolAccount, participant, bet.Amount); err != nil {
		s.logger.ErrorContext(ctx, "bet refund transfer failed",
			slog.Uint64("epoch", r.Epoch),
			slog.String("participant", participant),
			slog.String("error", err.Error()),
		)
		s.auditLog(ctx, "bet_refund_failed", map[string]any{
			"epoch":       r.Epoch,
			"participant": participant,
			"amount":      bet.Amount,
			"error":       err.Error(),
		})
		return 0, fmt.Errorf("game_service: refund stake: %w", err)
	}

	s.logger.InfoContext(ctx, "bet withdrawn",
		slog.Uint64("epoch", r.Epoch),
		slog.String("participant", participant),
		slog.Uint64("amount", bet.Amount),
	)
	s.publishEvent(ctx, ChannelBets, "bet_withdrawn", map[string]any{
		"epoch":       r.Epoch,
		"participant": participant,
		"amount":      bet.Amount,
	})
	s.auditLog(ctx, "bet_withdrawn", map[string]any{
		"epoch":       r.Epoch,
		"participant": participant,
		"amount":      bet.Amount,
	})

	return bet.Amount, nil
}

// Claim settles the participant's bet on a closed round and moves the
// payout from the pool to their account. A winning or refunded bet pays
// exactly once; losing bets are rejected with ErrNothingToClaim so no
// pointless transfer happens.
func (s *GameService) Claim(ctx context.Context, epoch uint64, participant string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.rounds.Get(ctx, epoch)
	if err != nil {
		return 0, fmt.Errorf("game_service: get round %d: %w", epoch, err)
	}

	bet, err := s.bets.Get(ctx, epoch, participant)
	if err != nil {
		return 0, fmt.Errorf("game_service: get bet: %w", err)
	}
	if bet.Claimed {
		return 0, fmt.Errorf("game_service: claim on round %d: %w", epoch, domain.ErrAlreadyClaimed)
	}

	payout, err := settlement.Payout(bet, r, r.FeeBps)
	if err != nil {
		return 0, fmt.Errorf("game_service: payout on round %d: %w", epoch, err)
	}
	if payout == 0 {
		return 0, fmt.Errorf("game_service: claim on round %d: %w", epoch, domain.ErrNothingToClaim)
	}

	now := s.clock.Now()

	// Mark first, pay second. A crash between the two can under-pay,
	// never double-pay; the audit log carries enough to reconcile.
	if err := s.bets.MarkClaimed(ctx, epoch, participant, payout, now); err != nil {
		return 0, fmt.Errorf("game_service: mark claimed: %w", err)
	}
	if err := s.custody.Transfer(ctx, domain.PoolAccount, participant, payout); err != nil {
		s.logger.ErrorContext(ctx, "payout transfer failed",
			slog.Uint64("epoch", epoch),
			slog.String("participant", participant),
			slog.Uint64("payout", payout),
			slog.String("error", err.Error()),
		)
		s.auditLog(ctx, "payout_transfer_failed", map[string]any{
			"epoch":       epoch,
			"participant": participant,
			"payout":      payout,
			"error":       err.Error(),
		})
		return 0, fmt.Errorf("game_service: pay claim: %w", err)
	}

	s.logger.InfoContext(ctx, "claim paid",
		slog.Uint64("epoch", epoch),
		slog.String("participant", participant),
		slog.Uint64("payout", payout),
	)
	s.publishEvent(ctx, ChannelBets, "claim_paid", map[string]any{
		"epoch":       epoch,
		"participant": participant,
		"payout":      payout,
	})
	s.auditLog(ctx, "claim_paid", map[string]any{
		"epoch":       epoch,
		"participant": participant,
		"payout":      payout,
	})

	return payout, nil
}
