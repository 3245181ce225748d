package service

import (
	"context"

	"github.com/Clish254/prediction-game/internal/domain"
)

// Read-side operations. These do not take the service mutex; the stores are
// individually consistent and reads never mutate.

// GetConfig returns the current game configuration.
func (s *GameService) GetConfig(ctx context.Context) (domain.GameConfig, error) {
	return s.config.Get(ctx)
}

// GetRound returns a round by epoch.
func (s *GameService) GetRound(ctx context.Context, epoch uint64) (domain.Round, error) {
	return s.rounds.Get(ctx, epoch)
}

// GetActiveRound returns the round currently accepting bets.
func (s *GameService) GetActiveRound(ctx context.Context) (domain.Round, error) {
	return s.rounds.GetActive(ctx)
}

// GetLatestRound returns the most recently created round.
func (s *GameService) GetLatestRound(ctx context.Context) (domain.Round, error) {
	return s.rounds.GetLatest(ctx)
}

// ListRounds returns rounds in descending epoch order.
func (s *GameService) ListRounds(ctx context.Context, opts domain.ListOpts) ([]domain.Round, error) {
	return s.rounds.List(ctx, opts)
}

// GetBet returns a participant's bet for an epoch.
func (s *GameService) GetBet(ctx context.Context, epoch uint64, participant string) (domain.Bet, error) {
	return s.bets.Get(ctx, epoch, participant)
}

// ListRoundBets returns all bets on a round.
func (s *GameService) ListRoundBets(ctx context.Context, epoch uint64, opts domain.ListOpts) ([]domain.Bet, error) {
	return s.bets.ListByRound(ctx, epoch, opts)
}

// ListParticipantBets returns a participant's bet history.
func (s *GameService) ListParticipantBets(ctx context.Context, participant string, opts domain.ListOpts) ([]domain.Bet, error) {
	return s.bets.ListByParticipant(ctx, participant, opts)
}
