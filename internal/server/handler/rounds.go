package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Clish254/prediction-game/internal/domain"
)

// RoundService defines the methods the round handler requires from the
// service layer.
type RoundService interface {
	GetRound(ctx context.Context, epoch uint64) (domain.Round, error)
	GetActiveRound(ctx context.Context) (domain.Round, error)
	GetLatestRound(ctx context.Context) (domain.Round, error)
	ListRounds(ctx context.Context, opts domain.ListOpts) ([]domain.Round, error)
	ListRoundBets(ctx context.Context, epoch uint64, opts domain.ListOpts) ([]domain.Bet, error)
	LockRound(ctx context.Context) (domain.Round, error)
	CloseRound(ctx context.Context) (domain.Round, error)
}

// RoundHandler serves round-related HTTP endpoints.
type RoundHandler struct {
	rounds RoundService
	logger *slog.Logger
}

// NewRoundHandler creates a RoundHandler.
func NewRoundHandler(rounds RoundService, logger *slog.Logger) *RoundHandler {
	return &RoundHandler{rounds: rounds, logger: logger}
}

type listRoundsResponse struct {
	Rounds []domain.Round `json:"rounds"`
}

// ListRounds returns rounds newest first.
// GET /api/rounds?limit=50&offset=0&since=...&until=...
func (h *RoundHandler) ListRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := h.rounds.ListRounds(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, "list rounds", err)
		return
	}
	if rounds == nil {
		rounds = []domain.Round{}
	}
	writeJSON(w, http.StatusOK, listRoundsResponse{Rounds: rounds})
}

// GetRound returns a single round by epoch.
// GET /api/rounds/{epoch}
func (h *RoundHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	epoch, err := parseEpoch(r, "epoch")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid epoch")
		return
	}

	round, err := h.rounds.GetRound(r.Context(), epoch)
	if err != nil {
		writeDomainError(w, r, h.logger, "get round", err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// GetActiveRound returns the round currently accepting bets.
// GET /api/rounds/active
func (h *RoundHandler) GetActiveRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.rounds.GetActiveRound(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "get active round", err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// GetLatestRound returns the most recently created round.
// GET /api/rounds/latest
func (h *RoundHandler) GetLatestRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.rounds.GetLatestRound(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "get latest round", err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

type listBetsResponse struct {
	Bets []domain.Bet `json:"bets"`
}

// ListRoundBets returns the bets placed on a round.
// GET /api/rounds/{epoch}/bets
func (h *RoundHandler) ListRoundBets(w http.ResponseWriter, r *http.Request) {
	epoch, err := parseEpoch(r, "epoch")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid epoch")
		return
	}

	bets, err := h.rounds.ListRoundBets(r.Context(), epoch, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, "list round bets", err)
		return
	}
	if bets == nil {
		bets = []domain.Bet{}
	}
	writeJSON(w, http.StatusOK, listBetsResponse{Bets: bets})
}

// LockRound advances the active round to locked. The transition is
// permissionless; a keeper normally gets there first.
// POST /api/rounds/lock
func (h *RoundHandler) LockRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.rounds.LockRound(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "lock round", err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// CloseRound settles the oldest locked round.
// POST /api/rounds/close
func (h *RoundHandler) CloseRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.rounds.CloseRound(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "close round", err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}
