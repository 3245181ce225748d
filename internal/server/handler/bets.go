package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Clish254/prediction-game/internal/domain"
)

// BetService defines the methods the bet handler requires from the service
// layer.
type BetService interface {
	PlaceBet(ctx context.Context, participant string, side domain.Side, amount uint64) (domain.Bet, error)
	WithdrawBet(ctx context.Context, participant string) (uint64, error)
	Claim(ctx context.Context, epoch uint64, participant string) (uint64, error)
	GetBet(ctx context.Context, epoch uint64, participant string) (domain.Bet, error)
	ListParticipantBets(ctx context.Context, participant string, opts domain.ListOpts) ([]domain.Bet, error)
}

// BetHandler serves bet and claim HTTP endpoints.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{bets: bets, logger: logger}
}

type placeBetRequest struct {
	Participant string `json:"participant"`
	Side        string `json:"side"`
	Amount      uint64 `json:"amount"`
}

// PlaceBet stakes funds on the active round.
// POST /api/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Participant == "" {
		writeError(w, http.StatusBadRequest, "participant is required")
		return
	}
	side := domain.Side(req.Side)
	if !side.Valid() {
		writeError(w, http.StatusBadRequest, `side must be "up" or "down"`)
		return
	}

	bet, err := h.bets.PlaceBet(r.Context(), req.Participant, side, req.Amount)
	if err != nil {
		writeDomainError(w, r, h.logger, "place bet", err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

type withdrawBetRequest struct {
	Participant string `json:"participant"`
}

// WithdrawBet cancels the participant's bet on the active round while
// bidding is still open.
// POST /api/bets/withdraw
func (h *BetHandler) WithdrawBet(w http.ResponseWriter, r *http.Request) {
	var req withdrawBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Participant == "" {
		writeError(w, http.StatusBadRequest, "participant is required")
		return
	}

	amount, err := h.bets.WithdrawBet(r.Context(), req.Participant)
	if err != nil {
		writeDomainError(w, r, h.logger, "withdraw bet", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "withdrawn",
		"amount": amount,
	})
}

type claimRequest struct {
	Participant string `json:"participant"`
}

// Claim pays out a winning or refunded bet on a closed round.
// POST /api/rounds/{epoch}/claim
func (h *BetHandler) Claim(w http.ResponseWriter, r *http.Request) {
	epoch, err := parseEpoch(r, "epoch")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid epoch")
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Participant == "" {
		writeError(w, http.StatusBadRequest, "participant is required")
		return
	}

	payout, err := h.bets.Claim(r.Context(), epoch, req.Participant)
	if err != nil {
		writeDomainError(w, r, h.logger, "claim", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "claimed",
		"epoch":  epoch,
		"payout": payout,
	})
}

// GetBet returns a participant's bet on a round.
// GET /api/rounds/{epoch}/bets/{participant}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	epoch, err := parseEpoch(r, "epoch")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid epoch")
		return
	}
	participant := pathParam(r, "participant")
	if participant == "" {
		writeError(w, http.StatusBadRequest, "missing participant")
		return
	}

	bet, err := h.bets.GetBet(r.Context(), epoch, participant)
	if err != nil {
		writeDomainError(w, r, h.logger, "get bet", err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// ListParticipantBets returns a participant's bet history, newest first.
// GET /api/participants/{participant}/bets
func (h *BetHandler) ListParticipantBets(w http.ResponseWriter, r *http.Request) {
	participant := pathParam(r, "participant")
	if participant == "" {
		writeError(w, http.StatusBadRequest, "missing participant")
		return
	}

	bets, err := h.bets.ListParticipantBets(r.Context(), participant, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, "list participant bets", err)
		return
	}
	if bets == nil {
		bets = []domain.Bet{}
	}
	writeJSON(w, http.StatusOK, listBetsResponse{Bets: bets})
}
