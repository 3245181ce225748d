package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// FundsService defines the custody methods the funds handler requires.
type FundsService interface {
	Deposit(ctx context.Context, participant string, amount uint64) error
	Withdraw(ctx context.Context, participant string, amount uint64) error
	Balance(ctx context.Context, participant string) (uint64, error)
}

// FundsHandler serves account balance endpoints.
type FundsHandler struct {
	funds  FundsService
	logger *slog.Logger
}

// NewFundsHandler creates a FundsHandler.
func NewFundsHandler(funds FundsService, logger *slog.Logger) *FundsHandler {
	return &FundsHandler{funds: funds, logger: logger}
}

type fundsRequest struct {
	Participant string `json:"participant"`
	Amount      uint64 `json:"amount"`
}

// Deposit credits funds to a participant's account.
// POST /api/balances/deposit
func (h *FundsHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.funds.Deposit(r.Context(), req.Participant, req.Amount); err != nil {
		writeDomainError(w, r, h.logger, "deposit", err)
		return
	}
	h.writeBalance(w, r, req.Participant, "deposited")
}

// Withdraw moves funds out of a participant's account.
// POST /api/balances/withdraw
func (h *FundsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.funds.Withdraw(r.Context(), req.Participant, req.Amount); err != nil {
		writeDomainError(w, r, h.logger, "withdraw", err)
		return
	}
	h.writeBalance(w, r, req.Participant, "withdrawn")
}

// GetBalance returns a participant's balance.
// GET /api/balances/{participant}
func (h *FundsHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	participant := pathParam(r, "participant")
	if participant == "" {
		writeError(w, http.StatusBadRequest, "missing participant")
		return
	}

	balance, err := h.funds.Balance(r.Context(), participant)
	if err != nil {
		writeDomainError(w, r, h.logger, "get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"participant": participant,
		"balance":     balance,
	})
}

func (h *FundsHandler) decode(w http.ResponseWriter, r *http.Request) (fundsRequest, bool) {
	var req fundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return req, false
	}
	if req.Participant == "" {
		writeError(w, http.StatusBadRequest, "participant is required")
		return req, false
	}
	if req.Amount == 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return req, false
	}
	return req, true
}

func (h *FundsHandler) writeBalance(w http.ResponseWriter, r *http.Request, participant, status string) {
	balance, err := h.funds.Balance(r.Context(), participant)
	if err != nil {
		writeDomainError(w, r, h.logger, "get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      status,
		"participant": participant,
		"balance":     balance,
	})
}
