package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Clish254/prediction-game/internal/domain"
	"github.com/Clish254/prediction-game/internal/service"
)

// AdminService defines the admin-gated methods the admin handler requires.
type AdminService interface {
	Genesis(ctx context.Context, cfg domain.GameConfig) (domain.Round, error)
	GetConfig(ctx context.Context) (domain.GameConfig, error)
	UpdateConfig(ctx context.Context, upd service.ConfigUpdate) (domain.GameConfig, error)
	TreasuryBalance(ctx context.Context) (uint64, error)
	WithdrawTreasury(ctx context.Context, to string, amount uint64) error
}

// AdminHandler serves game configuration and treasury endpoints. The server
// mounts these behind API-key auth.
type AdminHandler struct {
	admin  AdminService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admin AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

// Genesis initializes the game with its configuration and first round.
// POST /api/admin/genesis
func (h *AdminHandler) Genesis(w http.ResponseWriter, r *http.Request) {
	var cfg domain.GameConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	round, err := h.admin.Genesis(r.Context(), cfg)
	if err != nil {
		writeDomainError(w, r, h.logger, "genesis", err)
		return
	}
	writeJSON(w, http.StatusCreated, round)
}

// GetConfig returns the current game configuration.
// GET /api/config
func (h *AdminHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.admin.GetConfig(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "get config", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type updateConfigRequest struct {
	AssetID         *string `json:"asset_id"`
	MinBetAmount    *uint64 `json:"min_bet_amount"`
	FeeBps          *uint32 `json:"fee_bps"`
	TreasuryAddress *string `json:"treasury_address"`
	OracleAddress   *string `json:"oracle_address"`
}

// UpdateConfig applies a partial configuration update; absent fields keep
// their current values.
// PUT /api/admin/config
func (h *AdminHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cfg, err := h.admin.UpdateConfig(r.Context(), service.ConfigUpdate{
		AssetID:         req.AssetID,
		MinBetAmount:    req.MinBetAmount,
		FeeBps:          req.FeeBps,
		TreasuryAddress: req.TreasuryAddress,
		OracleAddress:   req.OracleAddress,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, "update config", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// GetTreasury returns the accumulated fee balance.
// GET /api/admin/treasury
func (h *AdminHandler) GetTreasury(w http.ResponseWriter, r *http.Request) {
	balance, err := h.admin.TreasuryBalance(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "get treasury", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

type treasuryWithdrawRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// WithdrawTreasury moves accumulated fees out of the treasury.
// POST /api/admin/treasury/withdraw
func (h *AdminHandler) WithdrawTreasury(w http.ResponseWriter, r *http.Request) {
	var req treasuryWithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.To == "" {
		writeError(w, http.StatusBadRequest, "destination is required")
		return
	}
	if req.Amount == 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	if err := h.admin.WithdrawTreasury(r.Context(), req.To, req.Amount); err != nil {
		writeDomainError(w, r, h.logger, "withdraw treasury", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "withdrawn",
		"to":     req.To,
		"amount": req.Amount,
	})
}
