package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Clish254/prediction-game/internal/domain"
)

type stubRoundService struct {
	round domain.Round
	err   error
}

func (s *stubRoundService) GetRound(context.Context, uint64) (domain.Round, error) {
	return s.round, s.err
}
func (s *stubRoundService) GetActiveRound(context.Context) (domain.Round, error) {
	return s.round, s.err
}
func (s *stubRoundService) GetLatestRound(context.Context) (domain.Round, error) {
	return s.round, s.err
}
func (s *stubRoundService) ListRounds(context.Context, domain.ListOpts) ([]domain.Round, error) {
	return nil, s.err
}
func (s *stubRoundService) ListRoundBets(context.Context, uint64, domain.ListOpts) ([]domain.Bet, error) {
	return nil, s.err
}
func (s *stubRoundService) LockRound(context.Context) (domain.Round, error) {
	return s.round, s.err
}
func (s *stubRoundService) CloseRound(context.Context) (domain.Round, error) {
	return s.round, s.err
}

func newTestMux(svc RoundService) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewRoundHandler(svc, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/rounds/active", h.GetActiveRound)
	mux.HandleFunc("GET /api/rounds/{epoch}", h.GetRound)
	mux.HandleFunc("POST /api/rounds/lock", h.LockRound)
	return mux
}

func TestGetRound(t *testing.T) {
	svc := &stubRoundService{round: domain.Round{Epoch: 7, State: domain.RoundStateCreated}}
	mux := newTestMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rounds/7", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got domain.Round
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.Epoch != 7 {
		t.Errorf("epoch = %d, want 7", got.Epoch)
	}
}

func TestGetRoundInvalidEpoch(t *testing.T) {
	mux := newTestMux(&stubRoundService{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rounds/not-a-number", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.ErrRoundNotFound, http.StatusNotFound},
		{"too early", domain.ErrTooEarly, http.StatusConflict},
		{"already locked", domain.ErrAlreadyLocked, http.StatusConflict},
		{"oracle down", domain.ErrOracleUnavailable, http.StatusServiceUnavailable},
		{"unknown", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(&stubRoundService{err: tt.err})

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rounds/lock", nil))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
