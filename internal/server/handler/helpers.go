package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Clish254/prediction-game/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// domainStatus maps a known domain error to an HTTP status code. It returns
// false for unrecognized errors, which handlers report as a 500.
func domainStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrRoundNotFound),
		errors.Is(err, domain.ErrBetNotFound),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, domain.ErrBetTooSmall),
		errors.Is(err, domain.ErrNothingToClaim),
		errors.Is(err, domain.ErrAmountOverflow),
		errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusBadRequest, true
	case errors.Is(err, domain.ErrTooEarly),
		errors.Is(err, domain.ErrRoundNotBiddable),
		errors.Is(err, domain.ErrAlreadyLocked),
		errors.Is(err, domain.ErrNotLocked),
		errors.Is(err, domain.ErrRoundNotClosed),
		errors.Is(err, domain.ErrAlreadyClaimed),
		errors.Is(err, domain.ErrRoundAlreadyActive),
		errors.Is(err, domain.ErrAlreadyInitialized),
		errors.Is(err, domain.ErrDuplicateBet):
		return http.StatusConflict, true
	case errors.Is(err, domain.ErrOracleUnavailable):
		return http.StatusServiceUnavailable, true
	}
	return 0, false
}

// writeDomainError maps a service error onto the wire: known domain errors
// keep their message and mapped status, anything else becomes an opaque 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	if status, ok := domainStatus(err); ok {
		cause := err
		for {
			u := errors.Unwrap(cause)
			if u == nil {
				break
			}
			cause = u
		}
		writeError(w, status, cause.Error())
		return
	}
	logger.ErrorContext(r.Context(), op+" failed",
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, op+" failed")
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}

	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Since = &t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Until = &t
		}
	}

	return opts
}

// parseEpoch parses an epoch path parameter.
func parseEpoch(r *http.Request, name string) (uint64, error) {
	return strconv.ParseUint(pathParam(r, name), 10, 64)
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
