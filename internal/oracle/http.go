package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Clish254/prediction-game/internal/domain"
)

// HTTPConfig parameterises the REST ticker oracle.
type HTTPConfig struct {
	// Endpoint is the ticker price endpoint, e.g.
	// https://api.binance.com/api/v3/ticker/price
	Endpoint string
	// Symbols maps asset IDs to exchange ticker symbols, e.g.
	// "BTC-USD" -> "BTCUSDT".
	Symbols map[string]string
	Timeout time.Duration
}

// HTTPOracle reads spot prices from an exchange REST ticker endpoint. It
// needs no API key and returns the price at the moment of the request; the
// observation timestamp is the local receive time.
type HTTPOracle struct {
	cfg    HTTPConfig
	http   *http.Client
	logger *slog.Logger
}

// NewHTTPOracle creates an HTTPOracle.
func NewHTTPOracle(cfg HTTPConfig, logger *slog.Logger) *HTTPOracle {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPOracle{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger.With(slog.String("component", "http_oracle")),
	}
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetPrice fetches the current ticker price for the asset. It returns
// domain.ErrOracleUnavailable when the symbol is unknown, the request
// fails, or the body cannot be parsed. The requested time is ignored; a
// REST ticker can only answer "now".
func (o *HTTPOracle) GetPrice(ctx context.Context, assetID string, _ time.Time) (domain.PricePoint, error) {
	symbol, ok := o.cfg.Symbols[assetID]
	if !ok {
		return domain.PricePoint{}, fmt.Errorf("oracle: no symbol for asset %q: %w", assetID, domain.ErrOracleUnavailable)
	}

	endpoint := strings.TrimSpace(o.cfg.Endpoint)
	if endpoint == "" {
		return domain.PricePoint{}, fmt.Errorf("oracle: ticker endpoint not configured: %w", domain.ErrOracleUnavailable)
	}

	u := endpoint + "?symbol=" + url.QueryEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("oracle: build request: %w", err)
	}

	resp, err := o.http.Do(req)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("oracle: fetch ticker %q: %v: %w", symbol, err, domain.ErrOracleUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		o.logger.WarnContext(ctx, "ticker request failed",
			slog.String("symbol", symbol),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return domain.PricePoint{}, fmt.Errorf("oracle: ticker %q status %d: %w", symbol, resp.StatusCode, domain.ErrOracleUnavailable)
	}

	var ticker tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return domain.PricePoint{}, fmt.Errorf("oracle: decode ticker %q: %v: %w", symbol, err, domain.ErrOracleUnavailable)
	}

	price, err := decimal.NewFromString(ticker.Price)
	if err != nil || price.Sign() <= 0 {
		return domain.PricePoint{}, fmt.Errorf("oracle: invalid ticker price %q for %q: %w", ticker.Price, symbol, domain.ErrOracleUnavailable)
	}

	return domain.PricePoint{
		Price:     price,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Compile-time interface check.
var _ domain.PriceOracle = (*HTTPOracle)(nil)
