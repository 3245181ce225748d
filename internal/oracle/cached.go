package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Clish254/prediction-game/internal/domain"
)

// Cached wraps an inner oracle with a shared price cache. Successful reads
// refresh the cache; when the inner oracle fails, the last cached
// observation is served as long as it is within maxStale of the requested
// time.
type Cached struct {
	inner    domain.PriceOracle
	cache    domain.PriceCache
	maxStale time.Duration
	logger   *slog.Logger
}

// NewCached creates a Cached oracle. A zero maxStale disables the cache
// fallback entirely; cache writes still happen so other consumers see
// fresh prices.
func NewCached(inner domain.PriceOracle, cache domain.PriceCache, maxStale time.Duration, logger *slog.Logger) *Cached {
	return &Cached{
		inner:    inner,
		cache:    cache,
		maxStale: maxStale,
		logger:   logger.With(slog.String("component", "cached_oracle")),
	}
}

// GetPrice delegates to the inner oracle, falling back to the cache on
// failure. Cache write failures are logged but never surfaced; the oracle
// answer is already in hand.
func (c *Cached) GetPrice(ctx context.Context, assetID string, at time.Time) (domain.PricePoint, error) {
	pt, err := c.inner.GetPrice(ctx, assetID, at)
	if err == nil {
		if cacheErr := c.cache.SetPrice(ctx, assetID, pt.Price, pt.Timestamp); cacheErr != nil {
			c.logger.WarnContext(ctx, "price cache write failed",
				slog.String("asset_id", assetID),
				slog.String("error", cacheErr.Error()),
			)
		}
		return pt, nil
	}

	if c.maxStale <= 0 {
		return domain.PricePoint{}, err
	}

	price, ts, cacheErr := c.cache.GetPrice(ctx, assetID)
	if cacheErr != nil {
		return domain.PricePoint{}, err
	}
	if at.Sub(ts) > c.maxStale {
		return domain.PricePoint{}, fmt.Errorf("oracle: cached price for %q older than %s: %w", assetID, c.maxStale, domain.ErrOracleUnavailable)
	}

	c.logger.WarnContext(ctx, "serving cached price after oracle failure",
		slog.String("asset_id", assetID),
		slog.Time("observed_at", ts),
		slog.String("error", err.Error()),
	)
	return domain.PricePoint{Price: price, Timestamp: ts}, nil
}

// Compile-time interface check.
var _ domain.PriceOracle = (*Cached)(nil)
