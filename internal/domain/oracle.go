package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is a price observation from an oracle.
type PricePoint struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// PriceOracle supplies asset prices. Implementations return
// ErrOracleUnavailable when no usable price exists at or before the
// requested time; callers must treat that as a well-defined degraded path,
// never as a reason to block.
type PriceOracle interface {
	GetPrice(ctx context.Context, assetID string, at time.Time) (PricePoint, error)
}

// Clock supplies the authoritative current time for every operation. The
// game never reads wall-clock time directly so tests and replays can
// substitute their own clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
