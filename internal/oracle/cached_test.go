package oracle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Clish254/prediction-game/internal/domain"
)

type fakeInner struct {
	pt   domain.PricePoint
	err  error
	hits int
}

func (f *fakeInner) GetPrice(ctx context.Context, assetID string, at time.Time) (domain.PricePoint, error) {
	f.hits++
	return f.pt, f.err
}

type fakeCache struct {
	price   decimal.Decimal
	ts      time.Time
	has     bool
	setErr  error
	written int
}

func (f *fakeCache) SetPrice(ctx context.Context, assetID string, price decimal.Decimal, ts time.Time) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.price, f.ts, f.has = price, ts, true
	f.written++
	return nil
}

func (f *fakeCache) GetPrice(ctx context.Context, assetID string) (decimal.Decimal, time.Time, error) {
	if !f.has {
		return decimal.Decimal{}, time.Time{}, domain.ErrNotFound
	}
	return f.price, f.ts, nil
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestCachedRefreshesOnSuccess(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	inner := &fakeInner{pt: domain.PricePoint{Price: decimal.NewFromInt(65000), Timestamp: now}}
	cache := &fakeCache{}
	c := NewCached(inner, cache, time.Minute, testLogger)

	pt, err := c.GetPrice(context.Background(), "BTC-USD", now)
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if !pt.Price.Equal(decimal.NewFromInt(65000)) {
		t.Errorf("price = %s, want 65000", pt.Price)
	}
	if cache.written != 1 {
		t.Errorf("cache writes = %d, want 1", cache.written)
	}
}

func TestCachedFallsBackWithinStaleness(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	inner := &fakeInner{err: domain.ErrOracleUnavailable}
	cache := &fakeCache{price: decimal.NewFromInt(64900), ts: now.Add(-30 * time.Second), has: true}
	c := NewCached(inner, cache, time.Minute, testLogger)

	pt, err := c.GetPrice(context.Background(), "BTC-USD", now)
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if !pt.Price.Equal(decimal.NewFromInt(64900)) {
		t.Errorf("price = %s, want cached 64900", pt.Price)
	}
}

func TestCachedRejectsStaleFallback(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	inner := &fakeInner{err: domain.ErrOracleUnavailable}
	cache := &fakeCache{price: decimal.NewFromInt(64900), ts: now.Add(-10 * time.Minute), has: true}
	c := NewCached(inner, cache, time.Minute, testLogger)

	_, err := c.GetPrice(context.Background(), "BTC-USD", now)
	if !errors.Is(err, domain.ErrOracleUnavailable) {
		t.Fatalf("err = %v, want ErrOracleUnavailable", err)
	}
}

func TestCachedZeroStalenessDisablesFallback(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	inner := &fakeInner{err: domain.ErrOracleUnavailable}
	cache := &fakeCache{price: decimal.NewFromInt(64900), ts: now, has: true}
	c := NewCached(inner, cache, 0, testLogger)

	if _, err := c.GetPrice(context.Background(), "BTC-USD", now); err == nil {
		t.Fatal("expected error with fallback disabled")
	}
}

func TestCachedSurvivesCacheWriteFailure(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	inner := &fakeInner{pt: domain.PricePoint{Price: decimal.NewFromInt(65000), Timestamp: now}}
	cache := &fakeCache{setErr: errors.New("redis down")}
	c := NewCached(inner, cache, time.Minute, testLogger)

	if _, err := c.GetPrice(context.Background(), "BTC-USD", now); err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
}

func TestDisabledAlwaysUnavailable(t *testing.T) {
	_, err := Disabled{}.GetPrice(context.Background(), "BTC-USD", time.Now())
	if !errors.Is(err, domain.ErrOracleUnavailable) {
		t.Fatalf("err = %v, want ErrOracleUnavailable", err)
	}
}
