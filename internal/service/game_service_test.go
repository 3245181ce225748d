package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Clish254/prediction-game/internal/custody"
	"github.com/Clish254/prediction-game/internal/domain"
	"github.com/Clish254/prediction-game/internal/store/memory"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeOracle serves a scripted price, or fails when down.
type fakeOracle struct {
	mu    sync.Mutex
	price decimal.Decimal
	down  bool
}

func (o *fakeOracle) GetPrice(_ context.Context, _ string, _ time.Time) (domain.PricePoint, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.down {
		return domain.PricePoint{}, domain.ErrOracleUnavailable
	}
	return domain.PricePoint{Price: o.price, Timestamp: time.Now()}, nil
}

func (o *fakeOracle) setPrice(p string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.price = decimal.RequireFromString(p)
	o.down = false
}

func (o *fakeOracle) setDown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.down = true
}

// nopBus drops every event.
type nopBus struct{}

func (nopBus) Publish(context.Context, string, []byte) error { return nil }
func (nopBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}
func (nopBus) StreamAppend(context.Context, string, []byte) error { return nil }
func (nopBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type fixture struct {
	svc      *GameService
	clock    *fakeClock
	oracle   *fakeOracle
	balances *memory.BalanceStore
	cfg      domain.GameConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	oracle := &fakeOracle{price: decimal.RequireFromString("100")}
	balances := memory.NewBalanceStore()

	svc := NewGameService(
		memory.NewRoundStore(),
		memory.NewBetStore(),
		memory.NewGameConfigStore(),
		custody.New(balances, logger),
		oracle,
		clock,
		nopBus{},
		memory.NewAuditStore(),
		logger,
	)

	cfg := domain.GameConfig{
		AssetID:              "BTC-USD",
		RoundIntervalSeconds: 300,
		BidBufferSeconds:     30,
		MinBetAmount:         10,
		FeeBps:               1500,
		TreasuryAddress:      "treasury",
	}

	return &fixture{svc: svc, clock: clock, oracle: oracle, balances: balances, cfg: cfg}
}

func (f *fixture) genesis(t *testing.T) domain.Round {
	t.Helper()
	r, err := f.svc.Genesis(context.Background(), f.cfg)
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	return r
}

func (f *fixture) fund(t *testing.T, participant string, amount uint64) {
	t.Helper()
	if err := f.svc.Deposit(context.Background(), participant, amount); err != nil {
		t.Fatalf("deposit for %s: %v", participant, err)
	}
}

func (f *fixture) mustBalance(t *testing.T, account string) uint64 {
	t.Helper()
	bal, err := f.svc.Balance(context.Background(), account)
	if err != nil {
		t.Fatalf("balance of %s: %v", account, err)
	}
	return bal
}

func TestGenesis(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.genesis(t)
	if r.Epoch != 1 {
		t.Fatalf("genesis epoch = %d, want 1", r.Epoch)
	}
	if got := r.LockTime.Sub(r.OpenTime); got != 5*time.Minute {
		t.Errorf("lock window = %s, want 5m", got)
	}
	if got := r.CloseTime.Sub(r.LockTime); got != 5*time.Minute {
		t.Errorf("close window = %s, want 5m", got)
	}

	if _, err := f.svc.Genesis(ctx, f.cfg); !errors.Is(err, domain.ErrAlreadyInitialized) {
		t.Errorf("second genesis err = %v, want ErrAlreadyInitialized", err)
	}
}

func TestLockRoundTooEarly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.genesis(t)

	// Clock still well before the lock time.
	f.clock.Advance(100 * time.Second)
	if _, err := f.svc.LockRound(ctx); !errors.Is(err, domain.ErrTooEarly) {
		t.Fatalf("lock err = %v, want ErrTooEarly", err)
	}

	r, err := f.svc.GetActiveRound(ctx)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if r.State != domain.RoundStateCreated {
		t.Errorf("state after failed lock = %s, want created", r.State)
	}
}

func TestLockRoundStartsNextRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.genesis(t)

	f.clock.Advance(5 * time.Minute)
	f.oracle.setPrice("100.5")

	locked, err := f.svc.LockRound(ctx)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if locked.State != domain.RoundStateLocked {
		t.Errorf("state = %s, want locked", locked.State)
	}
	if locked.LockPrice == nil || !locked.LockPrice.Equal(decimal.RequireFromString("100.5")) {
		t.Errorf("lock price = %v, want 100.5", locked.LockPrice)
	}

	next, err := f.svc.GetActiveRound(ctx)
	if err != nil {
		t.Fatalf("get next active: %v", err)
	}
	if next.Epoch != first.Epoch+1 {
		t.Errorf("next epoch = %d, want %d", next.Epoch, first.Epoch+1)
	}
	if !next.OpenTime.Equal(first.LockTime) {
		t.Errorf("next open %s != previous lock %s, windows must be contiguous", next.OpenTime, first.LockTime)
	}

	if _, err := f.svc.LockRound(ctx); errors.Is(err, domain.ErrAlreadyLocked) {
		t.Fatalf("locking the fresh round should fail TooEarly, got AlreadyLocked")
	}
}

func TestPlaceBetValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.genesis(t)
	f.fund(t, "alice", 1000)

	if _, err := f.svc.PlaceBet(ctx, "alice", domain.SideUp, 5); !errors.Is(err, domain.ErrBetTooSmall) {
		t.Errorf("small bet err = %v, want ErrBetTooSmall", err)
	}

	if _, err := f.svc.PlaceBet(ctx, "alice", domain.SideUp, 100); err != nil {
		t.Fatalf("place bet: %v", err)
	}
	if _, err := f.svc.PlaceBet(ctx, "alice", domain.SideDown, 100); !errors.Is(err, domain.ErrDuplicateBet) {
		t.Errorf("duplicate bet err = %v, want ErrDuplicateBet", err)
	}

	if _, err := f.svc.PlaceBet(ctx, "bob", domain.SideDown, 100); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("unfunded bet err = %v, want ErrInsufficientBalance", err)
	}
	// A failed stake leaves no bet row behind.
	if _, err := f.svc.GetBet(ctx, 1, "bob"); !errors.Is(err, domain.ErrBetNotFound) {
		t.Errorf("bet after failed stake err = %v, want ErrBetNotFound", err)
	}

	if got := f.mustBalance(t, "alice"); got != 900 {
		t.Errorf("alice balance = %d, want 900", got)
	}
	if got := f.mustBalance(t, domain.PoolAccount); got != 100 {
		t.Errorf("pool balance = %d, want 100", got)
	}
}

func TestPlaceBetBidBuffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.genesis(t)
	f.fund(t, "alice", 1000)

	// Inside the bid buffer: 20s before lock with a 30s buffer.
	f.clock.Advance(5*time.Minute - 20*time.Second)
	if _, err := f.svc.PlaceBet(ctx, "alice", domain.SideUp, 100); !errors.Is(err, domain.ErrRoundNotBiddable) {
		t.Fatalf("bet inside buffer err = %v, want ErrRoundNotBiddable", err)
	}
}

func TestWithdrawBet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.genesis(t)
	f.fund(t, "alice", 1000)

	if _, err := f.svc.PlaceBet(ctx, "alice", domain.SideUp, 100); err != nil {
		t.Fatalf("place bet: %v", err)
	}

	amount, err := f.svc.WithdrawBet(ctx, "alice")
	if err != nil {
		t.Fatalf("withdraw bet: %v", err)
	}
	if amount != 100 {
		t.Errorf("withdrawn = %d, want 100", amount)
	}
	if got := f.mustBalance(t, "alice"); got != 1000 {
		t.Errorf("alice balance = %d, want 1000", got)
	}

	r, err := f.svc.GetActiveRound(ctx)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if r.TotalUpAmount != 0 || r.UpBetCount != 0 {
		t.Errorf("round totals after withdrawal = %d/%d, want 0/0", r.TotalUpAmount, r.UpBetCount)
	}

	if _, err := f.svc.WithdrawBet(ctx, "alice"); !errors.Is(err, domain.ErrBetNotFound) {
		t.Errorf("second withdrawal err = %v, want ErrBetNotFound", err)
	}
}

// settleRound drives epoch 1 through lock and close at the given prices.
func settleRound(t *testing.T, f *fixture, lockPrice, closePrice string) domain.Round {
	t.Helper()
	ctx := context.Background()

	f.clock.Advance(5 * time.Minute)
	f.oracle.setPrice(lockPrice)
	if _, err := f.svc.LockRound(ctx); err != nil {
		t.Fatalf("lock: %v", err)
	}

	f.clock.Advance(5 * time.Minute)
	f.oracle.setPrice(closePrice)
	r, err := f.svc.CloseRound(ctx)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	return r
}

func TestSettlementUpWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.genesis(t)
	f.fund(t, "alice", 100)
	f.fund(t, "bob", 50)

	if _, err := f.svc.PlaceBet(ctx, "alice", domain.SideUp, 100); err != nil {
		t.Fatalf("alice bet: %v", err)
	}
	if _, err := f.svc.PlaceBet(ctx, "bob", domain.SideDown, 50); err != nil {
		t.Fatalf("bob bet: %v", err)
	}

	r := settleRound(t, f, "100", "110")
	if r.Outcome == nil || *r.Outcome != domain.OutcomeUp {
		t.Fatalf("outcome = %v, want up", r.Outcome)
	}

	// Pool 150, fee floor(150*1500/10000) = 22, credited to the treasury
	// at close.
	if got := f.mustBalance(t, "treasury"); got != 22 {
		t.Errorf("treasury = %d, want 22", got)
	}

	payout, err := f.svc.Claim(ctx, 1, "alice")
	if err != nil {
		t.Fatalf("alice claim: %v", err)
	}
	if payout != 128 {
		t.Errorf("alice payout = %d, want 128", payout)
	}
	if got := f.mustBalance(t, "alice"); got != 128 {
		t.Errorf("alice balance = %d, want 128", got)
	}

	if _, err := f.svc.Claim(ctx, 1, "bob"); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Errorf("loser claim err = %v, want ErrNothingToClaim", err)
	}
}

func TestSettlementDownWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.genesis(t)
	f.fund(t, "alice", 100)
	f.fund(t, "bob", 50)

	if _, err := f.svc.PlaceBet(ctx, "alice", domain.SideUp, 100); err != nil {
		t.Fatalf("alice bet: %v", err)
	}
	if _, err := f.svc.PlaceBet(ctx, "bob", domain.SideDown, 50); err != nil {
		t.Fatalf("bob bet: %v", err)
	}

	r := settleRound(t, f, "100", "90")
	if r.Outcome == nil || *r.Outcome != domain.OutcomeDown {
		t.Fatalf("outcome = %v, want down", r.Outcome)
	}

	payout, err := f.svc.Claim(ctx, 1, "bob")
	if err != nil {
		t.Fatalf("bob claim: %v", err)
	}
	if payout != 128 {
		t.Errorf("bob payout = %d, want 128", payout)
	}
	if _, err := f.svc.Claim(ctx, 1, "alice"); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Errorf("loser claim err = %v, want ErrNothingToClaim", err)
	}
}

func TestSettlementTieRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.genesis(t)
	f.fund(t, "alice", 100)
	f.fund(t, "bob", 50)

	if _, err := f.svc.PlaceBet(ctx, "alice", domain.SideUp, 100); err != nil {
		t.Fatalf("alice bet: %v", err)
	}
	if _, err := f.svc.PlaceBet(ctx, "bob", domain.SideDown, 50); err != nil {
		t.Fatalf("bob bet: %v", err)
	}

	r := settleRound(t, f, "100", "100")
	if r.Outcome == nil || *r.Outcome != domain.OutcomeRefund {
		t.Fatalf("outcome = %v, want refund", r.Outcome)
	}
	if got := f.mustBalance(t, "treasury"); got != 0 {
		t.Errorf("treasury on refund = %d, want 0", got)
	}

	for name, want := range map[string]uint64{"alice": 100, "bob": 50} {
		payout, err := f.svc.Claim(ctx, 1, name)
		if err != nil {
			t.Fatalf("%s claim: %v", name, err)
		}
		if payout != want {
			t.Errorf("%s refund = %d, want %d", name, payout, want)
		}
	}
}

func TestSettlementOneSidedRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.genesis(t)
	f.fund(t, "alice", 100)

	if _, err := f.svc.PlaceBet(ctx, "alice", domain.SideUp, 100); err != nil {
		t.Fatalf("alice bet: %v", err)
	}

	r := settleRound(t, f, "100", "110")
	if r.Outcome == nil || *r.Outcome != domain.OutcomeRefund {
		t.Fatalf("one-sided outcome = %v, want refund", r.Outcome)
	}

	payout, err := f.svc.Claim(ctx, 1, "alice")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if payout != 100 {
		t.Errorf("refund = %d, want full stake 100", payout)
	}
	if got := f.mustBalance(t, "treasury"); got != 0 {
		t.Errorf("treasury = %d, want 0 on one-sided round", got)
	}
}

func TestOracleFailureAtLockRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.genesis(t)
	f.fund(t, "alice", 100)
	f.fund(t, "bob", 50)

	if _, err := f.svc.PlaceBet(ctx, "alice", domain.SideUp, 100); err != nil {
		t.Fatalf("alice bet: %v", err)
	}
	if _, err := f.svc.PlaceBet(ctx, "bob", domain.SideDown, 50); err != nil {
		t.Fatalf("bob bet: %v", err)
	}

	f.clock.Advance(5 * time.Minute)
	f.oracle.setDown()
	locked, err := f.svc.LockRound(ctx)
	if err != nil {
		t.Fatalf("lock with oracle down: %v", err)
	}
	if locked.State != domain.RoundStateLocked {
		t.Fatalf("state = %s, want locked despite oracle failure", locked.State)
	}
	if locked.LockPrice != nil {
		t.Fatalf("lock price = %v, want nil", locked.LockPrice)
	}

	f.clock.Advance(5 * time.Minute)
	f.oracle.setPrice("110")
	r, err := f.svc.CloseRound(ctx)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if r.Outcome == nil || *r.Outcome != domain.OutcomeRefund {
		t.Fatalf("outcome = %v, want refund after oracle failure at lock", r.Outcome)
	}

	payout, err := f.svc.Claim(ctx, 1, "alice")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if payout != 100 {
		t.Errorf("refund = %d, want 100", payout)
	}
}

func TestClaimIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.genesis(t)
	f.fund(t, "alice", 100)
	f.fund(t, "bob", 50)

	if _, err := f.svc.PlaceBet(ctx, "alice", domain.SideUp, 100); err != nil {
		t.Fatalf("alice bet: %v", err)
	}
	if _, err := f.svc.PlaceBet(ctx, "bob", domain.SideDown, 50); err != nil {
		t.Fatalf("bob bet: %v", err)
	}
	settleRound(t, f, "100", "110")

	if _, err := f.svc.Claim(ctx, 1, "alice"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := f.svc.Claim(ctx, 1, "alice"); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("second claim err = %v, want ErrAlreadyClaimed", err)
	}
	if got := f.mustBalance(t, "alice"); got != 128 {
		t.Errorf("alice balance after double claim = %d, want 128 exactly once", got)
	}
}

func TestClaimBeforeClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.genesis(t)
	f.fund(t, "alice", 100)

	if _, err := f.svc.PlaceBet(ctx, "alice", domain.SideUp, 100); err != nil {
		t.Fatalf("bet: %v", err)
	}
	if _, err := f.svc.Claim(ctx, 1, "alice"); !errors.Is(err, domain.ErrRoundNotClosed) {
		t.Errorf("claim on open round err = %v, want ErrRoundNotClosed", err)
	}
}

func TestFeeRateFrozenAtClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.genesis(t)
	f.fund(t, "alice", 100)
	f.fund(t, "bob", 50)

	if _, err := f.svc.PlaceBet(ctx, "alice", domain.SideUp, 100); err != nil {
		t.Fatalf("alice bet: %v", err)
	}
	if _, err := f.svc.PlaceBet(ctx, "bob", domain.SideDown, 50); err != nil {
		t.Fatalf("bob bet: %v", err)
	}
	settleRound(t, f, "100", "110")

	// Raising the fee after close must not change the settled round.
	newFee := uint32(5000)
	if _, err := f.svc.UpdateConfig(ctx, ConfigUpdate{FeeBps: &newFee}); err != nil {
		t.Fatalf("update config: %v", err)
	}

	payout, err := f.svc.Claim(ctx, 1, "alice")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if payout != 128 {
		t.Errorf("payout after fee change = %d, want 128 at the close-time rate", payout)
	}
}

func TestTreasuryWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.genesis(t)
	f.fund(t, "alice", 100)
	f.fund(t, "bob", 50)

	if _, err := f.svc.PlaceBet(ctx, "alice", domain.SideUp, 100); err != nil {
		t.Fatalf("alice bet: %v", err)
	}
	if _, err := f.svc.PlaceBet(ctx, "bob", domain.SideDown, 50); err != nil {
		t.Fatalf("bob bet: %v", err)
	}
	settleRound(t, f, "100", "110")

	if err := f.svc.WithdrawTreasury(ctx, "owner", 22); err != nil {
		t.Fatalf("withdraw treasury: %v", err)
	}
	if got := f.mustBalance(t, "owner"); got != 22 {
		t.Errorf("owner balance = %d, want 22", got)
	}

	if err := f.svc.WithdrawTreasury(ctx, "owner", 1); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("overdraw err = %v, want ErrInsufficientBalance", err)
	}
}

func TestPoolConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.genesis(t)

	stakes := map[string]struct {
		side   domain.Side
		amount uint64
	}{
		"a": {domain.SideUp, 33},
		"b": {domain.SideUp, 67},
		"c": {domain.SideDown, 41},
		"d": {domain.SideDown, 59},
	}
	var total uint64
	for name, st := range stakes {
		f.fund(t, name, st.amount)
		if _, err := f.svc.PlaceBet(ctx, name, st.side, st.amount); err != nil {
			t.Fatalf("%s bet: %v", name, err)
		}
		total += st.amount
	}

	settleRound(t, f, "100", "110")

	var paid uint64
	for name, st := range stakes {
		payout, err := f.svc.Claim(ctx, 1, name)
		if errors.Is(err, domain.ErrNothingToClaim) {
			continue
		}
		if err != nil {
			t.Fatalf("%s claim: %v", name, err)
		}
		if st.side != domain.SideUp {
			t.Errorf("%s on the losing side got paid %d", name, payout)
		}
		paid += payout
	}

	fee := f.mustBalance(t, "treasury")
	dust := f.mustBalance(t, domain.PoolAccount)
	if paid+fee+dust != total {
		t.Errorf("payouts %d + fee %d + dust %d != pool %d", paid, fee, dust, total)
	}
	if paid+fee > total {
		t.Errorf("distributed %d exceeds pool %d", paid+fee, total)
	}
}
