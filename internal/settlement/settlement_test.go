package settlement

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Clish254/prediction-game/internal/domain"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func closedRound(lock, close *decimal.Decimal, up, down uint64) domain.Round {
	r := domain.Round{
		Epoch:           1,
		State:           domain.RoundStateClosed,
		LockPrice:       lock,
		ClosePrice:      close,
		TotalUpAmount:   up,
		TotalDownAmount: down,
	}
	outcome := Decide(r)
	r.Outcome = &outcome
	now := time.Now()
	r.ClosedAt = &now
	return r
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		lock     *decimal.Decimal
		close    *decimal.Decimal
		up, down uint64
		want     domain.Outcome
	}{
		{"close above lock", dec("100"), dec("110"), 100, 50, domain.OutcomeUp},
		{"close below lock", dec("100"), dec("90"), 100, 50, domain.OutcomeDown},
		{"tie refunds", dec("100"), dec("100"), 100, 50, domain.OutcomeRefund},
		{"only up side", dec("100"), dec("110"), 100, 0, domain.OutcomeRefund},
		{"only down side", dec("100"), dec("90"), 0, 50, domain.OutcomeRefund},
		{"missing lock price", nil, dec("110"), 100, 50, domain.OutcomeRefund},
		{"missing close price", dec("100"), nil, 100, 50, domain.OutcomeRefund},
		{"sub-cent move decides", dec("100.0001"), dec("100.0002"), 100, 50, domain.OutcomeUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := domain.Round{
				LockPrice:       tt.lock,
				ClosePrice:      tt.close,
				TotalUpAmount:   tt.up,
				TotalDownAmount: tt.down,
			}
			if got := Decide(r); got != tt.want {
				t.Errorf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFee(t *testing.T) {
	// 15% of a 150 pool floors to 22.
	if got := Fee(150, 1500); got != 22 {
		t.Errorf("Fee(150, 1500) = %d, want 22", got)
	}
	if got := Fee(0, 1500); got != 0 {
		t.Errorf("Fee(0, 1500) = %d, want 0", got)
	}
	// Zero-fee game.
	if got := Fee(150, 0); got != 0 {
		t.Errorf("Fee(150, 0) = %d, want 0", got)
	}
	// No overflow near the top of the range.
	huge := uint64(domain.MaxAmount)
	if got := Fee(huge, 9999); got >= huge {
		t.Errorf("Fee(%d, 9999) = %d, want below pool", huge, got)
	}
}

func TestPayoutUpWins(t *testing.T) {
	// Interval scenario: A bets 100 up, B bets 50 down, price 100 -> 110.
	r := closedRound(dec("100"), dec("110"), 100, 50)

	a := domain.Bet{Epoch: 1, Participant: "alice", Side: domain.SideUp, Amount: 100}
	got, err := Payout(a, r, 1500)
	if err != nil {
		t.Fatalf("Payout(up winner): %v", err)
	}
	// pool=150, fee=22, distributable=128, floor(100*128/100)=128.
	if got != 128 {
		t.Errorf("up winner payout = %d, want 128", got)
	}

	b := domain.Bet{Epoch: 1, Participant: "bob", Side: domain.SideDown, Amount: 50}
	got, err = Payout(b, r, 1500)
	if err != nil {
		t.Fatalf("Payout(down loser): %v", err)
	}
	if got != 0 {
		t.Errorf("losing payout = %d, want 0", got)
	}
}

func TestPayoutDownWins(t *testing.T) {
	// Same pool, price 100 -> 90.
	r := closedRound(dec("100"), dec("90"), 100, 50)

	b := domain.Bet{Epoch: 1, Participant: "bob", Side: domain.SideDown, Amount: 50}
	got, err := Payout(b, r, 1500)
	if err != nil {
		t.Fatalf("Payout(down winner): %v", err)
	}
	// floor(50*128/50) = 128.
	if got != 128 {
		t.Errorf("down winner payout = %d, want 128", got)
	}
}

func TestPayoutRefund(t *testing.T) {
	// One-sided pool refunds the full stake with no fee, whatever the prices.
	r := closedRound(dec("100"), dec("110"), 100, 0)
	if *r.Outcome != domain.OutcomeRefund {
		t.Fatalf("one-sided round outcome = %v, want refund", *r.Outcome)
	}

	a := domain.Bet{Epoch: 1, Participant: "alice", Side: domain.SideUp, Amount: 100}
	got, err := Payout(a, r, 1500)
	if err != nil {
		t.Fatalf("Payout(refund): %v", err)
	}
	if got != 100 {
		t.Errorf("refund payout = %d, want 100", got)
	}
}

func TestPayoutRequiresClosedRound(t *testing.T) {
	r := domain.Round{Epoch: 1, State: domain.RoundStateLocked}
	bet := domain.Bet{Epoch: 1, Side: domain.SideUp, Amount: 10}
	if _, err := Payout(bet, r, 1500); !errors.Is(err, domain.ErrRoundNotClosed) {
		t.Errorf("Payout on locked round: err = %v, want ErrRoundNotClosed", err)
	}
}

// TestPayoutDustBound checks the conservation property: the sum of winning
// payouts never exceeds pool minus fee, and the rounding shortfall is below
// the number of winning bets.
func TestPayoutDustBound(t *testing.T) {
	tests := []struct {
		name   string
		stakes []uint64 // up-side stakes
		down   uint64
	}{
		{"three uneven winners", []uint64{33, 77, 129}, 500},
		{"many tiny winners", []uint64{11, 13, 17, 19, 23, 29, 31}, 1000},
		{"single whale", []uint64{1_000_000_000}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var up uint64
			for _, s := range tt.stakes {
				up += s
			}
			r := closedRound(dec("1"), dec("2"), up, tt.down)

			pool, err := Pool(r)
			if err != nil {
				t.Fatalf("Pool: %v", err)
			}
			fee := Fee(pool, 1500)
			distributable := pool - fee

			var paid uint64
			for i, s := range tt.stakes {
				bet := domain.Bet{Epoch: 1, Side: domain.SideUp, Amount: s}
				p, err := Payout(bet, r, 1500)
				if err != nil {
					t.Fatalf("Payout(winner %d): %v", i, err)
				}
				paid += p
			}

			if paid > distributable {
				t.Errorf("sum of payouts %d exceeds distributable %d", paid, distributable)
			}
			if dust := distributable - paid; dust >= uint64(len(tt.stakes)) {
				t.Errorf("dust %d not below winning bet count %d", dust, len(tt.stakes))
			}
		})
	}
}

func TestPoolOverflow(t *testing.T) {
	r := domain.Round{TotalUpAmount: ^uint64(0), TotalDownAmount: 1}
	if _, err := Pool(r); !errors.Is(err, domain.ErrAmountOverflow) {
		t.Errorf("Pool overflow err = %v, want ErrAmountOverflow", err)
	}
}
