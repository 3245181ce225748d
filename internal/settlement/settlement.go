// Package settlement implements the pure payout arithmetic for closed
// rounds: outcome determination, protocol fee, and per-bet claimable
// amounts. Everything here is a function of a round and its aggregate
// stakes; no I/O, no clock, no stores.
package settlement

import (
	"fmt"
	"math/big"

	"github.com/Clish254/prediction-game/internal/domain"
)

// feeDenominator converts basis points to a fraction.
const feeDenominator = 10000

// Pool returns the total staked amount of a round. It fails closed on
// overflow rather than wrapping; this is financial state.
func Pool(r domain.Round) (uint64, error) {
	sum := r.TotalUpAmount + r.TotalDownAmount
	if sum < r.TotalUpAmount {
		return 0, fmt.Errorf("settlement: pool of epoch %d: %w", r.Epoch, domain.ErrAmountOverflow)
	}
	return sum, nil
}

// Decide determines the outcome of a round at close time. The round
// refunds when the pool is one-sided, when either price capture failed,
// or when lock and close prices are exactly equal (a tie never silently
// favours a side).
func Decide(r domain.Round) domain.Outcome {
	if r.TotalUpAmount == 0 || r.TotalDownAmount == 0 {
		return domain.OutcomeRefund
	}
	if r.LockPrice == nil || r.ClosePrice == nil {
		return domain.OutcomeRefund
	}
	switch r.ClosePrice.Cmp(*r.LockPrice) {
	case 1:
		return domain.OutcomeUp
	case -1:
		return domain.OutcomeDown
	default:
		return domain.OutcomeRefund
	}
}

// Fee returns the protocol fee for a decided round: floor(pool * feeBps /
// 10000). Refund rounds take no fee; callers must not apply Fee to them.
func Fee(pool uint64, feeBps uint32) uint64 {
	return mulDiv(pool, uint64(feeBps), feeDenominator)
}

// Payout returns the claimable amount for a bet on a closed round.
//
//   - refund outcome: the full stake, no fee
//   - winning side:   floor(stake * (pool - fee) / winning_total)
//   - losing side:    zero
//
// Rounding dust from the floor divisions stays in the pool.
func Payout(bet domain.Bet, r domain.Round, feeBps uint32) (uint64, error) {
	if r.State != domain.RoundStateClosed || r.Outcome == nil {
		return 0, fmt.Errorf("settlement: payout for epoch %d: %w", r.Epoch, domain.ErrRoundNotClosed)
	}

	switch *r.Outcome {
	case domain.OutcomeRefund:
		return bet.Amount, nil
	case domain.OutcomeUp, domain.OutcomeDown:
		if domain.Side(*r.Outcome) != bet.Side {
			return 0, nil
		}
	default:
		return 0, fmt.Errorf("settlement: unknown outcome %q for epoch %d", *r.Outcome, r.Epoch)
	}

	pool, err := Pool(r)
	if err != nil {
		return 0, err
	}

	winningTotal := r.TotalUpAmount
	if *r.Outcome == domain.OutcomeDown {
		winningTotal = r.TotalDownAmount
	}
	if winningTotal == 0 {
		// A decided outcome with an empty winning side cannot happen:
		// one-sided pools always refund.
		return 0, fmt.Errorf("settlement: epoch %d decided %s with empty winning side", r.Epoch, *r.Outcome)
	}

	distributable := pool - Fee(pool, feeBps)
	return mulDiv(bet.Amount, distributable, winningTotal), nil
}

// mulDiv computes floor(a * b / div) without intermediate overflow. The
// quotient always fits in uint64 for the ratios used here (b/div <= 1 for
// fees, a <= div for payouts).
func mulDiv(a, b, div uint64) uint64 {
	var prod big.Int
	prod.Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	prod.Quo(&prod, new(big.Int).SetUint64(div))
	return prod.Uint64()
}
