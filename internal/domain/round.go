package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction a participant bets on.
type Side string

const (
	SideUp   Side = "up"
	SideDown Side = "down"
)

// Valid reports whether the side is one of the two recognised values.
func (s Side) Valid() bool {
	return s == SideUp || s == SideDown
}

// Outcome is the resolution of a closed round.
type Outcome string

const (
	OutcomeUp     Outcome = "up"
	OutcomeDown   Outcome = "down"
	OutcomeRefund Outcome = "refund"
)

// RoundState is the lifecycle state of a round. Transitions are strictly
// forward: created -> locked -> closed.
type RoundState string

const (
	RoundStateCreated RoundState = "created"
	RoundStateLocked  RoundState = "locked"
	RoundStateClosed  RoundState = "closed"
)

// Round is one betting cycle, identified by a strictly increasing epoch.
// OpenTime, LockTime and CloseTime are fixed at creation and satisfy
// LockTime = OpenTime + interval and CloseTime = LockTime + interval.
type Round struct {
	Epoch     uint64     `json:"epoch"`
	State     RoundState `json:"state"`
	OpenTime  time.Time  `json:"open_time"`
	LockTime  time.Time  `json:"lock_time"`
	CloseTime time.Time  `json:"close_time"`

	// LockPrice and ClosePrice are captured exactly once, at the Lock and
	// Close transitions. A nil LockPrice on a locked round means the oracle
	// was unavailable at lock; the round resolves to a refund at close.
	LockPrice  *decimal.Decimal `json:"lock_price,omitempty"`
	ClosePrice *decimal.Decimal `json:"close_price,omitempty"`

	// Stake totals are frozen once the round leaves the created state.
	TotalUpAmount   uint64 `json:"total_up_amount"`
	TotalDownAmount uint64 `json:"total_down_amount"`
	UpBetCount      int64  `json:"up_bet_count"`
	DownBetCount    int64  `json:"down_bet_count"`

	Outcome *Outcome `json:"outcome,omitempty"`

	// FeeBps is the fee rate applied to this round, captured at close so
	// later config changes never alter an already settled round's payouts.
	FeeBps uint32 `json:"fee_bps"`

	LockedAt *time.Time `json:"locked_at,omitempty"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Biddable reports whether bets may still be placed on the round at the
// given time. Bidding closes bidBuffer ahead of the scheduled lock so the
// last instants before the lock price are not bettable.
func (r Round) Biddable(now time.Time, bidBuffer time.Duration) bool {
	return r.State == RoundStateCreated && now.Before(r.LockTime.Add(-bidBuffer))
}
