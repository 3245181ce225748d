package domain

import "time"

// Bet is a participant's stake on one side of a round. A participant may
// hold at most one bet per epoch; re-betting is rejected, not merged.
type Bet struct {
	Epoch       uint64 `json:"epoch"`
	Participant string `json:"participant"`
	Side        Side   `json:"side"`
	Amount      uint64 `json:"amount"`

	Claimed bool `json:"claimed"`
	// Payout is the amount credited on claim. Zero until Claimed is true.
	Payout uint64 `json:"payout"`

	PlacedAt  time.Time  `json:"placed_at"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}
