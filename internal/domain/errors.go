package domain

import "errors"

// Timing errors: the caller retries later.
var (
	ErrTooEarly         = errors.New("too early")
	ErrRoundNotBiddable = errors.New("round not biddable")
)

// State errors: the call is logically redundant or out of order. These are
// always surfaced, never silently ignored, so callers can tell "already
// done" from "succeeded now".
var (
	ErrRoundAlreadyActive = errors.New("a round is already active")
	ErrAlreadyLocked      = errors.New("round already locked")
	ErrNotLocked          = errors.New("round not locked")
	ErrRoundNotClosed     = errors.New("round not closed")
	ErrAlreadyClaimed     = errors.New("win already claimed")
	ErrAlreadyInitialized = errors.New("game already initialized")
)

// Validation errors: rejected before any state mutation.
var (
	ErrBetTooSmall    = errors.New("bet below minimum amount")
	ErrDuplicateBet   = errors.New("bet already placed for this round")
	ErrRoundNotFound  = errors.New("round not found")
	ErrBetNotFound    = errors.New("bet not found")
	ErrNothingToClaim = errors.New("nothing to claim")
	ErrAmountOverflow = errors.New("amount overflows")
)

// External-dependency and infrastructure errors.
var (
	ErrOracleUnavailable   = errors.New("oracle price unavailable")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("not found")
	ErrLockHeld            = errors.New("lock already held")
)
