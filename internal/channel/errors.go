package channel

import "errors"

// State faults: the channel is absent or in the wrong phase.
var (
	ErrChannelExists    = errors.New("channel already exists")
	ErrChannelNotFound  = errors.New("channel not found")
	ErrWrongPhase       = errors.New("operation not allowed in current phase")
	ErrNoDisputeOnFile  = errors.New("no dispute on file")
	ErrDisputeNotLonger = errors.New("dispute transcript not longer than on file")
)

// Validation faults: bad input; the caller may resubmit corrected data.
var (
	ErrNotParticipant    = errors.New("caller is not a channel participant")
	ErrNotInvited        = errors.New("caller is not the invited opponent")
	ErrDepositMismatch   = errors.New("deposit amount not acceptable")
	ErrTopUpCapped       = errors.New("top-up exceeds opponent balance")
	ErrReplayNotTerminal = errors.New("replay did not reach a terminal outcome")
	ErrBadOpening        = errors.New("card opening rejected")
	ErrSlotRevealed      = errors.New("card slot already revealed")
	ErrBadSlot           = errors.New("card slot out of range")
	ErrNothingToWithdraw = errors.New("no balance to withdraw")
	ErrBalanceOverflow   = errors.New("balance arithmetic overflow")
)

// Timing faults: acting before a deadline has passed or after a window
// has expired; the remedy is waiting or acting earlier.
var (
	ErrDisputeWindowNotElapsed = errors.New("dispute window has not elapsed")
	ErrRevealWindowNotElapsed  = errors.New("reveal window has not elapsed")
	ErrRevealWindowClosed      = errors.New("reveal window has closed")
)
