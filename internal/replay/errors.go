package replay

import "errors"

var (
	// ErrIllegalRaiseSize rejects a raise that does not beat the call
	// amount by at least the previous raise on the street.
	ErrIllegalRaiseSize = errors.New("illegal raise size")
	// ErrArithmetic is any unsigned overflow, underflow or stack
	// overdraw. It aborts the entire replay with no partial effect.
	ErrArithmetic = errors.New("arithmetic fault")
	// ErrOutOfTurn rejects an action by the player not due to act.
	ErrOutOfTurn = errors.New("action out of turn")
	// ErrUnexpectedBlind rejects a blind posted after the opening two.
	ErrUnexpectedBlind = errors.New("unexpected blind")
	// ErrTrailingAction rejects actions after the hand has ended.
	ErrTrailingAction = errors.New("action after hand end")
	// ErrIncompleteHand rejects a mid-hand transcript passed to
	// ValidateComplete.
	ErrIncompleteHand = errors.New("transcript does not reach a terminal outcome")
	// ErrUnknownSender rejects an action from a non-participant.
	ErrUnknownSender = errors.New("sender is not a channel participant")
	// ErrUnknownKind rejects an unrecognized action kind.
	ErrUnknownKind = errors.New("unknown action kind")
)
