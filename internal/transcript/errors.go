package transcript

import "errors"

var (
	ErrWrongChannel   = errors.New("action bound to wrong channel")
	ErrWrongHand      = errors.New("action bound to wrong hand")
	ErrBadSequence    = errors.New("sequence number does not match chain position")
	ErrBrokenChain    = errors.New("previous-hash link does not match")
	ErrBadSignature   = errors.New("signature verification failed")
	ErrSignatureCount = errors.New("signature count does not match action count")
	ErrUnknownSender  = errors.New("sender is not a channel participant")
)
