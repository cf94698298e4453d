// Package channel holds the authoritative per-channel ledger and the
// settlement/dispute state machine that consumes replay verdicts. All
// exposed operations run to completion atomically: every rule is
// checked against a working copy and shared state is only replaced
// once the whole operation has succeeded.
package channel

import (
	"time"

	"github.com/potchannel/potchannel/internal/replay"
	"github.com/potchannel/potchannel/internal/transcript"
)

// Phase is a channel's lifecycle position.
type Phase uint8

const (
	// PhaseOpened means player A has funded and named player B.
	PhaseOpened Phase = iota
	// PhaseActive means both sides are funded and a hand may be played
	// and settled.
	PhaseActive
	// PhaseShowdownPending means a hand ended without a fold and cards
	// are being revealed against a deadline.
	PhaseShowdownPending
	// PhaseTerminal means the last hand is fully settled: balances are
	// withdrawable, and player B may join again to start the next hand
	// on the same escrow.
	PhaseTerminal
)

func (p Phase) String() string {
	return [...]string{"opened", "active", "showdown_pending", "terminal"}[p]
}

// Card is a card index in 0..51, suit-major: index = suit*13 + (rank-1)
// with suits ordered club, diamond, heart, spade and ranks A,2..K.
type Card uint8

// Card slots of one hand, in reveal-mask bit order.
const (
	SlotHoleA1 = iota
	SlotHoleA2
	SlotHoleB1
	SlotHoleB2
	SlotFlop1
	SlotFlop2
	SlotFlop3
	SlotTurn
	SlotRiver

	NumSlots = 9
)

// Reveal mask bit groups. The packing is part of the public contract:
// bit i of the mask corresponds to slot i above.
const (
	MaskHoleA uint16 = 0b000000011
	MaskHoleB uint16 = 0b000001100
	MaskBoard uint16 = 0b111110000
	MaskAll   uint16 = 0b111111111
)

// Channel is one ledger entry. Everything here is mutated only by the
// Ledger under its single-writer lock.
type Channel struct {
	ID            uint64
	PlayerA       transcript.PlayerID
	PlayerB       transcript.PlayerID
	BalanceA      uint64
	BalanceB      uint64
	HandID        uint64
	MinSmallBlind uint64
	Phase         Phase

	Dispute  *DisputeRecord
	Showdown *ShowdownRecord
}

// DisputeRecord exists only between a dispute filing and its
// resolution. A longer transcript overwrites it outright; records are
// never merged.
type DisputeRecord struct {
	Filer            transcript.PlayerID
	TranscriptLength int
	Deadline         time.Time
	// ProjectedEnd is the replay verdict on the filed prefix: FoldEnd,
	// Pending (showdown) or NoBlinds (void hand).
	ProjectedEnd    replay.End
	ProjectedFolder int
	ProjectedAmount uint64
	// MinContributed bounds what each seat is provably committed to; a
	// dispute can never overstate the counterparty's exposure.
	MinContributed [2]uint64
}

// ShowdownRecord exists from showdown open to finalization.
type ShowdownRecord struct {
	Initiator    transcript.PlayerID
	Deadline     time.Time
	RevealedMask uint16
	Revealed     [NumSlots]Card
	// Locked is the contested amount; it moves (or stays put on a tie)
	// only at finalization.
	Locked uint64
}

// seat returns 0 for player A, 1 for player B, -1 otherwise.
func (c *Channel) seat(p transcript.PlayerID) int {
	switch p {
	case c.PlayerA:
		return 0
	case c.PlayerB:
		return 1
	}
	return -1
}

func (c *Channel) balance(seat int) uint64 {
	if seat == 0 {
		return c.BalanceA
	}
	return c.BalanceB
}

func (c *Channel) setBalance(seat int, v uint64) {
	if seat == 0 {
		c.BalanceA = v
	} else {
		c.BalanceB = v
	}
}

// clone deep-copies the entry so an operation can fail midway without
// any observable effect on shared state.
func (c *Channel) clone() *Channel {
	out := *c
	if c.Dispute != nil {
		d := *c.Dispute
		out.Dispute = &d
	}
	if c.Showdown != nil {
		s := *c.Showdown
		out.Showdown = &s
	}
	return &out
}
