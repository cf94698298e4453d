// Package transcript defines the off-ledger action format exchanged by
// the two players of a channel: an ordered, hash-chained, dual-signed
// sequence of betting moves. The chain makes tampering a pure function
// of the slice: reordering, truncating or editing any action changes
// every hash downstream.
package transcript

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Kind identifies a betting move.
type Kind uint8

const (
	SmallBlind Kind = iota
	BigBlind
	Fold
	CheckCall
	BetRaise
)

func (k Kind) String() string {
	switch k {
	case SmallBlind:
		return "small_blind"
	case BigBlind:
		return "big_blind"
	case Fold:
		return "fold"
	case CheckCall:
		return "check_call"
	case BetRaise:
		return "bet_raise"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// PlayerID is the marshaled Schnorr public key of a player. Channels,
// actions and signatures all identify players by key, never by index.
type PlayerID [32]byte

func (p PlayerID) String() string {
	return fmt.Sprintf("%x", p[:4])
}

// Hash is a SHA-256 chain link.
type Hash [32]byte

// Action is a single signed move. Seq is redundant with chain position
// and checked against it, as a defense against index confusion.
type Action struct {
	ChannelID uint64
	HandID    uint64
	Seq       uint32
	Kind      Kind
	Amount    uint64
	PrevHash  Hash
	Sender    PlayerID
}

// Domain separation labels. Changing any encoding below is a wire
// format break and must bump the version segment.
const (
	actionDomain  = "potchannel/v1/action"
	genesisDomain = "potchannel/v1/genesis"
)

// encode writes the fixed-width canonical form hashed and signed by
// both players.
func (a *Action) encode() []byte {
	buf := make([]byte, 0, len(actionDomain)+8+8+4+1+8+32+32)
	buf = append(buf, actionDomain...)
	buf = binary.BigEndian.AppendUint64(buf, a.ChannelID)
	buf = binary.BigEndian.AppendUint64(buf, a.HandID)
	buf = binary.BigEndian.AppendUint32(buf, a.Seq)
	buf = append(buf, byte(a.Kind))
	buf = binary.BigEndian.AppendUint64(buf, a.Amount)
	buf = append(buf, a.PrevHash[:]...)
	buf = append(buf, a.Sender[:]...)
	return buf
}

// Digest is the value both players sign and the next action links to.
func (a *Action) Digest() Hash {
	return sha256.Sum256(a.encode())
}

// GenesisHash is the PrevHash required of the first action of a hand.
// It is unique per (channel, hand) so a transcript can never be
// replayed against a different hand.
func GenesisHash(channelID, handID uint64) Hash {
	buf := make([]byte, 0, len(genesisDomain)+16)
	buf = append(buf, genesisDomain...)
	buf = binary.BigEndian.AppendUint64(buf, channelID)
	buf = binary.BigEndian.AppendUint64(buf, handID)
	return sha256.Sum256(buf)
}

// VerifyChain checks that actions form an unbroken hash chain for the
// given channel and hand: ids match, Seq equals slice position, and
// each PrevHash equals the digest of its predecessor (or the genesis
// hash for the first action).
func VerifyChain(actions []Action, channelID, handID uint64) error {
	prev := GenesisHash(channelID, handID)
	for i := range actions {
		a := &actions[i]
		if a.ChannelID != channelID {
			return fmt.Errorf("action %d: %w: channel %d", i, ErrWrongChannel, a.ChannelID)
		}
		if a.HandID != handID {
			return fmt.Errorf("action %d: %w: hand %d", i, ErrWrongHand, a.HandID)
		}
		if a.Seq != uint32(i) {
			return fmt.Errorf("action %d: %w: seq %d", i, ErrBadSequence, a.Seq)
		}
		if a.PrevHash != prev {
			return fmt.Errorf("action %d: %w", i, ErrBrokenChain)
		}
		prev = a.Digest()
	}
	return nil
}
