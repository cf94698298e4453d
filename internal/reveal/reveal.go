// Package reveal implements the card-commitment collaborator: card
// slots are ElGamal ciphertexts under the players' joint key, and an
// opening is the pair of decryption shares with DLEQ proofs binding
// each share to its player's registered public key. A player can
// therefore be forced to reveal a card without ever holding a trusted
// dealer's secrets.
package reveal

import (
	"fmt"
	"sync"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/proof/dleq"
	"go.dedis.ch/kyber/v4/suites"

	"github.com/potchannel/potchannel/internal/channel"
)

var suite = suites.MustFind("Ed25519")

// Ciphertext is one encrypted card slot: C1 = r*G, C2 = M + r*Y where
// Y is the joint public key and M the card point.
type Ciphertext struct {
	C1 kyber.Point
	C2 kyber.Point
}

// deckPoints maps card indices 0..51 to deterministic group elements
// and back. The points depend only on the protocol version label, so
// both players and the ledger always agree on the encoding.
var (
	deckOnce   sync.Once
	deckPoints [52]kyber.Point
	deckIndex  map[string]channel.Card
)

func deck() ([52]kyber.Point, map[string]channel.Card) {
	deckOnce.Do(func() {
		deckIndex = make(map[string]channel.Card, 52)
		for i := 0; i < 52; i++ {
			seed := fmt.Sprintf("potchannel/v1/card/%d", i)
			s := suite.Scalar().Pick(suite.XOF([]byte(seed)))
			p := suite.Point().Mul(s, nil)
			deckPoints[i] = p
			raw, err := p.MarshalBinary()
			if err != nil {
				panic(fmt.Sprintf("marshal deck point %d: %v", i, err))
			}
			deckIndex[string(raw)] = channel.Card(i)
		}
	})
	return deckPoints, deckIndex
}

// CardPoint returns the group element encoding a card index.
func CardPoint(c channel.Card) (kyber.Point, error) {
	if c > 51 {
		return nil, fmt.Errorf("card index %d out of range", c)
	}
	points, _ := deck()
	return points[c], nil
}

// cardFromPoint reverses CardPoint.
func cardFromPoint(p kyber.Point) (channel.Card, error) {
	raw, err := p.MarshalBinary()
	if err != nil {
		return 0, err
	}
	_, index := deck()
	c, ok := index[string(raw)]
	if !ok {
		return 0, fmt.Errorf("point does not encode a card")
	}
	return c, nil
}

// hand is the registered reveal context of one (channel, hand).
type hand struct {
	pubA  kyber.Point
	pubB  kyber.Point
	slots [channel.NumSlots]Ciphertext
}

type handKey struct {
	channelID uint64
	handID    uint64
}

// Table verifies openings against registered hands. It implements
// channel.CardOpener.
type Table struct {
	mu    sync.RWMutex
	hands map[handKey]*hand
}

// NewTable creates an empty reveal table.
func NewTable() *Table {
	return &Table{hands: make(map[handKey]*hand)}
}

// RegisterHand binds the players' public keys and the nine slot
// ciphertexts the parties exchanged before play. Without registration
// every opening for the hand fails.
func (t *Table) RegisterHand(channelID, handID uint64, pubA, pubB kyber.Point, slots [channel.NumSlots]Ciphertext) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hands[handKey{channelID, handID}] = &hand{pubA: pubA, pubB: pubB, slots: slots}
}

// DropHand forgets a hand's reveal context.
func (t *Table) DropHand(channelID, handID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.hands, handKey{channelID, handID})
}

// Open verifies a serialized Opening for a slot and returns the plain
// card. Both shares must verify against their registered keys and the
// recovered point must encode a real card.
func (t *Table) Open(channelID, handID uint64, slot int, opening []byte) (channel.Card, error) {
	if slot < 0 || slot >= channel.NumSlots {
		return 0, fmt.Errorf("slot %d out of range", slot)
	}
	t.mu.RLock()
	h, ok := t.hands[handKey{channelID, handID}]
	t.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("no reveal context for channel %d hand %d", channelID, handID)
	}

	op, err := UnmarshalOpening(opening)
	if err != nil {
		return 0, err
	}

	ct := h.slots[slot]
	if err := op.A.verify(ct.C1, h.pubA); err != nil {
		return 0, fmt.Errorf("player A share: %w", err)
	}
	if err := op.B.verify(ct.C1, h.pubB); err != nil {
		return 0, fmt.Errorf("player B share: %w", err)
	}

	// M = C2 - SA - SB
	m := suite.Point().Sub(ct.C2, op.A.Share)
	m.Sub(m, op.B.Share)
	return cardFromPoint(m)
}

// Share is one player's decryption share for a slot ciphertext plus
// the DLEQ proof that it uses the same secret as the registered key.
type Share struct {
	Share kyber.Point
	Proof *dleq.Proof
}

// verify checks log_G(pub) == log_C1(share).
func (s *Share) verify(c1, pub kyber.Point) error {
	if s.Proof == nil || s.Share == nil {
		return fmt.Errorf("incomplete share")
	}
	if err := s.Proof.Verify(suite, suite.Point().Base(), c1, pub, s.Share); err != nil {
		return fmt.Errorf("dleq proof rejected: %w", err)
	}
	return nil
}

// Opening carries both players' shares for one slot.
type Opening struct {
	A Share
	B Share
}

// NewShare produces a decryption share and proof for a ciphertext
// using the player's secret key.
func NewShare(secret kyber.Scalar, ct Ciphertext) (Share, error) {
	proof, _, share, err := dleq.NewDLEQProof(suite, suite.Point().Base(), ct.C1, secret)
	if err != nil {
		return Share{}, fmt.Errorf("build dleq proof: %w", err)
	}
	return Share{Share: share, Proof: proof}, nil
}

// EncryptCard builds the slot ciphertext for a card under the joint
// key with the supplied randomness scalar.
func EncryptCard(joint kyber.Point, card channel.Card, r kyber.Scalar) (Ciphertext, error) {
	m, err := CardPoint(card)
	if err != nil {
		return Ciphertext{}, err
	}
	c1 := suite.Point().Mul(r, nil)
	c2 := suite.Point().Add(m, suite.Point().Mul(r, joint))
	return Ciphertext{C1: c1, C2: c2}, nil
}

// JointKey combines both players' reveal keys into the encryption key
// for the deck. Decrypting under it needs a share from each player.
func JointKey(pubA, pubB kyber.Point) kyber.Point {
	return suite.Point().Add(pubA, pubB)
}

// RandomScalar picks encryption randomness from the suite's stream.
func RandomScalar() kyber.Scalar {
	return suite.Scalar().Pick(suite.RandomStream())
}

// NewKeypair generates a reveal keypair for a player.
func NewKeypair() (kyber.Scalar, kyber.Point) {
	x := suite.Scalar().Pick(suite.RandomStream())
	return x, suite.Point().Mul(x, nil)
}
