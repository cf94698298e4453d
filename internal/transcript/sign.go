package transcript

import (
	"fmt"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/sign/schnorr"
	"go.dedis.ch/kyber/v4/suites"
	"go.dedis.ch/kyber/v4/util/key"
)

// Verifier checks a single signature over a digest. The ledger only
// ever sees this interface; the concrete scheme lives here.
type Verifier interface {
	Verify(digest Hash, sig []byte, signer PlayerID) bool
}

// Sigs carries both players' signatures over one action digest. An
// action missing either signature is invalid, whichever side submits
// the transcript.
type Sigs struct {
	A []byte
	B []byte
}

var suite = suites.MustFind("Ed25519")

// SchnorrVerifier verifies Schnorr signatures over the Ed25519 group.
type SchnorrVerifier struct{}

func (SchnorrVerifier) Verify(digest Hash, sig []byte, signer PlayerID) bool {
	pub := suite.Point()
	if err := pub.UnmarshalBinary(signer[:]); err != nil {
		return false
	}
	return schnorr.Verify(suite, pub, digest[:], sig) == nil
}

// VerifyDualSigned checks that every action carries a valid signature
// from both players and that every sender is one of them. The two
// checks per action are independent and order does not matter.
func VerifyDualSigned(actions []Action, sigs []Sigs, playerA, playerB PlayerID, v Verifier) error {
	if len(sigs) != len(actions) {
		return fmt.Errorf("%w: %d actions, %d signature pairs", ErrSignatureCount, len(actions), len(sigs))
	}
	for i := range actions {
		a := &actions[i]
		if a.Sender != playerA && a.Sender != playerB {
			return fmt.Errorf("action %d: %w: %s", i, ErrUnknownSender, a.Sender)
		}
		digest := a.Digest()
		if !v.Verify(digest, sigs[i].A, playerA) {
			return fmt.Errorf("action %d: %w: player A", i, ErrBadSignature)
		}
		if !v.Verify(digest, sigs[i].B, playerB) {
			return fmt.Errorf("action %d: %w: player B", i, ErrBadSignature)
		}
	}
	return nil
}

// Keypair is a signing identity. Production keys come from the
// players' wallets; this type mainly serves the relay demo and tests.
type Keypair struct {
	Private kyber.Scalar
	Public  kyber.Point
	ID      PlayerID
}

// NewKeypair generates a fresh Schnorr keypair.
func NewKeypair() (*Keypair, error) {
	pair := key.NewKeyPair(suite)
	raw, err := pair.Public.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	var id PlayerID
	copy(id[:], raw)
	return &Keypair{Private: pair.Private, Public: pair.Public, ID: id}, nil
}

// Sign produces this keypair's signature over an action digest.
func (k *Keypair) Sign(digest Hash) ([]byte, error) {
	return schnorr.Sign(suite, k.Private, digest[:])
}
