package reveal

import (
	"fmt"

	"go.dedis.ch/kyber/v4/proof/dleq"
)

// Wire format: every group element and scalar is 32 bytes. A share is
// share || C || R || VG || VH (160 bytes); an opening is player A's
// share followed by player B's (320 bytes).
const (
	elementLen = 32
	shareLen   = 5 * elementLen
	openingLen = 2 * shareLen
)

// MarshalOpening serializes an opening for transport.
func MarshalOpening(op Opening) ([]byte, error) {
	out := make([]byte, 0, openingLen)
	for _, s := range []Share{op.A, op.B} {
		raw, err := marshalShare(s)
		if err != nil {
			return nil, err
		}
		out = append(out, raw...)
	}
	return out, nil
}

// UnmarshalOpening parses a serialized opening.
func UnmarshalOpening(raw []byte) (Opening, error) {
	if len(raw) != openingLen {
		return Opening{}, fmt.Errorf("opening must be %d bytes, got %d", openingLen, len(raw))
	}
	a, err := unmarshalShare(raw[:shareLen])
	if err != nil {
		return Opening{}, fmt.Errorf("player A share: %w", err)
	}
	b, err := unmarshalShare(raw[shareLen:])
	if err != nil {
		return Opening{}, fmt.Errorf("player B share: %w", err)
	}
	return Opening{A: a, B: b}, nil
}

func marshalShare(s Share) ([]byte, error) {
	if s.Proof == nil || s.Share == nil {
		return nil, fmt.Errorf("incomplete share")
	}
	out := make([]byte, 0, shareLen)
	for _, m := range []interface{ MarshalBinary() ([]byte, error) }{
		s.Share, s.Proof.C, s.Proof.R, s.Proof.VG, s.Proof.VH,
	} {
		raw, err := m.MarshalBinary()
		if err != nil {
			return nil, err
		}
		if len(raw) != elementLen {
			return nil, fmt.Errorf("unexpected element length %d", len(raw))
		}
		out = append(out, raw...)
	}
	return out, nil
}

func unmarshalShare(raw []byte) (Share, error) {
	share := suite.Point()
	c := suite.Scalar()
	r := suite.Scalar()
	vg := suite.Point()
	vh := suite.Point()
	for i, u := range []interface{ UnmarshalBinary([]byte) error }{share, c, r, vg, vh} {
		if err := u.UnmarshalBinary(raw[i*elementLen : (i+1)*elementLen]); err != nil {
			return Share{}, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return Share{
		Share: share,
		Proof: &dleq.Proof{C: c, R: r, VG: vg, VH: vh},
	}, nil
}
