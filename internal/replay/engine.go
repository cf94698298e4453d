// Package replay re-simulates a signed betting transcript and
// classifies its outcome. The engine enforces game rules only; the
// caller is responsible for having verified every action's dual
// signature and hash-chain linkage first.
//
// Both entry points are pure functions: identical inputs always yield
// identical results, and all working state is local to one call.
package replay

import (
	"fmt"

	"github.com/potchannel/potchannel/internal/transcript"
)

// Street is a betting round.
type Street uint8

const (
	Preflop Street = iota
	Flop
	Turn
	River
)

func (s Street) String() string {
	return [...]string{"preflop", "flop", "turn", "river"}[s]
}

// End classifies how a transcript terminates.
type End uint8

const (
	// NoBlinds means the mandatory opening blinds are absent or
	// malformed. Not an error: it is a verdict the settlement layer
	// maps to its own failure.
	NoBlinds End = iota
	// FoldEnd means a player folded; Folder and Won are set.
	FoldEnd
	// ShowdownEnd means all streets completed with contributions
	// equalized; Won is the contested amount.
	ShowdownEnd
	// Pending is returned by ValidatePrefix when the transcript stops
	// mid-hand without a fold; MinContributed is set.
	Pending
)

func (e End) String() string {
	return [...]string{"no_blinds", "fold", "showdown", "pending"}[e]
}

// Result is the engine's verdict on one transcript.
type Result struct {
	End End
	// Folder is the seat (0 = player A, 1 = player B) that folded, or
	// -1 when End is not FoldEnd.
	Folder int
	// Won is the amount that moves from loser to winner: the folder's
	// total hand contribution on a fold, or the smaller of the two
	// totals at showdown (the amount actually contested).
	Won uint64
	// MinContributed is the provable per-seat lower bound on committed
	// funds, set by ValidatePrefix for Pending and ShowdownEnd results.
	// A dispute settled from a prefix must never overstate either
	// side's exposure, so uncalled street contributions do not count.
	MinContributed [2]uint64
}

// state is one replay's working memory. Destroyed after each call,
// never persisted.
type state struct {
	players  [2]transcript.PlayerID
	stacks   [2]uint64
	contrib  [2]uint64 // committed this street
	total    [2]uint64 // committed hand-to-date
	street   Street
	turn     int
	acted    [2]bool
	lastRaise uint64 // minimum size of the next raise on this street
	bigBlind  uint64
	smallSeat int // seat that posted the small blind

	ended    bool
	showdown bool
	folder   int
}

// ValidateComplete replays a transcript that must run to a terminal
// outcome: a fold or a full four-street showdown. A transcript that
// stops mid-hand is rejected with ErrIncompleteHand; use
// ValidatePrefix for dispute evidence.
func ValidateComplete(actions []transcript.Action, stackA, stackB, minSmallBlind uint64, playerA, playerB transcript.PlayerID) (Result, error) {
	res, _, err := run(actions, stackA, stackB, minSmallBlind, playerA, playerB)
	if err != nil {
		return Result{}, err
	}
	if res.End == Pending {
		return Result{}, ErrIncompleteHand
	}
	res.MinContributed = [2]uint64{}
	return res, nil
}

// ValidatePrefix replays a transcript that may stop mid-hand. A fold
// anywhere still terminates the hand; otherwise the result is Pending
// with the provable minimum commitment per seat, or NoBlinds.
func ValidatePrefix(actions []transcript.Action, stackA, stackB, minSmallBlind uint64, playerA, playerB transcript.PlayerID) (Result, error) {
	res, s, err := run(actions, stackA, stackB, minSmallBlind, playerA, playerB)
	if err != nil {
		return Result{}, err
	}
	switch res.End {
	case Pending:
		// Equalized past streets count in full; the current street only
		// counts up to the matched amount. An uncalled bet would return
		// to its owner if the hand ended here.
		matched := min(s.contrib[0], s.contrib[1])
		res.MinContributed = [2]uint64{
			s.total[0] - s.contrib[0] + matched,
			s.total[1] - s.contrib[1] + matched,
		}
	case ShowdownEnd:
		// A completed hand has every street equalized, so both totals
		// are provable in full.
		res.MinContributed = [2]uint64{s.total[0], s.total[1]}
	}
	return res, nil
}

func run(actions []transcript.Action, stackA, stackB, minSmallBlind uint64, playerA, playerB transcript.PlayerID) (Result, *state, error) {
	s := &state{
		players: [2]transcript.PlayerID{playerA, playerB},
		stacks:  [2]uint64{stackA, stackB},
		folder:  -1,
	}

	if err := s.postBlinds(actions, minSmallBlind); err != nil {
		if err == errNoBlinds {
			return Result{End: NoBlinds, Folder: -1}, s, nil
		}
		return Result{}, nil, err
	}

	for i := 2; i < len(actions); i++ {
		if s.ended {
			return Result{}, nil, fmt.Errorf("action %d: %w", i, ErrTrailingAction)
		}
		if err := s.step(&actions[i]); err != nil {
			return Result{}, nil, fmt.Errorf("action %d: %w", i, err)
		}
	}

	switch {
	case s.ended && s.folder >= 0:
		return Result{End: FoldEnd, Folder: s.folder, Won: s.total[s.folder]}, s, nil
	case s.ended && s.showdown:
		return Result{End: ShowdownEnd, Folder: -1, Won: min(s.total[0], s.total[1])}, s, nil
	default:
		return Result{End: Pending, Folder: -1}, s, nil
	}
}

var errNoBlinds = fmt.Errorf("mandatory blinds absent")

// postBlinds consumes the first two actions, which must be exactly a
// small blind of minSmallBlind and a big blind of twice that, posted by
// distinct participants. Any defect here is the NoBlinds verdict, not a
// rule error: there is no hand to adjudicate.
func (s *state) postBlinds(actions []transcript.Action, minSmallBlind uint64) error {
	bigBlind, err := mul2(minSmallBlind)
	if err != nil {
		return err
	}
	if len(actions) < 2 {
		return errNoBlinds
	}
	sb, bb := &actions[0], &actions[1]
	sbSeat := s.seat(sb.Sender)
	bbSeat := s.seat(bb.Sender)
	if sb.Kind != transcript.SmallBlind || bb.Kind != transcript.BigBlind {
		return errNoBlinds
	}
	if sb.Amount != minSmallBlind || bb.Amount != bigBlind {
		return errNoBlinds
	}
	if sbSeat < 0 || bbSeat < 0 || sbSeat == bbSeat {
		return errNoBlinds
	}

	if err := s.commit(sbSeat, minSmallBlind); err != nil {
		return err
	}
	if err := s.commit(bbSeat, bigBlind); err != nil {
		return err
	}

	s.bigBlind = bigBlind
	s.lastRaise = bigBlind
	s.smallSeat = sbSeat
	// Small blind acts first preflop; the blinds themselves are forced
	// and do not count as acting, so the big blind keeps the option.
	s.turn = sbSeat
	return nil
}

func (s *state) step(a *transcript.Action) error {
	seat := s.seat(a.Sender)
	if seat < 0 {
		return ErrUnknownSender
	}
	if seat != s.turn {
		return ErrOutOfTurn
	}
	opp := 1 - seat

	switch a.Kind {
	case transcript.SmallBlind, transcript.BigBlind:
		return ErrUnexpectedBlind

	case transcript.Fold:
		s.ended = true
		s.folder = seat
		return nil

	case transcript.CheckCall:
		need := s.contrib[opp] - s.contrib[seat]
		if need > s.stacks[seat] {
			// Side-pot rule: a short stack can only call what it can
			// cover, and the opponent's unmatched excess goes back.
			excess := need - s.stacks[seat]
			s.stacks[opp] += excess
			s.contrib[opp] -= excess
			s.total[opp] -= excess
			need = s.stacks[seat]
		}
		if err := s.commit(seat, need); err != nil {
			return err
		}
		s.acted[seat] = true
		if s.acted[opp] && s.contrib[0] == s.contrib[1] {
			s.advanceStreet()
		} else {
			s.turn = opp
		}
		return nil

	case transcript.BetRaise:
		// Amount is the raise-to target for this street. It must beat
		// the current call amount by at least the last raise size (the
		// big blind when nothing has been raised yet this street).
		callTo := s.contrib[opp]
		if a.Amount <= callTo {
			return ErrIllegalRaiseSize
		}
		raise := a.Amount - callTo
		if raise < s.lastRaise {
			return ErrIllegalRaiseSize
		}
		delta := a.Amount - s.contrib[seat]
		if err := s.commit(seat, delta); err != nil {
			return err
		}
		s.lastRaise = raise
		s.acted[seat] = true
		s.turn = opp
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownKind, a.Kind)
}

// commit moves amount from a seat's stack into its street and hand
// totals, failing hard on overdraw or overflow.
func (s *state) commit(seat int, amount uint64) error {
	if amount > s.stacks[seat] {
		return ErrArithmetic
	}
	c, err := add(s.contrib[seat], amount)
	if err != nil {
		return err
	}
	t, err := add(s.total[seat], amount)
	if err != nil {
		return err
	}
	s.stacks[seat] -= amount
	s.contrib[seat] = c
	s.total[seat] = t
	return nil
}

func (s *state) advanceStreet() {
	// No further betting is possible once a stack is empty; the hand
	// runs straight out to showdown.
	if s.stacks[0] == 0 || s.stacks[1] == 0 {
		s.ended = true
		s.showdown = true
		return
	}
	if s.street == River {
		s.ended = true
		s.showdown = true
		return
	}
	s.street++
	s.contrib = [2]uint64{}
	s.acted = [2]bool{}
	s.lastRaise = s.bigBlind
	// Big blind acts first on every postflop street.
	s.turn = 1 - s.smallSeat
}

func (s *state) seat(p transcript.PlayerID) int {
	switch p {
	case s.players[0]:
		return 0
	case s.players[1]:
		return 1
	}
	return -1
}

func add(a, b uint64) (uint64, error) {
	c := a + b
	if c < a {
		return 0, ErrArithmetic
	}
	return c, nil
}

func mul2(a uint64) (uint64, error) {
	return add(a, a)
}
