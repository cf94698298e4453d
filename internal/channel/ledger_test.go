package channel

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potchannel/potchannel/internal/replay"
	"github.com/potchannel/potchannel/internal/transcript"
)

var (
	alice    = transcript.PlayerID{0xa1}
	bob      = transcript.PlayerID{0xb2}
	stranger = transcript.PlayerID{0xcc}
)

const (
	disputeWindow = 10 * time.Minute
	revealWindow  = 5 * time.Minute
)

// --- collaborator fakes ---------------------------------------------------

type stubVerifier struct{ ok bool }

func (v stubVerifier) Verify(transcript.Hash, []byte, transcript.PlayerID) bool { return v.ok }

type openerFunc func(channelID, handID uint64, slot int, opening []byte) (Card, error)

func (f openerFunc) Open(channelID, handID uint64, slot int, opening []byte) (Card, error) {
	return f(channelID, handID, slot, opening)
}

// slotOpener reveals card index == slot, ignoring the proof.
func slotOpener() openerFunc {
	return func(_, _ uint64, slot int, _ []byte) (Card, error) {
		return Card(slot), nil
	}
}

type rankerFunc func([7]Card) (int, error)

func (f rankerFunc) Rank(c [7]Card) (int, error) { return f(c) }

// firstCardRanker scores a hand by its first card, so the winner is
// controlled by the revealed hole cards.
func firstCardRanker() rankerFunc {
	return func(c [7]Card) (int, error) { return int(c[0]), nil }
}

func tieRanker() rankerFunc {
	return func([7]Card) (int, error) { return 7, nil }
}

// --- fixtures ---------------------------------------------------------------

type fixture struct {
	ledger *Ledger
	clock  *quartz.Mock
	events []Event
}

func newFixture(t *testing.T, opts ...func(*Config)) *fixture {
	t.Helper()
	f := &fixture{clock: quartz.NewMock(t)}
	cfg := Config{
		Store:         newMemStore(),
		Clock:         f.clock,
		Verifier:      stubVerifier{ok: true},
		Opener:        slotOpener(),
		Ranker:        firstCardRanker(),
		DisputeWindow: disputeWindow,
		RevealWindow:  revealWindow,
		Logger:        log.New(io.Discard),
		Events:        func(ev Event) { f.events = append(f.events, ev) },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	l, err := NewLedger(cfg)
	require.NoError(t, err)
	f.ledger = l
	return f
}

// memStore is a tiny in-package store so the ledger tests do not
// depend on internal/store.
type memStore struct{ m map[uint64]*Channel }

func newMemStore() *memStore { return &memStore{m: make(map[uint64]*Channel)} }

func (s *memStore) Get(id uint64) (*Channel, error) {
	ch, ok := s.m[id]
	if !ok {
		return nil, ErrChannelNotFound
	}
	return ch, nil
}
func (s *memStore) Put(ch *Channel) error  { s.m[ch.ID] = ch; return nil }
func (s *memStore) Delete(id uint64) error { delete(s.m, id); return nil }

// active opens channel 7 with A=100 and joins B=100.
func (f *fixture) active(t *testing.T) {
	t.Helper()
	require.NoError(t, f.ledger.Open(alice, 7, bob, 1, 100))
	require.NoError(t, f.ledger.Join(bob, 7, 100))
}

func (f *fixture) conservation(t *testing.T, want uint64) {
	t.Helper()
	a, b, err := f.ledger.Balances(7)
	require.NoError(t, err)
	assert.Equal(t, want, a+b, "balance conservation violated")
}

// --- transcript builders ----------------------------------------------------

type move struct {
	sender transcript.PlayerID
	kind   transcript.Kind
	amount uint64
}

func sbMove(p transcript.PlayerID, amt uint64) move { return move{p, transcript.SmallBlind, amt} }
func bbMove(p transcript.PlayerID, amt uint64) move { return move{p, transcript.BigBlind, amt} }
func callMove(p transcript.PlayerID) move           { return move{p, transcript.CheckCall, 0} }
func raiseMove(p transcript.PlayerID, to uint64) move {
	return move{p, transcript.BetRaise, to}
}
func foldMove(p transcript.PlayerID) move { return move{p, transcript.Fold, 0} }

func signedHand(channelID, handID uint64, moves ...move) ([]transcript.Action, []transcript.Sigs) {
	actions := make([]transcript.Action, len(moves))
	sigs := make([]transcript.Sigs, len(moves))
	prev := transcript.GenesisHash(channelID, handID)
	for i, m := range moves {
		actions[i] = transcript.Action{
			ChannelID: channelID,
			HandID:    handID,
			Seq:       uint32(i),
			Kind:      m.kind,
			Amount:    m.amount,
			PrevHash:  prev,
			Sender:    m.sender,
		}
		prev = actions[i].Digest()
		// The stub verifier accepts any bytes; length is what the
		// ledger checks before the scheme sees anything.
		sigs[i] = transcript.Sigs{A: []byte{1}, B: []byte{1}}
	}
	return actions, sigs
}

// foldHand is a hand where bob calls to 2 then folds: bob loses 2.
func foldHand(handID uint64) ([]transcript.Action, []transcript.Sigs) {
	return signedHand(7, handID,
		sbMove(alice, 1), bbMove(bob, 2), callMove(alice), foldMove(bob))
}

// showdownHand runs all four streets to showdown with 2 contested each
// way (locked amount 2).
func showdownHand(handID uint64) ([]transcript.Action, []transcript.Sigs) {
	return signedHand(7, handID,
		sbMove(alice, 1), bbMove(bob, 2),
		callMove(alice), callMove(bob),
		callMove(bob), callMove(alice),
		callMove(bob), callMove(alice),
		callMove(bob), callMove(alice),
	)
}

// --- funding ------------------------------------------------------------------

func TestOpenJoinTopUp(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	require.NoError(t, f.ledger.Open(alice, 7, bob, 1, 100))

	t.Run("open twice fails", func(t *testing.T) {
		assert.ErrorIs(t, f.ledger.Open(alice, 7, bob, 1, 100), ErrChannelExists)
	})
	t.Run("settle before join fails", func(t *testing.T) {
		actions, sigs := foldHand(1)
		assert.ErrorIs(t, f.ledger.Settle(alice, 7, actions, sigs), ErrWrongPhase)
	})
	t.Run("join by outsider fails", func(t *testing.T) {
		assert.ErrorIs(t, f.ledger.Join(stranger, 7, 100), ErrNotInvited)
	})
	t.Run("zero join with no escrow fails", func(t *testing.T) {
		assert.ErrorIs(t, f.ledger.Join(bob, 7, 0), ErrDepositMismatch)
	})

	require.NoError(t, f.ledger.Join(bob, 7, 50))
	ch, err := f.ledger.Channel(7)
	require.NoError(t, err)
	assert.Equal(t, PhaseActive, ch.Phase)
	assert.Equal(t, uint64(100), ch.BalanceA)
	assert.Equal(t, uint64(50), ch.BalanceB)

	t.Run("top-up mid-hand rejected", func(t *testing.T) {
		// Balances are the live replay stacks; they must not change
		// under a hand in progress.
		assert.ErrorIs(t, f.ledger.TopUp(alice, 7, 10), ErrWrongPhase)
	})

	// Finish the hand so deposits can change again: bob folds 2 away.
	actions, sigs := foldHand(1)
	require.NoError(t, f.ledger.Settle(alice, 7, actions, sigs))

	t.Run("top-up capped at opponent balance", func(t *testing.T) {
		assert.ErrorIs(t, f.ledger.TopUp(alice, 7, 49), ErrTopUpCapped)
		require.NoError(t, f.ledger.TopUp(alice, 7, 48))
		a, _, err := f.ledger.Balances(7)
		require.NoError(t, err)
		assert.Equal(t, uint64(150), a)
	})
	t.Run("top-up by outsider fails", func(t *testing.T) {
		assert.ErrorIs(t, f.ledger.TopUp(stranger, 7, 10), ErrNotParticipant)
	})

	assert.Equal(t, EventTypeOpened, f.events[0].EventType())
	assert.Equal(t, EventTypeJoined, f.events[1].EventType())
	assert.Equal(t, EventTypeSettled, f.events[2].EventType())
	assert.Equal(t, EventTypeToppedUp, f.events[3].EventType())
}

func TestOpenValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	assert.ErrorIs(t, f.ledger.Open(alice, 1, bob, 0, 100), ErrDepositMismatch)
	assert.ErrorIs(t, f.ledger.Open(alice, 1, bob, 1, 0), ErrDepositMismatch)
	assert.ErrorIs(t, f.ledger.Open(alice, 1, alice, 1, 100), ErrNotInvited)
}

// --- settle -------------------------------------------------------------------

func TestSettleFold(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.active(t)

	actions, sigs := foldHand(1)
	require.NoError(t, f.ledger.Settle(alice, 7, actions, sigs))

	ch, err := f.ledger.Channel(7)
	require.NoError(t, err)
	assert.Equal(t, PhaseTerminal, ch.Phase)
	assert.Equal(t, uint64(2), ch.HandID, "hand counter advances on settlement")
	// Bob called to 2 and folded: exactly his contribution moves.
	assert.Equal(t, uint64(102), ch.BalanceA)
	assert.Equal(t, uint64(98), ch.BalanceB)
	f.conservation(t, 200)

	last := f.events[len(f.events)-1].(SettledEvent)
	assert.True(t, last.Fold)
	assert.Equal(t, alice, last.Winner)
	assert.Equal(t, uint64(2), last.Amount)

	t.Run("second settle for same hand fails", func(t *testing.T) {
		assert.ErrorIs(t, f.ledger.Settle(bob, 7, actions, sigs), ErrWrongPhase)
	})
}

func TestSettleShowdownLocksAmount(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.active(t)

	actions, sigs := showdownHand(1)
	require.NoError(t, f.ledger.Settle(bob, 7, actions, sigs))

	ch, err := f.ledger.Channel(7)
	require.NoError(t, err)
	assert.Equal(t, PhaseShowdownPending, ch.Phase)
	require.NotNil(t, ch.Showdown)
	assert.Equal(t, uint64(2), ch.Showdown.Locked)
	assert.Equal(t, bob, ch.Showdown.Initiator)
	// Nothing moves until the reveal phase finishes.
	f.conservation(t, 200)
	assert.Equal(t, uint64(100), ch.BalanceA)
}

func TestSettleValidation(t *testing.T) {
	t.Parallel()

	t.Run("no blinds is not terminal", func(t *testing.T) {
		f := newFixture(t)
		f.active(t)
		actions, sigs := signedHand(7, 1, callMove(alice), foldMove(bob))
		assert.ErrorIs(t, f.ledger.Settle(alice, 7, actions, sigs), ErrReplayNotTerminal)
	})

	t.Run("broken chain rejected", func(t *testing.T) {
		f := newFixture(t)
		f.active(t)
		actions, sigs := foldHand(1)
		actions[2].Amount = 99 // mutates the digest downstream
		assert.ErrorIs(t, f.ledger.Settle(alice, 7, actions, sigs), transcript.ErrBrokenChain)
	})

	t.Run("wrong hand genesis rejected", func(t *testing.T) {
		f := newFixture(t)
		f.active(t)
		actions, sigs := foldHand(2) // current hand is 1
		assert.ErrorIs(t, f.ledger.Settle(alice, 7, actions, sigs), transcript.ErrWrongHand)
	})

	t.Run("bad signature rejects whole transcript", func(t *testing.T) {
		f := newFixture(t, func(c *Config) { c.Verifier = stubVerifier{ok: false} })
		f.active(t)
		actions, sigs := foldHand(1)
		assert.ErrorIs(t, f.ledger.Settle(alice, 7, actions, sigs), transcript.ErrBadSignature)
	})

	t.Run("signature count mismatch", func(t *testing.T) {
		f := newFixture(t)
		f.active(t)
		actions, sigs := foldHand(1)
		assert.ErrorIs(t, f.ledger.Settle(alice, 7, actions, sigs[:2]), transcript.ErrSignatureCount)
	})

	t.Run("outsider cannot settle", func(t *testing.T) {
		f := newFixture(t)
		f.active(t)
		actions, sigs := foldHand(1)
		assert.ErrorIs(t, f.ledger.Settle(stranger, 7, actions, sigs), ErrNotParticipant)
	})

	t.Run("failed settle leaves state untouched", func(t *testing.T) {
		f := newFixture(t)
		f.active(t)
		before, err := f.ledger.Channel(7)
		require.NoError(t, err)
		actions, sigs := foldHand(1)
		actions[3].PrevHash = transcript.Hash{}
		require.ErrorIs(t, f.ledger.Settle(alice, 7, actions, sigs), transcript.ErrBrokenChain)
		after, err := f.ledger.Channel(7)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

// --- dispute ------------------------------------------------------------------

func TestDisputeMonotonicity(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.active(t)

	short, shortSigs := signedHand(7, 1, sbMove(alice, 1), bbMove(bob, 2))
	longer, longerSigs := signedHand(7, 1, sbMove(alice, 1), bbMove(bob, 2), raiseMove(alice, 10))

	start := f.clock.Now()
	require.NoError(t, f.ledger.Dispute(alice, 7, short, shortSigs))

	d, err := f.ledger.DisputeState(7)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 2, d.TranscriptLength)
	assert.Equal(t, start.Add(disputeWindow), d.Deadline)
	assert.Equal(t, replay.Pending, d.ProjectedEnd)
	assert.Equal(t, [2]uint64{1, 1}, d.MinContributed)

	t.Run("equal length rejected", func(t *testing.T) {
		assert.ErrorIs(t, f.ledger.Dispute(bob, 7, short, shortSigs), ErrDisputeNotLonger)
	})

	t.Run("longer transcript supersedes and resets deadline", func(t *testing.T) {
		f.clock.Advance(3 * time.Minute)
		require.NoError(t, f.ledger.Dispute(bob, 7, longer, longerSigs))
		d, err := f.ledger.DisputeState(7)
		require.NoError(t, err)
		assert.Equal(t, 3, d.TranscriptLength)
		assert.Equal(t, bob, d.Filer)
		assert.Equal(t, start.Add(3*time.Minute+disputeWindow), d.Deadline)
		assert.Equal(t, EventTypeDisputeExtended, f.events[len(f.events)-1].EventType())
	})

	t.Run("shorter transcript rejected after extension", func(t *testing.T) {
		assert.ErrorIs(t, f.ledger.Dispute(alice, 7, short, shortSigs), ErrDisputeNotLonger)
	})
}

func TestFinalizeDisputeFoldProjection(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.active(t)

	// Alice folds to the big blind: she loses her 1.
	actions, sigs := signedHand(7, 1, sbMove(alice, 1), bbMove(bob, 2), foldMove(alice))
	require.NoError(t, f.ledger.Dispute(bob, 7, actions, sigs))

	assert.ErrorIs(t, f.ledger.FinalizeDispute(7), ErrDisputeWindowNotElapsed)

	f.clock.Advance(disputeWindow)
	require.NoError(t, f.ledger.FinalizeDispute(7))

	ch, err := f.ledger.Channel(7)
	require.NoError(t, err)
	assert.Equal(t, PhaseTerminal, ch.Phase)
	assert.Equal(t, uint64(99), ch.BalanceA)
	assert.Equal(t, uint64(101), ch.BalanceB)
	assert.Nil(t, ch.Dispute)
	f.conservation(t, 200)
}

func TestFinalizeDisputePendingShowdown(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.active(t)

	// Alice's raise to 50 is uncalled: only 2 a side is provable.
	actions, sigs := signedHand(7, 1,
		sbMove(alice, 1), bbMove(bob, 2), raiseMove(alice, 50))
	require.NoError(t, f.ledger.Dispute(alice, 7, actions, sigs))

	f.clock.Advance(disputeWindow)
	require.NoError(t, f.ledger.FinalizeDispute(7))

	ch, err := f.ledger.Channel(7)
	require.NoError(t, err)
	assert.Equal(t, PhaseShowdownPending, ch.Phase)
	require.NotNil(t, ch.Showdown)
	assert.Equal(t, uint64(2), ch.Showdown.Locked, "locked from provable minimum, not the filer's claim")
	assert.Equal(t, alice, ch.Showdown.Initiator)
}

func TestFinalizeDisputeCompleteShowdown(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.active(t)

	// A full four-street transcript filed as dispute evidence: the
	// counterparty never answers, so finalization opens the reveal
	// phase with the contested amount locked.
	actions, sigs := showdownHand(1)
	require.NoError(t, f.ledger.Dispute(bob, 7, actions, sigs))

	d, err := f.ledger.DisputeState(7)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, replay.ShowdownEnd, d.ProjectedEnd)
	assert.Equal(t, [2]uint64{2, 2}, d.MinContributed)

	f.clock.Advance(disputeWindow)
	require.NoError(t, f.ledger.FinalizeDispute(7))

	ch, err := f.ledger.Channel(7)
	require.NoError(t, err)
	assert.Equal(t, PhaseShowdownPending, ch.Phase)
	require.NotNil(t, ch.Showdown)
	assert.Equal(t, uint64(2), ch.Showdown.Locked)
	assert.Equal(t, bob, ch.Showdown.Initiator)
	assert.Nil(t, ch.Dispute)
	f.conservation(t, 200)

	assert.Equal(t, EventTypeShowdownStarted, f.events[len(f.events)-1].EventType())
}

func TestFinalizeDisputeVoidHand(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.active(t)

	// An empty transcript proves nothing was wagered.
	require.NoError(t, f.ledger.Dispute(alice, 7, nil, nil))
	f.clock.Advance(disputeWindow)
	require.NoError(t, f.ledger.FinalizeDispute(7))

	ch, err := f.ledger.Channel(7)
	require.NoError(t, err)
	assert.Equal(t, PhaseTerminal, ch.Phase)
	assert.Equal(t, uint64(100), ch.BalanceA)
	assert.Equal(t, uint64(100), ch.BalanceB)
}

func TestFinalizeDisputeRequiresRecord(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.active(t)
	assert.ErrorIs(t, f.ledger.FinalizeDispute(7), ErrNoDisputeOnFile)
}

func TestSettleSupersedesDispute(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.active(t)

	prefix, prefixSigs := signedHand(7, 1, sbMove(alice, 1), bbMove(bob, 2))
	require.NoError(t, f.ledger.Dispute(bob, 7, prefix, prefixSigs))

	actions, sigs := foldHand(1)
	require.NoError(t, f.ledger.Settle(alice, 7, actions, sigs))

	d, err := f.ledger.DisputeState(7)
	require.NoError(t, err)
	assert.Nil(t, d, "a complete transcript clears the dispute")
}

// --- showdown -----------------------------------------------------------------

// opening returns a placeholder proof; the test opener ignores it.
func opening(slot int) Opening {
	return Opening{Slot: slot, Proof: []byte{0xee}}
}

func allOpenings() []Opening {
	out := make([]Opening, NumSlots)
	for i := range out {
		out[i] = opening(i)
	}
	return out
}

func (f *fixture) toShowdown(t *testing.T) {
	t.Helper()
	f.active(t)
	actions, sigs := showdownHand(1)
	require.NoError(t, f.ledger.Settle(alice, 7, actions, sigs))
}

func TestShowdownAutoFinalizesOnFullMask(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.toShowdown(t)

	// Partial reveal first.
	require.NoError(t, f.ledger.RevealCards(alice, 7, opening(SlotHoleA1), opening(SlotHoleA2)))
	sd, err := f.ledger.ShowdownState(7)
	require.NoError(t, err)
	assert.Equal(t, MaskHoleA, sd.RevealedMask)

	// Completing the mask pays out in the same call. The slot opener
	// reveals card==slot, and the first-card ranker then scores B's
	// hole (card 2) over A's (card 0).
	rest := []Opening{
		opening(SlotHoleB1), opening(SlotHoleB2),
		opening(SlotFlop1), opening(SlotFlop2), opening(SlotFlop3),
		opening(SlotTurn), opening(SlotRiver),
	}
	require.NoError(t, f.ledger.RevealCards(bob, 7, rest...))

	ch, err := f.ledger.Channel(7)
	require.NoError(t, err)
	assert.Equal(t, PhaseTerminal, ch.Phase)
	assert.Nil(t, ch.Showdown)
	assert.Equal(t, uint64(98), ch.BalanceA)
	assert.Equal(t, uint64(102), ch.BalanceB)
	f.conservation(t, 200)

	last := f.events[len(f.events)-1].(ShowdownFinalizedEvent)
	assert.False(t, last.Tie)
	assert.Equal(t, bob, last.Winner)
	assert.Equal(t, uint64(2), last.Amount)

	t.Run("finalizing again fails", func(t *testing.T) {
		f.clock.Advance(revealWindow)
		assert.ErrorIs(t, f.ledger.FinalizeShowdown(7), ErrWrongPhase)
	})
}

func TestShowdownTieLeavesLockedAmount(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *Config) { c.Ranker = tieRanker() })
	f.toShowdown(t)

	require.NoError(t, f.ledger.RevealCards(alice, 7, allOpenings()...))

	ch, err := f.ledger.Channel(7)
	require.NoError(t, err)
	assert.Equal(t, PhaseTerminal, ch.Phase)
	assert.Equal(t, uint64(100), ch.BalanceA)
	assert.Equal(t, uint64(100), ch.BalanceB)

	last := f.events[len(f.events)-1].(ShowdownFinalizedEvent)
	assert.True(t, last.Tie)
}

func TestShowdownRevealValidation(t *testing.T) {
	t.Parallel()

	t.Run("duplicate slot rejected", func(t *testing.T) {
		f := newFixture(t)
		f.toShowdown(t)
		require.NoError(t, f.ledger.RevealCards(alice, 7, opening(SlotFlop1)))
		assert.ErrorIs(t, f.ledger.RevealCards(alice, 7, opening(SlotFlop1)), ErrSlotRevealed)
	})

	t.Run("slot out of range", func(t *testing.T) {
		f := newFixture(t)
		f.toShowdown(t)
		assert.ErrorIs(t, f.ledger.RevealCards(alice, 7, opening(9)), ErrBadSlot)
	})

	t.Run("rejected opening aborts whole batch", func(t *testing.T) {
		bad := fmt.Errorf("share does not verify")
		f := newFixture(t, func(c *Config) {
			c.Opener = openerFunc(func(_, _ uint64, slot int, _ []byte) (Card, error) {
				if slot == SlotTurn {
					return 0, bad
				}
				return Card(slot), nil
			})
		})
		f.toShowdown(t)
		err := f.ledger.RevealCards(alice, 7, opening(SlotFlop1), opening(SlotTurn))
		assert.ErrorIs(t, err, ErrBadOpening)
		sd, err := f.ledger.ShowdownState(7)
		require.NoError(t, err)
		assert.Zero(t, sd.RevealedMask, "failed batch must not partially apply")
	})

	t.Run("reveal after window closed", func(t *testing.T) {
		f := newFixture(t)
		f.toShowdown(t)
		f.clock.Advance(revealWindow)
		assert.ErrorIs(t, f.ledger.RevealCards(alice, 7, opening(SlotFlop1)), ErrRevealWindowClosed)
	})

	t.Run("outsider cannot reveal", func(t *testing.T) {
		f := newFixture(t)
		f.toShowdown(t)
		assert.ErrorIs(t, f.ledger.RevealCards(stranger, 7, opening(SlotFlop1)), ErrNotParticipant)
	})
}

func TestFinalizeShowdownAfterExpiry(t *testing.T) {
	t.Parallel()

	t.Run("before expiry fails", func(t *testing.T) {
		f := newFixture(t)
		f.toShowdown(t)
		assert.ErrorIs(t, f.ledger.FinalizeShowdown(7), ErrRevealWindowNotElapsed)
	})

	t.Run("side with complete reveals is paid", func(t *testing.T) {
		f := newFixture(t)
		f.toShowdown(t)
		// Alice reveals her hole cards and the board; bob reveals
		// nothing of his own.
		require.NoError(t, f.ledger.RevealCards(alice, 7,
			opening(SlotHoleA1), opening(SlotHoleA2),
			opening(SlotFlop1), opening(SlotFlop2), opening(SlotFlop3),
			opening(SlotTurn), opening(SlotRiver)))
		f.clock.Advance(revealWindow)
		require.NoError(t, f.ledger.FinalizeShowdown(7))

		ch, err := f.ledger.Channel(7)
		require.NoError(t, err)
		assert.Equal(t, PhaseTerminal, ch.Phase)
		assert.Equal(t, uint64(102), ch.BalanceA)
		assert.Equal(t, uint64(98), ch.BalanceB)
		f.conservation(t, 200)
	})

	t.Run("neither side complete is a tie", func(t *testing.T) {
		f := newFixture(t)
		f.toShowdown(t)
		require.NoError(t, f.ledger.RevealCards(alice, 7, opening(SlotFlop1)))
		f.clock.Advance(revealWindow)
		require.NoError(t, f.ledger.FinalizeShowdown(7))

		ch, err := f.ledger.Channel(7)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), ch.BalanceA)
		assert.Equal(t, uint64(100), ch.BalanceB)
	})
}

// --- channel reuse and withdraw -------------------------------------------------

func TestChannelReuseAcrossHands(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.active(t)

	actions, sigs := foldHand(1)
	require.NoError(t, f.ledger.Settle(alice, 7, actions, sigs))

	// Bob rejoins for the next hand on the escrow he already has.
	require.NoError(t, f.ledger.Join(bob, 7, 0))
	ch, err := f.ledger.Channel(7)
	require.NoError(t, err)
	assert.Equal(t, PhaseActive, ch.Phase)
	assert.Equal(t, uint64(2), ch.HandID)

	// The next hand settles against the new genesis.
	actions2, sigs2 := foldHand(2)
	require.NoError(t, f.ledger.Settle(bob, 7, actions2, sigs2))
	f.conservation(t, 200)
}

func TestWithdraw(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.active(t)

	t.Run("not withdrawable while active", func(t *testing.T) {
		_, err := f.ledger.Withdraw(alice, 7)
		assert.ErrorIs(t, err, ErrWrongPhase)
	})

	actions, sigs := foldHand(1)
	require.NoError(t, f.ledger.Settle(alice, 7, actions, sigs))

	amt, err := f.ledger.Withdraw(alice, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(102), amt)

	t.Run("nothing left for a second withdraw", func(t *testing.T) {
		_, err := f.ledger.Withdraw(alice, 7)
		assert.ErrorIs(t, err, ErrNothingToWithdraw)
	})

	amt, err = f.ledger.Withdraw(bob, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(98), amt)

	t.Run("channel removed once drained", func(t *testing.T) {
		_, err := f.ledger.Channel(7)
		assert.ErrorIs(t, err, ErrChannelNotFound)
	})

	last := f.events[len(f.events)-1].(WithdrawnEvent)
	assert.True(t, last.Closed)
}
