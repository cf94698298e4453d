package channel

import (
	"fmt"

	"github.com/potchannel/potchannel/internal/transcript"
)

// Opening is one card-opening proof for a specific slot. The proof
// format belongs to the card-commitment collaborator; the ledger only
// forwards it.
type Opening struct {
	Slot  int
	Proof []byte
}

// RevealCards accepts one or more openings during the reveal window.
// If the last opening completes the nine-bit mask, the same call also
// performs the payout; no separate finalize is needed.
func (l *Ledger) RevealCards(caller transcript.PlayerID, id uint64, openings ...Opening) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, err := l.load(id)
	if err != nil {
		return err
	}
	if ch.Phase != PhaseShowdownPending || ch.Showdown == nil {
		return fmt.Errorf("%w: reveal in phase %s", ErrWrongPhase, ch.Phase)
	}
	if ch.seat(caller) < 0 {
		return ErrNotParticipant
	}
	sd := ch.Showdown
	if !l.clock.Now().Before(sd.Deadline) {
		return ErrRevealWindowClosed
	}
	if len(openings) == 0 {
		return fmt.Errorf("%w: no openings supplied", ErrBadOpening)
	}

	for _, op := range openings {
		if op.Slot < 0 || op.Slot >= NumSlots {
			return fmt.Errorf("%w: slot %d", ErrBadSlot, op.Slot)
		}
		bit := uint16(1) << op.Slot
		if sd.RevealedMask&bit != 0 {
			return fmt.Errorf("%w: slot %d", ErrSlotRevealed, op.Slot)
		}
		card, err := l.opener.Open(ch.ID, ch.HandID, op.Slot, op.Proof)
		if err != nil {
			return fmt.Errorf("%w: slot %d: %v", ErrBadOpening, op.Slot, err)
		}
		sd.Revealed[op.Slot] = card
		sd.RevealedMask |= bit
	}

	if sd.RevealedMask == MaskAll {
		return l.payoutByRank(ch, caller)
	}

	if err := l.store.Put(ch); err != nil {
		return err
	}
	l.logger.Debug("cards revealed", "channel", id, "mask", fmt.Sprintf("%09b", sd.RevealedMask))
	l.emit(CardsRevealedEvent{
		base:     base{Channel: id, HandID: ch.HandID},
		Revealer: caller,
		NewMask:  sd.RevealedMask,
	})
	return nil
}

// FinalizeShowdown settles an expired reveal window with an incomplete
// mask. The side that revealed its own hand (with the full board) is
// paid; if neither side managed that, the locked amount stays where it
// is.
func (l *Ledger) FinalizeShowdown(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, err := l.load(id)
	if err != nil {
		return err
	}
	if ch.Phase != PhaseShowdownPending || ch.Showdown == nil {
		return fmt.Errorf("%w: finalize showdown in phase %s", ErrWrongPhase, ch.Phase)
	}
	sd := ch.Showdown
	if l.clock.Now().Before(sd.Deadline) {
		return ErrRevealWindowNotElapsed
	}

	requiredA := MaskHoleA | MaskBoard
	requiredB := MaskHoleB | MaskBoard
	completeA := sd.RevealedMask&requiredA == requiredA
	completeB := sd.RevealedMask&requiredB == requiredB

	switch {
	case completeA && !completeB:
		return l.settleShowdown(ch, 0, sd.Locked, false)
	case completeB && !completeA:
		return l.settleShowdown(ch, 1, sd.Locked, false)
	default:
		// Neither side completed valid reveals: tie, nothing moves.
		return l.settleShowdown(ch, -1, sd.Locked, true)
	}
}

// payoutByRank finalizes a fully revealed showdown using the external
// hand ranker; higher score always wins, a tie leaves the locked
// amount untransferred.
func (l *Ledger) payoutByRank(ch *Channel, revealer transcript.PlayerID) error {
	sd := ch.Showdown
	board := sd.Revealed[SlotFlop1 : SlotRiver+1]

	sevenA := [7]Card{sd.Revealed[SlotHoleA1], sd.Revealed[SlotHoleA2]}
	sevenB := [7]Card{sd.Revealed[SlotHoleB1], sd.Revealed[SlotHoleB2]}
	copy(sevenA[2:], board)
	copy(sevenB[2:], board)

	scoreA, err := l.ranker.Rank(sevenA)
	if err != nil {
		return fmt.Errorf("rank player A hand: %w", err)
	}
	scoreB, err := l.ranker.Rank(sevenB)
	if err != nil {
		return fmt.Errorf("rank player B hand: %w", err)
	}

	finalMask := sd.RevealedMask
	locked := sd.Locked

	var winnerSeat int
	tie := false
	switch {
	case scoreA > scoreB:
		winnerSeat = 0
	case scoreB > scoreA:
		winnerSeat = 1
	default:
		winnerSeat = -1
		tie = true
	}

	l.emit(CardsRevealedEvent{
		base:     base{Channel: ch.ID, HandID: ch.HandID},
		Revealer: revealer,
		NewMask:  finalMask,
	})
	return l.settleShowdown(ch, winnerSeat, locked, tie)
}

// settleShowdown applies the payout (or tie), finishes the hand and
// emits the finalization event.
func (l *Ledger) settleShowdown(ch *Channel, winnerSeat int, locked uint64, tie bool) error {
	var winner transcript.PlayerID
	if !tie && winnerSeat >= 0 {
		if err := l.transfer(ch, 1-winnerSeat, locked); err != nil {
			return err
		}
		winner = l.playerAt(ch, winnerSeat)
	}
	l.finishHand(ch)
	if err := l.store.Put(ch); err != nil {
		return err
	}
	l.logger.Info("showdown finalized", "channel", ch.ID, "tie", tie, "amount", locked)
	l.emit(ShowdownFinalizedEvent{
		base:     base{Channel: ch.ID, HandID: ch.HandID - 1},
		Winner:   winner,
		Tie:      tie,
		Amount:   locked,
		BalanceA: ch.BalanceA,
		BalanceB: ch.BalanceB,
	})
	return nil
}
