package channel

import (
	"fmt"

	"github.com/potchannel/potchannel/internal/replay"
	"github.com/potchannel/potchannel/internal/transcript"
)

// Settle adjudicates a complete transcript for the current hand. A
// fold transfers the folder's contribution immediately; a showdown
// locks the contested amount and opens the reveal phase.
func (l *Ledger) Settle(caller transcript.PlayerID, id uint64, actions []transcript.Action, sigs []transcript.Sigs) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, err := l.load(id)
	if err != nil {
		return err
	}
	if ch.Phase != PhaseActive {
		return fmt.Errorf("%w: settle in phase %s", ErrWrongPhase, ch.Phase)
	}
	if ch.seat(caller) < 0 {
		return ErrNotParticipant
	}
	if err := l.verifyTranscript(ch, actions, sigs); err != nil {
		return err
	}

	res, err := replay.ValidateComplete(actions, ch.BalanceA, ch.BalanceB, ch.MinSmallBlind, ch.PlayerA, ch.PlayerB)
	if err != nil {
		return err
	}
	if res.End == replay.NoBlinds {
		return ErrReplayNotTerminal
	}

	// A full transcript supersedes any pending dispute over the hand.
	ch.Dispute = nil

	switch res.End {
	case replay.FoldEnd:
		winner := 1 - res.Folder
		if err := l.transfer(ch, res.Folder, res.Won); err != nil {
			return err
		}
		l.finishHand(ch)
		if err := l.store.Put(ch); err != nil {
			return err
		}
		l.logger.Info("hand settled by fold", "channel", id, "hand", ch.HandID-1, "folder", res.Folder, "amount", res.Won)
		l.emit(SettledEvent{
			base:      base{Channel: id, HandID: ch.HandID - 1},
			Submitter: caller,
			Fold:      true,
			Winner:    l.playerAt(ch, winner),
			Amount:    res.Won,
			BalanceA:  ch.BalanceA,
			BalanceB:  ch.BalanceB,
		})
		return nil

	case replay.ShowdownEnd:
		l.openShowdown(ch, caller, res.Won)
		if err := l.store.Put(ch); err != nil {
			return err
		}
		l.logger.Info("hand settled to showdown", "channel", id, "hand", ch.HandID, "locked", res.Won)
		l.emit(SettledEvent{
			base:      base{Channel: id, HandID: ch.HandID},
			Submitter: caller,
			Amount:    res.Won,
			BalanceA:  ch.BalanceA,
			BalanceB:  ch.BalanceB,
		})
		l.emit(ShowdownStartedEvent{
			base:      base{Channel: id, HandID: ch.HandID},
			Initiator: caller,
			Locked:    res.Won,
			Deadline:  ch.Showdown.Deadline.Unix(),
		})
		return nil
	}
	return fmt.Errorf("settle: unexpected replay end %s", res.End)
}

// Dispute files (or supersedes) a partial transcript. Only a strictly
// longer transcript replaces the record, and every accepted filing
// restarts the full dispute window, so the counterparty always gets a
// fresh chance to answer evidence with more evidence.
func (l *Ledger) Dispute(caller transcript.PlayerID, id uint64, actions []transcript.Action, sigs []transcript.Sigs) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, err := l.load(id)
	if err != nil {
		return err
	}
	if ch.Phase != PhaseActive {
		return fmt.Errorf("%w: dispute in phase %s", ErrWrongPhase, ch.Phase)
	}
	if ch.seat(caller) < 0 {
		return ErrNotParticipant
	}
	if ch.Dispute != nil && len(actions) <= ch.Dispute.TranscriptLength {
		return fmt.Errorf("%w: filed %d, on file %d", ErrDisputeNotLonger, len(actions), ch.Dispute.TranscriptLength)
	}
	if err := l.verifyTranscript(ch, actions, sigs); err != nil {
		return err
	}

	res, err := replay.ValidatePrefix(actions, ch.BalanceA, ch.BalanceB, ch.MinSmallBlind, ch.PlayerA, ch.PlayerB)
	if err != nil {
		return err
	}

	extended := ch.Dispute != nil
	deadline := l.clock.Now().Add(l.disputeWindow)
	ch.Dispute = &DisputeRecord{
		Filer:            caller,
		TranscriptLength: len(actions),
		Deadline:         deadline,
		ProjectedEnd:     res.End,
		ProjectedFolder:  res.Folder,
		ProjectedAmount:  res.Won,
		MinContributed:   res.MinContributed,
	}
	if err := l.store.Put(ch); err != nil {
		return err
	}
	l.logger.Info("dispute filed", "channel", id, "hand", ch.HandID, "filer", caller,
		"actions", len(actions), "projected", res.End, "extended", extended)
	if extended {
		l.emit(DisputeExtendedEvent{
			base:             base{Channel: id, HandID: ch.HandID},
			Filer:            caller,
			TranscriptLength: len(actions),
			Deadline:         deadline.Unix(),
		})
	} else {
		l.emit(DisputeStartedEvent{
			base:             base{Channel: id, HandID: ch.HandID},
			Filer:            caller,
			TranscriptLength: len(actions),
			Deadline:         deadline.Unix(),
		})
	}
	return nil
}

// FinalizeDispute applies the stored projection once the window has
// elapsed. Callable by anyone: the filer has no say once the deadline
// passes.
func (l *Ledger) FinalizeDispute(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, err := l.load(id)
	if err != nil {
		return err
	}
	if ch.Phase != PhaseActive {
		return fmt.Errorf("%w: finalize dispute in phase %s", ErrWrongPhase, ch.Phase)
	}
	d := ch.Dispute
	if d == nil {
		return ErrNoDisputeOnFile
	}
	if l.clock.Now().Before(d.Deadline) {
		return ErrDisputeWindowNotElapsed
	}
	ch.Dispute = nil

	switch d.ProjectedEnd {
	case replay.FoldEnd:
		winner := 1 - d.ProjectedFolder
		if err := l.transfer(ch, d.ProjectedFolder, d.ProjectedAmount); err != nil {
			return err
		}
		l.finishHand(ch)
		if err := l.store.Put(ch); err != nil {
			return err
		}
		l.logger.Info("dispute finalized by fold", "channel", id, "folder", d.ProjectedFolder, "amount", d.ProjectedAmount)
		l.emit(DisputeFinalizedEvent{
			base:     base{Channel: id, HandID: ch.HandID - 1},
			Fold:     true,
			Winner:   l.playerAt(ch, winner),
			Amount:   d.ProjectedAmount,
			BalanceA: ch.BalanceA,
			BalanceB: ch.BalanceB,
		})
		return nil

	case replay.Pending, replay.ShowdownEnd:
		// Lock only what both sides provably committed; a dishonest
		// filer cannot inflate the counterparty's exposure. A complete
		// showdown transcript is the degenerate case where both totals
		// are fully matched.
		locked := min(d.MinContributed[0], d.MinContributed[1])
		l.openShowdown(ch, d.Filer, locked)
		if err := l.store.Put(ch); err != nil {
			return err
		}
		l.logger.Info("dispute finalized to showdown", "channel", id, "locked", locked)
		l.emit(DisputeFinalizedEvent{
			base:     base{Channel: id, HandID: ch.HandID},
			Amount:   locked,
			BalanceA: ch.BalanceA,
			BalanceB: ch.BalanceB,
		})
		l.emit(ShowdownStartedEvent{
			base:      base{Channel: id, HandID: ch.HandID},
			Initiator: d.Filer,
			Locked:    locked,
			Deadline:  ch.Showdown.Deadline.Unix(),
		})
		return nil

	case replay.NoBlinds:
		// Nothing provable was wagered: the hand is void.
		l.finishHand(ch)
		if err := l.store.Put(ch); err != nil {
			return err
		}
		l.logger.Info("dispute finalized void", "channel", id)
		l.emit(DisputeFinalizedEvent{
			base:     base{Channel: id, HandID: ch.HandID - 1},
			Void:     true,
			BalanceA: ch.BalanceA,
			BalanceB: ch.BalanceB,
		})
		return nil
	}
	return fmt.Errorf("finalize dispute: unexpected projection %s", d.ProjectedEnd)
}

// verifyTranscript checks hash-chain linkage against the hand's
// genesis and dual signatures on every action. Game rules are the
// replay engine's business, authenticity is decided here.
func (l *Ledger) verifyTranscript(ch *Channel, actions []transcript.Action, sigs []transcript.Sigs) error {
	if err := transcript.VerifyChain(actions, ch.ID, ch.HandID); err != nil {
		return err
	}
	return transcript.VerifyDualSigned(actions, sigs, ch.PlayerA, ch.PlayerB, l.verifier)
}

// finishHand moves a fully settled channel to terminal and advances
// the hand counter so the next hand gets a fresh genesis hash.
func (l *Ledger) finishHand(ch *Channel) {
	ch.Showdown = nil
	ch.Dispute = nil
	ch.Phase = PhaseTerminal
	ch.HandID++
}

func (l *Ledger) openShowdown(ch *Channel, initiator transcript.PlayerID, locked uint64) {
	ch.Phase = PhaseShowdownPending
	ch.Showdown = &ShowdownRecord{
		Initiator: initiator,
		Deadline:  l.clock.Now().Add(l.revealWindow),
		Locked:    locked,
	}
}

func (l *Ledger) playerAt(ch *Channel, seat int) transcript.PlayerID {
	if seat == 0 {
		return ch.PlayerA
	}
	return ch.PlayerB
}
