package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/rs/zerolog"

	"github.com/potchannel/potchannel/cmd/potchannel/shared"
	"github.com/potchannel/potchannel/internal/channel"
	"github.com/potchannel/potchannel/internal/config"
	"github.com/potchannel/potchannel/internal/handrank"
	"github.com/potchannel/potchannel/internal/reveal"
	"github.com/potchannel/potchannel/internal/store"
	"github.com/potchannel/potchannel/internal/transcript"
)

// DemoCmd runs one complete hand against a local ledger: open, join,
// play a scripted transcript to showdown, settle, force-reveal every
// card and withdraw. Useful for smoke-testing a store backend and for
// seeing the full protocol in one place.
type DemoCmd struct {
	Config  string `kong:"default='relay.hcl',help='Path to HCL configuration file'"`
	Channel uint64 `kong:"default='1',help='Channel id to use'"`
	Deposit uint64 `kong:"default='100',help='Deposit per player'"`
	Debug   bool   `kong:"help='Enable debug logging'"`
}

// card builds a suit-major index: suit 0..3 (club, diamond, heart,
// spade), rank 1..13 with 1 = ace.
func card(suit, rank int) channel.Card {
	return channel.Card(suit*13 + rank - 1)
}

func (c *DemoCmd) Run() error {
	logger := shared.SetupLogger(c.Debug, false)

	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	disputeWindow, err := cfg.DisputeWindow()
	if err != nil {
		return err
	}
	revealWindow, err := cfg.RevealWindow()
	if err != nil {
		return err
	}

	var st channel.Store
	switch cfg.Store.Backend {
	case "postgres":
		pg, err := store.NewPostgres(context.Background(), cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		st = pg
	default:
		st = store.NewMemory()
	}

	// Identities: signing keys for the transcript, reveal keys for the
	// encrypted deck.
	keyA, err := transcript.NewKeypair()
	if err != nil {
		return err
	}
	keyB, err := transcript.NewKeypair()
	if err != nil {
		return err
	}
	secA, pubA := reveal.NewKeypair()
	secB, pubB := reveal.NewKeypair()
	joint := reveal.JointKey(pubA, pubB)

	// The dealt hand: A holds aces, B holds kings, board bricks.
	cards := [channel.NumSlots]channel.Card{
		channel.SlotHoleA1: card(3, 1), // As
		channel.SlotHoleA2: card(2, 1), // Ah
		channel.SlotHoleB1: card(3, 13), // Ks
		channel.SlotHoleB2: card(2, 13), // Kh
		channel.SlotFlop1:  card(0, 2),
		channel.SlotFlop2:  card(1, 7),
		channel.SlotFlop3:  card(2, 9),
		channel.SlotTurn:   card(3, 4),
		channel.SlotRiver:  card(0, 11),
	}
	var slots [channel.NumSlots]reveal.Ciphertext
	for i, cd := range cards {
		ct, err := reveal.EncryptCard(joint, cd, reveal.RandomScalar())
		if err != nil {
			return err
		}
		slots[i] = ct
	}
	table := reveal.NewTable()
	table.RegisterHand(c.Channel, 1, pubA, pubB, slots)

	hubLogger := log.NewWithOptions(os.Stderr, log.Options{Level: log.WarnLevel})
	ledger, err := channel.NewLedger(channel.Config{
		Store:         st,
		Verifier:      transcript.SchnorrVerifier{},
		Opener:        table,
		Ranker:        handrank.New(),
		DisputeWindow: disputeWindow,
		RevealWindow:  revealWindow,
		Logger:        hubLogger,
		Events:        logEvents(logger),
	})
	if err != nil {
		return err
	}

	if err := ledger.Open(keyA.ID, c.Channel, keyB.ID, 1, c.Deposit); err != nil {
		return err
	}
	if err := ledger.Join(keyB.ID, c.Channel, c.Deposit); err != nil {
		return err
	}

	// Scripted hand: blinds, a preflop call and check, then checks to
	// the river. Both sign every action.
	actions, sigs, err := scriptedHand(c.Channel, 1, keyA, keyB)
	if err != nil {
		return err
	}
	if err := ledger.Settle(keyA.ID, c.Channel, actions, sigs); err != nil {
		return err
	}

	// Force-reveal every slot with dual DLEQ openings.
	openings := make([]channel.Opening, channel.NumSlots)
	for slot := range openings {
		shareA, err := reveal.NewShare(secA, slots[slot])
		if err != nil {
			return err
		}
		shareB, err := reveal.NewShare(secB, slots[slot])
		if err != nil {
			return err
		}
		proof, err := reveal.MarshalOpening(reveal.Opening{A: shareA, B: shareB})
		if err != nil {
			return err
		}
		openings[slot] = channel.Opening{Slot: slot, Proof: proof}
	}
	if err := ledger.RevealCards(keyA.ID, c.Channel, openings...); err != nil {
		return err
	}

	balanceA, balanceB, err := ledger.Balances(c.Channel)
	if err != nil {
		return err
	}
	fmt.Printf("final balances: A=%d B=%d\n", balanceA, balanceB)

	wonA, err := ledger.Withdraw(keyA.ID, c.Channel)
	if err != nil {
		return err
	}
	wonB, err := ledger.Withdraw(keyB.ID, c.Channel)
	if err != nil {
		return err
	}
	fmt.Printf("withdrawn: A=%d B=%d\n", wonA, wonB)
	return nil
}

// scriptedHand builds and dual-signs a check-down to showdown.
func scriptedHand(channelID, handID uint64, keyA, keyB *transcript.Keypair) ([]transcript.Action, []transcript.Sigs, error) {
	type move struct {
		key    *transcript.Keypair
		kind   transcript.Kind
		amount uint64
	}
	moves := []move{
		{keyA, transcript.SmallBlind, 1},
		{keyB, transcript.BigBlind, 2},
		{keyA, transcript.CheckCall, 0},
		{keyB, transcript.CheckCall, 0},
		{keyB, transcript.CheckCall, 0},
		{keyA, transcript.CheckCall, 0},
		{keyB, transcript.CheckCall, 0},
		{keyA, transcript.CheckCall, 0},
		{keyB, transcript.CheckCall, 0},
		{keyA, transcript.CheckCall, 0},
	}

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
			Sender:    m.key.ID,
		}
		digest := actions[i].Digest()
		prev = digest

		var err error
		if sigs[i].A, err = keyA.Sign(digest); err != nil {
			return nil, nil, err
		}
		if sigs[i].B, err = keyB.Sign(digest); err != nil {
			return nil, nil, err
		}
	}
	return actions, sigs, nil
}

// logEvents prints every ledger event through the CLI logger.
func logEvents(logger zerolog.Logger) channel.EventSink {
	return func(ev channel.Event) {
		logger.Info().
			Str("event", string(ev.EventType())).
			Uint64("channel", ev.ChannelID()).
			Msgf("%+v", ev)
	}
}
