package channel

import "github.com/potchannel/potchannel/internal/transcript"

// EventType identifies a ledger transition.
type EventType string

const (
	EventTypeOpened            EventType = "opened"
	EventTypeJoined            EventType = "joined"
	EventTypeToppedUp          EventType = "topped_up"
	EventTypeSettled           EventType = "settled"
	EventTypeShowdownStarted   EventType = "showdown_started"
	EventTypeCardsRevealed     EventType = "cards_revealed"
	EventTypeShowdownFinalized EventType = "showdown_finalized"
	EventTypeDisputeStarted    EventType = "dispute_started"
	EventTypeDisputeExtended   EventType = "dispute_extended"
	EventTypeDisputeFinalized  EventType = "dispute_finalized"
	EventTypeWithdrawn         EventType = "withdrawn"
)

// Event is emitted once per successful state transition, with enough
// payload for an observer to track channel state without replaying
// transcripts itself.
type Event interface {
	EventType() EventType
	ChannelID() uint64
}

// EventSink receives ledger events. Called synchronously at the end of
// a successful operation, after all state has been committed.
type EventSink func(Event)

type base struct {
	Channel uint64
	HandID  uint64
}

func (b base) ChannelID() uint64 { return b.Channel }

// OpenedEvent is published when player A opens and funds a channel.
type OpenedEvent struct {
	base
	PlayerA       transcript.PlayerID
	PlayerB       transcript.PlayerID
	Deposit       uint64
	MinSmallBlind uint64
}

func (OpenedEvent) EventType() EventType { return EventTypeOpened }

// JoinedEvent is published when player B funds (or re-enters) the
// channel and play becomes possible.
type JoinedEvent struct {
	base
	Deposit  uint64
	BalanceA uint64
	BalanceB uint64
}

func (JoinedEvent) EventType() EventType { return EventTypeJoined }

// ToppedUpEvent is published on an accepted top-up.
type ToppedUpEvent struct {
	base
	Player   transcript.PlayerID
	Deposit  uint64
	BalanceA uint64
	BalanceB uint64
}

func (ToppedUpEvent) EventType() EventType { return EventTypeToppedUp }

// SettledEvent is published when a submitted transcript is accepted.
// For a fold the transfer has already happened; for a showdown the
// amount is locked pending reveals.
type SettledEvent struct {
	base
	Submitter transcript.PlayerID
	Fold      bool
	Winner    transcript.PlayerID // zero value when heading to showdown
	Amount    uint64
	BalanceA  uint64
	BalanceB  uint64
}

func (SettledEvent) EventType() EventType { return EventTypeSettled }

// ShowdownStartedEvent is published on entry to the reveal phase.
type ShowdownStartedEvent struct {
	base
	Initiator transcript.PlayerID
	Locked    uint64
	Deadline  int64 // unix seconds
}

func (ShowdownStartedEvent) EventType() EventType { return EventTypeShowdownStarted }

// CardsRevealedEvent is published when one or more openings are
// accepted without completing the mask.
type CardsRevealedEvent struct {
	base
	Revealer transcript.PlayerID
	NewMask  uint16
}

func (CardsRevealedEvent) EventType() EventType { return EventTypeCardsRevealed }

// ShowdownFinalizedEvent is published when the locked amount is paid
// out (or retained on a tie).
type ShowdownFinalizedEvent struct {
	base
	Winner   transcript.PlayerID // zero value on a tie
	Tie      bool
	Amount   uint64
	BalanceA uint64
	BalanceB uint64
}

func (ShowdownFinalizedEvent) EventType() EventType { return EventTypeShowdownFinalized }

// DisputeStartedEvent is published on the first accepted dispute of a
// hand; DisputeExtendedEvent on every superseding one.
type DisputeStartedEvent struct {
	base
	Filer            transcript.PlayerID
	TranscriptLength int
	Deadline         int64
}

func (DisputeStartedEvent) EventType() EventType { return EventTypeDisputeStarted }

type DisputeExtendedEvent struct {
	base
	Filer            transcript.PlayerID
	TranscriptLength int
	Deadline         int64
}

func (DisputeExtendedEvent) EventType() EventType { return EventTypeDisputeExtended }

// DisputeFinalizedEvent is published when an expired dispute is
// applied.
type DisputeFinalizedEvent struct {
	base
	Fold     bool
	Void     bool // projected end was NoBlinds: hand voided, no transfer
	Winner   transcript.PlayerID
	Amount   uint64
	BalanceA uint64
	BalanceB uint64
}

func (DisputeFinalizedEvent) EventType() EventType { return EventTypeDisputeFinalized }

// WithdrawnEvent is published when a player takes their balance out.
type WithdrawnEvent struct {
	base
	Player transcript.PlayerID
	Amount uint64
	// Closed reports that both balances are now zero and the channel
	// entry has been removed.
	Closed bool
}

func (WithdrawnEvent) EventType() EventType { return EventTypeWithdrawn }
