package channel

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/potchannel/potchannel/internal/transcript"
)

// Store is durable keyed storage for channel entries. The ledger is
// the only writer; implementations live in internal/store.
type Store interface {
	// Get returns the stored entry, or ErrChannelNotFound.
	Get(id uint64) (*Channel, error)
	Put(ch *Channel) error
	Delete(id uint64) error
}

// CardOpener is the card-commitment collaborator: it verifies a
// forced-reveal opening for a slot and returns the plain card. The
// ledger treats it purely as an oracle.
type CardOpener interface {
	Open(channelID, handID uint64, slot int, opening []byte) (Card, error)
}

// HandRanker scores a seven-card hand; a higher score always wins.
type HandRanker interface {
	Rank(cards [7]Card) (int, error)
}

// Config wires the ledger's collaborators. DisputeWindow and
// RevealWindow are fixed durations, not derived data.
type Config struct {
	Store         Store
	Clock         quartz.Clock
	Verifier      transcript.Verifier
	Opener        CardOpener
	Ranker        HandRanker
	DisputeWindow time.Duration
	RevealWindow  time.Duration
	Logger        *log.Logger
	Events        EventSink
}

// Ledger is the settlement state machine over a single global store.
// One logical operation runs at a time; every entry point takes the
// lock, works on a copy, and commits (or discards) the whole result.
type Ledger struct {
	mu sync.Mutex

	store         Store
	clock         quartz.Clock
	verifier      transcript.Verifier
	opener        CardOpener
	ranker        HandRanker
	disputeWindow time.Duration
	revealWindow  time.Duration
	logger        *log.Logger
	sink          EventSink
}

// NewLedger creates a ledger. Store, Verifier, Opener and Ranker are
// required; Clock defaults to the real clock.
func NewLedger(cfg Config) (*Ledger, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ledger: store is required")
	}
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("ledger: signature verifier is required")
	}
	if cfg.Opener == nil {
		return nil, fmt.Errorf("ledger: card opener is required")
	}
	if cfg.Ranker == nil {
		return nil, fmt.Errorf("ledger: hand ranker is required")
	}
	if cfg.DisputeWindow <= 0 || cfg.RevealWindow <= 0 {
		return nil, fmt.Errorf("ledger: dispute and reveal windows must be positive")
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Ledger{
		store:         cfg.Store,
		clock:         cfg.Clock,
		verifier:      cfg.Verifier,
		opener:        cfg.Opener,
		ranker:        cfg.Ranker,
		disputeWindow: cfg.DisputeWindow,
		revealWindow:  cfg.RevealWindow,
		logger:        cfg.Logger.WithPrefix("ledger"),
		sink:          cfg.Events,
	}, nil
}

// Open creates and funds a channel as player A, naming the opponent.
func (l *Ledger) Open(caller transcript.PlayerID, id uint64, opponent transcript.PlayerID, minSmallBlind, deposit uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.store.Get(id); err == nil {
		return ErrChannelExists
	} else if !errors.Is(err, ErrChannelNotFound) {
		return err
	}
	if minSmallBlind == 0 {
		return fmt.Errorf("%w: zero minimum small blind", ErrDepositMismatch)
	}
	if deposit == 0 {
		return fmt.Errorf("%w: opening deposit must be positive", ErrDepositMismatch)
	}
	if caller == opponent {
		return fmt.Errorf("%w: cannot open against self", ErrNotInvited)
	}

	ch := &Channel{
		ID:            id,
		PlayerA:       caller,
		PlayerB:       opponent,
		BalanceA:      deposit,
		HandID:        1,
		MinSmallBlind: minSmallBlind,
		Phase:         PhaseOpened,
	}
	if err := l.store.Put(ch); err != nil {
		return err
	}
	l.logger.Info("channel opened", "channel", id, "playerA", caller, "playerB", opponent, "deposit", deposit)
	l.emit(OpenedEvent{
		base:          base{Channel: id, HandID: ch.HandID},
		PlayerA:       caller,
		PlayerB:       opponent,
		Deposit:       deposit,
		MinSmallBlind: minSmallBlind,
	})
	return nil
}

// Join funds the channel as the invited player B, activating play. A
// zero deposit is accepted only when a prior balance already sits in
// escrow from an earlier hand.
func (l *Ledger) Join(caller transcript.PlayerID, id uint64, deposit uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, err := l.load(id)
	if err != nil {
		return err
	}
	if ch.Phase != PhaseOpened && ch.Phase != PhaseTerminal {
		return fmt.Errorf("%w: join in phase %s", ErrWrongPhase, ch.Phase)
	}
	if caller != ch.PlayerB {
		return ErrNotInvited
	}
	if deposit == 0 && ch.BalanceB == 0 {
		return fmt.Errorf("%w: zero deposit with no escrowed balance", ErrDepositMismatch)
	}
	b, err := addBalance(ch.BalanceB, deposit)
	if err != nil {
		return err
	}
	ch.BalanceB = b
	ch.Phase = PhaseActive
	if err := l.store.Put(ch); err != nil {
		return err
	}
	l.logger.Info("channel joined", "channel", id, "deposit", deposit)
	l.emit(JoinedEvent{
		base:     base{Channel: id, HandID: ch.HandID},
		Deposit:  deposit,
		BalanceA: ch.BalanceA,
		BalanceB: ch.BalanceB,
	})
	return nil
}

// TopUp adds funds for either player between hands. Balances are the
// replay stacks for the hand in progress, so deposits may only change
// while the channel is terminal. A top-up is capped at the opponent's
// current balance so neither side can unilaterally over-fund.
func (l *Ledger) TopUp(caller transcript.PlayerID, id uint64, deposit uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, err := l.load(id)
	if err != nil {
		return err
	}
	if ch.Phase != PhaseTerminal {
		return fmt.Errorf("%w: top-up in phase %s", ErrWrongPhase, ch.Phase)
	}
	seat := ch.seat(caller)
	if seat < 0 {
		return ErrNotParticipant
	}
	if deposit == 0 {
		return fmt.Errorf("%w: zero top-up", ErrDepositMismatch)
	}
	if deposit > ch.balance(1-seat) {
		return ErrTopUpCapped
	}
	b, err := addBalance(ch.balance(seat), deposit)
	if err != nil {
		return err
	}
	ch.setBalance(seat, b)
	if err := l.store.Put(ch); err != nil {
		return err
	}
	l.logger.Info("channel topped up", "channel", id, "player", caller, "deposit", deposit)
	l.emit(ToppedUpEvent{
		base:     base{Channel: id, HandID: ch.HandID},
		Player:   caller,
		Deposit:  deposit,
		BalanceA: ch.BalanceA,
		BalanceB: ch.BalanceB,
	})
	return nil
}

// Withdraw pays the caller their full balance once the channel is
// terminal. When both balances reach zero the entry is removed.
func (l *Ledger) Withdraw(caller transcript.PlayerID, id uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, err := l.load(id)
	if err != nil {
		return 0, err
	}
	if ch.Phase != PhaseTerminal {
		return 0, fmt.Errorf("%w: withdraw in phase %s", ErrWrongPhase, ch.Phase)
	}
	seat := ch.seat(caller)
	if seat < 0 {
		return 0, ErrNotParticipant
	}
	amount := ch.balance(seat)
	if amount == 0 {
		return 0, ErrNothingToWithdraw
	}
	ch.setBalance(seat, 0)

	closed := ch.BalanceA == 0 && ch.BalanceB == 0
	if closed {
		if err := l.store.Delete(id); err != nil {
			return 0, err
		}
	} else {
		if err := l.store.Put(ch); err != nil {
			return 0, err
		}
	}
	l.logger.Info("withdrawn", "channel", id, "player", caller, "amount", amount, "closed", closed)
	l.emit(WithdrawnEvent{
		base:   base{Channel: id, HandID: ch.HandID},
		Player: caller,
		Amount: amount,
		Closed: closed,
	})
	return amount, nil
}

// Channel returns a read-only snapshot of the entry.
func (l *Ledger) Channel(id uint64) (Channel, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, err := l.load(id)
	if err != nil {
		return Channel{}, err
	}
	return *ch, nil
}

// Balances returns both escrowed balances.
func (l *Ledger) Balances(id uint64) (balanceA, balanceB uint64, err error) {
	ch, err := l.Channel(id)
	if err != nil {
		return 0, 0, err
	}
	return ch.BalanceA, ch.BalanceB, nil
}

// HandID returns the id of the hand currently playable (or just
// settled, when terminal the counter has already advanced).
func (l *Ledger) HandID(id uint64) (uint64, error) {
	ch, err := l.Channel(id)
	if err != nil {
		return 0, err
	}
	return ch.HandID, nil
}

// MinSmallBlind returns the channel's blind floor.
func (l *Ledger) MinSmallBlind(id uint64) (uint64, error) {
	ch, err := l.Channel(id)
	if err != nil {
		return 0, err
	}
	return ch.MinSmallBlind, nil
}

// DisputeState returns a copy of the open dispute record, if any.
func (l *Ledger) DisputeState(id uint64) (*DisputeRecord, error) {
	ch, err := l.Channel(id)
	if err != nil {
		return nil, err
	}
	if ch.Dispute == nil {
		return nil, nil
	}
	d := *ch.Dispute
	return &d, nil
}

// ShowdownState returns a copy of the open showdown record, if any.
func (l *Ledger) ShowdownState(id uint64) (*ShowdownRecord, error) {
	ch, err := l.Channel(id)
	if err != nil {
		return nil, err
	}
	if ch.Showdown == nil {
		return nil, nil
	}
	s := *ch.Showdown
	return &s, nil
}

// load fetches a working copy of the entry. Mutations happen on the
// copy and reach shared state only through store.Put.
func (l *Ledger) load(id uint64) (*Channel, error) {
	ch, err := l.store.Get(id)
	if err != nil {
		return nil, err
	}
	return ch.clone(), nil
}

func (l *Ledger) emit(ev Event) {
	if l.sink != nil {
		l.sink(ev)
	}
}

// transfer moves amount from one seat's balance to the other's. Called
// strictly after all other bookkeeping on the working copy.
func (l *Ledger) transfer(ch *Channel, fromSeat int, amount uint64) error {
	if amount > ch.balance(fromSeat) {
		return ErrBalanceOverflow
	}
	to, err := addBalance(ch.balance(1-fromSeat), amount)
	if err != nil {
		return err
	}
	ch.setBalance(fromSeat, ch.balance(fromSeat)-amount)
	ch.setBalance(1-fromSeat, to)
	return nil
}

func addBalance(a, b uint64) (uint64, error) {
	c := a + b
	if c < a {
		return 0, ErrBalanceOverflow
	}
	return c, nil
}
