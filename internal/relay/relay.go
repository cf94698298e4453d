// Package relay implements the untrusted rendezvous server: it pairs
// the two players of a channel into a room and forwards their framed
// messages verbatim. The relay never validates signatures or game
// rules; a dishonest relay can at worst drop or delay traffic, which
// the dispute path is designed to survive.
package relay

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Relay is the websocket hub.
type Relay struct {
	addr     string
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu    sync.RWMutex
	conns map[*Connection]bool
	rooms map[uuid.UUID]*room

	register   chan *Connection
	unregister chan *Connection
	done       chan struct{}
	closeOnce  sync.Once
}

// room pairs at most two connections for one channel.
type room struct {
	id        uuid.UUID
	channelID uint64
	members   [2]*Connection // members[0] is the creator
}

func (r *room) other(c *Connection) *Connection {
	if r.members[0] == c {
		return r.members[1]
	}
	if r.members[1] == c {
		return r.members[0]
	}
	return nil
}

// New creates a relay listening on addr.
func New(addr string, logger *log.Logger) *Relay {
	return &Relay{
		addr: addr,
		upgrader: websocket.Upgrader{
			// The relay carries only signed or opaque payloads, so any
			// origin may connect.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:     logger.WithPrefix("relay"),
		conns:      make(map[*Connection]bool),
		rooms:      make(map[uuid.UUID]*room),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop and serves websocket upgrades until the
// listener fails or Stop is called.
func (r *Relay) Start() error {
	go r.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", r.handleWebSocket)
	mux.HandleFunc("/health", r.handleHealth)

	r.logger.Info("starting relay", "addr", r.addr)
	return http.ListenAndServe(r.addr, mux)
}

// Handler returns the relay's HTTP handler for callers that manage
// their own listener (tests use this with httptest).
func (r *Relay) Handler() http.Handler {
	go r.run()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", r.handleWebSocket)
	mux.HandleFunc("/health", r.handleHealth)
	return mux
}

// Stop closes every connection and terminates the hub loop.
func (r *Relay) Stop() {
	r.closeOnce.Do(func() { close(r.done) })

	r.mu.Lock()
	for conn := range r.conns {
		_ = conn.Close()
	}
	r.mu.Unlock()
}

func (r *Relay) run() {
	for {
		select {
		case conn := <-r.register:
			r.mu.Lock()
			r.conns[conn] = true
			total := len(r.conns)
			r.mu.Unlock()
			r.logger.Info("client connected", "total", total)

		case conn := <-r.unregister:
			r.dropConnection(conn)

		case <-r.done:
			return
		}
	}
}

// dropConnection removes a connection and tears down its room, telling
// the peer so it can re-pair.
func (r *Relay) dropConnection(conn *Connection) {
	r.mu.Lock()
	if _, ok := r.conns[conn]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, conn)
	total := len(r.conns)

	var peer *Connection
	var left *room
	if roomID := conn.Room(); roomID != uuid.Nil {
		if rm, ok := r.rooms[roomID]; ok {
			peer = rm.other(conn)
			left = rm
			delete(r.rooms, roomID)
		}
	}
	r.mu.Unlock()

	if peer != nil {
		peer.SetRoom(uuid.Nil)
		msg, err := NewMessage(MessageTypePeerLeft, PeerLeftData{
			RoomID: left.id.String(),
			Player: conn.Player(),
		})
		if err == nil {
			_ = peer.Send(msg)
		}
	}
	_ = conn.Close()
	r.logger.Info("client disconnected", "total", total)
}

// createRoom registers a fresh room with the caller as first member.
func (r *Relay) createRoom(conn *Connection, channelID uint64) (uuid.UUID, error) {
	if conn.Room() != uuid.Nil {
		return uuid.Nil, fmt.Errorf("already in a room")
	}
	id := uuid.New()

	r.mu.Lock()
	r.rooms[id] = &room{id: id, channelID: channelID, members: [2]*Connection{conn}}
	r.mu.Unlock()

	conn.SetRoom(id)
	r.logger.Info("room created", "room", id, "channel", channelID, "player", conn.Player())
	return id, nil
}

// joinRoom adds the caller as the second member and notifies the
// creator.
func (r *Relay) joinRoom(conn *Connection, id uuid.UUID) (*room, error) {
	if conn.Room() != uuid.Nil {
		return nil, fmt.Errorf("already in a room")
	}

	r.mu.Lock()
	rm, ok := r.rooms[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("room %s not found", id)
	}
	if rm.members[1] != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("room %s is full", id)
	}
	rm.members[1] = conn
	r.mu.Unlock()

	conn.SetRoom(id)
	r.logger.Info("room joined", "room", id, "player", conn.Player())

	notice, err := NewMessage(MessageTypePeerJoined, PeerJoinedData{
		RoomID: id.String(),
		Player: conn.Player(),
	})
	if err == nil {
		_ = rm.members[0].Send(notice)
	}
	return rm, nil
}

// leaveRoom removes the caller's room entirely; pairing is cheap and a
// half-empty room has no value.
func (r *Relay) leaveRoom(conn *Connection) {
	id := conn.Room()
	if id == uuid.Nil {
		return
	}

	r.mu.Lock()
	rm, ok := r.rooms[id]
	if ok {
		delete(r.rooms, id)
	}
	r.mu.Unlock()

	conn.SetRoom(uuid.Nil)
	if !ok {
		return
	}
	if peer := rm.other(conn); peer != nil {
		peer.SetRoom(uuid.Nil)
		msg, err := NewMessage(MessageTypePeerLeft, PeerLeftData{
			RoomID: id.String(),
			Player: conn.Player(),
		})
		if err == nil {
			_ = peer.Send(msg)
		}
	}
	r.logger.Info("room closed", "room", id)
}

// forward passes an opaque payload to the other member of the caller's
// room.
func (r *Relay) forward(conn *Connection, data RelayData) error {
	id, err := uuid.Parse(data.RoomID)
	if err != nil {
		return fmt.Errorf("bad room id: %w", err)
	}
	if conn.Room() != id {
		return fmt.Errorf("not a member of room %s", id)
	}

	r.mu.RLock()
	rm, ok := r.rooms[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("room %s not found", id)
	}
	peer := rm.other(conn)
	if peer == nil {
		return fmt.Errorf("no peer in room %s yet", id)
	}

	msg, err := NewMessage(MessageTypeRelay, RelayData{
		RoomID:  data.RoomID,
		Payload: data.Payload,
	})
	if err != nil {
		return err
	}
	return peer.Send(msg)
}

func (r *Relay) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	conn := NewConnection(ws, r, r.logger)
	r.register <- conn
	conn.Start()

	go func() {
		<-conn.ctx.Done()
		select {
		case r.unregister <- conn:
		case <-r.done:
		}
	}()
}

func (r *Relay) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}
