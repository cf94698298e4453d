package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 65536
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Connection wraps one websocket client.
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	relay     *Relay
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once

	player string
	roomID uuid.UUID
}

// NewConnection wraps an upgraded websocket.
func NewConnection(ws *websocket.Conn, relay *Relay, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:   ws,
		send:   make(chan *Message, 64),
		relay:  relay,
		logger: logger.WithPrefix("conn"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the read and write pumps.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close tears the connection down once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// Send queues a message for the client. A full buffer closes the
// connection rather than blocking the hub.
func (c *Connection) Send(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel already closed during shutdown.
			c.logger.Debug("send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("send buffer full, closing connection", "player", c.Player())
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// Player returns the identity announced in hello, if any.
func (c *Connection) Player() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.player
}

func (c *Connection) setPlayer(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.player = p
}

// Room returns the connection's current room, or uuid.Nil.
func (c *Connection) Room() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

// SetRoom records room membership.
func (c *Connection) SetRoom(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = id
}

func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			break
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("received message", "type", msg.Type, "player", c.Player())

	switch msg.Type {
	case MessageTypeHello:
		var data HelloData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse hello data")
			return
		}
		c.handleHello(data)

	case MessageTypeCreateRoom:
		var data CreateRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse create room data")
			return
		}
		c.handleCreateRoom(data)

	case MessageTypeJoinRoom:
		var data JoinRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse join room data")
			return
		}
		c.handleJoinRoom(data)

	case MessageTypeLeaveRoom:
		c.relay.leaveRoom(c)

	case MessageTypeRelay:
		var data RelayData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse relay data")
			return
		}
		if err := c.relay.forward(c, data); err != nil {
			c.sendError("relay_failed", err.Error())
		}

	default:
		c.sendError("unknown_message_type", "unknown message type: "+string(msg.Type))
	}
}

func (c *Connection) handleHello(data HelloData) {
	if data.Player == "" {
		c.sendError("invalid_hello", "player identity required")
		return
	}
	c.setPlayer(data.Player)

	response, _ := NewMessage(MessageTypeHelloAck, HelloAckData{Player: data.Player})
	_ = c.Send(response)
}

func (c *Connection) handleCreateRoom(data CreateRoomData) {
	if c.Player() == "" {
		c.sendError("not_identified", "must send hello first")
		return
	}
	id, err := c.relay.createRoom(c, data.ChannelID)
	if err != nil {
		c.sendError("create_failed", err.Error())
		return
	}
	response, _ := NewMessage(MessageTypeRoomCreated, RoomCreatedData{
		RoomID:    id.String(),
		ChannelID: data.ChannelID,
	})
	_ = c.Send(response)
}

func (c *Connection) handleJoinRoom(data JoinRoomData) {
	if c.Player() == "" {
		c.sendError("not_identified", "must send hello first")
		return
	}
	id, err := uuid.Parse(data.RoomID)
	if err != nil {
		c.sendError("invalid_room", "bad room id: "+err.Error())
		return
	}
	rm, err := c.relay.joinRoom(c, id)
	if err != nil {
		c.sendError("join_failed", err.Error())
		return
	}
	response, _ := NewMessage(MessageTypeRoomJoined, RoomJoinedData{
		RoomID:    id.String(),
		ChannelID: rm.channelID,
		Peer:      rm.members[0].Player(),
	})
	_ = c.Send(response)
}

func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("failed to create error message", "error", err)
		return
	}
	_ = c.Send(errorMsg)
}
