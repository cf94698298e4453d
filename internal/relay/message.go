package relay

import (
	"encoding/json"
	"time"
)

// MessageType identifies a relay protocol message.
type MessageType string

const (
	// Client → relay
	MessageTypeHello      MessageType = "hello"
	MessageTypeCreateRoom MessageType = "create_room"
	MessageTypeJoinRoom   MessageType = "join_room"
	MessageTypeLeaveRoom  MessageType = "leave_room"
	MessageTypeRelay      MessageType = "relay"

	// Relay → client
	MessageTypeHelloAck    MessageType = "hello_ack"
	MessageTypeRoomCreated MessageType = "room_created"
	MessageTypeRoomJoined  MessageType = "room_joined"
	MessageTypePeerJoined  MessageType = "peer_joined"
	MessageTypePeerLeft    MessageType = "peer_left"
	MessageTypeError       MessageType = "error"
)

// Message is the framing envelope. The relay reads only the envelope
// and the routing fields of its own control messages; relayed payloads
// pass through untouched.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps a payload in an envelope with the current timestamp.
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → relay payloads

type HelloData struct {
	// Player is the hex-encoded public key the client identifies as.
	// The relay does not verify it; signatures are checked by the
	// counterparty and the ledger, never here.
	Player string `json:"player"`
}

type CreateRoomData struct {
	ChannelID uint64 `json:"channelId"`
}

type JoinRoomData struct {
	RoomID string `json:"roomId"`
}

type LeaveRoomData struct {
	RoomID string `json:"roomId"`
}

// RelayData carries an opaque payload to the other member of the room:
// a signed action, a reveal opening, or anything else the two clients
// agree on.
type RelayData struct {
	RoomID  string          `json:"roomId"`
	Payload json.RawMessage `json:"payload"`
}

// Relay → client payloads

type HelloAckData struct {
	Player string `json:"player"`
}

type RoomCreatedData struct {
	RoomID    string `json:"roomId"`
	ChannelID uint64 `json:"channelId"`
}

type RoomJoinedData struct {
	RoomID    string `json:"roomId"`
	ChannelID uint64 `json:"channelId"`
	Peer      string `json:"peer"`
}

type PeerJoinedData struct {
	RoomID string `json:"roomId"`
	Player string `json:"player"`
}

type PeerLeftData struct {
	RoomID string `json:"roomId"`
	Player string `json:"player"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
