// Package protocol defines the wire-level message envelope and payload
// shapes exchanged between clients and the simulation engine. The binary
// serialization codec itself is an external collaborator (SPEC_FULL §1): this
// package only fixes the Go-side shape that a codec would marshal/unmarshal.
package protocol

import "time"

// MessageType is a short ASCII tag identifying a message's payload shape.
type MessageType string

// Client -> server message types.
const (
	TypeConnect     MessageType = "connect"
	TypeReconnect   MessageType = "reconnect"
	TypeHeartbeat   MessageType = "heartbeat"
	TypePlayerInput MessageType = "player_input"
	TypeLootGrab    MessageType = "loot_grab"
	TypeUseItem     MessageType = "use_item"
	TypeExtraction  MessageType = "extraction"
	TypeChat        MessageType = "chat"
	TypePing        MessageType = "ping"
	TypeMessageAck  MessageType = "message_ack"
	TypeDisconnect  MessageType = "disconnect"
)

// Server -> client message types.
const (
	TypeConnected           MessageType = "connected"
	TypeReconnectResponse   MessageType = "reconnect_response"
	TypeHeartbeatAck        MessageType = "heartbeat_ack"
	TypeError               MessageType = "error"
	TypePlayerJoined        MessageType = "player_joined"
	TypePlayerDisconnected  MessageType = "player_disconnected"
	TypePlayerReconnected   MessageType = "player_reconnected"
	TypeLobbyUpdate         MessageType = "lobby_update"
	TypeGameStarted         MessageType = "game_started"
	TypeWorldStateEssential MessageType = "world_state_essential"
	TypePlayerStatesBatch   MessageType = "player_states_batch"
	TypeMobUpdatesChunk     MessageType = "mob_updates_chunk"
	TypeCombatEvents        MessageType = "combat_events"
	TypeLootUpdates         MessageType = "loot_updates"
	TypeChatReceived        MessageType = "chat_received"
	TypeAdminMessage        MessageType = "admin_message"
	TypePong                MessageType = "pong"
	TypeFrameUpdate         MessageType = "frame_update"
)

// Envelope is the shape of every message exchanged over the datagram
// transport. Data carries the JSON-encoded payload matching Type; the
// wire-level binary/compressed framing is produced by the codec collaborator
// and is not modeled here.
type Envelope struct {
	Type      MessageType     `json:"type"`
	PlayerID  string          `json:"player_id,omitempty"`
	Data      []byte          `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}
