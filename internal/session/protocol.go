package session

import "encoding/json"

// Client-invocable actions.
const (
	ActionJoinRoom       = "join_room"
	ActionLeaveRoom      = "leave_room"
	ActionSendMessage    = "send_message"
	ActionDiceRoll       = "dice_roll"
	ActionGetOnlineUsers = "get_online_users"
)

// Events emitted to clients.
const (
	EventConnected      = "connected"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventUserJoinedRoom = "user_joined_room"
	EventUserLeftRoom   = "user_left_room"
	EventChatMessage    = "chat_message"
	EventDiceRolled     = "dice_rolled"
)

// ClientMessage is the envelope every client frame arrives in.
type ClientMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Frame is the envelope every server frame leaves in.
type Frame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type joinRoomRequest struct {
	RoomID string `json:"room_id"`
}

type leaveRoomRequest struct {
	RoomID string `json:"room_id"`
}

// Timestamps and dice results are relayed verbatim; the server neither
// validates nor normalizes them.
type sendMessageRequest struct {
	RoomID    string          `json:"room_id"`
	Message   string          `json:"message"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type diceRollRequest struct {
	RoomID    string          `json:"room_id"`
	DiceType  string          `json:"dice_type"`
	Result    json.RawMessage `json:"result"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type onlineUsersRequest struct {
	RoomID string `json:"room_id"`
}

type errorReply struct {
	Error string `json:"error"`
}

type okReply struct {
	Success bool `json:"success"`
}

type joinRoomReply struct {
	Success      bool   `json:"success"`
	RoomID       string `json:"room_id"`
	MembersCount int    `json:"members_count"`
}
