// Package session implements the real-time protocol: event dispatch, room
// membership changes, and the broadcasts they trigger.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/SkeletonSFD/DnD-Project/internal/identity"
	"github.com/SkeletonSFD/DnD-Project/internal/presence"
)

// Handler dispatches client frames to the action they name. Every action
// re-checks that the connection is still registered: a disconnect can race an
// in-flight event, and the registry is the authority, not the transport.
type Handler struct {
	registry    *presence.Registry
	broadcaster *Broadcaster
	logger      *slog.Logger
}

func NewHandler(registry *presence.Registry, broadcaster *Broadcaster, logger *slog.Logger) *Handler {
	return &Handler{
		registry:    registry,
		broadcaster: broadcaster,
		logger:      logger.With(slog.String("component", "session_handler")),
	}
}

// HandleConnect emits the welcome frame to the new connection and announces
// it to everyone else. The connection must already be registered.
func (h *Handler) HandleConnect(connID uuid.UUID) {
	ident, ok := h.registry.IdentityOf(connID)
	if !ok {
		return
	}

	h.broadcaster.ToConn(connID, EventConnected, map[string]any{
		"message": fmt.Sprintf("Welcome, %s!", ident.Username),
		"user":    ident,
	})
	h.broadcaster.ToAllExcept(connID, EventUserJoined, map[string]any{
		"username":       ident.Username,
		"character_name": ident.CharacterName,
	})
}

// HandleDisconnect removes the connection from the registry and notifies each
// room it occupied, then everyone. Safe to call for unknown connections.
func (h *Handler) HandleDisconnect(connID uuid.UUID) {
	ident, rooms, ok := h.registry.Unregister(connID)
	if !ok {
		return
	}

	for _, roomID := range rooms {
		h.broadcaster.ToRoom(roomID, EventUserLeftRoom, map[string]any{
			"username": ident.Username,
			"room_id":  roomID,
		})
	}
	h.broadcaster.ToAll(EventUserLeft, map[string]any{
		"username": ident.Username,
	})

	h.logger.Info("user disconnected",
		slog.String("username", ident.Username),
		slog.Int("rooms_left", len(rooms)))
}

// HandleMessage decodes a client frame and executes the named action. The
// reply frame reuses the request's event name and carries either a success
// object or an error string.
func (h *Handler) HandleMessage(_ context.Context, connID uuid.UUID, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Warn("failed to unmarshal client message",
			slog.String("connID", connID.String()),
			slog.Any("error", err))
		return
	}

	ident, ok := h.registry.IdentityOf(connID)
	if !ok {
		h.reply(connID, msg.Event, errorReply{Error: "not authenticated"})
		return
	}

	switch msg.Event {
	case ActionJoinRoom:
		h.joinRoom(connID, ident, msg.Payload)
	case ActionLeaveRoom:
		h.leaveRoom(connID, ident, msg.Payload)
	case ActionSendMessage:
		h.sendMessage(connID, ident, msg.Payload)
	case ActionDiceRoll:
		h.diceRoll(connID, ident, msg.Payload)
	case ActionGetOnlineUsers:
		h.getOnlineUsers(connID, msg.Payload)
	default:
		h.logger.Warn("received unknown event",
			slog.String("event", msg.Event),
			slog.String("connID", connID.String()))
		h.reply(connID, msg.Event, errorReply{Error: "unknown event"})
	}
}

func (h *Handler) joinRoom(connID uuid.UUID, ident identity.Snapshot, payload json.RawMessage) {
	var req joinRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.RoomID == "" {
		h.reply(connID, ActionJoinRoom, errorReply{Error: "missing room id"})
		return
	}

	count, err := h.registry.JoinRoom(connID, req.RoomID)
	if err != nil {
		h.reply(connID, ActionJoinRoom, errorReply{Error: "not authenticated"})
		return
	}

	h.broadcaster.ToRoomExcept(req.RoomID, connID, EventUserJoinedRoom, map[string]any{
		"username":       ident.Username,
		"character_name": ident.CharacterName,
		"room_id":        req.RoomID,
	})
	h.reply(connID, ActionJoinRoom, joinRoomReply{
		Success:      true,
		RoomID:       req.RoomID,
		MembersCount: count,
	})

	h.logger.Info("user joined room",
		slog.String("username", ident.Username),
		slog.String("roomID", req.RoomID),
		slog.Int("members", count))
}

func (h *Handler) leaveRoom(connID uuid.UUID, ident identity.Snapshot, payload json.RawMessage) {
	var req leaveRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.RoomID == "" {
		h.reply(connID, ActionLeaveRoom, errorReply{Error: "missing room id"})
		return
	}

	if err := h.registry.LeaveRoom(connID, req.RoomID); err != nil {
		if errors.Is(err, presence.ErrNotMember) {
			h.reply(connID, ActionLeaveRoom, errorReply{Error: "not in this room"})
			return
		}
		h.reply(connID, ActionLeaveRoom, errorReply{Error: err.Error()})
		return
	}

	// Remaining members only; the leaver is already out of the set.
	h.broadcaster.ToRoom(req.RoomID, EventUserLeftRoom, map[string]any{
		"username": ident.Username,
		"room_id":  req.RoomID,
	})
	h.reply(connID, ActionLeaveRoom, okReply{Success: true})

	h.logger.Info("user left room",
		slog.String("username", ident.Username),
		slog.String("roomID", req.RoomID))
}

func (h *Handler) sendMessage(connID uuid.UUID, ident identity.Snapshot, payload json.RawMessage) {
	var req sendMessageRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.reply(connID, ActionSendMessage, errorReply{Error: "invalid payload"})
		return
	}

	text := strings.TrimSpace(req.Message)
	if text == "" {
		h.reply(connID, ActionSendMessage, errorReply{Error: "empty message"})
		return
	}

	envelope := map[string]any{
		"username":       ident.Username,
		"character_name": ident.CharacterName,
		"message":        text,
		"timestamp":      req.Timestamp,
	}
	if req.RoomID != "" {
		h.broadcaster.ToRoom(req.RoomID, EventChatMessage, envelope)
	} else {
		h.broadcaster.ToAll(EventChatMessage, envelope)
	}
	h.reply(connID, ActionSendMessage, okReply{Success: true})
}

func (h *Handler) diceRoll(connID uuid.UUID, ident identity.Snapshot, payload json.RawMessage) {
	var req diceRollRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.reply(connID, ActionDiceRoll, errorReply{Error: "invalid payload"})
		return
	}

	if req.DiceType == "" {
		req.DiceType = "d20"
	}

	// The roll is whatever the client says it is; this is a shared dice
	// display, not an anti-cheat system.
	envelope := map[string]any{
		"username":       ident.Username,
		"character_name": ident.CharacterName,
		"dice_type":      req.DiceType,
		"result":         req.Result,
		"timestamp":      req.Timestamp,
	}
	if req.RoomID != "" {
		h.broadcaster.ToRoom(req.RoomID, EventDiceRolled, envelope)
	} else {
		h.broadcaster.ToAll(EventDiceRolled, envelope)
	}
	h.reply(connID, ActionDiceRoll, okReply{Success: true})
}

func (h *Handler) getOnlineUsers(connID uuid.UUID, payload json.RawMessage) {
	var req onlineUsersRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			h.reply(connID, ActionGetOnlineUsers, errorReply{Error: "invalid payload"})
			return
		}
	}

	// An unknown room falls back to the full online list rather than erroring.
	var users []identity.Snapshot
	if req.RoomID != "" {
		if roomUsers, ok := h.registry.RoomIdentities(req.RoomID); ok {
			users = roomUsers
		} else {
			users = h.registry.AllIdentities()
		}
	} else {
		users = h.registry.AllIdentities()
	}

	h.reply(connID, ActionGetOnlineUsers, map[string]any{
		"success": true,
		"users":   users,
		"count":   len(users),
	})
}

func (h *Handler) reply(connID uuid.UUID, event string, payload any) {
	h.broadcaster.ToConn(connID, event, payload)
}
