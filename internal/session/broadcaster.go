package session

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/SkeletonSFD/DnD-Project/internal/presence"
)

// Broadcaster fans events out to sets of live connections. Recipient sets are
// resolved through the registry at send time, never cached; a connection that
// vanished since the triggering event simply misses the delivery.
type Broadcaster struct {
	registry *presence.Registry
	logger   *slog.Logger
}

func NewBroadcaster(registry *presence.Registry, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		logger:   logger.With(slog.String("component", "broadcaster")),
	}
}

// ToConn delivers to a single connection. Unknown connections are dropped
// silently (best-effort, at-most-once).
func (b *Broadcaster) ToConn(connID uuid.UUID, event string, payload any) {
	msg, ok := b.encode(event, payload)
	if !ok {
		return
	}
	if sender, live := b.registry.SenderOf(connID); live {
		sender.Send(msg)
	}
}

// ToAll delivers to every live connection.
func (b *Broadcaster) ToAll(event string, payload any) {
	b.fanOut(b.registry.AllSenders(uuid.Nil), event, payload)
}

// ToAllExcept delivers to every live connection but one.
func (b *Broadcaster) ToAllExcept(except uuid.UUID, event string, payload any) {
	b.fanOut(b.registry.AllSenders(except), event, payload)
}

// ToRoom delivers to a room's current members.
func (b *Broadcaster) ToRoom(roomID, event string, payload any) {
	b.fanOut(b.registry.RoomSenders(roomID, uuid.Nil), event, payload)
}

// ToRoomExcept delivers to a room's current members but one.
func (b *Broadcaster) ToRoomExcept(roomID string, except uuid.UUID, event string, payload any) {
	b.fanOut(b.registry.RoomSenders(roomID, except), event, payload)
}

func (b *Broadcaster) fanOut(senders []presence.Sender, event string, payload any) {
	msg, ok := b.encode(event, payload)
	if !ok {
		return
	}
	for _, sender := range senders {
		sender.Send(msg)
	}
	b.logger.Debug("broadcast delivered",
		slog.String("event", event),
		slog.Int("recipients", len(senders)))
}

func (b *Broadcaster) encode(event string, payload any) ([]byte, bool) {
	msg, err := json.Marshal(Frame{Event: event, Payload: payload})
	if err != nil {
		b.logger.Error("failed to marshal frame",
			slog.String("event", event),
			slog.Any("error", err))
		return nil, false
	}
	return msg, true
}
