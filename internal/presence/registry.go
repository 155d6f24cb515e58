// Package presence tracks which authenticated connections are online and
// which rooms they occupy. It is the single source of truth for broadcasts.
package presence

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/SkeletonSFD/DnD-Project/internal/identity"
)

var (
	ErrAlreadyRegistered = errors.New("connection is already registered")
	ErrNotRegistered     = errors.New("connection is not registered")
	ErrInvalidRoom       = errors.New("invalid room id")
	// ErrNotMember covers both "room does not exist" and "connection is not a
	// member of that room"; the two are indistinguishable by design.
	ErrNotMember = errors.New("not in this room")
)

// Sender is the delivery half of a live connection.
type Sender interface {
	Send(message []byte)
}

type entry struct {
	identity identity.Snapshot
	sender   Sender
}

// Registry maps live connections to identities and to room member sets.
//
// One lock guards both maps so every operation is an indivisible critical
// section: no caller can observe a room member whose connection is gone, or a
// room entry with no members. Delivery never happens under the lock; readers
// take snapshots and fan out after releasing it.
type Registry struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]*entry
	rooms  map[string]map[uuid.UUID]struct{}
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		conns:  make(map[uuid.UUID]*entry),
		rooms:  make(map[string]map[uuid.UUID]struct{}),
		logger: logger.With(slog.String("component", "presence_registry")),
	}
}

// Register records an authenticated connection. The connID must not already
// be present; a reconnect produces a fresh id.
func (r *Registry) Register(connID uuid.UUID, ident identity.Snapshot, sender Sender) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[connID]; exists {
		return ErrAlreadyRegistered
	}
	r.conns[connID] = &entry{identity: ident, sender: sender}

	r.logger.Debug("connection registered",
		slog.String("connID", connID.String()),
		slog.String("username", ident.Username))
	return nil
}

// Unregister removes the connection and sweeps it out of every room it
// belongs to, deleting rooms left empty. It returns the identity the
// connection carried and the rooms it was removed from, so the caller can
// emit departure notices. Unregistering an unknown connID is a no-op.
func (r *Registry) Unregister(connID uuid.UUID) (identity.Snapshot, []string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ent, ok := r.conns[connID]
	if !ok {
		return identity.Snapshot{}, nil, false
	}
	delete(r.conns, connID)

	var affected []string
	for roomID, members := range r.rooms {
		if _, in := members[connID]; !in {
			continue
		}
		delete(members, connID)
		affected = append(affected, roomID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}

	r.logger.Debug("connection unregistered",
		slog.String("connID", connID.String()),
		slog.String("username", ent.identity.Username),
		slog.Int("rooms_left", len(affected)))
	return ent.identity, affected, true
}

// JoinRoom adds the connection to a room, creating the room on first join.
// Joining a room twice is idempotent. Returns the post-join member count.
func (r *Registry) JoinRoom(connID uuid.UUID, roomID string) (int, error) {
	if roomID == "" {
		return 0, ErrInvalidRoom
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; !ok {
		return 0, ErrNotRegistered
	}

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		r.rooms[roomID] = members
	}
	members[connID] = struct{}{}

	return len(members), nil
}

// LeaveRoom removes the connection from a room, deleting the room if it is
// now empty. The removal and the empty-room delete are one critical section.
func (r *Registry) LeaveRoom(connID uuid.UUID, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return ErrNotMember
	}
	if _, in := members[connID]; !in {
		return ErrNotMember
	}

	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
	return nil
}

// IdentityOf returns the identity snapshot for a live connection.
func (r *Registry) IdentityOf(connID uuid.UUID) (identity.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ent, ok := r.conns[connID]
	if !ok {
		return identity.Snapshot{}, false
	}
	return ent.identity, true
}

// MembersOf returns the connection ids currently in a room. Unknown rooms
// yield an empty slice, not an error.
func (r *Registry) MembersOf(roomID string) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	out := make([]uuid.UUID, 0, len(members))
	for connID := range members {
		out = append(out, connID)
	}
	return out
}

// RoomIdentities returns the identities of one room's members. The second
// return reports whether the room exists.
func (r *Registry) RoomIdentities(roomID string) ([]identity.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	out := make([]identity.Snapshot, 0, len(members))
	for connID := range members {
		if ent, live := r.conns[connID]; live {
			out = append(out, ent.identity)
		}
	}
	return out, true
}

// AllIdentities returns the identities of every live connection.
func (r *Registry) AllIdentities() []identity.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]identity.Snapshot, 0, len(r.conns))
	for _, ent := range r.conns {
		out = append(out, ent.identity)
	}
	return out
}

// SenderOf returns the delivery channel for one connection.
func (r *Registry) SenderOf(connID uuid.UUID) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ent, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	return ent.sender, true
}

// RoomSenders snapshots the senders of a room's members, minus the excluded
// connection. uuid.Nil excludes nobody.
func (r *Registry) RoomSenders(roomID string, except uuid.UUID) []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	out := make([]Sender, 0, len(members))
	for connID := range members {
		if connID == except {
			continue
		}
		if ent, ok := r.conns[connID]; ok {
			out = append(out, ent.sender)
		}
	}
	return out
}

// AllSenders snapshots every live sender, minus the excluded connection.
func (r *Registry) AllSenders(except uuid.UUID) []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Sender, 0, len(r.conns))
	for connID, ent := range r.conns {
		if connID == except {
			continue
		}
		out = append(out, ent.sender)
	}
	return out
}

// UserConnectionCount reports how many live connections a user has.
func (r *Registry) UserConnectionCount(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, ent := range r.conns {
		if ent.identity.UserID == userID {
			count++
		}
	}
	return count
}

// Counts returns the number of live connections and occupied rooms.
func (r *Registry) Counts() (conns, rooms int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns), len(r.rooms)
}
