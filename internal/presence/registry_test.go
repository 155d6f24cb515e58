package presence_test

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkeletonSFD/DnD-Project/internal/identity"
	"github.com/SkeletonSFD/DnD-Project/internal/presence"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

type nopSender struct{}

func (nopSender) Send([]byte) {}

func newIdent(id int64, name string) identity.Snapshot {
	return identity.Snapshot{UserID: id, Username: name}
}

func TestRegisterAndIdentity(t *testing.T) {
	r := presence.NewRegistry(testLogger())
	connID := uuid.New()

	require.NoError(t, r.Register(connID, newIdent(1, "alice"), nopSender{}))

	ident, ok := r.IdentityOf(connID)
	require.True(t, ok)
	assert.Equal(t, "alice", ident.Username)

	// same connID cannot be registered twice
	err := r.Register(connID, newIdent(2, "bob"), nopSender{})
	assert.ErrorIs(t, err, presence.ErrAlreadyRegistered)
}

func TestJoinRoomIdempotent(t *testing.T) {
	r := presence.NewRegistry(testLogger())
	connID := uuid.New()
	require.NoError(t, r.Register(connID, newIdent(1, "alice"), nopSender{}))

	count, err := r.JoinRoom(connID, "table-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// joining again changes nothing
	count, err = r.JoinRoom(connID, "table-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Len(t, r.MembersOf("table-1"), 1)
}

func TestJoinRoomValidation(t *testing.T) {
	r := presence.NewRegistry(testLogger())
	connID := uuid.New()
	require.NoError(t, r.Register(connID, newIdent(1, "alice"), nopSender{}))

	_, err := r.JoinRoom(connID, "")
	assert.ErrorIs(t, err, presence.ErrInvalidRoom)

	_, err = r.JoinRoom(uuid.New(), "table-1")
	assert.ErrorIs(t, err, presence.ErrNotRegistered)

	// the failed join must not have created the room
	_, rooms := r.Counts()
	assert.Equal(t, 0, rooms)
}

func TestLeaveRoomNotMember(t *testing.T) {
	r := presence.NewRegistry(testLogger())
	a, b := uuid.New(), uuid.New()
	require.NoError(t, r.Register(a, newIdent(1, "alice"), nopSender{}))
	require.NoError(t, r.Register(b, newIdent(2, "bob"), nopSender{}))

	// unknown room and known-room-but-not-member are the same error
	err := r.LeaveRoom(a, "nowhere")
	assert.ErrorIs(t, err, presence.ErrNotMember)

	_, err = r.JoinRoom(a, "table-1")
	require.NoError(t, err)
	err = r.LeaveRoom(b, "table-1")
	assert.ErrorIs(t, err, presence.ErrNotMember)

	// the member set is untouched by the failed leave
	assert.Len(t, r.MembersOf("table-1"), 1)
}

func TestLeaveLastMemberRemovesRoom(t *testing.T) {
	r := presence.NewRegistry(testLogger())
	connID := uuid.New()
	require.NoError(t, r.Register(connID, newIdent(1, "alice"), nopSender{}))

	_, err := r.JoinRoom(connID, "table-2")
	require.NoError(t, err)

	require.NoError(t, r.LeaveRoom(connID, "table-2"))

	// subsequent lookups see an empty set, not an error
	assert.Empty(t, r.MembersOf("table-2"))
	_, exists := r.RoomIdentities("table-2")
	assert.False(t, exists)
	_, rooms := r.Counts()
	assert.Equal(t, 0, rooms)
}

func TestUnregisterCleansRooms(t *testing.T) {
	r := presence.NewRegistry(testLogger())
	a, b := uuid.New(), uuid.New()
	require.NoError(t, r.Register(a, newIdent(1, "alice"), nopSender{}))
	require.NoError(t, r.Register(b, newIdent(2, "bob"), nopSender{}))

	_, err := r.JoinRoom(a, "table-1")
	require.NoError(t, err)
	_, err = r.JoinRoom(b, "table-1")
	require.NoError(t, err)
	_, err = r.JoinRoom(a, "solo")
	require.NoError(t, err)

	ident, affected, ok := r.Unregister(a)
	require.True(t, ok)
	assert.Equal(t, "alice", ident.Username)
	assert.ElementsMatch(t, []string{"table-1", "solo"}, affected)

	// a no longer appears anywhere
	_, live := r.IdentityOf(a)
	assert.False(t, live)
	assert.Equal(t, []uuid.UUID{b}, r.MembersOf("table-1"))

	// "solo" became empty and was deleted with the member removal
	_, exists := r.RoomIdentities("solo")
	assert.False(t, exists)

	conns, rooms := r.Counts()
	assert.Equal(t, 1, conns)
	assert.Equal(t, 1, rooms)
}

func TestUnregisterUnknownIsNoop(t *testing.T) {
	r := presence.NewRegistry(testLogger())

	ident, affected, ok := r.Unregister(uuid.New())
	assert.False(t, ok)
	assert.Empty(t, affected)
	assert.Zero(t, ident)

	// double-disconnect is safe too
	connID := uuid.New()
	require.NoError(t, r.Register(connID, newIdent(1, "alice"), nopSender{}))
	_, _, ok = r.Unregister(connID)
	require.True(t, ok)
	_, _, ok = r.Unregister(connID)
	assert.False(t, ok)
}

func TestUserConnectionCount(t *testing.T) {
	r := presence.NewRegistry(testLogger())
	a, b := uuid.New(), uuid.New()
	require.NoError(t, r.Register(a, newIdent(7, "alice"), nopSender{}))
	require.NoError(t, r.Register(b, newIdent(7, "alice"), nopSender{}))

	assert.Equal(t, 2, r.UserConnectionCount(7))
	r.Unregister(a)
	assert.Equal(t, 1, r.UserConnectionCount(7))
	assert.Equal(t, 0, r.UserConnectionCount(99))
}

func TestConcurrentChurnLeavesNoResidue(t *testing.T) {
	r := presence.NewRegistry(testLogger())

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := uuid.New()
			roomID := fmt.Sprintf("room-%d", i%5)

			if err := r.Register(connID, newIdent(int64(i), fmt.Sprintf("user-%d", i)), nopSender{}); err != nil {
				t.Error(err)
				return
			}
			if _, err := r.JoinRoom(connID, roomID); err != nil {
				t.Error(err)
				return
			}
			r.MembersOf(roomID)
			r.AllIdentities()
			r.Unregister(connID)
		}(i)
	}
	wg.Wait()

	conns, rooms := r.Counts()
	assert.Equal(t, 0, conns)
	assert.Equal(t, 0, rooms)
}
