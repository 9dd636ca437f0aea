package dispatch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/protocol"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

func TestReconnectRoom(t *testing.T) {
	f := newFixture()
	old := f.connect()
	token, roomID := f.createRoom(t, old, "Alice")
	userID := types.UserIdType(old.ID())

	// The socket dies inside the grace window
	f.disconnect(old)
	require.True(t, f.store.UserTimeouts.Contains(userID))

	// A fresh socket presents the old token
	fresh := f.connect()
	freshConnID := fresh.ID()
	f.dispatch(fresh, fmt.Sprintf(`{"reconnectRoom":{},"token":%q}`, token))

	var update protocol.UserListPayload
	fresh.decodeLast(t, protocol.RespUpdateUserList, &update)
	require.Len(t, update.UserList, 1)
	assert.Equal(t, "Alice", update.UserList[0].Name)
	assert.True(t, update.UserList[0].IsHost)
	assert.Equal(t, roomID, update.UserList[0].RoomID)

	// The session now answers to the user id and the registry followed
	assert.Equal(t, types.ConnectionIdType(userID), fresh.ID())
	assert.True(t, f.store.Connections.Contains(types.ConnectionIdType(userID)))
	assert.False(t, f.store.Connections.Contains(freshConnID))

	// The pending removal stood down
	assert.False(t, f.store.UserTimeouts.Contains(userID))
	assertLobbyInvariants(t, f.store)
}

func TestReconnectRoom_UserStillActive(t *testing.T) {
	f := newFixture()
	live := f.connect()
	token, _ := f.createRoom(t, live, "Alice")

	// A second socket tries the same token while the first is still up
	intruder := f.connect()
	f.dispatch(intruder, fmt.Sprintf(`{"reconnectRoom":{},"token":%q}`, token))

	e := intruder.lastError(t)
	assert.Equal(t, "User already active", e.ErrorText)
	assert.Equal(t, protocol.CodeGeneral, e.ErrorCode)

	// The live session keeps its registration
	assert.True(t, f.store.Connections.Contains(live.ID()))
}

func TestReconnectRoom_ConnectionUnregistered(t *testing.T) {
	f := newFixture()
	old := f.connect()
	token, _ := f.createRoom(t, old, "Alice")
	f.disconnect(old)
	defer f.timeouts.CancelUser(types.UserIdType(old.ID()))

	// A session whose registration is already gone
	orphan := &fakeConn{id: "never-registered"}
	f.dispatch(orphan, fmt.Sprintf(`{"reconnectRoom":{},"token":%q}`, token))

	e := orphan.lastError(t)
	assert.Equal(t, "Cannot find connection channel", e.ErrorText)
}

func TestReconnectRoom_AfterRemoval(t *testing.T) {
	f := newFixture()
	old := f.connect()
	token, _ := f.createRoom(t, old, "Alice")
	userID := types.UserIdType(old.ID())

	f.disconnect(old)
	waitFor(t, func() bool { return !f.store.Users.ContainsID(userID) },
		"the grace window should expire and remove the user")

	fresh := f.connect()
	f.dispatch(fresh, fmt.Sprintf(`{"reconnectRoom":{},"token":%q}`, token))

	e := fresh.lastError(t)
	assert.Equal(t, "User has been removed", e.ErrorText)
	assert.Equal(t, protocol.CodeAuth, e.ErrorCode, "clients treat this as: rejoin from scratch")
}

func TestHandleDisconnect_NoUser(t *testing.T) {
	f := newFixture()
	c := f.connect()

	// The socket never joined a room
	f.disconnect(c)

	assert.False(t, f.store.Connections.Contains(c.ID()))
	assert.Equal(t, 0, f.store.UserTimeouts.Len(), "nothing to reap, nothing scheduled")
}

func TestHandleDisconnect_SchedulesRemoval(t *testing.T) {
	f := newFixture()
	c := f.connect()
	_, roomID := f.createRoom(t, c, "Alice")
	userID := types.UserIdType(c.ID())

	f.disconnect(c)

	assert.False(t, f.store.Connections.Contains(c.ID()))
	assert.True(t, f.store.UserTimeouts.Contains(userID))
	assert.True(t, f.store.Users.ContainsID(userID), "the user survives until the window expires")

	waitFor(t, func() bool { return !f.store.Users.ContainsID(userID) },
		"the user goes once the window expires")
	waitFor(t, func() bool { return !f.store.Rooms.ContainsID(roomID) },
		"the emptied room follows")
}

func TestHandleDisconnect_HostFailover(t *testing.T) {
	f := newFixture()
	host := f.connect()
	_, roomID := f.createRoom(t, host, "Alice")
	hostID := types.UserIdType(host.ID())

	joiner := f.connect()
	f.joinRoom(t, joiner, "Bob", roomID)
	joinerID := types.UserIdType(joiner.ID())

	f.disconnect(host)
	defer f.timeouts.CancelUser(hostID)

	survivor, ok := f.store.Users.GetByID(joinerID)
	require.True(t, ok)
	assert.True(t, survivor.IsHost, "the only survivor inherits the host seat")

	leaver, ok := f.store.Users.GetByID(hostID)
	require.True(t, ok, "the leaver is still inside the grace window")
	assert.False(t, leaver.IsHost, "the departed host's flag is cleared immediately")

	room, _ := f.store.Rooms.GetByID(roomID)
	assert.Equal(t, joinerID, room.HostID)

	assertLobbyInvariants(t, f.store)
}

func TestHandleDisconnect_NonHostLeavesSeatAlone(t *testing.T) {
	f := newFixture()
	host := f.connect()
	_, roomID := f.createRoom(t, host, "Alice")

	joiner := f.connect()
	f.joinRoom(t, joiner, "Bob", roomID)

	f.disconnect(joiner)
	defer f.timeouts.CancelUser(types.UserIdType(joiner.ID()))

	hostUser, _ := f.store.Users.GetByID(types.UserIdType(host.ID()))
	assert.True(t, hostUser.IsHost, "a member leaving does not move the host seat")
}

func TestHandleDisconnect_SoleUserNoFailover(t *testing.T) {
	f := newFixture()
	host := f.connect()
	_, _ = f.createRoom(t, host, "Alice")
	hostID := types.UserIdType(host.ID())

	f.disconnect(host)
	defer f.timeouts.CancelUser(hostID)

	// No survivor to promote; the seat stays put until the reaper runs
	leaver, ok := f.store.Users.GetByID(hostID)
	require.True(t, ok)
	assert.True(t, leaver.IsHost)
}

func TestReconnectRoom_KeepsHostSeatHeldBeforeDisconnect(t *testing.T) {
	f := newFixture()
	host := f.connect()
	token, roomID := f.createRoom(t, host, "Alice")
	hostID := types.UserIdType(host.ID())

	joiner := f.connect()
	f.joinRoom(t, joiner, "Bob", roomID)

	// Host drops; the seat moves to Bob. Host comes back in time.
	f.disconnect(host)
	fresh := f.connect()
	f.dispatch(fresh, fmt.Sprintf(`{"reconnectRoom":{},"token":%q}`, token))

	var update protocol.UserListPayload
	fresh.decodeLast(t, protocol.RespUpdateUserList, &update)
	require.Len(t, update.UserList, 2)

	// Returning inside the window does not reclaim the seat
	returned, _ := f.store.Users.GetByID(hostID)
	assert.False(t, returned.IsHost)
	survivor, _ := f.store.Users.GetByID(types.UserIdType(joiner.ID()))
	assert.True(t, survivor.IsHost)

	assertLobbyInvariants(t, f.store)
}
