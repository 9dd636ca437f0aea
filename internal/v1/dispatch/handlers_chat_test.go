package dispatch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/protocol"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

func TestGetUserList(t *testing.T) {
	f := newFixture()
	host := f.connect()
	token, roomID := f.createRoom(t, host, "Alice")

	joiner := f.connect()
	f.joinRoom(t, joiner, "Bob", roomID)

	f.dispatch(host, fmt.Sprintf(`{"getUserList":{},"token":%q}`, token))

	var update protocol.UserListPayload
	host.decodeLast(t, protocol.RespUpdateUserList, &update)
	require.Len(t, update.UserList, 2)
	assert.Equal(t, "Alice", update.UserList[0].Name)
	assert.Equal(t, "Bob", update.UserList[1].Name)
}

func TestBroadcastMessage(t *testing.T) {
	f := newFixture()
	host := f.connect()
	token, roomID := f.createRoom(t, host, "Alice")

	joiner := f.connect()
	f.joinRoom(t, joiner, "Bob", roomID)

	f.dispatch(host, fmt.Sprintf(`{"broadcastMessage":{"text":"hi"},"token":%q}`, token))

	// The sender hears their own message too
	for name, conn := range map[string]*fakeConn{"sender": host, "member": joiner} {
		var msg protocol.NewMessagePayload
		conn.decodeLast(t, protocol.RespNewMessage, &msg)
		assert.Equal(t, types.UserIdType(host.ID()), msg.Author, name)
		assert.Equal(t, "hi", msg.Text, name)
	}
}

func TestBroadcastMessage_StaysInRoom(t *testing.T) {
	f := newFixture()
	host := f.connect()
	token, _ := f.createRoom(t, host, "Alice")

	outsider := f.connect()
	f.createRoom(t, outsider, "Carol")

	f.dispatch(host, fmt.Sprintf(`{"broadcastMessage":{"text":"hi"},"token":%q}`, token))

	assert.Equal(t, 1, host.countOf(protocol.RespNewMessage))
	assert.Equal(t, 0, outsider.countOf(protocol.RespNewMessage),
		"chat must not leak across rooms")
}

func TestChangeUsername(t *testing.T) {
	f := newFixture()
	host := f.connect()
	token, roomID := f.createRoom(t, host, "Alice")

	joiner := f.connect()
	f.joinRoom(t, joiner, "Bob", roomID)
	joinerFrames := joiner.frameCount()

	f.dispatch(host, fmt.Sprintf(`{"changeUsername":{"newName":"Alicia"},"token":%q}`, token))

	user, _ := f.store.Users.GetByID(types.UserIdType(host.ID()))
	assert.Equal(t, "Alicia", user.Name)

	// The mutation is silent; peers poll with getUserList when they care
	assert.Equal(t, joinerFrames, joiner.frameCount())
	assert.Equal(t, 0, host.countOf(protocol.RespError))
}

func TestChangeAvatar(t *testing.T) {
	f := newFixture()
	host := f.connect()
	token, _ := f.createRoom(t, host, "Alice")

	f.dispatch(host, fmt.Sprintf(`{"changeAvatar":{"newAvatarPath":"/new.png"},"token":%q}`, token))

	user, _ := f.store.Users.GetByID(types.UserIdType(host.ID()))
	assert.Equal(t, "/new.png", user.AvatarPath)
	assert.Equal(t, 0, host.countOf(protocol.RespError))
}

func TestChangeUsername_UserMissing(t *testing.T) {
	f := newFixture()
	c := f.connect()

	token, err := f.tokens.Issue(types.User{ID: "ghost"})
	require.NoError(t, err)

	f.dispatch(c, fmt.Sprintf(`{"changeUsername":{"newName":"X"},"token":%q}`, token))

	e := c.lastError(t)
	assert.Equal(t, "User does not exist", e.ErrorText)
}

func TestChangeAvatar_UserMissing(t *testing.T) {
	f := newFixture()
	c := f.connect()

	token, err := f.tokens.Issue(types.User{ID: "ghost"})
	require.NoError(t, err)

	f.dispatch(c, fmt.Sprintf(`{"changeAvatar":{"newAvatarPath":"/x.png"},"token":%q}`, token))

	e := c.lastError(t)
	assert.Equal(t, "User does not exist", e.ErrorText)
}
