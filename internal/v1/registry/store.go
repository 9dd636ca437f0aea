package registry

import (
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

// Store bundles the five lobby indices. Operations that touch more than one
// index acquire them in the order Connections, Users, Rooms, Games,
// UserTimeouts, never hold two locks at once, and carry state between them
// as copies.
type Store struct {
	// Connections maps the current connection id of every live socket to its
	// outbound sender.
	Connections *Table[types.ConnectionIdType, types.FrameSender]

	// Users holds lobby members in join order. A user's id never changes.
	Users *List[types.UserIdType, types.User]

	// Rooms holds lobby rooms in creation order.
	Rooms *List[types.RoomIdType, types.Room]

	// Games maps a room id to the inbound answer channel of its running game.
	// Entry presence is the source of truth for "game in progress".
	Games *Table[types.RoomIdType, chan types.Submission]

	// UserTimeouts maps a disconnected user id to the cancellation channel of
	// its pending removal.
	UserTimeouts *Table[types.UserIdType, chan struct{}]
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		Connections:  NewTable[types.ConnectionIdType, types.FrameSender](),
		Users:        NewList(func(u types.User) types.UserIdType { return u.ID }),
		Rooms:        NewList(func(r types.Room) types.RoomIdType { return r.ID }),
		Games:        NewTable[types.RoomIdType, chan types.Submission](),
		UserTimeouts: NewTable[types.UserIdType, chan struct{}](),
	}
}

// UsersInRoom derives the ordered member list of a room by filtering Users.
// Rooms deliberately do not hold a member list of their own.
func (s *Store) UsersInRoom(roomID types.RoomIdType) []types.User {
	return s.Users.Filter(func(u types.User) bool { return u.RoomID == roomID })
}
