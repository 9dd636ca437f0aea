package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/auth"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/logging"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/protocol"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

// handleGetUserList sends the caller a snapshot of their room's roster.
func (d *Dispatcher) handleGetUserList(ctx context.Context, sess types.Session, claims *auth.Claims) error {
	user, ok := d.store.Users.GetByID(claims.ID)
	if !ok {
		return failGeneral("User does not exist")
	}

	users := d.store.UsersInRoom(user.RoomID)
	d.msgr.Send(ctx, protocol.UpdateUserListResponse(users), sess.ID())
	return nil
}

// handleBroadcastMessage relays a chat line to the whole room, sender
// included, so every client renders the same transcript.
func (d *Dispatcher) handleBroadcastMessage(ctx context.Context, claims *auth.Claims, cmd *protocol.BroadcastMessageCommand) error {
	user, ok := d.store.Users.GetByID(claims.ID)
	if !ok {
		return failGeneral("User does not exist")
	}

	users := d.store.UsersInRoom(user.RoomID)
	d.msgr.BroadcastRoomAll(ctx, protocol.NewMessageResponse(claims.ID, cmd.Text), users)
	return nil
}

// handleChangeUsername renames the caller in place. Clients pick the change
// up from the next user list snapshot; no push goes out.
func (d *Dispatcher) handleChangeUsername(ctx context.Context, claims *auth.Claims, cmd *protocol.ChangeUsernameCommand) error {
	err := d.store.Users.EditByID(claims.ID, func(u *types.User) { u.Name = cmd.NewName })
	if err != nil {
		return failGeneral("User does not exist")
	}

	logging.Debug(ctx, "username changed",
		zap.String("user_id", string(claims.ID)), zap.String("new_name", cmd.NewName))
	return nil
}

// handleChangeAvatar swaps the caller's avatar path in place.
func (d *Dispatcher) handleChangeAvatar(ctx context.Context, claims *auth.Claims, cmd *protocol.ChangeAvatarCommand) error {
	err := d.store.Users.EditByID(claims.ID, func(u *types.User) { u.AvatarPath = cmd.NewAvatarPath })
	if err != nil {
		return failGeneral("User does not exist")
	}

	logging.Debug(ctx, "avatar changed",
		zap.String("user_id", string(claims.ID)))
	return nil
}
