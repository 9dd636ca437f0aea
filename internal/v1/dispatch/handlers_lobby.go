package dispatch

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/logging"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/metrics"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/protocol"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

// handleCreateRoom opens a fresh room with the caller as host. The caller's
// connection id becomes the user id for the lifetime of the user.
func (d *Dispatcher) handleCreateRoom(ctx context.Context, sess types.Session, cmd *protocol.CreateRoomCommand) error {
	connID := sess.ID()
	logging.Info(ctx, "create room request", zap.String("connection_id", string(connID)))

	userID := types.UserIdType(connID)
	if d.store.Users.ContainsID(userID) {
		return failGeneral("User already exists")
	}

	room := types.Room{
		ID:             types.RoomIdType(uuid.NewString()),
		MaxPlayers:     types.DefaultMaxPlayers,
		HostID:         userID,
		CurrentPlayers: 1,
	}
	user := types.User{
		ID:         userID,
		Name:       cmd.Name,
		AvatarPath: cmd.AvatarPath,
		RoomID:     room.ID,
		IsHost:     true,
		UserColor:  types.RandomColor(d.rng),
	}

	token, err := d.tokens.Issue(user)
	if err != nil {
		logging.Error(ctx, "token issue failed", zap.Error(err))
		return failGeneral("Could not issue token")
	}

	d.store.Users.Insert(user)
	d.store.Rooms.Insert(room)
	metrics.ActiveRooms.Inc()
	metrics.RoomParticipants.WithLabelValues(string(room.ID)).Set(1)

	users := []types.User{user}
	d.msgr.Send(ctx, protocol.CreateRoomResponse(token, users), connID)
	d.msgr.BroadcastRoomExcept(ctx, protocol.UpdateUserListResponse(users), users, user.ID)

	logging.Info(ctx, "room created",
		zap.String("room_id", string(room.ID)), zap.String("user_id", string(userID)))
	return nil
}

// handleJoinRoom adds the caller to an existing room. The capacity check is
// re-run inside the atomic room edit so concurrent joins cannot push a room
// past its limit.
func (d *Dispatcher) handleJoinRoom(ctx context.Context, sess types.Session, cmd *protocol.JoinRoomCommand) error {
	connID := sess.ID()
	logging.Info(ctx, "join room request",
		zap.String("connection_id", string(connID)), zap.String("room_id", string(cmd.RoomID)))

	userID := types.UserIdType(connID)
	if d.store.Users.ContainsID(userID) {
		return failGeneral("User already exists")
	}

	room, ok := d.store.Rooms.GetByID(cmd.RoomID)
	if !ok {
		return failGeneral("Room does not exist")
	}
	if room.CurrentPlayers >= room.MaxPlayers {
		return failGeneral("Room is full")
	}
	if d.store.Games.Contains(cmd.RoomID) {
		return failGeneral("Game is in progress")
	}

	user := types.User{
		ID:         userID,
		Name:       cmd.Name,
		AvatarPath: cmd.AvatarPath,
		RoomID:     cmd.RoomID,
		IsHost:     false,
		UserColor:  types.RandomColor(d.rng),
	}

	token, err := d.tokens.Issue(user)
	if err != nil {
		logging.Error(ctx, "token issue failed", zap.Error(err))
		return failGeneral("Could not issue token")
	}

	d.store.Users.Insert(user)

	var full, becameHost bool
	var count int
	editErr := d.store.Rooms.EditByID(cmd.RoomID, func(rm *types.Room) {
		if rm.CurrentPlayers >= rm.MaxPlayers {
			full = true
			return
		}
		rm.CurrentPlayers++
		count = rm.CurrentPlayers
		// A join into a drained room revives it; the joiner takes the host
		// seat left vacant by the departed members.
		if rm.CurrentPlayers == 1 {
			rm.HostID = userID
			becameHost = true
		}
	})
	if editErr != nil {
		d.store.Users.RemoveByID(userID)
		return failGeneral("Room does not exist")
	}
	if full {
		d.store.Users.RemoveByID(userID)
		return failGeneral("Room is full")
	}
	if becameHost {
		if err := d.store.Users.EditByID(userID, func(u *types.User) { u.IsHost = true }); err != nil {
			logging.Warn(ctx, "host promotion failed", zap.Error(err))
		}
	}
	metrics.RoomParticipants.WithLabelValues(string(cmd.RoomID)).Set(float64(count))

	users := d.store.UsersInRoom(cmd.RoomID)
	d.msgr.Send(ctx, protocol.JoinRoomResponse(token, users), connID)
	d.msgr.BroadcastRoomExcept(ctx, protocol.UpdateUserListResponse(users), users, userID)

	logging.Info(ctx, "room joined",
		zap.String("room_id", string(cmd.RoomID)), zap.String("user_id", string(userID)),
		zap.Bool("became_host", becameHost))
	return nil
}

// handleHeartbeat acknowledges liveness in the log and nothing else.
func (d *Dispatcher) handleHeartbeat(ctx context.Context, sess types.Session) error {
	logging.Debug(ctx, "heartbeat", zap.String("connection_id", string(sess.ID())))
	return nil
}
