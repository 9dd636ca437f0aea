package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/auth"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/logging"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/protocol"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

// handleReconnectRoom rebinds a fresh socket to a user still inside the
// grace window. The outbound sender moves from the socket's ephemeral
// connection id to the user id, and the session cell follows, so every later
// lookup resolves through the user id.
func (d *Dispatcher) handleReconnectRoom(ctx context.Context, sess types.Session, claims *auth.Claims) error {
	userID := claims.ID
	userConnID := types.ConnectionIdType(userID)

	if d.store.Connections.Contains(userConnID) {
		return failGeneral("User already active")
	}

	connID := sess.ID()
	if !d.store.Connections.Contains(connID) {
		return failGeneral("Cannot find connection channel")
	}

	if !d.store.Users.ContainsID(userID) {
		// The grace window expired; the client has to run the join flow
		// again.
		return failAuth("User has been removed")
	}

	if err := d.store.Connections.Rekey(connID, userConnID); err != nil {
		logging.Warn(ctx, "connection rebind failed",
			zap.String("connection_id", string(connID)), zap.Error(err))
		return failGeneral("Cannot find connection channel")
	}
	sess.Rebind(userConnID)

	d.timeouts.CancelUser(userID)

	user, ok := d.store.Users.GetByID(userID)
	if !ok {
		logging.Warn(ctx, "user vanished during reconnect", zap.String("user_id", string(userID)))
		return failAuth("User has been removed")
	}

	users := d.store.UsersInRoom(user.RoomID)
	d.msgr.Send(ctx, protocol.UpdateUserListResponse(users), sess.ID())

	logging.Info(ctx, "user reconnected",
		zap.String("user_id", string(userID)), zap.String("room_id", string(user.RoomID)))
	return nil
}

// HandleDisconnect runs the teardown for one closed socket: it unregisters
// the outbound sender, transfers the host seat if the leaver held it, and
// arms the user's grace window. The transport calls it exactly once per
// session, after the read loop ends.
func (d *Dispatcher) HandleDisconnect(ctx context.Context, connID types.ConnectionIdType) {
	// The socket's context is already cancelled by the time teardown runs;
	// the grace windows must outlive it.
	ctx = context.WithoutCancel(ctx)

	user, hadUser := d.store.Users.GetByID(types.UserIdType(connID))
	d.store.Connections.Remove(connID)

	if !hadUser {
		logging.Debug(ctx, "disconnect without lobby user",
			zap.String("connection_id", string(connID)))
		return
	}

	logging.Info(ctx, "user disconnected",
		zap.String("user_id", string(user.ID)), zap.String("room_id", string(user.RoomID)))

	if user.IsHost {
		d.transferHost(ctx, user)
	}
	d.timeouts.ScheduleUser(ctx, user.ID, user.RoomID)
}

// transferHost promotes a surviving room member picked uniformly at random
// and clears the leaver's flag, so a reconnect inside the grace window
// cannot yield two hosts. With no survivors the seat stays with the leaver
// and the room is reaped later.
func (d *Dispatcher) transferHost(ctx context.Context, leaver types.User) {
	survivors := d.store.Users.Filter(func(u types.User) bool {
		return u.RoomID == leaver.RoomID && u.ID != leaver.ID
	})
	if len(survivors) == 0 {
		return
	}

	chosen := survivors[d.rng.Intn(len(survivors))]
	if err := d.store.Users.EditByID(chosen.ID, func(u *types.User) { u.IsHost = true }); err != nil {
		logging.Warn(ctx, "host transfer failed",
			zap.String("user_id", string(chosen.ID)), zap.Error(err))
		return
	}
	if err := d.store.Users.EditByID(leaver.ID, func(u *types.User) { u.IsHost = false }); err != nil {
		logging.Warn(ctx, "failed to clear departed host flag", zap.Error(err))
	}
	if err := d.store.Rooms.EditByID(leaver.RoomID, func(r *types.Room) { r.HostID = chosen.ID }); err != nil {
		logging.Warn(ctx, "failed to record new host on room", zap.Error(err))
	}

	logging.Info(ctx, "host transferred",
		zap.String("room_id", string(leaver.RoomID)),
		zap.String("from", string(leaver.ID)), zap.String("to", string(chosen.ID)))
}
