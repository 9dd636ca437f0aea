// Package timeout reclaims lobby state after disconnects: a per-user grace
// window cancellable on reconnect, flowing into a per-room grace window once
// the room empties.
package timeout

import (
	"context"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/logging"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/messenger"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/metrics"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/protocol"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/registry"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

// Default grace windows between a disconnect and the actual removal.
const (
	DefaultUserGrace = 10 * time.Second
	DefaultRoomGrace = 10 * time.Second
)

// Runner owns the delayed-removal goroutines. One goroutine serves each
// pending user removal and continues into the room removal when it empties
// the room.
type Runner struct {
	store     *registry.Store
	msgr      *messenger.Messenger
	clock     clock.Clock
	userGrace time.Duration
	roomGrace time.Duration
}

// NewRunner returns a Runner. Non-positive grace values fall back to the
// defaults; a nil clk falls back to the real clock.
func NewRunner(store *registry.Store, msgr *messenger.Messenger, userGrace, roomGrace time.Duration, clk clock.Clock) *Runner {
	if userGrace <= 0 {
		userGrace = DefaultUserGrace
	}
	if roomGrace <= 0 {
		roomGrace = DefaultRoomGrace
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Runner{
		store:     store,
		msgr:      msgr,
		clock:     clk,
		userGrace: userGrace,
		roomGrace: roomGrace,
	}
}

// ScheduleUser arms the grace window for a disconnected user. A pending
// removal for the same user is cancelled and replaced by the fresh one.
func (r *Runner) ScheduleUser(ctx context.Context, userID types.UserIdType, roomID types.RoomIdType) {
	cancel := make(chan struct{})
	if old, had := r.store.UserTimeouts.Replace(userID, cancel); had {
		close(old)
	}
	logging.Debug(ctx, "user removal scheduled",
		zap.String("user_id", string(userID)), zap.Duration("grace", r.userGrace))
	go r.awaitUser(ctx, userID, roomID, cancel)
}

// CancelUser stands a pending removal down and reports whether one existed.
// This is the reconnect path.
func (r *Runner) CancelUser(userID types.UserIdType) bool {
	ch, ok := r.store.UserTimeouts.Pop(userID)
	if ok {
		close(ch)
	}
	return ok
}

func (r *Runner) awaitUser(ctx context.Context, userID types.UserIdType, roomID types.RoomIdType, cancel chan struct{}) {
	t := r.clock.NewTimer(r.userGrace)
	defer t.Stop()
	select {
	case <-cancel:
		logging.Debug(ctx, "user removal cancelled", zap.String("user_id", string(userID)))
		return
	case <-ctx.Done():
		return
	case <-t.C():
	}

	// Drop our own index entry; a different channel there belongs to a newer
	// disconnect and stays.
	r.store.UserTimeouts.RemoveValue(userID, cancel)

	if r.store.Connections.Contains(types.ConnectionIdType(userID)) {
		// The user re-registered but the cancel signal lost the race.
		logging.Debug(ctx, "user reconnected before removal", zap.String("user_id", string(userID)))
		return
	}

	if !r.store.Users.RemoveByID(userID) {
		return
	}
	logging.Info(ctx, "user removed after grace window",
		zap.String("user_id", string(userID)), zap.String("room_id", string(roomID)))

	remaining := -1
	err := r.store.Rooms.EditByID(roomID, func(room *types.Room) {
		room.CurrentPlayers--
		remaining = room.CurrentPlayers
	})
	if err != nil {
		logging.Warn(ctx, "room missing during user removal",
			zap.String("room_id", string(roomID)), zap.Error(err))
		return
	}
	metrics.RoomParticipants.WithLabelValues(string(roomID)).Set(float64(max(remaining, 0)))

	survivors := r.store.UsersInRoom(roomID)
	r.msgr.BroadcastRoomAll(ctx, protocol.UpdateUserListResponse(survivors), survivors)

	if remaining <= 0 {
		r.awaitRoom(ctx, roomID)
	}
}

// awaitRoom reaps an empty room after the grace window. There is no
// cancellation channel; expiry re-checks the live counter, so a joiner who
// arrived during the window wins the race and the reap becomes a no-op.
func (r *Runner) awaitRoom(ctx context.Context, roomID types.RoomIdType) {
	logging.Debug(ctx, "room removal scheduled",
		zap.String("room_id", string(roomID)), zap.Duration("grace", r.roomGrace))

	t := r.clock.NewTimer(r.roomGrace)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C():
	}

	room, ok := r.store.Rooms.GetByID(roomID)
	if !ok {
		return
	}
	if room.CurrentPlayers > 0 {
		logging.Debug(ctx, "room repopulated during grace window",
			zap.String("room_id", string(roomID)))
		return
	}

	r.store.Rooms.RemoveByID(roomID)
	metrics.ActiveRooms.Dec()
	metrics.RoomParticipants.DeleteLabelValues(string(roomID))
	logging.Info(ctx, "removing room", zap.String("room_id", string(roomID)))
}
