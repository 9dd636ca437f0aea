package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/auth"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/game"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/logging"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/protocol"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

// handleStartGame loads the requested pack and spawns a runner for the
// host's room. Everyone in the room gets the start signal before the first
// question goes out.
func (d *Dispatcher) handleStartGame(ctx context.Context, sess types.Session, claims *auth.Claims, cmd *protocol.StartGameCommand) error {
	user, ok := d.store.Users.GetByID(claims.ID)
	if !ok {
		return failGeneral("User does not exist")
	}
	if d.store.Games.Contains(user.RoomID) {
		return failGeneral("Game in progress")
	}
	if !user.IsHost {
		return failGeneral("Only host can start game")
	}

	pack, err := game.LoadPack(cmd.PackPath)
	if err != nil {
		logging.Warn(ctx, "pack load failed",
			zap.String("pack_path", cmd.PackPath), zap.Error(err))
		return failGeneral(fmt.Sprintf("Error loading pack: %v", err))
	}

	users := d.store.UsersInRoom(user.RoomID)
	d.msgr.BroadcastRoomAll(ctx, protocol.StartGameResponse(), users)

	runner := game.NewRunner(d.store, d.msgr, user.RoomID, pack, d.timing, d.clock)
	// The game outlives the host's socket; only room teardown ends it early.
	runner.Start(context.WithoutCancel(ctx))

	logging.Info(ctx, "game started",
		zap.String("room_id", string(user.RoomID)),
		zap.String("pack", pack.Name),
		zap.Int("questions", len(pack.Questions)))
	return nil
}

// handleWriteAnswer forwards one answer into the room's running game. The
// send never blocks the read loop; a full channel drops the submission.
func (d *Dispatcher) handleWriteAnswer(ctx context.Context, claims *auth.Claims, cmd *protocol.WriteAnswerCommand) error {
	user, ok := d.store.Users.GetByID(claims.ID)
	if !ok {
		return failGeneral("User does not exist")
	}

	ch, ok := d.store.Games.Get(user.RoomID)
	if !ok {
		return failGeneral("Game does not exist")
	}

	select {
	case ch <- types.Submission{UserID: claims.ID, Answer: cmd.Answer}:
	default:
		logging.Warn(ctx, "answer dropped, submission channel full",
			zap.String("user_id", string(claims.ID)), zap.String("room_id", string(user.RoomID)))
	}
	return nil
}
