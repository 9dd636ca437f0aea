// Package dispatch turns decoded command frames into lobby and game state
// changes. It owns the authorization split between unauthenticated and
// token-bearing commands and the teardown path for closed sockets.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/auth"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/game"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/logging"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/messenger"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/metrics"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/protocol"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/registry"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/timeout"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

// cmdError carries the reply text and error code of a failed command back to
// the central reply path.
type cmdError struct {
	text string
	code int
}

func (e *cmdError) Error() string { return e.text }

func failGeneral(text string) error { return &cmdError{text: text, code: protocol.CodeGeneral} }

func failAuth(text string) error { return &cmdError{text: text, code: protocol.CodeAuth} }

// Config wires a Dispatcher's collaborators.
type Config struct {
	Store     *registry.Store
	Messenger *messenger.Messenger
	Tokens    *auth.TokenService
	Timeouts  *timeout.Runner

	// Rand drives color sampling and host failover. Defaults to a
	// time-seeded LockedRand.
	Rand types.Rand
	// Clock feeds spawned game runners and command timing metrics. Defaults
	// to the real clock.
	Clock clock.Clock
	// GameTiming paces spawned game runners. Zero values fall back to the
	// live defaults.
	GameTiming game.Timing
}

// Dispatcher routes commands for every connection. It is safe for concurrent
// use; each index guards itself and the Messenger is never invoked under a
// registry mutator.
type Dispatcher struct {
	store    *registry.Store
	msgr     *messenger.Messenger
	tokens   *auth.TokenService
	timeouts *timeout.Runner
	rng      types.Rand
	clock    clock.Clock
	timing   game.Timing
}

// New returns a Dispatcher for cfg.
func New(cfg Config) *Dispatcher {
	if cfg.Rand == nil {
		cfg.Rand = types.NewLockedRand(time.Now().UnixNano())
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.GameTiming == (game.Timing{}) {
		cfg.GameTiming = game.DefaultTiming()
	}
	return &Dispatcher{
		store:    cfg.Store,
		msgr:     cfg.Messenger,
		tokens:   cfg.Tokens,
		timeouts: cfg.Timeouts,
		rng:      cfg.Rand,
		clock:    cfg.Clock,
		timing:   cfg.GameTiming,
	}
}

// Dispatch handles one inbound frame from sess. It never fails the caller:
// every error is reported to the sender as an errorResponse and the
// connection stays open.
func (d *Dispatcher) Dispatch(ctx context.Context, sess types.Session, frame []byte) {
	started := d.clock.Now()

	cmd, err := protocol.DecodeCommand(frame)
	if err != nil {
		logging.Warn(ctx, "command parse failed", zap.Error(err))
		metrics.Commands.WithLabelValues("parse", "error").Inc()
		d.msgr.Send(ctx, protocol.ErrorResponse(fmt.Sprintf("Error parsing command: %v", err), protocol.CodeGeneral), sess.ID())
		return
	}

	kind := cmd.Kind()
	err = d.route(ctx, sess, cmd)

	status := "ok"
	if err != nil {
		status = "error"
		code := protocol.CodeGeneral
		var ce *cmdError
		if errors.As(err, &ce) {
			code = ce.code
		}
		logging.Warn(ctx, "command rejected",
			zap.String("command", string(kind)), zap.String("reason", err.Error()))
		d.msgr.Send(ctx, protocol.ErrorResponse(err.Error(), code), sess.ID())
	}

	metrics.Commands.WithLabelValues(string(kind), status).Inc()
	metrics.CommandProcessingDuration.WithLabelValues(string(kind)).Observe(d.clock.Since(started).Seconds())
}

func (d *Dispatcher) route(ctx context.Context, sess types.Session, cmd *protocol.Command) error {
	var claims *auth.Claims
	if cmd.RequiresAuth() {
		// Tokens prove identity only; membership is re-checked against the
		// registry per operation.
		c, err := d.tokens.Verify(cmd.Token)
		if err != nil {
			return failAuth(fmt.Sprintf("Error at token validation: %v", err))
		}
		claims = c
		ctx = context.WithValue(ctx, logging.UserIDKey, string(claims.ID))
	}

	switch cmd.Kind() {
	case protocol.CmdCreateRoom:
		return d.handleCreateRoom(ctx, sess, cmd.CreateRoom)
	case protocol.CmdJoinRoom:
		return d.handleJoinRoom(ctx, sess, cmd.JoinRoom)
	case protocol.CmdHeartbeat:
		return d.handleHeartbeat(ctx, sess)
	case protocol.CmdReconnectRoom:
		return d.handleReconnectRoom(ctx, sess, claims)
	case protocol.CmdStartGame:
		return d.handleStartGame(ctx, sess, claims, cmd.StartGame)
	case protocol.CmdGetUserList:
		return d.handleGetUserList(ctx, sess, claims)
	case protocol.CmdBroadcastMessage:
		return d.handleBroadcastMessage(ctx, claims, cmd.BroadcastMessage)
	case protocol.CmdWriteAnswer:
		return d.handleWriteAnswer(ctx, claims, cmd.WriteAnswer)
	case protocol.CmdChangeUsername:
		return d.handleChangeUsername(ctx, claims, cmd.ChangeUsername)
	case protocol.CmdChangeAvatar:
		return d.handleChangeAvatar(ctx, claims, cmd.ChangeAvatar)
	}

	return failGeneral("Error parsing command: unknown variant")
}
