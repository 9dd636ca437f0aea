// Package messenger fans serialized responses out to live connections. It is
// the only writer-side bridge between lobby state and sockets: everything it
// sends resolves through the Connections index at emission time.
package messenger

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"k8s.io/utils/set"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/logging"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/protocol"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/registry"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

// Messenger resolves connection ids against the Connections index and
// enqueues text frames. Absent recipients are skipped without error; they are
// either gone or about to be reaped.
type Messenger struct {
	conns *registry.Table[types.ConnectionIdType, types.FrameSender]
}

// New returns a Messenger over conns.
func New(conns *registry.Table[types.ConnectionIdType, types.FrameSender]) *Messenger {
	return &Messenger{conns: conns}
}

// Send serializes resp and enqueues it for one connection id.
func (m *Messenger) Send(ctx context.Context, resp protocol.Response, to types.ConnectionIdType) {
	frame, ok := m.encode(ctx, resp)
	if !ok {
		return
	}
	m.deliver(ctx, frame, resp.Response, to)
}

// BroadcastRoomAll sends resp to every user in users. The frame is
// serialized once; each user's id doubles as their connection id.
func (m *Messenger) BroadcastRoomAll(ctx context.Context, resp protocol.Response, users []types.User) {
	m.broadcastUsers(ctx, resp, users, nil)
}

// BroadcastRoomExcept sends resp to every user in users except the one whose
// id equals except.
func (m *Messenger) BroadcastRoomExcept(ctx context.Context, resp protocol.Response, users []types.User, except types.UserIdType) {
	m.broadcastUsers(ctx, resp, users, set.New(except))
}

// broadcastUsers is the shared fan-out: serialize once, deliver to every
// user not named in exclude. A nil exclude set skips nobody.
func (m *Messenger) broadcastUsers(ctx context.Context, resp protocol.Response, users []types.User, exclude set.Set[types.UserIdType]) {
	frame, ok := m.encode(ctx, resp)
	if !ok {
		return
	}
	for _, u := range users {
		if exclude.Has(u.ID) {
			continue
		}
		m.deliver(ctx, frame, resp.Response, types.ConnectionIdType(u.ID))
	}
}

func (m *Messenger) encode(ctx context.Context, resp protocol.Response) ([]byte, bool) {
	frame, err := json.Marshal(resp)
	if err != nil {
		logging.Error(ctx, "failed to serialize response",
			zap.String("response", resp.Response), zap.Error(err))
		return nil, false
	}
	return frame, true
}

func (m *Messenger) deliver(ctx context.Context, frame []byte, variant string, to types.ConnectionIdType) {
	sender, ok := m.conns.Get(to)
	if !ok {
		logging.Debug(ctx, "no connection channel for recipient",
			zap.String("recipient", string(to)), zap.String("response", variant))
		return
	}
	sender.SendRaw(frame)
	logging.Debug(ctx, "message enqueued",
		zap.String("recipient", string(to)), zap.String("response", variant))
}
