package transport

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type inboundFrame struct {
	messageType int
	data        []byte
}

type writtenFrame struct {
	messageType int
	data        []byte
}

// fakeSocket drives the pumps without a network. Tests feed inbound frames
// through the channel; closing the channel ends the read loop the way a peer
// drop does, and Close unblocks a pending read the way shutting a real
// socket does.
type fakeSocket struct {
	inbound chan inboundFrame

	mu      sync.Mutex
	written []writtenFrame

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		inbound: make(chan inboundFrame, 16),
		closed:  make(chan struct{}),
	}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case f, ok := <-s.inbound:
		if !ok {
			return 0, nil, net.ErrClosed
		}
		return f.messageType, f.data, nil
	case <-s.closed:
		return 0, nil, net.ErrClosed
	}
}

func (s *fakeSocket) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, writtenFrame{messageType: messageType, data: data})
	return nil
}

func (s *fakeSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) SetWriteDeadline(time.Time) error  { return nil }
func (s *fakeSocket) SetReadDeadline(time.Time) error   { return nil }
func (s *fakeSocket) SetReadLimit(int64)                {}
func (s *fakeSocket) SetPongHandler(func(string) error) {}

func (s *fakeSocket) writtenFrames() []writtenFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]writtenFrame, len(s.written))
	copy(out, s.written)
	return out
}

// fakeRouter records what the pumps hand to the dispatch layer.
type fakeRouter struct {
	mu          sync.Mutex
	frames      [][]byte
	sessionIDs  []types.ConnectionIdType
	disconnects []types.ConnectionIdType
}

func (r *fakeRouter) Dispatch(_ context.Context, sess types.Session, frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	r.sessionIDs = append(r.sessionIDs, sess.ID())
}

func (r *fakeRouter) HandleDisconnect(_ context.Context, connID types.ConnectionIdType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects = append(r.disconnects, connID)
}

func (r *fakeRouter) sessions() []types.ConnectionIdType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.ConnectionIdType, len(r.sessionIDs))
	copy(out, r.sessionIDs)
	return out
}

func (r *fakeRouter) dispatched() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.frames))
	copy(out, r.frames)
	return out
}

func (r *fakeRouter) disconnected() []types.ConnectionIdType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.ConnectionIdType, len(r.disconnects))
	copy(out, r.disconnects)
	return out
}

func TestClient_IDAndRebind(t *testing.T) {
	c := newClient(newFakeSocket(), &fakeRouter{}, "conn-1")

	assert.Equal(t, types.ConnectionIdType("conn-1"), c.ID())

	c.Rebind("user-1")
	assert.Equal(t, types.ConnectionIdType("user-1"), c.ID())
}

func TestClient_SendRawEnqueues(t *testing.T) {
	c := newClient(newFakeSocket(), &fakeRouter{}, "conn-1")

	c.SendRaw([]byte(`{"response":"timerResponse","data":{"timer":1}}`))

	select {
	case got := <-c.send:
		assert.JSONEq(t, `{"response":"timerResponse","data":{"timer":1}}`, string(got))
	default:
		t.Fatal("frame was not enqueued")
	}
}

func TestClient_SendRawAfterDisconnect(t *testing.T) {
	c := newClient(newFakeSocket(), &fakeRouter{}, "conn-1")
	c.Disconnect()

	// Must neither panic nor enqueue
	c.SendRaw([]byte("late frame"))
}

func TestClient_SendRawFullQueueDrops(t *testing.T) {
	c := newClient(newFakeSocket(), &fakeRouter{}, "conn-1")

	// Nobody drains; fill the queue and one more
	for i := 0; i <= sendBuffer; i++ {
		c.SendRaw([]byte("frame"))
	}

	assert.Len(t, c.send, sendBuffer, "the overflow frame is dropped, not blocked on")
}

func TestClient_DisconnectIdempotent(t *testing.T) {
	c := newClient(newFakeSocket(), &fakeRouter{}, "conn-1")

	c.Disconnect()
	c.Disconnect()
}

func TestReadPump_DispatchesTextFrames(t *testing.T) {
	sock := newFakeSocket()
	router := &fakeRouter{}
	c := newClient(sock, router, "conn-1")

	sock.inbound <- inboundFrame{websocket.TextMessage, []byte(`{"heartbeat":{}}`)}
	sock.inbound <- inboundFrame{websocket.BinaryMessage, []byte{0x01}}
	sock.inbound <- inboundFrame{websocket.TextMessage, []byte(`{"getUserList":{},"token":"x"}`)}
	close(sock.inbound)

	c.readPump(context.Background())

	frames := router.dispatched()
	require.Len(t, frames, 2, "binary frames are not part of the protocol")
	assert.Equal(t, `{"heartbeat":{}}`, string(frames[0]))
	assert.Equal(t, `{"getUserList":{},"token":"x"}`, string(frames[1]))
}

func TestReadPump_TeardownRunsOnce(t *testing.T) {
	sock := newFakeSocket()
	router := &fakeRouter{}
	c := newClient(sock, router, "conn-1")

	close(sock.inbound)
	c.readPump(context.Background())

	require.Equal(t, []types.ConnectionIdType{"conn-1"}, router.disconnected())

	select {
	case <-sock.closed:
	default:
		t.Fatal("the socket must be closed after teardown")
	}

	// The outbound queue is closed, so late senders drop instead of leaking
	c.SendRaw([]byte("late"))
}

func TestReadPump_TeardownUsesCurrentID(t *testing.T) {
	sock := newFakeSocket()
	router := &fakeRouter{}
	c := newClient(sock, router, "conn-1")

	// A reconnect rebound the session mid-life
	c.Rebind("user-9")

	close(sock.inbound)
	c.readPump(context.Background())

	assert.Equal(t, []types.ConnectionIdType{"user-9"}, router.disconnected(),
		"teardown must resolve through the rebound id")
}

func TestWritePump_WritesQueuedFrames(t *testing.T) {
	sock := newFakeSocket()
	c := newClient(sock, &fakeRouter{}, "conn-1")

	c.SendRaw([]byte("one"))
	c.SendRaw([]byte("two"))
	c.Disconnect()

	c.writePump()

	frames := sock.writtenFrames()
	require.Len(t, frames, 3)
	assert.Equal(t, websocket.TextMessage, frames[0].messageType)
	assert.Equal(t, "one", string(frames[0].data))
	assert.Equal(t, "two", string(frames[1].data))
	assert.Equal(t, websocket.CloseMessage, frames[2].messageType,
		"a drained queue ends with a close frame")
}

func TestPumps_FullLifecycle(t *testing.T) {
	sock := newFakeSocket()
	router := &fakeRouter{}
	c := newClient(sock, router, "conn-1")

	go c.writePump()
	go c.readPump(context.Background())

	sock.inbound <- inboundFrame{websocket.TextMessage, []byte(`{"heartbeat":{}}`)}
	c.SendRaw([]byte("outbound"))

	require.Eventually(t, func() bool { return len(router.dispatched()) == 1 },
		time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool { return len(sock.writtenFrames()) == 1 },
		time.Second, 2*time.Millisecond)

	// Peer drops; both pumps wind down
	close(sock.inbound)
	require.Eventually(t, func() bool { return len(router.disconnected()) == 1 },
		time.Second, 2*time.Millisecond)
}
