package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zergcity/internal/netio/proto"
	"zergcity/internal/netio/transport"
	"zergcity/internal/netio/wire"
)

// harness wires a Server to one end of a linked MemoryTransport pair and
// drives its worker/Run loops in the background.
type harness struct {
	t       *testing.T
	srv     *Server
	self    *transport.MemoryTransport // server-side transport
	remote  *transport.MemoryTransport // stands in for the client
	cancel  context.CancelFunc
}

func newHarness(t *testing.T, cfg Config) *harness {
	self := transport.NewMemoryTransport(1)
	remote := transport.NewMemoryTransport(2)
	transport.Link(self, remote)

	srv := New(cfg, self, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Start(ctx))
	go srv.Run(ctx)

	h := &harness{t: t, srv: srv, self: self, remote: remote, cancel: cancel}
	t.Cleanup(func() { cancel() })

	// Drain the synthetic Connect events Link() injected on both sides so
	// later assertions about inbound traffic start from a clean slate.
	drainEvents(remote)
	return h
}

func drainEvents(m *transport.MemoryTransport) {
	for m.Poll(0).Type != transport.EventNone {
	}
}

// sendFromRemote encodes and hands p to the remote side, then flushes it
// through to the server.
func (h *harness) sendFromRemote(p wire.Payload, ch transport.Channel) {
	require.NoError(h.t, h.remote.Send(1, wire.Encode(p), ch))
	h.remote.Flush()
}

// awaitFromServer flushes the server's outbound queue (once the worker has
// drained it) and returns the next message the remote side receives,
// skipping the PlayerList broadcasts (after every join and session expiry)
// and the periodic server Heartbeats that the server sends unprompted.
func (h *harness) awaitFromServer() transport.Event {
	var ev transport.Event
	require.Eventually(h.t, func() bool {
		h.self.Flush()
		ev = h.remote.Poll(0)
		if ev.Type != transport.EventReceive {
			return false
		}
		if _, msg, err := wire.Decode(ev.Data, proto.NewFactory()); err == nil {
			switch msg.(type) {
			case *proto.PlayerList, *proto.Heartbeat:
				return false
			}
		}
		return true
	}, 2*time.Second, time.Millisecond)
	return ev
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxPlayers = 2
	cfg.SessionGracePeriod = 50 * time.Millisecond
	cfg.HeartbeatInterval = 20 * time.Millisecond
	cfg.HeartbeatDisconnectThreshold = 3
	return cfg
}

func TestJoinAssignsPlayerIDAndAccepts(t *testing.T) {
	h := newHarness(t, testConfig())

	h.sendFromRemote(&proto.Join{Name: "Ada"}, transport.Reliable)
	ev := h.awaitFromServer()

	_, msg, err := wire.Decode(ev.Data, proto.NewFactory())
	require.NoError(t, err)
	accept, ok := msg.(*proto.JoinAccept)
	require.True(t, ok)
	require.Equal(t, proto.PlayerID(1), accept.PlayerID)
}

func TestJoinRejectsWhenServerFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlayers = 1
	h := newHarness(t, cfg)

	h.srv.mu.Lock()
	h.srv.sessions.insert(&PlayerSession{PlayerID: 1, Name: "Existing", connected: true})
	h.srv.mu.Unlock()

	h.sendFromRemote(&proto.Join{Name: "Newcomer"}, transport.Reliable)
	ev := h.awaitFromServer()

	_, msg, err := wire.Decode(ev.Data, proto.NewFactory())
	require.NoError(t, err)
	reject, ok := msg.(*proto.JoinReject)
	require.True(t, ok)
	require.Equal(t, proto.KickReasonFull, reject.Reason)
}

func TestReconnectWithinGraceRebindsSamePlayerID(t *testing.T) {
	h := newHarness(t, testConfig())

	h.sendFromRemote(&proto.Join{Name: "Ada"}, transport.Reliable)
	ev := h.awaitFromServer()
	_, msg, _ := wire.Decode(ev.Data, proto.NewFactory())
	accept := msg.(*proto.JoinAccept)

	h.srv.handleDisconnect(2)

	h.sendFromRemote(&proto.Reconnect{Token: accept.Token}, transport.Reliable)
	ev2 := h.awaitFromServer()
	_, msg2, _ := wire.Decode(ev2.Data, proto.NewFactory())
	reaccept, ok := msg2.(*proto.JoinAccept)
	require.True(t, ok)
	require.Equal(t, accept.PlayerID, reaccept.PlayerID)
	require.Equal(t, accept.Token, reaccept.Token)
}

func TestReconnectAfterGraceIsRejected(t *testing.T) {
	cfg := testConfig()
	h := newHarness(t, cfg)

	h.sendFromRemote(&proto.Join{Name: "Ada"}, transport.Reliable)
	ev := h.awaitFromServer()
	_, msg, _ := wire.Decode(ev.Data, proto.NewFactory())
	accept := msg.(*proto.JoinAccept)

	h.srv.handleDisconnect(2)
	time.Sleep(cfg.SessionGracePeriod + 100*time.Millisecond)
	h.srv.reapExpiredSessions()

	h.sendFromRemote(&proto.Reconnect{Token: accept.Token}, transport.Reliable)
	ev2 := h.awaitFromServer()
	_, msg2, _ := wire.Decode(ev2.Data, proto.NewFactory())
	reject, ok := msg2.(*proto.JoinReject)
	require.True(t, ok)
	require.Equal(t, proto.KickReasonSessionExpired, reject.Reason)
}

func TestHeartbeatEchoesSequenceAndTick(t *testing.T) {
	h := newHarness(t, testConfig())

	h.sendFromRemote(&proto.Join{Name: "Ada"}, transport.Reliable)
	drainUntilReceived(h) // JoinAccept

	h.sendFromRemote(&proto.Heartbeat{Sequence: 7, ClientTimeMs: 123}, transport.Reliable)
	ev := h.awaitFromServer()
	_, msg, err := wire.Decode(ev.Data, proto.NewFactory())
	require.NoError(t, err)
	resp, ok := msg.(*proto.HeartbeatResponse)
	require.True(t, ok)
	require.Equal(t, uint32(7), resp.Sequence)
	require.Equal(t, uint64(123), resp.EchoedTimeMs)
}

func drainUntilReceived(h *harness) {
	h.awaitFromServer()
}

func TestSessionAllocationReusesFreedSlot(t *testing.T) {
	table := newSessionTable(2)
	a, err := table.allocate()
	require.NoError(t, err)
	require.Equal(t, proto.PlayerID(1), a)

	table.insert(&PlayerSession{PlayerID: a})
	b, err := table.allocate()
	require.NoError(t, err)
	require.Equal(t, proto.PlayerID(2), b)

	table.insert(&PlayerSession{PlayerID: b})
	_, err = table.allocate()
	require.Error(t, err)

	table.remove(a)
	c, err := table.allocate()
	require.NoError(t, err)
	require.Equal(t, proto.PlayerID(1), c)
}

func TestLifecycleTransitionsAreOrdered(t *testing.T) {
	require.True(t, canTransition(Initializing, Loading))
	require.False(t, canTransition(Initializing, Running))
	require.False(t, canTransition(Running, Initializing))
}
