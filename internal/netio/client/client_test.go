package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zergcity/internal/netio/proto"
	"zergcity/internal/netio/transport"
	"zergcity/internal/netio/wire"
)

// harness links a client-side MemoryTransport to a stand-in "server" side
// and drives the client's worker/Run loops in the background, mirroring
// internal/netio/server's test harness.
type harness struct {
	t      *testing.T
	cl     *Client
	self   *transport.MemoryTransport // client-side transport
	remote *transport.MemoryTransport // stands in for the server
	cancel context.CancelFunc
}

func newHarness(t *testing.T, cfg Config) *harness {
	self := transport.NewMemoryTransport(1)
	remote := transport.NewMemoryTransport(2)
	transport.Link(self, remote)

	cl := New(cfg, self, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, cl.Connect(ctx, "127.0.0.1", 7777))
	go cl.Run(ctx)

	h := &harness{t: t, cl: cl, self: self, remote: remote, cancel: cancel}
	t.Cleanup(func() { cancel() })
	return h
}

// awaitFromClient flushes the client's outbound queue and returns the next
// message the remote (server stand-in) side receives.
func (h *harness) awaitFromClient() transport.Event {
	var ev transport.Event
	require.Eventually(h.t, func() bool {
		h.self.Flush()
		ev = h.remote.Poll(0)
		return ev.Type == transport.EventReceive
	}, 2*time.Second, time.Millisecond)
	return ev
}

// sendFromRemote encodes and hands p to the remote side, then flushes it
// through to the client.
func (h *harness) sendFromRemote(p wire.Payload, ch transport.Channel) {
	require.NoError(h.t, h.remote.Send(1, wire.Encode(p), ch))
	h.remote.Flush()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialReconnectDelay = 20 * time.Millisecond
	cfg.MaxReconnectDelay = 40 * time.Millisecond
	cfg.HeartbeatInterval = 20 * time.Millisecond
	return cfg
}

func TestConnectSendsJoinAndEntersPlayingOnAccept(t *testing.T) {
	h := newHarness(t, testConfig())

	ev := h.awaitFromClient()
	_, msg, err := wire.Decode(ev.Data, proto.NewFactory())
	require.NoError(t, err)
	_, ok := msg.(*proto.Join)
	require.True(t, ok)

	h.sendFromRemote(&proto.JoinAccept{PlayerID: 3, Token: proto.SessionToken{1, 2, 3}}, transport.Reliable)

	require.Eventually(t, func() bool {
		return h.cl.State() == Playing
	}, 2*time.Second, time.Millisecond)
	require.Equal(t, proto.PlayerID(3), h.cl.PlayerID())
}

func TestHeartbeatResponseUpdatesSmoothedRTT(t *testing.T) {
	h := newHarness(t, testConfig())
	h.sendFromRemote(&proto.JoinAccept{PlayerID: 1}, transport.Reliable)
	require.Eventually(t, func() bool { return h.cl.State() == Playing }, 2*time.Second, time.Millisecond)

	// Drain the Join the client already sent before isolating the
	// heartbeat exchange.
	h.awaitFromClient()

	h.cl.sendHeartbeat()
	ev := h.awaitFromClient()
	_, msg, err := wire.Decode(ev.Data, proto.NewFactory())
	require.NoError(t, err)
	hb, ok := msg.(*proto.Heartbeat)
	require.True(t, ok)

	h.sendFromRemote(&proto.HeartbeatResponse{Sequence: hb.Sequence, EchoedTimeMs: hb.ClientTimeMs}, transport.Reliable)

	require.Eventually(t, func() bool {
		return h.cl.SmoothedRTT() >= 0 && h.cl.SmoothedRTT() < time.Second
	}, 2*time.Second, time.Millisecond)
}

func TestRejectionIsQueuedForPollingAfterInput(t *testing.T) {
	h := newHarness(t, testConfig())
	h.sendFromRemote(&proto.JoinAccept{PlayerID: 1}, transport.Reliable)
	require.Eventually(t, func() bool { return h.cl.State() == Playing }, 2*time.Second, time.Millisecond)
	h.awaitFromClient() // drain Join

	h.cl.SendInput(proto.Input{Kind: proto.InputDemolish})
	ev := h.awaitFromClient()
	_, msg, err := wire.Decode(ev.Data, proto.NewFactory())
	require.NoError(t, err)
	sent := msg.(*proto.Input)
	require.Equal(t, 1, h.cl.PendingInputCount())

	h.sendFromRemote(&proto.Rejection{Sequence: sent.Sequence, Reason: proto.RejectionCannotAfford}, transport.Reliable)

	require.Eventually(t, func() bool {
		_, ok := h.cl.PollRejection()
		return ok
	}, 2*time.Second, time.Millisecond)
	require.Equal(t, 0, h.cl.PendingInputCount())
}

func TestTimeoutLevelEscalatesWithElapsedTime(t *testing.T) {
	cfg := DefaultConfig()
	cl := &Client{cfg: cfg, state: Playing}
	base := time.Unix(1000, 0)
	cl.now = func() time.Time { return base }
	cl.lastRecvAt = base

	require.Equal(t, TimeoutNone, cl.TimeoutLevel())

	cl.now = func() time.Time { return base.Add(cfg.TimeoutIndicator) }
	require.Equal(t, TimeoutIndicator, cl.TimeoutLevel())

	cl.now = func() time.Time { return base.Add(cfg.TimeoutBanner) }
	require.Equal(t, TimeoutBanner, cl.TimeoutLevel())

	cl.now = func() time.Time { return base.Add(cfg.TimeoutFullUI) }
	require.Equal(t, TimeoutFullUI, cl.TimeoutLevel())
}

func TestStateMachineRejectsInvalidTransitions(t *testing.T) {
	require.True(t, canTransition(Disconnected, Connecting))
	require.False(t, canTransition(Disconnected, Playing))
	require.True(t, canTransition(Reconnecting, Connected))
	require.False(t, canTransition(Playing, Connecting))
}
