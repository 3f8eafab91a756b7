package ioworker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zergcity/internal/netio/proto"
	"zergcity/internal/netio/transport"
)

func TestEnqueueOnFullQueueFailsWithoutBlocking(t *testing.T) {
	server := transport.NewMemoryTransport(1)
	w := New(server, nil)

	for i := 0; i < DefaultQueueCapacity; i++ {
		require.NoError(t, w.EnqueueOutbound(OutboundMessage{Peer: proto.PeerID(1), Data: []byte("x")}))
	}
	err := w.EnqueueOutbound(OutboundMessage{Peer: proto.PeerID(1), Data: []byte("overflow")})
	require.ErrorIs(t, err, ErrQueueFull)
}

func TestWorkerDeliversQueuedSendsAndStopsCleanly(t *testing.T) {
	server := transport.NewMemoryTransport(1)
	client := transport.NewMemoryTransport(2)
	transport.Link(server, client)

	w := New(server, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, w.EnqueueOutbound(OutboundMessage{Peer: 2, Data: []byte("hi"), Channel: transport.Reliable}))

	require.Eventually(t, func() bool {
		return w.Counters().MessagesSent == 1
	}, time.Second, time.Millisecond)

	w.Stop()
	require.Eventually(t, func() bool {
		select {
		case <-w.Done():
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	// No outbound message is drained after the worker has exited: a late
	// enqueue still succeeds but stays in the queue.
	err := w.EnqueueOutbound(OutboundMessage{Peer: 2, Data: []byte("late")})
	require.NoError(t, err)
	require.Equal(t, 1, w.OutboundCount())
	require.Equal(t, 1, w.InboundCount()) // only the Connect event Link injected for peer 2
}

func TestPollInboundDrainsTransportEvents(t *testing.T) {
	server := transport.NewMemoryTransport(1)
	client := transport.NewMemoryTransport(2)
	transport.Link(server, client)

	w := New(server, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, client.Send(1, []byte("ping"), transport.Reliable))
	client.Flush()

	var ev transport.Event
	require.Eventually(t, func() bool {
		var ok bool
		ev, ok = w.PollInbound()
		return ok && ev.Type == transport.EventReceive
	}, time.Second, time.Millisecond)
	require.Equal(t, []byte("ping"), ev.Data)

	w.Stop()
	w.Join()
}
