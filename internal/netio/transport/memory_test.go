package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zergcity/internal/netio/proto"
)

func TestLinkedMemoryTransportsDeliverOnFlush(t *testing.T) {
	server := NewMemoryTransport(1)
	client := NewMemoryTransport(2)
	Link(server, client)

	// Both sides should have observed each other's Connect.
	ev := server.Poll(0)
	require.Equal(t, EventConnect, ev.Type)
	require.Equal(t, proto.PeerID(2), ev.Peer)

	ev = client.Poll(0)
	require.Equal(t, EventConnect, ev.Type)
	require.Equal(t, proto.PeerID(1), ev.Peer)

	require.NoError(t, client.Send(1, []byte("hello"), Reliable))
	// Not delivered until Flush.
	require.Equal(t, EventNone, server.Poll(0).Type)

	client.Flush()
	ev = server.Poll(0)
	require.Equal(t, EventReceive, ev.Type)
	require.Equal(t, []byte("hello"), ev.Data)
	require.Equal(t, Reliable, ev.Channel)
}

func TestMemoryTransportBroadcast(t *testing.T) {
	server := NewMemoryTransport(1)
	a := NewMemoryTransport(10)
	b := NewMemoryTransport(20)
	Link(server, a)
	Link(server, b)
	drain(server)
	drain(a)
	drain(b)

	server.Broadcast([]byte("state"), Reliable)
	server.Flush()

	require.Equal(t, EventReceive, a.Poll(0).Type)
	require.Equal(t, EventReceive, b.Poll(0).Type)
}

func TestMemoryTransportDisconnectNotifiesPeer(t *testing.T) {
	server := NewMemoryTransport(1)
	client := NewMemoryTransport(2)
	Link(server, client)
	drain(server)
	drain(client)

	require.NoError(t, server.Disconnect(2))
	ev := client.Poll(time.Millisecond)
	require.Equal(t, EventDisconnect, ev.Type)
	require.False(t, server.IsConnected(2))
}

func TestMemoryTransportSendToUnknownPeerFails(t *testing.T) {
	server := NewMemoryTransport(1)
	err := server.Send(999, []byte("x"), Reliable)
	require.Error(t, err)
}

func drain(m *MemoryTransport) {
	for m.Poll(0).Type != EventNone {
	}
}
