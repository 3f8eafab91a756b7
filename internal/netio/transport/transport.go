// Package transport implements the C4 transport abstraction: a single
// interface with two implementations — an in-memory linked test double and
// a real reliable-UDP transport backed by kcp-go — grounded on
// _examples/original_source/include/sims3000/net/INetworkTransport.h and
// ENetTransport.h.
package transport

import (
	"time"

	"zergcity/internal/netio/proto"
)

// Channel names one of the two delivery guarantees a message can be sent
// on.
type Channel uint8

const (
	// Reliable is ordered, retransmitted delivery.
	Reliable Channel = 0
	// Unreliable is best-effort, unordered delivery.
	Unreliable Channel = 1
)

// EventType classifies a polled transport Event.
type EventType uint8

const (
	EventNone EventType = iota
	EventConnect
	EventDisconnect
	EventReceive
	EventTimeout
)

// Event is one occurrence returned by Poll.
type Event struct {
	Type    EventType
	Peer    proto.PeerID
	Data    []byte
	Channel Channel
}

// Stats is the per-peer counters the spec's "Observable counters" section
// asks Transport.Stats to expose.
type Stats struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	RoundTripTimeMs float64
	PacketLoss      float64
}

// Transport is the abstraction the I/O worker (C5) owns exclusively.
// Implementations must be safe to drive from a single goroutine with no
// external locking — internally they may multiplex as they see fit.
type Transport interface {
	// StartServer begins listening for inbound connections on port,
	// accepting at most maxClients concurrently.
	StartServer(port int, maxClients int) error
	// Connect dials a remote address:port as a client and returns the
	// PeerID assigned to the resulting connection.
	Connect(address string, port int) (proto.PeerID, error)
	// Disconnect closes one peer's connection.
	Disconnect(peer proto.PeerID) error
	// DisconnectAll closes every open connection.
	DisconnectAll()
	// Send delivers data to one peer on the given channel.
	Send(peer proto.PeerID, data []byte, ch Channel) error
	// Broadcast delivers data to every connected peer on the given channel.
	Broadcast(data []byte, ch Channel)
	// Poll waits up to timeout for the next event, returning EventNone if
	// none arrived in time.
	Poll(timeout time.Duration) Event
	// Flush ensures any buffered outbound data is handed to the OS/network.
	Flush()
	// PeerCount returns the number of currently connected peers.
	PeerCount() int
	// Stats returns delivery statistics for one peer.
	Stats(peer proto.PeerID) Stats
	// IsConnected reports whether peer currently has a live connection.
	IsConnected(peer proto.PeerID) bool
	// Close releases all transport-level resources.
	Close() error
}
