package transport

import (
	"errors"
	"sync"
	"time"

	"zergcity/internal/netio/proto"
)

// ErrNotLinked is returned by Connect when a MemoryTransport has not
// been paired with a peer via Link.
var ErrNotLinked = errors.New("transport: memory transport is not linked to a peer")

type memoryOutboundMsg struct {
	peer proto.PeerID
	data []byte
	ch   Channel
}

// MemoryTransport is the in-memory test double required by C4: two linked
// instances form a deterministic client/server pair. Flush on one side
// transfers its outbound queue into the other side's inbound queue, so
// tests control exactly when "network" delivery happens.
type MemoryTransport struct {
	mu sync.Mutex

	selfPeer proto.PeerID
	peer     *MemoryTransport

	connected map[proto.PeerID]bool
	inbound   []Event
	outbound  []memoryOutboundMsg
	stats     map[proto.PeerID]*Stats

	nextPeerID proto.PeerID
}

// NewMemoryTransport returns an unlinked MemoryTransport. selfPeer is the
// PeerID this side presents itself as to its counterpart once linked.
func NewMemoryTransport(selfPeer proto.PeerID) *MemoryTransport {
	return &MemoryTransport{
		selfPeer:   selfPeer,
		connected:  make(map[proto.PeerID]bool),
		stats:      make(map[proto.PeerID]*Stats),
		nextPeerID: 1,
	}
}

// Link pairs two MemoryTransports into a client/server pair and injects a
// Connect event into each other's inbound queue, mirroring what a real
// handshake would produce.
func Link(a, b *MemoryTransport) {
	a.mu.Lock()
	b.mu.Lock()
	a.peer = b
	b.peer = a
	a.mu.Unlock()
	b.mu.Unlock()

	a.InjectConnect(b.selfPeer)
	b.InjectConnect(a.selfPeer)
}

// InjectConnect delivers a synthetic Connect event for peer, as if a real
// handshake had just completed. Used directly by tests that want to control
// event ordering precisely, and internally by Link.
func (m *MemoryTransport) InjectConnect(peer proto.PeerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected[peer] = true
	m.stats[peer] = &Stats{}
	m.inbound = append(m.inbound, Event{Type: EventConnect, Peer: peer})
}

// InjectDisconnect delivers a synthetic Disconnect event for peer.
func (m *MemoryTransport) InjectDisconnect(peer proto.PeerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connected, peer)
	m.inbound = append(m.inbound, Event{Type: EventDisconnect, Peer: peer})
}

// InjectReceive delivers a synthetic Receive event directly, bypassing
// Flush — useful for tests that want to hand-craft malformed bytes.
func (m *MemoryTransport) InjectReceive(peer proto.PeerID, data []byte, ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = append(m.inbound, Event{Type: EventReceive, Peer: peer, Data: data, Channel: ch})
}

// StartServer is a no-op for the memory transport: linking establishes the
// topology, there is no real socket to bind.
func (m *MemoryTransport) StartServer(port int, maxClients int) error { return nil }

// Connect allocates a new local PeerID for the linked counterpart and
// reports it connected.
func (m *MemoryTransport) Connect(address string, port int) (proto.PeerID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.peer == nil {
		return proto.InvalidPeerID, ErrNotLinked
	}
	id := m.nextPeerID
	m.nextPeerID++
	m.connected[id] = true
	m.stats[id] = &Stats{}
	return id, nil
}

// Disconnect marks peer disconnected locally and notifies the linked side.
func (m *MemoryTransport) Disconnect(peer proto.PeerID) error {
	m.mu.Lock()
	delete(m.connected, peer)
	linked := m.peer
	self := m.selfPeer
	m.mu.Unlock()
	if linked != nil {
		linked.InjectDisconnect(self)
	}
	return nil
}

// DisconnectAll disconnects every currently connected peer.
func (m *MemoryTransport) DisconnectAll() {
	m.mu.Lock()
	peers := make([]proto.PeerID, 0, len(m.connected))
	for p := range m.connected {
		peers = append(peers, p)
	}
	m.mu.Unlock()
	for _, p := range peers {
		_ = m.Disconnect(p)
	}
}

// Send queues data for delivery to the linked counterpart's inbound queue
// on the next Flush.
func (m *MemoryTransport) Send(peer proto.PeerID, data []byte, ch Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected[peer] {
		return errors.New("transport: peer not connected")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.outbound = append(m.outbound, memoryOutboundMsg{peer: peer, data: cp, ch: ch})
	if st := m.stats[peer]; st != nil {
		st.PacketsSent++
		st.BytesSent += uint64(len(data))
	}
	return nil
}

// Broadcast queues data for every connected peer.
func (m *MemoryTransport) Broadcast(data []byte, ch Channel) {
	m.mu.Lock()
	peers := make([]proto.PeerID, 0, len(m.connected))
	for p := range m.connected {
		peers = append(peers, p)
	}
	m.mu.Unlock()
	for _, p := range peers {
		_ = m.Send(p, data, ch)
	}
}

// Poll returns the next queued inbound event, or EventNone if empty. The
// timeout argument is accepted for interface compatibility but the memory
// transport never blocks.
func (m *MemoryTransport) Poll(timeout time.Duration) Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inbound) == 0 {
		return Event{Type: EventNone}
	}
	ev := m.inbound[0]
	m.inbound = m.inbound[1:]
	return ev
}

// Flush transfers this side's outbound queue into the linked counterpart's
// inbound queue — this is the deterministic stand-in for "the network
// delivered it."
func (m *MemoryTransport) Flush() {
	m.mu.Lock()
	out := m.outbound
	m.outbound = nil
	linked := m.peer
	self := m.selfPeer
	m.mu.Unlock()

	if linked == nil {
		return
	}
	for _, msg := range out {
		linked.mu.Lock()
		if st := linked.stats[self]; st != nil {
			st.PacketsReceived++
			st.BytesReceived += uint64(len(msg.data))
		}
		linked.inbound = append(linked.inbound, Event{Type: EventReceive, Peer: self, Data: msg.data, Channel: msg.ch})
		linked.mu.Unlock()
	}
}

// PeerCount returns the number of currently connected peers.
func (m *MemoryTransport) PeerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connected)
}

// Stats returns a copy of the tracked statistics for peer.
func (m *MemoryTransport) Stats(peer proto.PeerID) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.stats[peer]; ok {
		return *st
	}
	return Stats{}
}

// IsConnected reports whether peer is currently connected.
func (m *MemoryTransport) IsConnected(peer proto.PeerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected[peer]
}

// Close is a no-op for the memory transport.
func (m *MemoryTransport) Close() error { return nil }

var _ Transport = (*MemoryTransport)(nil)
