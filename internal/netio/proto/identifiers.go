// Package proto defines the typed message payloads carried inside the
// envelope defined by internal/netio/wire: joins, heartbeats, input,
// state updates, snapshots, terrain sync, and session control.
package proto

// PeerID names a transport-level connection. 0 is reserved as a sentinel
// for "no peer" and is never assigned to a live connection.
type PeerID uint32

// InvalidPeerID is the sentinel PeerID value.
const InvalidPeerID PeerID = 0

// PlayerID names a logical player within [1, maxPlayers]. 0 is reserved.
type PlayerID uint8

// InvalidPlayerID is the sentinel PlayerID value.
const InvalidPlayerID PlayerID = 0

// EntityID names an ECS entity. Entity storage itself lives outside this
// core; only the id crosses the wire.
type EntityID uint32

// Tick names a monotonic simulation step.
type Tick uint64

// GridPosition is a pair of signed 16-bit tile coordinates. Equality and
// hashing (as a Go map key) are by value.
type GridPosition struct {
	X, Y int16
}
