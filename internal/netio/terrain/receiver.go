package terrain

import (
	"zergcity/internal/netio/proto"
)

// Generate regenerates terrain locally from seed+size, deterministically —
// the actual noise/generation algorithm is the external collaborator this
// core only carries a seed for.
type Generate func(seed uint64, mapSize proto.MapSizeTier)

// Apply replays one journal entry (or live TerrainModifiedEvent) against
// the local terrain representation.
type Apply func(mod proto.TerrainModification)

// Checksum returns the caller's current checksum of its local terrain
// grid, for comparison against the server's authoritative value.
type Checksum func() uint32

// State tracks where a client is in the join-time terrain handshake.
type State uint8

const (
	StatePending State = iota
	StateVerifying
	StateSynced
	StateFallback
)

// Receiver drives the client side of the seed+journal handshake.
type Receiver struct {
	state State
}

// NewReceiver returns a Receiver awaiting its first TerrainSyncRequest.
func NewReceiver() *Receiver {
	return &Receiver{state: StatePending}
}

// State returns the current handshake state.
func (r *Receiver) State() State { return r.state }

// HandleSyncRequest regenerates terrain from the seed, replays every
// journal entry in order, computes the local checksum, and returns the
// TerrainSyncVerify reply to send back.
func (r *Receiver) HandleSyncRequest(msg proto.TerrainSyncRequest, generate Generate, apply Apply, checksum Checksum) proto.TerrainSyncVerify {
	generate(msg.Seed, msg.MapSize)
	for _, mod := range msg.Modifications {
		apply(mod)
	}
	r.state = StateVerifying
	return proto.TerrainSyncVerify{Checksum: checksum()}
}

// HandleSyncComplete finalizes the handshake. On failure the caller must
// fall back to internal/netio/snapshot scoped to terrain data — a full
// 256x256 snapshot (~448KB) is the deliberately expensive path used only
// when the cheap seed+journal path didn't reproduce the authoritative
// state.
func (r *Receiver) HandleSyncComplete(msg proto.TerrainSyncComplete) {
	if msg.Success {
		r.state = StateSynced
	} else {
		r.state = StateFallback
	}
}

// HandleLiveEvent applies a broadcast TerrainModifiedEvent once synced.
// Events arriving before StateSynced are stale relative to the in-progress
// handshake and are ignored — the full journal already included them.
func (r *Receiver) HandleLiveEvent(msg proto.TerrainModifiedEvent, apply Apply) {
	if r.state != StateSynced {
		return
	}
	apply(msg.Modification)
}

// NeedsFallback reports whether the checksum mismatch fallback to
// internal/netio/snapshot is required.
func (r *Receiver) NeedsFallback() bool { return r.state == StateFallback }
