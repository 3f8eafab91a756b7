// Package terrain implements the seed-plus-journal terrain sync path
// (C13): on join the server ships a deterministic seed and the ordered
// modification journal instead of a full terrain snapshot, falling back to
// internal/netio/snapshot only on a checksum mismatch. Grounded on
// _examples/original_source/include/sims3000/terrain/TerrainNetworkSync.h.
package terrain

import (
	"sync"

	"zergcity/internal/netio/proto"
)

// Journal is the server-side authoritative, ordered record of every
// terrain modification since map generation. The terrain generation
// algorithm itself and the authoritative checksum of the current grid are
// both out of scope for this core (spec.md §1's external collaborator) —
// Journal only carries the seed and the ordered operation log.
type Journal struct {
	mu           sync.Mutex
	seed         uint64
	mapSize      proto.MapSizeTier
	mods         []proto.TerrainModification
	nextSequence uint32
}

// NewJournal returns an empty Journal for a newly generated map.
func NewJournal(seed uint64, mapSize proto.MapSizeTier) *Journal {
	return &Journal{seed: seed, mapSize: mapSize, nextSequence: 1}
}

// Record appends a new modification with the next sequence number and
// returns it, both for local bookkeeping and so the caller can broadcast
// the corresponding TerrainModifiedEvent immediately.
func (j *Journal) Record(player proto.PlayerID, op proto.TerrainOp, rect proto.TerrainRect, newElevation int16, tick proto.Tick) proto.TerrainModification {
	j.mu.Lock()
	defer j.mu.Unlock()
	mod := proto.TerrainModification{
		Sequence:     j.nextSequence,
		Player:       player,
		Operation:    op,
		Affected:     rect,
		NewElevation: newElevation,
		Tick:         tick,
	}
	j.nextSequence++
	j.mods = append(j.mods, mod)
	return mod
}

// SyncRequest builds the join-time TerrainSyncRequest carrying the seed,
// map size, and the full ordered journal. checksum is the authoritative
// checksum of the current terrain grid, computed by the embedding
// simulation (this package has no terrain representation of its own).
func (j *Journal) SyncRequest(checksum uint32) proto.TerrainSyncRequest {
	j.mu.Lock()
	defer j.mu.Unlock()
	mods := make([]proto.TerrainModification, len(j.mods))
	copy(mods, j.mods)
	return proto.TerrainSyncRequest{
		Seed:          j.seed,
		MapSize:       j.mapSize,
		Modifications: mods,
		Checksum:      checksum,
	}
}

// Len reports how many modifications the journal currently holds.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.mods)
}
