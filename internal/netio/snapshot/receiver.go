package snapshot

import (
	"hash/crc32"
	"sort"
	"sync"

	"zergcity/internal/netio/proto"
)

// State mirrors SyncSystem.h's SnapshotState: None/Receiving/Applying/Complete.
type State uint8

const (
	StateNone State = iota
	StateReceiving
	StateApplying
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "None"
	case StateReceiving:
		return "Receiving"
	case StateApplying:
		return "Applying"
	case StateComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Progress reports client-side snapshot transfer progress, mirroring
// SyncSystem.h's SnapshotProgress.
type Progress struct {
	Tick           proto.Tick
	TotalChunks    uint32
	ReceivedChunks uint32
	TotalBytes     uint64
	EntityCount    uint32
	State          State
}

// Fraction returns ReceivedChunks/TotalChunks, or 0 if TotalChunks is 0.
func (p Progress) Fraction() float64 {
	if p.TotalChunks == 0 {
		return 0
	}
	return float64(p.ReceivedChunks) / float64(p.TotalChunks)
}

// Receiver implements the client side of C12: out-of-order chunk
// reassembly, checksum verification, and bounded delta buffering while a
// snapshot is in flight.
type Receiver struct {
	mu       sync.Mutex
	progress Progress
	chunks   map[uint32][]byte
	buffered []proto.StateUpdate
}

// NewReceiver returns an idle Receiver.
func NewReceiver() *Receiver {
	return &Receiver{progress: Progress{State: StateNone}}
}

// HandleStart begins a new snapshot reception, discarding any prior
// in-progress transfer and buffered deltas.
func (r *Receiver) HandleStart(msg proto.SnapshotStart) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = Progress{
		Tick:        msg.Tick,
		TotalChunks: msg.TotalChunks,
		TotalBytes:  msg.TotalBytes,
		EntityCount: msg.EntityCount,
		State:       StateReceiving,
	}
	r.chunks = make(map[uint32][]byte, msg.TotalChunks)
	r.buffered = nil
}

// HandleChunk buffers one (possibly out-of-order, possibly duplicate)
// chunk.
func (r *Receiver) HandleChunk(msg proto.SnapshotChunk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress.State != StateReceiving || msg.Tick != r.progress.Tick {
		return
	}
	if _, dup := r.chunks[msg.ChunkIndex]; !dup {
		r.progress.ReceivedChunks++
	}
	r.chunks[msg.ChunkIndex] = msg.Data
}

// HandleEnd reassembles the buffered chunks in index order, verifies the
// checksum, and returns the decompressed full-state buffer. On success the
// Receiver moves to StateComplete; on failure it returns to StateNone so a
// fresh snapshot can be requested.
func (r *Receiver) HandleEnd(msg proto.SnapshotEnd) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress.State != StateReceiving || msg.Tick != r.progress.Tick {
		return nil, ErrIncompleteSnapshot
	}
	if uint32(len(r.chunks)) < r.progress.TotalChunks {
		r.progress.State = StateNone
		return nil, ErrIncompleteSnapshot
	}

	r.progress.State = StateApplying
	indices := make([]uint32, 0, len(r.chunks))
	for idx := range r.chunks {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	var compressed []byte
	for _, idx := range indices {
		compressed = append(compressed, r.chunks[idx]...)
	}

	raw, err := decompress(compressed)
	if err != nil {
		r.progress.State = StateNone
		return nil, err
	}
	if crc32.ChecksumIEEE(raw) != msg.Checksum {
		r.progress.State = StateNone
		return nil, ErrChecksumMismatch
	}

	r.progress.State = StateComplete
	r.chunks = nil
	return raw, nil
}

// Progress returns a snapshot of the current transfer progress.
func (r *Receiver) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// IsReceiving reports whether a snapshot transfer is currently in flight.
func (r *Receiver) IsReceiving() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress.State == StateReceiving
}

// BufferDelta stores a StateUpdate that arrived while a snapshot is being
// received, up to MaxBufferedDeltas. Returns ErrDeltaBufferFull once full —
// the caller must then fall back to requesting a fresh snapshot, since a
// gap in the delta stream can no longer be safely replayed.
func (r *Receiver) BufferDelta(msg proto.StateUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buffered) >= MaxBufferedDeltas {
		return ErrDeltaBufferFull
	}
	r.buffered = append(r.buffered, msg)
	return nil
}

// DrainBufferedDeltas returns every buffered delta whose tick is strictly
// newer than the just-applied snapshot's tick (deltas at or before the
// snapshot tick are already reflected in it), in arrival order, and resets
// the Receiver to StateNone so it is ready for the next transfer.
func (r *Receiver) DrainBufferedDeltas() []proto.StateUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshotTick := r.progress.Tick
	out := make([]proto.StateUpdate, 0, len(r.buffered))
	for _, d := range r.buffered {
		if d.Tick > snapshotTick {
			out = append(out, d)
		}
	}
	r.buffered = nil
	r.progress.State = StateNone
	return out
}
