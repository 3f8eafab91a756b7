// Package snapshot implements the async full-state snapshot path (C12):
// server-side generation with copy-on-write-consistent buffering, LZ4
// chunking, and a CRC-32 integrity check; client-side out-of-order chunk
// reassembly and bounded delta buffering while a snapshot is in flight.
// Grounded on
// _examples/original_source/include/sims3000/sync/SyncSystem.h's
// "Full State Snapshot Generation"/"Full State Snapshot Reception"
// sections.
package snapshot

import (
	"errors"
	"hash/crc32"
	"sync"

	"github.com/pierrec/lz4/v4"

	"zergcity/internal/netio/proto"
)

// MaxBufferedDeltas matches SyncSystem.h's MAX_BUFFERED_DELTAS (100 ticks,
// 5 seconds at 20Hz).
const MaxBufferedDeltas = 100

var (
	// ErrGenerationInProgress is returned by Start if a snapshot is already
	// being produced.
	ErrGenerationInProgress = errors.New("snapshot: generation already in progress")
	// ErrDeltaBufferFull is returned by Receiver.BufferDelta once
	// MaxBufferedDeltas is reached.
	ErrDeltaBufferFull = errors.New("snapshot: delta buffer full")
	// ErrChecksumMismatch is returned by Receiver.HandleEnd when the
	// reassembled buffer's CRC-32 does not match SnapshotEnd.Checksum.
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
	// ErrIncompleteSnapshot is returned by Receiver.HandleEnd if fewer
	// chunks were received than SnapshotStart announced.
	ErrIncompleteSnapshot = errors.New("snapshot: missing chunks at end")
)

// Producer returns a single consistent byte buffer of the full entity state
// at the given tick. The caller is responsible for consistency (typically
// by freezing or copy-on-write-ing the world for the duration of the call);
// this package only carries, compresses, and chunks whatever Producer
// hands back — the same "caller reports changes" division of labor as
// internal/netio/sync's Tracker.
type Producer func(tick proto.Tick) []byte

// Generator runs snapshot generation on the server side. One Generator
// handles one in-flight generation at a time.
type Generator struct {
	mu         sync.Mutex
	generating bool
	ready      bool
	start      proto.SnapshotStart
	chunks     []proto.SnapshotChunk
	end        proto.SnapshotEnd
}

// NewGenerator returns an idle Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Start launches snapshot generation for tick in a background goroutine.
// produce is called synchronously from that goroutine; entityCount is
// carried through to SnapshotStart for client-side progress reporting.
// Snapshot generation has no dependency on whether the simulation is
// running or paused (resolved open question: allowed during pause).
func (g *Generator) Start(tick proto.Tick, entityCount uint32, produce Producer) error {
	g.mu.Lock()
	if g.generating {
		g.mu.Unlock()
		return ErrGenerationInProgress
	}
	g.generating = true
	g.ready = false
	g.mu.Unlock()

	go g.run(tick, entityCount, produce)
	return nil
}

func (g *Generator) run(tick proto.Tick, entityCount uint32, produce Producer) {
	raw := produce(tick)
	checksum := crc32.ChecksumIEEE(raw)
	compressed := compress(raw)

	chunks := chunkBuffer(tick, compressed)

	g.mu.Lock()
	g.start = proto.SnapshotStart{
		Tick:        tick,
		TotalChunks: uint32(len(chunks)),
		TotalBytes:  uint64(len(raw)),
		EntityCount: entityCount,
	}
	g.chunks = chunks
	g.end = proto.SnapshotEnd{Tick: tick, Checksum: checksum}
	g.ready = true
	g.generating = false
	g.mu.Unlock()
}

func compress(raw []byte) []byte {
	bound := lz4.CompressBlockBound(len(raw))
	out := make([]byte, bound)
	var c lz4.Compressor
	n, err := c.CompressBlock(raw, out)
	if err != nil || n == 0 {
		// Incompressible or too small to benefit — carry raw bytes with a
		// zero-length prefix meaning "stored, not compressed".
		return append([]byte{0, 0, 0, 0}, raw...)
	}
	prefixed := make([]byte, 4+n)
	putU32(prefixed, uint32(len(raw)))
	copy(prefixed[4:], out[:n])
	return prefixed
}

func decompress(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("snapshot: compressed buffer too short")
	}
	decompressedLen := getU32(data)
	body := data[4:]
	if decompressedLen == 0 {
		return append([]byte(nil), body...), nil
	}
	out := make([]byte, decompressedLen)
	n, err := lz4.UncompressBlock(body, out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func chunkBuffer(tick proto.Tick, data []byte) []proto.SnapshotChunk {
	if len(data) == 0 {
		return []proto.SnapshotChunk{{Tick: tick, ChunkIndex: 0, Data: nil}}
	}
	var chunks []proto.SnapshotChunk
	for offset, idx := 0, uint32(0); offset < len(data); idx++ {
		end := offset + proto.SnapshotChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := make([]byte, end-offset)
		copy(chunk, data[offset:end])
		chunks = append(chunks, proto.SnapshotChunk{Tick: tick, ChunkIndex: idx, Data: chunk})
		offset = end
	}
	return chunks
}

// IsGenerating reports whether a generation is currently running.
func (g *Generator) IsGenerating() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generating
}

// IsReady reports whether a completed snapshot is waiting to be taken.
func (g *Generator) IsReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

// Take returns and clears the generated messages. ok is false if no
// snapshot is ready.
func (g *Generator) Take() (start proto.SnapshotStart, chunks []proto.SnapshotChunk, end proto.SnapshotEnd, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.ready {
		return proto.SnapshotStart{}, nil, proto.SnapshotEnd{}, false
	}
	start, chunks, end = g.start, g.chunks, g.end
	g.ready = false
	g.chunks = nil
	return start, chunks, end, true
}
