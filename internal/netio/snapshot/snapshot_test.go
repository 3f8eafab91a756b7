package snapshot

import (
	"bytes"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zergcity/internal/netio/proto"
)

func TestGeneratorProducesReassemblableChunks(t *testing.T) {
	g := NewGenerator()
	// Pseudo-random bytes do not compress, so the LZ4 output is still large
	// enough to span multiple chunks.
	payload := make([]byte, 200000)
	rand.New(rand.NewSource(1)).Read(payload)

	require.NoError(t, g.Start(42, 7, func(tick proto.Tick) []byte {
		require.Equal(t, proto.Tick(42), tick)
		return payload
	}))

	require.Eventually(t, g.IsReady, 2*time.Second, time.Millisecond)

	start, chunks, end, ok := g.Take()
	require.True(t, ok)
	require.Equal(t, proto.Tick(42), start.Tick)
	require.Equal(t, uint32(7), start.EntityCount)
	require.Equal(t, uint64(len(payload)), start.TotalBytes)
	require.Equal(t, uint32(len(chunks)), start.TotalChunks)
	require.Greater(t, len(chunks), 1)

	r := NewReceiver()
	r.HandleStart(start)
	// Feed chunks in reverse to exercise out-of-order reassembly.
	for i := len(chunks) - 1; i >= 0; i-- {
		r.HandleChunk(chunks[i])
	}
	raw, err := r.HandleEnd(end)
	require.NoError(t, err)
	require.True(t, bytes.Equal(payload, raw))
	require.Equal(t, StateComplete, r.Progress().State)
}

func TestGeneratorRejectsConcurrentStart(t *testing.T) {
	g := NewGenerator()
	block := make(chan struct{})
	require.NoError(t, g.Start(1, 0, func(proto.Tick) []byte {
		<-block
		return []byte("x")
	}))
	err := g.Start(2, 0, func(proto.Tick) []byte { return nil })
	require.ErrorIs(t, err, ErrGenerationInProgress)
	close(block)
	require.Eventually(t, g.IsReady, 2*time.Second, time.Millisecond)
}

func TestReceiverRejectsChecksumMismatch(t *testing.T) {
	g := NewGenerator()
	require.NoError(t, g.Start(1, 0, func(proto.Tick) []byte { return []byte("hello world") }))
	require.Eventually(t, g.IsReady, 2*time.Second, time.Millisecond)
	start, chunks, end, _ := g.Take()
	end.Checksum ^= 0xFFFFFFFF

	r := NewReceiver()
	r.HandleStart(start)
	for _, c := range chunks {
		r.HandleChunk(c)
	}
	_, err := r.HandleEnd(end)
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestReceiverRejectsIncompleteTransfer(t *testing.T) {
	g := NewGenerator()
	payload := make([]byte, 200000) // incompressible, so it spans multiple chunks
	rand.New(rand.NewSource(2)).Read(payload)
	require.NoError(t, g.Start(1, 0, func(proto.Tick) []byte { return payload }))
	require.Eventually(t, g.IsReady, 2*time.Second, time.Millisecond)
	start, chunks, end, _ := g.Take()
	require.Greater(t, len(chunks), 1)

	r := NewReceiver()
	r.HandleStart(start)
	r.HandleChunk(chunks[0]) // drop the rest
	_, err := r.HandleEnd(end)
	require.ErrorIs(t, err, ErrIncompleteSnapshot)
}

func TestDeltaBufferFillsAndDrainsPastSnapshotTick(t *testing.T) {
	r := NewReceiver()
	r.HandleStart(proto.SnapshotStart{Tick: 100, TotalChunks: 1})

	require.NoError(t, r.BufferDelta(proto.StateUpdate{Tick: 50}))  // before snapshot tick, dropped on drain
	require.NoError(t, r.BufferDelta(proto.StateUpdate{Tick: 101})) // after, kept
	require.NoError(t, r.BufferDelta(proto.StateUpdate{Tick: 102}))

	drained := r.DrainBufferedDeltas()
	require.Len(t, drained, 2)
	require.Equal(t, proto.Tick(101), drained[0].Tick)
	require.Equal(t, proto.Tick(102), drained[1].Tick)
	require.Equal(t, StateNone, r.Progress().State)
}

func TestDeltaBufferOverflowsAtCap(t *testing.T) {
	r := NewReceiver()
	r.HandleStart(proto.SnapshotStart{Tick: 0, TotalChunks: 1})
	for i := 0; i < MaxBufferedDeltas; i++ {
		require.NoError(t, r.BufferDelta(proto.StateUpdate{Tick: proto.Tick(i)}))
	}
	require.ErrorIs(t, r.BufferDelta(proto.StateUpdate{Tick: 999}), ErrDeltaBufferFull)
}
