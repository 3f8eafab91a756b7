package proto

import "zergcity/internal/netio/wire"

// SnapshotChunkSize is the maximum number of snapshot bytes carried by one
// SnapshotChunk: the wire maximum payload less the chunk's 16-byte header
// (tick, index, data length), so a chunk payload never exceeds
// wire.MaxPayloadSize, per spec.md §4.12 ("chunks no larger than the wire
// maximum, ~64 KiB per chunk").
const SnapshotChunkSize = wire.MaxPayloadSize - 16

// SnapshotStart announces an incoming full-state snapshot and its shape.
type SnapshotStart struct {
	Tick        Tick
	TotalChunks uint32
	TotalBytes  uint64
	EntityCount uint32
}

func (SnapshotStart) Type() wire.MessageType { return wire.TypeSnapshotStart }

func (m SnapshotStart) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU64(uint64(m.Tick))
	buf.WriteU32(m.TotalChunks)
	buf.WriteU64(m.TotalBytes)
	buf.WriteU32(m.EntityCount)
}

func (m *SnapshotStart) UnmarshalPayload(buf *wire.Buffer) error {
	tick, err := buf.ReadU64()
	if err != nil {
		return err
	}
	m.Tick = Tick(tick)
	chunks, err := buf.ReadU32()
	if err != nil {
		return err
	}
	m.TotalChunks = chunks
	bytes, err := buf.ReadU64()
	if err != nil {
		return err
	}
	m.TotalBytes = bytes
	count, err := buf.ReadU32()
	if err != nil {
		return err
	}
	m.EntityCount = count
	return nil
}

// SnapshotChunk carries one (possibly out-of-order) slice of the compressed
// snapshot buffer.
type SnapshotChunk struct {
	Tick       Tick
	ChunkIndex uint32
	Data       []byte
}

func (SnapshotChunk) Type() wire.MessageType { return wire.TypeSnapshotChunk }

func (m SnapshotChunk) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU64(uint64(m.Tick))
	buf.WriteU32(m.ChunkIndex)
	buf.WriteU32(uint32(len(m.Data)))
	buf.WriteBytes(m.Data)
}

func (m *SnapshotChunk) UnmarshalPayload(buf *wire.Buffer) error {
	tick, err := buf.ReadU64()
	if err != nil {
		return err
	}
	m.Tick = Tick(tick)
	idx, err := buf.ReadU32()
	if err != nil {
		return err
	}
	m.ChunkIndex = idx
	n, err := buf.ReadU32()
	if err != nil {
		return err
	}
	data, err := buf.ReadBytes(int(n))
	if err != nil {
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.Data = cp
	return nil
}

// SnapshotEnd finalizes a snapshot transfer with the authoritative checksum
// of the assembled, decompressed buffer.
type SnapshotEnd struct {
	Tick     Tick
	Checksum uint32
}

func (SnapshotEnd) Type() wire.MessageType { return wire.TypeSnapshotEnd }

func (m SnapshotEnd) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU64(uint64(m.Tick))
	buf.WriteU32(m.Checksum)
}

func (m *SnapshotEnd) UnmarshalPayload(buf *wire.Buffer) error {
	tick, err := buf.ReadU64()
	if err != nil {
		return err
	}
	m.Tick = Tick(tick)
	sum, err := buf.ReadU32()
	if err != nil {
		return err
	}
	m.Checksum = sum
	return nil
}
