package proto

import "zergcity/internal/netio/wire"

// TerrainOp enumerates the kinds of terrain modifications the journal
// records. The actual terrain generation algorithm is out of scope for
// this core (spec.md §1); only the operation tag and affected region cross
// the wire.
type TerrainOp uint8

const (
	TerrainOpClear TerrainOp = iota
	TerrainOpLevel
	TerrainOpGrade
	TerrainOpRaise
	TerrainOpLower
)

// TerrainRect is an inclusive tile-coordinate rectangle.
type TerrainRect struct {
	MinX, MinY int16
	MaxX, MaxY int16
}

// TerrainModification is one ordered entry in the authoritative
// modification journal since map generation.
type TerrainModification struct {
	Sequence     uint32
	Player       PlayerID
	Operation    TerrainOp
	Affected     TerrainRect
	NewElevation int16
	Tick         Tick
}

func writeTerrainMod(buf *wire.Buffer, m TerrainModification) {
	buf.WriteU32(m.Sequence)
	buf.WriteU8(uint8(m.Player))
	buf.WriteU8(uint8(m.Operation))
	buf.WriteI16(m.Affected.MinX)
	buf.WriteI16(m.Affected.MinY)
	buf.WriteI16(m.Affected.MaxX)
	buf.WriteI16(m.Affected.MaxY)
	buf.WriteI16(m.NewElevation)
	buf.WriteU64(uint64(m.Tick))
}

func readTerrainMod(buf *wire.Buffer) (TerrainModification, error) {
	var m TerrainModification
	seq, err := buf.ReadU32()
	if err != nil {
		return m, err
	}
	m.Sequence = seq
	player, err := buf.ReadU8()
	if err != nil {
		return m, err
	}
	m.Player = PlayerID(player)
	op, err := buf.ReadU8()
	if err != nil {
		return m, err
	}
	m.Operation = TerrainOp(op)
	minX, err := buf.ReadI16()
	if err != nil {
		return m, err
	}
	minY, err := buf.ReadI16()
	if err != nil {
		return m, err
	}
	maxX, err := buf.ReadI16()
	if err != nil {
		return m, err
	}
	maxY, err := buf.ReadI16()
	if err != nil {
		return m, err
	}
	m.Affected = TerrainRect{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
	elev, err := buf.ReadI16()
	if err != nil {
		return m, err
	}
	m.NewElevation = elev
	tick, err := buf.ReadU64()
	if err != nil {
		return m, err
	}
	m.Tick = Tick(tick)
	return m, nil
}

// TerrainSyncRequest is sent by the server on join: the seed plus the full
// ordered journal, which is dramatically cheaper than a raw terrain
// snapshot (a full 256x256 snapshot is roughly 448 KB against well under
// 1 KB for seed + journal in the common case).
type TerrainSyncRequest struct {
	Seed          uint64
	MapSize       MapSizeTier
	Modifications []TerrainModification
	Checksum      uint32
}

func (TerrainSyncRequest) Type() wire.MessageType { return wire.TypeTerrainSyncRequest }

func (m TerrainSyncRequest) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU64(m.Seed)
	buf.WriteU8(uint8(m.MapSize))
	buf.WriteU32(uint32(len(m.Modifications)))
	for _, mod := range m.Modifications {
		writeTerrainMod(buf, mod)
	}
	buf.WriteU32(m.Checksum)
}

func (m *TerrainSyncRequest) UnmarshalPayload(buf *wire.Buffer) error {
	seed, err := buf.ReadU64()
	if err != nil {
		return err
	}
	m.Seed = seed
	size, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.MapSize = MapSizeTier(size)
	count, err := buf.ReadU32()
	if err != nil {
		return err
	}
	mods := make([]TerrainModification, 0, count)
	for i := uint32(0); i < count; i++ {
		mod, err := readTerrainMod(buf)
		if err != nil {
			return err
		}
		mods = append(mods, mod)
	}
	m.Modifications = mods
	sum, err := buf.ReadU32()
	if err != nil {
		return err
	}
	m.Checksum = sum
	return nil
}

// TerrainSyncVerify is the client's reply after regenerating terrain from
// the seed and replaying the journal: its own computed checksum.
type TerrainSyncVerify struct {
	Checksum uint32
}

func (TerrainSyncVerify) Type() wire.MessageType { return wire.TypeTerrainSyncVerify }

func (m TerrainSyncVerify) MarshalPayload(buf *wire.Buffer) { buf.WriteU32(m.Checksum) }

func (m *TerrainSyncVerify) UnmarshalPayload(buf *wire.Buffer) error {
	sum, err := buf.ReadU32()
	if err != nil {
		return err
	}
	m.Checksum = sum
	return nil
}

// TerrainSyncComplete is the server's verdict: success means the client's
// checksum matched and it may proceed; failure means the client must fall
// back to the C12 snapshot path for terrain data specifically.
type TerrainSyncComplete struct {
	Success bool
}

func (TerrainSyncComplete) Type() wire.MessageType { return wire.TypeTerrainSyncComplete }

func (m TerrainSyncComplete) MarshalPayload(buf *wire.Buffer) {
	v := uint8(0)
	if m.Success {
		v = 1
	}
	buf.WriteU8(v)
}

func (m *TerrainSyncComplete) UnmarshalPayload(buf *wire.Buffer) error {
	v, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.Success = v != 0
	return nil
}

// TerrainModifiedEvent broadcasts a single live terrain change to every
// connected client so they can update their local grid and mark the
// affected region dirty for rendering.
type TerrainModifiedEvent struct {
	Modification TerrainModification
}

func (TerrainModifiedEvent) Type() wire.MessageType { return wire.TypeTerrainModifiedEvent }

func (m TerrainModifiedEvent) MarshalPayload(buf *wire.Buffer) {
	writeTerrainMod(buf, m.Modification)
}

func (m *TerrainModifiedEvent) UnmarshalPayload(buf *wire.Buffer) error {
	mod, err := readTerrainMod(buf)
	if err != nil {
		return err
	}
	m.Modification = mod
	return nil
}

// TerrainModifyRequest is sent by a client attempting to modify terrain;
// the server rate-limits it against the building bucket and applies it
// through its own terrain handler rather than the Input pipeline, and it
// is not itself part of the wire-level terrain
// sync handshake, but is grouped here since it shares the TerrainRect/Op
// vocabulary.
type TerrainModifyRequest struct {
	Sequence  uint32
	Operation TerrainOp
	Affected  TerrainRect
}

func (TerrainModifyRequest) Type() wire.MessageType { return wire.TypeTerrainModifyRequest }

func (m TerrainModifyRequest) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU32(m.Sequence)
	buf.WriteU8(uint8(m.Operation))
	buf.WriteI16(m.Affected.MinX)
	buf.WriteI16(m.Affected.MinY)
	buf.WriteI16(m.Affected.MaxX)
	buf.WriteI16(m.Affected.MaxY)
}

func (m *TerrainModifyRequest) UnmarshalPayload(buf *wire.Buffer) error {
	seq, err := buf.ReadU32()
	if err != nil {
		return err
	}
	m.Sequence = seq
	op, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.Operation = TerrainOp(op)
	minX, err := buf.ReadI16()
	if err != nil {
		return err
	}
	minY, err := buf.ReadI16()
	if err != nil {
		return err
	}
	maxX, err := buf.ReadI16()
	if err != nil {
		return err
	}
	maxY, err := buf.ReadI16()
	if err != nil {
		return err
	}
	m.Affected = TerrainRect{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
	return nil
}

// TerrainModifyResponse answers a TerrainModifyRequest with accept/reject,
// mirroring InputAck's shape for the terrain-specific action path.
type TerrainModifyResponse struct {
	Sequence uint32
	Accepted bool
	Reason   RejectionReason
}

func (TerrainModifyResponse) Type() wire.MessageType { return wire.TypeTerrainModifyReply }

func (m TerrainModifyResponse) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU32(m.Sequence)
	accepted := uint8(0)
	if m.Accepted {
		accepted = 1
	}
	buf.WriteU8(accepted)
	buf.WriteU8(uint8(m.Reason))
}

func (m *TerrainModifyResponse) UnmarshalPayload(buf *wire.Buffer) error {
	seq, err := buf.ReadU32()
	if err != nil {
		return err
	}
	m.Sequence = seq
	accepted, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.Accepted = accepted != 0
	reason, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.Reason = RejectionReason(reason)
	return nil
}
