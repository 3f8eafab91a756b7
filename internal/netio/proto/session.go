package proto

import (
	"errors"

	"zergcity/internal/netio/wire"
)

// SessionTokenSize is the fixed length of a session token on the wire.
const SessionTokenSize = 16

// SessionToken is a 128-bit reconnection credential. It is always carried
// on the wire as 16 raw bytes (see internal/netio/server for how
// google/uuid.UUID, which is exactly this size, backs it on the server).
type SessionToken [SessionTokenSize]byte

// ErrNameTooLong guards against a pathological length-prefixed name from a
// misbehaving or hostile client.
var ErrNameTooLong = errors.New("proto: player name exceeds maximum length")

// MaxNameLength bounds the Join name field, checked when a Join is decoded;
// PlayerList names are not checked against it.
const MaxNameLength = 64

// KickReason is a closed, wire-stable reason code for Kick and JoinReject.
// The space is intentionally closed (see DESIGN.md "Resolved Open
// Questions") because it travels as a single byte.
type KickReason uint8

const (
	KickReasonNone            KickReason = 0
	KickReasonFull             KickReason = 1
	KickReasonSessionExpired   KickReason = 2
	KickReasonInvalidVersion   KickReason = 3
	KickReasonKicked           KickReason = 4
	KickReasonServerShutdown   KickReason = 5
	KickReasonInvalidToken     KickReason = 6
	KickReasonDuplicateSession KickReason = 7
)

// Join is sent by a connecting client to request a PlayerID.
type Join struct {
	Name         string
	Capabilities uint32
}

func (Join) Type() wire.MessageType { return wire.TypeJoin }

func (m Join) MarshalPayload(buf *wire.Buffer) {
	buf.WriteString(m.Name)
	buf.WriteU32(m.Capabilities)
}

func (m *Join) UnmarshalPayload(buf *wire.Buffer) error {
	name, err := buf.ReadString()
	if err != nil {
		return err
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	m.Name = name
	caps, err := buf.ReadU32()
	if err != nil {
		return err
	}
	m.Capabilities = caps
	return nil
}

// JoinAccept confirms a join or reconnect and assigns/confirms identity.
type JoinAccept struct {
	PlayerID   PlayerID
	ServerTime uint64
	Token      SessionToken
	StartTick  Tick
}

func (JoinAccept) Type() wire.MessageType { return wire.TypeJoinAccept }

func (m JoinAccept) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU8(uint8(m.PlayerID))
	buf.WriteU64(m.ServerTime)
	buf.WriteBytes(m.Token[:])
	buf.WriteU64(uint64(m.StartTick))
}

func (m *JoinAccept) UnmarshalPayload(buf *wire.Buffer) error {
	pid, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.PlayerID = PlayerID(pid)
	st, err := buf.ReadU64()
	if err != nil {
		return err
	}
	m.ServerTime = st
	tok, err := buf.ReadBytes(SessionTokenSize)
	if err != nil {
		return err
	}
	copy(m.Token[:], tok)
	tick, err := buf.ReadU64()
	if err != nil {
		return err
	}
	m.StartTick = Tick(tick)
	return nil
}

// JoinReject tells a would-be client why it was refused.
type JoinReject struct {
	Reason  KickReason
	Message string
}

func (JoinReject) Type() wire.MessageType { return wire.TypeJoinReject }

func (m JoinReject) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU8(uint8(m.Reason))
	buf.WriteString(m.Message)
}

func (m *JoinReject) UnmarshalPayload(buf *wire.Buffer) error {
	r, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.Reason = KickReason(r)
	msg, err := buf.ReadString()
	if err != nil {
		return err
	}
	m.Message = msg
	return nil
}

// Reconnect presents a previously issued session token to rebind a session
// to a new PeerID.
type Reconnect struct {
	Token SessionToken
}

func (Reconnect) Type() wire.MessageType { return wire.TypeReconnect }

func (m Reconnect) MarshalPayload(buf *wire.Buffer) {
	buf.WriteBytes(m.Token[:])
}

func (m *Reconnect) UnmarshalPayload(buf *wire.Buffer) error {
	tok, err := buf.ReadBytes(SessionTokenSize)
	if err != nil {
		return err
	}
	copy(m.Token[:], tok)
	return nil
}

// Disconnect announces a voluntary, graceful disconnect.
type Disconnect struct {
	Reason string
}

func (Disconnect) Type() wire.MessageType { return wire.TypeDisconnect }

func (m Disconnect) MarshalPayload(buf *wire.Buffer) { buf.WriteString(m.Reason) }

func (m *Disconnect) UnmarshalPayload(buf *wire.Buffer) error {
	s, err := buf.ReadString()
	if err != nil {
		return err
	}
	m.Reason = s
	return nil
}

// Heartbeat carries the sender's local timestamp so the receiver can echo
// it back for RTT measurement.
type Heartbeat struct {
	Sequence      uint32
	ClientTimeMs  uint64
}

func (Heartbeat) Type() wire.MessageType { return wire.TypeHeartbeat }

func (m Heartbeat) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU32(m.Sequence)
	buf.WriteU64(m.ClientTimeMs)
}

func (m *Heartbeat) UnmarshalPayload(buf *wire.Buffer) error {
	seq, err := buf.ReadU32()
	if err != nil {
		return err
	}
	m.Sequence = seq
	ts, err := buf.ReadU64()
	if err != nil {
		return err
	}
	m.ClientTimeMs = ts
	return nil
}

// HeartbeatResponse echoes the timestamp from a Heartbeat so the original
// sender can compute a round-trip sample.
type HeartbeatResponse struct {
	Sequence     uint32
	EchoedTimeMs uint64
	ServerTick   Tick
}

func (HeartbeatResponse) Type() wire.MessageType { return wire.TypeHeartbeatResponse }

func (m HeartbeatResponse) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU32(m.Sequence)
	buf.WriteU64(m.EchoedTimeMs)
	buf.WriteU64(uint64(m.ServerTick))
}

func (m *HeartbeatResponse) UnmarshalPayload(buf *wire.Buffer) error {
	seq, err := buf.ReadU32()
	if err != nil {
		return err
	}
	m.Sequence = seq
	ts, err := buf.ReadU64()
	if err != nil {
		return err
	}
	m.EchoedTimeMs = ts
	tick, err := buf.ReadU64()
	if err != nil {
		return err
	}
	m.ServerTick = Tick(tick)
	return nil
}

// ServerState mirrors the server lifecycle state machine (C8).
type ServerState uint8

const (
	ServerInitializing ServerState = iota
	ServerLoading
	ServerReady
	ServerRunning
)

// MapSizeTier is the coarse map-size configuration surface knob.
type MapSizeTier uint8

const (
	MapSizeSmall MapSizeTier = iota
	MapSizeMedium
	MapSizeLarge
)

// ServerStatus is broadcast periodically so clients can render lifecycle
// and population information.
type ServerStatus struct {
	State          ServerState
	MapSize        MapSizeTier
	CurrentTick    Tick
	ConnectedCount uint8
}

func (ServerStatus) Type() wire.MessageType { return wire.TypeServerStatus }

func (m ServerStatus) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU8(uint8(m.State))
	buf.WriteU8(uint8(m.MapSize))
	buf.WriteU64(uint64(m.CurrentTick))
	buf.WriteU8(m.ConnectedCount)
}

func (m *ServerStatus) UnmarshalPayload(buf *wire.Buffer) error {
	state, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.State = ServerState(state)
	size, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.MapSize = MapSizeTier(size)
	tick, err := buf.ReadU64()
	if err != nil {
		return err
	}
	m.CurrentTick = Tick(tick)
	count, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.ConnectedCount = count
	return nil
}

// PlayerEntry is one row of a PlayerList broadcast.
type PlayerEntry struct {
	PlayerID PlayerID
	Name     string
	Status   uint8
}

// PlayerList enumerates every currently known player and status.
type PlayerList struct {
	Players []PlayerEntry
}

func (PlayerList) Type() wire.MessageType { return wire.TypePlayerList }

func (m PlayerList) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU16(uint16(len(m.Players)))
	for _, p := range m.Players {
		buf.WriteU8(uint8(p.PlayerID))
		buf.WriteString(p.Name)
		buf.WriteU8(p.Status)
	}
}

func (m *PlayerList) UnmarshalPayload(buf *wire.Buffer) error {
	count, err := buf.ReadU16()
	if err != nil {
		return err
	}
	entries := make([]PlayerEntry, 0, count)
	for i := uint16(0); i < count; i++ {
		pid, err := buf.ReadU8()
		if err != nil {
			return err
		}
		name, err := buf.ReadString()
		if err != nil {
			return err
		}
		status, err := buf.ReadU8()
		if err != nil {
			return err
		}
		entries = append(entries, PlayerEntry{PlayerID: PlayerID(pid), Name: name, Status: status})
	}
	m.Players = entries
	return nil
}

// Chat is a player-originated or server-originated chat line.
type Chat struct {
	From    PlayerID
	Message string
}

func (Chat) Type() wire.MessageType { return wire.TypeChat }

func (m Chat) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU8(uint8(m.From))
	buf.WriteString(m.Message)
}

func (m *Chat) UnmarshalPayload(buf *wire.Buffer) error {
	from, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.From = PlayerID(from)
	msg, err := buf.ReadString()
	if err != nil {
		return err
	}
	m.Message = msg
	return nil
}

// Kick tells a client it is being disconnected and why.
type Kick struct {
	Reason  KickReason
	Message string
}

func (Kick) Type() wire.MessageType { return wire.TypeKick }

func (m Kick) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU8(uint8(m.Reason))
	buf.WriteString(m.Message)
}

func (m *Kick) UnmarshalPayload(buf *wire.Buffer) error {
	r, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.Reason = KickReason(r)
	msg, err := buf.ReadString()
	if err != nil {
		return err
	}
	m.Message = msg
	return nil
}

// CursorUpdate is the payload reserved for the Unreliable channel (see
// DESIGN.md "Resolved Open Questions" #3): a best-effort, high-frequency
// presence/cursor update that is fine to drop. It is registered with the
// factory; neither the server nor the client sends or handles it.
type CursorUpdate struct {
	PlayerID PlayerID
	Position GridPosition
}

func (CursorUpdate) Type() wire.MessageType { return wire.TypeCursorUpdate }

func (m CursorUpdate) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU8(uint8(m.PlayerID))
	buf.WriteI16(m.Position.X)
	buf.WriteI16(m.Position.Y)
}

func (m *CursorUpdate) UnmarshalPayload(buf *wire.Buffer) error {
	pid, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.PlayerID = PlayerID(pid)
	x, err := buf.ReadI16()
	if err != nil {
		return err
	}
	y, err := buf.ReadI16()
	if err != nil {
		return err
	}
	m.Position = GridPosition{X: x, Y: y}
	return nil
}
