package wire

import "errors"

// MessageType identifies the kind of payload that follows an envelope.
// The space is partitioned: 1-99 system, 100-199 gameplay, 200+ reserved.
type MessageType uint16

// System message types (1-99).
const (
	TypeInvalid MessageType = 0

	TypeJoin              MessageType = 1
	TypeJoinAccept        MessageType = 2
	TypeJoinReject        MessageType = 3
	TypeReconnect         MessageType = 4
	TypeDisconnect        MessageType = 5
	TypeHeartbeat         MessageType = 6
	TypeHeartbeatResponse MessageType = 7
	TypeServerStatus      MessageType = 8
	TypePlayerList        MessageType = 9
	TypeChat              MessageType = 10
	TypeKick              MessageType = 11

	TypeSnapshotStart MessageType = 20
	TypeSnapshotChunk MessageType = 21
	TypeSnapshotEnd   MessageType = 22

	TypeTerrainSyncRequest   MessageType = 30
	TypeTerrainSyncVerify    MessageType = 31
	TypeTerrainSyncComplete  MessageType = 32
	TypeTerrainModifyRequest MessageType = 33
	TypeTerrainModifyReply   MessageType = 34
	TypeTerrainModifiedEvent MessageType = 35

	TypeCursorUpdate MessageType = 40

	systemEnd MessageType = 99
)

// Gameplay message types (100-199).
const (
	TypeInput       MessageType = 100
	TypeInputAck    MessageType = 101
	TypeStateUpdate MessageType = 102
	TypeRejection   MessageType = 103
	TypeEvent       MessageType = 104

	TypeTradeOffer    MessageType = 110
	TypeTradeAccept   MessageType = 111
	TypeTradeReject   MessageType = 112
	TypeTradeComplete MessageType = 113

	gameplayEnd MessageType = 199
)

// reservedStart marks the beginning of the 200+ reserved range.
const reservedStart MessageType = 200

// IsSystemMessage reports whether t falls in the 1-99 system range.
func (t MessageType) IsSystemMessage() bool { return t >= 1 && t <= systemEnd }

// IsGameplayMessage reports whether t falls in the 100-199 gameplay range.
func (t MessageType) IsGameplayMessage() bool { return t >= TypeInput && t <= gameplayEnd }

const (
	// ProtocolVersion is the current protocol version this build speaks.
	ProtocolVersion uint8 = 1
	// MinProtocolVersion is the oldest version this build still accepts.
	MinProtocolVersion uint8 = 1
	// MaxPayloadSize is the largest payload (excluding the envelope) this
	// protocol allows.
	MaxPayloadSize = 65000
	// HeaderSize is the fixed envelope size on the wire: version + type + length.
	HeaderSize = 5
	// compressedFlag is OR'd into the version byte's high bit when the
	// payload that follows is LZ4-compressed, per the original source's
	// documented placement ("compression flag is stored in the message
	// header byte 0, high bit of protocol version").
	compressedFlag uint8 = 0x80
	versionMask    uint8 = 0x7F
)

// ErrEnvelopeInvalid is returned when an envelope cannot be parsed (not
// enough bytes for the fixed header).
var ErrEnvelopeInvalid = errors.New("wire: invalid envelope")

// EnvelopeHeader is the parsed form of the 5-byte wire header.
type EnvelopeHeader struct {
	Version       uint8
	Compressed    bool
	Type          MessageType
	PayloadLength uint16
}

// IsValid reports whether the header names a plausible message: the version
// component is non-zero and the declared payload length fits the protocol
// maximum.
func (h EnvelopeHeader) IsValid() bool {
	return h.Version != 0 && int(h.PayloadLength) <= MaxPayloadSize
}

// IsVersionCompatible reports whether this build can process a message
// carrying this header's version.
func (h EnvelopeHeader) IsVersionCompatible() bool {
	return h.Version >= MinProtocolVersion && h.Version <= ProtocolVersion
}

// WriteEnvelope writes the 5-byte envelope header followed by payload.
func WriteEnvelope(buf *Buffer, t MessageType, payload []byte, compressed bool) {
	v := ProtocolVersion
	if compressed {
		v |= compressedFlag
	}
	buf.WriteU8(v)
	buf.WriteU16(uint16(t))
	buf.WriteU16(uint16(len(payload)))
	buf.WriteBytes(payload)
}

// ParseEnvelope reads the fixed 5-byte header from buf. It never returns an
// error for a well-formed-but-unsupported header (wrong version, unknown
// type); callers inspect the returned header's validity themselves. It only
// returns ErrEnvelopeInvalid when fewer than HeaderSize bytes remain.
func ParseEnvelope(buf *Buffer) (EnvelopeHeader, error) {
	if buf.Remaining() < HeaderSize {
		return EnvelopeHeader{}, ErrEnvelopeInvalid
	}
	rawVersion, _ := buf.ReadU8()
	rawType, _ := buf.ReadU16()
	length, _ := buf.ReadU16()
	return EnvelopeHeader{
		Version:       rawVersion & versionMask,
		Compressed:    rawVersion&compressedFlag != 0,
		Type:          MessageType(rawType),
		PayloadLength: length,
	}, nil
}

// SkipPayload advances buf's read cursor past a payload of the declared
// length without interpreting it, so a malformed or unknown message does not
// desynchronize the remainder of a concatenated envelope stream.
func SkipPayload(buf *Buffer, length uint16) error {
	_, err := buf.ReadBytes(int(length))
	return err
}
