// Package validate implements the two-pass message validator (C7),
// grounded on
// _examples/original_source/include/sims3000/net/ConnectionValidator.h.
// It never panics on untrusted input: every failure is classified into a
// Result and counted, and the connection survives.
package validate

import (
	"zergcity/internal/netio/proto"
	"zergcity/internal/netio/wire"
)

// Result enumerates validation outcomes, carried verbatim from
// ConnectionValidator.h's ValidationResult enum.
type Result uint8

const (
	Valid Result = iota
	EmptyData
	MessageTooLarge
	InvalidEnvelope
	IncompatibleVersion
	UnknownMessageType
	PayloadTooLarge
	DeserializationFailed
	InvalidPlayerID
	BufferOverflow
	SecurityViolation
)

func (r Result) String() string {
	switch r {
	case Valid:
		return "Valid"
	case EmptyData:
		return "EmptyData"
	case MessageTooLarge:
		return "MessageTooLarge"
	case InvalidEnvelope:
		return "InvalidEnvelope"
	case IncompatibleVersion:
		return "IncompatibleVersion"
	case UnknownMessageType:
		return "UnknownMessageType"
	case PayloadTooLarge:
		return "PayloadTooLarge"
	case DeserializationFailed:
		return "DeserializationFailed"
	case InvalidPlayerID:
		return "InvalidPlayerID"
	case BufferOverflow:
		return "BufferOverflow"
	case SecurityViolation:
		return "SecurityViolation"
	default:
		return "Unknown"
	}
}

// MaxMessageSize is the hard cap on a full wire message (header + payload),
// per ConnectionValidator.h.
const MaxMessageSize = 65536

// MaxPayloadSize is MaxMessageSize minus the envelope header.
const MaxPayloadSize = MaxMessageSize - wire.HeaderSize

// Stats accumulates per-cause validation counters.
type Stats struct {
	TotalValidated        uint64
	ValidMessages          uint64
	DroppedMessages        uint64
	EmptyDataCount         uint64
	TooLargeCount          uint64
	InvalidEnvelopeCount   uint64
	VersionMismatchCount   uint64
	UnknownTypeCount       uint64
	PayloadTooLargeCount   uint64
	DeserializeFailCount   uint64
	InvalidPlayerIDCount   uint64
	BufferOverflowCount    uint64
	SecurityViolationCount uint64
}

func (s *Stats) record(r Result) {
	s.TotalValidated++
	if r == Valid {
		s.ValidMessages++
		return
	}
	s.DroppedMessages++
	switch r {
	case EmptyData:
		s.EmptyDataCount++
	case MessageTooLarge:
		s.TooLargeCount++
	case InvalidEnvelope:
		s.InvalidEnvelopeCount++
	case IncompatibleVersion:
		s.VersionMismatchCount++
	case UnknownMessageType:
		s.UnknownTypeCount++
	case PayloadTooLarge:
		s.PayloadTooLargeCount++
	case DeserializationFailed:
		s.DeserializeFailCount++
	case InvalidPlayerID:
		s.InvalidPlayerIDCount++
	case BufferOverflow:
		s.BufferOverflowCount++
	case SecurityViolation:
		s.SecurityViolationCount++
	}
}

// Context carries the per-message information a validator needs beyond the
// raw bytes: which peer sent it and what PlayerID (if any) is already bound
// to that connection.
type Context struct {
	Peer             proto.PeerID
	ExpectedPlayerID proto.PlayerID // 0 means "not yet bound, any is fine"
	CurrentTimeMs    uint64
}

// Output is what ValidateRaw/ValidatePlayerID/SafeDeserialize return.
type Output struct {
	Result       Result
	Header       wire.EnvelopeHeader
	ErrorMessage string
}

// Validator runs the two validation passes and accumulates Stats. It is not
// safe for concurrent use without external synchronization — per spec.md
// §5 it lives entirely on the main context.
type Validator struct {
	stats                   Stats
	securityLoggingEnabled bool
}

// New returns a Validator with security logging enabled by default.
func New() *Validator {
	return &Validator{securityLoggingEnabled: true}
}

// ValidateRaw runs the raw-validation pass: non-empty, within size limits,
// envelope parses, version compatible, type registered in factory.
func (v *Validator) ValidateRaw(data []byte, ctx Context, factory *wire.Factory) Output {
	if len(data) == 0 {
		v.stats.record(EmptyData)
		return Output{Result: EmptyData, ErrorMessage: "empty message"}
	}
	if len(data) > MaxMessageSize {
		v.stats.record(MessageTooLarge)
		return Output{Result: MessageTooLarge, ErrorMessage: "message exceeds max size"}
	}

	buf := wire.NewBufferFromBytes(data)
	hdr, err := wire.ParseEnvelope(buf)
	if err != nil || !hdr.IsValid() {
		v.stats.record(InvalidEnvelope)
		return Output{Result: InvalidEnvelope, ErrorMessage: "could not parse envelope"}
	}
	if !hdr.IsVersionCompatible() {
		v.stats.record(IncompatibleVersion)
		return Output{Result: IncompatibleVersion, Header: hdr, ErrorMessage: "protocol version mismatch"}
	}
	if int(hdr.PayloadLength) > MaxPayloadSize {
		v.stats.record(PayloadTooLarge)
		return Output{Result: PayloadTooLarge, Header: hdr, ErrorMessage: "payload exceeds declared maximum"}
	}
	if !factory.IsRegistered(hdr.Type) {
		v.stats.record(UnknownMessageType)
		return Output{Result: UnknownMessageType, Header: hdr, ErrorMessage: "unregistered message type"}
	}

	v.stats.record(Valid)
	return Output{Result: Valid, Header: hdr}
}

// ValidatePlayerID checks that a deserialized message's PlayerID is nonzero
// and, if the connection already has a bound PlayerID, that it matches.
func (v *Validator) ValidatePlayerID(messagePlayerID proto.PlayerID, ctx Context) Output {
	if messagePlayerID == proto.InvalidPlayerID {
		v.stats.record(InvalidPlayerID)
		return Output{Result: InvalidPlayerID, ErrorMessage: "playerId is zero"}
	}
	if ctx.ExpectedPlayerID != proto.InvalidPlayerID && messagePlayerID != ctx.ExpectedPlayerID {
		v.stats.record(InvalidPlayerID)
		return Output{Result: InvalidPlayerID, ErrorMessage: "playerId does not match connection"}
	}
	v.stats.record(Valid)
	return Output{Result: Valid}
}

// SafeDeserialize unmarshals payload into msg, converting a buffer
// underrun/overflow into a DeserializationFailed result instead of letting
// the error propagate raw, and additionally checks that the envelope's
// declared payload length matches what deserialization actually consumed.
func (v *Validator) SafeDeserialize(msg wire.Payload, payload []byte, declaredLength int) Output {
	buf := wire.NewBufferFromBytes(payload)
	if err := msg.UnmarshalPayload(buf); err != nil {
		v.stats.record(DeserializationFailed)
		return Output{Result: DeserializationFailed, ErrorMessage: err.Error()}
	}
	if buf.ReadPosition() != declaredLength {
		v.stats.record(PayloadTooLarge)
		return Output{Result: PayloadTooLarge, ErrorMessage: "declared length did not match consumed bytes"}
	}
	v.stats.record(Valid)
	return Output{Result: Valid}
}

// Stats returns the accumulated validation counters.
func (v *Validator) Stats() Stats { return v.stats }

// ResetStats zeros all accumulated counters.
func (v *Validator) ResetStats() { v.stats = Stats{} }

// SetSecurityLoggingEnabled toggles whether callers should log
// SecurityViolation-class failures at warning level.
func (v *Validator) SetSecurityLoggingEnabled(enabled bool) { v.securityLoggingEnabled = enabled }

// SecurityLoggingEnabled reports the current logging toggle state.
func (v *Validator) SecurityLoggingEnabled() bool { return v.securityLoggingEnabled }
