package proto

import "zergcity/internal/netio/wire"

// InputKind enumerates the player-issued commands this core understands.
// The simulation decides what each kind actually does; this core only
// carries, validates, and rate-limits them.
type InputKind uint8

const (
	InputPlaceBuilding InputKind = iota
	InputDemolish
	InputZone
	InputBuildRoad
	InputBuildUtility
	InputSetTax
	InputTrade
	InputPause
	InputResume
	InputChatCommand
)

// ActionCategory groups InputKinds for rate limiting (C6). Every InputKind
// maps to exactly one category via Category().
type ActionCategory uint8

const (
	CategoryBuilding ActionCategory = iota
	CategoryZoning
	CategoryInfrastructure
	CategoryEconomy
	CategoryGameControl
)

// Category returns the rate-limit bucket this input kind consumes from.
func (k InputKind) Category() ActionCategory {
	switch k {
	case InputPlaceBuilding, InputDemolish:
		return CategoryBuilding
	case InputZone:
		return CategoryZoning
	case InputBuildRoad, InputBuildUtility:
		return CategoryInfrastructure
	case InputSetTax, InputTrade:
		return CategoryEconomy
	default:
		return CategoryGameControl
	}
}

// InputSerializedSize is the fixed wire size of an Input payload, per
// spec.md §6: tick(8)+playerId(1)+type(1)+sequence(4)+targetX(2)+targetY(2)+
// param1(4)+param2(4)+value(4) = 30 bytes.
const InputSerializedSize = 30

// Input is a player-issued command. It is always exactly InputSerializedSize
// bytes on the wire.
type Input struct {
	Tick       Tick
	PlayerID   PlayerID
	Kind       InputKind
	Sequence   uint32
	TargetPos  GridPosition
	Param1     uint32
	Param2     uint32
	Value      int32
}

func (Input) Type() wire.MessageType { return wire.TypeInput }

func (m Input) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU64(uint64(m.Tick))
	buf.WriteU8(uint8(m.PlayerID))
	buf.WriteU8(uint8(m.Kind))
	buf.WriteU32(m.Sequence)
	buf.WriteI16(m.TargetPos.X)
	buf.WriteI16(m.TargetPos.Y)
	buf.WriteU32(m.Param1)
	buf.WriteU32(m.Param2)
	buf.WriteI32(m.Value)
}

func (m *Input) UnmarshalPayload(buf *wire.Buffer) error {
	tick, err := buf.ReadU64()
	if err != nil {
		return err
	}
	m.Tick = Tick(tick)
	pid, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.PlayerID = PlayerID(pid)
	kind, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.Kind = InputKind(kind)
	seq, err := buf.ReadU32()
	if err != nil {
		return err
	}
	m.Sequence = seq
	x, err := buf.ReadI16()
	if err != nil {
		return err
	}
	y, err := buf.ReadI16()
	if err != nil {
		return err
	}
	m.TargetPos = GridPosition{X: x, Y: y}
	p1, err := buf.ReadU32()
	if err != nil {
		return err
	}
	m.Param1 = p1
	p2, err := buf.ReadU32()
	if err != nil {
		return err
	}
	m.Param2 = p2
	v, err := buf.ReadI32()
	if err != nil {
		return err
	}
	m.Value = v
	return nil
}

// InputAck confirms or rejects a previously received Input by sequence
// number. ErrorCode is only meaningful when Accepted is false.
type InputAck struct {
	ServerTick Tick
	Sequence   uint32
	Accepted   bool
	ErrorCode  uint8
}

func (InputAck) Type() wire.MessageType { return wire.TypeInputAck }

func (m InputAck) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU64(uint64(m.ServerTick))
	buf.WriteU32(m.Sequence)
	accepted := uint8(0)
	if m.Accepted {
		accepted = 1
	}
	buf.WriteU8(accepted)
	buf.WriteU8(m.ErrorCode)
}

func (m *InputAck) UnmarshalPayload(buf *wire.Buffer) error {
	tick, err := buf.ReadU64()
	if err != nil {
		return err
	}
	m.ServerTick = Tick(tick)
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
	code, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.ErrorCode = code
	return nil
}

// RejectionReason classifies why an Input was refused.
type RejectionReason uint8

const (
	RejectionNone RejectionReason = iota
	RejectionOutOfBounds
	RejectionCannotAfford
	RejectionNotOwner
	RejectionInvalidTarget
	RejectionRuleViolation
)

// Rejection tells the client an Input was refused and why.
type Rejection struct {
	Sequence uint32
	Reason   RejectionReason
	Message  string
}

func (Rejection) Type() wire.MessageType { return wire.TypeRejection }

func (m Rejection) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU32(m.Sequence)
	buf.WriteU8(uint8(m.Reason))
	buf.WriteString(m.Message)
}

func (m *Rejection) UnmarshalPayload(buf *wire.Buffer) error {
	seq, err := buf.ReadU32()
	if err != nil {
		return err
	}
	m.Sequence = seq
	reason, err := buf.ReadU8()
	if err != nil {
		return err
	}
	m.Reason = RejectionReason(reason)
	msg, err := buf.ReadString()
	if err != nil {
		return err
	}
	m.Message = msg
	return nil
}
