package validate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"zergcity/internal/netio/proto"
	"zergcity/internal/netio/wire"
)

func TestValidateRawAcceptsWellFormedMessage(t *testing.T) {
	f := proto.NewFactory()
	buf := wire.NewBuffer()
	wire.WriteEnvelope(buf, wire.TypeHeartbeat, []byte{1, 2, 3, 4}, false)

	v := New()
	out := v.ValidateRaw(buf.Raw(), Context{}, f)
	require.Equal(t, Valid, out.Result)
	require.Equal(t, wire.TypeHeartbeat, out.Header.Type)
}

func TestValidateRawRejectsEmpty(t *testing.T) {
	v := New()
	out := v.ValidateRaw(nil, Context{}, proto.NewFactory())
	require.Equal(t, EmptyData, out.Result)
}

func TestValidateRawRejectsOversize(t *testing.T) {
	v := New()
	out := v.ValidateRaw(make([]byte, MaxMessageSize+1), Context{}, proto.NewFactory())
	require.Equal(t, MessageTooLarge, out.Result)
}

func TestValidateRawRejectsShortEnvelope(t *testing.T) {
	v := New()
	out := v.ValidateRaw([]byte{1, 2}, Context{}, proto.NewFactory())
	require.Equal(t, InvalidEnvelope, out.Result)
}

func TestValidateRawRejectsUnknownType(t *testing.T) {
	v := New()
	buf := wire.NewBuffer()
	wire.WriteEnvelope(buf, wire.MessageType(9999), nil, false)
	out := v.ValidateRaw(buf.Raw(), Context{}, proto.NewFactory())
	require.Equal(t, UnknownMessageType, out.Result)
}

func TestValidateRawRejectsIncompatibleVersion(t *testing.T) {
	v := New()
	buf := wire.NewBuffer()
	buf.WriteU8(99) // far future version
	buf.WriteU16(uint16(wire.TypeHeartbeat))
	buf.WriteU16(0)
	out := v.ValidateRaw(buf.Raw(), Context{}, proto.NewFactory())
	require.Equal(t, IncompatibleVersion, out.Result)
}

func TestValidatePlayerIDMismatchIsRejected(t *testing.T) {
	v := New()
	out := v.ValidatePlayerID(2, Context{ExpectedPlayerID: 1})
	require.Equal(t, InvalidPlayerID, out.Result)
}

func TestValidatePlayerIDZeroIsRejected(t *testing.T) {
	v := New()
	out := v.ValidatePlayerID(proto.InvalidPlayerID, Context{})
	require.Equal(t, InvalidPlayerID, out.Result)
}

func TestValidatePlayerIDMatchesAndUnboundPasses(t *testing.T) {
	v := New()
	require.Equal(t, Valid, v.ValidatePlayerID(1, Context{ExpectedPlayerID: 1}).Result)
	require.Equal(t, Valid, v.ValidatePlayerID(5, Context{}).Result)
}

func TestSafeDeserializeNeverPanicsOnTruncatedInput(t *testing.T) {
	v := New()
	msg := &proto.Input{}
	out := v.SafeDeserialize(msg, []byte{1, 2, 3}, 3)
	require.Equal(t, DeserializationFailed, out.Result)
}

func TestSafeDeserializeDetectsLengthMismatch(t *testing.T) {
	v := New()
	buf := wire.NewBuffer()
	(&proto.Heartbeat{Sequence: 1, ClientTimeMs: 2}).MarshalPayload(buf)

	msg := &proto.Heartbeat{}
	out := v.SafeDeserialize(msg, buf.Raw(), buf.Size()+1)
	require.Equal(t, PayloadTooLarge, out.Result)
}

func TestStatsAccumulateByCause(t *testing.T) {
	v := New()
	f := proto.NewFactory()
	v.ValidateRaw(nil, Context{}, f)
	v.ValidateRaw(make([]byte, MaxMessageSize+1), Context{}, f)

	buf := wire.NewBuffer()
	wire.WriteEnvelope(buf, wire.TypeHeartbeat, nil, false)
	v.ValidateRaw(buf.Raw(), Context{}, f)

	stats := v.Stats()
	require.EqualValues(t, 3, stats.TotalValidated)
	require.EqualValues(t, 1, stats.EmptyDataCount)
	require.EqualValues(t, 1, stats.TooLargeCount)
	require.EqualValues(t, 1, stats.ValidMessages)

	v.ResetStats()
	require.EqualValues(t, 0, v.Stats().TotalValidated)
}
