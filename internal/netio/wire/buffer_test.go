package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferRoundTripsEveryType(t *testing.T) {
	buf := NewBuffer()
	buf.WriteU8(0xAB)
	buf.WriteU16(0xBEEF)
	buf.WriteU32(0xDEADBEEF)
	buf.WriteU64(0x0102030405060708)
	buf.WriteI16(-1234)
	buf.WriteI32(-123456789)
	buf.WriteI64(-12345678901234)
	buf.WriteF32(3.14159)
	buf.WriteF64(2.718281828459045)
	buf.WriteBytes([]byte{1, 2, 3})
	buf.WriteString("zergcity")

	r := NewBufferFromBytes(buf.Raw())

	u8, err := r.ReadU8()
	require.NoError(t, err)
	require.Equal(t, uint8(0xAB), u8)

	u16, err := r.ReadU16()
	require.NoError(t, err)
	require.Equal(t, uint16(0xBEEF), u16)

	u32, err := r.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), u32)

	u64, err := r.ReadU64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), u64)

	i16, err := r.ReadI16()
	require.NoError(t, err)
	require.Equal(t, int16(-1234), i16)

	i32, err := r.ReadI32()
	require.NoError(t, err)
	require.Equal(t, int32(-123456789), i32)

	i64, err := r.ReadI64()
	require.NoError(t, err)
	require.Equal(t, int64(-12345678901234), i64)

	f32, err := r.ReadF32()
	require.NoError(t, err)
	require.InDelta(t, float32(3.14159), f32, 0.00001)

	f64, err := r.ReadF64()
	require.NoError(t, err)
	require.InDelta(t, 2.718281828459045, f64, 0.0000000000001)

	raw, err := r.ReadBytes(3)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, raw)

	s, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "zergcity", s)

	require.True(t, r.AtEnd())
}

func TestBufferReadPastEndFails(t *testing.T) {
	r := NewBufferFromBytes([]byte{1, 2})

	_, err := r.ReadU32()
	require.ErrorIs(t, err, ErrBufferUnderrun)
	// Cursor must stay well-defined (unchanged) after a failed read.
	require.Equal(t, 0, r.ReadPosition())

	v, err := r.ReadU16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x0201), v)
	require.True(t, r.AtEnd())
}

func TestBufferStringLengthExceedingRemainingFails(t *testing.T) {
	buf := NewBuffer()
	buf.WriteU32(1000) // declares 1000 bytes but none follow
	r := NewBufferFromBytes(buf.Raw())

	_, err := r.ReadString()
	require.ErrorIs(t, err, ErrStringTooLong)
}

func TestBufferClearAndReset(t *testing.T) {
	buf := NewBuffer()
	buf.WriteU8(1)
	buf.WriteU8(2)
	_, _ = NewBufferFromBytes(buf.Raw()).ReadU8()

	r := NewBufferFromBytes(buf.Raw())
	_, err := r.ReadU8()
	require.NoError(t, err)
	r.ResetRead()
	require.Equal(t, 0, r.ReadPosition())

	r.Clear()
	require.True(t, r.Empty())
	require.Equal(t, 0, r.Size())
}
