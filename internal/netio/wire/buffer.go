// Package wire implements the little-endian typed byte buffer, envelope
// framing, message factory, and sequence tracking that every other network
// package builds on.
package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrBufferUnderrun is returned by any Read* method when fewer bytes remain
// than the value being read requires. It is a recoverable condition, not a
// corruption signal: callers classify it (see internal/netio/validate) and
// drop the offending message without tearing down the connection.
var ErrBufferUnderrun = errors.New("wire: buffer underrun")

// ErrStringTooLong is returned when a length-prefixed string declares a
// length that exceeds the bytes remaining in the buffer.
var ErrStringTooLong = errors.New("wire: string length exceeds remaining bytes")

// Buffer is a growable, position-tracked byte container. Writes always
// append to the end; reads advance an internal cursor and fail predictably
// on underrun rather than panicking, so untrusted input can never crash a
// caller that reads it.
type Buffer struct {
	data   []byte
	readAt int
}

// NewBuffer returns an empty, write-ready Buffer.
func NewBuffer() *Buffer {
	return &Buffer{data: make([]byte, 0, 64)}
}

// NewBufferFromBytes wraps an existing byte slice for reading. The slice is
// used directly, not copied; callers must not mutate it concurrently.
func NewBufferFromBytes(b []byte) *Buffer {
	return &Buffer{data: b}
}

// Reserve grows the buffer's backing capacity to at least n bytes without
// changing its length.
func (b *Buffer) Reserve(n int) {
	if cap(b.data) >= n {
		return
	}
	grown := make([]byte, len(b.data), n)
	copy(grown, b.data)
	b.data = grown
}

// Size returns the number of bytes written to the buffer.
func (b *Buffer) Size() int { return len(b.data) }

// ReadPosition returns the current read cursor offset.
func (b *Buffer) ReadPosition() int { return b.readAt }

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int { return len(b.data) - b.readAt }

// AtEnd reports whether the read cursor has consumed the whole buffer.
func (b *Buffer) AtEnd() bool { return b.readAt >= len(b.data) }

// Empty reports whether the buffer holds no data at all.
func (b *Buffer) Empty() bool { return len(b.data) == 0 }

// ResetRead rewinds the read cursor to the start without discarding data.
func (b *Buffer) ResetRead() { b.readAt = 0 }

// Clear discards all data and resets the read cursor.
func (b *Buffer) Clear() {
	b.data = b.data[:0]
	b.readAt = 0
}

// Raw returns the full underlying byte slice. Callers must not retain it
// across further writes, which may reallocate.
func (b *Buffer) Raw() []byte { return b.data }

// Bytes is an alias of Raw kept for callers that prefer the stdlib-style name.
func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) requireRemaining(n int) error {
	if b.Remaining() < n {
		return ErrBufferUnderrun
	}
	return nil
}

// WriteU8 appends an unsigned 8-bit integer.
func (b *Buffer) WriteU8(v uint8) { b.data = append(b.data, v) }

// WriteU16 appends a little-endian unsigned 16-bit integer.
func (b *Buffer) WriteU16(v uint16) {
	b.data = binary.LittleEndian.AppendUint16(b.data, v)
}

// WriteU32 appends a little-endian unsigned 32-bit integer.
func (b *Buffer) WriteU32(v uint32) {
	b.data = binary.LittleEndian.AppendUint32(b.data, v)
}

// WriteU64 appends a little-endian unsigned 64-bit integer.
func (b *Buffer) WriteU64(v uint64) {
	b.data = binary.LittleEndian.AppendUint64(b.data, v)
}

// WriteI16 appends a little-endian signed 16-bit integer.
func (b *Buffer) WriteI16(v int16) { b.WriteU16(uint16(v)) }

// WriteI32 appends a little-endian signed 32-bit integer.
func (b *Buffer) WriteI32(v int32) { b.WriteU32(uint32(v)) }

// WriteI64 appends a little-endian signed 64-bit integer.
func (b *Buffer) WriteI64(v int64) { b.WriteU64(uint64(v)) }

// WriteF32 appends a little-endian IEEE-754 32-bit float.
func (b *Buffer) WriteF32(v float32) { b.WriteU32(math.Float32bits(v)) }

// WriteF64 appends a little-endian IEEE-754 64-bit float.
func (b *Buffer) WriteF64(v float64) { b.WriteU64(math.Float64bits(v)) }

// WriteBytes appends a raw byte range with no length prefix.
func (b *Buffer) WriteBytes(v []byte) { b.data = append(b.data, v...) }

// WriteString appends a 32-bit length-prefixed UTF-8 string.
func (b *Buffer) WriteString(s string) {
	b.WriteU32(uint32(len(s)))
	b.data = append(b.data, s...)
}

// ReadU8 reads an unsigned 8-bit integer.
func (b *Buffer) ReadU8() (uint8, error) {
	if err := b.requireRemaining(1); err != nil {
		return 0, err
	}
	v := b.data[b.readAt]
	b.readAt++
	return v, nil
}

// ReadU16 reads a little-endian unsigned 16-bit integer.
func (b *Buffer) ReadU16() (uint16, error) {
	if err := b.requireRemaining(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(b.data[b.readAt:])
	b.readAt += 2
	return v, nil
}

// ReadU32 reads a little-endian unsigned 32-bit integer.
func (b *Buffer) ReadU32() (uint32, error) {
	if err := b.requireRemaining(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(b.data[b.readAt:])
	b.readAt += 4
	return v, nil
}

// ReadU64 reads a little-endian unsigned 64-bit integer.
func (b *Buffer) ReadU64() (uint64, error) {
	if err := b.requireRemaining(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(b.data[b.readAt:])
	b.readAt += 8
	return v, nil
}

// ReadI16 reads a little-endian signed 16-bit integer.
func (b *Buffer) ReadI16() (int16, error) {
	v, err := b.ReadU16()
	return int16(v), err
}

// ReadI32 reads a little-endian signed 32-bit integer.
func (b *Buffer) ReadI32() (int32, error) {
	v, err := b.ReadU32()
	return int32(v), err
}

// ReadI64 reads a little-endian signed 64-bit integer.
func (b *Buffer) ReadI64() (int64, error) {
	v, err := b.ReadU64()
	return int64(v), err
}

// ReadF32 reads a little-endian IEEE-754 32-bit float.
func (b *Buffer) ReadF32() (float32, error) {
	v, err := b.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadF64 reads a little-endian IEEE-754 64-bit float.
func (b *Buffer) ReadF64() (float64, error) {
	v, err := b.ReadU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadBytes reads exactly n raw bytes.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	if err := b.requireRemaining(n); err != nil {
		return nil, err
	}
	v := b.data[b.readAt : b.readAt+n]
	b.readAt += n
	return v, nil
}

// ReadString reads a 32-bit length-prefixed UTF-8 string. A declared length
// that exceeds the remaining bytes fails with ErrStringTooLong rather than
// allocating or reading out of bounds.
func (b *Buffer) ReadString() (string, error) {
	n, err := b.ReadU32()
	if err != nil {
		return "", err
	}
	if int(n) > b.Remaining() {
		return "", ErrStringTooLong
	}
	v, err := b.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(v), nil
}
