package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	buf := NewBuffer()
	payload := []byte{10, 20, 30, 40}
	WriteEnvelope(buf, TypeInput, payload, false)

	r := NewBufferFromBytes(buf.Raw())
	hdr, err := ParseEnvelope(r)
	require.NoError(t, err)
	require.True(t, hdr.IsValid())
	require.True(t, hdr.IsVersionCompatible())
	require.False(t, hdr.Compressed)
	require.Equal(t, TypeInput, hdr.Type)
	require.EqualValues(t, len(payload), hdr.PayloadLength)

	got, err := r.ReadBytes(int(hdr.PayloadLength))
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.True(t, r.AtEnd())
}

func TestEnvelopeCompressedFlagSurvivesRoundTrip(t *testing.T) {
	buf := NewBuffer()
	WriteEnvelope(buf, TypeStateUpdate, []byte{1, 2, 3}, true)

	r := NewBufferFromBytes(buf.Raw())
	hdr, err := ParseEnvelope(r)
	require.NoError(t, err)
	require.True(t, hdr.Compressed)
	require.Equal(t, ProtocolVersion, hdr.Version)
}

func TestConcatenatedEnvelopesAdvanceExactly(t *testing.T) {
	buf := NewBuffer()
	payloads := [][]byte{
		{1, 2, 3},
		{},
		{9, 9, 9, 9, 9},
	}
	for _, p := range payloads {
		WriteEnvelope(buf, TypeEvent, p, false)
	}

	r := NewBufferFromBytes(buf.Raw())
	for _, want := range payloads {
		start := r.ReadPosition()
		hdr, err := ParseEnvelope(r)
		require.NoError(t, err)
		got, err := r.ReadBytes(int(hdr.PayloadLength))
		require.NoError(t, err)
		require.Equal(t, want, got)
		require.Equal(t, HeaderSize+len(want), r.ReadPosition()-start)
	}
	require.True(t, r.AtEnd())
}

func TestUnknownTypeIsSkippableWithoutDesync(t *testing.T) {
	buf := NewBuffer()
	WriteEnvelope(buf, MessageType(9999), []byte{1, 2, 3, 4}, false)
	WriteEnvelope(buf, TypeHeartbeat, []byte{5}, false)

	r := NewBufferFromBytes(buf.Raw())
	hdr, err := ParseEnvelope(r)
	require.NoError(t, err)
	require.False(t, hdr.Type.IsSystemMessage() && hdr.Type.IsGameplayMessage())
	require.NoError(t, SkipPayload(r, hdr.PayloadLength))

	hdr2, err := ParseEnvelope(r)
	require.NoError(t, err)
	require.Equal(t, TypeHeartbeat, hdr2.Type)
}

func TestParseEnvelopeFailsOnShortHeader(t *testing.T) {
	r := NewBufferFromBytes([]byte{1, 2, 3})
	_, err := ParseEnvelope(r)
	require.ErrorIs(t, err, ErrEnvelopeInvalid)
}

func TestMessageTypePartitioning(t *testing.T) {
	require.True(t, TypeJoin.IsSystemMessage())
	require.False(t, TypeJoin.IsGameplayMessage())
	require.True(t, TypeInput.IsGameplayMessage())
	require.False(t, TypeInput.IsSystemMessage())
	require.False(t, reservedStart.IsSystemMessage())
	require.False(t, reservedStart.IsGameplayMessage())
}
