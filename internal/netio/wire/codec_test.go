package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type blobPayload struct {
	data string
}

func (p *blobPayload) Type() MessageType { return TypeChat }
func (p *blobPayload) MarshalPayload(buf *Buffer) {
	buf.WriteString(p.data)
}
func (p *blobPayload) UnmarshalPayload(buf *Buffer) error {
	s, err := buf.ReadString()
	if err != nil {
		return err
	}
	p.data = s
	return nil
}

func TestEncodeDecodeSmallPayloadIsNotCompressed(t *testing.T) {
	f := NewFactory()
	f.Register(TypeChat, func() Payload { return &blobPayload{} })

	original := &blobPayload{data: "hi"}
	encoded := Encode(original)

	hdr, p, err := Decode(encoded, f)
	require.NoError(t, err)
	require.False(t, hdr.Compressed)
	require.Equal(t, original.data, p.(*blobPayload).data)
}

func TestEncodeDecodeLargeRepetitivePayloadIsCompressed(t *testing.T) {
	f := NewFactory()
	f.Register(TypeChat, func() Payload { return &blobPayload{} })

	original := &blobPayload{data: strings.Repeat("zergcity", 2000)}
	encoded := Encode(original)

	hdr, p, err := Decode(encoded, f)
	require.NoError(t, err)
	require.True(t, hdr.Compressed)
	require.Equal(t, original.data, p.(*blobPayload).data)
	require.Less(t, len(encoded), len(original.data))
}

func TestDecodeRejectsUnregisteredType(t *testing.T) {
	f := NewFactory()
	original := &blobPayload{data: "x"}
	encoded := Encode(original)

	_, _, err := Decode(encoded, f)
	require.Error(t, err)
}

func TestDecodeRejectsTruncatedData(t *testing.T) {
	f := NewFactory()
	f.Register(TypeChat, func() Payload { return &blobPayload{} })

	encoded := Encode(&blobPayload{data: "hello"})
	_, _, err := Decode(encoded[:HeaderSize+1], f)
	require.Error(t, err)
}
