package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePayload struct {
	v uint32
}

func (f *fakePayload) Type() MessageType { return TypeHeartbeat }
func (f *fakePayload) MarshalPayload(buf *Buffer) {
	buf.WriteU32(f.v)
}
func (f *fakePayload) UnmarshalPayload(buf *Buffer) error {
	v, err := buf.ReadU32()
	if err != nil {
		return err
	}
	f.v = v
	return nil
}

func TestFactoryCreateAndRegistration(t *testing.T) {
	f := NewFactory()
	require.False(t, f.IsRegistered(TypeHeartbeat))
	require.Nil(t, f.Create(TypeHeartbeat))

	f.Register(TypeHeartbeat, func() Payload { return &fakePayload{} })
	require.True(t, f.IsRegistered(TypeHeartbeat))
	require.Equal(t, 1, f.RegisteredCount())

	p := f.Create(TypeHeartbeat)
	require.NotNil(t, p)
	_, ok := p.(*fakePayload)
	require.True(t, ok)

	require.Nil(t, f.Create(TypeJoin))
}

func TestFactoryRoundTripsRegisteredPayload(t *testing.T) {
	f := NewFactory()
	f.Register(TypeHeartbeat, func() Payload { return &fakePayload{} })

	original := &fakePayload{v: 42}
	buf := NewBuffer()
	original.MarshalPayload(buf)

	p := f.Create(original.Type())
	require.NoError(t, p.UnmarshalPayload(NewBufferFromBytes(buf.Raw())))
	require.Equal(t, original, p)
}
