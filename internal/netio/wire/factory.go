package wire

// Payload is implemented by every typed message body. Payloads serialize
// and deserialize themselves against a Buffer; the envelope (type, length)
// is handled separately by WriteEnvelope/ParseEnvelope.
type Payload interface {
	Type() MessageType
	MarshalPayload(buf *Buffer)
	UnmarshalPayload(buf *Buffer) error
}

// Factory is a registry from MessageType to a constructor for the concrete
// payload type that handles it. Registration happens once at startup;
// Create is then called on the hot path to build a fresh, zeroed payload
// ready for UnmarshalPayload.
type Factory struct {
	ctors map[MessageType]func() Payload
}

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{ctors: make(map[MessageType]func() Payload)}
}

// Register associates a MessageType with a constructor. Re-registering a
// type overwrites the previous constructor.
func (f *Factory) Register(t MessageType, ctor func() Payload) {
	f.ctors[t] = ctor
}

// Create returns a fresh Payload for t, or nil if t is not registered.
func (f *Factory) Create(t MessageType) Payload {
	ctor, ok := f.ctors[t]
	if !ok {
		return nil
	}
	return ctor()
}

// IsRegistered reports whether t has a registered constructor.
func (f *Factory) IsRegistered(t MessageType) bool {
	_, ok := f.ctors[t]
	return ok
}

// RegisteredCount returns the number of distinct registered types.
func (f *Factory) RegisteredCount() int { return len(f.ctors) }
