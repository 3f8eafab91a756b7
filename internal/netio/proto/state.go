package proto

import "zergcity/internal/netio/wire"

// ChangeKind classifies how an entity changed within one delta. Numeric
// values are carried from the original source's ChangeType enum.
type ChangeKind uint8

const (
	ChangeCreated   ChangeKind = 1
	ChangeUpdated   ChangeKind = 2
	ChangeDestroyed ChangeKind = 3
)

// MaxComponentTypes bounds the component bitmask to 32 bits, per spec.md §6
// ("max sync'd component types 32, one bit per component in the mask").
const MaxComponentTypes = 32

// EntityChange is one entity's row within a StateUpdate delta.
// ComponentMask is only meaningful for Updated (which components changed)
// and Created (which components were serialized); it is always zero for
// Destroyed.
type EntityChange struct {
	Entity        EntityID
	Kind          ChangeKind
	ComponentMask uint32
	// Components holds the serialized bytes for Created (all syncable
	// components) or Updated (only the components named in the mask)
	// entities. Empty for Destroyed.
	Components []byte
}

// StateUpdate is the tick-stamped delta broadcast produced by the change
// detector (C11). Entities are encoded creates-first, then updates, then
// destroys, matching the required application order.
type StateUpdate struct {
	Tick    Tick
	Changes []EntityChange
}

func (StateUpdate) Type() wire.MessageType { return wire.TypeStateUpdate }

func (m StateUpdate) MarshalPayload(buf *wire.Buffer) {
	buf.WriteU64(uint64(m.Tick))

	var created, updated, destroyed []EntityChange
	for _, c := range m.Changes {
		switch c.Kind {
		case ChangeCreated:
			created = append(created, c)
		case ChangeUpdated:
			updated = append(updated, c)
		case ChangeDestroyed:
			destroyed = append(destroyed, c)
		}
	}

	buf.WriteU32(uint32(len(created)))
	buf.WriteU32(uint32(len(updated)))
	buf.WriteU32(uint32(len(destroyed)))

	for _, group := range [][]EntityChange{created, updated, destroyed} {
		for _, c := range group {
			buf.WriteU32(uint32(c.Entity))
			buf.WriteU8(uint8(c.Kind))
			buf.WriteU32(c.ComponentMask)
			buf.WriteU32(uint32(len(c.Components)))
			buf.WriteBytes(c.Components)
		}
	}
}

func (m *StateUpdate) UnmarshalPayload(buf *wire.Buffer) error {
	tick, err := buf.ReadU64()
	if err != nil {
		return err
	}
	m.Tick = Tick(tick)

	createdCount, err := buf.ReadU32()
	if err != nil {
		return err
	}
	updatedCount, err := buf.ReadU32()
	if err != nil {
		return err
	}
	destroyedCount, err := buf.ReadU32()
	if err != nil {
		return err
	}

	total := int(createdCount) + int(updatedCount) + int(destroyedCount)
	changes := make([]EntityChange, 0, total)
	for i := 0; i < total; i++ {
		entity, err := buf.ReadU32()
		if err != nil {
			return err
		}
		kind, err := buf.ReadU8()
		if err != nil {
			return err
		}
		mask, err := buf.ReadU32()
		if err != nil {
			return err
		}
		n, err := buf.ReadU32()
		if err != nil {
			return err
		}
		comps, err := buf.ReadBytes(int(n))
		if err != nil {
			return err
		}
		var compsCopy []byte
		if len(comps) > 0 {
			compsCopy = make([]byte, len(comps))
			copy(compsCopy, comps)
		}
		changes = append(changes, EntityChange{
			Entity:        EntityID(entity),
			Kind:          ChangeKind(kind),
			ComponentMask: mask,
			Components:    compsCopy,
		})
	}
	m.Changes = changes
	return nil
}
