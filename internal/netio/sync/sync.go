// Package sync implements change detection and delta generation/
// application (C11), grounded on
// _examples/original_source/include/sims3000/sync/SyncSystem.h.
//
// The original source observes mutations through an EnTT registry's signal
// surface (on_construct/on_update/on_destroy). Design Notes §9 flags that
// mechanism as needing re-architecture outside a language with a mature
// signal/slot system and recommends an explicit "caller reports changes"
// mode. This package implements exactly that: MarkDirty/MarkComponentDirty
// are the entry points a caller (the simulation, sitting outside this
// core) invokes whenever it mutates an entity.
package sync

import (
	"sort"

	"zergcity/internal/netio/proto"
)

// Tracker accumulates the per-tick dirty map: EntityID -> {kind, mask}.
// Precedence rules (spec.md §3): an existing Created absorbs further
// Updated events; Destroyed overrides everything and clears the mask.
type Tracker struct {
	dirty map[proto.EntityID]dirtyEntry
	// noSyncComponents never participate in MarkComponentDirty, matching
	// "components declaring a no-sync policy are never subscribed."
	noSyncComponents map[uint32]bool
}

type dirtyEntry struct {
	kind proto.ChangeKind
	mask uint32
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		dirty:            make(map[proto.EntityID]dirtyEntry),
		noSyncComponents: make(map[uint32]bool),
	}
}

// SetComponentNoSync excludes componentBit from ever being recorded by
// MarkComponentDirty.
func (t *Tracker) SetComponentNoSync(componentBit uint32, noSync bool) {
	t.noSyncComponents[componentBit] = noSync
}

// MarkDirty records that entity was created, updated, or destroyed, with no
// component-level detail (used for whole-entity events, chiefly Destroyed).
func (t *Tracker) MarkDirty(entity proto.EntityID, kind proto.ChangeKind) {
	t.apply(entity, kind, 0)
}

// MarkComponentDirty records that one component (named by its bit position
// in the mask) changed on entity, folding in with whatever change is
// already recorded for it this tick.
func (t *Tracker) MarkComponentDirty(entity proto.EntityID, kind proto.ChangeKind, componentBit uint32) {
	if t.noSyncComponents[componentBit] {
		return
	}
	t.apply(entity, kind, uint32(1)<<componentBit)
}

func (t *Tracker) apply(entity proto.EntityID, kind proto.ChangeKind, maskBit uint32) {
	existing, ok := t.dirty[entity]
	if !ok {
		t.dirty[entity] = dirtyEntry{kind: kind, mask: maskBit}
		return
	}

	switch {
	case existing.kind == proto.ChangeDestroyed:
		// Destroyed dominates everything; nothing can un-destroy an entity
		// within the same tick.
		return
	case kind == proto.ChangeDestroyed:
		// Destroyed overrides everything and clears the mask.
		t.dirty[entity] = dirtyEntry{kind: proto.ChangeDestroyed, mask: 0}
	case existing.kind == proto.ChangeCreated:
		// Created absorbs further Updated events: stays Created, but still
		// accumulates which components were touched so a full serialize
		// can include them (Created payloads serialize every component
		// anyway, so the mask here is informational only).
		t.dirty[entity] = dirtyEntry{kind: proto.ChangeCreated, mask: existing.mask | maskBit}
	default:
		t.dirty[entity] = dirtyEntry{kind: proto.ChangeUpdated, mask: existing.mask | maskBit}
	}
}

// Flush clears the dirty map. Callers invoke this after a delta has been
// successfully produced and transmitted.
func (t *Tracker) Flush() {
	t.dirty = make(map[proto.EntityID]dirtyEntry)
}

// Len reports how many entities are currently dirty.
func (t *Tracker) Len() int { return len(t.dirty) }

// Entries returns a stable-ordered snapshot of the current dirty map
// (ascending EntityID within each kind), partitioned by kind (created,
// updated, destroyed) — the same partition StateUpdate.MarshalPayload
// expects, so the caller can go straight from Entries to building
// component bytes per entity.
func (t *Tracker) Entries() (created, updated, destroyed []proto.EntityID) {
	for id, e := range t.dirty {
		switch e.kind {
		case proto.ChangeCreated:
			created = append(created, id)
		case proto.ChangeUpdated:
			updated = append(updated, id)
		case proto.ChangeDestroyed:
			destroyed = append(destroyed, id)
		}
	}
	for _, ids := range [][]proto.EntityID{created, updated, destroyed} {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return created, updated, destroyed
}

// Mask returns the component bitmask recorded for entity, or 0 if it is
// not dirty or has no per-component detail.
func (t *Tracker) Mask(entity proto.EntityID) uint32 {
	return t.dirty[entity].mask
}

// ComponentSerializer produces the wire bytes for one entity's components,
// given the bitmask of components to include (all bits for Created, only
// the dirty bits for Updated). This is the narrow interface into the
// passive ECS collaborator that spec.md §1 places outside this core.
type ComponentSerializer func(entity proto.EntityID, mask uint32) []byte

// GenerateDelta builds a StateUpdate for tick from the current dirty map,
// using serialize to produce each entity's component bytes. It does not
// flush the tracker; callers call Flush once they have successfully
// transmitted the result, per spec.md §4.11.
func (t *Tracker) GenerateDelta(tick proto.Tick, serialize ComponentSerializer) proto.StateUpdate {
	created, updated, destroyed := t.Entries()

	changes := make([]proto.EntityChange, 0, len(created)+len(updated)+len(destroyed))
	for _, id := range created {
		mask := t.dirty[id].mask
		changes = append(changes, proto.EntityChange{
			Entity: id, Kind: proto.ChangeCreated, ComponentMask: mask,
			Components: serialize(id, mask),
		})
	}
	for _, id := range updated {
		mask := t.dirty[id].mask
		changes = append(changes, proto.EntityChange{
			Entity: id, Kind: proto.ChangeUpdated, ComponentMask: mask,
			Components: serialize(id, mask),
		})
	}
	for _, id := range destroyed {
		changes = append(changes, proto.EntityChange{Entity: id, Kind: proto.ChangeDestroyed})
	}

	return proto.StateUpdate{Tick: tick, Changes: changes}
}

// ApplyResult mirrors SyncSystem.h's DeltaApplicationResult.
type ApplyResult uint8

const (
	Applied ApplyResult = iota
	Duplicate
	OutOfOrder
	Error
)

// ComponentApplier installs the bytes for one entity's changed components
// into the receiving side's entity storage. created reports whether this
// is a brand-new entity (so the applier knows whether to allocate it).
type ComponentApplier func(entity proto.EntityID, mask uint32, data []byte, created bool) error

// EntityDestroyer removes an entity from the receiving side's storage.
type EntityDestroyer func(entity proto.EntityID) error

// Applier tracks the last-applied tick on the receiving side and gates
// delta application accordingly.
type Applier struct {
	lastTick    proto.Tick
	hasApplied  bool
	apply       ComponentApplier
	destroy     EntityDestroyer
}

// NewApplier returns an Applier with no tick applied yet.
func NewApplier(apply ComponentApplier, destroy EntityDestroyer) *Applier {
	return &Applier{apply: apply, destroy: destroy}
}

// LastTick returns the highest tick successfully applied so far.
func (a *Applier) LastTick() proto.Tick { return a.lastTick }

// ApplyDelta applies msg if its tick is strictly newer than the last one
// applied. Processing order is creates, then updates, then destroys, so
// updates can refer to entities created in the same delta.
func (a *Applier) ApplyDelta(msg proto.StateUpdate) ApplyResult {
	if a.hasApplied {
		if msg.Tick == a.lastTick {
			return Duplicate
		}
		if msg.Tick < a.lastTick {
			return OutOfOrder
		}
	}

	var creates, updates, destroys []proto.EntityChange
	for _, c := range msg.Changes {
		switch c.Kind {
		case proto.ChangeCreated:
			creates = append(creates, c)
		case proto.ChangeUpdated:
			updates = append(updates, c)
		case proto.ChangeDestroyed:
			destroys = append(destroys, c)
		}
	}

	for _, c := range creates {
		if err := a.apply(c.Entity, c.ComponentMask, c.Components, true); err != nil {
			return Error
		}
	}
	for _, c := range updates {
		if err := a.apply(c.Entity, c.ComponentMask, c.Components, false); err != nil {
			return Error
		}
	}
	for _, c := range destroys {
		if err := a.destroy(c.Entity); err != nil {
			return Error
		}
	}

	a.lastTick = msg.Tick
	a.hasApplied = true
	return Applied
}
