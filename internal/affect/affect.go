// Package affect tracks which beam segments currently touch which entities
// and turns those overlapping holds into affected/unaffected transitions.
package affect

import (
	"github.com/zyedidia/generic/mapset"

	"github.com/prismgrid/prismgrid/internal/core/ecs"
)

// HolderID identifies one holder of an effect, typically a beam segment.
type HolderID uint64

// Affectable is anything a beam can affect.
type Affectable interface {
	ID() ecs.EntityID
	// BecomeAffected runs on the 0 -> 1 transition.
	BecomeAffected()
	// BecomeUnaffected runs on the 1 -> 0 transition unless the entity is
	// permanent and has already been triggered.
	BecomeUnaffected()
	PermanentOnceTriggered() bool
}

type record struct {
	target    Affectable
	holders   mapset.Set[HolderID]
	triggered bool
}

// Manager keeps one record per affected entity. Not safe for concurrent use.
type Manager struct {
	records map[ecs.EntityID]*record
}

func NewManager() *Manager {
	return &Manager{records: make(map[ecs.EntityID]*record)}
}

// Hits records that holder now touches e. A repeat from the same holder is
// ignored. Returns true when this call made e affected.
func (m *Manager) Hits(e Affectable, holder HolderID) bool {
	r, ok := m.records[e.ID()]
	if !ok {
		r = &record{target: e, holders: mapset.New[HolderID]()}
		m.records[e.ID()] = r
	}
	if r.holders.Has(holder) {
		return false
	}
	r.holders.Put(holder)
	if r.holders.Size() != 1 {
		return false
	}
	if r.triggered && e.PermanentOnceTriggered() {
		// already latched on; no second BecomeAffected
		return false
	}
	r.triggered = true
	e.BecomeAffected()
	return true
}

// Stops records that holder no longer touches e. A stop without a matching
// hit is ignored. Returns true when this call made e unaffected.
func (m *Manager) Stops(e Affectable, holder HolderID) bool {
	r, ok := m.records[e.ID()]
	if !ok || !r.holders.Has(holder) {
		return false
	}
	r.holders.Remove(holder)
	if r.holders.Size() != 0 {
		return false
	}
	if e.PermanentOnceTriggered() {
		return false
	}
	r.triggered = false
	e.BecomeUnaffected()
	return true
}

// Count returns the number of holders currently touching id.
func (m *Manager) Count(id ecs.EntityID) int {
	r, ok := m.records[id]
	if !ok {
		return 0
	}
	return r.holders.Size()
}

// IsAffected reports whether id is held by at least one holder or is a
// permanent entity that has been triggered.
func (m *Manager) IsAffected(id ecs.EntityID) bool {
	r, ok := m.records[id]
	if !ok {
		return false
	}
	if r.holders.Size() > 0 {
		return true
	}
	return r.triggered && r.target.PermanentOnceTriggered()
}

// Forget drops id's record without firing callbacks. Used when the entity
// itself is destroyed.
func (m *Manager) Forget(id ecs.EntityID) {
	delete(m.records, id)
}

// Reset clears every record, including permanent latches, without firing
// callbacks.
func (m *Manager) Reset() {
	m.records = make(map[ecs.EntityID]*record)
}
