package world

import (
	"github.com/prismgrid/prismgrid/internal/beam"
	"github.com/prismgrid/prismgrid/internal/core/event"
	"github.com/prismgrid/prismgrid/internal/grid"
	"github.com/prismgrid/prismgrid/internal/turn"
)

// Emitter is a fixed beam source. It acts on World turns, where a pulsing
// emitter toggles itself every pulse turns.
type Emitter struct {
	base
	cell      grid.Coord
	facing    grid.Direction
	beamType  beam.Type
	enabled   bool
	pulse     int
	turns     int
	secondary turn.Category
	hasSec    bool
	beam      *beam.Beam
}

func (e *Emitter) Transparent() bool { return false }
func (e *Emitter) BlocksBeam() bool  { return true }
func (e *Emitter) Enabled() bool     { return e.enabled }

func (e *Emitter) Primary() turn.Category { return turn.World }

func (e *Emitter) Secondary() (turn.Category, bool) { return e.secondary, e.hasSec }

func (e *Emitter) BeginTurn(t turn.Turn) {
	e.turns++
	if e.pulse > 0 && e.turns%e.pulse == 0 {
		e.Toggle()
	}
	e.sim.sched.CompleteTurn(e.id)
}

func (e *Emitter) ForceEnd() {}

// Toggle switches the emitter on or off. The beam follows on the next
// rescan.
func (e *Emitter) Toggle() {
	e.enabled = !e.enabled
	event.Emit(e.sim.bus, Toggled{ID: e.id, Enabled: e.enabled})
}

func (e *Emitter) Beam() *beam.Beam { return e.beam }

func (e *Emitter) Source() beam.Source {
	return beam.Source{
		Origin:    e.sim.index.WorldPos(e.cell),
		Direction: e.facing,
		Type:      e.beamType,
		Enabled:   e.enabled,
	}
}
