package world

import (
	"github.com/prismgrid/prismgrid/internal/beam"
	"github.com/prismgrid/prismgrid/internal/core/event"
	"github.com/prismgrid/prismgrid/internal/grid"
	"github.com/prismgrid/prismgrid/internal/scripting"
	"github.com/prismgrid/prismgrid/internal/turn"
)

// Enemy patrols on Enemy turns and freezes while a matching beam holds it.
// An enemy with a facing also casts its own beam.
type Enemy struct {
	mover
	affinity  beam.Type
	blocks    bool
	permanent bool
	patrol    []grid.Direction
	step      int
	frozen    bool
	secondary turn.Category
	hasSec    bool

	beam     *beam.Beam
	facing   grid.Direction
	beamType beam.Type
}

func (e *Enemy) Transparent() bool            { return false }
func (e *Enemy) Affinity() beam.Type          { return e.affinity }
func (e *Enemy) BlocksBeam() bool             { return e.blocks }
func (e *Enemy) PermanentOnceTriggered() bool { return e.permanent }

// Frozen reports whether the enemy is currently affected.
func (e *Enemy) Frozen() bool { return e.frozen }

func (e *Enemy) BecomeAffected() {
	e.frozen = true
	event.Emit(e.sim.bus, Affected{ID: e.id, Name: e.name, Kind: e.kind, Affected: true})
}

func (e *Enemy) BecomeUnaffected() {
	e.frozen = false
	event.Emit(e.sim.bus, Affected{ID: e.id, Name: e.name, Kind: e.kind, Affected: false})
}

func (e *Enemy) Primary() turn.Category { return turn.Enemy }

func (e *Enemy) Secondary() (turn.Category, bool) { return e.secondary, e.hasSec }

func (e *Enemy) BeginTurn(t turn.Turn) {
	s := e.sim
	if e.frozen {
		s.sched.CompleteTurn(e.id)
		return
	}
	dir, ok := e.decide(t)
	if !ok {
		s.sched.CompleteTurn(e.id)
		return
	}
	e.step++
	dest := e.pos.Step(dir)
	if !s.index.CanEnter(dest, e.id) {
		s.sched.CompleteTurn(e.id)
		return
	}
	if !e.moveTo(dest, func() { s.sched.CompleteTurn(e.id) }) {
		s.sched.CompleteTurn(e.id)
	}
}

// decide asks the level script first and falls back to the patrol list.
func (e *Enemy) decide(t turn.Turn) (grid.Direction, bool) {
	s := e.sim
	if s.scripts != nil {
		player := s.player.Cell()
		dir, move, ok := s.scripts.EnemyMove(scripting.MoveContext{
			ID:       uint64(e.id),
			Name:     e.name,
			X:        e.pos.X,
			Z:        e.pos.Z,
			Turn:     t.Number,
			Step:     e.step,
			PlayerX:  player.X,
			PlayerZ:  player.Z,
			Affected: e.frozen,
		})
		if ok {
			return dir, move
		}
	}
	if len(e.patrol) == 0 {
		return grid.North, false
	}
	return e.patrol[e.step%len(e.patrol)], true
}

func (e *Enemy) ForceEnd() {
	e.snap()
}

func (e *Enemy) Beam() *beam.Beam { return e.beam }

func (e *Enemy) Source() beam.Source {
	return beam.Source{
		Origin:    e.sim.index.WorldPos(e.pos),
		Direction: e.facing,
		Type:      e.beamType,
		Enabled:   true,
	}
}
