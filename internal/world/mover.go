package world

import (
	"go.uber.org/zap"

	"github.com/prismgrid/prismgrid/internal/core/ecs"
	"github.com/prismgrid/prismgrid/internal/core/event"
	"github.com/prismgrid/prismgrid/internal/data"
	"github.com/prismgrid/prismgrid/internal/grid"
	"github.com/prismgrid/prismgrid/internal/task"
)

type base struct {
	sim  *Simulation
	id   ecs.EntityID
	name string
	kind data.Kind
}

func (b *base) ID() ecs.EntityID { return b.id }
func (b *base) Name() string     { return b.name }
func (b *base) Kind() data.Kind  { return b.kind }

// mover is the shared one-cell movement of players and enemies. The
// destination is claimed for the whole animation and only committed to the
// index once the animation is done, so no query sees a half-moved entity.
type mover struct {
	base
	pos    grid.Coord
	dest   grid.Coord
	moving bool
}

// Cell returns the entity's committed cell.
func (m *mover) Cell() grid.Coord { return m.pos }

// Moving reports whether a move is animating.
func (m *mover) Moving() bool { return m.moving }

// moveTo claims dest and animates towards it. arrived runs once the move is
// committed by the animation finishing, not when it is force-ended.
func (m *mover) moveTo(dest grid.Coord, arrived func()) bool {
	s := m.sim
	if !s.index.Claim(dest, m.id) {
		return false
	}
	m.dest = dest
	m.moving = true

	done := s.animator.Move(m.id, s.index.WorldPos(m.pos), s.index.WorldPos(dest), s.moveDuration)
	s.tasks.Start(m.id, "move", func() task.Await {
		return task.On(done, func() task.Await {
			m.commit()
			arrived()
			return task.Finish()
		})
	}, nil)
	return true
}

func (m *mover) commit() {
	if !m.moving {
		return
	}
	s := m.sim
	m.moving = false
	from := m.pos
	if err := s.index.Move(m.id, from, m.dest); err != nil {
		s.log.Warn("move rejected by grid",
			zap.Uint64("entity", uint64(m.id)),
			zap.Stringer("from", from),
			zap.Stringer("to", m.dest),
			zap.Error(err))
		s.index.Release(m.dest, m.id)
		return
	}
	m.pos = m.dest
	event.Emit(s.bus, Moved{ID: m.id, Kind: m.kind, From: from, To: m.pos})
	s.landed(m)
}

// snap abandons the animation and commits the destination immediately.
func (m *mover) snap() {
	if !m.moving {
		return
	}
	m.sim.tasks.Cancel(m.id)
	m.sim.animator.Snap(m.id, m.sim.index.WorldPos(m.dest))
	m.commit()
}
