package world

import (
	"github.com/prismgrid/prismgrid/internal/core/ecs"
	"github.com/prismgrid/prismgrid/internal/core/event"
	"github.com/prismgrid/prismgrid/internal/grid"
	"github.com/prismgrid/prismgrid/internal/turn"
)

// Player moves one cell per Player turn in the input direction.
type Player struct {
	mover
	facing    grid.Direction
	secondary turn.Category
	hasSec    bool
}

func (p *Player) Transparent() bool { return false }

func (p *Player) Primary() turn.Category { return turn.Player }

func (p *Player) Secondary() (turn.Category, bool) { return p.secondary, p.hasSec }

func (p *Player) Facing() grid.Direction { return p.facing }

func (p *Player) BeginTurn(t turn.Turn) {
	s := p.sim
	if !t.HasDirection || t.Category != turn.Player {
		s.sched.CompleteTurn(p.id)
		return
	}
	p.facing = t.Direction
	dest := p.pos.Step(t.Direction)
	if !s.index.CanEnter(dest, p.id) {
		s.bump(p.id, dest)
		s.sched.CompleteTurn(p.id)
		return
	}
	if !p.moveTo(dest, func() { s.sched.CompleteTurn(p.id) }) {
		s.sched.CompleteTurn(p.id)
	}
}

func (p *Player) ForceEnd() {
	p.snap()
}

// bump handles a blocked move: reflectors turn a quarter when pushed.
func (s *Simulation) bump(id ecs.EntityID, at grid.Coord) {
	event.Emit(s.bus, Bumped{ID: id, At: at})
	for _, o := range s.index.EntitiesAt(at) {
		if r, ok := o.(*Reflector); ok {
			r.Rotate(1)
		}
	}
}
