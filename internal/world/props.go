package world

import (
	"github.com/prismgrid/prismgrid/internal/beam"
	"github.com/prismgrid/prismgrid/internal/core/event"
	"github.com/prismgrid/prismgrid/internal/grid"
)

// Wall blocks movement and beams.
type Wall struct {
	base
}

func (w *Wall) Transparent() bool { return false }
func (w *Wall) BlocksBeam() bool  { return true }

// Reflector splits an incoming beam into its outgoing directions, turned
// by its rotation.
type Reflector struct {
	base
	dirs     []grid.Direction
	rotation int
}

func (r *Reflector) Transparent() bool { return false }

func (r *Reflector) Outgoing() []grid.Direction {
	out := make([]grid.Direction, len(r.dirs))
	for i, d := range r.dirs {
		out[i] = d.Rotate(r.rotation)
	}
	return out
}

func (r *Reflector) Rotation() int { return r.rotation }

// Rotate turns the reflector by quarter turns, clockwise for positive
// values, and marks the grid changed so beams rescan.
func (r *Reflector) Rotate(quarterTurns int) {
	r.rotation = ((r.rotation+quarterTurns)%4 + 4) % 4
	r.sim.index.Touch()
	event.Emit(r.sim.bus, Rotated{ID: r.id, Rotation: r.rotation})
}

// TypeChanger retags beams passing through it.
type TypeChanger struct {
	base
	to beam.Type
}

func (c *TypeChanger) Transparent() bool   { return false }
func (c *TypeChanger) ChangeTo() beam.Type { return c.to }

// Teleporter sends beams and arriving movers to its pair.
type Teleporter struct {
	base
	pair *Teleporter
}

func (t *Teleporter) Transparent() bool { return true }

func (t *Teleporter) Exit() (grid.Coord, bool) {
	if t.pair == nil {
		return grid.NoCell, false
	}
	return t.sim.index.Position(t.pair.id)
}

// Goal is where the player must stand for the puzzle to count as solved.
type Goal struct {
	base
}

func (g *Goal) Transparent() bool { return true }
