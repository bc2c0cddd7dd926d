// Package grid maps world positions onto discrete cells and tracks which
// entities occupy them.
package grid

import (
	"errors"
	"math"
	"sort"

	"github.com/zyedidia/generic/mapset"

	"github.com/prismgrid/prismgrid/internal/core/ecs"
)

var (
	ErrOutOfBounds       = errors.New("cell out of bounds")
	ErrNotRegistered     = errors.New("entity not registered")
	ErrAlreadyRegistered = errors.New("entity already registered")
	ErrCellBlocked       = errors.New("cell already holds a blocking occupant")
	ErrStalePosition     = errors.New("entity is not indexed at the source cell")
)

const roundJitter = 1e-7

// Occupant is anything the index can place in a cell. Transparent occupants
// may share a cell with each other and with one blocking occupant.
type Occupant interface {
	ID() ecs.EntityID
	Transparent() bool
}

type cell struct {
	occupants mapset.Set[ecs.EntityID]
	blocker   ecs.EntityID
}

// Index is the grid occupancy index. Accessed only from the simulation
// goroutine; the turn scheduler's join barrier keeps mutation serialized.
type Index struct {
	width    int
	height   int
	cellSize float64

	cells    map[Coord]*cell
	entities map[ecs.EntityID]Occupant
	where    map[ecs.EntityID]Coord
	claims   map[Coord]ecs.EntityID

	version uint64
}

// NewIndex builds an index for a width x height grid with cells of the
// given world size. Non-positive cell sizes fall back to 1.
func NewIndex(width, height int, cellSize float64) *Index {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Index{
		width:    width,
		height:   height,
		cellSize: cellSize,
		cells:    make(map[Coord]*cell),
		entities: make(map[ecs.EntityID]Occupant),
		where:    make(map[ecs.EntityID]Coord),
		claims:   make(map[Coord]ecs.EntityID),
	}
}

func (g *Index) Width() int        { return g.width }
func (g *Index) Height() int       { return g.height }
func (g *Index) CellSize() float64 { return g.cellSize }

// Version increments on every structural change. Beam sources compare it to
// skip rescans when nothing moved.
func (g *Index) Version() uint64 { return g.version }

// Touch bumps the version without moving anything, for changes the index
// cannot see (a reflector rotating in place).
func (g *Index) Touch() { g.version++ }

// Contains reports whether c lies inside the grid bounds.
func (g *Index) Contains(c Coord) bool {
	return c.X >= 0 && c.X < g.width && c.Z >= 0 && c.Z < g.height
}

// CellOf rounds a world position to its cell, half away from zero on the
// scaled coordinate. The result may lie outside the grid.
func (g *Index) CellOf(pos Vec) Coord {
	return Coord{
		X: roundScaled(pos.X, g.cellSize),
		Z: roundScaled(pos.Z, g.cellSize),
	}
}

// Lookup is CellOf that returns NoCell outside the grid.
func (g *Index) Lookup(pos Vec) (Coord, bool) {
	c := g.CellOf(pos)
	if !g.Contains(c) {
		return NoCell, false
	}
	return c, true
}

func roundScaled(v, size float64) int {
	scaled := v / size
	// values a hair off a half boundary snap onto it so jitter cannot flip
	// the rounding direction
	frac := scaled - math.Trunc(scaled)
	if math.Abs(math.Abs(frac)-0.5) < roundJitter {
		scaled = math.Trunc(scaled) + math.Copysign(0.5, scaled)
	}
	return int(math.Round(scaled))
}

// WorldPos returns the world-space centre of c.
func (g *Index) WorldPos(c Coord) Vec {
	return Vec{X: float64(c.X) * g.cellSize, Z: float64(c.Z) * g.cellSize}
}

// Register indexes o at c.
func (g *Index) Register(o Occupant, c Coord) error {
	id := o.ID()
	if _, ok := g.entities[id]; ok {
		return ErrAlreadyRegistered
	}
	if !g.Contains(c) {
		return ErrOutOfBounds
	}
	if !o.Transparent() && g.blockerAt(c) != 0 {
		return ErrCellBlocked
	}
	g.entities[id] = o
	g.insert(id, o, c)
	g.version++
	return nil
}

// Deregister removes id from the index and drops any claim it holds.
// Unknown IDs are ignored.
func (g *Index) Deregister(id ecs.EntityID) {
	c, ok := g.where[id]
	if !ok {
		return
	}
	g.remove(id, c)
	delete(g.entities, id)
	for cc, owner := range g.claims {
		if owner == id {
			delete(g.claims, cc)
		}
	}
	g.version++
}

// Position returns the cell id is indexed at.
func (g *Index) Position(id ecs.EntityID) (Coord, bool) {
	c, ok := g.where[id]
	return c, ok
}

// EntitiesAt returns the occupants of c in ascending ID order. Unknown or
// out-of-bounds cells yield an empty slice.
func (g *Index) EntitiesAt(c Coord) []Occupant {
	cl := g.cells[c]
	if cl == nil || cl.occupants.Size() == 0 {
		return nil
	}
	ids := make([]ecs.EntityID, 0, cl.occupants.Size())
	cl.occupants.Each(func(id ecs.EntityID) {
		ids = append(ids, id)
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Occupant, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.entities[id])
	}
	return out
}

// IsTraversable is true unless c is out of bounds or holds a blocking
// occupant.
func (g *Index) IsTraversable(c Coord) bool {
	if !g.Contains(c) {
		return false
	}
	return g.blockerAt(c) == 0
}

// CanEnter is IsTraversable that also respects destination claims made by
// other movers in the same turn category.
func (g *Index) CanEnter(c Coord, id ecs.EntityID) bool {
	if !g.IsTraversable(c) {
		return false
	}
	owner, claimed := g.claims[c]
	return !claimed || owner == id
}

// Availability reports the occupancy tag of c.
func (g *Index) Availability(c Coord) Availability {
	if g.blockerAt(c) != 0 {
		return Occupied
	}
	if _, ok := g.claims[c]; ok {
		return Claimed
	}
	return Empty
}

// Claim reserves c for an in-flight move by id. It fails when c cannot be
// entered by id.
func (g *Index) Claim(c Coord, id ecs.EntityID) bool {
	if !g.CanEnter(c, id) {
		return false
	}
	g.claims[c] = id
	return true
}

// Release drops id's claim on c, if any.
func (g *Index) Release(c Coord, id ecs.EntityID) {
	if owner, ok := g.claims[c]; ok && owner == id {
		delete(g.claims, c)
	}
}

// Move re-indexes id from one cell to another in a single step. Out of
// bounds destinations are rejected without touching the index.
func (g *Index) Move(id ecs.EntityID, from, to Coord) error {
	if !g.Contains(to) {
		return ErrOutOfBounds
	}
	o, ok := g.entities[id]
	if !ok {
		return ErrNotRegistered
	}
	if cur := g.where[id]; cur != from {
		return ErrStalePosition
	}
	if from == to {
		g.Release(to, id)
		return nil
	}
	if !o.Transparent() {
		if b := g.blockerAt(to); b != 0 && b != id {
			return ErrCellBlocked
		}
	}
	g.remove(id, from)
	g.insert(id, o, to)
	g.Release(to, id)
	g.version++
	return nil
}

func (g *Index) blockerAt(c Coord) ecs.EntityID {
	if cl := g.cells[c]; cl != nil {
		return cl.blocker
	}
	return 0
}

func (g *Index) insert(id ecs.EntityID, o Occupant, c Coord) {
	cl := g.cells[c]
	if cl == nil {
		cl = &cell{occupants: mapset.New[ecs.EntityID]()}
		g.cells[c] = cl
	}
	cl.occupants.Put(id)
	if !o.Transparent() {
		cl.blocker = id
	}
	g.where[id] = c
}

func (g *Index) remove(id ecs.EntityID, c Coord) {
	cl := g.cells[c]
	if cl != nil {
		cl.occupants.Remove(id)
		if cl.blocker == id {
			cl.blocker = 0
		}
		if cl.occupants.Size() == 0 {
			delete(g.cells, c)
		}
	}
	delete(g.where, id)
}
