package beam

import (
	"math"

	"github.com/prismgrid/prismgrid/internal/grid"
)

// Hit is one cell the cast passed through that holds occupants.
type Hit struct {
	Cell      grid.Coord
	Distance  float64
	Occupants []grid.Occupant
}

// Caster collects every occupied cell along a ray, nearest first. The cell
// containing origin is never reported.
type Caster interface {
	Cast(origin grid.Vec, dir grid.Direction, maxDist float64) []Hit
}

// GridCaster walks cell by cell along a cardinal direction.
type GridCaster struct {
	Index *grid.Index
}

func (g GridCaster) Cast(origin grid.Vec, dir grid.Direction, maxDist float64) []Hit {
	d := dir.Vec()
	var hits []Hit
	for c := g.Index.CellOf(origin).Step(dir); g.Index.Contains(c); c = c.Step(dir) {
		dist := g.Index.WorldPos(c).Sub(origin).Dot(d)
		if dist > maxDist+grid.Epsilon {
			break
		}
		if occ := g.Index.EntitiesAt(c); len(occ) > 0 {
			hits = append(hits, Hit{Cell: c, Distance: dist, Occupants: occ})
		}
	}
	return hits
}

// RayCaster samples the continuous ray every Step world units and snaps each
// sample to a cell. It tolerates origins that are not cell centred.
type RayCaster struct {
	Index *grid.Index
	Step  float64
}

func (r RayCaster) Cast(origin grid.Vec, dir grid.Direction, maxDist float64) []Hit {
	step := r.Step
	if step <= 0 {
		step = r.Index.CellSize() / 4
	}
	d := dir.Vec()
	start := r.Index.CellOf(origin)
	seen := map[grid.Coord]bool{start: true}
	var hits []Hit

	n := int(math.Floor(maxDist/step + grid.Epsilon))
	for i := 1; i <= n; i++ {
		c := r.Index.CellOf(origin.Add(d.Scale(float64(i) * step)))
		if seen[c] {
			continue
		}
		seen[c] = true
		if !r.Index.Contains(c) {
			break
		}
		dist := r.Index.WorldPos(c).Sub(origin).Dot(d)
		if dist > maxDist+grid.Epsilon {
			break
		}
		if occ := r.Index.EntitiesAt(c); len(occ) > 0 {
			hits = append(hits, Hit{Cell: c, Distance: dist, Occupants: occ})
		}
	}
	return hits
}
