package grid

import (
	"fmt"
	"math"
)

// Coord is an integer cell coordinate.
type Coord struct {
	X int
	Z int
}

// NoCell is the sentinel returned by lookups that fall outside the grid.
var NoCell = Coord{X: math.MinInt32, Z: math.MinInt32}

func (c Coord) Add(o Coord) Coord {
	return Coord{c.X + o.X, c.Z + o.Z}
}

// Step returns the neighbouring cell in direction d.
func (c Coord) Step(d Direction) Coord {
	return c.Add(d.Delta())
}

func (c Coord) String() string {
	if c == NoCell {
		return "(none)"
	}
	return fmt.Sprintf("(%d,%d)", c.X, c.Z)
}

// Availability is the occupancy tag of a cell.
type Availability int

const (
	Empty Availability = iota
	Occupied
	Claimed
)

func (a Availability) String() string {
	switch a {
	case Empty:
		return "empty"
	case Occupied:
		return "occupied"
	case Claimed:
		return "claimed"
	default:
		return "unknown"
	}
}
