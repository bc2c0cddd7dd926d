package grid

import (
	"fmt"
	"strings"
)

// Direction is a cardinal direction on the grid. North is +Z, East is +X.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

// AllDirections returns the cardinal directions in clockwise order.
func AllDirections() []Direction {
	return []Direction{North, East, South, West}
}

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	default:
		return "unknown"
	}
}

func (d Direction) IsValid() bool {
	return d >= North && d <= West
}

func (d Direction) Opposite() Direction {
	return d.Rotate(2)
}

// Rotate turns d clockwise by the given number of quarter turns.
// Negative values turn counter-clockwise.
func (d Direction) Rotate(quarterTurns int) Direction {
	r := (int(d) + quarterTurns) % 4
	if r < 0 {
		r += 4
	}
	return Direction(r)
}

// Delta returns the cell offset for one step in d.
func (d Direction) Delta() Coord {
	switch d {
	case North:
		return Coord{0, 1}
	case East:
		return Coord{1, 0}
	case South:
		return Coord{0, -1}
	case West:
		return Coord{-1, 0}
	default:
		return Coord{}
	}
}

// Vec returns the unit world-space vector for d.
func (d Direction) Vec() Vec {
	c := d.Delta()
	return Vec{float64(c.X), float64(c.Z)}
}

// DirectionOf maps a world-space vector onto a cardinal direction. It
// reports false when v is zero or not axis aligned.
func DirectionOf(v Vec) (Direction, bool) {
	n := v.Normalize()
	for _, d := range AllDirections() {
		if n.ApproxEqual(d.Vec()) {
			return d, true
		}
	}
	return North, false
}

// ParseDirection accepts the lower-case names and their first letters.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "n", "up":
		return North, nil
	case "east", "e", "right":
		return East, nil
	case "south", "s", "down":
		return South, nil
	case "west", "w", "left":
		return West, nil
	}
	return North, fmt.Errorf("unknown direction %q", s)
}
