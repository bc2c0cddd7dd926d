package grid

import "math"

// Epsilon is the tolerance used for world-space comparisons.
const Epsilon = 1e-9

// Vec is a world-space position or direction on the XZ plane.
type Vec struct {
	X float64
	Z float64
}

func (v Vec) Add(o Vec) Vec {
	return Vec{v.X + o.X, v.Z + o.Z}
}

func (v Vec) Sub(o Vec) Vec {
	return Vec{v.X - o.X, v.Z - o.Z}
}

func (v Vec) Scale(s float64) Vec {
	return Vec{v.X * s, v.Z * s}
}

func (v Vec) Dot(o Vec) float64 {
	return v.X*o.X + v.Z*o.Z
}

func (v Vec) Len() float64 {
	return math.Hypot(v.X, v.Z)
}

func (v Vec) IsZero() bool {
	return math.Abs(v.X) < Epsilon && math.Abs(v.Z) < Epsilon
}

func (v Vec) ApproxEqual(o Vec) bool {
	return v.Sub(o).Len() < 1e-6
}

// Normalize returns v scaled to unit length. The zero vector stays zero.
func (v Vec) Normalize() Vec {
	l := v.Len()
	if l < Epsilon {
		return Vec{}
	}
	return Vec{v.X / l, v.Z / l}
}
