// Package beam propagates directional beams through the grid index,
// following reflectors, type changers and teleporters, and reports which
// targets each segment touches to the affected-state manager.
package beam

import (
	"github.com/prismgrid/prismgrid/internal/affect"
	"github.com/prismgrid/prismgrid/internal/grid"
)

// Type is a beam's type tag. Targets only react to beams whose type matches
// their affinity.
type Type string

// Target is an affectable occupant, usually an enemy.
type Target interface {
	affect.Affectable
	// Affinity is the beam type the target reacts to. Empty matches any type.
	Affinity() Type
	BlocksBeam() bool
}

// Reflector stops a segment and spawns one child per outgoing direction.
// Outgoing returns directions with the reflector's rotation applied.
type Reflector interface {
	Outgoing() []grid.Direction
}

// Changer stops a segment and continues it with a new type.
type Changer interface {
	ChangeTo() Type
}

// Teleporter stops a segment and continues it from its paired exit cell.
type Teleporter interface {
	Exit() (grid.Coord, bool)
}

// Blocker is any occupant that may be opaque to beams.
type Blocker interface {
	BlocksBeam() bool
}

// Config bounds propagation. Zero values fall back to the defaults below.
type Config struct {
	MaxDepth         int
	MaxSegments      int
	MaxDistance      float64
	AffinityRequired bool
}

const (
	DefaultMaxDepth    = 16
	DefaultMaxSegments = 64
	DefaultMaxDistance = 64.0
)

func (c Config) withDefaults() Config {
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxSegments <= 0 {
		c.MaxSegments = DefaultMaxSegments
	}
	if c.MaxDistance <= 0 {
		c.MaxDistance = DefaultMaxDistance
	}
	return c
}

// Matches reports whether a beam of type t affects a target with the given
// affinity.
func (c Config) Matches(affinity, t Type) bool {
	if !c.AffinityRequired || affinity == "" {
		return true
	}
	return affinity == t
}

// Source describes a beam's origin for one propagation pass.
type Source struct {
	Origin    grid.Vec
	Direction grid.Direction
	Type      Type
	Enabled   bool
}
