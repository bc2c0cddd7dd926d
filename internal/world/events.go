package world

import (
	"github.com/google/uuid"

	"github.com/prismgrid/prismgrid/internal/core/ecs"
	"github.com/prismgrid/prismgrid/internal/data"
	"github.com/prismgrid/prismgrid/internal/grid"
)

// Events are emitted on the simulation bus and delivered by the event phase.
// Events emitted by earlier phases arrive in the same frame; anything emitted
// after it arrives in the next one.

type Moved struct {
	ID   ecs.EntityID
	Kind data.Kind
	From grid.Coord
	To   grid.Coord
}

type Bumped struct {
	ID ecs.EntityID
	At grid.Coord
}

type Teleported struct {
	ID   ecs.EntityID
	From grid.Coord
	To   grid.Coord
}

type Affected struct {
	ID       ecs.EntityID
	Name     string
	Kind     data.Kind
	Affected bool
}

type Rotated struct {
	ID       ecs.EntityID
	Rotation int
}

type Toggled struct {
	ID      ecs.EntityID
	Enabled bool
}

type BeamRescanned struct {
	Source   ecs.EntityID
	Segments int
}

type LevelStarted struct {
	LevelID string
	RunID   uuid.UUID
	Fresh   bool
}

type LevelReset struct {
	LevelID string
}

type PuzzleSolved struct {
	LevelID     string
	Fingerprint string
	RunID       uuid.UUID
	Turns       uint64
}
