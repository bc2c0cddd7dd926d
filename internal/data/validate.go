package data

import (
	"errors"
	"fmt"

	goerrors "github.com/pixil98/go-errors"

	"github.com/prismgrid/prismgrid/internal/grid"
	"github.com/prismgrid/prismgrid/internal/turn"
)

var (
	ErrUnknownKind    = errors.New("unknown entity kind")
	ErrOutOfBounds    = errors.New("entity outside the level")
	ErrCellTaken      = errors.New("cell already holds a blocking entity")
	ErrPlayerCount    = errors.New("level needs exactly one player")
	ErrBadDirection   = errors.New("bad direction")
	ErrMissingField   = errors.New("missing required field")
	ErrTeleporterPair = errors.New("teleporter pair must have exactly two ends")
)

// Validate reports every problem in the level at once.
func (l *Level) Validate() error {
	el := goerrors.NewErrorList()
	if l.ID == "" {
		el.Add(fmt.Errorf("id: %w", ErrMissingField))
	}
	if l.Width <= 0 || l.Height <= 0 {
		el.Add(fmt.Errorf("size %dx%d must be positive", l.Width, l.Height))
	}

	players := 0
	taken := make(map[grid.Coord]int)
	pairs := make(map[string]int)
	for i, e := range l.Entities {
		where := fmt.Sprintf("entities[%d] (%s)", i, e.Kind)
		if !knownKinds[e.Kind] {
			el.Add(fmt.Errorf("%s: %w", where, ErrUnknownKind))
			continue
		}
		if e.X < 0 || e.Z < 0 || e.X >= l.Width || e.Z >= l.Height {
			el.Add(fmt.Errorf("%s at %s: %w", where, e.Coord(), ErrOutOfBounds))
		}
		if e.Kind.Blocking() {
			if prev, ok := taken[e.Coord()]; ok {
				el.Add(fmt.Errorf("%s at %s: %w (entities[%d])", where, e.Coord(), ErrCellTaken, prev))
			} else {
				taken[e.Coord()] = i
			}
		}
		if e.Secondary != "" {
			if _, err := turn.ParseCategory(e.Secondary); err != nil {
				el.Add(fmt.Errorf("%s: secondary: %w", where, err))
			}
		}
		switch e.Kind {
		case KindPlayer:
			players++
		case KindReflector:
			el.Add(validateDirs(where+" directions", e.Directions, true))
		case KindEmitter:
			el.Add(validateFacing(where, e.Facing, true))
			if e.BeamType == "" {
				el.Add(fmt.Errorf("%s: beam_type: %w", where, ErrMissingField))
			}
			if e.Pulse < 0 {
				el.Add(fmt.Errorf("%s: pulse %d is negative", where, e.Pulse))
			}
		case KindTypeChanger:
			if e.BeamType == "" {
				el.Add(fmt.Errorf("%s: beam_type: %w", where, ErrMissingField))
			}
		case KindTeleporter:
			if e.Pair == "" {
				el.Add(fmt.Errorf("%s: pair: %w", where, ErrMissingField))
			} else {
				pairs[e.Pair]++
			}
		case KindEnemy:
			el.Add(validateDirs(where+" patrol", e.Patrol, false))
			el.Add(validateFacing(where, e.Facing, false))
			if e.Facing != "" && e.BeamType == "" {
				el.Add(fmt.Errorf("%s: beam_type: %w", where, ErrMissingField))
			}
		}
	}
	if players != 1 {
		el.Add(fmt.Errorf("%w, found %d", ErrPlayerCount, players))
	}
	for name, n := range pairs {
		if n != 2 {
			el.Add(fmt.Errorf("pair %q has %d: %w", name, n, ErrTeleporterPair))
		}
	}
	return el.Err()
}

func validateDirs(where string, names []string, required bool) error {
	if len(names) == 0 {
		if required {
			return fmt.Errorf("%s: %w", where, ErrMissingField)
		}
		return nil
	}
	seen := make(map[grid.Direction]bool, len(names))
	for _, n := range names {
		d, err := grid.ParseDirection(n)
		if err != nil {
			return fmt.Errorf("%s: %q: %w", where, n, ErrBadDirection)
		}
		if seen[d] && required {
			return fmt.Errorf("%s: %s listed twice: %w", where, d, ErrBadDirection)
		}
		seen[d] = true
	}
	return nil
}

func validateFacing(where, facing string, required bool) error {
	if facing == "" {
		if required {
			return fmt.Errorf("%s: facing: %w", where, ErrMissingField)
		}
		return nil
	}
	if _, err := grid.ParseDirection(facing); err != nil {
		return fmt.Errorf("%s: facing %q: %w", where, facing, ErrBadDirection)
	}
	return nil
}
