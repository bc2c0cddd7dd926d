package data

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/prismgrid/prismgrid/internal/grid"
)

// Kind names an entity kind in a level file.
type Kind string

const (
	KindPlayer      Kind = "player"
	KindEnemy       Kind = "enemy"
	KindWall        Kind = "wall"
	KindReflector   Kind = "reflector"
	KindTypeChanger Kind = "type_changer"
	KindTeleporter  Kind = "teleporter"
	KindEmitter     Kind = "emitter"
	KindGoal        Kind = "goal"
)

var knownKinds = map[Kind]bool{
	KindPlayer:      true,
	KindEnemy:       true,
	KindWall:        true,
	KindReflector:   true,
	KindTypeChanger: true,
	KindTeleporter:  true,
	KindEmitter:     true,
	KindGoal:        true,
}

// Blocking reports whether entities of kind k occupy their cell exclusively.
func (k Kind) Blocking() bool {
	return k != KindTeleporter && k != KindGoal
}

// Level is one puzzle definition.
type Level struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Width    int           `yaml:"width"`
	Height   int           `yaml:"height"`
	Solve    SolveRule     `yaml:"solve"`
	Entities []EntityEntry `yaml:"entities"`

	// Fingerprint is a digest of the source bytes, so an edited level is
	// treated as a fresh one by the progress store.
	Fingerprint string `yaml:"-"`
}

type SolveRule struct {
	RequireHarmony bool `yaml:"require_harmony"` // every enemy must be affected
}

// EntityEntry is one placed entity. Which fields apply depends on Kind.
type EntityEntry struct {
	Kind       Kind     `yaml:"kind"`
	Name       string   `yaml:"name"`
	X          int      `yaml:"x"`
	Z          int      `yaml:"z"`
	Facing     string   `yaml:"facing"`     // emitter / enemy beam direction
	Directions []string `yaml:"directions"` // reflector outgoing directions
	Rotation   int      `yaml:"rotation"`   // reflector quarter turns clockwise
	BeamType   string   `yaml:"beam_type"`  // emitter / type changer / enemy beam
	Affinity   string   `yaml:"affinity"`
	Permanent  bool     `yaml:"permanent"`
	Pair       string   `yaml:"pair"`
	Patrol     []string `yaml:"patrol"`
	BlocksBeam bool     `yaml:"blocks_beam"`
	Enabled    *bool    `yaml:"enabled"`
	Pulse      int      `yaml:"pulse"` // emitter toggles every N world turns, 0 keeps it steady
	Secondary  string   `yaml:"secondary"`
}

func (e EntityEntry) Coord() grid.Coord {
	return grid.Coord{X: e.X, Z: e.Z}
}

// IsEnabled defaults to true when the field is omitted.
func (e EntityEntry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// FacingDir returns the parsed facing and whether one was given.
func (e EntityEntry) FacingDir() (grid.Direction, bool) {
	if e.Facing == "" {
		return grid.North, false
	}
	d, err := grid.ParseDirection(e.Facing)
	return d, err == nil
}

// OutgoingDirs parses Directions. Call after validation.
func (e EntityEntry) OutgoingDirs() []grid.Direction {
	return parseDirs(e.Directions)
}

// PatrolDirs parses Patrol. Call after validation.
func (e EntityEntry) PatrolDirs() []grid.Direction {
	return parseDirs(e.Patrol)
}

func parseDirs(names []string) []grid.Direction {
	out := make([]grid.Direction, 0, len(names))
	for _, n := range names {
		if d, err := grid.ParseDirection(n); err == nil {
			out = append(out, d)
		}
	}
	return out
}

// LoadLevel reads and validates a level file.
func LoadLevel(path string) (*Level, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read level: %w", err)
	}
	lvl, err := ParseLevel(raw)
	if err != nil {
		return nil, fmt.Errorf("level %s: %w", path, err)
	}
	return lvl, nil
}

// ParseLevel decodes and validates a level from YAML.
func ParseLevel(raw []byte) (*Level, error) {
	var lvl Level
	if err := yaml.Unmarshal(raw, &lvl); err != nil {
		return nil, fmt.Errorf("parse level: %w", err)
	}
	lvl.ID = NormalizeID(lvl.ID)
	sum := blake2b.Sum256(raw)
	lvl.Fingerprint = hex.EncodeToString(sum[:])
	if err := lvl.Validate(); err != nil {
		return nil, err
	}
	return &lvl, nil
}

// NormalizeID folds a level id so ids differing only in case or Unicode
// composition name the same level.
func NormalizeID(id string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(id)))
}

// Player returns the player entry. Validation guarantees exactly one.
func (l *Level) Player() EntityEntry {
	for _, e := range l.Entities {
		if e.Kind == KindPlayer {
			return e
		}
	}
	return EntityEntry{}
}

// OfKind returns the entries of kind k in file order.
func (l *Level) OfKind(k Kind) []EntityEntry {
	var out []EntityEntry
	for _, e := range l.Entities {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}
