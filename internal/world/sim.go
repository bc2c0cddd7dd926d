// Package world owns a running puzzle: the grid, the turn scheduler, the
// beam engine and every entity, wired together as one simulation context.
package world

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prismgrid/prismgrid/internal/affect"
	"github.com/prismgrid/prismgrid/internal/beam"
	"github.com/prismgrid/prismgrid/internal/config"
	"github.com/prismgrid/prismgrid/internal/core/ecs"
	"github.com/prismgrid/prismgrid/internal/core/event"
	"github.com/prismgrid/prismgrid/internal/data"
	"github.com/prismgrid/prismgrid/internal/grid"
	"github.com/prismgrid/prismgrid/internal/persist"
	"github.com/prismgrid/prismgrid/internal/scripting"
	"github.com/prismgrid/prismgrid/internal/task"
	"github.com/prismgrid/prismgrid/internal/turn"
)

// Options carries the collaborators a Simulation is built with. Only
// Config and Level are required.
type Options struct {
	Config   *config.Config
	Level    *data.Level
	Animator Animator
	Audio    AudioSink
	Scripts  Scripts
	Progress persist.Progress
	Log      *zap.Logger
}

// beamOwner is an entity that casts a beam.
type beamOwner interface {
	Beam() *beam.Beam
	Source() beam.Source
}

// Simulation is the single owner of all simulation services. Every method
// must be called from the simulation goroutine.
type Simulation struct {
	cfg      *config.Config
	level    *data.Level
	log      *zap.Logger
	ecs      *ecs.World
	index    *grid.Index
	clock    *task.Clock
	tasks    *task.Queue
	sched    *turn.Scheduler
	affected *affect.Manager
	beams    *beam.Engine
	bus      *event.Bus
	animator Animator
	audio    AudioSink
	scripts  Scripts
	progress persist.Progress

	moveDuration time.Duration
	order        []turn.Category
	resetting    bool

	kinds   *ecs.Store[data.Kind]
	owners  *ecs.Store[beamOwner]
	enemies *ecs.Store[*Enemy]

	player     *Player
	emitters   []*Emitter
	reflectors []*Reflector
	goals      []*Goal

	runID    uuid.UUID
	fresh    bool
	solved   bool
	input    grid.Direction
	hasInput bool
}

func New(opts Options) (*Simulation, error) {
	if opts.Config == nil || opts.Level == nil {
		return nil, fmt.Errorf("simulation needs a config and a level")
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	cfg := opts.Config
	lvl := opts.Level

	s := &Simulation{
		cfg:          cfg,
		level:        lvl,
		log:          log.With(zap.String("level", lvl.ID)),
		ecs:          ecs.NewWorld(),
		index:        grid.NewIndex(lvl.Width, lvl.Height, cfg.Simulation.CellSize),
		clock:        task.NewClock(),
		affected:     affect.NewManager(),
		bus:          event.NewBus(),
		scripts:      opts.Scripts,
		progress:     opts.Progress,
		moveDuration: cfg.Simulation.MoveDuration,
		kinds:        ecs.NewStore[data.Kind](),
		owners:       ecs.NewStore[beamOwner](),
		enemies:      ecs.NewStore[*Enemy](),
		runID:        uuid.New(),
	}
	s.tasks = task.NewQueue(s.clock, s.log)
	s.sched = turn.NewScheduler(s.log)

	order, err := parseOrder(cfg.Simulation.Categories)
	if err != nil {
		return nil, err
	}
	if err := s.sched.SetOrder(order); err != nil {
		return nil, fmt.Errorf("turn order: %w", err)
	}
	s.order = order

	var caster beam.Caster = beam.GridCaster{Index: s.index}
	if cfg.Beam.CastMode == config.CastRay {
		caster = beam.RayCaster{Index: s.index, Step: cfg.Beam.RayStep}
	}
	s.beams = beam.NewEngine(s.index, caster, s.affected, beam.Config{
		MaxDepth:         cfg.Beam.MaxDepth,
		MaxSegments:      cfg.Beam.MaxSegments,
		MaxDistance:      cfg.Beam.MaxDistance,
		AffinityRequired: cfg.Beam.AffinityRequired,
	}, s.log)

	s.animator = opts.Animator
	if s.animator == nil {
		s.animator = NewTimedAnimator(s.tasks)
	}
	s.audio = opts.Audio
	if s.audio == nil {
		s.audio = NewLogAudio(s.log)
	}
	if s.progress == nil {
		s.progress = persist.NewMemoryProgress()
	}

	s.ecs.Registry().Register(s.kinds)
	s.ecs.Registry().Register(s.owners)
	s.ecs.Registry().Register(s.enemies)
	s.ecs.OnDestroy(s.release)
	s.sched.OnSettled(s.settled)
	s.subscribe()

	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

func parseOrder(names []string) ([]turn.Category, error) {
	order := make([]turn.Category, 0, len(names))
	for _, n := range names {
		c, err := turn.ParseCategory(n)
		if err != nil {
			return nil, fmt.Errorf("turn order: %w", err)
		}
		order = append(order, c)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("turn order is empty")
	}
	return order, nil
}

// subscribe wires the fire-and-forget collaborators to simulation events.
func (s *Simulation) subscribe() {
	event.Subscribe(s.bus, func(ev Moved) {
		s.audio.Play("step", s.index.WorldPos(ev.To))
	})
	event.Subscribe(s.bus, func(ev Bumped) {
		s.audio.Play("bump", s.index.WorldPos(ev.At))
	})
	event.Subscribe(s.bus, func(ev Teleported) {
		s.audio.Play("teleport", s.index.WorldPos(ev.To))
	})
	event.Subscribe(s.bus, func(ev Affected) {
		sound := "thaw"
		if ev.Affected {
			sound = "freeze"
		}
		if c, ok := s.index.Position(ev.ID); ok {
			s.audio.Play(sound, s.index.WorldPos(c))
		}
		if s.scripts != nil {
			s.scripts.OnAffected(scripting.AffectedEvent{
				ID:       uint64(ev.ID),
				Name:     ev.Name,
				Kind:     string(ev.Kind),
				Affected: ev.Affected,
			})
		}
	})
	event.Subscribe(s.bus, func(ev PuzzleSolved) {
		s.audio.Play("solved", s.index.WorldPos(s.player.Cell()))
	})
}

// build creates every entity of the level at its start cell.
func (s *Simulation) build() error {
	pairs := make(map[string][]*Teleporter)
	for i, e := range s.level.Entities {
		id := s.ecs.CreateEntity()
		name := e.Name
		if name == "" {
			name = fmt.Sprintf("%s-%d", e.Kind, i)
		}
		b := base{sim: s, id: id, name: name, kind: e.Kind}
		sec, hasSec := secondaryOf(e)

		var occ grid.Occupant
		var part turn.Participant
		switch e.Kind {
		case data.KindPlayer:
			p := &Player{mover: mover{base: b, pos: e.Coord()}, facing: grid.North, secondary: sec, hasSec: hasSec}
			s.player = p
			occ, part = p, p
		case data.KindEnemy:
			en := &Enemy{
				mover:     mover{base: b, pos: e.Coord()},
				affinity:  beam.Type(e.Affinity),
				blocks:    e.BlocksBeam,
				permanent: e.Permanent,
				patrol:    e.PatrolDirs(),
				secondary: sec,
				hasSec:    hasSec,
			}
			if dir, ok := e.FacingDir(); ok {
				en.facing = dir
				en.beamType = beam.Type(e.BeamType)
				en.beam = s.beams.NewBeam(id)
				s.owners.Set(id, en)
			}
			s.enemies.Set(id, en)
			occ, part = en, en
		case data.KindEmitter:
			dir, _ := e.FacingDir()
			em := &Emitter{
				base:      b,
				cell:      e.Coord(),
				facing:    dir,
				beamType:  beam.Type(e.BeamType),
				enabled:   e.IsEnabled(),
				pulse:     e.Pulse,
				secondary: sec,
				hasSec:    hasSec,
				beam:      s.beams.NewBeam(id),
			}
			s.emitters = append(s.emitters, em)
			s.owners.Set(id, em)
			occ, part = em, em
		case data.KindReflector:
			r := &Reflector{base: b, dirs: e.OutgoingDirs(), rotation: ((e.Rotation % 4) + 4) % 4}
			s.reflectors = append(s.reflectors, r)
			occ = r
		case data.KindTypeChanger:
			occ = &TypeChanger{base: b, to: beam.Type(e.BeamType)}
		case data.KindTeleporter:
			t := &Teleporter{base: b}
			pairs[e.Pair] = append(pairs[e.Pair], t)
			occ = t
		case data.KindWall:
			occ = &Wall{base: b}
		case data.KindGoal:
			g := &Goal{base: b}
			s.goals = append(s.goals, g)
			occ = g
		default:
			return fmt.Errorf("entities[%d]: %w: %q", i, data.ErrUnknownKind, e.Kind)
		}

		s.kinds.Set(id, e.Kind)
		if err := s.index.Register(occ, e.Coord()); err != nil {
			return fmt.Errorf("place %s at %s: %w", name, e.Coord(), err)
		}
		if part != nil {
			if err := s.sched.Register(part); err != nil {
				return fmt.Errorf("schedule %s: %w", name, err)
			}
		}
	}
	for name, ends := range pairs {
		if len(ends) != 2 {
			s.log.Warn("teleporter without a pair", zap.String("pair", name))
			continue
		}
		ends[0].pair, ends[1].pair = ends[1], ends[0]
	}
	if s.player == nil {
		return fmt.Errorf("level %s has no player", s.level.ID)
	}
	return nil
}

func secondaryOf(e data.EntityEntry) (turn.Category, bool) {
	if e.Secondary == "" {
		return 0, false
	}
	c, err := turn.ParseCategory(e.Secondary)
	return c, err == nil
}

// release is the destroy hook: it removes id from every service before its
// components are dropped. The scheduler goes last because deregistering can
// settle the turn, and the settle hook rescans the grid.
func (s *Simulation) release(id ecs.EntityID) {
	s.tasks.Cancel(id)
	if o, ok := s.owners.Get(id); ok {
		s.beams.Teardown(o.Beam())
		s.owners.Remove(id)
	}
	s.index.Deregister(id)
	s.affected.Forget(id)
	s.sched.Deregister(id)
}

// Start looks the level up in the progress store and casts the initial
// beams.
func (s *Simulation) Start(ctx context.Context) error {
	fresh, err := s.progress.IsFresh(ctx, s.level.ID, s.level.Fingerprint, s.runID)
	if err != nil {
		return fmt.Errorf("check progress: %w", err)
	}
	s.fresh = fresh
	s.log.Info("level started",
		zap.String("run", s.runID.String()),
		zap.Bool("fresh", fresh),
		zap.Int("entities", s.ecs.Pool().Len()))
	event.Emit(s.bus, LevelStarted{LevelID: s.level.ID, RunID: s.runID, Fresh: fresh})
	s.rescan()
	return nil
}

// Input records the direction for the next Player turn. The latest call
// before that turn wins.
func (s *Simulation) Input(dir grid.Direction) {
	s.input = dir
	s.hasInput = true
}

// Advance starts the next turn category once the current one has settled.
// A Player turn waits for input. Returns false when nothing started.
func (s *Simulation) Advance() bool {
	if s.solved || !s.sched.Settled() {
		return false
	}
	if s.sched.Next() == turn.Player {
		if !s.hasInput {
			return false
		}
		s.hasInput = false
		return s.sched.AdvanceWith(s.input)
	}
	return s.sched.Advance()
}

// Frame advances the frame clock by dt and resumes every task that is due.
func (s *Simulation) Frame(dt time.Duration) {
	s.clock.Advance(dt)
	s.tasks.Resume()
}

// settled runs once every participant of a category has completed. Beams
// are rescanned here, after all movers of the category have landed.
func (s *Simulation) settled(c turn.Category) {
	if s.resetting {
		return
	}
	s.rescan()
	if c == s.order[len(s.order)-1] {
		s.checkSolved()
	}
}

func (s *Simulation) rescan() {
	for _, id := range s.owners.IDs() {
		o, _ := s.owners.Get(id)
		if s.beams.Propagate(o.Beam(), o.Source()) {
			event.Emit(s.bus, BeamRescanned{Source: id, Segments: len(o.Beam().Segments())})
		}
	}
}

// landed applies cell effects after a mover commits a move.
func (s *Simulation) landed(m *mover) {
	for _, o := range s.index.EntitiesAt(m.pos) {
		t, ok := o.(*Teleporter)
		if !ok {
			continue
		}
		exit, ok := t.Exit()
		if !ok || !s.index.CanEnter(exit, m.id) {
			return
		}
		from := m.pos
		if err := s.index.Move(m.id, from, exit); err != nil {
			return
		}
		m.pos = exit
		s.animator.Snap(m.id, s.index.WorldPos(exit))
		event.Emit(s.bus, Teleported{ID: m.id, From: from, To: exit})
		return
	}
}

func (s *Simulation) checkSolved() {
	if s.solved {
		return
	}
	cell := s.player.Cell()
	onGoal := false
	for _, g := range s.goals {
		if c, ok := s.index.Position(g.id); ok && c == cell {
			onGoal = true
			break
		}
	}
	enemies, harmonized := s.harmony()

	solved := onGoal && (!s.level.Solve.RequireHarmony || harmonized == enemies)
	if s.scripts != nil {
		if v, ok := s.scripts.IsSolved(scripting.SolveContext{
			Turn:       s.sched.Number(),
			PlayerX:    cell.X,
			PlayerZ:    cell.Z,
			OnGoal:     onGoal,
			Enemies:    enemies,
			Harmonized: harmonized,
		}); ok {
			solved = v
		}
	}
	if !solved {
		return
	}
	s.solved = true
	s.log.Info("puzzle solved", zap.Uint64("turns", s.sched.Number()))
	event.Emit(s.bus, PuzzleSolved{
		LevelID:     s.level.ID,
		Fingerprint: s.level.Fingerprint,
		RunID:       s.runID,
		Turns:       s.sched.Number(),
	})
}

func (s *Simulation) harmony() (enemies, harmonized int) {
	s.enemies.Each(func(id ecs.EntityID, _ *Enemy) {
		enemies++
		if s.affected.IsAffected(id) {
			harmonized++
		}
	})
	return enemies, harmonized
}

// Reset force-ends every running participant, releases every beam hold and
// rebuilds the level from its start positions.
func (s *Simulation) Reset() error {
	s.resetting = true
	s.sched.ForceAll()
	s.resetting = false
	for _, id := range s.owners.IDs() {
		o, _ := s.owners.Get(id)
		s.beams.Teardown(o.Beam())
	}
	for _, id := range s.kinds.IDs() {
		s.ecs.MarkForDestruction(id)
	}
	s.ecs.FlushDestroyQueue()

	s.affected.Reset()
	s.sched.Reset()
	if err := s.sched.SetOrder(s.order); err != nil {
		return fmt.Errorf("turn order: %w", err)
	}
	s.bus.Drop()
	s.player = nil
	s.emitters = nil
	s.reflectors = nil
	s.goals = nil
	s.solved = false
	s.hasInput = false

	if err := s.build(); err != nil {
		return fmt.Errorf("rebuild level: %w", err)
	}
	s.log.Info("level reset")
	event.Emit(s.bus, LevelReset{LevelID: s.level.ID})
	s.rescan()
	return nil
}

func (s *Simulation) Config() *config.Config     { return s.cfg }
func (s *Simulation) Level() *data.Level         { return s.level }
func (s *Simulation) Log() *zap.Logger           { return s.log }
func (s *Simulation) Bus() *event.Bus            { return s.bus }
func (s *Simulation) Index() *grid.Index         { return s.index }
func (s *Simulation) Scheduler() *turn.Scheduler { return s.sched }
func (s *Simulation) Affected() *affect.Manager  { return s.affected }
func (s *Simulation) Clock() *task.Clock         { return s.clock }
func (s *Simulation) Tasks() *task.Queue         { return s.tasks }
func (s *Simulation) Entities() *ecs.World       { return s.ecs }
func (s *Simulation) Progress() persist.Progress { return s.progress }
func (s *Simulation) Player() *Player            { return s.player }
func (s *Simulation) Emitters() []*Emitter       { return s.emitters }
func (s *Simulation) Reflectors() []*Reflector   { return s.reflectors }
func (s *Simulation) RunID() uuid.UUID           { return s.runID }
func (s *Simulation) Fresh() bool                { return s.fresh }
func (s *Simulation) Solved() bool               { return s.solved }

// Enemies returns every enemy in id order.
func (s *Simulation) Enemies() []*Enemy {
	out := make([]*Enemy, 0, s.enemies.Len())
	s.enemies.Each(func(_ ecs.EntityID, e *Enemy) { out = append(out, e) })
	return out
}

// KindOf returns the level kind of id.
func (s *Simulation) KindOf(id ecs.EntityID) (data.Kind, bool) {
	return s.kinds.Get(id)
}

// Beams returns the segments of every live beam keyed by its source.
func (s *Simulation) Beams() map[ecs.EntityID][]beam.SegmentView {
	out := make(map[ecs.EntityID][]beam.SegmentView)
	for _, id := range s.owners.IDs() {
		o, _ := s.owners.Get(id)
		if segs := o.Beam().Segments(); len(segs) > 0 {
			out[id] = segs
		}
	}
	return out
}
