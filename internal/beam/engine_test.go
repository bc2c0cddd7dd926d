package beam

import (
	"testing"

	"github.com/pixil98/go-testutil"

	"github.com/prismgrid/prismgrid/internal/affect"
	"github.com/prismgrid/prismgrid/internal/core/ecs"
	"github.com/prismgrid/prismgrid/internal/grid"
)

type journal []string

type fakeEnemy struct {
	id       ecs.EntityID
	name     string
	affinity Type
	blocks   bool
	on       int
	off      int
	log      *journal
}

func (f *fakeEnemy) ID() ecs.EntityID             { return f.id }
func (f *fakeEnemy) Transparent() bool            { return false }
func (f *fakeEnemy) Affinity() Type               { return f.affinity }
func (f *fakeEnemy) BlocksBeam() bool             { return f.blocks }
func (f *fakeEnemy) PermanentOnceTriggered() bool { return false }

func (f *fakeEnemy) BecomeAffected() {
	f.on++
	if f.log != nil {
		*f.log = append(*f.log, "on:"+f.name)
	}
}

func (f *fakeEnemy) BecomeUnaffected() {
	f.off++
	if f.log != nil {
		*f.log = append(*f.log, "off:"+f.name)
	}
}

type fakeMirror struct {
	id  ecs.EntityID
	out []grid.Direction
}

func (f *fakeMirror) ID() ecs.EntityID           { return f.id }
func (f *fakeMirror) Transparent() bool          { return false }
func (f *fakeMirror) Outgoing() []grid.Direction { return f.out }

type fakeWall struct{ id ecs.EntityID }

func (f *fakeWall) ID() ecs.EntityID  { return f.id }
func (f *fakeWall) Transparent() bool { return false }
func (f *fakeWall) BlocksBeam() bool  { return true }

type fakeChanger struct {
	id ecs.EntityID
	to Type
}

func (f *fakeChanger) ID() ecs.EntityID  { return f.id }
func (f *fakeChanger) Transparent() bool { return false }
func (f *fakeChanger) ChangeTo() Type    { return f.to }

type fakePortal struct {
	id     ecs.EntityID
	exit   grid.Coord
	paired bool
}

func (f *fakePortal) ID() ecs.EntityID         { return f.id }
func (f *fakePortal) Transparent() bool        { return true }
func (f *fakePortal) Exit() (grid.Coord, bool) { return f.exit, f.paired }

type fixture struct {
	t      *testing.T
	index  *grid.Index
	affect *affect.Manager
	engine *Engine
	nextID uint32
}

func newFixture(t *testing.T, cfg Config) *fixture {
	idx := grid.NewIndex(10, 10, 1)
	mgr := affect.NewManager()
	return &fixture{
		t:      t,
		index:  idx,
		affect: mgr,
		engine: NewEngine(idx, nil, mgr, cfg, nil),
	}
}

func (f *fixture) id() ecs.EntityID {
	f.nextID++
	return ecs.NewEntityID(f.nextID, 0)
}

func (f *fixture) place(o grid.Occupant, x, z int) {
	f.t.Helper()
	if err := f.index.Register(o, grid.Coord{X: x, Z: z}); err != nil {
		f.t.Fatalf("Register at (%d,%d): %v", x, z, err)
	}
}

func (f *fixture) enemy(name string, x, z int) *fakeEnemy {
	e := &fakeEnemy{id: f.id(), name: name}
	f.place(e, x, z)
	return e
}

func (f *fixture) mirror(x, z int, out ...grid.Direction) *fakeMirror {
	m := &fakeMirror{id: f.id(), out: out}
	f.place(m, x, z)
	return m
}

func (f *fixture) source(x, z int, dir grid.Direction) Source {
	return Source{
		Origin:    f.index.WorldPos(grid.Coord{X: x, Z: z}),
		Direction: dir,
		Type:      "light",
		Enabled:   true,
	}
}

func TestPropagate_UnobstructedEndPoint(t *testing.T) {
	f := newFixture(t, Config{MaxDistance: 5})
	b := f.engine.NewBeam(f.id())

	src := Source{Origin: grid.Vec{X: 1, Z: 3}, Direction: grid.East, Type: "light", Enabled: true}
	f.engine.Propagate(b, src)

	segs := b.Segments()
	testutil.AssertEqual(t, "segments", len(segs), 1)
	want := src.Origin.Add(grid.East.Vec().Scale(5))
	if !segs[0].End.ApproxEqual(want) {
		t.Errorf("End = %v, want %v", segs[0].End, want)
	}
}

func TestPropagate_TwoWayReflectorSpawnsTwoChildren(t *testing.T) {
	f := newFixture(t, Config{})
	m := f.mirror(2, 4, grid.North, grid.South)
	b := f.engine.NewBeam(f.id())

	f.engine.Propagate(b, f.source(0, 4, grid.East))

	segs := b.Segments()
	testutil.AssertEqual(t, "segments", len(segs), 3)
	testutil.AssertEqual(t, "root stopped by", segs[0].StoppedBy, m.id)
	at := f.index.WorldPos(grid.Coord{X: 2, Z: 4})
	for _, s := range segs[1:] {
		testutil.AssertEqual(t, "child depth", s.Depth, 1)
		testutil.AssertEqual(t, "child via", s.Via, m.id)
		if !s.Start.ApproxEqual(at) {
			t.Errorf("child start = %v, want %v", s.Start, at)
		}
	}
	testutil.AssertEqual(t, "first child", segs[1].Direction, grid.North)
	testutil.AssertEqual(t, "second child", segs[2].Direction, grid.South)
}

func TestPropagate_DuplicateOutgoingHoldsOnce(t *testing.T) {
	f := newFixture(t, Config{})
	e := f.enemy("e", 2, 8)
	m := f.mirror(2, 4, grid.North, grid.North)
	b := f.engine.NewBeam(f.id())
	src := f.source(0, 4, grid.East)

	f.engine.Propagate(b, src)
	testutil.AssertEqual(t, "segments", len(b.Segments()), 2)
	testutil.AssertEqual(t, "count", f.affect.Count(e.id), 1)

	f.engine.Rescan(b, src)
	testutil.AssertEqual(t, "count after rescan", f.affect.Count(e.id), 1)

	m.out = []grid.Direction{grid.South}
	f.index.Touch()
	f.engine.Propagate(b, src)
	testutil.AssertEqual(t, "count after turn away", f.affect.Count(e.id), 0)
	testutil.AssertEqual(t, "released", f.affect.IsAffected(e.id), false)
	testutil.AssertEqual(t, "on", e.on, 1)
	testutil.AssertEqual(t, "off", e.off, 1)

	f.engine.Teardown(b)
	testutil.AssertEqual(t, "count after teardown", f.affect.Count(e.id), 0)
}

func TestPropagate_RotationReleasesOldPathFirst(t *testing.T) {
	f := newFixture(t, Config{})
	var log journal
	north := f.enemy("north", 2, 8)
	east := f.enemy("east", 6, 4)
	north.log, east.log = &log, &log
	m := f.mirror(2, 4, grid.North)
	b := f.engine.NewBeam(f.id())
	src := f.source(0, 4, grid.East)

	f.engine.Propagate(b, src)
	testutil.AssertEqual(t, "north affected", f.affect.IsAffected(north.id), true)

	m.out = []grid.Direction{grid.North.Rotate(1)}
	f.index.Touch()
	f.engine.Propagate(b, src)

	testutil.AssertEqual(t, "north released", f.affect.Count(north.id), 0)
	testutil.AssertEqual(t, "east affected", f.affect.IsAffected(east.id), true)
	testutil.AssertEqual(t, "journal length", len(log), 3)
	testutil.AssertEqual(t, "release before new hit", log[1], "off:north")
	testutil.AssertEqual(t, "new hit", log[2], "on:east")
}

func TestPropagate_UnchangedRescanKeepsHolds(t *testing.T) {
	f := newFixture(t, Config{})
	e := f.enemy("e", 2, 8)
	f.mirror(2, 4, grid.North)
	b := f.engine.NewBeam(f.id())
	src := f.source(0, 4, grid.East)

	f.engine.Propagate(b, src)
	before := b.Segments()
	f.engine.Rescan(b, src)
	after := b.Segments()

	testutil.AssertEqual(t, "child holder reused", after[1].Holder, before[1].Holder)
	testutil.AssertEqual(t, "on", e.on, 1)
	testutil.AssertEqual(t, "off", e.off, 0)
}

func TestPropagate_SkipsWhenNothingChanged(t *testing.T) {
	f := newFixture(t, Config{})
	b := f.engine.NewBeam(f.id())
	src := f.source(0, 0, grid.North)

	testutil.AssertEqual(t, "first", f.engine.Propagate(b, src), true)
	testutil.AssertEqual(t, "unchanged", f.engine.Propagate(b, src), false)

	f.index.Touch()
	testutil.AssertEqual(t, "grid changed", f.engine.Propagate(b, src), true)

	src.Direction = grid.East
	testutil.AssertEqual(t, "source changed", f.engine.Propagate(b, src), true)
}

func TestPropagate_FacingMirrorsTerminate(t *testing.T) {
	f := newFixture(t, Config{})
	f.mirror(2, 4, grid.East)
	f.mirror(6, 4, grid.West)
	b := f.engine.NewBeam(f.id())

	f.engine.Propagate(b, f.source(0, 4, grid.East))

	segs := b.Segments()
	testutil.AssertEqual(t, "segments", len(segs), 3)
	testutil.AssertEqual(t, "loop cut", segs[2].Truncated, true)
}

func TestPropagate_SegmentCapTruncates(t *testing.T) {
	f := newFixture(t, Config{MaxSegments: 4})
	// a fan of mirrors where every mirror splits in two
	f.mirror(2, 4, grid.North, grid.South)
	f.mirror(2, 7, grid.East, grid.West)
	f.mirror(2, 1, grid.East, grid.West)
	b := f.engine.NewBeam(f.id())

	f.engine.Propagate(b, f.source(0, 4, grid.East))

	segs := b.Segments()
	testutil.AssertEqual(t, "segments", len(segs), 4)
}

func TestPropagate_DepthCapTruncates(t *testing.T) {
	f := newFixture(t, Config{MaxDepth: 1})
	f.mirror(2, 4, grid.North)
	f.mirror(2, 7, grid.East)
	b := f.engine.NewBeam(f.id())

	f.engine.Propagate(b, f.source(0, 4, grid.East))

	segs := b.Segments()
	testutil.AssertEqual(t, "segments", len(segs), 2)
	testutil.AssertEqual(t, "truncated", segs[1].Truncated, true)
}

func TestPropagate_TwoBeamsShareTarget(t *testing.T) {
	f := newFixture(t, Config{})
	e := f.enemy("e", 4, 4)
	a := f.engine.NewBeam(f.id())
	b := f.engine.NewBeam(f.id())
	srcA := f.source(0, 4, grid.East)
	srcB := f.source(4, 0, grid.North)

	f.engine.Propagate(a, srcA)
	f.engine.Propagate(b, srcB)
	testutil.AssertEqual(t, "count", f.affect.Count(e.id), 2)

	srcA.Enabled = false
	f.engine.Propagate(a, srcA)
	testutil.AssertEqual(t, "count after first off", f.affect.Count(e.id), 1)
	testutil.AssertEqual(t, "still affected", f.affect.IsAffected(e.id), true)
	testutil.AssertEqual(t, "beam a inactive", a.Active(), false)

	srcB.Enabled = false
	f.engine.Propagate(b, srcB)
	testutil.AssertEqual(t, "count after second off", f.affect.Count(e.id), 0)
	testutil.AssertEqual(t, "on", e.on, 1)
	testutil.AssertEqual(t, "off", e.off, 1)
}

func TestPropagate_AffinityAndTypeChanger(t *testing.T) {
	f := newFixture(t, Config{AffinityRequired: true})
	red := f.enemy("red", 3, 4)
	red.affinity = "red"
	b := f.engine.NewBeam(f.id())
	src := f.source(0, 4, grid.East)
	src.Type = "blue"

	f.engine.Propagate(b, src)
	testutil.AssertEqual(t, "mismatched not affected", red.on, 0)
	testutil.AssertEqual(t, "touched", len(b.Segments()[0].Touched), 1)

	changer := &fakeChanger{id: f.id(), to: "red"}
	f.place(changer, 1, 4)
	f.engine.Propagate(b, src)

	segs := b.Segments()
	testutil.AssertEqual(t, "segments", len(segs), 2)
	testutil.AssertEqual(t, "child type", segs[1].Type, Type("red"))
	testutil.AssertEqual(t, "matched affected", red.on, 1)
}

func TestPropagate_AnyHitPolicy(t *testing.T) {
	f := newFixture(t, Config{AffinityRequired: false})
	e := f.enemy("e", 3, 4)
	e.affinity = "red"
	b := f.engine.NewBeam(f.id())
	src := f.source(0, 4, grid.East)
	src.Type = "blue"

	f.engine.Propagate(b, src)
	testutil.AssertEqual(t, "affected", e.on, 1)
}

func TestPropagate_TeleporterContinuesFromExit(t *testing.T) {
	f := newFixture(t, Config{})
	in := &fakePortal{id: f.id(), exit: grid.Coord{X: 1, Z: 8}, paired: true}
	f.place(in, 3, 2)
	out := &fakePortal{id: f.id(), exit: grid.Coord{X: 3, Z: 2}, paired: true}
	f.place(out, 1, 8)
	e := f.enemy("e", 6, 8)
	b := f.engine.NewBeam(f.id())

	f.engine.Propagate(b, f.source(0, 2, grid.East))

	segs := b.Segments()
	testutil.AssertEqual(t, "segments", len(segs), 2)
	if !segs[1].Start.ApproxEqual(f.index.WorldPos(grid.Coord{X: 1, Z: 8})) {
		t.Errorf("child start = %v", segs[1].Start)
	}
	testutil.AssertEqual(t, "enemy past exit", e.on, 1)
}

func TestPropagate_WallAndBlockingTargetStop(t *testing.T) {
	f := newFixture(t, Config{})
	blocker := f.enemy("blocker", 2, 4)
	blocker.blocks = true
	hidden := f.enemy("hidden", 5, 4)
	f.place(&fakeWall{id: f.id()}, 2, 6)
	behindWall := f.enemy("behind", 2, 8)

	a := f.engine.NewBeam(f.id())
	f.engine.Propagate(a, f.source(0, 4, grid.East))
	b := f.engine.NewBeam(f.id())
	f.engine.Propagate(b, f.source(2, 5, grid.North))

	testutil.AssertEqual(t, "blocker hit", blocker.on, 1)
	testutil.AssertEqual(t, "hidden", hidden.on, 0)
	testutil.AssertEqual(t, "behind wall", behindWall.on, 0)

	end := b.Segments()[0].End
	if !end.ApproxEqual(f.index.WorldPos(grid.Coord{X: 2, Z: 6})) {
		t.Errorf("End = %v, want wall position", end)
	}
}

func TestPropagate_NonBlockingTargetsInLine(t *testing.T) {
	f := newFixture(t, Config{})
	first := f.enemy("first", 2, 4)
	second := f.enemy("second", 3, 4)
	b := f.engine.NewBeam(f.id())

	f.engine.Propagate(b, f.source(0, 4, grid.East))

	testutil.AssertEqual(t, "first", first.on, 1)
	testutil.AssertEqual(t, "second", second.on, 1)
	testutil.AssertEqual(t, "hits", len(b.Hits()), 2)
}

func TestRayCaster_MatchesGridCaster(t *testing.T) {
	f := newFixture(t, Config{})
	f.enemy("a", 3, 2)
	f.mirror(7, 2, grid.North)
	origin := f.index.WorldPos(grid.Coord{X: 0, Z: 2})

	gridHits := GridCaster{Index: f.index}.Cast(origin, grid.East, 20)
	rayHits := RayCaster{Index: f.index, Step: 0.25}.Cast(origin, grid.East, 20)

	testutil.AssertEqual(t, "count", len(rayHits), len(gridHits))
	for i := range gridHits {
		testutil.AssertEqual(t, "cell", rayHits[i].Cell, gridHits[i].Cell)
		testutil.AssertEqual(t, "distance", rayHits[i].Distance, gridHits[i].Distance)
	}
}
