package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pixil98/go-testutil"
	lua "github.com/yuin/gopher-lua"

	"github.com/prismgrid/prismgrid/internal/grid"
)

const patrolScript = `
LEVEL = { patience = 3 }

function enemy_move(ctx)
  if ctx.affected then
    return nil
  end
  if ctx.step % 2 == 0 then
    return "east"
  end
  return "west"
end

seen = 0
function on_affected(ev)
  if ev.affected then
    seen = seen + 1
  end
end

function is_solved(ctx)
  return ctx.on_goal and ctx.harmonized == ctx.enemies
end
`

func newTestEngine(t *testing.T, src string) *Engine {
	t.Helper()
	e, err := NewEngineFromSource(src, nil)
	if err != nil {
		t.Fatalf("NewEngineFromSource: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestEnemyMove(t *testing.T) {
	e := newTestEngine(t, patrolScript)

	tests := map[string]struct {
		ctx     MoveContext
		expDir  grid.Direction
		expMove bool
	}{
		"even step": {ctx: MoveContext{Step: 0}, expDir: grid.East, expMove: true},
		"odd step":  {ctx: MoveContext{Step: 1}, expDir: grid.West, expMove: true},
		"affected":  {ctx: MoveContext{Affected: true}, expDir: grid.North, expMove: false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			dir, move, ok := e.EnemyMove(tt.ctx)
			testutil.AssertEqual(t, "ok", ok, true)
			testutil.AssertEqual(t, "move", move, tt.expMove)
			testutil.AssertEqual(t, "dir", dir, tt.expDir)
		})
	}
}

func TestEnemyMove_MissingAndFailingHooks(t *testing.T) {
	empty := newTestEngine(t, "")
	_, _, ok := empty.EnemyMove(MoveContext{})
	testutil.AssertEqual(t, "missing hook", ok, false)

	broken := newTestEngine(t, `function enemy_move(ctx) error("boom") end`)
	_, _, ok = broken.EnemyMove(MoveContext{})
	testutil.AssertEqual(t, "failing hook", ok, false)

	odd := newTestEngine(t, `function enemy_move(ctx) return "sideways" end`)
	_, move, ok := odd.EnemyMove(MoveContext{})
	testutil.AssertEqual(t, "bad direction handled", ok, true)
	testutil.AssertEqual(t, "bad direction stays", move, false)

	deferring := newTestEngine(t, `function enemy_move(ctx) return false end`)
	_, _, ok = deferring.EnemyMove(MoveContext{})
	testutil.AssertEqual(t, "deferred to patrol", ok, false)
}

func TestOnAffected(t *testing.T) {
	e := newTestEngine(t, patrolScript)
	e.OnAffected(AffectedEvent{Name: "e1", Affected: true})
	e.OnAffected(AffectedEvent{Name: "e1", Affected: false})
	e.OnAffected(AffectedEvent{Name: "e2", Affected: true})

	testutil.AssertEqual(t, "seen", int(lua.LVAsNumber(e.vm.GetGlobal("seen"))), 2)
}

func TestIsSolved(t *testing.T) {
	e := newTestEngine(t, patrolScript)

	solved, ok := e.IsSolved(SolveContext{OnGoal: true, Enemies: 2, Harmonized: 2})
	testutil.AssertEqual(t, "ok", ok, true)
	testutil.AssertEqual(t, "solved", solved, true)

	solved, _ = e.IsSolved(SolveContext{OnGoal: true, Enemies: 2, Harmonized: 1})
	testutil.AssertEqual(t, "partial", solved, false)

	_, ok = newTestEngine(t, "").IsSolved(SolveContext{})
	testutil.AssertEqual(t, "missing", ok, false)
}

func TestLevelInt(t *testing.T) {
	e := newTestEngine(t, patrolScript)
	testutil.AssertEqual(t, "defined", e.LevelInt("patience", 0), 3)
	testutil.AssertEqual(t, "default", e.LevelInt("missing", 7), 7)
	testutil.AssertEqual(t, "has", e.Has("enemy_move"), true)
	testutil.AssertEqual(t, "has not", e.Has("nope"), false)
}

func TestNewEngine_LoadsCoreAndLevel(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, src string) {
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("core/base.lua", `function is_solved(ctx) return false end`)
	write("levels/first.lua", `function is_solved(ctx) return true end`)

	e, err := NewEngine(dir, "first", nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	solved, ok := e.IsSolved(SolveContext{})
	testutil.AssertEqual(t, "ok", ok, true)
	testutil.AssertEqual(t, "level overrides core", solved, true)

	if _, err := NewEngineFromSource("function (", nil); err == nil {
		t.Error("expected syntax error")
	}
}
