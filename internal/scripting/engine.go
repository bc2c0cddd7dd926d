package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/prismgrid/prismgrid/internal/grid"
)

// Engine wraps a single gopher-lua VM for level logic.
// Single-goroutine access only (simulation loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads the shared scripts in
// scriptsDir/core followed by scriptsDir/levels/<levelID>.lua if present.
func NewEngine(scriptsDir, levelID string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)

	if err := e.loadDir(filepath.Join(scriptsDir, "core")); err != nil {
		e.vm.Close()
		return nil, fmt.Errorf("load core scripts: %w", err)
	}

	levelPath := filepath.Join(scriptsDir, "levels", levelID+".lua")
	if _, err := os.Stat(levelPath); err == nil {
		if err := e.vm.DoFile(levelPath); err != nil {
			e.vm.Close()
			return nil, fmt.Errorf("load level script %s: %w", levelPath, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", levelPath))
	}
	return e, nil
}

// NewEngineFromSource builds an engine from a single chunk of Lua.
func NewEngineFromSource(src string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	if err := e.vm.DoString(src); err != nil {
		e.vm.Close()
		return nil, fmt.Errorf("load lua source: %w", err)
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	vm.SetGlobal("log", vm.NewFunction(e.luaLog))
	return e
}

// luaLog lets scripts write to the host logger: log("message").
func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

// loadDir loads all .lua files in a directory in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Has reports whether a global function named name is defined.
func (e *Engine) Has(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// MoveContext is what enemy_move sees about the enemy and its surroundings.
type MoveContext struct {
	ID       uint64
	Name     string
	X, Z     int
	Turn     uint64
	Step     int // patrol steps taken so far
	PlayerX  int
	PlayerZ  int
	Affected bool
}

// EnemyMove calls enemy_move(ctx). The script returns a direction name to
// move, nil to stay, or false to defer. ok is false when the hook is
// missing, failed or deferred, and the caller falls back to the patrol.
func (e *Engine) EnemyMove(ctx MoveContext) (dir grid.Direction, move bool, ok bool) {
	fn, found := e.vm.GetGlobal("enemy_move").(*lua.LFunction)
	if !found {
		return grid.North, false, false
	}

	t := e.vm.NewTable()
	t.RawSetString("id", lua.LNumber(ctx.ID))
	t.RawSetString("name", lua.LString(ctx.Name))
	t.RawSetString("x", lua.LNumber(ctx.X))
	t.RawSetString("z", lua.LNumber(ctx.Z))
	t.RawSetString("turn", lua.LNumber(ctx.Turn))
	t.RawSetString("step", lua.LNumber(ctx.Step))
	t.RawSetString("player_x", lua.LNumber(ctx.PlayerX))
	t.RawSetString("player_z", lua.LNumber(ctx.PlayerZ))
	t.RawSetString("affected", lua.LBool(ctx.Affected))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua enemy_move error", zap.Error(err))
		return grid.North, false, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	if result == lua.LNil {
		return grid.North, false, true
	}
	if result == lua.LFalse {
		return grid.North, false, false
	}
	d, err := grid.ParseDirection(lua.LVAsString(result))
	if err != nil {
		e.log.Warn("lua enemy_move returned bad direction",
			zap.String("enemy", ctx.Name),
			zap.String("value", result.String()))
		return grid.North, false, true
	}
	return d, true, true
}

// AffectedEvent is passed to on_affected when an entity changes state.
type AffectedEvent struct {
	ID       uint64
	Name     string
	Kind     string
	Affected bool
}

// OnAffected calls on_affected(ev) if the script defines it.
func (e *Engine) OnAffected(ev AffectedEvent) {
	fn, found := e.vm.GetGlobal("on_affected").(*lua.LFunction)
	if !found {
		return
	}
	t := e.vm.NewTable()
	t.RawSetString("id", lua.LNumber(ev.ID))
	t.RawSetString("name", lua.LString(ev.Name))
	t.RawSetString("kind", lua.LString(ev.Kind))
	t.RawSetString("affected", lua.LBool(ev.Affected))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua on_affected error", zap.Error(err))
	}
}

// SolveContext summarises the board for is_solved.
type SolveContext struct {
	Turn       uint64
	PlayerX    int
	PlayerZ    int
	OnGoal     bool
	Enemies    int
	Harmonized int
}

// IsSolved calls is_solved(ctx). ok is false when the hook is missing or
// failed, and the built-in rule applies.
func (e *Engine) IsSolved(ctx SolveContext) (solved bool, ok bool) {
	fn, found := e.vm.GetGlobal("is_solved").(*lua.LFunction)
	if !found {
		return false, false
	}
	t := e.vm.NewTable()
	t.RawSetString("turn", lua.LNumber(ctx.Turn))
	t.RawSetString("player_x", lua.LNumber(ctx.PlayerX))
	t.RawSetString("player_z", lua.LNumber(ctx.PlayerZ))
	t.RawSetString("on_goal", lua.LBool(ctx.OnGoal))
	t.RawSetString("enemies", lua.LNumber(ctx.Enemies))
	t.RawSetString("harmonized", lua.LNumber(ctx.Harmonized))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua is_solved error", zap.Error(err))
		return false, false
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return lua.LVAsBool(result), true
}

// lInt reads an integer field from a Lua table.
func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

// LevelInt returns an integer field of the LEVEL table scripts may define,
// used for per-level tuning such as patrol offsets.
func (e *Engine) LevelInt(key string, def int) int {
	t, ok := e.vm.GetGlobal("LEVEL").(*lua.LTable)
	if !ok || t.RawGetString(key) == lua.LNil {
		return def
	}
	return lInt(t, key)
}

func (e *Engine) Close() {
	e.vm.Close()
}
