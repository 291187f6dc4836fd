package scripting

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/entityindex/internal/spatial"
)

// World is the part of the entity index scripts may query.
type World interface {
	IsFree(p spatial.Point) bool
	CanMove(e *spatial.Entity, pos spatial.Vec2) bool
	InCircle(c spatial.Circle) iter.Seq[*spatial.Entity]
}

// Engine wraps a single gopher-lua VM running unit behaviours.
// Single-goroutine access only (simulation loop).
type Engine struct {
	vm     *lua.LState
	log    *zap.Logger
	world  World
	errors int
}

// NewEngine creates a Lua engine and loads every script under scriptsDir
// and its ai/ subdirectory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	for _, dir := range []string{scriptsDir, filepath.Join(scriptsDir, "ai")} {
		if err := e.loadDir(dir); err != nil {
			e.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	e := &Engine{vm: vm, log: log}
	vm.SetGlobal("is_free", vm.NewFunction(e.luaIsFree))
	vm.SetGlobal("count_near", vm.NewFunction(e.luaCountNear))
	return e
}

// loadDir loads all .lua files in a directory. A missing directory is not
// an error.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
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

// DoString runs a chunk of Lua source in the engine.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// Bind attaches the world that is_free and count_near query.
func (e *Engine) Bind(w World) { e.world = w }

// Errors returns the number of failed behaviour calls so far.
func (e *Engine) Errors() int { return e.errors }

func (e *Engine) Close() { e.vm.Close() }

func (e *Engine) luaIsFree(L *lua.LState) int {
	p := spatial.Point{X: L.CheckInt(1), Y: L.CheckInt(2)}
	L.Push(lua.LBool(e.world != nil && e.world.IsFree(p)))
	return 1
}

func (e *Engine) luaCountNear(L *lua.LState) int {
	c := spatial.Circle{
		Center: spatial.Vec2{X: float64(L.CheckNumber(1)), Y: float64(L.CheckNumber(2))},
		Radius: float64(L.CheckNumber(3)),
	}
	n := 0
	if e.world != nil {
		for range e.world.InCircle(c) {
			n++
		}
	}
	L.Push(lua.LNumber(n))
	return 1
}

// Behavior returns a spatial.Behavior that calls the Lua global name once
// per step. The function receives a unit table (id, x, y, w, h, dt) and
// returns a table with optional dx, dy and kill fields.
func (e *Engine) Behavior(name string) (spatial.Behavior, error) {
	fn := e.vm.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("lua function %s not found", name)
	}
	return &unitBehavior{engine: e, name: name, fn: fn, unit: e.vm.NewTable()}, nil
}

type unitBehavior struct {
	engine *Engine
	name   string
	fn     lua.LValue
	unit   *lua.LTable // reused every call
}

func (b *unitBehavior) Step(ent *spatial.Entity, dt time.Duration) {
	e := b.engine
	pos := ent.Position()
	size := ent.Size()
	b.unit.RawSetString("id", lua.LNumber(ent.Handle()))
	b.unit.RawSetString("x", lua.LNumber(pos.X))
	b.unit.RawSetString("y", lua.LNumber(pos.Y))
	b.unit.RawSetString("w", lua.LNumber(size.W))
	b.unit.RawSetString("h", lua.LNumber(size.H))
	b.unit.RawSetString("dt", lua.LNumber(dt.Seconds()))

	if err := e.vm.CallByParam(lua.P{
		Fn:      b.fn,
		NRet:    1,
		Protect: true,
	}, b.unit); err != nil {
		e.errors++
		e.log.Error("lua behavior error", zap.String("fn", b.name), zap.Error(err))
		return
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return // nil: stand still
	}
	if lua.LVAsBool(rt.RawGetString("kill")) {
		ent.Kill()
		return
	}
	d := spatial.Vec2{
		X: float64(lua.LVAsNumber(rt.RawGetString("dx"))),
		Y: float64(lua.LVAsNumber(rt.RawGetString("dy"))),
	}
	if d == (spatial.Vec2{}) {
		return
	}
	to := pos.Add(d)
	if e.world == nil || e.world.CanMove(ent, to) {
		ent.SetPosition(to)
	}
}
