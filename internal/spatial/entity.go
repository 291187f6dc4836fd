package spatial

import (
	"fmt"
	"time"
)

// Handle identifies an entity for its whole lifetime. Handles are compared
// for equality only; the Registry orders its table by the numeric value.
type Handle uint64

// HandleFunc produces a fresh, unique Handle on every call.
type HandleFunc func() Handle

// Kind distinguishes mobile units from static resource nodes.
type Kind uint8

const (
	KindUnit Kind = iota
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindUnit:
		return "unit"
	case KindResource:
		return "resource"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Behavior advances an entity by one simulation step. Implementations move
// the entity through SetPosition and end it through Kill.
type Behavior interface {
	Step(e *Entity, dt time.Duration)
}

// BehaviorFunc adapts a plain function to Behavior.
type BehaviorFunc func(e *Entity, dt time.Duration)

func (f BehaviorFunc) Step(e *Entity, dt time.Duration) { f(e, dt) }

// Entity is a dynamic object in the world. Entities are created by a
// Registry and hold no reference back to it: position and liveness changes
// are reported through the hooks the Registry installs at creation.
type Entity struct {
	handle   Handle
	kind     Kind
	pos      Vec2
	size     Size
	solid    bool
	alive    bool
	behavior Behavior

	// zonePos is the position the zone index last stored the entity at.
	zonePos Vec2

	onMoved func(e *Entity, old Vec2)
	onDied  func(e *Entity)
}

func (e *Entity) Handle() Handle     { return e.handle }
func (e *Entity) Kind() Kind         { return e.kind }
func (e *Entity) Position() Vec2     { return e.pos }
func (e *Entity) Size() Size         { return e.size }
func (e *Entity) Solid() bool        { return e.solid }
func (e *Entity) Alive() bool        { return e.alive }
func (e *Entity) Behavior() Behavior { return e.behavior }

// Bounds returns the entity's bounding rectangle at its current position.
func (e *Entity) Bounds() Rect { return e.BoundsAt(e.pos) }

// BoundsAt returns the bounding rectangle the entity would have at pos.
func (e *Entity) BoundsAt(pos Vec2) Rect {
	return Rect{X: pos.X, Y: pos.Y, W: float64(e.size.W), H: float64(e.size.H)}
}

// Region returns the grid cells the entity covers at its current position.
func (e *Entity) Region() Region { return e.RegionAt(e.pos) }

// RegionAt returns the grid cells the entity would cover at pos.
func (e *Entity) RegionAt(pos Vec2) Region {
	p := pos.Round()
	return Region{X: p.X, Y: p.Y, W: e.size.W, H: e.size.H}
}

// Center returns the midpoint of the bounding rectangle.
func (e *Entity) Center() Vec2 { return centerAt(e.pos, e.size) }

func centerAt(pos Vec2, size Size) Vec2 {
	return Vec2{X: pos.X + float64(size.W)/2, Y: pos.Y + float64(size.H)/2}
}

// SetPosition moves the entity and raises the moved notification. Setting
// the current position again is a no-op.
func (e *Entity) SetPosition(pos Vec2) {
	if pos == e.pos {
		return
	}
	old := e.pos
	e.pos = pos
	if e.onMoved != nil {
		e.onMoved(e, old)
	}
}

// Translate moves the entity by d.
func (e *Entity) Translate(d Vec2) {
	e.SetPosition(e.pos.Add(d))
}

// Kill marks the entity dead and raises the died notification. It returns
// false, and notifies nobody, if the entity was already dead.
func (e *Entity) Kill() bool {
	if !e.alive {
		return false
	}
	e.alive = false
	if e.onDied != nil {
		e.onDied(e)
	}
	return true
}

func (e *Entity) advance(dt time.Duration) {
	if e.behavior != nil {
		e.behavior.Step(e, dt)
	}
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s#%d@(%.2f,%.2f)", e.kind, e.handle, e.pos.X, e.pos.Y)
}
