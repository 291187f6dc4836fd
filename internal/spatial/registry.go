package spatial

import (
	"iter"
	"slices"
	"time"

	"go.uber.org/zap"
)

// DeathFunc receives the entities forgotten by a commit.
type DeathFunc func(r *Registry, e *Entity)

// DropFunc receives entities created and killed within one frame. They were
// never committed, so no index ever returned them.
type DropFunc func(r *Registry, e *Entity)

// Registry owns every entity in the world. It keeps the occupancy grid in
// step with every move and death as it happens, and defers changes to the
// handle table and the zone index to the commit at the start of Update,
// because the handle table is what Update walks to advance entities.
//
// Within one Update the committed entity set is stable, but the grid
// reflects each entity's latest move, so grid queries issued mid-step depend
// on which entities have already moved. Accessed only from the simulation
// goroutine, no locks.
type Registry struct {
	log        *zap.Logger
	nextHandle HandleFunc

	world Size
	grid  *OccupancyGrid
	zones *ZoneManager

	entities map[Handle]*Entity
	order    []Handle // committed handles, ascending

	changes changeset
	spare   []change
	dead    []*Entity
	dropped []*Entity

	onDeath   []DeathFunc
	onDrop    []DropFunc
	anomalies int
	updating  bool
}

// NewRegistry creates an empty registry for a world of the given size.
// next is called once per created entity and must never repeat a handle
// that is still registered.
func NewRegistry(world Size, next HandleFunc, log *zap.Logger) *Registry {
	return &Registry{
		log:        log,
		nextHandle: next,
		world:      world,
		grid:       NewOccupancyGrid(world.W, world.H),
		zones:      NewZoneManager(Rect{W: float64(world.W), H: float64(world.H)}),
		entities:   make(map[Handle]*Entity, 256),
		order:      make([]Handle, 0, 256),
		changes:    newChangeset(),
		spare:      make([]change, 0, 64),
	}
}

// World returns the world size.
func (r *Registry) World() Size { return r.world }

// Bounds returns the world rectangle.
func (r *Registry) Bounds() Rect { return Rect{W: float64(r.world.W), H: float64(r.world.H)} }

// Grid exposes the occupancy grid for read-only queries.
func (r *Registry) Grid() *OccupancyGrid { return r.grid }

// Zones exposes the zone partition for read-only queries.
func (r *Registry) Zones() *ZoneManager { return r.zones }

// OnDeath subscribes fn to the deaths surfaced by each commit.
func (r *Registry) OnDeath(fn DeathFunc) {
	r.onDeath = append(r.onDeath, fn)
}

// OnDrop subscribes fn to the entities a commit discards because they were
// added and removed in the same frame. Death subscribers never see them.
func (r *Registry) OnDrop(fn DropFunc) {
	r.onDrop = append(r.onDrop, fn)
}

// CreateUnit creates a mobile entity at pos. A solid unit is written to the
// grid immediately, so its cells must be free (see CanPlace).
func (r *Registry) CreateUnit(pos Vec2, size Size, solid bool, behavior Behavior) *Entity {
	return r.create(KindUnit, pos, size, solid, behavior)
}

// CreateResource creates a static, solid resource node at pos.
func (r *Registry) CreateResource(pos Vec2, size Size) *Entity {
	return r.create(KindResource, pos, size, true, nil)
}

func (r *Registry) create(kind Kind, pos Vec2, size Size, solid bool, behavior Behavior) *Entity {
	invariant(size.W > 0 && size.H > 0, "entity size %+v must be positive", size)
	h := r.nextHandle()
	if contractChecks {
		_, known := r.entities[h]
		_, pending := r.changes.lookup(h)
		invariant(!known && !pending, "handle %d registered twice", h)
	}
	e := &Entity{
		handle:   h,
		kind:     kind,
		pos:      pos,
		size:     size,
		solid:    solid,
		alive:    true,
		behavior: behavior,
	}
	e.onMoved = r.entityMoved
	e.onDied = r.entityDied
	if solid {
		r.grid.Add(e)
	}
	r.changes.record(e).flags |= ChangeAdded
	return e
}

// CanPlace reports whether region lies inside the world and every cell of
// it is free.
func (r *Registry) CanPlace(region Region) bool {
	return r.grid.IsRegionFree(region)
}

// CanMove reports whether e could move to pos without overlapping another
// solid entity. Cells e already covers count as free.
func (r *Registry) CanMove(e *Entity, pos Vec2) bool {
	to := e.RegionAt(pos)
	if !e.solid || !e.alive {
		return to.Within(r.grid.Bounds())
	}
	if !to.Within(r.grid.Bounds()) {
		return false
	}
	for y := to.Y; y < to.Y+to.H; y++ {
		for x := to.X; x < to.X+to.W; x++ {
			if cur := r.grid.EntityAt(Point{x, y}); cur != nil && cur != e {
				return false
			}
		}
	}
	return true
}

func (r *Registry) entityMoved(e *Entity, old Vec2) {
	if e.solid && e.alive {
		from, to := e.RegionAt(old), e.Region()
		if from != to {
			r.grid.RemoveRegion(e, from)
			r.grid.AddRegion(e, to)
		}
	}
	c := r.changes.record(e)
	if !c.flags.Has(ChangeMoved) {
		c.start = old
		c.flags |= ChangeMoved
	}
}

func (r *Registry) entityDied(e *Entity) {
	c := r.changes.record(e)
	if c.flags.Has(ChangeRemoved) {
		r.anomalies++
		r.log.Warn("entity died twice in one frame", zap.Uint64("handle", uint64(e.handle)))
		return
	}
	if e.solid {
		r.grid.Remove(e)
	}
	c.flags |= ChangeRemoved
}

// Update commits the changes recorded since the previous call and then
// advances every committed entity that is still alive. The owning world
// calls it exactly once per simulation step.
func (r *Registry) Update(dt time.Duration) {
	invariant(!r.updating, "Registry.Update called re-entrantly")
	r.updating = true
	defer func() { r.updating = false }()

	r.commit()
	for _, h := range r.order {
		if e := r.entities[h]; e.alive {
			e.advance(dt)
		}
	}
}

func (r *Registry) commit() {
	pending := r.changes.take(r.spare)
	if len(pending) == 0 {
		r.spare = pending
		return
	}
	var added, moved, removed int
	for i := range pending {
		c := &pending[i]
		e := c.entity
		switch {
		case c.flags.Has(ChangeAdded) && c.flags.Has(ChangeRemoved):
			r.anomalies++
			r.log.Warn("entity added and removed in the same frame, dropped",
				zap.Uint64("handle", uint64(e.handle)),
				zap.Stringer("kind", e.kind))
			e.onMoved, e.onDied = nil, nil
			r.dropped = append(r.dropped, e)
		case c.flags.Has(ChangeAdded):
			r.insert(e)
			r.zones.Add(e)
			added++
		case c.flags.Has(ChangeRemoved):
			invariant(!c.flags.Has(ChangeMoved) || c.start == e.zonePos,
				"entity %d frame start %+v differs from zone position %+v", e.handle, c.start, e.zonePos)
			r.zones.Remove(e)
			r.erase(e)
			r.dead = append(r.dead, e)
			removed++
		case c.flags.Has(ChangeMoved):
			invariant(c.start == e.zonePos,
				"entity %d frame start %+v differs from zone position %+v", e.handle, c.start, e.zonePos)
			r.zones.UpdateZone(e, c.start)
			moved++
		}
	}
	clear(pending)
	r.spare = pending[:0]

	if len(r.dead) > 0 {
		for _, e := range r.dead {
			for _, fn := range r.onDeath {
				fn(r, e)
			}
		}
		clear(r.dead)
		r.dead = r.dead[:0]
	}
	if len(r.dropped) > 0 {
		for _, e := range r.dropped {
			for _, fn := range r.onDrop {
				fn(r, e)
			}
		}
		clear(r.dropped)
		r.dropped = r.dropped[:0]
	}
	r.log.Debug("index commit",
		zap.Int("added", added),
		zap.Int("moved", moved),
		zap.Int("removed", removed),
		zap.Int("entities", len(r.order)))
}

func (r *Registry) insert(e *Entity) {
	_, dup := r.entities[e.handle]
	invariant(!dup, "handle %d registered twice", e.handle)
	r.entities[e.handle] = e
	i, _ := slices.BinarySearch(r.order, e.handle)
	r.order = slices.Insert(r.order, i, e.handle)
}

// erase forgets e and stops observing it; moves made afterwards by whoever
// still holds the pointer no longer reach the registry.
func (r *Registry) erase(e *Entity) {
	e.onMoved, e.onDied = nil, nil
	delete(r.entities, e.handle)
	if i, ok := slices.BinarySearch(r.order, e.handle); ok {
		r.order = slices.Delete(r.order, i, i+1)
	}
}

// FromHandle returns the committed entity with handle h.
func (r *Registry) FromHandle(h Handle) (*Entity, bool) {
	e, ok := r.entities[h]
	return e, ok
}

// Len returns the number of committed entities.
func (r *Registry) Len() int { return len(r.order) }

// Entities yields the committed entities in handle order.
func (r *Registry) Entities() iter.Seq[*Entity] {
	return func(yield func(*Entity) bool) {
		for _, h := range r.order {
			if !yield(r.entities[h]) {
				return
			}
		}
	}
}

// InArea yields the committed entities whose centre lies in rect.
func (r *Registry) InArea(rect Rect) iter.Seq[*Entity] { return r.zones.InArea(rect) }

// InCircle yields the committed entities whose centre lies in c.
func (r *Registry) InCircle(c Circle) iter.Seq[*Entity] { return r.zones.InCircle(c) }

// EntityAt returns the solid entity occupying cell p, or nil.
func (r *Registry) EntityAt(p Point) *Entity { return r.grid.EntityAt(p) }

// IsFree reports whether cell p is inside the world and unoccupied.
func (r *Registry) IsFree(p Point) bool { return r.grid.IsFree(p) }

// Stats is a point-in-time summary of the index.
type Stats struct {
	Entities      int
	Pending       int
	OccupiedCells int
	PooledBuffers int
	Anomalies     int
}

func (r *Registry) Stats() Stats {
	return Stats{
		Entities:      len(r.order),
		Pending:       r.changes.len(),
		OccupiedCells: r.grid.Occupied(),
		PooledBuffers: r.zones.pool.Cached(),
		Anomalies:     r.anomalies,
	}
}
