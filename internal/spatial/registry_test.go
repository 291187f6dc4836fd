package spatial

import (
	"math/rand"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRegistry_CreateOccupiesGrid(t *testing.T) {
	r := newTestRegistry(t, 10, 10)
	x := r.CreateUnit(Vec2{2, 2}, Size{1, 1}, true, nil)

	if r.IsFree(Point{2, 2}) {
		t.Fatal("cell (2,2) should be occupied")
	}
	if r.EntityAt(Point{2, 2}) != x {
		t.Fatal("EntityAt(2,2) should be the new unit")
	}
	if _, ok := r.FromHandle(x.Handle()); ok {
		t.Fatal("entity must not be visible in the handle table before commit")
	}
	r.Update(0)
	if got, ok := r.FromHandle(x.Handle()); !ok || got != x {
		t.Fatal("entity should be registered after commit")
	}
}

func TestRegistry_NonSolidSkipsGrid(t *testing.T) {
	r := newTestRegistry(t, 10, 10)
	r.CreateUnit(Vec2{2, 2}, Size{1, 1}, false, nil)
	r.Update(0)
	if !r.IsFree(Point{2, 2}) {
		t.Fatal("non-solid unit must not occupy the grid")
	}
	if n := len(slices.Collect(r.InArea(Rect{X: 2, Y: 2, W: 1, H: 1}))); n != 1 {
		t.Fatalf("non-solid unit should still be in the zone index, got %d", n)
	}
}

func TestRegistry_GridImmediateZoneDeferred(t *testing.T) {
	r := newTestRegistry(t, 10, 10)
	x := r.CreateUnit(Vec2{2, 2}, Size{1, 1}, true, nil)
	r.Update(0)

	x.SetPosition(Vec2{2, 3})
	if r.EntityAt(Point{2, 2}) != nil {
		t.Fatal("old cell still occupied after move")
	}
	if r.EntityAt(Point{2, 3}) != x {
		t.Fatal("new cell not occupied after move")
	}
	area := Rect{X: 2, Y: 3, W: 1, H: 1}
	if n := len(slices.Collect(r.InArea(area))); n != 0 {
		t.Fatalf("zone index reflected the move before commit (%d results)", n)
	}
	if n := len(slices.Collect(r.InArea(Rect{X: 2, Y: 2, W: 1, H: 1}))); n != 1 {
		t.Fatalf("old area should still report the unit before commit, got %d", n)
	}

	r.Update(0)
	got := slices.Collect(r.InArea(area))
	if len(got) != 1 || got[0] != x {
		t.Fatalf("InArea after commit = %v, want the moved unit", got)
	}
	if err := r.Verify(); err != nil {
		t.Fatal(err)
	}
}

func TestRegistry_MultiHopMoveCommitsOnce(t *testing.T) {
	r := newTestRegistry(t, 80, 80)
	x := r.CreateUnit(Vec2{1, 1}, Size{1, 1}, true, nil)
	r.Update(0)

	x.SetPosition(Vec2{30, 30})
	x.SetPosition(Vec2{50, 1})
	x.SetPosition(Vec2{70, 70})
	c, ok := r.changes.lookup(x.Handle())
	if !ok || c.start != (Vec2{1, 1}) {
		t.Fatalf("frame start position not kept: %+v", c)
	}
	r.Update(0)
	if got := r.zones.zonesOf(x); !slices.Equal(got, []ZoneIndex{{7, 7}}) {
		t.Fatalf("zones after multi-hop = %v", got)
	}
	if err := r.Verify(); err != nil {
		t.Fatal(err)
	}
}

func TestRegistry_DeathNotifiedAtCommit(t *testing.T) {
	r := newTestRegistry(t, 10, 10)
	x := r.CreateUnit(Vec2{4, 4}, Size{2, 2}, true, nil)
	r.Update(0)

	var died []*Entity
	r.OnDeath(func(reg *Registry, e *Entity) {
		if reg != r {
			t.Error("death notification from a different registry")
		}
		if _, ok := reg.FromHandle(e.Handle()); ok {
			t.Error("dead entity still registered when notified")
		}
		died = append(died, e)
	})

	if !x.Kill() {
		t.Fatal("Kill on a live entity returned false")
	}
	if !r.IsFree(Point{4, 4}) || !r.IsFree(Point{5, 5}) {
		t.Fatal("grid not cleared at death")
	}
	if len(died) != 0 {
		t.Fatal("death surfaced before commit")
	}
	if _, ok := r.FromHandle(x.Handle()); !ok {
		t.Fatal("entity left the handle table before commit")
	}

	r.Update(0)
	if len(died) != 1 || died[0] != x {
		t.Fatalf("died = %v, want [x]", died)
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d after death commit", r.Len())
	}
	if n := len(slices.Collect(r.InArea(r.Bounds()))); n != 0 {
		t.Fatalf("dead entity still in zone index (%d)", n)
	}
}

func TestRegistry_DeathAfterMove(t *testing.T) {
	r := newTestRegistry(t, 80, 80)
	x := r.CreateUnit(Vec2{1, 1}, Size{1, 1}, true, nil)
	r.Update(0)

	x.SetPosition(Vec2{60, 60})
	x.Kill()
	r.Update(0)
	for i := range r.zones.buckets {
		if r.zones.buckets[i].Len() != 0 {
			t.Fatalf("bucket %d still holds an entity", i)
		}
	}
	if r.grid.Occupied() != 0 {
		t.Fatalf("grid holds %d cells", r.grid.Occupied())
	}
}

func TestRegistry_RepeatedDeathAnomaly(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewRegistry(Size{W: 20, H: 20}, counter(), zap.New(core))

	a := r.CreateUnit(Vec2{1, 1}, Size{1, 1}, true, nil)
	b := r.CreateUnit(Vec2{5, 5}, Size{1, 1}, true, nil)
	r.Update(0)

	var died []Handle
	r.OnDeath(func(_ *Registry, e *Entity) { died = append(died, e.Handle()) })

	a.Kill()
	if a.Kill() {
		t.Fatal("second Kill should report the entity was already dead")
	}
	// A duplicate death notification reaching the registry is logged and ignored.
	r.entityDied(a)

	c := r.CreateUnit(Vec2{9, 9}, Size{1, 1}, true, nil)
	c.Kill()
	c.Kill()

	r.Update(0)

	if got := handles(slices.Collect(r.Entities())); !slices.Equal(got, []Handle{b.Handle()}) {
		t.Fatalf("entities after commit = %v, want [%d]", got, b.Handle())
	}
	if !slices.Equal(died, []Handle{a.Handle()}) {
		t.Fatalf("deaths = %v, want only a", died)
	}
	if _, ok := r.FromHandle(c.Handle()); ok {
		t.Fatal("entity created and killed in one frame became visible")
	}
	if n := logs.FilterMessage("entity died twice in one frame").Len(); n != 1 {
		t.Fatalf("repeated death logged %d times", n)
	}
	if n := logs.FilterMessage("entity added and removed in the same frame, dropped").Len(); n != 1 {
		t.Fatalf("added+removed anomaly logged %d times", n)
	}
	if s := r.Stats(); s.Anomalies != 2 || s.Pending != 0 || s.Entities != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if err := r.Verify(); err != nil {
		t.Fatal(err)
	}
}

func TestRegistry_ForgottenEntityStopsNotifying(t *testing.T) {
	world := Rect{W: 80, H: 80}
	r := newTestRegistry(t, 80, 80)
	var died []Handle
	r.OnDeath(func(_ *Registry, e *Entity) { died = append(died, e.Handle()) })

	ghost := r.CreateUnit(Vec2{1, 1}, Size{1, 1}, false, nil)
	rock := r.CreateResource(Vec2{3, 3}, Size{2, 2})
	r.Update(0)

	ghost.Kill()
	rock.Kill()
	r.Update(0)
	if len(died) != 2 {
		t.Fatalf("deaths = %v", died)
	}

	// Collaborators may keep the pointer handed to OnDeath.
	ghost.SetPosition(Vec2{50, 50})
	rock.SetPosition(Vec2{60, 60})
	if s := r.Stats(); s.Pending != 0 {
		t.Fatalf("forgotten entities recorded %d changes", s.Pending)
	}
	r.Update(0)

	if n := len(slices.Collect(r.InArea(world))); n != 0 {
		t.Fatalf("InArea returned %d forgotten entities", n)
	}
	if s := r.Stats(); s.Entities != 0 || s.Pending != 0 || s.OccupiedCells != 0 {
		t.Fatalf("stats = %+v", s)
	}
	if err := r.Verify(); err != nil {
		t.Fatal(err)
	}
}

func TestRegistry_DroppedEntityStopsNotifying(t *testing.T) {
	world := Rect{W: 80, H: 80}
	r := newTestRegistry(t, 80, 80)
	var died, dropped []Handle
	r.OnDeath(func(_ *Registry, e *Entity) { died = append(died, e.Handle()) })
	r.OnDrop(func(_ *Registry, e *Entity) { dropped = append(dropped, e.Handle()) })

	e := r.CreateUnit(Vec2{1, 1}, Size{1, 1}, true, nil)
	e.Kill()
	r.Update(0)
	if len(died) != 0 || !slices.Equal(dropped, []Handle{e.Handle()}) {
		t.Fatalf("died = %v, dropped = %v", died, dropped)
	}

	e.SetPosition(Vec2{50, 50})
	if s := r.Stats(); s.Pending != 0 {
		t.Fatalf("dropped entity recorded %d changes", s.Pending)
	}
	r.Update(0)

	if n := len(slices.Collect(r.InArea(world))); n != 0 {
		t.Fatalf("InArea returned %d dropped entities", n)
	}
	if len(dropped) != 1 {
		t.Fatalf("drop reported %d times", len(dropped))
	}
	if s := r.Stats(); s.Entities != 0 || s.Pending != 0 || s.OccupiedCells != 0 {
		t.Fatalf("stats = %+v", s)
	}
	if err := r.Verify(); err != nil {
		t.Fatal(err)
	}
}

func TestRegistry_UpdateAdvancesCommittedLiveEntities(t *testing.T) {
	r := newTestRegistry(t, 20, 20)
	steps := map[Handle]int{}
	count := BehaviorFunc(func(e *Entity, dt time.Duration) {
		if dt != 50*time.Millisecond {
			t.Errorf("dt = %v", dt)
		}
		steps[e.Handle()]++
	})

	a := r.CreateUnit(Vec2{1, 1}, Size{1, 1}, true, count)
	b := r.CreateUnit(Vec2{3, 3}, Size{1, 1}, true, count)
	r.Update(50 * time.Millisecond)

	b.Kill()
	late := r.CreateUnit(Vec2{5, 5}, Size{1, 1}, true, count)
	r.Update(50 * time.Millisecond)

	if steps[a.Handle()] != 2 {
		t.Errorf("a advanced %d times, want 2", steps[a.Handle()])
	}
	if steps[b.Handle()] != 1 {
		t.Errorf("b advanced %d times, want 1", steps[b.Handle()])
	}
	if steps[late.Handle()] != 1 {
		t.Errorf("late advanced %d times, want 1", steps[late.Handle()])
	}
}

func TestRegistry_KillDuringStepSkipsLaterEntities(t *testing.T) {
	r := newTestRegistry(t, 20, 20)
	var victim *Entity
	stepped := false
	r.CreateUnit(Vec2{1, 1}, Size{1, 1}, true, BehaviorFunc(func(*Entity, time.Duration) {
		victim.Kill()
	}))
	victim = r.CreateUnit(Vec2{3, 3}, Size{1, 1}, true, BehaviorFunc(func(*Entity, time.Duration) {
		stepped = true
	}))
	r.Update(0)
	if stepped {
		t.Fatal("entity killed earlier in the step was still advanced")
	}
	if r.Len() != 2 {
		t.Fatal("handle table changed during the step")
	}
	r.Update(0)
	if r.Len() != 1 {
		t.Fatalf("Len = %d after the death commit", r.Len())
	}
}

func TestRegistry_SpawnDuringStepIsDeferred(t *testing.T) {
	r := newTestRegistry(t, 20, 20)
	spawned := 0
	r.CreateUnit(Vec2{1, 1}, Size{1, 1}, true, BehaviorFunc(func(e *Entity, _ time.Duration) {
		if spawned == 0 {
			r.CreateResource(Vec2{10, 10}, Size{2, 2})
			spawned++
		}
	}))
	r.Update(0)
	if r.Len() != 1 {
		t.Fatalf("Len = %d, spawned resource must wait for the next commit", r.Len())
	}
	if r.EntityAt(Point{11, 11}) == nil {
		t.Fatal("spawned resource must occupy the grid immediately")
	}
	r.Update(0)
	if r.Len() != 2 {
		t.Fatalf("Len = %d after commit", r.Len())
	}
}

func TestRegistry_LaterEntitiesSeeEarlierMoves(t *testing.T) {
	r := newTestRegistry(t, 10, 10)
	step := func(dx float64) Behavior {
		return BehaviorFunc(func(e *Entity, _ time.Duration) {
			to := e.Position().Add(Vec2{X: dx})
			if r.CanMove(e, to) {
				e.SetPosition(to)
			}
		})
	}
	a := r.CreateUnit(Vec2{1, 1}, Size{1, 1}, true, step(1))
	b := r.CreateUnit(Vec2{3, 1}, Size{1, 1}, true, step(-1))
	r.Update(0)

	if a.Position() != (Vec2{2, 1}) {
		t.Fatalf("a at %+v, want (2,1)", a.Position())
	}
	if b.Position() != (Vec2{3, 1}) {
		t.Fatalf("b moved into a's new cell: %+v", b.Position())
	}
}

func TestRegistry_CanMove(t *testing.T) {
	r := newTestRegistry(t, 10, 10)
	a := r.CreateUnit(Vec2{1, 1}, Size{2, 2}, true, nil)
	r.CreateResource(Vec2{4, 1}, Size{1, 1})

	if !r.CanMove(a, Vec2{2, 1}) {
		t.Error("overlapping its own cells should be allowed")
	}
	if r.CanMove(a, Vec2{3, 1}) {
		t.Error("moving onto the resource should be refused")
	}
	if r.CanMove(a, Vec2{9, 9}) {
		t.Error("moving past the world edge should be refused")
	}
	if !r.CanPlace(Region{X: 6, Y: 6, W: 2, H: 2}) || r.CanPlace(Region{X: 4, Y: 1, W: 1, H: 1}) {
		t.Error("CanPlace disagrees with the grid")
	}
}

func TestRegistry_DuplicateHandleIsViolation(t *testing.T) {
	r := NewRegistry(Size{W: 10, H: 10}, func() Handle { return 7 }, zap.NewNop())
	r.CreateUnit(Vec2{1, 1}, Size{1, 1}, true, nil)
	expectViolation(t, func() { r.CreateUnit(Vec2{5, 5}, Size{1, 1}, true, nil) })
}

// TestRegistry_RandomWalk drives a crowd of random walkers with random
// spawns and deaths and checks every index invariant after each step.
func TestRegistry_RandomWalk(t *testing.T) {
	const world = 48
	rng := rand.New(rand.NewSource(7))
	r := newTestRegistry(t, world, world)

	walk := BehaviorFunc(func(e *Entity, _ time.Duration) {
		d := Vec2{X: float64(rng.Intn(3) - 1), Y: float64(rng.Intn(3) - 1)}
		to := e.Position().Add(d)
		if r.CanMove(e, to) {
			e.SetPosition(to)
		}
	})

	live := map[Handle]*Entity{}
	for step := 0; step < 200; step++ {
		for i := 0; i < 3; i++ {
			size := Size{W: 1 + rng.Intn(2), H: 1 + rng.Intn(2)}
			pos := Vec2{X: float64(rng.Intn(world)), Y: float64(rng.Intn(world))}
			solid := rng.Intn(4) != 0
			if solid && !r.CanPlace(Region{X: int(pos.X), Y: int(pos.Y), W: size.W, H: size.H}) {
				continue
			}
			if !solid && (int(pos.X)+size.W > world || int(pos.Y)+size.H > world) {
				continue
			}
			e := r.CreateUnit(pos, size, solid, walk)
			live[e.Handle()] = e
		}
		for h, e := range live {
			if rng.Intn(10) == 0 {
				e.Kill()
				delete(live, h)
			}
		}

		r.Update(time.Millisecond)

		// Deaths during the step are not possible here, so the table must
		// match the live set exactly.
		if r.Len() != len(live) {
			t.Fatalf("step %d: table has %d entities, want %d", step, r.Len(), len(live))
		}
		for h := range live {
			if _, ok := r.FromHandle(h); !ok {
				t.Fatalf("step %d: handle %d missing", step, h)
			}
		}
		if err := r.Verify(); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
	}
}
