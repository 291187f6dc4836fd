package system

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/entityindex/internal/core/event"
	coresys "github.com/l1jgo/entityindex/internal/core/system"
	"github.com/l1jgo/entityindex/internal/data"
	"github.com/l1jgo/entityindex/internal/spatial"
)

// placementAttempts bounds the random tries for a free spot per entity.
const placementAttempts = 16

// BehaviorSource resolves a behaviour name from the spawn list.
type BehaviorSource interface {
	Behavior(name string) (spatial.Behavior, error)
}

type respawn struct {
	entry *data.SpawnEntry
	ticks int
}

// SpawnSystem creates entities from the spawn list and brings depleted
// resource nodes back after a delay, once a free spot turns up in their
// spawn area. Phase 2 (PostUpdate).
type SpawnSystem struct {
	registry  *spatial.Registry
	bus       *event.Bus
	behaviors BehaviorSource
	rng       *rand.Rand
	delay     int
	log       *zap.Logger

	origin  map[spatial.Handle]*data.SpawnEntry
	pending []respawn
}

func NewSpawnSystem(reg *spatial.Registry, bus *event.Bus, behaviors BehaviorSource, delay int, seed int64, log *zap.Logger) *SpawnSystem {
	s := &SpawnSystem{
		registry:  reg,
		bus:       bus,
		behaviors: behaviors,
		rng:       rand.New(rand.NewSource(seed)),
		delay:     delay,
		log:       log,
		origin:    make(map[spatial.Handle]*data.SpawnEntry),
	}
	event.Subscribe(bus, s.onEntityDied)
	event.Subscribe(bus, s.onEntityDropped)
	return s
}

func (s *SpawnSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

// SpawnAll creates every entity of the spawn list and returns how many were
// placed. Entries whose area has no room are logged and skipped.
func (s *SpawnSystem) SpawnAll(spawns []data.SpawnEntry) int {
	placed := 0
	for i := range spawns {
		entry := &spawns[i]
		for n := 0; n < entry.Count; n++ {
			if s.spawn(entry) {
				placed++
			} else {
				s.log.Warn("no room for spawn", zap.String("spawn", entry.Name))
				break
			}
		}
	}
	return placed
}

func (s *SpawnSystem) spawn(entry *data.SpawnEntry) bool {
	pos, ok := s.findSpot(entry)
	if !ok {
		return false
	}
	var e *spatial.Entity
	switch entry.EntityKind() {
	case spatial.KindResource:
		e = s.registry.CreateResource(pos, entry.Size())
	default:
		var b spatial.Behavior
		if entry.Behavior != "" && s.behaviors != nil {
			var err error
			if b, err = s.behaviors.Behavior(entry.Behavior); err != nil {
				s.log.Error("unknown behavior", zap.String("spawn", entry.Name), zap.Error(err))
			}
		}
		e = s.registry.CreateUnit(pos, entry.Size(), entry.IsSolid(), b)
	}
	s.origin[e.Handle()] = entry
	event.Emit(s.bus, event.EntitySpawned{Handle: e.Handle(), Kind: e.Kind(), Spawn: entry.Name})
	return true
}

// findSpot tries random integer positions inside the entry's spawn area.
func (s *SpawnSystem) findSpot(entry *data.SpawnEntry) (spatial.Vec2, bool) {
	world := s.registry.World()
	for i := 0; i < placementAttempts; i++ {
		pos := spatial.Vec2{
			X: entry.X + float64(s.rng.Intn(entry.RandomX+1)),
			Y: entry.Y + float64(s.rng.Intn(entry.RandomY+1)),
		}
		region := spatial.Region{X: int(pos.X), Y: int(pos.Y), W: entry.Width, H: entry.Height}
		if entry.IsSolid() {
			if s.registry.CanPlace(region) {
				return pos, true
			}
			continue
		}
		if region.Within(spatial.Region{W: world.W, H: world.H}) {
			return pos, true
		}
	}
	return spatial.Vec2{}, false
}

func (s *SpawnSystem) onEntityDied(ev event.EntityDied) { s.forget(ev.Handle) }

// A resource depleted in the frame it spawned respawns like any other.
func (s *SpawnSystem) onEntityDropped(ev event.EntityDropped) { s.forget(ev.Handle) }

func (s *SpawnSystem) forget(h spatial.Handle) {
	entry, ok := s.origin[h]
	if !ok {
		return
	}
	delete(s.origin, h)
	if entry.EntityKind() == spatial.KindResource && entry.Respawn {
		s.pending = append(s.pending, respawn{entry: entry, ticks: s.delay})
	}
}

func (s *SpawnSystem) Update(_ time.Duration) {
	kept := s.pending[:0]
	for _, r := range s.pending {
		if r.ticks > 0 {
			r.ticks--
		}
		if r.ticks > 0 || !s.spawn(r.entry) {
			kept = append(kept, r)
		}
	}
	clear(s.pending[len(kept):])
	s.pending = kept
}

// Tracked returns the number of spawned entities not yet reported dead.
func (s *SpawnSystem) Tracked() int { return len(s.origin) }

// PendingRespawns returns the number of resources waiting to come back.
func (s *SpawnSystem) PendingRespawns() int { return len(s.pending) }
