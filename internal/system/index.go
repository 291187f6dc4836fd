package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/entityindex/internal/core/event"
	"github.com/l1jgo/entityindex/internal/core/handle"
	coresys "github.com/l1jgo/entityindex/internal/core/system"
	"github.com/l1jgo/entityindex/internal/spatial"
)

// IndexSystem drives the entity registry: one Update per tick, which commits
// the frame's deferred changes and advances every live entity. Deaths the
// and drops the commit surfaces are re-emitted on the bus, and their handles
// go back to the pool once the event is delivered. Phase 1 (Update).
type IndexSystem struct {
	registry *spatial.Registry
	verify   bool
	failures int
	log      *zap.Logger
}

func NewIndexSystem(reg *spatial.Registry, bus *event.Bus, ids *handle.Pool, verify bool, log *zap.Logger) *IndexSystem {
	s := &IndexSystem{registry: reg, verify: verify, log: log}
	reg.OnDeath(func(_ *spatial.Registry, e *spatial.Entity) {
		event.Emit(bus, event.EntityDied{
			Handle:   e.Handle(),
			Kind:     e.Kind(),
			Position: e.Position(),
			Size:     e.Size(),
		})
	})
	reg.OnDrop(func(_ *spatial.Registry, e *spatial.Entity) {
		event.Emit(bus, event.EntityDropped{Handle: e.Handle(), Kind: e.Kind()})
	})
	if ids != nil {
		event.Subscribe(bus, func(ev event.EntityDied) {
			ids.ReleaseHandle(ev.Handle)
		})
		event.Subscribe(bus, func(ev event.EntityDropped) {
			ids.ReleaseHandle(ev.Handle)
		})
	}
	return s
}

func (s *IndexSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *IndexSystem) Update(dt time.Duration) {
	s.registry.Update(dt)
	if !s.verify {
		return
	}
	if err := s.registry.Verify(); err != nil {
		s.failures++
		s.log.Error("entity index inconsistent", zap.Error(err))
	}
}

// Failures returns how many ticks failed verification.
func (s *IndexSystem) Failures() int { return s.failures }
