package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/entityindex/internal/core/event"
	coresys "github.com/l1jgo/entityindex/internal/core/system"
	"github.com/l1jgo/entityindex/internal/spatial"
)

// StatsSystem logs a summary of the index every `every` ticks. Phase 3 (Output).
type StatsSystem struct {
	registry *spatial.Registry
	bus      *event.Bus
	every    int
	ticks    int
	log      *zap.Logger
}

func NewStatsSystem(reg *spatial.Registry, bus *event.Bus, every int, log *zap.Logger) *StatsSystem {
	return &StatsSystem{registry: reg, bus: bus, every: every, log: log}
}

func (s *StatsSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *StatsSystem) Update(_ time.Duration) {
	if s.every <= 0 {
		return
	}
	s.ticks++
	if s.ticks < s.every {
		return
	}
	s.ticks = 0
	st := s.registry.Stats()
	s.log.Info("index stats",
		zap.Int("entities", st.Entities),
		zap.Int("pending", st.Pending),
		zap.Int("occupied_cells", st.OccupiedCells),
		zap.Int("pooled_buffers", st.PooledBuffers),
		zap.Int("anomalies", st.Anomalies),
		zap.Int("queued_events", s.bus.Pending()))
}
