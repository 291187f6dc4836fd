package system

import (
	"slices"
	"time"
)

// Runner drives one simulation step per Tick: every registered system runs
// once, lower phases first. Systems sharing a phase run in registration
// order, which is how the index commit is kept ahead of the respawns that
// read it.
type Runner struct {
	systems []System // kept ordered by phase on Register
	ticks   uint64
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
	}
}

// Register inserts s after every system of the same or an earlier phase.
func (r *Runner) Register(s System) {
	at := len(r.systems)
	if i := slices.IndexFunc(r.systems, func(o System) bool { return o.Phase() > s.Phase() }); i >= 0 {
		at = i
	}
	r.systems = slices.Insert(r.systems, at, s)
}

// Tick runs one step with the given delta.
func (r *Runner) Tick(dt time.Duration) {
	for _, s := range r.systems {
		s.Update(dt)
	}
	r.ticks++
}

// Ticks returns the number of completed ticks.
func (r *Runner) Ticks() uint64 { return r.ticks }
