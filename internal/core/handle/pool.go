// Package handle issues the entity handles the spatial registry is built
// with. A Pool's Generator is passed to spatial.NewRegistry as its
// HandleFunc, and handles come back to the pool once the registry reports
// the entity dead or dropped.
package handle

import "github.com/l1jgo/entityindex/internal/spatial"

// ID packs a slot index (low 32 bits) and the slot's generation (high 32
// bits). A released slot is reissued under the next generation, so a handle
// kept past its entity's death never resolves to the slot's new occupant.
type ID uint64

func NewID(index uint32, generation uint32) ID {
	return ID(uint64(generation)<<32 | uint64(index))
}

func (id ID) Index() uint32      { return uint32(id) }
func (id ID) Generation() uint32 { return uint32(id >> 32) }
func (id ID) IsZero() bool       { return id == 0 }

// Pool tracks the generation of every slot ever issued plus a stack of
// released slots. Generations start at 1, so no issued ID is zero.
// Simulation goroutine only, no locks.
type Pool struct {
	gens []uint32 // current generation per slot
	free []uint32 // released slots, reused LIFO
	live int
}

func NewPool() *Pool {
	return &Pool{
		gens: make([]uint32, 0, 1024),
		free: make([]uint32, 0, 256),
	}
}

// Next issues an ID, preferring the most recently released slot.
func (p *Pool) Next() ID {
	p.live++
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		return NewID(idx, p.gens[idx])
	}
	p.gens = append(p.gens, 1)
	return NewID(uint32(len(p.gens)-1), 1)
}

// Generator adapts the pool to the registry's handle generator.
func (p *Pool) Generator() spatial.HandleFunc {
	return func() spatial.Handle { return spatial.Handle(p.Next()) }
}

// Alive reports whether id is the current issue of its slot.
func (p *Pool) Alive(id ID) bool {
	idx := int(id.Index())
	return idx < len(p.gens) && p.gens[idx] == id.Generation()
}

// Release retires id and frees its slot. Stale and unknown IDs are ignored,
// so a handle reported twice is only released once.
func (p *Pool) Release(id ID) {
	if !p.Alive(id) {
		return
	}
	idx := id.Index()
	p.gens[idx]++
	p.free = append(p.free, idx)
	p.live--
}

// ReleaseHandle is Release for a registry handle.
func (p *Pool) ReleaseHandle(h spatial.Handle) { p.Release(ID(h)) }

// Live returns the number of IDs issued and not released.
func (p *Pool) Live() int { return p.live }
