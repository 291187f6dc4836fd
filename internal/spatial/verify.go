package spatial

import (
	"errors"
	"fmt"
	"slices"
)

// Verify cross-checks the grid, the zone index and the handle table against
// the committed entities. It is meant for tests and debug runs; the cost is
// a full scan of the grid and of every bucket. Call it right after Update.
func (r *Registry) Verify() error {
	var errs []error

	// Every occupied cell belongs to a live solid entity covering it.
	for y := 0; y < r.grid.height; y++ {
		for x := 0; x < r.grid.width; x++ {
			e := r.grid.cells[y*r.grid.width+x]
			if e == nil {
				continue
			}
			if !e.solid || !e.alive || !e.Region().Contains(Point{x, y}) {
				errs = append(errs, fmt.Errorf("cell (%d,%d) holds stale entity %s", x, y, e))
			}
		}
	}

	if len(r.entities) != len(r.order) || !slices.IsSorted(r.order) {
		errs = append(errs, fmt.Errorf("handle table size %d, order size %d", len(r.entities), len(r.order)))
	}

	cells := 0
	for _, h := range r.order {
		e, ok := r.entities[h]
		if !ok {
			errs = append(errs, fmt.Errorf("handle %d ordered but not registered", h))
			continue
		}
		if e.solid && e.alive {
			reg := e.Region()
			cells += reg.W * reg.H
			for y := reg.Y; y < reg.Y+reg.H; y++ {
				for x := reg.X; x < reg.X+reg.W; x++ {
					if got := r.grid.EntityAt(Point{x, y}); got != e {
						errs = append(errs, fmt.Errorf("entity %s missing from cell (%d,%d)", e, x, y))
					}
				}
			}
		}
		if _, pending := r.changes.lookup(h); pending {
			continue
		}
		want := r.zones.ZoneRegion(e.Bounds())
		got := r.zones.zonesOf(e)
		n := (want.MaxX - want.MinX + 1) * (want.MaxY - want.MinY + 1)
		if len(got) != n {
			errs = append(errs, fmt.Errorf("entity %s stored in %d zones, want %d", e, len(got), n))
			continue
		}
		for _, z := range got {
			if !want.Contains(z) {
				errs = append(errs, fmt.Errorf("entity %s stored in zone %+v outside %+v", e, z, want))
			}
		}
	}
	for _, c := range r.changes.list {
		e := c.entity
		if c.flags.Has(ChangeAdded) && e.solid && e.alive {
			reg := e.Region()
			cells += reg.W * reg.H
		}
	}
	if cells != r.grid.occupied {
		errs = append(errs, fmt.Errorf("grid holds %d cells, committed entities cover %d", r.grid.occupied, cells))
	}
	return errors.Join(errs...)
}
