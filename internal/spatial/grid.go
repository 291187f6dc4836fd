package spatial

// OccupancyGrid records which solid entity, if any, covers each integer
// cell. It never resolves collisions: callers check IsRegionFree before
// placing, and a placement onto an occupied cell is a contract violation.
// Accessed only from the simulation goroutine, no locks.
type OccupancyGrid struct {
	width    int
	height   int
	cells    []*Entity // index = y*width + x
	occupied int
}

func NewOccupancyGrid(width, height int) *OccupancyGrid {
	return &OccupancyGrid{
		width:  width,
		height: height,
		cells:  make([]*Entity, width*height),
	}
}

// Bounds returns the region covered by the grid.
func (g *OccupancyGrid) Bounds() Region {
	return Region{W: g.width, H: g.height}
}

// Occupied returns the number of occupied cells.
func (g *OccupancyGrid) Occupied() int { return g.occupied }

func (g *OccupancyGrid) inBounds(p Point) bool {
	return p.X >= 0 && p.X < g.width && p.Y >= 0 && p.Y < g.height
}

// IsFree reports whether p lies inside the grid and nobody occupies it.
func (g *OccupancyGrid) IsFree(p Point) bool {
	return g.inBounds(p) && g.cells[p.Y*g.width+p.X] == nil
}

// IsRegionFree reports whether every cell of r is free.
func (g *OccupancyGrid) IsRegionFree(r Region) bool {
	if !r.Within(g.Bounds()) {
		return false
	}
	for y := r.Y; y < r.Y+r.H; y++ {
		row := g.cells[y*g.width : (y+1)*g.width]
		for x := r.X; x < r.X+r.W; x++ {
			if row[x] != nil {
				return false
			}
		}
	}
	return true
}

// EntityAt returns the entity occupying p, or nil.
func (g *OccupancyGrid) EntityAt(p Point) *Entity {
	if !g.inBounds(p) {
		return nil
	}
	return g.cells[p.Y*g.width+p.X]
}

// Add places e on the cells of its current region.
func (g *OccupancyGrid) Add(e *Entity) { g.AddRegion(e, e.Region()) }

// AddRegion places e on every cell of r. Every cell must be free.
func (g *OccupancyGrid) AddRegion(e *Entity, r Region) {
	if contractChecks {
		invariant(r.Within(g.Bounds()), "entity %d region %+v outside grid %dx%d", e.handle, r, g.width, g.height)
		for y := r.Y; y < r.Y+r.H; y++ {
			for x := r.X; x < r.X+r.W; x++ {
				if cur := g.cells[y*g.width+x]; cur != nil {
					panic(violation("cell (%d,%d) held by entity %d, cannot place entity %d", x, y, cur.handle, e.handle))
				}
			}
		}
	}
	for y := r.Y; y < r.Y+r.H; y++ {
		row := g.cells[y*g.width : (y+1)*g.width]
		for x := r.X; x < r.X+r.W; x++ {
			row[x] = e
		}
	}
	g.occupied += r.W * r.H
}

// Remove clears e from the cells of its current region.
func (g *OccupancyGrid) Remove(e *Entity) { g.RemoveRegion(e, e.Region()) }

// RemoveRegion clears every cell of r. Every cell must hold e.
func (g *OccupancyGrid) RemoveRegion(e *Entity, r Region) {
	if contractChecks {
		invariant(r.Within(g.Bounds()), "entity %d region %+v outside grid %dx%d", e.handle, r, g.width, g.height)
		for y := r.Y; y < r.Y+r.H; y++ {
			for x := r.X; x < r.X+r.W; x++ {
				if cur := g.cells[y*g.width+x]; cur != e {
					panic(violation("cell (%d,%d) does not hold entity %d", x, y, e.handle))
				}
			}
		}
	}
	for y := r.Y; y < r.Y+r.H; y++ {
		row := g.cells[y*g.width : (y+1)*g.width]
		for x := r.X; x < r.X+r.W; x++ {
			row[x] = nil
		}
	}
	g.occupied -= r.W * r.H
}
