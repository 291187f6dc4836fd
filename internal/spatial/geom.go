package spatial

import "math"

// Vec2 is a continuous world-space position.
type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Round snaps a continuous position to the integer cell it occupies.
func (v Vec2) Round() Point {
	return Point{X: int(math.Round(v.X)), Y: int(math.Round(v.Y))}
}

// Point is an integer grid cell.
type Point struct {
	X, Y int
}

// Size is the integer footprint of an entity. Immutable once the entity exists.
type Size struct {
	W, H int
}

// Rect is an axis-aligned rectangle in continuous space, half-open on the max edges.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) MaxX() float64 { return r.X + r.W }
func (r Rect) MaxY() float64 { return r.Y + r.H }

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.X && p.X < r.MaxX() && p.Y >= r.Y && p.Y < r.MaxY()
}

// Region is an axis-aligned block of integer cells.
type Region struct {
	X, Y, W, H int
}

// Contains reports whether the cell p belongs to the region.
func (r Region) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Within reports whether r lies completely inside outer.
func (r Region) Within(outer Region) bool {
	return r.X >= outer.X && r.Y >= outer.Y &&
		r.X+r.W <= outer.X+outer.W && r.Y+r.H <= outer.Y+outer.H
}

// Circle is a disc in continuous space.
type Circle struct {
	Center Vec2
	Radius float64
}

// Bounds returns the smallest Rect enclosing the circle.
func (c Circle) Bounds() Rect {
	return Rect{
		X: c.Center.X - c.Radius,
		Y: c.Center.Y - c.Radius,
		W: 2 * c.Radius,
		H: 2 * c.Radius,
	}
}

// Contains reports whether p lies inside or on the circle.
func (c Circle) Contains(p Vec2) bool {
	dx := p.X - c.Center.X
	dy := p.Y - c.Center.Y
	return dx*dx+dy*dy <= c.Radius*c.Radius
}
