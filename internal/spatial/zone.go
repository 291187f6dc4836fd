package spatial

import (
	"iter"
	"math"
)

// ZoneDivisions is the number of zone buckets along each axis, whatever the
// world size.
const ZoneDivisions = 8

// ZoneIndex addresses one bucket of the zone partition.
type ZoneIndex struct {
	X, Y int
}

// ZoneRange is an inclusive block of bucket indices.
type ZoneRange struct {
	MinX, MinY, MaxX, MaxY int
}

// Contains reports whether i lies within the range.
func (z ZoneRange) Contains(i ZoneIndex) bool {
	return i.X >= z.MinX && i.X <= z.MaxX && i.Y >= z.MinY && i.Y <= z.MaxY
}

// ZoneManager partitions the world into ZoneDivisions x ZoneDivisions
// buckets for approximate range queries. An entity is stored in every bucket
// its bounding rectangle overlaps; queries report each entity once, from the
// bucket holding its centre.
//
// Bucket contents follow the zone position of each entity, which only
// catches up with the live position when the Registry commits. Accessed only
// from the simulation goroutine, no locks.
type ZoneManager struct {
	bounds  Rect
	zoneW   float64
	zoneH   float64
	pool    *BufferPool[*Entity]
	buckets [ZoneDivisions * ZoneDivisions]ZoneBucket
}

func NewZoneManager(bounds Rect) *ZoneManager {
	m := &ZoneManager{
		bounds: bounds,
		zoneW:  bounds.W / ZoneDivisions,
		zoneH:  bounds.H / ZoneDivisions,
		pool:   NewBufferPool[*Entity](),
	}
	for y := 0; y < ZoneDivisions; y++ {
		for x := 0; x < ZoneDivisions; x++ {
			m.buckets[y*ZoneDivisions+x] = newZoneBucket(Rect{
				X: bounds.X + float64(x)*m.zoneW,
				Y: bounds.Y + float64(y)*m.zoneH,
				W: m.zoneW,
				H: m.zoneH,
			}, m.pool)
		}
	}
	return m
}

// Bucket returns the bucket at i.
func (m *ZoneManager) Bucket(i ZoneIndex) *ZoneBucket {
	return &m.buckets[i.Y*ZoneDivisions+i.X]
}

// Pool returns the buffer pool shared by every bucket.
func (m *ZoneManager) Pool() *BufferPool[*Entity] { return m.pool }

func clampZone(v float64) int {
	i := int(math.Floor(v))
	if i < 0 {
		return 0
	}
	if i >= ZoneDivisions {
		return ZoneDivisions - 1
	}
	return i
}

// zoneOf returns the bucket holding point p, clamped to the partition.
func (m *ZoneManager) zoneOf(p Vec2) ZoneIndex {
	return ZoneIndex{
		X: clampZone((p.X - m.bounds.X) / m.zoneW),
		Y: clampZone((p.Y - m.bounds.Y) / m.zoneH),
	}
}

// ZoneRegion maps r to the buckets it overlaps, clamped per axis. A
// rectangle whose max edge lands exactly on a bucket boundary also counts
// the bucket beyond it.
func (m *ZoneManager) ZoneRegion(r Rect) ZoneRange {
	lo := m.zoneOf(Vec2{r.X, r.Y})
	hi := m.zoneOf(Vec2{r.MaxX(), r.MaxY()})
	return ZoneRange{MinX: lo.X, MinY: lo.Y, MaxX: hi.X, MaxY: hi.Y}
}

// Add stores e in every bucket its current bounding rectangle overlaps.
func (m *ZoneManager) Add(e *Entity) {
	m.addRange(e, m.ZoneRegion(e.Bounds()))
	e.zonePos = e.pos
}

// Remove drops e from the buckets it was last stored in.
func (m *ZoneManager) Remove(e *Entity) {
	m.RemoveRect(e, e.BoundsAt(e.zonePos))
}

// RemoveRect drops e from every bucket r overlaps. r is normally a bounding
// rectangle the entity no longer has, such as its pre-move location.
func (m *ZoneManager) RemoveRect(e *Entity, r Rect) {
	m.removeRange(e, m.ZoneRegion(r))
}

// UpdateZone moves e from the buckets of its bounding rectangle at old to
// the buckets of its current one. The old rectangle is rebuilt from the
// current size, which never changes after creation.
func (m *ZoneManager) UpdateZone(e *Entity, old Vec2) {
	from := m.ZoneRegion(e.BoundsAt(old))
	to := m.ZoneRegion(e.Bounds())
	e.zonePos = e.pos
	if from == to {
		return
	}
	m.removeRange(e, from)
	m.addRange(e, to)
}

func (m *ZoneManager) addRange(e *Entity, z ZoneRange) {
	for y := z.MinY; y <= z.MaxY; y++ {
		for x := z.MinX; x <= z.MaxX; x++ {
			m.buckets[y*ZoneDivisions+x].Add(e)
		}
	}
}

func (m *ZoneManager) removeRange(e *Entity, z ZoneRange) {
	for y := z.MinY; y <= z.MaxY; y++ {
		for x := z.MinX; x <= z.MaxX; x++ {
			ok := m.buckets[y*ZoneDivisions+x].Remove(e)
			invariant(ok, "entity %d missing from zone (%d,%d)", e.handle, x, y)
		}
	}
}

// InArea yields every entity whose centre lies in r. Only the buckets
// overlapping r are scanned, and the scan is repeated on every range over
// the returned sequence.
func (m *ZoneManager) InArea(r Rect) iter.Seq[*Entity] {
	return m.scan(r, r.Contains)
}

// InCircle yields every entity whose centre lies in c.
func (m *ZoneManager) InCircle(c Circle) iter.Seq[*Entity] {
	return m.scan(c.Bounds(), c.Contains)
}

func (m *ZoneManager) scan(r Rect, match func(Vec2) bool) iter.Seq[*Entity] {
	return func(yield func(*Entity) bool) {
		z := m.ZoneRegion(r)
		for y := z.MinY; y <= z.MaxY; y++ {
			for x := z.MinX; x <= z.MaxX; x++ {
				b := &m.buckets[y*ZoneDivisions+x]
				for i := 0; i < b.count; i++ {
					e := b.items[i]
					c := centerAt(e.zonePos, e.size)
					// A straddling entity sits in several buckets; only the
					// bucket holding its centre reports it.
					if m.zoneOf(c) != (ZoneIndex{x, y}) || !match(c) {
						continue
					}
					if !yield(e) {
						return
					}
				}
			}
		}
	}
}

// zonesOf lists every bucket that currently stores e.
func (m *ZoneManager) zonesOf(e *Entity) []ZoneIndex {
	var out []ZoneIndex
	for y := 0; y < ZoneDivisions; y++ {
		for x := 0; x < ZoneDivisions; x++ {
			if m.buckets[y*ZoneDivisions+x].Contains(e) {
				out = append(out, ZoneIndex{x, y})
			}
		}
	}
	return out
}
