package spatial

// ZoneBucket is an unordered collection of entities backed by pooled slices.
// Removal swaps the last element into the freed slot, so iteration order is
// not stable across removals.
type ZoneBucket struct {
	bounds Rect
	pool   *BufferPool[*Entity]
	items  []*Entity // len(items) is the backing capacity
	count  int
}

func newZoneBucket(bounds Rect, pool *BufferPool[*Entity]) ZoneBucket {
	return ZoneBucket{bounds: bounds, pool: pool}
}

// Bounds returns the slice of world space this bucket covers.
func (b *ZoneBucket) Bounds() Rect { return b.bounds }

// Len returns the number of entities in the bucket.
func (b *ZoneBucket) Len() int { return b.count }

// At returns the i-th entity, 0 <= i < Len().
func (b *ZoneBucket) At(i int) *Entity { return b.items[i] }

// Capacity returns the length of the pooled backing slice.
func (b *ZoneBucket) Capacity() int { return len(b.items) }

// Contains reports whether e is stored in the bucket. Linear scan.
func (b *ZoneBucket) Contains(e *Entity) bool {
	return b.indexOf(e) >= 0
}

func (b *ZoneBucket) indexOf(e *Entity) int {
	for i := 0; i < b.count; i++ {
		if b.items[i] == e {
			return i
		}
	}
	return -1
}

// Add appends e. e must not already be present.
func (b *ZoneBucket) Add(e *Entity) {
	if contractChecks {
		invariant(!b.Contains(e), "entity %d already in zone bucket", e.handle)
	}
	if b.count == len(b.items) {
		b.grow()
	}
	b.items[b.count] = e
	b.count++
}

// Remove drops e if present and reports whether it was found. The backing
// slice goes back to the pool once the bucket is empty, and is swapped for a
// smaller class once occupancy falls to a third of capacity.
func (b *ZoneBucket) Remove(e *Entity) bool {
	i := b.indexOf(e)
	if i < 0 {
		return false
	}
	b.count--
	b.items[i] = b.items[b.count]
	b.items[b.count] = nil

	switch {
	case b.count == 0:
		b.pool.Release(b.items)
		b.items = nil
	case b.count*3 <= len(b.items) && len(b.items) > minBufferClass:
		b.shrink()
	}
	return true
}

// grow moves the entries into the smallest pooled class with room for one more.
func (b *ZoneBucket) grow() {
	next := b.pool.Get(b.count + 1)
	copy(next, b.items[:b.count])
	if b.items != nil {
		b.pool.Release(b.items)
	}
	b.items = next
}

// shrink moves the entries into a smaller pooled class, if the pool can
// supply one.
func (b *ZoneBucket) shrink() {
	next := b.pool.Get(b.count)
	if len(next) >= len(b.items) {
		b.pool.Release(next)
		return
	}
	copy(next, b.items[:b.count])
	b.pool.Release(b.items)
	b.items = next
}
