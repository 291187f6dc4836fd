package spatial

// ChangeFlags records what happened to an entity during one frame.
type ChangeFlags uint8

const (
	ChangeAdded ChangeFlags = 1 << iota
	ChangeMoved
	ChangeRemoved
)

func (f ChangeFlags) Has(flag ChangeFlags) bool { return f&flag != 0 }

// change is the deferred record for one entity. start is the position the
// entity had when the frame began; it is captured by the first move only.
type change struct {
	entity *Entity
	flags  ChangeFlags
	start  Vec2
}

// changeset buffers the structural changes observed during a frame, keyed
// by entity and kept in first-touch order so commits are deterministic.
type changeset struct {
	index map[Handle]int
	list  []change
}

func newChangeset() changeset {
	return changeset{
		index: make(map[Handle]int, 64),
		list:  make([]change, 0, 64),
	}
}

// record returns the pending change for e, creating an empty one if needed.
func (c *changeset) record(e *Entity) *change {
	if i, ok := c.index[e.handle]; ok {
		return &c.list[i]
	}
	c.index[e.handle] = len(c.list)
	c.list = append(c.list, change{entity: e})
	return &c.list[len(c.list)-1]
}

func (c *changeset) lookup(h Handle) (*change, bool) {
	i, ok := c.index[h]
	if !ok {
		return nil, false
	}
	return &c.list[i], true
}

func (c *changeset) len() int { return len(c.list) }

// take hands over the buffered changes and leaves c empty. spare becomes the
// new backing slice, so two slices alternate between frames.
func (c *changeset) take(spare []change) []change {
	out := c.list
	c.list = spare[:0]
	clear(c.index)
	return out
}
