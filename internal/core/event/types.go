package event

import "github.com/l1jgo/entityindex/internal/spatial"

// EntityDied is emitted when a commit forgets a dead entity. Handlers run on
// the following tick, after the entity is gone from every index.
type EntityDied struct {
	Handle   spatial.Handle
	Kind     spatial.Kind
	Position spatial.Vec2
	Size     spatial.Size
}

// EntityDropped is emitted for an entity killed in the frame it was created.
// It never reached any index, so no EntityDied follows.
type EntityDropped struct {
	Handle spatial.Handle
	Kind   spatial.Kind
}

// EntitySpawned is emitted when a system creates an entity from the spawn list.
type EntitySpawned struct {
	Handle spatial.Handle
	Kind   spatial.Kind
	Spawn  string
}
