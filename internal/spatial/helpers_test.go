package spatial

import (
	"slices"
	"testing"

	"go.uber.org/zap/zaptest"
)

func counter() HandleFunc {
	var n Handle
	return func() Handle {
		n++
		return n
	}
}

func newTestRegistry(t *testing.T, w, h int) *Registry {
	t.Helper()
	return NewRegistry(Size{W: w, H: h}, counter(), zaptest.NewLogger(t))
}

// expectViolation runs fn and fails unless it panics with a ContractViolation.
func expectViolation(t *testing.T, fn func()) {
	t.Helper()
	if !contractChecks {
		t.Skip("contract checks compiled out")
	}
	defer func() {
		t.Helper()
		r := recover()
		if _, ok := r.(*ContractViolation); !ok {
			t.Fatalf("expected contract violation, got %v", r)
		}
	}()
	fn()
}

func handles(es []*Entity) []Handle {
	out := make([]Handle, 0, len(es))
	for _, e := range es {
		out = append(out, e.Handle())
	}
	slices.Sort(out)
	return out
}

func testEntity(h Handle, x, y float64) *Entity {
	return &Entity{handle: h, pos: Vec2{x, y}, size: Size{1, 1}, solid: true, alive: true}
}
