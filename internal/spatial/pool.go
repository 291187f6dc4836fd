package spatial

import "math/bits"

// minBufferClass is the smallest capacity class handed out by a BufferPool.
const minBufferClass = 16

// BufferPool recycles slices by capacity class. Classes are powers of two
// with a floor of minBufferClass; a released slice is filed under its exact
// length. Accessed only from the simulation goroutine, no locks.
type BufferPool[T any] struct {
	free     map[int][][]T // class length -> released slices
	maxClass int           // largest class ever released
	cached   int
}

func NewBufferPool[T any]() *BufferPool[T] {
	return &BufferPool[T]{
		free: make(map[int][][]T),
	}
}

// bufferClass returns the capacity class serving a request for n elements.
func bufferClass(n int) int {
	if n <= minBufferClass {
		return minBufferClass
	}
	return 1 << bits.Len(uint(n-1))
}

// Get returns a slice whose length is the smallest cached class that can
// hold minimumSize elements, allocating a fresh one when nothing fits.
func (p *BufferPool[T]) Get(minimumSize int) []T {
	class := bufferClass(minimumSize)
	for c := class; c <= p.maxClass; c <<= 1 {
		list := p.free[c]
		if n := len(list); n > 0 {
			buf := list[n-1]
			list[n-1] = nil
			p.free[c] = list[:n-1]
			p.cached--
			return buf
		}
	}
	return make([]T, class)
}

// Release hands buf back to the pool. Elements are zeroed so the pool never
// keeps entities reachable. Buffers from Get are filed under their exact
// length; any other buffer is cut down to the largest class it can fill,
// and one shorter than the smallest class is left to the collector.
func (p *BufferPool[T]) Release(buf []T) {
	if len(buf) < minBufferClass {
		return
	}
	clear(buf)
	n := 1 << (bits.Len(uint(len(buf))) - 1)
	buf = buf[:n:n]
	p.free[n] = append(p.free[n], buf)
	p.cached++
	if n > p.maxClass {
		p.maxClass = n
	}
}

// Cached reports how many slices are waiting to be reused.
func (p *BufferPool[T]) Cached() int {
	return p.cached
}
