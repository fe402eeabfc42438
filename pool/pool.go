// Package pool provides typed, grow-only object pools.
//
// Objects taken during a step are handed back before the step ends; a pool never
// shrinks. Pools are not safe for concurrent use, the pipeline is single-threaded.
package pool

// Pool recycles values of T through a free list
type Pool[T any] struct {
	free  []*T
	reset func(*T)
	live  int
}

// New creates a pool. reset, when not nil, is applied to every released value.
func New[T any](reset func(*T)) *Pool[T] {
	return &Pool[T]{reset: reset}
}

// Acquire returns a recycled value, or a new zero value if the free list is empty
func (p *Pool[T]) Acquire() *T {
	p.live++
	if n := len(p.free); n > 0 {
		v := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		return v
	}
	return new(T)
}

// Release puts v back on the free list. Releasing nil is a no-op.
func (p *Pool[T]) Release(v *T) {
	if v == nil {
		return
	}
	p.live--
	if p.reset != nil {
		p.reset(v)
	} else {
		var zero T
		*v = zero
	}
	p.free = append(p.free, v)
}

// Live is the number of values acquired and not yet released
func (p *Pool[T]) Live() int {
	return p.live
}

// Free is the number of values waiting on the free list
func (p *Pool[T]) Free() int {
	return len(p.free)
}
