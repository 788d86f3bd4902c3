package util

import "sync"

// SlicePool is a pool of reusable slices of T.
type SlicePool[T any] struct {
	pool sync.Pool
}

// NewSlicePool returns a pool whose fresh slices start with the given capacity.
func NewSlicePool[T any](capacity int) *SlicePool[T] {
	return &SlicePool[T]{pool: sync.Pool{
		New: func() interface{} {
			s := make([]T, 0, capacity)
			return &s
		},
	}}
}

// Get retrieves an empty slice from the pool.
func (sp *SlicePool[T]) Get() *[]T {
	s := sp.pool.Get().(*[]T)
	*s = (*s)[:0] // reset length, keep capacity
	return s
}

// Put returns a slice to the pool. Elements are zeroed so pooled slices do not
// pin values they used to hold.
func (sp *SlicePool[T]) Put(s *[]T) {
	if s == nil {
		return
	}
	var zero T
	for i := range *s {
		(*s)[i] = zero
	}
	*s = (*s)[:0]
	sp.pool.Put(s)
}
