package queue

import "sync/atomic"

// Setting is a per-queue configuration cell with a process-wide default
// and an optional local override: reads resolve to the override when
// present, else fall through to the shared default. Both reads and
// writes are lock-free.
type Setting[T any] struct {
	base     *atomic.Pointer[T]
	override atomic.Pointer[T]
}

// NewBase returns a fresh shared default cell holding v, suitable for
// handing to NewSetting for every queue that should see process-wide
// changes to it.
func NewBase[T any](v T) *atomic.Pointer[T] {
	p := new(atomic.Pointer[T])
	p.Store(&v)
	return p
}

// NewSetting returns a Setting reading from the given shared default
// cell, with no local override installed.
func NewSetting[T any](base *atomic.Pointer[T]) *Setting[T] {
	return &Setting[T]{base: base}
}

// Get resolves the current effective value.
func (s *Setting[T]) Get() T {
	if v := s.override.Load(); v != nil {
		return *v
	}
	return *s.base.Load()
}

// SetOverride installs a local override. Passing nil clears it, so
// future Get calls resolve to the shared default again.
func (s *Setting[T]) SetOverride(v *T) {
	s.override.Store(v)
}
