package mediastream

import (
	"errors"
	"sync"
)

// ErrRingClosed is returned by Next after the ring is closed and drained.
var ErrRingClosed = errors.New("mediastream: ring closed")

// ring is a bounded FIFO that drops the oldest element when full. It backs
// the outbound playback queue: the model can produce audio far faster than
// the provider plays it, and barge-in needs Clear to discard the backlog.
type ring[T any] struct {
	notify chan struct{}

	mu         sync.Mutex
	buf        []T
	head, tail int64
	dropped    uint64
	closed     bool
}

func newRing[T any](size int) *ring[T] {
	return &ring[T]{
		notify: make(chan struct{}, 1),
		buf:    make([]T, size),
	}
}

// Push appends v, evicting the oldest element if the ring is full.
// It reports whether an element was dropped.
func (r *ring[T]) Push(v T) bool {
	r.mu.Lock()
	evicted := false
	if r.closed {
		r.mu.Unlock()
		return false
	}
	if int(r.tail-r.head) == len(r.buf) {
		r.head++
		r.dropped++
		evicted = true
	}
	r.buf[r.tail%int64(len(r.buf))] = v
	r.tail++
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
	return evicted
}

// Next removes and returns the oldest element, blocking until one is
// available, cancel fires, or the ring is closed empty.
func (r *ring[T]) Next(cancel <-chan struct{}) (T, error) {
	var zero T
	for {
		r.mu.Lock()
		if r.head != r.tail {
			v := r.buf[r.head%int64(len(r.buf))]
			r.buf[r.head%int64(len(r.buf))] = zero
			r.head++
			r.mu.Unlock()
			return v, nil
		}
		closed := r.closed
		r.mu.Unlock()

		if closed {
			return zero, ErrRingClosed
		}
		select {
		case <-cancel:
			return zero, ErrRingClosed
		case <-r.notify:
		}
	}
}

// Clear discards all queued elements and returns how many were removed.
func (r *ring[T]) Clear() int {
	var zero T
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int(r.tail - r.head)
	for i := r.head; i < r.tail; i++ {
		r.buf[i%int64(len(r.buf))] = zero
	}
	r.head = r.tail
	return n
}

// Len returns the number of queued elements.
func (r *ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.tail - r.head)
}

// Dropped returns the total number of evicted elements.
func (r *ring[T]) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close wakes all blocked Next calls. Queued elements remain readable until
// drained.
func (r *ring[T]) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()
	close(r.notify)
}
