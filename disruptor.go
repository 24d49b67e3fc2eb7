package orderbook

import (
	"context"
	"runtime"
	"sync/atomic"
)

// EventHandler processes events taken off a RingBuffer.
type EventHandler[T any] interface {
	OnEvent(event T)
}

// RingBuffer is a multi-producer single-consumer ring buffer.
//
// Producers claim a sequence with CAS, write the slot and then mark it ready.
// A single consumer goroutine hands ready slots to the handler in sequence order.
// Every event for which Publish returned true is delivered before Shutdown returns.
type RingBuffer[T any] struct {
	_       [56]byte
	claimed atomic.Int64 // highest sequence claimed by a producer
	_       [56]byte
	handled atomic.Int64 // highest sequence passed to the handler
	_       [56]byte

	// producers currently between the shutdown check and marking their slot ready
	inflight atomic.Int64
	closing  atomic.Bool

	slots []T
	ready []atomic.Int64 // ready[i] holds the sequence last written into slots[i]
	mask  int64
	size  int64

	handler EventHandler[T]
	done    chan struct{}
}

// NewRingBuffer creates a ring buffer. size must be a power of 2.
func NewRingBuffer[T any](size int64, handler EventHandler[T]) *RingBuffer[T] {
	if size <= 0 || size&(size-1) != 0 {
		panic("ring buffer size must be a power of 2")
	}

	rb := &RingBuffer[T]{
		slots:   make([]T, size),
		ready:   make([]atomic.Int64, size),
		mask:    size - 1,
		size:    size,
		handler: handler,
		done:    make(chan struct{}),
	}
	rb.claimed.Store(-1)
	rb.handled.Store(-1)
	for i := range rb.ready {
		rb.ready[i].Store(-1)
	}
	return rb
}

// Publish writes event into the buffer, waiting while it is full.
// It returns false, without enqueueing, once Shutdown has been called.
func (rb *RingBuffer[T]) Publish(event T) bool {
	// Registering before the closing check lets the consumer wait for this call.
	rb.inflight.Add(1)
	defer rb.inflight.Add(-1)

	if rb.closing.Load() {
		return false
	}

	seq, ok := rb.claim()
	if !ok {
		return false
	}

	idx := seq & rb.mask
	rb.slots[idx] = event
	rb.ready[idx].Store(seq)
	return true
}

// claim reserves the next sequence. It gives up only if the buffer is full
// and shutting down.
func (rb *RingBuffer[T]) claim() (int64, bool) {
	for {
		cur := rb.claimed.Load()
		next := cur + 1

		if next-rb.size > rb.handled.Load() {
			if rb.closing.Load() {
				return 0, false
			}
			runtime.Gosched()
			continue
		}

		if rb.claimed.CompareAndSwap(cur, next) {
			return next, true
		}
		runtime.Gosched()
	}
}

// Start launches the consumer goroutine.
func (rb *RingBuffer[T]) Start() {
	go rb.run()
}

// Shutdown rejects further publishes and waits until every accepted event is handled.
func (rb *RingBuffer[T]) Shutdown(ctx context.Context) error {
	rb.closing.Store(true)

	select {
	case <-rb.done:
		return nil
	case <-ctx.Done():
		return ErrTimeout
	}
}

func (rb *RingBuffer[T]) run() {
	defer close(rb.done)

	next := rb.handled.Load() + 1
	for !rb.closing.Load() {
		if n := rb.drainTo(next, rb.claimed.Load()); n > next {
			next = n
			continue
		}
		runtime.Gosched()
	}

	// After closing is set, new producers back off; wait out the ones already inside Publish.
	for {
		next = rb.drainTo(next, rb.claimed.Load())
		if rb.inflight.Load() == 0 && next > rb.claimed.Load() {
			return
		}
		runtime.Gosched()
	}
}

// drainTo hands sequences [next, last] to the handler and returns the next unhandled sequence.
func (rb *RingBuffer[T]) drainTo(next, last int64) int64 {
	for ; next <= last; next++ {
		idx := next & rb.mask
		for rb.ready[idx].Load() != next {
			runtime.Gosched()
		}

		event := rb.slots[idx]
		var zero T
		rb.slots[idx] = zero
		rb.handler.OnEvent(event)
		rb.handled.Store(next)
	}
	return next
}

// ConsumerSequence returns the last handled sequence.
func (rb *RingBuffer[T]) ConsumerSequence() int64 {
	return rb.handled.Load()
}

// ProducerSequence returns the last claimed sequence.
func (rb *RingBuffer[T]) ProducerSequence() int64 {
	return rb.claimed.Load()
}

// GetPendingEvents returns the number of claimed but unhandled events.
func (rb *RingBuffer[T]) GetPendingEvents() int64 {
	return rb.claimed.Load() - rb.handled.Load()
}
