package orderbook

import (
	"context"
	"fmt"
	"sync"
)

// PublishLog is an interface for publishing order book logs (opens, cancels, executions).
//
// IMPORTANT: Implementations must either:
//  1. Process logs synchronously before returning, OR
//  2. Clone the BookLog data before returning
//
// The caller recycles BookLog objects to a sync.Pool after Publish returns,
// so any asynchronous processing must work with cloned data.
//
// Publish is called while the order book holds its write lock, so it must not
// call back into the same book.
type PublishLog interface {
	Publish(...*BookLog)
}

// MemoryPublishLog stores logs in memory, useful for testing.
type MemoryPublishLog struct {
	mu   sync.RWMutex
	Logs []*BookLog
}

// NewMemoryPublishLog creates a new MemoryPublishLog.
func NewMemoryPublishLog() *MemoryPublishLog {
	return &MemoryPublishLog{
		Logs: make([]*BookLog, 0),
	}
}

// Publish appends copies of logs to the in-memory slice.
func (m *MemoryPublishLog) Publish(logs ...*BookLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, log := range logs {
		m.Logs = append(m.Logs, log.Clone())
	}
}

// Count returns the number of logs stored.
func (m *MemoryPublishLog) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Logs)
}

// Get returns the log at the specified index.
func (m *MemoryPublishLog) Get(index int) *BookLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.Logs[index]
}

// All returns a copy of all logs stored.
func (m *MemoryPublishLog) All() []*BookLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	logs := make([]*BookLog, len(m.Logs))
	copy(logs, m.Logs)
	return logs
}

// DiscardPublishLog discards all logs, useful for benchmarking.
type DiscardPublishLog struct {
}

// NewDiscardPublishLog creates a new DiscardPublishLog.
func NewDiscardPublishLog() *DiscardPublishLog {
	return &DiscardPublishLog{}
}

// Publish does nothing.
func (p *DiscardPublishLog) Publish(logs ...*BookLog) {

}

// AsyncPublishLog moves delivery off the book's critical section.
// Logs are cloned into a ring buffer and handed to the downstream publisher
// on a single consumer goroutine, preserving sequence order.
type AsyncPublishLog struct {
	rb *RingBuffer[*BookLog]
}

type forwardHandler struct {
	downstream PublishLog
}

func (h *forwardHandler) OnEvent(log *BookLog) {
	h.downstream.Publish(log)
}

// NewAsyncPublishLog creates an async publisher. capacity must be a power of 2.
func NewAsyncPublishLog(capacity int64, downstream PublishLog) *AsyncPublishLog {
	return &AsyncPublishLog{
		rb: NewRingBuffer[*BookLog](capacity, &forwardHandler{downstream: downstream}),
	}
}

// NewAsyncPublishLogFromConfig creates an async publisher sized by cfg.PublishBufferSize.
// A nil cfg uses DefaultConfig.
func NewAsyncPublishLogFromConfig(cfg *Config, downstream PublishLog) (*AsyncPublishLog, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if downstream == nil {
		return nil, fmt.Errorf("%w: nil downstream publisher", ErrInvalidParam)
	}
	return NewAsyncPublishLog(cfg.PublishBufferSize, downstream), nil
}

// Start launches the consumer goroutine.
func (p *AsyncPublishLog) Start() {
	p.rb.Start()
}

// Publish clones logs into the ring buffer. Logs published after Shutdown are dropped.
func (p *AsyncPublishLog) Publish(logs ...*BookLog) {
	for _, log := range logs {
		if !p.rb.Publish(log.Clone()) {
			logger.Warn("async publisher is shut down, dropping log", "seq_id", log.SequenceID, "market_id", log.MarketID)
		}
	}
}

// Pending returns the number of logs not yet delivered.
func (p *AsyncPublishLog) Pending() int64 {
	return p.rb.GetPendingEvents()
}

// Shutdown stops accepting logs and waits until every accepted log is delivered.
func (p *AsyncPublishLog) Shutdown(ctx context.Context) error {
	return p.rb.Shutdown(ctx)
}
