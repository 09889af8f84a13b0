package hub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/atikulmunna/lognorm/internal/logger"
	"github.com/atikulmunna/lognorm/internal/metrics"
	"github.com/atikulmunna/lognorm/internal/model"
	"github.com/atikulmunna/lognorm/internal/parser"
)

const subscriberBuffer = 1024

// Hub receives raw lines, normalizes them, and broadcasts LogEntry values to all subscribers.
type Hub struct {
	parser      parser.Parser
	input       <-chan model.RawLine
	metrics     *metrics.ParseMetrics
	block       bool
	mu          sync.RWMutex
	subscribers []chan model.LogEntry
	closed      bool
	dropped     atomic.Int64
}

// Option configures a Hub.
type Option func(*Hub)

// WithMetrics counts dropped entries in m.
func WithMetrics(m *metrics.ParseMetrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithBlocking makes broadcast wait for slow subscribers instead of
// dropping entries. Batch consumers such as the CLI need every entry.
func WithBlocking() Option {
	return func(h *Hub) { h.block = true }
}

// New creates a Hub that reads from the input channel and normalizes with p.
// input may be nil when entries only arrive through Publish.
func New(input <-chan model.RawLine, p parser.Parser, opts ...Option) *Hub {
	h := &Hub{
		parser: p,
		input:  input,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe returns a buffered channel that will receive normalized entries.
// Multiple consumers can subscribe; each gets a copy of every entry.
func (h *Hub) Subscribe() <-chan model.LogEntry {
	ch := make(chan model.LogEntry, subscriberBuffer)
	h.mu.Lock()
	h.subscribers = append(h.subscribers, ch)
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes ch and closes it. Unknown channels are ignored.
func (h *Hub) Unsubscribe(ch <-chan model.LogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, sub := range h.subscribers {
		if sub == ch {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Publish broadcasts an entry that was already normalized elsewhere.
// Entries published after Start has returned are discarded.
func (h *Hub) Publish(ctx context.Context, entry model.LogEntry) {
	h.broadcast(ctx, entry)
}

// Dropped returns the total number of entries dropped due to slow consumers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Start begins reading from the input channel, normalizing, and broadcasting.
// Blocks until the context is cancelled or the input channel is closed, then
// closes every subscriber channel.
func (h *Hub) Start(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-h.input:
			if !ok {
				return
			}
			h.broadcast(ctx, h.parser.Normalize(raw))
		}
	}
}

// broadcast sends an entry to all subscribers.
// If a subscriber's channel is full, the entry is dropped for that subscriber
// unless the hub is blocking.
func (h *Hub) broadcast(ctx context.Context, entry model.LogEntry) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	for _, ch := range h.subscribers {
		if h.block {
			select {
			case ch <- entry:
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case ch <- entry:
		default:
			total := h.dropped.Add(1)
			if h.metrics != nil {
				h.metrics.DroppedTotal.Inc()
			}
			logger.Debug("hub: dropped entry for slow consumer", "source", entry.Source, "dropped_total", total)
		}
	}
}

// closeAll closes all subscriber channels.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil
	h.closed = true
}
