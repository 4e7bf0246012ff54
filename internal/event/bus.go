// Package event provides the in-memory plugin.EventBus used to carry object
// changes and job transitions between modules.
package event

import (
	"context"
	"strings"
	"sync"

	"github.com/HerbHall/peeringmanager/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ plugin.EventBus = (*Bus)(nil)

// Bus is an in-memory event bus implementing plugin.EventBus.
// Publish is synchronous (handlers run in the caller's goroutine).
// PublishAsync dispatches handlers in separate goroutines tracked by Drain.
//
// A topic subscription ending in ".*" matches every topic with that prefix,
// so "object.*" receives "object.created" and "object.deleted".
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry
	allSubs  []handlerEntry
	nextID   uint64
	inflight sync.WaitGroup
	logger   *zap.Logger
}

type handlerEntry struct {
	id      uint64
	handler plugin.EventHandler
}

// NewBus creates a new in-memory event bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]handlerEntry),
		logger:   logger,
	}
}

// Publish dispatches an event synchronously to all matching handlers.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	for _, h := range b.match(event.Topic) {
		b.safeCall(ctx, h.handler, event)
	}
	return nil
}

// PublishAsync dispatches an event asynchronously to all matching handlers.
// The handlers do not inherit ctx cancellation: a request that triggers a
// webhook may finish before the delivery does.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	detached := context.WithoutCancel(ctx)
	for _, h := range b.match(event.Topic) {
		b.inflight.Add(1)
		go func(h handlerEntry) {
			defer b.inflight.Done()
			b.safeCall(detached, h.handler, event)
		}(h)
	}
}

// Drain blocks until every handler started by PublishAsync has returned or
// ctx is done.
func (b *Bus) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a handler for a topic or a "prefix.*" pattern.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[topic] = append(b.handlers[topic], handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[topic]
		for i, e := range entries {
			if e.id == id {
				b.handlers[topic] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers a handler for all topics. Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.allSubs = append(b.allSubs, handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, e := range b.allSubs {
			if e.id == id {
				b.allSubs = append(b.allSubs[:i:i], b.allSubs[i+1:]...)
				return
			}
		}
	}
}

// match snapshots the handlers for topic: exact subscribers first, then
// wildcard patterns, then catch-all subscribers.
func (b *Bus) match(topic string) []handlerEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]handlerEntry, 0, len(b.handlers[topic])+len(b.allSubs))
	out = append(out, b.handlers[topic]...)
	for pattern, entries := range b.handlers {
		prefix, ok := strings.CutSuffix(pattern, "*")
		if !ok || pattern == topic {
			continue
		}
		if strings.HasPrefix(topic, prefix) {
			out = append(out, entries...)
		}
	}
	out = append(out, b.allSubs...)
	return out
}

func (b *Bus) safeCall(ctx context.Context, handler plugin.EventHandler, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}
