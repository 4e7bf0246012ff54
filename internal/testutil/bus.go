package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

var _ plugin.EventBus = (*MockBus)(nil)

// MockBus records every published event and delivers it synchronously to
// subscribers, including PublishAsync, so tests need no waiting.
type MockBus struct {
	mu       sync.Mutex
	events   []plugin.Event
	handlers map[string][]*plugin.EventHandler
	all      []*plugin.EventHandler
}

// NewMockBus returns an empty MockBus.
func NewMockBus() *MockBus {
	return &MockBus{handlers: make(map[string][]*plugin.EventHandler)}
}

func (b *MockBus) Publish(ctx context.Context, event plugin.Event) error {
	b.mu.Lock()
	b.events = append(b.events, event)
	var targets []*plugin.EventHandler
	for pattern, hs := range b.handlers {
		prefix, wildcard := strings.CutSuffix(pattern, "*")
		if pattern == event.Topic || (wildcard && strings.HasPrefix(event.Topic, prefix)) {
			targets = append(targets, hs...)
		}
	}
	targets = append(targets, b.all...)
	b.mu.Unlock()

	for _, h := range targets {
		(*h)(ctx, event)
	}
	return nil
}

func (b *MockBus) PublishAsync(ctx context.Context, event plugin.Event) {
	_ = b.Publish(ctx, event)
}

// Subscribe registers handler for topic, which may end in "*".
func (b *MockBus) Subscribe(topic string, handler plugin.EventHandler) func() {
	h := &handler
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[topic] = without(b.handlers[topic], h)
	}
}

func (b *MockBus) SubscribeAll(handler plugin.EventHandler) func() {
	h := &handler
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = without(b.all, h)
	}
}

func without(hs []*plugin.EventHandler, h *plugin.EventHandler) []*plugin.EventHandler {
	out := hs[:0:0]
	for _, x := range hs {
		if x != h {
			out = append(out, x)
		}
	}
	return out
}

// Events returns a copy of everything published so far.
func (b *MockBus) Events() []plugin.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]plugin.Event(nil), b.events...)
}

// Topics returns the topics of everything published so far, in order.
func (b *MockBus) Topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.Topic
	}
	return out
}

// Reset forgets recorded events.
func (b *MockBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}
