package event

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HerbHall/peeringmanager/pkg/plugin"
	"go.uber.org/zap"
)

func TestPublish_exact_wildcard_and_all(t *testing.T) {
	b := NewBus(zap.NewNop())

	var exact, wildcard, all, other int
	b.Subscribe("object.created", func(context.Context, plugin.Event) { exact++ })
	b.Subscribe("object.*", func(context.Context, plugin.Event) { wildcard++ })
	b.Subscribe("job.updated", func(context.Context, plugin.Event) { other++ })
	b.SubscribeAll(func(context.Context, plugin.Event) { all++ })

	_ = b.Publish(context.Background(), plugin.Event{Topic: "object.created"})
	_ = b.Publish(context.Background(), plugin.Event{Topic: "object.deleted"})

	if exact != 1 {
		t.Errorf("exact handler called %d times, want 1", exact)
	}
	if wildcard != 2 {
		t.Errorf("wildcard handler called %d times, want 2", wildcard)
	}
	if all != 2 {
		t.Errorf("catch-all handler called %d times, want 2", all)
	}
	if other != 0 {
		t.Errorf("unrelated handler called %d times, want 0", other)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBus(nil)
	var calls int
	unsub := b.Subscribe("object.updated", func(context.Context, plugin.Event) { calls++ })
	unsubAll := b.SubscribeAll(func(context.Context, plugin.Event) { calls++ })

	unsub()
	unsubAll()
	_ = b.Publish(context.Background(), plugin.Event{Topic: "object.updated"})

	if calls != 0 {
		t.Errorf("handlers called %d times after unsubscribe", calls)
	}
}

func TestPublish_recovers_from_panic(t *testing.T) {
	b := NewBus(zap.NewNop())
	var after bool
	b.Subscribe("boom", func(context.Context, plugin.Event) { panic("handler bug") })
	b.Subscribe("boom", func(context.Context, plugin.Event) { after = true })

	if err := b.Publish(context.Background(), plugin.Event{Topic: "boom"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !after {
		t.Error("second handler did not run after first panicked")
	}
}

func TestPublishAsync_outlives_caller_context(t *testing.T) {
	b := NewBus(zap.NewNop())

	var mu sync.Mutex
	var sawCancel bool
	var calls atomic.Int32
	b.Subscribe("job.updated", func(ctx context.Context, _ plugin.Event) {
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		sawCancel = ctx.Err() != nil
		mu.Unlock()
		calls.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	b.PublishAsync(ctx, plugin.Event{Topic: "job.updated"})
	cancel()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), time.Second)
	defer drainCancel()
	if err := b.Drain(drainCtx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("handler calls = %d, want 1", calls.Load())
	}
	mu.Lock()
	defer mu.Unlock()
	if sawCancel {
		t.Error("async handler saw the publisher's cancellation")
	}
}
