package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/HerbHall/peeringmanager/internal/auth"
	"github.com/HerbHall/peeringmanager/internal/testutil"
	"github.com/HerbHall/peeringmanager/pkg/models"
	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

func newTestClient(username string, families ...string) *Client {
	return NewClient(nil, username, families, zap.NewNop())
}

func objectMessage(id int64) Message {
	return Message{Type: MessageObjectCreated, Model: "peering.router", ObjectID: id, Timestamp: time.Now()}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(nil)
	c := newTestClient("noc")

	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}
	hub.Unregister(c)
	hub.Unregister(c) // second call is a no-op
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel still open after Unregister")
	}
}

func TestHub_BroadcastFiltersByFamily(t *testing.T) {
	hub := NewHub(nil)
	all := newTestClient("all")
	objects := newTestClient("objects", "object")
	jobs := newTestClient("jobs", "job")
	for _, c := range []*Client{all, objects, jobs} {
		hub.Register(c)
	}

	hub.Broadcast(objectMessage(1))
	hub.Broadcast(Message{Type: MessageJobUpdated, ObjectID: 2})

	want := map[*Client][]MessageType{
		all:     {MessageObjectCreated, MessageJobUpdated},
		objects: {MessageObjectCreated},
		jobs:    {MessageJobUpdated},
	}
	for c, types := range want {
		if len(c.send) != len(types) {
			t.Fatalf("%s got %d messages, want %d", c.username, len(c.send), len(types))
		}
		for _, typ := range types {
			if got := <-c.send; got.Type != typ {
				t.Errorf("%s got %s, want %s", c.username, got.Type, typ)
			}
		}
	}
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil)
	c := newTestClient("slow")
	hub.Register(c)

	for i := range sendBuffer + 5 {
		hub.Broadcast(objectMessage(int64(i)))
	}
	if len(c.send) != sendBuffer {
		t.Errorf("buffered %d messages, want %d", len(c.send), sendBuffer)
	}
	if first := <-c.send; first.ObjectID != 0 {
		t.Errorf("first message ObjectID = %d, want 0", first.ObjectID)
	}
}

func TestHub_ConcurrentUse(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(nil)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newTestClient("c")
			hub.Register(c)
			hub.Broadcast(objectMessage(int64(i)))
			_ = hub.ClientCount()
			hub.Unregister(c)
		}()
	}
	wg.Wait()
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestHandler_ForwardsBusEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := testutil.NewMockBus()
	h := NewHandler(nil, bus, zap.NewNop())
	c := newTestClient("noc")
	h.Hub().Register(c)

	ctx := context.Background()
	_ = bus.Publish(ctx, plugin.Event{
		Topic:     models.TopicObjectDeleted,
		Timestamp: time.Now(),
		Payload: models.ObjectChange{
			Action:      models.ActionDeleted,
			ContentType: models.ContentTypeRouter,
			ObjectID:    7,
		},
	})
	_ = bus.Publish(ctx, plugin.Event{
		Topic:   models.TopicJobUpdated,
		Payload: models.JobResult{ID: 3, Name: "import", Status: models.JobStatusCompleted},
	})
	_ = bus.Publish(ctx, plugin.Event{Topic: models.TopicObjectCreated, Payload: "not a change"})

	if len(c.send) != 2 {
		t.Fatalf("got %d messages, want 2", len(c.send))
	}
	obj := <-c.send
	if obj.Type != MessageObjectDeleted || obj.Model != "peering.router" || obj.ObjectID != 7 {
		t.Errorf("object message = %+v", obj)
	}
	job := <-c.send
	if job.Type != MessageJobUpdated || job.Model != "extras.jobresult" || job.ObjectID != 3 {
		t.Errorf("job message = %+v", job)
	}

	h.Close()
	_ = bus.Publish(ctx, plugin.Event{Topic: models.TopicObjectCreated, Payload: models.ObjectChange{}})
	if len(c.send) != 0 {
		t.Error("message delivered after Close")
	}
	h.Hub().Unregister(c)
}

func TestHandler_Stream(t *testing.T) {
	tokens := auth.NewTokenService([]byte("ws-test-secret"), time.Minute, time.Hour)
	token, err := tokens.IssueAccessToken(&auth.User{ID: "u1", Username: "noc", Role: auth.RoleViewer})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	h := NewHandler(tokens, nil, zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/ws/events")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/events?types=object&token=" + token
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for h.Hub().ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.Hub().Broadcast(Message{Type: MessageJobCreated, ObjectID: 1})
	h.Hub().Broadcast(objectMessage(42))

	var got Message
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Type != MessageObjectCreated || got.ObjectID != 42 {
		t.Errorf("message = %+v, want object.created 42", got)
	}
}
