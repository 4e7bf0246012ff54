// Package ws streams object changes and job updates to websocket clients.
package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HerbHall/peeringmanager/internal/auth"
	"github.com/HerbHall/peeringmanager/pkg/models"
	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

var (
	wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "peeringmanager_websocket_clients",
		Help: "Connected websocket clients.",
	})
	wsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "peeringmanager_websocket_dropped_messages_total",
		Help: "Messages dropped because a client fell behind.",
	})
)

func init() {
	prometheus.MustRegister(wsClients, wsDropped)
}

// Handler serves the event stream.
type Handler struct {
	hub    *Hub
	tokens *auth.TokenService
	logger *zap.Logger
	unsubs []func()
}

var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a Handler and subscribes it to object and job events.
// tokens may be nil when authentication is disabled.
func NewHandler(tokens *auth.TokenService, bus plugin.Subscriber, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{hub: NewHub(logger), tokens: tokens, logger: logger}
	if bus != nil {
		h.unsubs = append(h.unsubs,
			bus.Subscribe(models.TopicObjectAll, h.onObjectChange),
			bus.Subscribe(models.TopicJobAll, h.onJobUpdate),
		)
	}
	return h
}

// Hub returns the handler's hub.
func (h *Handler) Hub() *Hub { return h.hub }

// Close drops the bus subscriptions.
func (h *Handler) Close() {
	for _, unsub := range h.unsubs {
		unsub()
	}
	h.unsubs = nil
}

// RegisterRoutes registers the websocket route on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/events", h.handleEvents)
}

func (h *Handler) onObjectChange(_ context.Context, event plugin.Event) {
	change, ok := event.Payload.(models.ObjectChange)
	if !ok {
		return
	}
	h.hub.Broadcast(Message{
		Type:      MessageType(event.Topic),
		Model:     string(change.ContentType),
		ObjectID:  change.ObjectID,
		Timestamp: event.Timestamp,
		Data:      change.Data,
	})
}

func (h *Handler) onJobUpdate(_ context.Context, event plugin.Event) {
	job, ok := event.Payload.(models.JobResult)
	if !ok {
		return
	}
	h.hub.Broadcast(Message{
		Type:      MessageType(event.Topic),
		Model:     string(models.ContentTypeJobResult),
		ObjectID:  job.ID,
		Timestamp: event.Timestamp,
		Data:      job,
	})
}

// handleEvents upgrades the connection and streams messages. Browsers cannot
// set headers on websocket requests, so the access token comes in the
// token query parameter. types=object,job limits the stream.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	username := "anonymous"
	if h.tokens != nil {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token parameter", http.StatusUnauthorized)
			return
		}
		claims, err := h.tokens.ValidateAccessToken(token)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		username = claims.Username
	}

	var families []string
	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				families = append(families, f)
			}
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, //nolint:gosec // origin is irrelevant, the token authenticates
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := NewClient(conn, username, families, h.logger)
	h.hub.Register(client)
	wsClients.Inc()

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	client.readPump(ctx)

	h.hub.Unregister(client)
	wsClients.Dec()
	_ = conn.Close(websocket.StatusNormalClosure, "")
	<-done
}
