package peering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/peeringmanager/internal/auth"
	"github.com/HerbHall/peeringmanager/internal/jobs"
	"github.com/HerbHall/peeringmanager/internal/query"
	"github.com/HerbHall/peeringmanager/internal/server"
	"github.com/HerbHall/peeringmanager/pkg/models"
	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an RFC 7807 problem detail response.
func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.Problem{
		Type:   models.ProblemTypeBase + strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "-")),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

// writeStoreError maps store sentinels onto problem responses.
func (m *Module) writeStoreError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, what+" already exists")
	case errors.Is(err, ErrInvalid), errors.Is(err, query.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "job runner not available")
	default:
		m.logger.Error("store operation failed", zap.String("object", what), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (m *Module) ready(w http.ResponseWriter) bool {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "peering store not available")
		return false
	}
	return true
}

func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrInvalid, name)
	}
	return id, nil
}

// changeFor starts an object change for the request's user.
func (m *Module) changeFor(r *http.Request, action models.ObjectAction, ct models.ContentType) models.ObjectChange {
	change := models.ObjectChange{
		Action:      action,
		ContentType: ct,
		RequestID:   server.RequestID(r.Context()),
		Timestamp:   time.Now().UTC(),
	}
	if c := auth.UserFromContext(r.Context()); c != nil {
		change.Username = c.Username
	}
	return change
}

// publishChange emits an object change event for the request's user.
func (m *Module) publishChange(r *http.Request, action models.ObjectAction, ct models.ContentType, id int64, data any) {
	change := m.changeFor(r, action, ct)
	change.ObjectID, change.Data = id, data
	m.emitChange(context.WithoutCancel(r.Context()), change)
}

func (m *Module) emitChange(ctx context.Context, change models.ObjectChange) {
	if m.bus == nil {
		return
	}
	m.bus.PublishAsync(ctx, plugin.Event{
		Topic:     change.Topic(),
		Source:    "peering",
		Timestamp: change.Timestamp,
		Payload:   change,
	})
}

func userID(r *http.Request) *string {
	if c := auth.UserFromContext(r.Context()); c != nil && c.UserID != "" {
		id := c.UserID
		return &id
	}
	return nil
}

// resource binds one entity's store operations and validation to the
// generic REST handlers.
type resource[T any] struct {
	label       string
	contentType models.ContentType
	filters     query.FilterSet

	list    func(ctx context.Context, p query.Params) ([]T, int, error)
	lookup  func(ctx context.Context, key string) (*T, error)
	create  func(ctx context.Context, v *T) error
	update  func(ctx context.Context, v *T) error
	remove  func(ctx context.Context, id int64) error
	prepare func(ctx context.Context, v *T) error
	id      func(v *T) int64
	setID   func(v *T, id int64)
}

// byID adapts an id getter to a path key lookup.
func byID[T any](get func(context.Context, int64) (*T, error)) func(context.Context, string) (*T, error) {
	return func(ctx context.Context, key string) (*T, error) {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", key, ErrNotFound)
		}
		return get(ctx, id)
	}
}

func listHandler[T any](m *Module, res *resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.ready(w) {
			return
		}
		p, err := query.Parse(r.URL.Query(), res.filters)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		items, total, err := res.list(r.Context(), p)
		if err != nil {
			m.writeStoreError(w, err, res.label)
			return
		}
		writeJSON(w, http.StatusOK, query.NewPage(r, p, total, items))
	}
}

func getHandler[T any](m *Module, res *resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.ready(w) {
			return
		}
		v, err := res.lookup(r.Context(), r.PathValue("id"))
		if err != nil {
			m.writeStoreError(w, err, res.label)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func createHandler[T any](m *Module, res *resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.ready(w) {
			return
		}
		v := new(T)
		if !decodeJSON(w, r, v) {
			return
		}
		res.setID(v, 0)
		if err := res.prepare(r.Context(), v); err != nil {
			m.writeStoreError(w, err, res.label)
			return
		}
		if err := res.create(r.Context(), v); err != nil {
			m.writeStoreError(w, err, res.label)
			return
		}
		m.publishChange(r, models.ActionCreated, res.contentType, res.id(v), v)
		writeJSON(w, http.StatusCreated, v)
	}
}

// updateHandler serves PUT and PATCH. The body is decoded over the stored
// object, so fields absent from a PATCH keep their values.
func updateHandler[T any](m *Module, res *resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.ready(w) {
			return
		}
		v, err := res.lookup(r.Context(), r.PathValue("id"))
		if err != nil {
			m.writeStoreError(w, err, res.label)
			return
		}
		id := res.id(v)
		if r.Method == http.MethodPut {
			v = new(T)
		}
		if !decodeJSON(w, r, v) {
			return
		}
		res.setID(v, id)
		if err := res.prepare(r.Context(), v); err != nil {
			m.writeStoreError(w, err, res.label)
			return
		}
		if err := res.update(r.Context(), v); err != nil {
			m.writeStoreError(w, err, res.label)
			return
		}
		m.publishChange(r, models.ActionUpdated, res.contentType, id, v)
		writeJSON(w, http.StatusOK, v)
	}
}

func deleteHandler[T any](m *Module, res *resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.ready(w) {
			return
		}
		v, err := res.lookup(r.Context(), r.PathValue("id"))
		if err != nil {
			m.writeStoreError(w, err, res.label)
			return
		}
		id := res.id(v)
		if err := res.remove(r.Context(), id); err != nil {
			m.writeStoreError(w, err, res.label)
			return
		}
		m.publishChange(r, models.ActionDeleted, res.contentType, id, v)
		w.WriteHeader(http.StatusNoContent)
	}
}

// crudRoutes returns the list, create, retrieve, update and delete routes
// of res under base.
func crudRoutes[T any](m *Module, base string, res *resource[T]) []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: base, Handler: listHandler(m, res)},
		{Method: "POST", Path: base, Handler: createHandler(m, res)},
		{Method: "GET", Path: base + "/{id}", Handler: getHandler(m, res)},
		{Method: "PUT", Path: base + "/{id}", Handler: updateHandler(m, res)},
		{Method: "PATCH", Path: base + "/{id}", Handler: updateHandler(m, res)},
		{Method: "DELETE", Path: base + "/{id}", Handler: deleteHandler(m, res)},
	}
}
