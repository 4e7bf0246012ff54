package extras

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/peeringmanager/internal/auth"
	"github.com/HerbHall/peeringmanager/internal/query"
	"github.com/HerbHall/peeringmanager/internal/server"
	"github.com/HerbHall/peeringmanager/pkg/models"
	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

const maxBodyBytes = 1 << 20

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

func (m *Module) writeStoreError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, what+" already exists")
	case errors.Is(err, ErrInvalid), errors.Is(err, query.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
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
		writeError(w, http.StatusServiceUnavailable, "extras store not available")
		return false
	}
	return true
}

// logChange records a write with the request's user and id.
func (m *Module) logChange(r *http.Request, action models.ObjectAction, what string, id int64) {
	fields := []zap.Field{
		zap.String("action", string(action)),
		zap.String("object", what),
		zap.Int64("id", id),
		zap.String("request_id", server.RequestID(r.Context())),
	}
	if c := auth.UserFromContext(r.Context()); c != nil {
		fields = append(fields, zap.String("username", c.Username))
	}
	m.logger.Info("object changed", fields...)
}

// resource binds one entity's store operations to the generic handlers.
// A nil create makes the resource read-only.
type resource[T any] struct {
	label   string
	filters query.FilterSet

	list    func(ctx context.Context, p query.Params) ([]T, int, error)
	lookup  func(ctx context.Context, key string) (*T, error)
	create  func(ctx context.Context, v *T) error
	update  func(ctx context.Context, v *T) error
	remove  func(ctx context.Context, id int64) error
	prepare func(ctx context.Context, v *T) error
	id      func(v *T) int64
	setID   func(v *T, id int64)
}

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
		m.logChange(r, models.ActionCreated, res.label, res.id(v))
		writeJSON(w, http.StatusCreated, v)
	}
}

// updateHandler serves PUT and PATCH; PATCH decodes over the stored object.
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
		m.logChange(r, models.ActionUpdated, res.label, id)
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
		m.logChange(r, models.ActionDeleted, res.label, id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func crudRoutes[T any](m *Module, base string, res *resource[T]) []plugin.Route {
	routes := []plugin.Route{
		{Method: "GET", Path: base, Handler: listHandler(m, res)},
		{Method: "GET", Path: base + "/{id}", Handler: getHandler(m, res)},
	}
	if res.create == nil {
		return routes
	}
	return append(routes,
		plugin.Route{Method: "POST", Path: base, Handler: createHandler(m, res)},
		plugin.Route{Method: "PUT", Path: base + "/{id}", Handler: updateHandler(m, res)},
		plugin.Route{Method: "PATCH", Path: base + "/{id}", Handler: updateHandler(m, res)},
		plugin.Route{Method: "DELETE", Path: base + "/{id}", Handler: deleteHandler(m, res)},
	)
}
