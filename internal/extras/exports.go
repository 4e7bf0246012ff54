package extras

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/HerbHall/peeringmanager/internal/query"
	"github.com/HerbHall/peeringmanager/internal/render"
	"github.com/HerbHall/peeringmanager/pkg/models"
)

// ObjectLister lists every object of a content type for export.
type ObjectLister interface {
	ListObjects(ctx context.Context, ct models.ContentType) (any, error)
}

// objectLister returns the configured lister, falling back to the first
// inventory module that can list objects.
func (m *Module) objectLister() ObjectLister {
	if m.objects != nil || m.plugins == nil {
		return m.objects
	}
	for _, p := range m.plugins.ResolveByRole("inventory") {
		if l, ok := p.(ObjectLister); ok {
			return l
		}
	}
	return nil
}

// RenderExport renders t with every object of its content type bound to
// dataset.
func (m *Module) RenderExport(ctx context.Context, t *models.ExportTemplate) (string, error) {
	var (
		list any
		err  error
	)
	objects := m.objectLister()
	switch {
	case t.ContentType == models.ContentTypeJobResult && m.store != nil:
		list, _, err = m.store.ListJobResults(ctx, query.Params{Where: "1=1", Limit: -1})
	case objects == nil:
		return "", fmt.Errorf("%w: no object source for %s", ErrInvalid, t.ContentType)
	default:
		list, err = objects.ListObjects(ctx, t.ContentType)
	}
	if err != nil {
		return "", fmt.Errorf("list %s: %w", t.ContentType, err)
	}
	dataset, err := render.Value(list)
	if err != nil {
		return "", err
	}
	return render.String(t.Template, render.Context{"dataset": dataset})
}

// handleRenderExport renders an export template as a download.
//
//	@Summary		Render export template
//	@Description	Renders every object of the template's content type.
//	@Tags			extras
//	@Produce		plain
//	@Param			id	path		int	true	"Export template ID"
//	@Success		200	{string}	string
//	@Failure		404	{object}	models.Problem
//	@Failure		422	{object}	models.Problem
//	@Router			/extras/export-templates/{id}/render [get]
func (m *Module) handleRenderExport(w http.ResponseWriter, r *http.Request) {
	if !m.ready(w) {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "export template not found")
		return
	}
	t, err := m.store.GetExportTemplate(r.Context(), id)
	if err != nil {
		m.writeStoreError(w, err, "export template")
		return
	}
	out, err := m.RenderExport(r.Context(), t)
	switch {
	case errors.Is(err, render.ErrSyntax), errors.Is(err, render.ErrExecution):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		m.writeStoreError(w, err, "export template")
		return
	}

	mimeType := t.MIMEType
	if mimeType == "" {
		mimeType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", mimeType)
	if t.FileExtension != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment",
			map[string]string{"filename": t.Name + "." + t.FileExtension}))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

// handleExportContext writes a config context's data as JSON (default)
// or YAML.
//
//	@Summary		Export config context data
//	@Tags			extras
//	@Produce		json
//	@Produce		application/yaml
//	@Param			id		path	int		true	"Config context ID"
//	@Param			format	query	string	false	"json or yaml"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	models.Problem
//	@Failure		404		{object}	models.Problem
//	@Router			/extras/config-contexts/{id}/export [get]
func (m *Module) handleExportContext(w http.ResponseWriter, r *http.Request) {
	if !m.ready(w) {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "config context not found")
		return
	}
	c, err := m.store.GetConfigContext(r.Context(), id)
	if err != nil {
		m.writeStoreError(w, err, "config context")
		return
	}
	writeData(w, r, c.Data, m.logger)
}

// handleResolveContext returns the merged config context of an object.
//
//	@Summary		Resolve config context
//	@Tags			extras
//	@Produce		json
//	@Param			content_type	query	string	true	"Content type"
//	@Param			object_id		query	int		true	"Object ID"
//	@Param			format			query	string	false	"json or yaml"
//	@Success		200				{object}	map[string]any
//	@Failure		400				{object}	models.Problem
//	@Router			/extras/config-contexts/resolve [get]
func (m *Module) handleResolveContext(w http.ResponseWriter, r *http.Request) {
	if !m.ready(w) {
		return
	}
	ct := models.ContentType(r.URL.Query().Get("content_type"))
	if !ct.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown content type %q", ct))
		return
	}
	id, err := strconv.ParseInt(r.URL.Query().Get("object_id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "object_id must be a positive integer")
		return
	}
	data, err := m.ResolveContext(r.Context(), ct, id)
	if err != nil {
		m.writeStoreError(w, err, "config context")
		return
	}
	writeData(w, r, data, m.logger)
}

func writeData(w http.ResponseWriter, r *http.Request, data map[string]any, logger *zap.Logger) {
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, data)
	case "yaml":
		out, err := yaml.Marshal(data)
		if err != nil {
			logger.Error("encode config context", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
	}
}
