package extras

import (
	"context"

	"github.com/HerbHall/peeringmanager/internal/query"
	"github.com/HerbHall/peeringmanager/pkg/models"
	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	routes := []plugin.Route{
		{Method: "GET", Path: "/config-contexts/resolve", Handler: m.handleResolveContext},
		{Method: "GET", Path: "/config-contexts/{id}/export", Handler: m.handleExportContext},
		{Method: "GET", Path: "/export-templates/{id}/render", Handler: m.handleRenderExport},
		{Method: "GET", Path: "/ix-api/accounts", Handler: m.handleIXAPIAccounts},
		{Method: "GET", Path: "/ix-api/{id}/accounts", Handler: m.handleStoredIXAPIAccounts},
	}
	routes = append(routes, crudRoutes(m, "/job-results", m.jobResults())...)
	routes = append(routes, crudRoutes(m, "/webhooks", m.webhooks())...)
	routes = append(routes, crudRoutes(m, "/config-contexts", m.configContexts())...)
	routes = append(routes, crudRoutes(m, "/config-context-assignments", m.assignments())...)
	routes = append(routes, crudRoutes(m, "/export-templates", m.exportTemplates())...)
	return append(routes, crudRoutes(m, "/ix-api", m.ixapis())...)
}

// jobResults is read-only; the job runner owns every write.
func (m *Module) jobResults() *resource[models.JobResult] {
	return &resource[models.JobResult]{
		label:   "job result",
		filters: jobFilters,
		list: func(ctx context.Context, p query.Params) ([]models.JobResult, int, error) {
			return m.store.ListJobResults(ctx, p)
		},
		lookup: func(ctx context.Context, key string) (*models.JobResult, error) { return m.store.GetJobResult(ctx, key) },
	}
}

func (m *Module) webhooks() *resource[models.Webhook] {
	return &resource[models.Webhook]{
		label:   "webhook",
		filters: webhookFilters,
		list: func(ctx context.Context, p query.Params) ([]models.Webhook, int, error) {
			return m.store.ListWebhooks(ctx, p)
		},
		lookup:  byID(func(ctx context.Context, id int64) (*models.Webhook, error) { return m.store.GetWebhook(ctx, id) }),
		create:  func(ctx context.Context, v *models.Webhook) error { return m.store.CreateWebhook(ctx, v) },
		update:  func(ctx context.Context, v *models.Webhook) error { return m.store.UpdateWebhook(ctx, v) },
		remove:  func(ctx context.Context, id int64) error { return m.store.DeleteWebhook(ctx, id) },
		prepare: validateWebhook,
		id:      func(v *models.Webhook) int64 { return v.ID },
		setID:   func(v *models.Webhook, id int64) { v.ID = id },
	}
}

func (m *Module) configContexts() *resource[models.ConfigContext] {
	return &resource[models.ConfigContext]{
		label:   "config context",
		filters: contextFilters,
		list: func(ctx context.Context, p query.Params) ([]models.ConfigContext, int, error) {
			return m.store.ListConfigContexts(ctx, p)
		},
		lookup:  byID(func(ctx context.Context, id int64) (*models.ConfigContext, error) { return m.store.GetConfigContext(ctx, id) }),
		create:  func(ctx context.Context, v *models.ConfigContext) error { return m.store.CreateConfigContext(ctx, v) },
		update:  func(ctx context.Context, v *models.ConfigContext) error { return m.store.UpdateConfigContext(ctx, v) },
		remove:  func(ctx context.Context, id int64) error { return m.store.DeleteConfigContext(ctx, id) },
		prepare: validateConfigContext,
		id:      func(v *models.ConfigContext) int64 { return v.ID },
		setID:   func(v *models.ConfigContext, id int64) { v.ID = id },
	}
}

func (m *Module) assignments() *resource[models.ConfigContextAssignment] {
	return &resource[models.ConfigContextAssignment]{
		label:   "config context assignment",
		filters: assignmentFilters,
		list: func(ctx context.Context, p query.Params) ([]models.ConfigContextAssignment, int, error) {
			return m.store.ListAssignments(ctx, p)
		},
		lookup: byID(func(ctx context.Context, id int64) (*models.ConfigContextAssignment, error) {
			return m.store.GetAssignment(ctx, id)
		}),
		create:  func(ctx context.Context, v *models.ConfigContextAssignment) error { return m.store.CreateAssignment(ctx, v) },
		update:  func(ctx context.Context, v *models.ConfigContextAssignment) error { return m.store.UpdateAssignment(ctx, v) },
		remove:  func(ctx context.Context, id int64) error { return m.store.DeleteAssignment(ctx, id) },
		prepare: validateAssignment,
		id:      func(v *models.ConfigContextAssignment) int64 { return v.ID },
		setID:   func(v *models.ConfigContextAssignment, id int64) { v.ID = id },
	}
}

func (m *Module) exportTemplates() *resource[models.ExportTemplate] {
	return &resource[models.ExportTemplate]{
		label:   "export template",
		filters: exportFilters,
		list: func(ctx context.Context, p query.Params) ([]models.ExportTemplate, int, error) {
			return m.store.ListExportTemplates(ctx, p)
		},
		lookup:  byID(func(ctx context.Context, id int64) (*models.ExportTemplate, error) { return m.store.GetExportTemplate(ctx, id) }),
		create:  func(ctx context.Context, v *models.ExportTemplate) error { return m.store.CreateExportTemplate(ctx, v) },
		update:  func(ctx context.Context, v *models.ExportTemplate) error { return m.store.UpdateExportTemplate(ctx, v) },
		remove:  func(ctx context.Context, id int64) error { return m.store.DeleteExportTemplate(ctx, id) },
		prepare: validateExportTemplate,
		id:      func(v *models.ExportTemplate) int64 { return v.ID },
		setID:   func(v *models.ExportTemplate, id int64) { v.ID = id },
	}
}

func (m *Module) ixapis() *resource[models.IXAPI] {
	return &resource[models.IXAPI]{
		label:   "ix-api",
		filters: ixapiFilters,
		list: func(ctx context.Context, p query.Params) ([]models.IXAPI, int, error) {
			return m.store.ListIXAPIs(ctx, p)
		},
		lookup:  byID(func(ctx context.Context, id int64) (*models.IXAPI, error) { return m.store.GetIXAPI(ctx, id) }),
		create:  func(ctx context.Context, v *models.IXAPI) error { return m.store.CreateIXAPI(ctx, v) },
		update:  func(ctx context.Context, v *models.IXAPI) error { return m.store.UpdateIXAPI(ctx, v) },
		remove:  func(ctx context.Context, id int64) error { return m.store.DeleteIXAPI(ctx, id) },
		prepare: validateIXAPI,
		id:      func(v *models.IXAPI) int64 { return v.ID },
		setID:   func(v *models.IXAPI, id int64) { v.ID = id },
	}
}
