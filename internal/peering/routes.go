package peering

import (
	"context"
	"errors"
	"strconv"

	"github.com/HerbHall/peeringmanager/internal/query"
	"github.com/HerbHall/peeringmanager/pkg/models"
	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	var routes []plugin.Route
	routes = append(routes, crudRoutes(m, "/autonomous-systems", m.autonomousSystems())...)
	routes = append(routes, crudRoutes(m, "/internet-exchanges", m.internetExchanges())...)
	routes = append(routes, crudRoutes(m, "/routers", m.routers())...)
	routes = append(routes, crudRoutes(m, "/peering-sessions", m.peeringSessions())...)
	routes = append(routes, crudRoutes(m, "/communities", m.communities())...)
	routes = append(routes, crudRoutes(m, "/configuration-templates", m.configurationTemplates())...)

	return append(routes,
		plugin.Route{Method: "GET", Path: "/internet-exchanges/import-candidates", Handler: m.handleImportCandidates},
		plugin.Route{Method: "POST", Path: "/internet-exchanges/import", Handler: m.handleImport},
		plugin.Route{Method: "GET", Path: "/internet-exchanges/{slug}/configuration", Handler: m.handleConfiguration},
		plugin.Route{Method: "GET", Path: "/internet-exchanges/{slug}/changes", Handler: m.handleChanges},
		plugin.Route{Method: "POST", Path: "/internet-exchanges/{slug}/changes", Handler: m.handleChanges},
		plugin.Route{Method: "POST", Path: "/internet-exchanges/{slug}/deploy", Handler: m.handleDeploy},
		plugin.Route{Method: "GET", Path: "/internet-exchanges/{slug}/peers", Handler: m.handlePeers},
		plugin.Route{Method: "PUT", Path: "/internet-exchanges/{slug}/communities", Handler: m.handleSetCommunities},
		plugin.Route{Method: "POST", Path: "/autonomous-systems/{asn}/sync", Handler: m.handleSyncAS},
		plugin.Route{Method: "GET", Path: "/routers/{id}/ping", Handler: m.handlePing},
	)
}

func (m *Module) autonomousSystems() *resource[models.AutonomousSystem] {
	return &resource[models.AutonomousSystem]{
		label:       "autonomous system",
		contentType: models.ContentTypeAutonomousSystem,
		filters:     asFilters,
		list: func(ctx context.Context, p query.Params) ([]models.AutonomousSystem, int, error) {
			return m.store.ListAutonomousSystems(ctx, p)
		},
		lookup:  byID(func(ctx context.Context, id int64) (*models.AutonomousSystem, error) { return m.store.GetAutonomousSystem(ctx, id) }),
		create:  func(ctx context.Context, v *models.AutonomousSystem) error { return m.store.CreateAutonomousSystem(ctx, v) },
		update:  func(ctx context.Context, v *models.AutonomousSystem) error { return m.store.UpdateAutonomousSystem(ctx, v) },
		remove:  func(ctx context.Context, id int64) error { return m.store.DeleteAutonomousSystem(ctx, id) },
		prepare: validateAutonomousSystem,
		id:      func(v *models.AutonomousSystem) int64 { return v.ID },
		setID:   func(v *models.AutonomousSystem, id int64) { v.ID = id },
	}
}

func (m *Module) internetExchanges() *resource[models.InternetExchange] {
	return &resource[models.InternetExchange]{
		label:       "internet exchange",
		contentType: models.ContentTypeInternetExchange,
		filters:     ixFilters,
		list: func(ctx context.Context, p query.Params) ([]models.InternetExchange, int, error) {
			return m.store.ListInternetExchanges(ctx, p)
		},
		lookup:  m.lookupExchange,
		create:  func(ctx context.Context, v *models.InternetExchange) error { return m.store.CreateInternetExchange(ctx, v) },
		update:  func(ctx context.Context, v *models.InternetExchange) error { return m.store.UpdateInternetExchange(ctx, v) },
		remove:  func(ctx context.Context, id int64) error { return m.store.DeleteInternetExchange(ctx, id) },
		prepare: validateInternetExchange,
		id:      func(v *models.InternetExchange) int64 { return v.ID },
		setID:   func(v *models.InternetExchange, id int64) { v.ID = id },
	}
}

// lookupExchange resolves a numeric id, falling back to the slug.
func (m *Module) lookupExchange(ctx context.Context, key string) (*models.InternetExchange, error) {
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		ix, err := m.store.GetInternetExchange(ctx, id)
		if !errors.Is(err, ErrNotFound) {
			return ix, err
		}
	}
	return m.store.GetInternetExchangeBySlug(ctx, key)
}

func (m *Module) routers() *resource[models.Router] {
	return &resource[models.Router]{
		label:       "router",
		contentType: models.ContentTypeRouter,
		filters:     routerFilters,
		list: func(ctx context.Context, p query.Params) ([]models.Router, int, error) {
			return m.store.ListRouters(ctx, p)
		},
		lookup:  byID(func(ctx context.Context, id int64) (*models.Router, error) { return m.store.GetRouter(ctx, id) }),
		create:  func(ctx context.Context, v *models.Router) error { return m.store.CreateRouter(ctx, v) },
		update:  func(ctx context.Context, v *models.Router) error { return m.store.UpdateRouter(ctx, v) },
		remove:  func(ctx context.Context, id int64) error { return m.store.DeleteRouter(ctx, id) },
		prepare: validateRouter,
		id:      func(v *models.Router) int64 { return v.ID },
		setID:   func(v *models.Router, id int64) { v.ID = id },
	}
}

func (m *Module) peeringSessions() *resource[models.PeeringSession] {
	return &resource[models.PeeringSession]{
		label:       "peering session",
		contentType: models.ContentTypePeeringSession,
		filters:     sessionFilters,
		list: func(ctx context.Context, p query.Params) ([]models.PeeringSession, int, error) {
			return m.store.ListPeeringSessions(ctx, p)
		},
		lookup:  byID(func(ctx context.Context, id int64) (*models.PeeringSession, error) { return m.store.GetPeeringSession(ctx, id) }),
		create:  func(ctx context.Context, v *models.PeeringSession) error { return m.store.CreatePeeringSession(ctx, v) },
		update:  func(ctx context.Context, v *models.PeeringSession) error { return m.store.UpdatePeeringSession(ctx, v) },
		remove:  func(ctx context.Context, id int64) error { return m.store.DeletePeeringSession(ctx, id) },
		prepare: validateSession,
		id:      func(v *models.PeeringSession) int64 { return v.ID },
		setID:   func(v *models.PeeringSession, id int64) { v.ID = id },
	}
}

func (m *Module) communities() *resource[models.Community] {
	return &resource[models.Community]{
		label:       "community",
		contentType: models.ContentTypeCommunity,
		filters:     communityFilters,
		list: func(ctx context.Context, p query.Params) ([]models.Community, int, error) {
			return m.store.ListCommunities(ctx, p)
		},
		lookup:  byID(func(ctx context.Context, id int64) (*models.Community, error) { return m.store.GetCommunity(ctx, id) }),
		create:  func(ctx context.Context, v *models.Community) error { return m.store.CreateCommunity(ctx, v) },
		update:  func(ctx context.Context, v *models.Community) error { return m.store.UpdateCommunity(ctx, v) },
		remove:  func(ctx context.Context, id int64) error { return m.store.DeleteCommunity(ctx, id) },
		prepare: validateCommunity,
		id:      func(v *models.Community) int64 { return v.ID },
		setID:   func(v *models.Community, id int64) { v.ID = id },
	}
}

func (m *Module) configurationTemplates() *resource[models.ConfigurationTemplate] {
	return &resource[models.ConfigurationTemplate]{
		label:       "configuration template",
		contentType: models.ContentTypeConfigurationTemplate,
		filters:     templateFilters,
		list: func(ctx context.Context, p query.Params) ([]models.ConfigurationTemplate, int, error) {
			return m.store.ListConfigurationTemplates(ctx, p)
		},
		lookup: byID(func(ctx context.Context, id int64) (*models.ConfigurationTemplate, error) {
			return m.store.GetConfigurationTemplate(ctx, id)
		}),
		create:  func(ctx context.Context, v *models.ConfigurationTemplate) error { return m.store.CreateConfigurationTemplate(ctx, v) },
		update:  func(ctx context.Context, v *models.ConfigurationTemplate) error { return m.store.UpdateConfigurationTemplate(ctx, v) },
		remove:  func(ctx context.Context, id int64) error { return m.store.DeleteConfigurationTemplate(ctx, id) },
		prepare: validateTemplate,
		id:      func(v *models.ConfigurationTemplate) int64 { return v.ID },
		setID:   func(v *models.ConfigurationTemplate, id int64) { v.ID = id },
	}
}
