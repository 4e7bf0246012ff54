// Package extras provides job results, webhooks, config contexts, export
// templates and IX-API endpoints.
package extras

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/HerbHall/peeringmanager/internal/jobs"
	"github.com/HerbHall/peeringmanager/internal/webhook"
	"github.com/HerbHall/peeringmanager/pkg/models"
	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.HTTPProvider    = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ plugin.Validator       = (*Module)(nil)
)

// Module implements the extras plugin.
type Module struct {
	logger *zap.Logger
	cfg    Config
	store  *Store
	bus    plugin.EventBus

	plugins   plugin.PluginResolver
	runner    *jobs.Runner
	deliverer Deliverer
	objects   ObjectLister
}

// New creates a new extras plugin instance.
func New() *Module {
	return &Module{cfg: DefaultConfig()}
}

// SetObjectLister sets the source of export template datasets. Without one,
// the registry's inventory modules are used.
func (m *Module) SetObjectLister(l ObjectLister) { m.objects = l }

// SetDeliverer replaces the webhook dispatcher.
func (m *Module) SetDeliverer(d Deliverer) { m.deliverer = d }

// Store returns the module's store, or nil before Init.
func (m *Module) Store() *Store { return m.store }

// Submit runs fn as a background job recorded in the job result table.
// It returns jobs.ErrStopped when no runner is available.
func (m *Module) Submit(ctx context.Context, spec jobs.Spec, fn jobs.Func) (*models.JobResult, error) {
	if m.runner == nil {
		return nil, jobs.ErrStopped
	}
	return m.runner.Submit(ctx, spec, fn)
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "extras",
		Version:     "0.1.0",
		Description: "Job results, webhooks, config contexts, export templates and IX-API",
		Roles:       []string{"automation"},
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.bus = deps.Bus
	m.plugins = deps.Plugins

	if deps.Config != nil {
		if d := deps.Config.GetDuration("webhook_timeout"); d > 0 {
			m.cfg.WebhookTimeout = d
		}
		if d := deps.Config.GetDuration("ixapi_timeout"); d > 0 {
			m.cfg.IXAPITimeout = d
		}
		if deps.Config.IsSet("job_concurrency") {
			m.cfg.JobConcurrency = deps.Config.GetInt("job_concurrency")
		}
		if deps.Config.IsSet("webhook_workers") {
			m.cfg.WebhookWorkers = deps.Config.GetInt("webhook_workers")
		}
	}

	if deps.Store != nil {
		if err := deps.Store.Migrate(ctx, "extras", migrations()); err != nil {
			return fmt.Errorf("extras migrations: %w", err)
		}
		m.store = NewStore(deps.Store.DB())
		m.runner = jobs.NewRunner(m.store, m.bus, m.cfg.JobConcurrency, m.logger.Named("jobs"))
	}
	if m.deliverer == nil {
		m.deliverer = webhook.NewDispatcher(m.cfg.WebhookTimeout, m.logger.Named("webhook"))
	}

	m.logger.Info("extras module initialized",
		zap.Duration("webhook_timeout", m.cfg.WebhookTimeout),
		zap.Int("job_concurrency", m.cfg.JobConcurrency),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	return m.cfg.validate()
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("extras module started")
	return nil
}

// Stop waits for running jobs until ctx expires.
func (m *Module) Stop(ctx context.Context) error {
	if m.runner != nil {
		if err := m.runner.Stop(ctx); err != nil {
			return fmt.Errorf("stop job runner: %w", err)
		}
	}
	if m.logger != nil {
		m.logger.Info("extras module stopped")
	}
	return nil
}
