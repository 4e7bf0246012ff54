// Package peering manages autonomous systems, internet exchanges, routers,
// peering sessions, communities and configuration templates, and drives
// router configuration from exchange templates.
package peering

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/peeringmanager/internal/device"
	"github.com/HerbHall/peeringmanager/internal/jobs"
	"github.com/HerbHall/peeringmanager/internal/peeringdb"
	"github.com/HerbHall/peeringmanager/pkg/models"
	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

// DriverFactory builds device drivers by platform.
type DriverFactory interface {
	New(platform string, opts device.Options) (device.Driver, error)
}

// Catalog is the read side of PeeringDB used by the import and sync
// workflows.
type Catalog interface {
	GetNetwork(ctx context.Context, asn int64) (*peeringdb.Network, error)
	ImportCandidates(ctx context.Context, asn int64, known map[int64]bool) ([]peeringdb.Candidate, error)
	Peers(ctx context.Context, netixlanID int64) ([]peeringdb.Peer, error)
}

// JobRunner runs background work and records it as a job result.
type JobRunner interface {
	Submit(ctx context.Context, spec jobs.Spec, fn jobs.Func) (*models.JobResult, error)
}

// ContextResolver returns the merged config context data assigned to an
// object.
type ContextResolver interface {
	ResolveContext(ctx context.Context, ct models.ContentType, id int64) (map[string]any, error)
}

// Pinger checks ICMP reachability of a host.
type Pinger func(ctx context.Context, host string, count int, timeout time.Duration) (bool, time.Duration, error)

// Compile-time interface guards.
var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
	_ plugin.Validator    = (*Module)(nil)
)

// Module implements the peering plugin.
type Module struct {
	logger *zap.Logger
	cfg    Config
	store  *Store
	bus    plugin.EventBus

	drivers    DriverFactory
	deviceOpts device.Options
	catalog    Catalog
	jobs       JobRunner
	contexts   ContextResolver
	ping       Pinger
}

// New creates a new peering plugin instance.
func New() *Module {
	return &Module{cfg: DefaultConfig(), ping: device.Ping}
}

// SetDrivers sets the device driver factory and the shared connection
// options (credentials, timeout, driver arguments).
func (m *Module) SetDrivers(f DriverFactory, opts device.Options) {
	m.drivers = f
	m.deviceOpts = opts
}

// SetCatalog sets the PeeringDB client.
func (m *Module) SetCatalog(c Catalog) { m.catalog = c }

// SetJobRunner sets the background job runner.
func (m *Module) SetJobRunner(r JobRunner) { m.jobs = r }

// SetContextResolver sets the config context resolver used when rendering.
func (m *Module) SetContextResolver(r ContextResolver) { m.contexts = r }

// SetPinger replaces the ICMP reachability check.
func (m *Module) SetPinger(p Pinger) { m.ping = p }

// Store returns the module's store, or nil before Init.
func (m *Module) Store() *Store { return m.store }

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "peering",
		Version:     "0.1.0",
		Description: "Autonomous systems, internet exchanges, routers and peering sessions",
		Required:    true,
		Roles:       []string{"inventory", "automation"},
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.bus = deps.Bus

	if deps.Config != nil {
		if v := deps.Config.GetInt("my_asn"); v > 0 {
			m.cfg.MyASN = int64(v)
		}
		if d := deps.Config.GetDuration("ping_timeout"); d > 0 {
			m.cfg.PingTimeout = d
		}
		if deps.Config.IsSet("ping_count") {
			m.cfg.PingCount = deps.Config.GetInt("ping_count")
		}
	}

	if deps.Store != nil {
		if err := deps.Store.Migrate(ctx, "peering", migrations()); err != nil {
			return fmt.Errorf("peering migrations: %w", err)
		}
		m.store = NewStore(deps.Store.DB())
	}

	m.logger.Info("peering module initialized", zap.Int64("my_asn", m.cfg.MyASN))
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	return m.cfg.validate()
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("peering module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.logger != nil {
		m.logger.Info("peering module stopped")
	}
	return nil
}
