package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/peeringmanager/internal/config"
	"github.com/HerbHall/peeringmanager/internal/device"
	"github.com/HerbHall/peeringmanager/internal/event"
	"github.com/HerbHall/peeringmanager/internal/extras"
	"github.com/HerbHall/peeringmanager/internal/peering"
	"github.com/HerbHall/peeringmanager/internal/peeringdb"
	"github.com/HerbHall/peeringmanager/internal/registry"
	"github.com/HerbHall/peeringmanager/internal/server"
	"github.com/HerbHall/peeringmanager/internal/store"
	"github.com/HerbHall/peeringmanager/internal/version"
	"github.com/HerbHall/peeringmanager/pkg/models"
	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

// app is the composition root shared by every subcommand.
type app struct {
	v       *viper.Viper
	logger  *zap.Logger
	db      *store.SQLiteStore
	bus     *event.Bus
	reg     *registry.Registry
	peering *peering.Module
	extras  *extras.Module
	catalog *peeringdb.Client
}

// bootstrap loads configuration, opens the database and initializes the
// modules. The caller must Close the app.
func bootstrap(ctx context.Context, configPath string) (*app, error) {
	v, err := server.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger, err := config.NewLogger(v)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("component", "config"), zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults", zap.String("component", "config"))
	}

	dsn := v.GetString("database.dsn")
	if dir := v.GetString("server.data_dir"); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := store.New(dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("database initialized", zap.String("component", "database"), zap.String("dsn", dsn))

	a := &app{
		v:       v,
		logger:  logger,
		db:      db,
		bus:     event.NewBus(logger.Named("event")),
		reg:     registry.New(logger.Named("registry")),
		peering: peering.New(),
		extras:  extras.New(),
	}

	cfg := config.New(v)
	pdbCfg := peeringdb.DefaultConfig()
	if err := cfg.Sub("peeringdb").Unmarshal(&pdbCfg); err != nil {
		a.Close()
		return nil, fmt.Errorf("peeringdb configuration: %w", err)
	}
	a.catalog = peeringdb.NewClient(pdbCfg, logger.Named("peeringdb"))

	var fleet *device.Fleet
	if v.GetBool("server.dev_mode") {
		fleet = device.NewFleet()
	}
	a.peering.SetDrivers(device.DefaultRegistry(fleet), device.Options{
		Username: v.GetString("napalm.username"),
		Password: v.GetString("napalm.password"),
		Timeout:  config.Duration(v, "napalm.timeout"),
		Args:     v.GetStringMapString("napalm.args"),
	})
	a.peering.SetCatalog(a.catalog)
	a.peering.SetJobRunner(a.extras)
	a.peering.SetContextResolver(a.extras)

	for _, m := range []plugin.Plugin{a.peering, a.extras} {
		if err := a.reg.Register(m); err != nil {
			a.Close()
			return nil, fmt.Errorf("register plugin: %w", err)
		}
	}
	if err := a.reg.Validate(); err != nil {
		a.Close()
		return nil, fmt.Errorf("plugin validation: %w", err)
	}

	err = a.reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  cfg.Module(name),
			Logger:  logger.Named(name),
			Store:   db,
			Bus:     a.bus,
			Plugins: a.reg,
		}
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize plugins: %w", err)
	}
	a.reg.Subscribe(a.bus)
	return a, nil
}

// Close releases the database and flushes the logger.
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// exchange loads an internet exchange by slug or ID.
func (a *app) exchange(ctx context.Context, key string) (*models.InternetExchange, error) {
	st := a.peering.Store()
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		return st.GetInternetExchange(ctx, id)
	}
	return st.GetInternetExchangeBySlug(ctx, key)
}
