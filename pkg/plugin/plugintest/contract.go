// Package plugintest provides shared contract tests that verify any
// plugin.Plugin implementation behaves correctly. Every module's test
// file should call TestPluginContract to ensure conformance.
package plugintest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/HerbHall/peeringmanager/internal/event"
	"github.com/HerbHall/peeringmanager/internal/store"
	"github.com/HerbHall/peeringmanager/pkg/plugin"
	"go.uber.org/zap"
)

// TestPluginContract runs a suite of behavioral contract tests against
// any plugin.Plugin implementation. Call this from each module's _test.go:
//
//	func TestContract(t *testing.T) {
//	    plugintest.TestPluginContract(t, func() plugin.Plugin { return peering.New() })
//	}
func TestPluginContract(t *testing.T, factory func() plugin.Plugin) {
	t.Helper()

	t.Run("Info_returns_valid_metadata", func(t *testing.T) {
		p := factory()
		info := p.Info()
		if info.Name == "" {
			t.Error("Info().Name must not be empty")
		}
		if info.Version == "" {
			t.Error("Info().Version must not be empty")
		}
		if info.APIVersion < plugin.APIVersionMin {
			t.Errorf("Info().APIVersion = %d, below minimum %d", info.APIVersion, plugin.APIVersionMin)
		}
	})

	t.Run("Init_succeeds_with_valid_deps", func(t *testing.T) {
		p := factory()
		if err := p.Init(context.Background(), testDeps(t, p.Info().Name)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
	})

	t.Run("Init_succeeds_without_store", func(t *testing.T) {
		p := factory()
		logger, _ := zap.NewDevelopment()
		if err := p.Init(context.Background(), plugin.Dependencies{Logger: logger}); err != nil {
			t.Fatalf("Init() without store error = %v", err)
		}
	})

	t.Run("Start_after_Init", func(t *testing.T) {
		p := factory()
		_ = p.Init(context.Background(), testDeps(t, p.Info().Name))
		if err := p.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		_ = p.Stop(context.Background())
	})

	t.Run("Stop_without_Start_does_not_panic", func(t *testing.T) {
		p := factory()
		_ = p.Init(context.Background(), testDeps(t, p.Info().Name))
		if err := p.Stop(context.Background()); err != nil {
			t.Fatalf("Stop() without Start error = %v", err)
		}
	})

	t.Run("Info_is_idempotent", func(t *testing.T) {
		p := factory()
		a := p.Info()
		b := p.Info()
		if a.Name != b.Name || a.Version != b.Version {
			t.Error("Info() must return consistent results")
		}
	})

	if hp, ok := factory().(plugin.HTTPProvider); ok {
		t.Run("Routes_are_well_formed", func(t *testing.T) {
			seen := make(map[string]bool)
			for _, r := range hp.Routes() {
				if r.Method == "" || r.Path == "" || r.Handler == nil {
					t.Errorf("incomplete route %+v", r)
				}
				if r.Path[0] != '/' {
					t.Errorf("route path %q must start with /", r.Path)
				}
				key := r.Method + " " + r.Path
				if seen[key] {
					t.Errorf("duplicate route %s", key)
				}
				seen[key] = true
			}
		})
	}
}

func testDeps(t *testing.T, name string) plugin.Dependencies {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	db, err := store.New(filepath.Join(t.TempDir(), "contract.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return plugin.Dependencies{
		Logger: logger.Named(name),
		Store:  db,
		Bus:    event.NewBus(logger),
	}
}
