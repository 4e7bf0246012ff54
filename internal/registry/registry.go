// Package registry manages module lifecycle: registration, dependency
// resolution, initialization, event wiring and shutdown.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/HerbHall/peeringmanager/pkg/plugin"
	"go.uber.org/zap"
)

// Registry manages the lifecycle of all registered modules.
type Registry struct {
	mu       sync.RWMutex
	plugins  map[string]plugin.Plugin
	infos    map[string]plugin.PluginInfo
	order    []string // topological order after Validate
	disabled map[string]bool
	unsubs   []func()
	logger   *zap.Logger
}

// New creates a new module registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		plugins:  make(map[string]plugin.Plugin),
		infos:    make(map[string]plugin.PluginInfo),
		disabled: make(map[string]bool),
		logger:   logger,
	}
}

// Register adds a module to the registry. Must be called before Validate.
func (r *Registry) Register(p plugin.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := p.Info()
	name := info.Name

	if name == "" {
		return fmt.Errorf("plugin has empty name")
	}
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("plugin %q already registered", name)
	}

	r.plugins[name] = p
	r.infos[name] = info
	r.logger.Info("plugin registered",
		zap.String("name", name),
		zap.String("version", info.Version),
		zap.Int("api_version", info.APIVersion),
	)
	return nil
}

// Validate checks API versions, disables modules whose dependencies are
// missing (failing instead when the module is Required) and computes the
// start order.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.sortedNames() {
		info := r.infos[name]
		if err := checkAPIVersion(name, info.APIVersion); err != nil {
			if info.Required {
				return err
			}
			r.logger.Warn("disabling plugin due to API version incompatibility",
				zap.String("name", name),
				zap.Error(err),
			)
			r.disabled[name] = true
		}
	}

	// Repeat until stable so a disabled module cascades to its dependents.
	for changed := true; changed; {
		changed = false
		for _, name := range r.sortedNames() {
			if r.disabled[name] {
				continue
			}
			info := r.infos[name]
			for _, dep := range info.Dependencies {
				_, registered := r.plugins[dep]
				if registered && !r.disabled[dep] {
					continue
				}
				if info.Required {
					return fmt.Errorf("required plugin %q cannot start: dependency %q is missing or disabled", name, dep)
				}
				r.logger.Warn("disabling plugin: dependency unavailable",
					zap.String("name", name),
					zap.String("dependency", dep),
				)
				r.disabled[name] = true
				changed = true
				break
			}
		}
	}

	order, err := r.topologicalSort()
	if err != nil {
		return err
	}
	r.order = order

	r.logger.Info("plugin dependency resolution complete",
		zap.Strings("start_order", r.order),
		zap.Int("disabled", len(r.disabled)),
	)
	return nil
}

// InitAll initializes all active modules in dependency order, then runs
// Validator checks. Optional modules that fail are disabled.
func (r *Registry) InitAll(ctx context.Context, depsFn func(name string) plugin.Dependencies) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		if r.disabled[name] {
			continue
		}
		p := r.plugins[name]
		info := r.infos[name]

		r.logger.Info("initializing plugin", zap.String("name", name))
		err := p.Init(ctx, depsFn(name))
		if err == nil {
			if v, ok := p.(plugin.Validator); ok {
				if verr := v.ValidateConfig(); verr != nil {
					err = fmt.Errorf("config validation: %w", verr)
				}
			}
		}
		if err == nil {
			continue
		}
		if info.Required {
			return fmt.Errorf("required plugin %q failed to initialize: %w", name, err)
		}
		r.logger.Error("optional plugin failed to initialize, disabling",
			zap.String("name", name),
			zap.Error(err),
		)
		r.disabled[name] = true
	}
	return nil
}

// Subscribe wires every active EventSubscriber's declared handlers into bus.
// The subscriptions are removed by StopAll.
func (r *Registry) Subscribe(bus plugin.Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		if r.disabled[name] {
			continue
		}
		es, ok := r.plugins[name].(plugin.EventSubscriber)
		if !ok {
			continue
		}
		for _, sub := range es.Subscriptions() {
			r.unsubs = append(r.unsubs, bus.Subscribe(sub.Topic, sub.Handler))
			r.logger.Debug("event subscription",
				zap.String("plugin", name),
				zap.String("topic", sub.Topic),
			)
		}
	}
}

// StartAll starts all initialized modules in dependency order.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		if r.disabled[name] {
			continue
		}
		r.logger.Info("starting plugin", zap.String("name", name))
		if err := r.plugins[name].Start(ctx); err != nil {
			if r.infos[name].Required {
				return fmt.Errorf("required plugin %q failed to start: %w", name, err)
			}
			r.logger.Error("optional plugin failed to start, disabling",
				zap.String("name", name),
				zap.Error(err),
			)
			r.disabled[name] = true
		}
	}
	return nil
}

// StopAll removes event subscriptions and stops active modules in reverse
// dependency order.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()
	for _, u := range unsubs {
		u()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		if r.disabled[name] {
			continue
		}
		r.logger.Info("stopping plugin", zap.String("name", name))
		if err := r.plugins[name].Stop(ctx); err != nil {
			r.logger.Error("failed to stop plugin", zap.String("name", name), zap.Error(err))
		}
	}
}

// Get returns an active module by name.
func (r *Registry) Get(name string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	if !ok || r.disabled[name] {
		return nil, false
	}
	return p, true
}

// All returns all active modules in dependency order.
func (r *Registry) All() []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]plugin.Plugin, 0, len(r.order))
	for _, name := range r.order {
		if !r.disabled[name] {
			result = append(result, r.plugins[name])
		}
	}
	return result
}

// AllRoutes returns HTTP routes from all active modules implementing HTTPProvider.
func (r *Registry) AllRoutes() map[string][]plugin.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make(map[string][]plugin.Route)
	for _, name := range r.order {
		if r.disabled[name] {
			continue
		}
		if hp, ok := r.plugins[name].(plugin.HTTPProvider); ok {
			if pr := hp.Routes(); len(pr) > 0 {
				routes[name] = pr
			}
		}
	}
	return routes
}

// Resolve returns a module by name (implements plugin.PluginResolver).
func (r *Registry) Resolve(name string) (plugin.Plugin, bool) {
	return r.Get(name)
}

// ResolveByRole returns all active modules that declare the given role.
func (r *Registry) ResolveByRole(role string) []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []plugin.Plugin
	for _, name := range r.order {
		if r.disabled[name] {
			continue
		}
		for _, pluginRole := range r.infos[name].Roles {
			if pluginRole == role {
				result = append(result, r.plugins[name])
				break
			}
		}
	}
	return result
}

// IsDisabled returns whether a module has been disabled.
func (r *Registry) IsDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disabled[name]
}

func checkAPIVersion(name string, apiVersion int) error {
	if apiVersion < plugin.APIVersionMin || apiVersion > plugin.APIVersionCurrent {
		return fmt.Errorf("plugin %q targets API v%d, server supports v%d..v%d",
			name, apiVersion, plugin.APIVersionMin, plugin.APIVersionCurrent)
	}
	return nil
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// topologicalSort orders active modules with Kahn's algorithm. Ties are
// broken by name so the start order is deterministic.
func (r *Registry) topologicalSort() ([]string, error) {
	inDegree := make(map[string]int)
	dependents := make(map[string][]string)

	var active []string
	for _, name := range r.sortedNames() {
		if !r.disabled[name] {
			active = append(active, name)
			inDegree[name] = 0
		}
	}

	for _, name := range active {
		for _, dep := range r.infos[name].Dependencies {
			if _, ok := inDegree[dep]; ok {
				inDegree[name]++
				dependents[dep] = append(dependents[dep], name)
			}
		}
	}

	var queue []string
	for _, name := range active {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	order := make([]string, 0, len(active))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)

		for _, dependent := range dependents[name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(active) {
		var cycled []string
		for _, name := range active {
			if inDegree[name] > 0 {
				cycled = append(cycled, name)
			}
		}
		return nil, fmt.Errorf("dependency cycle detected among plugins: %v", cycled)
	}

	return order, nil
}
