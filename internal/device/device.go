// Package device drives router configuration sessions. A Driver loads a
// merge candidate, compares it with the running configuration, and commits
// or discards it. Drivers are selected by the router's platform string.
package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrUnknownPlatform is returned when no driver is registered for a platform.
	ErrUnknownPlatform = errors.New("unknown platform")
	// ErrNotOpen is returned by operations that need an open session.
	ErrNotOpen = errors.New("device session not open")
)

// Facts describes a router as reported by the device.
type Facts struct {
	Hostname     string   `json:"hostname"`
	Vendor       string   `json:"vendor"`
	Model        string   `json:"model"`
	OSVersion    string   `json:"os_version"`
	SerialNumber string   `json:"serial_number"`
	Uptime       string   `json:"uptime,omitempty"`
	Interfaces   []string `json:"interface_list,omitempty"`
}

// Options holds connection settings for one router.
type Options struct {
	Hostname string
	Username string
	Password string
	Timeout  time.Duration
	// Args carries driver specific settings such as "port" or "known_hosts".
	Args map[string]string
}

// Driver is a vendor-neutral configuration session with one router.
//
// Callers Open, optionally LoadMergeCandidate and CompareConfig, then either
// CommitConfig or DiscardConfig, and always Close.
type Driver interface {
	Open(ctx context.Context) error
	Close() error
	LoadMergeCandidate(config string) error
	CompareConfig(ctx context.Context) (string, error)
	CommitConfig(ctx context.Context) error
	DiscardConfig() error
	GetFacts(ctx context.Context) (Facts, error)
}

// Factory builds a Driver for one router.
type Factory func(opts Options) (Driver, error)

// Registry maps platform names to driver factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for platform.
func (r *Registry) Register(platform string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[platform] = f
}

// New builds an instrumented driver for platform.
func (r *Registry) New(platform string, opts Options) (Driver, error) {
	r.mu.RLock()
	f, ok := r.factories[platform]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
	drv, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("create %s driver: %w", platform, err)
	}
	return instrument(platform, drv), nil
}

// Platforms lists registered platform names, sorted.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether a driver is registered for platform.
func (r *Registry) Supports(platform string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[platform]
	return ok
}

// DefaultRegistry registers the SSH CLI drivers for ios, eos and junos, and
// the in-memory mock driver backed by fleet.
func DefaultRegistry(fleet *Fleet) *Registry {
	r := NewRegistry()
	for name, p := range profiles {
		r.Register(name, NewCLIFactory(p))
	}
	if fleet != nil {
		r.Register("mock", fleet.Factory())
	}
	return r
}
