package device

import (
	"context"
	"sync"
)

// MockRouter is the state of one in-memory router.
type MockRouter struct {
	Running string
	Facts   Facts
	// OpenErr, when set, is returned by Open.
	OpenErr error
	// CommitErr, when set, is returned by CommitConfig.
	CommitErr error
}

// Fleet is a set of in-memory routers keyed by hostname. It backs the
// "mock" platform used in development and tests.
type Fleet struct {
	mu      sync.Mutex
	routers map[string]*MockRouter
}

// NewFleet returns an empty Fleet.
func NewFleet() *Fleet {
	return &Fleet{routers: make(map[string]*MockRouter)}
}

// Set adds or replaces the router at hostname.
func (f *Fleet) Set(hostname string, r MockRouter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routers[hostname] = &r
}

// Running returns the running configuration of hostname.
func (f *Fleet) Running(hostname string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.routers[hostname]; ok {
		return r.Running
	}
	return ""
}

func (f *Fleet) router(hostname string) *MockRouter {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.routers[hostname]
	if !ok {
		r = &MockRouter{Facts: Facts{Hostname: hostname, Vendor: "Mock", Model: "virtual"}}
		f.routers[hostname] = r
	}
	return r
}

// Factory returns a driver Factory for the fleet. Unknown hostnames get an
// empty router on first use.
func (f *Fleet) Factory() Factory {
	return func(opts Options) (Driver, error) {
		return &mockDriver{fleet: f, hostname: opts.Hostname}, nil
	}
}

type mockDriver struct {
	fleet    *Fleet
	hostname string

	open      bool
	candidate *string
}

func (d *mockDriver) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := d.fleet.router(d.hostname)
	d.fleet.mu.Lock()
	err := r.OpenErr
	d.fleet.mu.Unlock()
	if err != nil {
		return err
	}
	d.open = true
	return nil
}

func (d *mockDriver) Close() error {
	d.open = false
	d.candidate = nil
	return nil
}

func (d *mockDriver) LoadMergeCandidate(config string) error {
	if !d.open {
		return ErrNotOpen
	}
	d.candidate = &config
	return nil
}

func (d *mockDriver) CompareConfig(_ context.Context) (string, error) {
	if !d.open {
		return "", ErrNotOpen
	}
	if d.candidate == nil {
		return "", nil
	}
	running := d.fleet.Running(d.hostname)
	return LineDiff(running, Merge(running, *d.candidate)), nil
}

func (d *mockDriver) CommitConfig(_ context.Context) error {
	if !d.open {
		return ErrNotOpen
	}
	if d.candidate == nil {
		return nil
	}
	r := d.fleet.router(d.hostname)
	d.fleet.mu.Lock()
	defer d.fleet.mu.Unlock()
	if r.CommitErr != nil {
		return r.CommitErr
	}
	r.Running = Merge(r.Running, *d.candidate)
	d.candidate = nil
	return nil
}

func (d *mockDriver) DiscardConfig() error {
	d.candidate = nil
	return nil
}

func (d *mockDriver) GetFacts(_ context.Context) (Facts, error) {
	if !d.open {
		return Facts{}, ErrNotOpen
	}
	r := d.fleet.router(d.hostname)
	d.fleet.mu.Lock()
	defer d.fleet.mu.Unlock()
	return r.Facts, nil
}
