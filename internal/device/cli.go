package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultTimeout = 30 * time.Second

// sshDial establishes SSH connections. Overridden in tests.
var sshDial = ssh.Dial

// CLIDriver drives a router over SSH exec sessions using a vendor Profile.
// Candidates are merged line by line with the running configuration.
type CLIDriver struct {
	profile Profile
	opts    Options

	mu        sync.Mutex
	client    *ssh.Client
	candidate string
	loaded    bool
}

// NewCLIFactory returns a Factory building CLIDrivers for p.
func NewCLIFactory(p Profile) Factory {
	return func(opts Options) (Driver, error) {
		if opts.Hostname == "" {
			return nil, errors.New("hostname is required")
		}
		if opts.Timeout <= 0 {
			opts.Timeout = defaultTimeout
		}
		return &CLIDriver{profile: p, opts: opts}, nil
	}
}

func (d *CLIDriver) clientConfig() (*ssh.ClientConfig, error) {
	hostKey := ssh.InsecureIgnoreHostKey() //nolint:gosec // G106: known_hosts enables verification
	if path := d.opts.Args["known_hosts"]; path != "" {
		cb, err := knownhosts.New(path)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
		hostKey = cb
	}
	return &ssh.ClientConfig{
		User:            d.opts.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(d.opts.Password)},
		HostKeyCallback: hostKey,
		Timeout:         d.opts.Timeout,
	}, nil
}

func (d *CLIDriver) addr() string {
	port := d.opts.Args["port"]
	if port == "" {
		port = "22"
	}
	if _, _, err := net.SplitHostPort(d.opts.Hostname); err == nil {
		return d.opts.Hostname
	}
	return net.JoinHostPort(d.opts.Hostname, port)
}

// Open connects to the router.
func (d *CLIDriver) Open(ctx context.Context) error {
	cfg, err := d.clientConfig()
	if err != nil {
		return err
	}

	type result struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := sshDial("tcp", d.addr(), cfg)
		ch <- result{c, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("ssh dial %s: %w", d.addr(), r.err)
		}
		d.mu.Lock()
		d.client = r.client
		d.mu.Unlock()
		return nil
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.client != nil {
				r.client.Close()
			}
		}()
		return ctx.Err()
	}
}

// Close disconnects from the router.
func (d *CLIDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}

// LoadMergeCandidate stores config for the next compare or commit.
func (d *CLIDriver) LoadMergeCandidate(config string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return ErrNotOpen
	}
	d.candidate = config
	d.loaded = true
	return nil
}

// CompareConfig fetches the running configuration and diffs it against
// the running configuration with the candidate merged in.
func (d *CLIDriver) CompareConfig(ctx context.Context) (string, error) {
	d.mu.Lock()
	candidate, loaded := d.candidate, d.loaded
	d.mu.Unlock()
	if !loaded {
		return "", nil
	}

	running, err := d.run(ctx, d.profile.RunningConfig, "")
	if err != nil {
		return "", fmt.Errorf("fetch running config: %w", err)
	}
	return LineDiff(running, Merge(running, candidate)), nil
}

// CommitConfig applies the candidate through the vendor's configuration mode.
func (d *CLIDriver) CommitConfig(ctx context.Context) error {
	d.mu.Lock()
	candidate, loaded := d.candidate, d.loaded
	d.mu.Unlock()
	if !loaded {
		return nil
	}

	lines := candidateLines(candidate)
	if len(lines) == 0 {
		return d.DiscardConfig()
	}
	out, err := d.run(ctx, "", d.profile.ApplyScript(strings.Join(lines, "\n")))
	if err != nil {
		return fmt.Errorf("apply candidate: %w: %s", err, strings.TrimSpace(out))
	}
	return d.DiscardConfig()
}

// DiscardConfig drops the loaded candidate. Nothing is sent to the router
// until CommitConfig, so there is nothing to roll back remotely.
func (d *CLIDriver) DiscardConfig() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.candidate = ""
	d.loaded = false
	return nil
}

// GetFacts runs the profile's version command and parses its output.
func (d *CLIDriver) GetFacts(ctx context.Context) (Facts, error) {
	out, err := d.run(ctx, d.profile.Version, "")
	if err != nil {
		return Facts{}, fmt.Errorf("fetch version: %w", err)
	}
	f := d.profile.ParseFacts(out)
	if f.Vendor == "" {
		f.Vendor = d.profile.Vendor
	}
	return f, nil
}

// run executes cmd on a new session, or feeds stdin to a shell when cmd is
// empty, and returns the combined output.
func (d *CLIDriver) run(ctx context.Context, cmd, stdin string) (string, error) {
	d.mu.Lock()
	client := d.client
	d.mu.Unlock()
	if client == nil {
		return "", ErrNotOpen
	}

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	var out syncBuffer
	session.Stdout = &out
	session.Stderr = &out

	done := make(chan error, 1)
	go func() {
		if cmd != "" {
			done <- session.Run(cmd)
			return
		}
		session.Stdin = strings.NewReader(stdin)
		if err := session.Shell(); err != nil {
			done <- err
			return
		}
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return out.String(), err
	case <-ctx.Done():
		session.Close()
		<-done
		return out.String(), ctx.Err()
	}
}

// syncBuffer serialises writes from the stdout and stderr copiers.
type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}
