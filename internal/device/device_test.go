package device

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

const runningIOS = `hostname edge-1
!
router bgp 64500
 neighbor 2001:db8::a remote-as 64501
!
end
`

const versionIOS = `Cisco IOS Software, Version 15.2(4)M7, RELEASE SOFTWARE (fc2)
edge-1 uptime is 3 weeks, 2 days, 1 hour
cisco CISCO2911/K9 (revision 1.0) with 483328K/40960K bytes of memory. processor board
Processor board ID FTX1234ABCD
`

func generateTestHostKey(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return signer
}

// testRouter is an in-process SSH server answering exec requests from a
// fixed command table and recording everything written to shells.
type testRouter struct {
	commands map[string]string

	mu     sync.Mutex
	shells []string
}

func (tr *testRouter) applied() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.shells...)
}

func newTestRouter(t *testing.T, username, password string, commands map[string]string) (*testRouter, string) {
	t.Helper()
	tr := &testRouter{commands: commands}

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == username && string(pass) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("invalid credentials")
		},
	}
	config.AddHostKey(generateTestHostKey(t))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go tr.handleConn(conn, config)
		}
	}()
	t.Cleanup(func() {
		listener.Close()
		<-done
	})
	return tr, listener.Addr().String()
}

func (tr *testRouter) handleConn(conn net.Conn, config *ssh.ServerConfig) {
	defer conn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			return
		}
		go tr.serveSession(channel, requests)
	}
}

func (tr *testRouter) serveSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()
	exit := func(code uint32) {
		_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{code}))
	}

	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)

			out, ok := tr.commands[payload.Command]
			if !ok {
				_, _ = io.WriteString(channel.Stderr(), "% Invalid input detected\n")
				exit(1)
				return
			}
			_, _ = io.WriteString(channel, out)
			exit(0)
			return
		case "shell":
			req.Reply(true, nil)
			data, _ := io.ReadAll(channel)
			tr.mu.Lock()
			tr.shells = append(tr.shells, string(data))
			tr.mu.Unlock()
			exit(0)
			return
		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

func iosOptions(addr string) Options {
	return Options{Hostname: addr, Username: "admin", Password: "secret"}
}

func TestCLIDriver_Changes_compare_only(t *testing.T) {
	tr, addr := newTestRouter(t, "admin", "secret", map[string]string{
		"show running-config": runningIOS,
	})
	drv, err := DefaultRegistry(nil).New("ios", iosOptions(addr))
	require.NoError(t, err)

	candidate := "router bgp 64500\n neighbor 2001:db8::b remote-as 64502\n! comment\n"
	diff, err := Changes(context.Background(), drv, candidate, false)
	require.NoError(t, err)

	assert.Equal(t, "+ neighbor 2001:db8::b remote-as 64502\n", diff)
	assert.Empty(t, tr.applied(), "compare must not push configuration")
}

func TestCLIDriver_Changes_commit_pushes_candidate(t *testing.T) {
	tr, addr := newTestRouter(t, "admin", "secret", map[string]string{
		"show running-config": runningIOS,
	})
	drv, err := DefaultRegistry(nil).New("ios", iosOptions(addr))
	require.NoError(t, err)

	candidate := "router bgp 64500\n neighbor 2001:db8::b remote-as 64502\n"
	diff, err := Changes(context.Background(), drv, candidate, true)
	require.NoError(t, err)
	assert.NotEmpty(t, diff)

	applied := tr.applied()
	require.Len(t, applied, 1)
	assert.True(t, strings.HasPrefix(applied[0], "configure terminal\n"), applied[0])
	assert.Contains(t, applied[0], " neighbor 2001:db8::b remote-as 64502\n")
	assert.True(t, strings.HasSuffix(applied[0], "end\nwrite memory\n"), applied[0])
}

func TestCLIDriver_Changes_commit_without_diff_is_noop(t *testing.T) {
	tr, addr := newTestRouter(t, "admin", "secret", map[string]string{
		"show running-config": runningIOS,
	})
	drv, err := DefaultRegistry(nil).New("ios", iosOptions(addr))
	require.NoError(t, err)

	diff, err := Changes(context.Background(), drv, "router bgp 64500\n", true)
	require.NoError(t, err)
	assert.Empty(t, diff)
	assert.Empty(t, tr.applied())
}

func TestCLIDriver_GetFacts(t *testing.T) {
	_, addr := newTestRouter(t, "admin", "secret", map[string]string{
		"show version": versionIOS,
	})
	drv, err := DefaultRegistry(nil).New("ios", iosOptions(addr))
	require.NoError(t, err)

	facts, err := GetFacts(context.Background(), drv)
	require.NoError(t, err)
	assert.Equal(t, Facts{
		Hostname:     "edge-1",
		Uptime:       "3 weeks, 2 days, 1 hour",
		Vendor:       "Cisco",
		Model:        "CISCO2911/K9",
		OSVersion:    "15.2(4)M7",
		SerialNumber: "FTX1234ABCD",
	}, facts)
}

func TestCLIDriver_auth_failure(t *testing.T) {
	_, addr := newTestRouter(t, "admin", "secret", nil)
	opts := iosOptions(addr)
	opts.Password = "wrong"
	drv, err := DefaultRegistry(nil).New("ios", opts)
	require.NoError(t, err)

	_, err = Changes(context.Background(), drv, "x", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
}

func TestCLIDriver_command_failure(t *testing.T) {
	_, addr := newTestRouter(t, "admin", "secret", map[string]string{})
	drv, err := DefaultRegistry(nil).New("ios", iosOptions(addr))
	require.NoError(t, err)

	_, err = Changes(context.Background(), drv, "x", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compare")
}

func TestCLIDriver_dial_override(t *testing.T) {
	orig := sshDial
	t.Cleanup(func() { sshDial = orig })

	var gotAddr string
	sshDial = func(network, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
		gotAddr = addr
		return nil, errors.New("unreachable")
	}

	drv, err := NewCLIFactory(profiles["junos"])(Options{
		Hostname: "192.0.2.1",
		Args:     map[string]string{"port": "830"},
	})
	require.NoError(t, err)
	require.Error(t, drv.Open(context.Background()))
	assert.Equal(t, "192.0.2.1:830", gotAddr)
}

func TestCLIDriver_requires_open(t *testing.T) {
	drv, err := NewCLIFactory(profiles["eos"])(Options{Hostname: "r1"})
	require.NoError(t, err)
	assert.ErrorIs(t, drv.LoadMergeCandidate("x"), ErrNotOpen)
	_, err = drv.GetFacts(context.Background())
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.NoError(t, drv.Close())

	_, err = NewCLIFactory(profiles["eos"])(Options{})
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(NewFleet())
	assert.Equal(t, []string{"eos", "ios", "junos", "mock"}, r.Platforms())
	assert.True(t, r.Supports("junos"))
	assert.False(t, DefaultRegistry(nil).Supports("mock"))

	_, err := r.New("nxos", Options{})
	assert.ErrorIs(t, err, ErrUnknownPlatform)
}

func TestFleet_commit_merges_into_running(t *testing.T) {
	fleet := NewFleet()
	fleet.Set("edge-1", MockRouter{Running: "hostname edge-1\n"})
	r := DefaultRegistry(fleet)

	drv, err := r.New("mock", Options{Hostname: "edge-1"})
	require.NoError(t, err)
	diff, err := Changes(context.Background(), drv, "hostname edge-1\nip route 0.0.0.0/0 192.0.2.1\n", false)
	require.NoError(t, err)
	assert.Equal(t, "+ip route 0.0.0.0/0 192.0.2.1\n", diff)
	assert.Equal(t, "hostname edge-1\n", fleet.Running("edge-1"))

	drv, err = r.New("mock", Options{Hostname: "edge-1"})
	require.NoError(t, err)
	_, err = Changes(context.Background(), drv, "ip route 0.0.0.0/0 192.0.2.1\n", true)
	require.NoError(t, err)
	assert.Equal(t, "hostname edge-1\nip route 0.0.0.0/0 192.0.2.1\n", fleet.Running("edge-1"))

	drv, err = r.New("mock", Options{Hostname: "edge-1"})
	require.NoError(t, err)
	diff, err = Changes(context.Background(), drv, "ip route 0.0.0.0/0 192.0.2.1\n", false)
	require.NoError(t, err)
	assert.Empty(t, diff, "committed lines no longer differ")
}

func TestFleet_errors(t *testing.T) {
	fleet := NewFleet()
	fleet.Set("down", MockRouter{OpenErr: errors.New("connection refused")})
	fleet.Set("ro", MockRouter{CommitErr: errors.New("read-only")})
	r := DefaultRegistry(fleet)

	drv, _ := r.New("mock", Options{Hostname: "down"})
	_, err := Changes(context.Background(), drv, "x", false)
	assert.ErrorContains(t, err, "connection refused")

	drv, _ = r.New("mock", Options{Hostname: "ro"})
	_, err = Changes(context.Background(), drv, "x", true)
	assert.ErrorContains(t, err, "read-only")
	assert.Empty(t, fleet.Running("ro"))

	drv, _ = r.New("mock", Options{Hostname: "new"})
	facts, err := GetFacts(context.Background(), drv)
	require.NoError(t, err)
	assert.Equal(t, "new", facts.Hostname)
}

func TestLineDiff(t *testing.T) {
	assert.Empty(t, LineDiff("a\nb\n", "a\nb\n"))
	assert.Equal(t, "-b\n+c\n", LineDiff("a\nb\n", "a\nc\n"))
	assert.Equal(t, "+x\n+y\n", LineDiff("", "x\ny\n"))
}

func TestMerge(t *testing.T) {
	got := Merge("a\nb\n", "! header\nb\n\nc\n# trailing\nc\n")
	assert.Equal(t, "a\nb\nc\n", got)
	assert.Equal(t, "x\n", Merge("", "x"))
	assert.Equal(t, "", Merge("", "!"))
}

func TestMerge_keeps_stanza_hierarchy(t *testing.T) {
	running := `router bgp 64500
 neighbor 2001:db8::a remote-as 64501
 address-family ipv6
  neighbor 2001:db8::a activate
 exit-address-family
!
end
`
	candidate := `router bgp 64500
 neighbor 2001:db8::a remote-as 64501
 neighbor 192.0.2.10 remote-as 64502
 address-family ipv6
  neighbor 2001:db8::a activate
 exit-address-family
 address-family ipv4
  neighbor 192.0.2.10 activate
 exit-address-family
`
	want := `router bgp 64500
 neighbor 2001:db8::a remote-as 64501
 neighbor 192.0.2.10 remote-as 64502
 address-family ipv6
  neighbor 2001:db8::a activate
 exit-address-family
 address-family ipv4
  neighbor 192.0.2.10 activate
 exit-address-family
!
end
`
	merged := Merge(running, candidate)
	assert.Equal(t, want, merged)
	// The diff may anchor the repeated exit line either way.
	assert.ElementsMatch(t, []string{
		"+ neighbor 192.0.2.10 remote-as 64502",
		"+ address-family ipv4",
		"+  neighbor 192.0.2.10 activate",
		"+ exit-address-family",
	}, strings.Split(strings.TrimSuffix(LineDiff(running, merged), "\n"), "\n"))

	assert.Equal(t, merged, Merge(merged, candidate), "merging twice is a no-op")
}

func TestMerge_new_child_under_existing_parent(t *testing.T) {
	running := "interface Ethernet1\n description old\ninterface Ethernet2\n"
	got := Merge(running, "interface Ethernet2\n description peering-lan\n")
	assert.Equal(t, "interface Ethernet1\n description old\ninterface Ethernet2\n description peering-lan\n", got)
}

func TestMerge_flat_set_lines(t *testing.T) {
	running := "set protocols bgp group ix neighbor 192.0.2.1\n"
	got := Merge(running, "set protocols bgp group ix neighbor 192.0.2.1\nset protocols bgp group ix neighbor 192.0.2.2\n")
	assert.Equal(t, running+"set protocols bgp group ix neighbor 192.0.2.2\n", got)
}
