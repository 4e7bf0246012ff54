package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HerbHall/peeringmanager/internal/auth"
	"github.com/HerbHall/peeringmanager/internal/server"
	"github.com/HerbHall/peeringmanager/internal/testutil"
	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

type moduleSource struct {
	plugins []plugin.Plugin
	routes  map[string][]plugin.Route
}

func (m *moduleSource) AllRoutes() map[string][]plugin.Route { return m.routes }
func (m *moduleSource) All() []plugin.Plugin                 { return m.plugins }

type stubModule struct {
	info plugin.PluginInfo
}

func (s *stubModule) Info() plugin.PluginInfo                         { return s.info }
func (s *stubModule) Init(context.Context, plugin.Dependencies) error { return nil }
func (s *stubModule) Start(context.Context) error                     { return nil }
func (s *stubModule) Stop(context.Context) error                      { return nil }

// peeringSource mimics the routes the peering module mounts: a read of an
// exchange and a configuration push that needs write access.
func peeringSource() *moduleSource {
	return &moduleSource{
		plugins: []plugin.Plugin{
			&stubModule{info: plugin.PluginInfo{
				Name:        "peering",
				Version:     "0.1.0",
				Description: "Autonomous systems, exchanges, routers and sessions",
				Roles:       []string{"inventory"},
			}},
			&stubModule{info: plugin.PluginInfo{
				Name:         "extras",
				Version:      "0.1.0",
				Description:  "Config contexts, export templates, jobs and webhooks",
				Dependencies: []string{"peering"},
			}},
		},
		routes: map[string][]plugin.Route{
			"peering": {
				{Method: "GET", Path: "/internet-exchanges/{slug}", Handler: func(w http.ResponseWriter, r *http.Request) {
					_ = json.NewEncoder(w).Encode(map[string]string{
						"slug":       r.PathValue("slug"),
						"request_id": server.RequestID(r.Context()),
					})
				}},
				{Method: "POST", Path: "/internet-exchanges/{slug}/configure", Handler: func(w http.ResponseWriter, r *http.Request) {
					by := ""
					if c := auth.UserFromContext(r.Context()); c != nil {
						by = c.Username
					}
					w.WriteHeader(http.StatusAccepted)
					_ = json.NewEncoder(w).Encode(map[string]string{"slug": r.PathValue("slug"), "by": by})
				}},
				{Method: "GET", Path: "/routers/{id}/configuration", Handler: func(http.ResponseWriter, *http.Request) {
					panic("template blew up")
				}},
			},
		},
	}
}

type eventsEndpoint struct{}

func (eventsEndpoint) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/events", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func newServer(t *testing.T, opts server.Options) http.Handler {
	t.Helper()
	if opts.Plugins == nil {
		opts.Plugins = peeringSource()
	}
	opts.Logger = zap.NewNop()
	return server.New(opts).Handler()
}

func serve(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_peering_routes_mounted_under_module_prefix(t *testing.T) {
	h := newServer(t, server.Options{})

	w := serve(h, "GET", "/api/v1/peering/internet-exchanges/ams-ix", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ams-ix", body["slug"])
	assert.Equal(t, w.Header().Get("X-Request-ID"), body["request_id"], "handlers see the logged request ID")
	assert.NotEmpty(t, w.Header().Get("X-Peering-Manager-Version"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	assert.Equal(t, http.StatusNotFound, serve(h, "GET", "/api/v1/internet-exchanges/ams-ix", "").Code,
		"routes live only under their module prefix")
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, "DELETE", "/api/v1/peering/internet-exchanges/ams-ix", "").Code)
}

func TestServer_handler_panic_becomes_problem(t *testing.T) {
	h := newServer(t, server.Options{})

	w := serve(h, "GET", "/api/v1/peering/routers/7/configuration", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestServer_plugins_lists_roles(t *testing.T) {
	h := newServer(t, server.Options{})

	w := serve(h, "GET", "/api/v1/plugins", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got []server.PluginResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "peering", got[0].Name)
	assert.Equal(t, []string{"inventory"}, got[0].Roles)
	assert.Equal(t, "extras", got[1].Name)
	assert.Empty(t, got[1].Roles)
}

func TestServer_readyz(t *testing.T) {
	tests := []struct {
		name  string
		ready server.ReadinessChecker
		want  int
	}{
		{"no checker", nil, http.StatusOK},
		{"database up", func(context.Context) error { return nil }, http.StatusOK},
		{"database down", func(context.Context) error { return errors.New("database is locked") }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newServer(t, server.Options{Ready: tt.ready})
			assert.Equal(t, tt.want, serve(h, "GET", "/readyz", "").Code)
		})
	}
}

func TestServer_rate_limit_skips_health_checks(t *testing.T) {
	h := newServer(t, server.Options{RateLimitRPS: 0.001, RateLimitBurst: 1})

	assert.Equal(t, http.StatusOK, serve(h, "GET", "/api/v1/peering/internet-exchanges/ams-ix", "").Code)
	w := serve(h, "GET", "/api/v1/peering/internet-exchanges/ams-ix", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	for range 5 {
		assert.Equal(t, http.StatusOK, serve(h, "GET", "/healthz", "").Code)
	}
}

func TestServer_auth_read_only_gate(t *testing.T) {
	users, err := auth.NewUserStore(context.Background(), testutil.NewStore(t))
	require.NoError(t, err)
	tokens := auth.NewTokenService([]byte("0123456789abcdef0123456789abcdef"), 15*time.Minute, time.Hour)
	authHandler := auth.NewHandler(auth.NewService(users, tokens, zap.NewNop()), zap.NewNop())

	h := newServer(t, server.Options{
		Auth:  authHandler,
		Extra: []server.SimpleRouteRegistrar{eventsEndpoint{}},
	})

	viewer, err := tokens.IssueAccessToken(&auth.User{ID: "u1", Username: "looking-glass", Role: auth.RoleViewer})
	require.NoError(t, err)
	operator, err := tokens.IssueAccessToken(&auth.User{ID: "u2", Username: "noc", Role: auth.RoleOperator})
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"anonymous read", "GET", "/api/v1/peering/internet-exchanges/ams-ix", "", http.StatusUnauthorized},
		{"garbage token", "GET", "/api/v1/peering/internet-exchanges/ams-ix", "not-a-jwt", http.StatusUnauthorized},
		{"viewer read", "GET", "/api/v1/peering/internet-exchanges/ams-ix", viewer, http.StatusOK},
		{"viewer write", "POST", "/api/v1/peering/internet-exchanges/ams-ix/configure", viewer, http.StatusForbidden},
		{"operator write", "POST", "/api/v1/peering/internet-exchanges/ams-ix/configure", operator, http.StatusAccepted},
		{"liveness stays public", "GET", "/healthz", "", http.StatusOK},
		{"setup status is public", "GET", "/api/v1/auth/setup/status", "", http.StatusOK},
		{"websocket authenticates itself", "GET", "/api/v1/ws/events", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, tt.method, tt.path, tt.token)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	w := serve(h, "POST", "/api/v1/peering/internet-exchanges/ams-ix/configure", operator)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "noc", body["by"], "claims reach the module handler")
}
