package peering

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HerbHall/peeringmanager/internal/device"
	"github.com/HerbHall/peeringmanager/internal/query"
	"github.com/HerbHall/peeringmanager/internal/testutil"
	"github.com/HerbHall/peeringmanager/pkg/models"
	"github.com/HerbHall/peeringmanager/pkg/plugin"
	"github.com/HerbHall/peeringmanager/pkg/plugin/plugintest"
)

func TestContract(t *testing.T) {
	plugintest.TestPluginContract(t, func() plugin.Plugin { return New() })
}

type testEnv struct {
	m     *Module
	bus   *testutil.MockBus
	fleet *device.Fleet
	mux   *http.ServeMux
}

// newTestModule creates a Module wired with a fresh SQLite store, a
// recording bus and the in-memory router fleet.
func newTestModule(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewStore(t)
	require.NoError(t, db.Migrate(context.Background(), "peering", migrations()))

	env := &testEnv{bus: testutil.NewMockBus(), fleet: device.NewFleet()}
	m := New()
	m.logger = zap.NewNop()
	m.store = NewStore(db.DB())
	m.bus = env.bus
	m.SetDrivers(device.DefaultRegistry(env.fleet), device.Options{Timeout: time.Second})
	m.SetPinger(nil)
	env.m = m

	env.mux = http.NewServeMux()
	for _, r := range m.Routes() {
		env.mux.HandleFunc(r.Method+" "+r.Path, r.Handler)
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), "body: %s", w.Body.String())
	return v
}

func TestAutonomousSystemHandlers_Lifecycle(t *testing.T) {
	env := newTestModule(t)

	w := env.do(t, "POST", "/autonomous-systems", `{"asn":64500,"name":"Example","irr_as_set":"AS-EXAMPLE"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.AutonomousSystem](t, w)
	assert.NotZero(t, created.ID)

	w = env.do(t, "GET", "/autonomous-systems?q=exam", "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[query.Page[models.AutonomousSystem]](t, w)
	assert.Equal(t, 1, page.Count)
	require.Len(t, page.Results, 1)
	assert.Equal(t, int64(64500), page.Results[0].ASN)

	w = env.do(t, "PATCH", "/autonomous-systems/1", `{"name":"Renamed"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	patched := decode[models.AutonomousSystem](t, w)
	assert.Equal(t, "Renamed", patched.Name)
	assert.Equal(t, "AS-EXAMPLE", patched.IRRASSet, "PATCH keeps absent fields")

	w = env.do(t, "DELETE", "/autonomous-systems/1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, "GET", "/autonomous-systems/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	assert.Equal(t, []string{models.TopicObjectCreated, models.TopicObjectUpdated, models.TopicObjectDeleted}, env.bus.Topics())
	change, ok := env.bus.Events()[0].Payload.(models.ObjectChange)
	require.True(t, ok)
	assert.Equal(t, models.ContentTypeAutonomousSystem, change.ContentType)
	assert.Equal(t, created.ID, change.ObjectID)
}

func TestAutonomousSystemHandlers_Errors(t *testing.T) {
	env := newTestModule(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "missing name", method: "POST", path: "/autonomous-systems", body: `{"asn":64500}`, want: http.StatusBadRequest},
		{name: "asn out of range", method: "POST", path: "/autonomous-systems", body: `{"asn":0,"name":"x"}`, want: http.StatusBadRequest},
		{name: "unknown field", method: "POST", path: "/autonomous-systems", body: `{"asn":64500,"name":"x","bogus":1}`, want: http.StatusBadRequest},
		{name: "bad filter", method: "GET", path: "/autonomous-systems?asn=abc", want: http.StatusBadRequest},
		{name: "non numeric id", method: "GET", path: "/autonomous-systems/abc", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	w := env.do(t, "POST", "/autonomous-systems", `{"asn":64500,"name":"Example"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	w = env.do(t, "POST", "/autonomous-systems", `{"asn":64500,"name":"Again"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestInternetExchangeHandlers_LookupBySlug(t *testing.T) {
	env := newTestModule(t)

	w := env.do(t, "POST", "/internet-exchanges", `{"name":"AMS-IX","slug":"ams-ix","ipv6_address":"2001:db8:ff::1/64"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.InternetExchange](t, w)
	assert.Equal(t, []int64{}, created.Communities)

	for _, key := range []string{"ams-ix", "1"} {
		w = env.do(t, "GET", "/internet-exchanges/"+key, "")
		require.Equal(t, http.StatusOK, w.Code, key)
		assert.Equal(t, "AMS-IX", decode[models.InternetExchange](t, w).Name)
	}

	w = env.do(t, "POST", "/internet-exchanges", `{"name":"Bad","slug":"Not A Slug"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/internet-exchanges", `{"name":"Wrong family","slug":"wrong","ipv4_address":"2001:db8::1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "DELETE", "/internet-exchanges/ams-ix", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestPeeringSessionHandlers_NormaliseAddress(t *testing.T) {
	env := newTestModule(t)
	as := mustAS(t, env.m.store, 64500, "Example")
	ix := mustIX(t, env.m.store)

	body := `{"internet_exchange":` + itoa(ix.ID) + `,"autonomous_system":` + itoa(as.ID) + `,"ip_address":"198.51.100.10/24","enabled":true}`
	w := env.do(t, "POST", "/peering-sessions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ps := decode[models.PeeringSession](t, w)
	assert.Equal(t, "198.51.100.10", ps.IPAddress)
	assert.Equal(t, 4, ps.IPVersion)
	assert.Equal(t, models.BGPStateUnknown, ps.BGPState)

	w = env.do(t, "POST", "/peering-sessions", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, "POST", "/peering-sessions", `{"internet_exchange":999,"autonomous_system":`+itoa(as.ID)+`,"ip_address":"198.51.100.11"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown exchange is a validation error")
}

func TestCommunityAndTemplateValidation(t *testing.T) {
	env := newTestModule(t)

	w := env.do(t, "POST", "/communities", `{"name":"Learned","value":"64500:1"}`)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = env.do(t, "POST", "/communities", `{"name":"Broken","value":"65536:1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/configuration-templates", `{"name":"ok","template":"{{ internet_exchange.name }}"}`)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = env.do(t, "POST", "/configuration-templates", `{"name":"broken","template":"{% for x in %}"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/routers", `{"name":"edge-1","hostname":"edge-1.example.net"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "platform is required")
}

func TestHandlers_StoreUnavailable(t *testing.T) {
	m := New()
	m.logger = zap.NewNop()
	mux := http.NewServeMux()
	for _, r := range m.Routes() {
		mux.HandleFunc(r.Method+" "+r.Path, r.Handler)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/routers", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
