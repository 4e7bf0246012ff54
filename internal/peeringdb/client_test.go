package peeringdb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/HerbHall/peeringmanager/pkg/models"
)

func strPtr(s string) *string { return &s }

// newMockPeeringDB creates a test server that mimics the PeeringDB API and
// counts requests per path.
func newMockPeeringDB(t *testing.T) (*httptest.Server, func(string) int) {
	t.Helper()
	var mu sync.Mutex
	hits := map[string]int{}
	record := func(r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/net", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if r.URL.Query().Get("asn") != "64500" {
			writeTestJSON(w, response[Network]{Data: []Network{}})
			return
		}
		writeTestJSON(w, response[Network]{Data: []Network{{
			ID: 42, ASN: 64500, Name: "Example Networks", IRRASSet: "AS-EXAMPLE",
			InfoPrefixes6: 20, InfoPrefixes4: 100,
		}}})
	})
	mux.HandleFunc("GET /api/netixlan", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		q := r.URL.Query()
		switch {
		case q.Get("asn") == "64500":
			writeTestJSON(w, response[NetworkIXLan]{Data: []NetworkIXLan{
				{ID: 1, IXID: 10, Name: "AMS-IX", ASN: 64500, IPAddr6: strPtr("2001:7f8:1::a506:4500:1"), IPAddr4: strPtr("80.249.208.1")},
				{ID: 2, IXID: 20, Name: "", ASN: 64500, IPAddr6: strPtr("2001:7f8:2::1")},
				{ID: 2, IXID: 20, Name: "", ASN: 64500, IPAddr6: strPtr("2001:7f8:2::1")},
				{ID: 3, IXID: 30, Name: "LINX LON1", ASN: 64500, IPAddr4: strPtr("195.66.224.1")},
			}})
		case q.Get("ix_id") == "10":
			writeTestJSON(w, response[NetworkIXLan]{Data: []NetworkIXLan{
				{ID: 1, IXID: 10, ASN: 64500, Name: "Example Networks", IPAddr6: strPtr("2001:7f8:1::a506:4500:1")},
				{ID: 7, IXID: 10, ASN: 64502, Name: "Other", IPAddr4: strPtr("80.249.208.7")},
				{ID: 6, IXID: 10, ASN: 64501, Name: "Transit", IPAddr6: strPtr("2001:7f8:1::a506:4501:1"), IsRSPeer: true},
			}})
		default:
			writeTestJSON(w, response[NetworkIXLan]{Data: []NetworkIXLan{}})
		}
	})
	mux.HandleFunc("GET /api/netixlan/{id}", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if r.PathValue("id") != "1" {
			http.Error(w, `{"meta":{"error":"not found"}}`, http.StatusNotFound)
			return
		}
		writeTestJSON(w, response[NetworkIXLan]{Data: []NetworkIXLan{{ID: 1, IXID: 10, ASN: 64500}}})
	})
	mux.HandleFunc("GET /api/ix/{id}", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		writeTestJSON(w, response[IX]{Data: []IX{{ID: 20, Name: "DE-CIX Frankfurt"}}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, func(path string) int {
		mu.Lock()
		defer mu.Unlock()
		return hits[path]
	}
}

func writeTestJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(srv *httptest.Server, ttl time.Duration) *Client {
	return NewClient(Config{URL: srv.URL + "/api", CacheTTL: ttl, Timeout: 5 * time.Second}, nil)
}

func TestGetNetwork(t *testing.T) {
	srv, _ := newMockPeeringDB(t)
	c := newTestClient(srv, 0)

	n, err := c.GetNetwork(context.Background(), 64500)
	if err != nil {
		t.Fatalf("GetNetwork: %v", err)
	}
	if n.Name != "Example Networks" || n.InfoPrefixes6 != 20 {
		t.Errorf("GetNetwork = %+v", n)
	}

	if _, err := c.GetNetwork(context.Background(), 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown ASN error = %v, want ErrNotFound", err)
	}
}

func TestImportCandidates(t *testing.T) {
	srv, hits := newMockPeeringDB(t)
	c := newTestClient(srv, 0)

	got, err := c.ImportCandidates(context.Background(), 64500, map[int64]bool{3: true})
	if err != nil {
		t.Fatalf("ImportCandidates: %v", err)
	}
	want := []Candidate{
		{PeeringDBID: 1, Name: "AMS-IX", Slug: "ams-ix", IPv6Address: "2001:7f8:1::a506:4500:1", IPv4Address: "80.249.208.1"},
		{PeeringDBID: 2, Name: "DE-CIX Frankfurt", Slug: "de-cix-frankfurt", IPv6Address: "2001:7f8:2::1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
	if n := hits("/api/ix/20"); n != 1 {
		t.Errorf("ix lookups = %d, want 1", n)
	}
}

func TestPeers_excludes_own_network(t *testing.T) {
	srv, _ := newMockPeeringDB(t)
	c := newTestClient(srv, 0)

	got, err := c.Peers(context.Background(), 1)
	if err != nil {
		t.Fatalf("Peers: %v", err)
	}
	want := []Peer{
		{ASN: 64501, Name: "Transit", IPv6Address: "2001:7f8:1::a506:4501:1", IsRSPeer: true},
		{ASN: 64502, Name: "Other", IPv4Address: "80.249.208.7"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("peers mismatch (-want +got):\n%s", diff)
	}

	if _, err := c.Peers(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown netixlan error = %v, want ErrNotFound", err)
	}
}

func TestClient_caches_responses(t *testing.T) {
	srv, hits := newMockPeeringDB(t)
	c := newTestClient(srv, time.Minute)

	for range 3 {
		if _, err := c.GetNetwork(context.Background(), 64500); err != nil {
			t.Fatal(err)
		}
	}
	if n := hits("/api/net"); n != 1 {
		t.Errorf("requests = %d, want 1 with caching", n)
	}
}

func TestClient_sends_api_key(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		writeTestJSON(w, response[IX]{Data: []IX{{ID: 1}}})
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, APIKey: "k3y"}, nil)
	if _, err := c.GetIX(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if got != "Api-Key k3y" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestClient_server_error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL}, nil)
	if _, err := c.GetIXNetworksForASN(context.Background(), 64500); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"AMS-IX":           "ams-ix",
		"DE-CIX Frankfurt": "de-cix-frankfurt",
		"  LINX  LON1 ":    "linx-lon1",
		"France-IX: Paris": "france-ix-paris",
		"***":              "ix",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestApplyNetwork(t *testing.T) {
	as := models.AutonomousSystem{ASN: 64500, Name: "old"}
	n := Network{ID: 42, ASN: 64500, Name: "Example Networks", IRRASSet: "AS-EXAMPLE", InfoPrefixes6: 20, InfoPrefixes4: 100}

	if !ApplyNetwork(&as, n) {
		t.Fatal("first apply reported no change")
	}
	want := models.AutonomousSystem{
		ASN: 64500, Name: "Example Networks", IRRASSet: "AS-EXAMPLE",
		IPv6MaxPrefixes: 20, IPv4MaxPrefixes: 100, PeeringDBID: &n.ID,
	}
	if diff := cmp.Diff(want, as); diff != "" {
		t.Errorf("applied AS mismatch (-want +got):\n%s", diff)
	}
	if ApplyNetwork(&as, n) {
		t.Error("second apply reported a change")
	}
}
