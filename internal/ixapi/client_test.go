package ixapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newMockServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["api_key"] != "key" || creds["api_secret"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "refresh_token": "ref"})
	})
	mux.HandleFunc("GET /v1/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"1234","name":"Example Networks","managing_account":"1234"}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAccounts(t *testing.T) {
	srv := newMockServer(t)
	c := NewClient(srv.URL+"/v1/", "key", "secret", 5*time.Second, nil)

	got, err := c.Accounts(context.Background())
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	want := []Account{{"id": "1234", "name": "Example Networks", "managing_account": "1234"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Accounts mismatch (-want +got):\n%s", diff)
	}
}

func TestAccounts_BadCredentials(t *testing.T) {
	srv := newMockServer(t)
	c := NewClient(srv.URL+"/v1", "key", "wrong", 5*time.Second, nil)

	if _, err := c.Accounts(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}
