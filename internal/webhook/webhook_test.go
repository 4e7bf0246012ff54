package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/peeringmanager/pkg/models"
)

func testChange() models.ObjectChange {
	return models.ObjectChange{
		Action:      models.ActionCreated,
		ContentType: models.ContentTypeAutonomousSystem,
		ObjectID:    1,
		Username:    "admin",
		RequestID:   "req-1",
		Timestamp:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Data:        map[string]any{"asn": 64500, "name": "Example"},
	}
}

type recorded struct {
	method  string
	headers http.Header
	body    []byte
}

func recordingServer(t *testing.T, status int) (*httptest.Server, func() []recorded) {
	t.Helper()
	var (
		mu  sync.Mutex
		got []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, recorded{method: r.Method, headers: r.Header.Clone(), body: body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), got...)
	}
}

func TestDeliver_DefaultPayload(t *testing.T) {
	srv, received := recordingServer(t, http.StatusOK)
	d := NewDispatcher(5*time.Second, zap.NewNop())

	hook := &models.Webhook{Name: "noc", URL: srv.URL, SSLVerification: true}
	if err := d.Deliver(context.Background(), hook, testChange()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	got := received()
	if len(got) != 1 {
		t.Fatalf("received %d requests, want 1", len(got))
	}
	if got[0].method != http.MethodPost {
		t.Errorf("method = %s, want POST", got[0].method)
	}
	if ct := got[0].headers.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if got[0].headers.Get(SignatureHeader) != "" {
		t.Error("signature sent without a secret")
	}

	var p Payload
	if err := json.Unmarshal(got[0].body, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Event != models.ActionCreated || p.Model != models.ContentTypeAutonomousSystem {
		t.Errorf("payload = %+v", p)
	}
	if p.Username != "admin" || p.RequestID != "req-1" || p.Timestamp != "2026-01-01T00:00:00Z" {
		t.Errorf("payload metadata = %+v", p)
	}
}

func TestDeliver_SignatureVerifiesWithSecret(t *testing.T) {
	srv, received := recordingServer(t, http.StatusNoContent)
	d := NewDispatcher(5*time.Second, zap.NewNop())

	hook := &models.Webhook{Name: "signed", URL: srv.URL, Secret: "s3cret", SSLVerification: true}
	if err := d.Deliver(context.Background(), hook, testChange()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	got := received()[0]
	if sig := got.headers.Get(SignatureHeader); sig != Sign("s3cret", got.body) {
		t.Errorf("signature %q does not verify", sig)
	}
	if Sign("other", got.body) == got.headers.Get(SignatureHeader) {
		t.Error("signature verified with the wrong secret")
	}
}

func TestDeliver_TemplateMethodAndHeaders(t *testing.T) {
	srv, received := recordingServer(t, http.StatusOK)
	d := NewDispatcher(5*time.Second, zap.NewNop())

	hook := &models.Webhook{
		Name:              "templated",
		URL:               srv.URL,
		HTTPMethod:        http.MethodPut,
		HTTPContentType:   "text/plain",
		AdditionalHeaders: "X-Team: noc\nX-Env: lab\n",
		BodyTemplate:      "{{ model }} {{ event }} AS{{ data.asn }} by {{ username }}",
		SSLVerification:   true,
	}
	if err := d.Deliver(context.Background(), hook, testChange()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	got := received()[0]
	if got.method != http.MethodPut {
		t.Errorf("method = %s, want PUT", got.method)
	}
	if got.headers.Get("X-Team") != "noc" || got.headers.Get("X-Env") != "lab" {
		t.Errorf("additional headers missing: %v", got.headers)
	}
	if ct := got.headers.Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Content-Type = %q", ct)
	}
	if want := "peering.autonomoussystem created AS64500 by admin"; string(got.body) != want {
		t.Errorf("body = %q, want %q", got.body, want)
	}
}

func TestDeliver_Errors(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusInternalServerError)
	d := NewDispatcher(5*time.Second, zap.NewNop())

	tests := []struct {
		name string
		hook models.Webhook
	}{
		{name: "server error", hook: models.Webhook{URL: srv.URL, SSLVerification: true}},
		{name: "bad header", hook: models.Webhook{URL: srv.URL, AdditionalHeaders: "no colon here"}},
		{name: "bad template", hook: models.Webhook{URL: srv.URL, BodyTemplate: "{% if %}"}},
		{name: "missing CA file", hook: models.Webhook{URL: srv.URL, CAFilePath: "/nonexistent/ca.pem"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := d.Deliver(context.Background(), &tt.hook, testChange()); err == nil {
				t.Error("Deliver succeeded, want error")
			}
		})
	}
}

func TestParseHeaders(t *testing.T) {
	h, err := ParseHeaders("Authorization: Bearer abc\n\n  X-A:1  \n")
	if err != nil {
		t.Fatalf("ParseHeaders: %v", err)
	}
	if h.Get("Authorization") != "Bearer abc" || h.Get("X-A") != "1" {
		t.Errorf("headers = %v", h)
	}
}
