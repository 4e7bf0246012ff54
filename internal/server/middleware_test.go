package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func TestLoggingMiddleware_labels_metrics_by_route_pattern(t *testing.T) {
	const pattern = "GET /api/v1/peering/internet-exchanges/{slug}"
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var seen string
	capture := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Copying the request must not hide the route from the logger.
			next.ServeHTTP(w, r.WithContext(r.Context()))
			seen = *r.Context().Value(routeKey{}).(*string)
		})
	}
	handler := Chain(RouteRecorder(mux), LoggingMiddleware(zap.NewNop(), nil), capture)

	counter := httpRequestsTotal.WithLabelValues("GET", pattern, "200")
	before := testutil.ToFloat64(counter)
	for _, slug := range []string{"ams-ix", "de-cix-fra", "linx-lon1"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/peering/internet-exchanges/"+slug, http.NoBody))
	}

	assert.Equal(t, pattern, seen)
	assert.Equal(t, before+3, testutil.ToFloat64(counter), "slugs share one series")
}

func TestLoggingMiddleware_unmatched_route(t *testing.T) {
	handler := Chain(RouteRecorder(http.NewServeMux()), LoggingMiddleware(zap.NewNop(), nil))

	counter := httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")
	before := testutil.ToFloat64(counter)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/peering/nothing-here/1", http.NoBody))
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestStatusWriter_hijack_for_websocket(t *testing.T) {
	status := make(chan int, 1)
	record := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			status <- sw.status
		})
	}
	upgrade := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conn, buf, err := http.NewResponseController(w).Hijack()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer conn.Close()
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 2\r\nConnection: close\r\n\r\nok")
		_ = buf.Flush()
	})

	srv := httptest.NewServer(Chain(upgrade, record))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/ws/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "ok", string(body))
	select {
	case got := <-status:
		assert.Equal(t, http.StatusSwitchingProtocols, got)
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return after hijack")
	}
}

func TestRateLimitMiddleware_keys_on_forwarded_client(t *testing.T) {
	handler := RateLimitMiddleware(0.001, 1, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	send := func(xff string) int {
		req := httptest.NewRequest("GET", "/api/v1/peering/autonomous-systems", http.NoBody)
		req.RemoteAddr = "127.0.0.1:40000"
		req.Header.Set("X-Forwarded-For", xff)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.50, 10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("198.51.100.7"), "a second client behind the same proxy has its own bucket")
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.50"))
}

func TestIPRateLimiter_evicts_idle_clients_at_capacity(t *testing.T) {
	l := newIPRateLimiter(rate.Limit(1), 1)
	stale := time.Now().Add(-2 * clientIdleAfter)
	for i := range maxTrackedClients {
		l.limiters["10.1."+strconv.Itoa(i/256)+"."+strconv.Itoa(i%256)] = &rateLimitEntry{
			limiter:  rate.NewLimiter(l.limit, l.burst),
			lastSeen: stale,
		}
	}
	l.limiters["192.0.2.10"] = &rateLimitEntry{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: time.Now()}

	assert.True(t, l.allow("192.0.2.20"))
	assert.Len(t, l.limiters, 2, "only the recent clients remain")
	assert.Contains(t, l.limiters, "192.0.2.10")
}

func TestRequestIDMiddleware_propagates_caller_id(t *testing.T) {
	var got string
	handler := RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = RequestID(r.Context())
	}))

	req := httptest.NewRequest("POST", "/api/v1/extras/jobs", http.NoBody)
	req.Header.Set("X-Request-ID", "deploy-7f3a")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "deploy-7f3a", got)
	assert.Equal(t, "deploy-7f3a", w.Header().Get("X-Request-ID"))
}
