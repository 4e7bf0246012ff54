// Package webhook delivers object change notifications to HTTP endpoints
// configured as webhooks.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HerbHall/peeringmanager/internal/render"
	"github.com/HerbHall/peeringmanager/internal/version"
	"github.com/HerbHall/peeringmanager/pkg/models"
)

// SignatureHeader carries the hex HMAC-SHA512 of the body when the webhook
// has a secret.
const SignatureHeader = "X-Hook-Signature"

var deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "peeringmanager_webhook_deliveries_total",
	Help: "Webhook deliveries by result.",
}, []string{"result"})

func init() {
	prometheus.MustRegister(deliveries)
}

// Payload is the default JSON body sent to a webhook.
type Payload struct {
	Event     models.ObjectAction `json:"event"`
	Timestamp string              `json:"timestamp"`
	Model     models.ContentType  `json:"model"`
	Username  string              `json:"username"`
	RequestID string              `json:"request_id"`
	Data      any                 `json:"data"`
}

// NewPayload builds the payload for change.
func NewPayload(change models.ObjectChange) Payload {
	return Payload{
		Event:     change.Action,
		Timestamp: change.Timestamp.UTC().Format(time.RFC3339),
		Model:     change.ContentType,
		Username:  change.Username,
		RequestID: change.RequestID,
		Data:      change.Data,
	}
}

// Sign returns the hex encoded HMAC-SHA512 of body keyed with secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Dispatcher sends webhook requests. HTTP clients are cached per TLS
// settings.
type Dispatcher struct {
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	clients map[clientKey]*http.Client
}

type clientKey struct {
	verify bool
	caFile string
}

// NewDispatcher creates a Dispatcher whose requests time out after timeout.
func NewDispatcher(timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{logger: logger, timeout: timeout, clients: make(map[clientKey]*http.Client)}
}

// Body returns the request body for hook. A body template is rendered with
// the payload fields as variables; otherwise the payload is sent as JSON.
func Body(hook *models.Webhook, change models.ObjectChange) ([]byte, error) {
	p := NewPayload(change)
	if strings.TrimSpace(hook.BodyTemplate) == "" {
		return json.Marshal(p)
	}
	data, err := render.Value(p.Data)
	if err != nil {
		return nil, err
	}
	out, err := render.String(hook.BodyTemplate, render.Context{
		"event":      string(p.Event),
		"timestamp":  p.Timestamp,
		"model":      string(p.Model),
		"username":   p.Username,
		"request_id": p.RequestID,
		"data":       data,
	})
	if err != nil {
		return nil, fmt.Errorf("body template: %w", err)
	}
	return []byte(out), nil
}

// ParseHeaders parses additional headers given one "Name: value" per line.
func ParseHeaders(raw string) (http.Header, error) {
	h := make(http.Header)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header line %q", line)
		}
		h.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return h, nil
}

// Deliver sends change to hook. A non-2xx response is an error.
func (d *Dispatcher) Deliver(ctx context.Context, hook *models.Webhook, change models.ObjectChange) error {
	err := d.deliver(ctx, hook, change)
	result := "ok"
	if err != nil {
		result = "error"
		d.logger.Warn("webhook delivery failed",
			zap.String("webhook", hook.Name),
			zap.String("url", hook.URL),
			zap.String("model", string(change.ContentType)),
			zap.Error(err),
		)
	} else {
		d.logger.Debug("webhook delivered",
			zap.String("webhook", hook.Name),
			zap.String("event", string(change.Action)),
		)
	}
	deliveries.WithLabelValues(result).Inc()
	return err
}

func (d *Dispatcher) deliver(ctx context.Context, hook *models.Webhook, change models.ObjectChange) error {
	body, err := Body(hook, change)
	if err != nil {
		return err
	}
	headers, err := ParseHeaders(hook.AdditionalHeaders)
	if err != nil {
		return err
	}
	client, err := d.client(hook)
	if err != nil {
		return err
	}

	method := hook.HTTPMethod
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, hook.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	contentType := hook.HTTPContentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "peeringmanager-webhook/"+version.Short())
	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if hook.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(hook.Secret, body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint returned %s", resp.Status)
	}
	return nil
}

func (d *Dispatcher) client(hook *models.Webhook) (*http.Client, error) {
	key := clientKey{verify: hook.SSLVerification, caFile: hook.CAFilePath}
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.clients[key]; ok {
		return c, nil
	}

	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !key.verify, //nolint:gosec // G402: per-webhook opt-out
	}
	if key.caFile != "" {
		pem, err := os.ReadFile(key.caFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", key.caFile)
		}
		tlsCfg.RootCAs = pool
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsCfg
	c := &http.Client{Timeout: d.timeout, Transport: transport}
	d.clients[key] = c
	return c, nil
}
