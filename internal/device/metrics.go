package device

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "peeringmanager",
			Name:      "device_operations_total",
			Help:      "Device driver operations by platform, operation and result.",
		},
		[]string{"platform", "operation", "result"},
	)
	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "peeringmanager",
			Name:      "device_operation_duration_seconds",
			Help:      "Device driver operation latency in seconds.",
			// Commits on large routers run well past the default buckets.
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"platform", "operation"},
	)
)

func init() {
	prometheus.MustRegister(operationsTotal, operationDuration)
}

// instrumented counts and times every driver call that can touch the
// network.
type instrumented struct {
	Driver
	platform string
}

func instrument(platform string, d Driver) Driver {
	return &instrumented{Driver: d, platform: platform}
}

func (d *instrumented) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operationsTotal.WithLabelValues(d.platform, op, result).Inc()
	operationDuration.WithLabelValues(d.platform, op).Observe(time.Since(start).Seconds())
}

func (d *instrumented) Open(ctx context.Context) error {
	start := time.Now()
	err := d.Driver.Open(ctx)
	d.observe("open", start, err)
	return err
}

func (d *instrumented) CompareConfig(ctx context.Context) (string, error) {
	start := time.Now()
	diff, err := d.Driver.CompareConfig(ctx)
	d.observe("compare", start, err)
	return diff, err
}

func (d *instrumented) CommitConfig(ctx context.Context) error {
	start := time.Now()
	err := d.Driver.CommitConfig(ctx)
	d.observe("commit", start, err)
	return err
}

func (d *instrumented) GetFacts(ctx context.Context) (Facts, error) {
	start := time.Now()
	f, err := d.Driver.GetFacts(ctx)
	d.observe("facts", start, err)
	return f, err
}
