package device

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCount(t *testing.T, platform, op string) uint64 {
	t.Helper()
	var m dto.Metric
	h, ok := operationDuration.WithLabelValues(platform, op).(prometheus.Metric)
	require.True(t, ok)
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestInstrumented_counts_and_times_operations(t *testing.T) {
	fleet := NewFleet()
	fleet.Set("edge-1", MockRouter{Running: "hostname edge-1\n"})
	fleet.Set("edge-down", MockRouter{OpenErr: errors.New("connection refused")})
	r := NewRegistry()
	r.Register("lab", fleet.Factory())

	drv, err := r.New("lab", Options{Hostname: "edge-1"})
	require.NoError(t, err)
	_, err = Changes(context.Background(), drv, "ip route 0.0.0.0/0 192.0.2.1\n", true)
	require.NoError(t, err)

	for _, op := range []string{"open", "compare", "commit"} {
		assert.Equal(t, 1.0, testutil.ToFloat64(operationsTotal.WithLabelValues("lab", op, "ok")), op)
		assert.Equal(t, uint64(1), sampleCount(t, "lab", op), op)
	}

	drv, err = r.New("lab", Options{Hostname: "edge-down"})
	require.NoError(t, err)
	_, err = Changes(context.Background(), drv, "x", false)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(operationsTotal.WithLabelValues("lab", "open", "error")))
	assert.Equal(t, uint64(2), sampleCount(t, "lab", "open"), "failed calls are timed too")
	assert.Equal(t, uint64(1), sampleCount(t, "lab", "compare"))
}
