package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveOperation(t *testing.T) {
	m := New("test")

	m.ObserveOperation("connect", "Succeeded")
	m.ObserveOperation("send", "Succeeded")
	m.ObserveOperation("send", "Succeeded")
	m.ObserveOperation("receive", "TimedOut")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("connect", "Succeeded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("send", "Succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("receive", "TimedOut")))
}

func TestMetrics_Snapshot(t *testing.T) {
	m := New("test")
	m.ObserveOperation("send", "Failed")
	m.ObserveExchange("complete", 20*time.Millisecond)
	m.ObserveExchange("complete", 30*time.Millisecond)
	require.NoError(t, m.RegisterGauge("test_sessions", "live sessions", func() float64 { return 4 }))

	snap, err := m.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, 1.0, snap["test_operations_total{op=send,outcome=Failed}"])
	assert.Equal(t, 2.0, snap["test_exchange_duration_seconds{result=complete}"])
	assert.Equal(t, 4.0, snap["test_sessions"])
}

func TestMetrics_RegisterGaugeTwice(t *testing.T) {
	m := New("test")
	require.NoError(t, m.RegisterGauge("test_sessions", "live sessions", func() float64 { return 0 }))
	assert.Error(t, m.RegisterGauge("test_sessions", "live sessions", func() float64 { return 0 }))
}

func TestMetrics_Handler(t *testing.T) {
	m := New("test")
	m.ObserveOperation("connect", "Succeeded")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `test_operations_total{op="connect",outcome="Succeeded"} 1`)
}
