package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Labels(t *testing.T) {
	m := NewMetricsForTesting()

	m.RowsDropped.WithLabelValues("weather", "VIS").Add(2)
	m.RowsDropped.WithLabelValues("flights", "unknown_airport").Inc()
	m.SelectedWindow.Set(7)

	assert.InDelta(t, 2, testutil.ToFloat64(m.RowsDropped.WithLabelValues("weather", "VIS")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RowsDropped.WithLabelValues("flights", "unknown_airport")), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(m.SelectedWindow), 0)
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)
	m.RowsWritten.WithLabelValues("merged").Add(42)

	path := filepath.Join(t.TempDir(), "etl.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `flight_weather_etl_rows_written_total{table="merged"} 42`)
}
