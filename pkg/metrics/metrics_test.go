package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics_IsolatedRegistries(t *testing.T) {
	a := InitMetrics("test", "a")
	b := InitMetrics("test", "a")

	a.RecordCacheLookup(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CacheLookupsTotal.WithLabelValues("hit")))
	assert.Same(t, b, Get())
}

func TestGet_InitializesDefault(t *testing.T) {
	defaultMetrics = nil

	m := Get()
	require.NotNil(t, m)
	assert.Same(t, m, Get())
}

func TestRecordRun(t *testing.T) {
	m := InitMetrics("test", "run")

	m.RecordRun(250*time.Millisecond, RunResult{
		Deliveries:      3,
		FulfillmentRate: 0.75,
		BalanceScore:    0.5,
		TotalDistanceKm: 420,
		PathSearches:    12,
	})
	m.RecordFailure(time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SolveRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SolveRunsTotal.WithLabelValues("error")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.PathSearchesTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Deliveries))
	assert.Equal(t, 0.75, testutil.ToFloat64(m.FulfillmentRate))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.BalanceScore))
	assert.Equal(t, 420.0, testutil.ToFloat64(m.TotalDistanceKm))
}

func TestRecordDatasetSize(t *testing.T) {
	m := InitMetrics("test", "ds")

	m.RecordDatasetSize(map[string]int{"locations": 5, "routes": 8})

	assert.Equal(t, 5.0, testutil.ToFloat64(m.DatasetSize.WithLabelValues("locations")))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.DatasetSize.WithLabelValues("routes")))
}

func TestWriteTextfile(t *testing.T) {
	m := InitMetrics("test", "file")
	m.SetServiceInfo("1.0.0", "test")
	m.RecordCacheLookup(false)

	path := filepath.Join(t.TempDir(), "cvrp.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `test_file_cache_lookups_total{result="miss"} 1`)
	assert.Contains(t, string(data), "test_file_service_info")
	assert.Contains(t, string(data), "test_file_runtime_goroutines")
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Elapsed(), 5*time.Millisecond)
}
