package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("budget:close-expired").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("budget:close-expired").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("budget:close-expired", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("budget:close-expired", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("budget:close-expired")))
}

func TestAddPeriodClosures(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddPeriodClosures(3, 0)
	m.AddPeriodClosures(1, 2)

	require.Equal(t, 4.0, testutil.ToFloat64(m.closures.WithLabelValues("closed")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.closures.WithLabelValues("failed")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddPeriodClosures(1, 1)
	require.NoError(t, m.Track("noop").End(nil))
}
