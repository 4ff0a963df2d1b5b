package xguardmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestMetricsIncrement(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := New(reg, "cacheguard_test")
	require.NoError(t, err)

	m.BloomRejected()
	m.BloomRejected()
	m.Eviction()
	m.BreakdownLoaderInvocation()
	m.LockAcquisitionTimeout()
	m.LockAcquisitionTimeout()
	m.LockAcquisitionTimeout()

	require.Equal(t, float64(2), counterValue(t, m.bloomRejected))
	require.Equal(t, float64(1), counterValue(t, m.eviction))
	require.Equal(t, float64(1), counterValue(t, m.breakdownLoaderInvocation))
	require.Equal(t, float64(3), counterValue(t, m.lockAcquisitionTimeout))
}

func TestNewDuplicateRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := New(reg, "cacheguard_test")
	require.NoError(t, err)

	_, err = New(reg, "cacheguard_test")
	require.Error(t, err)
}
