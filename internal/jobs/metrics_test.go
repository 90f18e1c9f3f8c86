package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := true
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					matched = false
				}
			}
			if matched {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	require.NoError(t, metrics.Track("ledger:integrity_scan").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track("ledger:integrity_scan").End(boom), boom)

	require.Equal(t, 1.0, counterValue(t, reg, "odyssey_jobs_total", map[string]string{"job": "ledger:integrity_scan", "status": "success"}))
	require.Equal(t, 1.0, counterValue(t, reg, "odyssey_jobs_total", map[string]string{"job": "ledger:integrity_scan", "status": "failure"}))
	require.Equal(t, 1.0, counterValue(t, reg, "odyssey_jobs_failures_total", map[string]string{"job": "ledger:integrity_scan"}))
}

func TestAddViolations(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	metrics.AddViolations("lot_bounds", 2)
	metrics.AddViolations("lot_bounds", 0)
	require.Equal(t, 2.0, counterValue(t, reg, "odyssey_ledger_integrity_violations_total", map[string]string{"check": "lot_bounds"}))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.AddViolations("lot_bounds", 1)
	require.NoError(t, metrics.Track("job").End(nil))
}
