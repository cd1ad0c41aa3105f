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

	require.NoError(t, m.Track("ledger:integrity").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("ledger:integrity").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:integrity", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:integrity", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("ledger:integrity")))
}

func TestAddViolations(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddViolations("s1", "balance_mismatch", 2)
	m.AddViolations("s1", "balance_mismatch", 0)
	m.AddViolations("", "orphan_payment", 1)

	require.Equal(t, 2.0, testutil.ToFloat64(m.violations.WithLabelValues("s1", "balance_mismatch")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.violations.WithLabelValues("unknown", "orphan_payment")))

	var nilMetrics *Metrics
	nilMetrics.AddViolations("s1", "x", 1)
	require.NoError(t, nilMetrics.Track("job").End(nil))
}
