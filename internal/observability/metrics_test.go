package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordReconcileAndCoverage(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordReconcile("base", 10*time.Millisecond, nil)
	m.RecordReconcile("base", 10*time.Millisecond, errors.New("ledger down"))
	m.RecordCoverage("base", 4, 2, true, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconcileRuns.WithLabelValues("base", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconcileRuns.WithLabelValues("base", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReconcileRecords.WithLabelValues("base", "ledger")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexerDegraded.WithLabelValues("base")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.RecordReconcile("base", time.Second, nil)
	m.RecordConvergence("timeout", 0)
	m.RecordCacheLookup(true)
	m.RecordHTTP("GET", "/healthz", 200, time.Millisecond)
}
