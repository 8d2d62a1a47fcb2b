package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.IncRecordsInserted()
	m.IncRecordsInserted()
	m.IncVerification("valid")
	m.IncIdentityFailure("expired_certificate", "direct")
	m.AddIntegrityMismatches(3)
	m.AddIntegrityMismatches(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsInserted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verifications.WithLabelValues("valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IdentityFailures.WithLabelValues("expired_certificate", "direct")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IntegrityMismatches))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncRecordsInserted()
		m.IncVerification("invalid")
		m.ObserveStoreLatency("insert", 1)
	})
}
