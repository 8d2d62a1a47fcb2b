package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RecordsInserted      prometheus.Counter
	InsertConflicts      prometheus.Counter
	Verifications        *prometheus.CounterVec
	IdentityFailures     *prometheus.CounterVec
	AuthorizationDenials prometheus.Counter
	CallersRegistered    prometheus.Counter
	PublishFailures      prometheus.Counter
	IntegrityMismatches  prometheus.Counter
	SweepDuration        prometheus.Histogram
	StoreLatency         *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers metrics on reg so tests can use isolated registries.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RecordsInserted: f.NewCounter(prometheus.CounterOpts{
			Name: "certtrail_records_inserted_total",
			Help: "Total number of audit records appended to the trail",
		}),
		InsertConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "certtrail_insert_conflicts_total",
			Help: "Total number of inserts rejected because the digest already exists",
		}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certtrail_verifications_total",
			Help: "Verification outcomes by result (valid, invalid, not_found)",
		}, []string{"result"}),
		IdentityFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certtrail_identity_failures_total",
			Help: "Client identity extraction failures by error code",
		}, []string{"code", "mode"}),
		AuthorizationDenials: f.NewCounter(prometheus.CounterOpts{
			Name: "certtrail_authorization_denials_total",
			Help: "Trail operations denied because the caller is not registered",
		}),
		CallersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "certtrail_callers_registered_total",
			Help: "Total number of services registered by the controller",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "certtrail_publish_failures_total",
			Help: "Records that were stored but could not be published downstream",
		}),
		IntegrityMismatches: f.NewCounter(prometheus.CounterOpts{
			Name: "certtrail_integrity_mismatches_total",
			Help: "Stored records whose digest no longer matches their fields",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "certtrail_integrity_sweep_duration_seconds",
			Help:    "Duration of full-trail integrity sweeps",
			Buckets: prometheus.DefBuckets,
		}),
		StoreLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certtrail_store_operation_duration_ms",
			Help:    "Latency of trail store operations in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncRecordsInserted() {
	if m != nil {
		m.RecordsInserted.Inc()
	}
}

func (m *Metrics) IncInsertConflicts() {
	if m != nil {
		m.InsertConflicts.Inc()
	}
}

func (m *Metrics) IncVerification(result string) {
	if m != nil {
		m.Verifications.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncIdentityFailure(code, mode string) {
	if m != nil {
		m.IdentityFailures.WithLabelValues(code, mode).Inc()
	}
}

func (m *Metrics) IncAuthorizationDenials() {
	if m != nil {
		m.AuthorizationDenials.Inc()
	}
}

func (m *Metrics) IncCallersRegistered() {
	if m != nil {
		m.CallersRegistered.Inc()
	}
}

func (m *Metrics) IncPublishFailures() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

func (m *Metrics) AddIntegrityMismatches(n int) {
	if m != nil && n > 0 {
		m.IntegrityMismatches.Add(float64(n))
	}
}

func (m *Metrics) ObserveSweepDuration(seconds float64) {
	if m != nil {
		m.SweepDuration.Observe(seconds)
	}
}

func (m *Metrics) ObserveStoreLatency(operation string, ms float64) {
	if m != nil {
		m.StoreLatency.WithLabelValues(operation).Observe(ms)
	}
}
