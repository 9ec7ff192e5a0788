package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	UsersCreated     prometheus.Counter
	SessionsCreated  prometheus.Counter
	SessionsRevoked  prometheus.Counter
	AuthFailures     *prometheus.CounterVec
	DocumentOps      *prometheus.CounterVec
	DocumentDuration *prometheus.HistogramVec
	StatusChanges    *prometheus.CounterVec
	CommentsCreated  prometheus.Counter
	BlobOps          *prometheus.CounterVec
	BlobBytesStored  prometheus.Counter
	BlobDuration     *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers metrics on reg, letting tests use an isolated registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UsersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_users_created_total",
			Help: "Total number of users created through sign-up",
		}),
		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_sessions_created_total",
			Help: "Total number of password sessions created",
		}),
		SessionsRevoked: f.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_sessions_revoked_total",
			Help: "Total number of sessions revoked by sign-out",
		}),
		AuthFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_auth_failures_total",
			Help: "Authentication failures by reason",
		}, []string{"reason"}),
		DocumentOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_document_operations_total",
			Help: "Document operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		DocumentDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskboard_document_operation_duration_seconds",
			Help:    "Duration of document operations",
			Buckets: latencyBuckets,
		}, []string{"operation"}),
		StatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_task_status_changes_total",
			Help: "Task status updates by target status",
		}, []string{"status"}),
		CommentsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_comments_created_total",
			Help: "Total number of comments created",
		}),
		BlobOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_blob_operations_total",
			Help: "Blob operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		BlobBytesStored: f.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_blob_bytes_stored_total",
			Help: "Bytes written to the blob store after compression",
		}),
		BlobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskboard_blob_operation_duration_seconds",
			Help:    "Duration of blob operations",
			Buckets: latencyBuckets,
		}, []string{"operation"}),
	}
}

// ObserveDocument records one document operation. Safe on a nil receiver.
func (m *Metrics) ObserveDocument(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.DocumentOps.WithLabelValues(op, outcome(err)).Inc()
	m.DocumentDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObserveBlob records one blob operation. Safe on a nil receiver.
func (m *Metrics) ObserveBlob(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.BlobOps.WithLabelValues(op, outcome(err)).Inc()
	m.BlobDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementUsersCreated() {
	if m != nil {
		m.UsersCreated.Inc()
	}
}

func (m *Metrics) IncrementSessionsCreated() {
	if m != nil {
		m.SessionsCreated.Inc()
	}
}

func (m *Metrics) IncrementSessionsRevoked() {
	if m != nil {
		m.SessionsRevoked.Inc()
	}
}

func (m *Metrics) IncrementAuthFailure(reason string) {
	if m != nil {
		m.AuthFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementStatusChange(status string) {
	if m != nil {
		m.StatusChanges.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementCommentsCreated() {
	if m != nil {
		m.CommentsCreated.Inc()
	}
}

func (m *Metrics) AddBlobBytes(n int64) {
	if m != nil && n > 0 {
		m.BlobBytesStored.Add(float64(n))
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
