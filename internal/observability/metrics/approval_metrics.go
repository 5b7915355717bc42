package metrics

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// ApprovalMetrics tracks the approve/reject workflow.
type ApprovalMetrics struct {
	approvals        *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	cleanupFailures  prometheus.Counter
	revokeFailures   prometheus.Counter
	migrationSeconds prometheus.Histogram
}

var (
	approvalMetricsOnce sync.Once
	approvalMetrics     *ApprovalMetrics
)

// Approval returns the process-wide approval metrics registered on the default registry.
func Approval(cfg Config) *ApprovalMetrics {
	approvalMetricsOnce.Do(func() {
		approvalMetrics = newApprovalMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return approvalMetrics
}

// NewApprovalMetricsForTest builds an instance bound to its own registry.
func NewApprovalMetricsForTest(registerer prometheus.Registerer) *ApprovalMetrics {
	return newApprovalMetrics(registerer, Config{ServiceName: "ndpcatalog", Environment: "test"})
}

func newApprovalMetrics(registerer prometheus.Registerer, cfg Config) *ApprovalMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	m := &ApprovalMetrics{
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ndp_dataset_approvals_total",
			Help:        "Dataset approvals by outcome and failure reason.",
			ConstLabels: constLabels,
		}, []string{"outcome", "reason"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ndp_dataset_rejections_total",
			Help:        "Dataset rejections by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ndp_post_migration_cleanup_failures_total",
			Help:        "Datasets created in production whose staging copy could not be purged.",
			ConstLabels: constLabels,
		}),
		revokeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ndp_remote_token_revoke_failures_total",
			Help:        "Scoped remote tokens that could not be revoked.",
			ConstLabels: constLabels,
		}),
		migrationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "ndp_dataset_migration_duration_seconds",
			Help:        "End-to-end approval latency.",
			Buckets:     []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			ConstLabels: constLabels,
		}),
	}

	_ = register(registerer, m.approvals, m.rejections, m.cleanupFailures, m.revokeFailures, m.migrationSeconds)
	return m
}

func (m *ApprovalMetrics) ApprovalSucceeded(seconds float64) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(OutcomeSuccess, "").Inc()
	m.migrationSeconds.Observe(seconds)
}

func (m *ApprovalMetrics) ApprovalFailed(reason string) {
	if m == nil {
		return
	}
	outcome := OutcomeFailure
	if reason == "not_authorized" {
		outcome = OutcomeDenied
	}
	m.approvals.WithLabelValues(outcome, strings.TrimSpace(reason)).Inc()
}

func (m *ApprovalMetrics) Rejection(outcome string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(outcome).Inc()
}

func (m *ApprovalMetrics) CleanupFailed() {
	if m == nil {
		return
	}
	m.cleanupFailures.Inc()
}

func (m *ApprovalMetrics) TokenRevokeFailed() {
	if m == nil {
		return
	}
	m.revokeFailures.Inc()
}

func constLabelsFor(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "ndpcatalog"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

// register tolerates collectors that are already registered.
func register(registerer prometheus.Registerer, collectors ...prometheus.Collector) error {
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}
