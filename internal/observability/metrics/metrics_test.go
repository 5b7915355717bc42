package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("action", "package_create"),
		attribute.String("dataset_id", "456"),
		attribute.String("status_code", "200"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "action" && attrs[1].Key != "action" {
		t.Fatalf("expected action to be retained")
	}
	if attrs[0].Key != "status_code" && attrs[1].Key != "status_code" {
		t.Fatalf("expected status_code to be retained")
	}
}

func TestApprovalMetricsCounts(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewApprovalMetricsForTest(registry)

	m.ApprovalSucceeded(1.5)
	m.ApprovalFailed("not_authorized")
	m.ApprovalFailed("remote_dataset_create")
	m.CleanupFailed()
	m.Rejection(OutcomeSuccess)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.approvals.WithLabelValues(OutcomeSuccess, "")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.approvals.WithLabelValues(OutcomeDenied, "not_authorized")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.approvals.WithLabelValues(OutcomeFailure, "remote_dataset_create")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cleanupFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rejections.WithLabelValues(OutcomeSuccess)))

	families, err := registry.Gather()
	require.NoError(t, err)
	var histogram *dto.Histogram
	for _, family := range families {
		if family.GetName() == "ndp_dataset_migration_duration_seconds" {
			histogram = family.GetMetric()[0].GetHistogram()
		}
	}
	require.NotNil(t, histogram)
	assert.Equal(t, uint64(1), histogram.GetSampleCount())
}

func TestNilApprovalMetricsIsSafe(t *testing.T) {
	var m *ApprovalMetrics
	m.ApprovalSucceeded(1)
	m.ApprovalFailed("x")
	m.CleanupFailed()
	m.TokenRevokeFailed()
	m.Rejection(OutcomeFailure)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m, err := newHTTPMetrics(registry, Config{ServiceName: "ndpcatalog", Environment: "test"})
	require.NoError(t, err)

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("/health", http.MethodGet, "200")))
}
