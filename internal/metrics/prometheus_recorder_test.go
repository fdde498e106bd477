package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("styles", 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncStageResult("styles", ResultSuccess)
	pr.IncBuildOutcome("success")
	pr.IncImageResult(ImageCompressed, 3)
	pr.IncImageResult(ImageFailed, 0)
	pr.AddImageBytes(1000, 600)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)

	assert.InDelta(t, 1, testutil.ToFloat64(pr.stageResults.WithLabelValues("styles", "success")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(pr.imageResults.WithLabelValues("compressed")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(pr.imageResults.WithLabelValues("failed")), 0)
	assert.InDelta(t, 600, testutil.ToFloat64(pr.imageBytes.WithLabelValues("after")), 0)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.ObserveStageDuration("scripts", time.Second)
		pr.IncBuildOutcome("failed")
		pr.AddImageBytes(1, 1)
	})
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncBuildOutcome("warning")

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `assetbuilder_build_outcomes_total{outcome="warning"} 1`)
}
