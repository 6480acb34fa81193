package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecordsEvents(t *testing.T) {
	p := NewPrometheus("")

	p.StateChanged("kasboek", "Idle", "Starting")
	p.StateChanged("kasboek", "Starting", "Running")
	p.LaunchFinished("kasboek", "ok", 1500*time.Millisecond)
	p.ProcessStopped("kasboek", "graceful")
	p.ProcessStopped("kasboek", "forced")
	p.StopFailed("kasboek")

	assert.Equal(t, 1.0, testutil.ToFloat64(p.transitions.WithLabelValues("kasboek", "Idle", "Starting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.launches.WithLabelValues("kasboek", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.stopped.WithLabelValues("kasboek", "forced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.stopFailures.WithLabelValues("kasboek")))
}

func TestHandlerServesMetrics(t *testing.T) {
	p := NewPrometheus("debutade")
	p.LaunchFinished("bontoevoegen", "crashed_before_ready", time.Second)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `debutade_app_launches_total{app="bontoevoegen",result="crashed_before_ready"} 1`))
	assert.Contains(t, body, "debutade_app_launch_duration_seconds_bucket")
}

func TestNopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.StateChanged("a", "Idle", "Starting")
	r.LaunchFinished("a", "ok", time.Second)
	r.ProcessStopped("a", "graceful")
	r.StopFailed("a")
}
