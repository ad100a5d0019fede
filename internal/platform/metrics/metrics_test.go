package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_RecordsOutcomes(t *testing.T) {
	t.Parallel()

	r := NewRecorder(WithRegistry(prometheus.NewRegistry()))

	r.SubmissionStarted()
	r.SubmissionStarted()
	assert.InDelta(t, 2, testutil.ToFloat64(r.inFlight), 0.001)

	r.SubmissionFinished("success", 30*time.Second)
	r.SubmissionFinished("timeout", 2*time.Minute)

	assert.InDelta(t, 0, testutil.ToFloat64(r.inFlight), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(r.submissions.WithLabelValues("success")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(r.submissions.WithLabelValues("timeout")), 0.001)
	assert.Equal(t, 2, testutil.CollectAndCount(r.duration))
}

func TestRecorder_Handler(t *testing.T) {
	t.Parallel()

	r := NewRecorder(WithNamespace("deck_test"))
	r.SubmissionStarted()
	r.SubmissionFinished("connection", time.Second)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, out, `deck_test_submissions_total{outcome="connection"} 1`)
	assert.Contains(t, out, "deck_test_submission_duration_seconds_bucket")
	assert.Contains(t, out, "deck_test_submissions_in_flight 0")
	assert.True(t, strings.Contains(out, "go_goroutines"), "default registry includes runtime metrics")
}
