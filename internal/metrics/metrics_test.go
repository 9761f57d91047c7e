package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIngestFinished(t *testing.T) {
	before := testutil.ToFloat64(ingestBatches.WithLabelValues("success"))
	chunksBefore := testutil.ToFloat64(ingestChunks)
	IngestFinished("success", 7, 20*time.Millisecond)
	IngestFinished("extraction", 0, time.Millisecond)
	if got := testutil.ToFloat64(ingestBatches.WithLabelValues("success")); got != before+1 {
		t.Errorf("success batches = %f, want %f", got, before+1)
	}
	if got := testutil.ToFloat64(ingestChunks); got != chunksBefore+7 {
		t.Errorf("chunks = %f, want %f", got, chunksBefore+7)
	}
}

func TestIndexLoadedSetsGauge(t *testing.T) {
	IndexLoaded("loaded", 42)
	if got := testutil.ToFloat64(indexChunks); got != 42 {
		t.Errorf("index chunks gauge = %f", got)
	}
}

func TestSessionsChanged(t *testing.T) {
	before := testutil.ToFloat64(sessionEvictions)
	SessionsChanged(10, 2)
	if got := testutil.ToFloat64(sessionsTracked); got != 10 {
		t.Errorf("sessions = %f", got)
	}
	if got := testutil.ToFloat64(sessionEvictions); got != before+2 {
		t.Errorf("evictions = %f", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	Retrieved("success", time.Millisecond)
	Answered("success")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"tutor_retrievals_total", "tutor_answers_total", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestGenerated(t *testing.T) {
	before := testutil.ToFloat64(generations.WithLabelValues("commit_message", "success"))
	Generated("commit_message", "success")
	Generated("test", "error")
	if got := testutil.ToFloat64(generations.WithLabelValues("commit_message", "success")); got != before+1 {
		t.Errorf("commit message generations = %f, want %f", got, before+1)
	}
}
