package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"bus_tracker/internal/tracking"
)

var _ tracking.Observer = (*Collector)(nil)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.UpdateApplied(tracking.ResolutionNext, 3*time.Millisecond)
	c.UpdateApplied(tracking.ResolutionUnmatched, time.Millisecond)
	c.UpdateApplied(tracking.ResolutionNext, time.Millisecond)
	c.UpdateRejected("conflict")
	c.CapacityExceeded()
	c.HistoryAppendFailed()
	c.HistoryAppendFailed()
	c.ClientConnected()
	c.ClientConnected()
	c.ClientDisconnected()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.UpdatesApplied.WithLabelValues("next")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.UpdatesApplied.WithLabelValues("unmatched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.UpdatesRejected.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CapacityWarnings))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.HistoryFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.WSClients))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.HistoryAppendFailed()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "bus_tracker_history_append_failures_total 1"))
}
