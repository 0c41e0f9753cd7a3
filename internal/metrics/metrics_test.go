package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := New()
	r.ObserveAPICall("list", "ok", 120*time.Millisecond)
	r.ObserveAPICall("list", "ok", 80*time.Millisecond)
	r.ObserveAPICall("details", "transport", time.Second)
	r.SyncCycle("list", ResultFresh)
	r.SyncCycle("details", ResultDiscarded)
	r.ObserveQueueWait(350 * time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(r.apiCalls.WithLabelValues("list", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.apiCalls.WithLabelValues("details", "transport")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.syncCycles.WithLabelValues("details", ResultDiscarded)))
	require.Equal(t, 1, testutil.CollectAndCount(r.queueWait))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveAPICall("list", "ok", time.Second)
	r.SyncCycle("list", ResultError)
	r.ObserveQueueWait(time.Second)
	require.Nil(t, r.Registry())

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.SyncCycle("list", ResultFetched)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `parceldesk_sync_cycles_total{controller="list",result="fetched"} 1`)
}
