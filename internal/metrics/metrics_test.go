package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOp(t *testing.T) {
	m := New()
	m.ObserveOp("messages", "insert", "ok")
	m.ObserveOp("messages", "insert", "ok")
	m.ObserveOp("message_reactions", "insert", "conflict")

	if got := testutil.ToFloat64(m.ops.WithLabelValues("messages", "insert", "ok")); got != 2 {
		t.Errorf("ok inserts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ops.WithLabelValues("message_reactions", "insert", "conflict")); got != 1 {
		t.Errorf("conflicts = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOp("chats", "upsert", "ok")
	m.ObserveChange("chats", "insert")
	m.FeedDropped()
	m.SetSubscribers(3)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SetSubscribers(2)
	m.FeedDropped()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{"atitlan_feed_subscribers 2", "atitlan_feed_dropped_total 1"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
