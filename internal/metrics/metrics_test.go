package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	// None of these may panic.
	m.WishCreated()
	m.QuotaRejected()
	m.ViewResult("shown")
	m.SoftDeleted("views")
	m.Reclaimed(3)
	m.ReclaimError("media")
	m.ObserveSweep(0.5)
}

func TestCounters(t *testing.T) {
	m := New()

	m.WishCreated()
	m.WishCreated()
	m.ViewResult("shown")
	m.ViewResult("gone")
	m.ViewResult("gone")
	m.SoftDeleted("views")
	m.Reclaimed(4)

	if got := testutil.ToFloat64(m.created); got != 2 {
		t.Errorf("created = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.views.WithLabelValues("gone")); got != 2 {
		t.Errorf("views{gone} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.softDeleted.WithLabelValues("views")); got != 1 {
		t.Errorf("soft_deleted{views} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.reclaimed); got != 4 {
		t.Errorf("reclaimed = %v, want 4", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.WishCreated()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "wishaday_wishes_created_total 1") {
		t.Errorf("metrics output missing created counter:\n%s", body)
	}
}
