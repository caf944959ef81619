package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harentsoaR/consultation-api/internal/metrics"
)

func TestMetricsServerExposesDeliveryCounters(t *testing.T) {
	metrics.Notifications.WithLabelValues("status_change", "delivered").Inc()

	srv := metricsServer(":0")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `portal_notifications_total{kind="status_change",result="delivered"}`) {
		t.Fatalf("delivery counter not exported")
	}
}
