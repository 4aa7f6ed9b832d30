package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/i474232898/weather-forecast-aggregation/internal/weather"
)

func TestRecorderCounts(t *testing.T) {
	m := New()

	m.FeedFetched("openweathermap", nil)
	m.FeedFetched("openweathermap", errors.New("boom"))
	m.FeedFetched("openmeteo", nil)
	m.Refreshed(weather.Report{Daily: make([]weather.DailyEntry, 5), Hourly: make([]weather.HourlyEntry, 8)}, nil)
	m.Refreshed(weather.Report{}, errors.New("no feed"))

	if got := testutil.ToFloat64(m.feedFetches.WithLabelValues("openweathermap", "ok")); got != 1 {
		t.Fatalf("expected 1 ok fetch, got %v", got)
	}
	if got := testutil.ToFloat64(m.feedFetches.WithLabelValues("openweathermap", "error")); got != 1 {
		t.Fatalf("expected 1 failed fetch, got %v", got)
	}
	if got := testutil.ToFloat64(m.refreshes.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed refresh, got %v", got)
	}
	if got := testutil.CollectAndCount(m.dailyBuckets); got != 1 {
		t.Fatalf("expected daily histogram to be collected, got %d", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.FeedFetched("weatherapi", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `forecast_feed_fetch_total{provider="weatherapi",result="ok"} 1`) {
		t.Fatalf("metric missing from exposition:\n%s", body)
	}
}
