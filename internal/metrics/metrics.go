package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-forecast-aggregation/internal/weather"
)

// Metrics implements weather.Recorder on a dedicated Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	feedFetches   *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	dailyBuckets  prometheus.Histogram
	hourlyEntries prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		feedFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_feed_fetch_total",
				Help: "Feed fetches by provider and result.",
			},
			[]string{"provider", "result"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_refresh_total",
				Help: "Report refreshes by result.",
			},
			[]string{"result"},
		),
		dailyBuckets: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecast_daily_buckets",
			Help:    "Calendar days in each refreshed daily view.",
			Buckets: prometheus.LinearBuckets(1, 1, weather.MaxDays),
		}),
		hourlyEntries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecast_hourly_entries",
			Help:    "Entries in each refreshed hourly view.",
			Buckets: prometheus.LinearBuckets(1, 1, weather.HourlySlots),
		}),
	}
	m.registry.MustRegister(m.feedFetches, m.refreshes, m.dailyBuckets, m.hourlyEntries)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) FeedFetched(provider string, err error) {
	m.feedFetches.WithLabelValues(provider, result(err)).Inc()
}

func (m *Metrics) Refreshed(report weather.Report, err error) {
	m.refreshes.WithLabelValues(result(err)).Inc()
	if err != nil {
		return
	}
	m.dailyBuckets.Observe(float64(len(report.Daily)))
	m.hourlyEntries.Observe(float64(len(report.Hourly)))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
