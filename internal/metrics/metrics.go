package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	GenerationsInFlight prometheus.Gauge

	PhotoRequestsTotal   *prometheus.CounterVec
	PhotoRequestDuration *prometheus.HistogramVec
	ImageBytesTotal      prometheus.Counter

	BusyRejectionsTotal prometheus.Counter
	HistoryWriteErrors  prometheus.Counter
}

// New registers on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagen_bot_requests_total",
				Help: "Total number of chat updates processed",
			},
			[]string{"type", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imagen_bot_request_duration_seconds",
				Help:    "Chat update handling duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"type"},
		),
		GenerationsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "imagen_bot_generations_in_flight",
				Help: "Number of image generations currently running",
			},
		),

		PhotoRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagen_bot_photo_requests_total",
				Help: "Total number of photo API round trips by outcome",
			},
			[]string{"outcome"},
		),
		PhotoRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imagen_bot_photo_request_duration_seconds",
				Help:    "Search plus image download duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		ImageBytesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "imagen_bot_image_bytes_total",
				Help: "Total bytes of downloaded images",
			},
		),

		BusyRejectionsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "imagen_bot_busy_rejections_total",
				Help: "Prompts rejected because the user already had one running",
			},
		),
		HistoryWriteErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "imagen_bot_history_write_errors_total",
				Help: "Generation history rows that failed to persist",
			},
		),
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) RecordRequest(reqType, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(reqType, status).Inc()
	m.RequestDuration.WithLabelValues(reqType).Observe(duration.Seconds())
}

func (m *Metrics) RecordPhotoRequest(outcome string, duration time.Duration, imageBytes int) {
	m.PhotoRequestsTotal.WithLabelValues(outcome).Inc()
	m.PhotoRequestDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if imageBytes > 0 {
		m.ImageBytesTotal.Add(float64(imageBytes))
	}
}

func (m *Metrics) RecordBusyRejection() {
	m.BusyRejectionsTotal.Inc()
}

func (m *Metrics) RecordHistoryWriteError() {
	m.HistoryWriteErrors.Inc()
}

// SetGenerationsInFlight publishes the number of users with a generation running.
func (m *Metrics) SetGenerationsInFlight(n int) {
	m.GenerationsInFlight.Set(float64(n))
}
