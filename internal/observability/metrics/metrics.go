package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "edc_ingest"

// Pipeline counts the batch pipeline's work: validations by outcome, match
// decisions by tier, imported rows by table, and stage latency.
type Pipeline struct {
	BatchesValidated *prometheus.CounterVec
	FilesMatched     *prometheus.CounterVec
	RowsImported     *prometheus.CounterVec
	RowsSkipped      *prometheus.CounterVec
	TableLoadErrors  *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
}

func NewPipeline(reg prometheus.Registerer) *Pipeline {
	factory := promauto.With(reg)
	return &Pipeline{
		BatchesValidated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_validated_total",
			Help:      "Validation runs by outcome.",
		}, []string{"outcome"}),
		FilesMatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_matched_total",
			Help:      "Match decisions by confidence tier.",
		}, []string{"tier"}),
		RowsImported: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_imported_total",
			Help:      "Rows committed to the target store by table.",
		}, []string{"table"}),
		RowsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Rows dropped during coercion by table.",
		}, []string{"table"}),
		TableLoadErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_load_errors_total",
			Help:      "Table loads that rolled back, by table.",
		}, []string{"table"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
	}
}

func (p *Pipeline) ObserveStage(stage string, started time.Time) {
	p.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// HTTP instruments the API surface.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

func NewHTTP(reg prometheus.Registerer) *HTTP {
	factory := promauto.With(reg)
	return &HTTP{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Requests currently being served.",
		}),
	}
}

func (h *HTTP) Observe(route, method string, code int, started time.Time) {
	h.Requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	h.Duration.WithLabelValues(route).Observe(time.Since(started).Seconds())
}

// Handler serves the registry's metrics over HTTP.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
