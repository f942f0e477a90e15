package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	PagesFetched      prometheus.Counter
	FetchErrors       *prometheus.CounterVec
	ListingsExtracted prometheus.Counter
	ReconcileResults  *prometheus.CounterVec
	RunDuration       prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		PagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scraper_pages_fetched_total",
			Help: "The total number of pages fetched from the origin",
		}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_fetch_errors_total",
			Help: "The total number of fetch failures",
		}, []string{"reason"}), // e.g. 'timeout', 'short_body', 'navigate'
		ListingsExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scraper_listings_extracted_total",
			Help: "The total number of raw listings extracted",
		}),
		ReconcileResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_reconcile_results_total",
			Help: "Reconciliation outcomes per listing",
		}, []string{"result"}), // 'created', 'updated', 'unchanged', 'skipped'
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_run_duration_seconds",
			Help:    "Duration of complete crawl runs",
			Buckets: prometheus.ExponentialBuckets(10, 2, 8),
		}),
	}
}

func (m *Metrics) IncPagesFetched() {
	m.PagesFetched.Inc()
}

func (m *Metrics) IncFetchErrors(reason string) {
	m.FetchErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) AddListingsExtracted(n int) {
	m.ListingsExtracted.Add(float64(n))
}

func (m *Metrics) AddReconcile(result string, n int) {
	m.ReconcileResults.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) ObserveRunDuration(d time.Duration) {
	m.RunDuration.Observe(d.Seconds())
}
