package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ClassifyRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "abusewatch_classify_runs_total",
		Help: "Total classification runs",
	})
	ClassifyErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "abusewatch_classify_errors_total",
		Help: "Total failed classification runs",
	})
	ItemsClassified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "abusewatch_items_classified_total",
		Help: "Total items classified, by item type",
	}, []string{"item_type"})
	ItemsFlagged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "abusewatch_items_flagged_total",
		Help: "Total items scored at or above the hate threshold",
	})
	ScorerBatchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "abusewatch_scorer_batch_errors_total",
		Help: "Total scorer batches that failed and were skipped",
	})
	ClassifyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "abusewatch_classify_duration_seconds",
		Help:    "Classification run duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	AggregateRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "abusewatch_aggregate_runs_total",
		Help: "Total mention aggregation runs",
	})
	AggregateErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "abusewatch_aggregate_errors_total",
		Help: "Total failed aggregation runs",
	})
	AggregateDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "abusewatch_aggregate_duration_seconds",
		Help:    "Aggregation run duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	ItemsImported = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "abusewatch_items_imported_total",
		Help: "Total items imported, by item type",
	}, []string{"item_type"})
)

func init() {
	prometheus.MustRegister(
		ClassifyRuns, ClassifyErrors, ItemsClassified, ItemsFlagged,
		ScorerBatchErrors, ClassifyDuration,
		AggregateRuns, AggregateErrors, AggregateDuration,
		ItemsImported,
	)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9091").
// Empty addr falls back to ABUSEWATCH_METRICS_ADDR; still empty means
// metrics exposure stays off.
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("ABUSEWATCH_METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// ObserveClassifyDuration records a classification run duration.
func ObserveClassifyDuration(start time.Time) {
	ClassifyDuration.Observe(time.Since(start).Seconds())
}

// ObserveAggregateDuration records an aggregation run duration.
func ObserveAggregateDuration(start time.Time) {
	AggregateDuration.Observe(time.Since(start).Seconds())
}
