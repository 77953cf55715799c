// Package metrics exposes Prometheus collectors for the ingestion pipeline
// and the HTTP layer.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImportRows counts processed rows by outcome ("success", "error").
	ImportRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awardshelf_import_rows_total",
			Help: "Total number of ingestion rows processed, by outcome",
		},
		[]string{"outcome"},
	)

	// ImportBatches counts batches by result ("committed", "rolled_back", "dry_run").
	ImportBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awardshelf_import_batches_total",
			Help: "Total number of ingestion batches, by result",
		},
		[]string{"result"},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "awardshelf_import_batch_duration_seconds",
			Help:    "Duration of ingestion batches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// EntitiesCreated counts records created by ingestion, by entity kind.
	EntitiesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awardshelf_entities_created_total",
			Help: "Total number of catalog records created by ingestion",
		},
		[]string{"entity"},
	)

	// ResolverOutcomes counts resolver decisions by entity and strategy.
	// Strategy is one of "exact", "folded", "transliterated", "ambiguous" or "miss".
	ResolverOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awardshelf_resolver_outcomes_total",
			Help: "Total number of fuzzy resolver outcomes, by entity and strategy",
		},
		[]string{"entity", "strategy"},
	)

	ValidationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awardshelf_validation_runs_total",
			Help: "Total number of file validations, by verdict",
		},
		[]string{"valid"},
	)

	ActiveImports = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "awardshelf_active_imports",
			Help: "Number of imports currently running",
		},
	)

	PlacementCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "awardshelf_placement_cache_hits_total",
			Help: "Total number of placement read cache hits",
		},
	)

	PlacementCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "awardshelf_placement_cache_misses_total",
			Help: "Total number of placement read cache misses",
		},
	)

	AuditEntriesPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "awardshelf_audit_entries_purged_total",
			Help: "Total number of audit log entries removed by the purge job",
		},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awardshelf_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "awardshelf_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordRows adds a batch's row outcomes.
func RecordRows(success, errors int) {
	ImportRows.WithLabelValues("success").Add(float64(success))
	ImportRows.WithLabelValues("error").Add(float64(errors))
}

// RecordBatch records one finished batch.
func RecordBatch(result string, duration time.Duration) {
	ImportBatches.WithLabelValues(result).Inc()
	BatchDuration.Observe(duration.Seconds())
}

// RecordCreated adds n to the created counter for an entity kind.
func RecordCreated(entity string, n int) {
	if n > 0 {
		EntitiesCreated.WithLabelValues(entity).Add(float64(n))
	}
}

// RecordResolution records one resolver outcome.
func RecordResolution(entity, strategy string) {
	ResolverOutcomes.WithLabelValues(entity, strategy).Inc()
}

// RecordValidation records a validation verdict.
func RecordValidation(valid bool) {
	ValidationRuns.WithLabelValues(strconv.FormatBool(valid)).Inc()
}

// TrackActiveImport adjusts the active import gauge.
func TrackActiveImport(inc bool) {
	if inc {
		ActiveImports.Inc()
	} else {
		ActiveImports.Dec()
	}
}

// RecordAPIRequest records one HTTP request against its route pattern.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
