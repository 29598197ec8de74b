package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DiagnosesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixpal_diagnoses_total",
			Help: "Total number of diagnosis requests processed",
		},
		[]string{"status"},
	)

	DiagnosisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fixpal_diagnosis_duration_seconds",
			Help:    "Diagnosis pipeline duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"status"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fixpal_confidence_score",
			Help:    "Confidence of resolved diagnoses",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	UnresolvedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fixpal_unresolved_total",
			Help: "Diagnoses that fell below the confidence threshold",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixpal_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixpal_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	CorpusSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fixpal_corpus_entries",
			Help: "Entries in the active knowledge index snapshot",
		},
	)

	ManualsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fixpal_manuals_ingested_total",
			Help: "Total repair manuals ingested",
		},
	)
)

func Init() {
	prometheus.MustRegister(DiagnosesTotal)
	prometheus.MustRegister(DiagnosisDuration)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(UnresolvedTotal)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(CorpusSize)
	prometheus.MustRegister(ManualsIngested)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
