package knowledge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	embedCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "embed_calls_total",
			Help:      "Total embedding API calls made while ingesting courses",
		},
		[]string{"status"},
	)

	embedDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tutor",
			Name:      "embed_duration_seconds",
			Help:      "Duration of course embedding calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tutor",
			Name:      "search_duration_seconds",
			Help:      "Duration of content searches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"filtered"},
	)

	resolveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "resolver_cache_total",
			Help:      "Course name resolutions by cache outcome",
		},
		[]string{"outcome"},
	)

	ingestChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "ingest_chunks_total",
			Help:      "Total content chunks written to the index",
		},
	)

	ingestCoursesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "ingest_courses_total",
			Help:      "Course documents processed by ingest outcome",
		},
		[]string{"outcome"},
	)
)
