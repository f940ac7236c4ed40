package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "search_tool_calls_total",
			Help:      "Course search tool calls by outcome",
		},
		[]string{"outcome"}, // "success", "empty", "unresolved", "error"
	)

	toolSearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tutor",
			Name:      "search_tool_duration_seconds",
			Help:      "Duration of course content searches issued by the search tool",
			Buckets:   prometheus.DefBuckets,
		},
	)

	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "llm_calls_total",
			Help:      "Total LLM API calls",
		},
		[]string{"provider", "model", "status"},
	)

	llmDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tutor",
			Name:      "llm_duration_seconds",
			Help:      "Duration of LLM API calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
		[]string{"provider", "model"},
	)

	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "tool_calls_total",
			Help:      "Tool dispatches by tool and status",
		},
		[]string{"tool", "status"},
	)

	roundsPerQuery = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tutor",
			Name:      "rounds_per_query",
			Help:      "Reasoning rounds used per query",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		},
	)

	terminationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "query_terminations_total",
			Help:      "Query flows by termination reason",
		},
		[]string{"reason"},
	)

	queriesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tutor",
			Name:      "queries_active",
			Help:      "Number of queries currently being answered",
		},
	)
)
