package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var publishTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tutor",
		Name:      "query_events_published_total",
		Help:      "Answered-query events written to Kafka by status",
	},
	[]string{"status"},
)
