package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sessionsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tutor",
		Name:      "sessions_active",
		Help:      "Sessions held by the in-memory store",
	},
)
