package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pendingAuthRequests = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "signin_store_pending_auth_requests",
	Help: "Number of OAuth auth requests held in memory (including expired entries not yet swept)",
})

var storedSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "signin_store_sessions",
	Help: "Number of OAuth sessions held in memory",
})
