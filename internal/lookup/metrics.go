package lookup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lookupRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "signin_lookup_requests_total",
	Help: "Number of unauthenticated upstream lookups (DID documents, public profiles), by result",
}, []string{"kind", "result"})
