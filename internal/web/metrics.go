package web

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var loginsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "signin_logins_started_total",
	Help: "Number of OAuth login attempts, by result",
}, []string{"result"})

var callbacksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "signin_callbacks_total",
	Help: "Number of OAuth callbacks processed, by result",
}, []string{"result"})

var profileFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "signin_profile_fallbacks_total",
	Help: "Number of best-effort profile lookups during sign-in which failed and fell back to defaults",
}, []string{"step"})

var postsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "signin_posts_total",
	Help: "Number of post creation attempts, by result",
}, []string{"result"})
