package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "automod_evaluation_duration_sec",
	Help: "Total duration of user evaluations (excluding cache hits)",
})

var verdictCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_verdicts",
	Help: "Number of verdicts, by outcome",
}, []string{"outcome"})

var verdictCacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_verdict_cache_hits",
	Help: "Number of evaluations served from the verdict cache",
})

var exemptionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_exemptions",
	Help: "Number of over-threshold users exempted, by reason",
}, []string{"reason"})

var profileFetches = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_profile_fetches",
	Help: "Number of user profile reads (API calls)",
})
