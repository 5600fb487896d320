package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var jobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_scheduled_job_runs",
	Help: "Number of scheduled job runs, by job name",
}, []string{"name"})
