package secondcheck

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var checksRun = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_second_checks",
	Help: "Number of second checks run, by whether the user was enforceable",
}, []string{"enforceable"})
