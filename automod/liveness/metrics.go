package liveness

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sweptAccounts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_liveness_swept_accounts",
	Help: "Number of accounts checked by the liveness sweep, by outcome",
}, []string{"outcome"})
