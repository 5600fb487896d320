package debounce

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var enqueued = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_debounce_enqueued",
	Help: "Number of content events queued for evaluation",
})

var processed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_debounce_processed",
	Help: "Number of debounce queue entries processed",
})
