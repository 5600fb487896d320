package actions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var actionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_enforcement_actions",
	Help: "Number of enforcement actions executed, by action and result",
}, []string{"action", "result"})

var webhookCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_webhook_alerts",
	Help: "Number of webhook alerts sent, by result",
}, []string{"result"})
