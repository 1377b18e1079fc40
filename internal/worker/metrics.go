package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailflow_delivery_attempts_total",
		Help: "Delivery attempts started by the worker.",
	})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailflow_delivery_outcomes_total",
		Help: "Delivery attempt outcomes by resulting status.",
	}, []string{"outcome"})

	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailflow_delivery_dropped_messages_total",
		Help: "Queue messages dropped because their delivery log was missing.",
	})
)
