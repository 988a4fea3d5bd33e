package deploy

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce      sync.Once
	startedTotal     *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		startedTotal = registerCounter(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "deploy",
			Name:      "started_total",
			Help:      "Simulated deployments started, by environment.",
		}, []string{"environment"}))
		transitionsTotal = registerCounter(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "deploy",
			Name:      "transitions_total",
			Help:      "Deployment status transitions applied by the pipeline.",
		}, []string{"environment", "status"}))
	})
}

func registerCounter(c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func deploymentsStarted(environment string) {
	initMetrics()
	startedTotal.WithLabelValues(environment).Inc()
}

func transitionObserved(environment, status string) {
	initMetrics()
	transitionsTotal.WithLabelValues(environment, status).Inc()
}
