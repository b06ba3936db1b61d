package auth

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess       = "success"
	outcomeFailed        = "failed"
	outcomeAborted       = "aborted"
	outcomeProtocolError = "protocol_error"
)

var (
	metricsOnce    sync.Once
	flowOutcomes   *prometheus.CounterVec
	flowTransition *prometheus.CounterVec
)

func ensureFlowMetrics() {
	metricsOnce.Do(func() {
		flowOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "auth",
			Name:      "flows_total",
			Help:      "Card authentication attempts by terminal outcome",
		}, []string{"outcome"})
		flowTransition = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "auth",
			Name:      "transitions_total",
			Help:      "State transitions taken by the authentication engine",
		}, []string{"state"})
	})
}

func recordOutcome(outcome string) {
	ensureFlowMetrics()
	flowOutcomes.WithLabelValues(outcome).Inc()
}

func recordTransition(state State) {
	ensureFlowMetrics()
	flowTransition.WithLabelValues(state.String()).Inc()
}
