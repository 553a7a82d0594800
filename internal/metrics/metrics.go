package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	processStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sessiond",
			Subsystem: "process",
			Name:      "starts_total",
			Help:      "Number of successful managed process starts.",
		}, []string{"name"},
	)
	processStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sessiond",
			Subsystem: "process",
			Name:      "stops_total",
			Help:      "Number of stop commands issued to managed processes.",
		}, []string{"name"},
	)
	readinessChecks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sessiond",
			Subsystem: "readiness",
			Name:      "checks_total",
			Help:      "Number of display liveness checks issued by the poller.",
		},
	)
	readinessState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sessiond",
			Subsystem: "readiness",
			Name:      "state",
			Help:      "Current readiness state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
	supervisorPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sessiond",
			Subsystem: "supervisor",
			Name:      "phase",
			Help:      "Current supervisor phase (1 = active phase, 0 = inactive).",
		}, []string{"phase"},
	)
	workerExits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sessiond",
			Subsystem: "worker",
			Name:      "exits_total",
			Help:      "Number of times the foreground worker has returned.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{processStarts, processStops, readinessChecks, readinessState, supervisorPhase, workerExits}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncStart(name string) {
	if regOK.Load() {
		processStarts.WithLabelValues(name).Inc()
	}
}

func IncStop(name string) {
	if regOK.Load() {
		processStops.WithLabelValues(name).Inc()
	}
}

func IncReadinessCheck() {
	if regOK.Load() {
		readinessChecks.Inc()
	}
}

func SetReadinessState(state string, active bool) {
	if regOK.Load() {
		var v float64
		if active {
			v = 1
		}
		readinessState.WithLabelValues(state).Set(v)
	}
}

func SetPhase(phase string, active bool) {
	if regOK.Load() {
		var v float64
		if active {
			v = 1
		}
		supervisorPhase.WithLabelValues(phase).Set(v)
	}
}

func IncWorkerExit() {
	if regOK.Load() {
		workerExits.Inc()
	}
}
