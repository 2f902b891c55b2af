// Package metrics define las métricas Prometheus del kernel. Paquete
// standalone para evitar ciclos de import entre command y HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventlog_events_appended_total",
		Help: "Eventos agregados al log",
	})

	VersionConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventlog_version_conflicts_total",
		Help: "Saves rechazados por conflicto optimista de versión",
	})

	UniqueConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unique_value_conflicts_total",
		Help: "Saves abortados por la capa de consistencia (valores únicos)",
	})

	CredentialFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credential_failures_total",
		Help: "Chequeos de credenciales rechazados, por tipo y motivo",
	}, []string{"kind", "reason"})

	RequestLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "http_request_latency_ms",
		Help:    "Latencia de requests HTTP en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

// Register registers the kernel metrics on the given registry (or default if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		EventsAppended,
		VersionConflicts,
		UniqueConflicts,
		CredentialFailures,
		RequestLatency,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
