package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quietwire_sessions_live",
		Help: "Number of sessions currently owned by the registry",
	})

	encryptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quietwire_encrypt_total",
		Help: "Total successful encrypt operations",
	})

	encryptFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quietwire_encrypt_failures_total",
		Help: "Total failed encrypt operations",
	})

	decryptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quietwire_decrypt_total",
		Help: "Total successful decrypt operations",
	})

	decryptFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quietwire_decrypt_failures_total",
		Help: "Total failed decrypt operations (bad tags, skip-bound hits)",
	})
)
