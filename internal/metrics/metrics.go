// Package metrics exposes the engine's Prometheus instrumentation: tick
// duration, snapshot build duration, total bytes sent/received, and the
// ban/drop/rcon counters the admin HTTP mux serves at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "arenaserver",
		Name:      "tick_duration_seconds",
		Help:      "Wall-clock time spent processing one simulation tick.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	SnapshotBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "arenaserver",
		Name:      "snapshot_build_duration_seconds",
		Help:      "Wall-clock time spent building and delta-encoding one client's snapshot.",
		Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
	})

	ClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arenaserver",
		Name:      "clients_connected",
		Help:      "Number of non-EMPTY client slots.",
	})

	BytesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arenaserver",
		Name:      "bytes_sent_total",
		Help:      "Total bytes written to the UDP socket.",
	})

	BytesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arenaserver",
		Name:      "bytes_received_total",
		Help:      "Total bytes read from the UDP socket.",
	})

	// BansTotal is labeled by reason with bounded cardinality: only the
	// small fixed set of reasons the engine itself produces is ever
	// passed, never free-form client-supplied text.
	BansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arenaserver",
		Name:      "bans_total",
		Help:      "Bans inserted, labeled by reason.",
	}, []string{"reason"})

	DropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arenaserver",
		Name:      "drops_total",
		Help:      "Clients dropped, labeled by reason.",
	}, []string{"reason"})

	RconAuthFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arenaserver",
		Name:      "rcon_auth_failures_total",
		Help:      "Failed NETMSG_RCON_AUTH attempts across all clients.",
	})

	IDPoolExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arenaserver",
		Name:      "id_pool_exhausted_total",
		Help:      "NewID calls that failed because the snapshot id pool was exhausted.",
	})
)
