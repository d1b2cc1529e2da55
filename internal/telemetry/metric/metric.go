package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported by the server process. A nil
// *Metrics is valid everywhere one is accepted; recording is skipped.
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	CommandsTotal     *prometheus.CounterVec
	KeysExpiredTotal  prometheus.Counter
	ReaperWakeups     prometheus.Counter
	StoreKeys         prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the walrus metric set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "walrus_connections_active",
			Help: "Number of currently open client connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walrus_connections_total",
			Help: "Total number of accepted client connections.",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walrus_commands_total",
			Help: "Total number of commands executed, by command name.",
		}, []string{"command"}),
		KeysExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walrus_keys_expired_total",
			Help: "Total number of keys purged by the expiration reaper.",
		}),
		ReaperWakeups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walrus_reaper_wakeups_total",
			Help: "Total number of expiration reaper wake-ups.",
		}),
		StoreKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "walrus_store_keys",
			Help: "Number of keys currently held in the store.",
		}),
		registry: reg,
	}

	reg.MustRegister(
		m.ConnectionsActive,
		m.ConnectionsTotal,
		m.CommandsTotal,
		m.KeysExpiredTotal,
		m.ReaperWakeups,
		m.StoreKeys,
	)

	return m
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
