package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics drží všechny Prometheus metriky serveru.
// Registry je vlastní (ne globální), aby si testy mohly vytvořit čistou instanci.
type Metrics struct {
	registry *prometheus.Registry

	// Ingest
	MessagesReceived  *prometheus.CounterVec
	MessagesProcessed *prometheus.CounterVec
	WriteDuration     *prometheus.HistogramVec
	BusConnected      prometheus.Gauge
	BusReconnects     prometheus.Counter

	// Broadcast
	Subscribers        prometheus.Gauge
	EventsPublished    *prometheus.CounterVec
	EventsDelivered    prometheus.Counter
	SubscribersDropped prometheus.Counter

	// Host (plní SystemSampler)
	HostCPUPercent    prometheus.Gauge
	HostMemUsedBytes  prometheus.Gauge
	HostMemTotalBytes prometheus.Gauge
	HostDiskUsedBytes prometheus.Gauge
	ProcessRSSBytes   prometheus.Gauge
}

// NewMetrics vytvoří a zaregistruje metriky do nové registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Subsystem: "ingest",
			Name:      "messages_received_total",
			Help:      "Zprávy přijaté z MQTT podle topicu",
		}, []string{"topic"}),

		MessagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Subsystem: "ingest",
			Name:      "messages_processed_total",
			Help:      "Zpracované zprávy podle topicu a výsledku",
		}, []string{"topic", "status"}),

		WriteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parking",
			Subsystem: "store",
			Name:      "write_duration_seconds",
			Help:      "Doba trvání zápisu do úložiště",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		BusConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parking",
			Subsystem: "bus",
			Name:      "connected",
			Help:      "1 pokud je MQTT spojení otevřené",
		}),

		BusReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Subsystem: "bus",
			Name:      "connection_lost_total",
			Help:      "Kolikrát se ztratilo spojení s MQTT brokerem",
		}),

		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parking",
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Aktuálně registrovaní odběratelé živého streamu",
		}),

		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Subsystem: "hub",
			Name:      "events_published_total",
			Help:      "Publikované události podle kategorie",
		}, []string{"category"}),

		EventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Subsystem: "hub",
			Name:      "events_enqueued_total",
			Help:      "Události vložené do front jednotlivých odběratelů",
		}),

		SubscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Subsystem: "hub",
			Name:      "subscribers_dropped_total",
			Help:      "Odběratelé odpojení kvůli plné frontě nebo chybě zápisu",
		}),

		HostCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parking", Subsystem: "host", Name: "cpu_percent",
			Help: "Vytížení CPU hostitele v procentech",
		}),
		HostMemUsedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parking", Subsystem: "host", Name: "memory_used_bytes",
			Help: "Použitá RAM hostitele (Total - Available)",
		}),
		HostMemTotalBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parking", Subsystem: "host", Name: "memory_total_bytes",
			Help: "Celková RAM hostitele",
		}),
		HostDiskUsedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parking", Subsystem: "host", Name: "disk_used_bytes",
			Help: "Obsazené místo na kořenovém oddílu",
		}),
		ProcessRSSBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parking", Subsystem: "process", Name: "rss_bytes",
			Help: "RSS paměť procesu serveru",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		m.MessagesReceived, m.MessagesProcessed, m.WriteDuration,
		m.BusConnected, m.BusReconnects,
		m.Subscribers, m.EventsPublished, m.EventsDelivered, m.SubscribersDropped,
		m.HostCPUPercent, m.HostMemUsedBytes, m.HostMemTotalBytes, m.HostDiskUsedBytes,
		m.ProcessRSSBytes,
	)
	return m
}

// Handler vrací HTTP handler pro /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
