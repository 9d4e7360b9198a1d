package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the NEO risk service.
type Metrics struct {
	// Feed client metrics.
	FeedRequests        *prometheus.CounterVec // labels: outcome={success,error}
	FeedRequestDuration prometheus.Histogram

	// On-demand listing.
	AsteroidsServed *prometheus.CounterVec // labels: source={live,fallback}

	// Scheduled scan.
	ScanCycles        *prometheus.CounterVec // labels: outcome={skipped,no_hazard,alerted}
	HazardEvents      prometheus.Counter
	AlertWrites       *prometheus.CounterVec // labels: outcome={success,error,no_owner}
	ScannerRunning    prometheus.Gauge
	LastScanTimestamp prometheus.Gauge

	// Broadcast bus.
	BusSubscribers prometheus.Gauge
	BusPublished   *prometheus.CounterVec // labels: type
	BusDropped     prometheus.Counter

	// Kafka relay.
	MessagesProduced prometheus.Counter
	ProduceErrors    prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neo_risk",
			Name:      "feed_requests_total",
			Help:      "NeoWs feed requests by outcome.",
		}, []string{"outcome"}),
		FeedRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "neo_risk",
			Name:      "feed_request_duration_seconds",
			Help:      "NeoWs feed request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		AsteroidsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neo_risk",
			Name:      "asteroids_served_total",
			Help:      "Scored asteroid records returned by the listing, by data source.",
		}, []string{"source"}),
		ScanCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neo_risk",
			Name:      "scan_cycles_total",
			Help:      "Daily hazard scan cycles by outcome.",
		}, []string{"outcome"}),
		HazardEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neo_risk",
			Name:      "hazard_events_total",
			Help:      "Hazard events published to connected clients.",
		}),
		AlertWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neo_risk",
			Name:      "alert_writes_total",
			Help:      "Scan-created alert writes by outcome.",
		}, []string{"outcome"}),
		ScannerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "neo_risk",
			Name:      "scanner_running",
			Help:      "1 when the scan scheduler is active, 0 when shut down.",
		}),
		LastScanTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "neo_risk",
			Name:      "last_scan_timestamp_seconds",
			Help:      "Unix time of the last completed scan cycle.",
		}),
		BusSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "neo_risk",
			Name:      "bus_subscribers",
			Help:      "Currently connected broadcast subscribers.",
		}),
		BusPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neo_risk",
			Name:      "bus_published_total",
			Help:      "Envelopes published on the broadcast bus by type.",
		}, []string{"type"}),
		BusDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neo_risk",
			Name:      "bus_dropped_total",
			Help:      "Deliveries dropped because a subscriber buffer was full.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neo_risk",
			Name:      "kafka_messages_produced_total",
			Help:      "Hazard events mirrored to Kafka.",
		}),
		ProduceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neo_risk",
			Name:      "kafka_produce_errors_total",
			Help:      "Failed hazard event writes to Kafka.",
		}),
	}

	prometheus.MustRegister(
		m.FeedRequests,
		m.FeedRequestDuration,
		m.AsteroidsServed,
		m.ScanCycles,
		m.HazardEvents,
		m.AlertWrites,
		m.ScannerRunning,
		m.LastScanTimestamp,
		m.BusSubscribers,
		m.BusPublished,
		m.BusDropped,
		m.MessagesProduced,
		m.ProduceErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FeedRequests:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "neo_risk", Name: "feed_requests_total"}, []string{"outcome"}),
		FeedRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "neo_risk", Name: "feed_request_duration_seconds"}),
		AsteroidsServed:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "neo_risk", Name: "asteroids_served_total"}, []string{"source"}),
		ScanCycles:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "neo_risk", Name: "scan_cycles_total"}, []string{"outcome"}),
		HazardEvents:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "neo_risk", Name: "hazard_events_total"}),
		AlertWrites:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "neo_risk", Name: "alert_writes_total"}, []string{"outcome"}),
		ScannerRunning:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "neo_risk", Name: "scanner_running"}),
		LastScanTimestamp:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "neo_risk", Name: "last_scan_timestamp_seconds"}),
		BusSubscribers:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "neo_risk", Name: "bus_subscribers"}),
		BusPublished:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "neo_risk", Name: "bus_published_total"}, []string{"type"}),
		BusDropped:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "neo_risk", Name: "bus_dropped_total"}),
		MessagesProduced:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "neo_risk", Name: "kafka_messages_produced_total"}),
		ProduceErrors:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "neo_risk", Name: "kafka_produce_errors_total"}),
	}
}
