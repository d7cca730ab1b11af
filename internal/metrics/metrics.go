package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all pipeline metrics
type Metrics struct {
	// Frame processing counters
	FramesRead    atomic.Uint64
	FramesSkipped atomic.Uint64 // motion gate skips
	FramesDropped atomic.Uint64 // camera read failures

	// Detection counters
	DetectionsVelutina atomic.Uint64
	DetectionsCrabro   atomic.Uint64
	DetectErrors       atomic.Uint64
	ReadErrors         atomic.Uint64

	// Alert counters
	SMSSent       atomic.Uint64
	SMSFailed     atomic.Uint64
	SMSCostMilli  atomic.Uint64 // accumulated cost in thousandths
	AlertsGated   atomic.Uint64

	// Loop timing
	LoopLatencyMs atomic.Uint64
	CurrentFPS    atomic.Uint64

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	gauges := []struct {
		name string
		help string
		load func() float64
	}{
		{"vespai_frames_read_total", "Total frames read from the camera",
			func() float64 { return float64(m.FramesRead.Load()) }},
		{"vespai_frames_skipped_total", "Total frames skipped by the motion gate",
			func() float64 { return float64(m.FramesSkipped.Load()) }},
		{"vespai_frames_dropped_total", "Total camera reads that returned no frame",
			func() float64 { return float64(m.FramesDropped.Load()) }},
		{"vespai_detections_velutina_total", "Total Vespa velutina detections",
			func() float64 { return float64(m.DetectionsVelutina.Load()) }},
		{"vespai_detections_crabro_total", "Total Vespa crabro detections",
			func() float64 { return float64(m.DetectionsCrabro.Load()) }},
		{"vespai_detect_errors_total", "Total classifier errors",
			func() float64 { return float64(m.DetectErrors.Load()) }},
		{"vespai_read_errors_total", "Total camera read errors",
			func() float64 { return float64(m.ReadErrors.Load()) }},
		{"vespai_sms_sent_total", "Total SMS alerts dispatched",
			func() float64 { return float64(m.SMSSent.Load()) }},
		{"vespai_sms_failed_total", "Total SMS dispatch failures",
			func() float64 { return float64(m.SMSFailed.Load()) }},
		{"vespai_sms_cost_eur", "Accumulated SMS cost in EUR",
			func() float64 { return float64(m.SMSCostMilli.Load()) / 1000 }},
		{"vespai_alerts_gated_total", "Alerts suppressed by the rate gate",
			func() float64 { return float64(m.AlertsGated.Load()) }},
		{"vespai_loop_latency_ms", "Latest detection loop iteration latency in milliseconds",
			func() float64 { return float64(m.LoopLatencyMs.Load()) }},
		{"vespai_current_fps", "Current frames per second",
			func() float64 { return float64(m.CurrentFPS.Load()) }},
	}

	for _, g := range gauges {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			g.load,
		))
	}
}

// UpdateLoopLatency records the latest iteration latency
func (m *Metrics) UpdateLoopLatency(d time.Duration) {
	m.LoopLatencyMs.Store(uint64(d.Milliseconds()))
}

// AddSMSCost accumulates dispatch cost (EUR)
func (m *Metrics) AddSMSCost(cost float64) {
	m.SMSCostMilli.Add(uint64(cost * 1000))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
