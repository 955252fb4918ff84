package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mescon/arrfinalize/internal/domain"
	"github.com/mescon/arrfinalize/internal/eventbus"
	"github.com/mescon/arrfinalize/internal/logger"
)

// MetricsService turns hook events into Prometheus metrics. The hook is a
// short-lived process, so metrics are written to a node-exporter textfile at
// exit instead of being served.
type MetricsService struct {
	registry *prometheus.Registry
	log      logger.Sink

	// Counters
	runsTotal        *prometheus.CounterVec
	rescansTotal     *prometheus.CounterVec
	sidecarsTotal    *prometheus.CounterVec
	renamesTotal     *prometheus.CounterVec
	processingTotal  *prometheus.CounterVec
	quarantinesTotal *prometheus.CounterVec

	// Gauges
	lastRunTimestamp prometheus.Gauge
	lastRunExitCode  prometheus.Gauge

	// Histograms
	runDuration *prometheus.HistogramVec
}

// NewMetricsService creates the metrics on a private registry.
func NewMetricsService(log logger.Sink) *MetricsService {
	m := &MetricsService{
		registry: prometheus.NewRegistry(),
		log:      log,

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arrfinalize_runs_total",
				Help: "Total number of hook runs by outcome",
			},
			[]string{"outcome"},
		),

		rescansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arrfinalize_rescans_total",
				Help: "Total number of RescanMovie commands by result",
			},
			[]string{"result"}, // queued, completed, timed_out
		),

		sidecarsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arrfinalize_sidecars_total",
				Help: "Total number of subtitle sidecars handled by action",
			},
			[]string{"action"}, // backed_up, restored, discarded
		),

		renamesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arrfinalize_rename_commands_total",
				Help: "Total number of RenameMovie commands by outcome",
			},
			[]string{"outcome"}, // triggered, failed
		),

		processingTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arrfinalize_processing_total",
				Help: "Total number of local processing runs by outcome",
			},
			[]string{"outcome"}, // completed, failed
		),

		quarantinesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arrfinalize_quarantines_total",
				Help: "Total number of rename-aside attempts by outcome",
			},
			[]string{"outcome"}, // moved, failed
		),

		lastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "arrfinalize_last_run_timestamp_seconds",
				Help: "Unix time the last hook run finished",
			},
		),

		lastRunExitCode: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "arrfinalize_last_run_exit_code",
				Help: "Exit code of the last hook run",
			},
		),

		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arrfinalize_run_duration_seconds",
				Help:    "Duration of hook runs in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2.3h
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		m.runsTotal,
		m.rescansTotal,
		m.sidecarsTotal,
		m.renamesTotal,
		m.processingTotal,
		m.quarantinesTotal,
		m.lastRunTimestamp,
		m.lastRunExitCode,
		m.runDuration,
	)

	return m
}

// Start subscribes to the events the metrics track.
func (m *MetricsService) Start(bus eventbus.Publisher) {
	bus.Subscribe(domain.RescanQueued, m.counter(m.rescansTotal, "queued"))
	bus.Subscribe(domain.RescanCompleted, m.counter(m.rescansTotal, "completed"))
	bus.Subscribe(domain.RescanTimedOut, m.counter(m.rescansTotal, "timed_out"))
	bus.Subscribe(domain.SidecarsBackedUp, m.handleSidecarsBackedUp)
	bus.Subscribe(domain.SidecarRestored, m.counter(m.sidecarsTotal, "restored"))
	bus.Subscribe(domain.SidecarDiscarded, m.counter(m.sidecarsTotal, "discarded"))
	bus.Subscribe(domain.RenameTriggered, m.counter(m.renamesTotal, "triggered"))
	bus.Subscribe(domain.RenameFailed, m.counter(m.renamesTotal, "failed"))
	bus.Subscribe(domain.ProcessingCompleted, m.counter(m.processingTotal, "completed"))
	bus.Subscribe(domain.ProcessingFailed, m.counter(m.processingTotal, "failed"))
	bus.Subscribe(domain.FileQuarantined, m.counter(m.quarantinesTotal, "moved"))
	bus.Subscribe(domain.QuarantineFailed, m.counter(m.quarantinesTotal, "failed"))
	bus.Subscribe(domain.RunCompleted, m.handleRunCompleted)

	m.log.Debugf("Metrics service started")
}

// Gatherer exposes the private registry.
func (m *MetricsService) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes every metric in the text exposition format to path,
// atomically, for node-exporter's textfile collector.
func (m *MetricsService) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// Event handlers

func (m *MetricsService) counter(vec *prometheus.CounterVec, label string) func(domain.Event) {
	return func(domain.Event) {
		vec.WithLabelValues(label).Inc()
	}
}

func (m *MetricsService) handleSidecarsBackedUp(event domain.Event) {
	count := event.GetInt64Or("count", 0)
	m.sidecarsTotal.WithLabelValues("backed_up").Add(float64(count))
}

func (m *MetricsService) handleRunCompleted(event domain.Event) {
	data, ok := event.ParseRunCompletedEventData()
	if !ok {
		m.log.Warnf("RunCompleted event %d without outcome", event.ID)
		return
	}
	m.runsTotal.WithLabelValues(data.Outcome).Inc()
	m.runDuration.WithLabelValues(data.Outcome).Observe(data.DurationSeconds)
	m.lastRunExitCode.Set(float64(data.ExitCode))
	m.lastRunTimestamp.Set(float64(event.CreatedAt.Unix()))
}
