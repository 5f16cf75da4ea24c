package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"sshwatch/internal/detect"
	"sshwatch/internal/filter"
	"sshwatch/internal/ingest"
	"sshwatch/internal/metrics"
	"sshwatch/internal/parser"
	"sshwatch/internal/types"
)

// Sink receives every emitted event (history store, audit trail).
type Sink interface {
	Record(ctx context.Context, evt *parser.AuthEvent) error
}

// AlertSink receives brute-force alerts.
type AlertSink interface {
	LogAlert(alert *types.Alert) error
}

// Printer renders events and alerts for the operator.
type Printer interface {
	PrintEvent(evt *parser.AuthEvent) error
	PrintAlert(alert *types.Alert) error
}

// Options configures a Monitor. Parser and Printer are required.
type Options struct {
	Parser   parser.Parser
	Printer  Printer
	Filter   *filter.Filter
	Detector *detect.Engine // nil disables alerts
	Sinks    map[string]Sink
	Alerts   []AlertSink
	Log      *zap.SugaredLogger
}

// Monitor drives lines through classifier, filter, sinks, printer and
// detector, one line at a time.
type Monitor struct {
	parser   parser.Parser
	printer  Printer
	detector *detect.Engine
	sinks    map[string]Sink
	alerts   []AlertSink
	log      *zap.SugaredLogger

	filter atomic.Pointer[filter.Filter]
}

func New(opts Options) *Monitor {
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	m := &Monitor{
		parser:   opts.Parser,
		printer:  opts.Printer,
		detector: opts.Detector,
		sinks:    opts.Sinks,
		alerts:   opts.Alerts,
		log:      log,
	}
	m.filter.Store(opts.Filter)
	return m
}

// Run consumes lines until the channel closes or ctx is done.
func (m *Monitor) Run(ctx context.Context, lines <-chan ingest.LogLine) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			m.Handle(ctx, line)
		}
	}
}

// Handle processes a single line and returns the emitted event, or nil when
// the line did not match or was filtered out.
func (m *Monitor) Handle(ctx context.Context, line ingest.LogLine) *parser.AuthEvent {
	metrics.LinesRead.Inc()

	evt := m.parser.Parse(line.Content)
	if evt == nil {
		metrics.LinesUnmatched.Inc()
		return nil
	}

	ok, err := m.filter.Load().Match(evt, line.Content)
	if err != nil {
		m.log.Warnw("filter evaluation failed", "error", err)
	}
	if !ok {
		metrics.EventsFiltered.Inc()
		return nil
	}

	metrics.EventsProcessed.WithLabelValues(metrics.StatusLabel(string(evt.Status))).Inc()

	for name, sink := range m.sinks {
		if err := sink.Record(ctx, evt); err != nil {
			metrics.SinkErrors.WithLabelValues(name).Inc()
			m.log.Errorw("failed to record event", "sink", name, "error", err)
		}
	}

	if err := m.printer.PrintEvent(evt); err != nil {
		m.log.Errorw("failed to print event", "error", err)
	}

	if m.detector != nil {
		if alert := m.detector.ProcessEvent(evt); alert != nil {
			m.raise(alert)
		}
	}

	return evt
}

func (m *Monitor) raise(alert *types.Alert) {
	metrics.AlertsGenerated.WithLabelValues(string(alert.Risk)).Inc()
	m.log.Warnw("brute force detected", "ip", alert.IP, "failures", alert.FailedLogins, "risk", alert.Risk)

	if err := m.printer.PrintAlert(alert); err != nil {
		m.log.Errorw("failed to print alert", "error", err)
	}
	for _, s := range m.alerts {
		if err := s.LogAlert(alert); err != nil {
			metrics.SinkErrors.WithLabelValues("audit").Inc()
			m.log.Errorw("failed to write alert", "error", err)
		}
	}
}

// SetFilter replaces the filter used for subsequent lines.
func (m *Monitor) SetFilter(f *filter.Filter) {
	m.filter.Store(f)
}

// Apply updates runtime-adjustable settings from a reloaded config. The
// filter is compiled before anything changes, so a bad expression leaves
// the running configuration intact.
func (m *Monitor) Apply(cfg *types.Config) error {
	f, err := filter.Compile(cfg.Detection.Filter)
	if err != nil {
		return err
	}
	m.SetFilter(f)

	if m.detector != nil {
		threshold := cfg.Detection.BruteForceThreshold
		if !cfg.Detection.BruteForce {
			threshold = 0
		}
		m.detector.Configure(threshold, cfg.Detection.BruteForceWindow)
	}
	return nil
}

// PruneEvery periodically drops idle detector state until ctx is done.
func (m *Monitor) PruneEvery(ctx context.Context, interval time.Duration) {
	if m.detector == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.detector.Prune()
		}
	}
}
