package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"sshwatch/internal/audit"
	"sshwatch/internal/config"
	"sshwatch/internal/detect"
	"sshwatch/internal/filter"
	"sshwatch/internal/ingest"
	"sshwatch/internal/logging"
	"sshwatch/internal/metrics"
	"sshwatch/internal/monitor"
	"sshwatch/internal/parser"
	"sshwatch/internal/render"
	"sshwatch/internal/state"
	"sshwatch/internal/types"
)

const pruneInterval = time.Minute

type watchOptions struct {
	outputOptions
	file    string
	journal bool
	history bool
	metrics bool
	alerts  bool

	alertsSet bool
}

func (o *watchOptions) register(fs *pflag.FlagSet) {
	o.outputOptions.register(fs)
	fs.StringVarP(&o.file, "file", "f", config.DefaultAuthLogPath, "Authentication log to follow")
	fs.BoolVar(&o.journal, "journal", false, "Read sshd entries from journalctl instead of a file")
	fs.BoolVar(&o.history, "history", false, "Persist emitted events to the history database")
	fs.BoolVar(&o.metrics, "metrics", false, "Expose Prometheus metrics")
	fs.BoolVar(&o.alerts, "alerts", false, "Print brute-force alerts between event lines")
}

func (o *watchOptions) apply(fs *pflag.FlagSet, cfg *types.Config) {
	o.outputOptions.apply(fs, cfg)
	if fs.Changed("file") {
		cfg.Input.AuthLogPath = o.file
	}
	if fs.Changed("journal") {
		cfg.Input.EnableJournal = o.journal
	}
	if fs.Changed("history") {
		cfg.History.Enabled = o.history
	}
	if fs.Changed("metrics") {
		cfg.Metrics.Enabled = o.metrics
	}
	o.alertsSet = fs.Changed("alerts")
	if o.alertsSet {
		cfg.Detection.BruteForce = o.alerts
	}
}

func newWatchCmd(a *app) *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the authentication log and print SSH events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd, opts)
		},
	}
	opts.register(cmd.Flags())
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, opts *watchOptions) error {
	cfg := a.cfg
	opts.apply(cmd.Flags(), cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logging.Get(ctx)

	printer := render.NewPrinter(cmd.OutOrStdout(), cfg.Output.Format, cfg.Output.Color, cfg.Output.UserWidth)
	mon, cleanup, err := a.buildMonitor(ctx, cfg, printer, true)
	if err != nil {
		return err
	}
	defer cleanup()

	var src ingest.Ingester
	origin := cfg.Input.AuthLogPath
	if cfg.Input.EnableJournal {
		src = ingest.NewJournalReader(log)
		origin = "journald"
	} else {
		src = ingest.NewFileTailer(cfg.Input.AuthLogPath, cfg.Input.PollInterval, log)
	}
	lines, err := src.Start(ctx)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", origin, err)
	}
	defer func() {
		if err := src.Stop(); err != nil {
			log.Debugw("source stopped with error", "error", err)
		}
	}()

	if cfg.Metrics.Enabled {
		go func() {
			log.Infow("metrics server starting", "addr", cfg.Metrics.Listen)
			if err := metrics.StartServer(ctx, cfg.Metrics.Listen); err != nil {
				log.Errorw("metrics server failed", "error", err)
			}
		}()
	}

	go mon.PruneEvery(ctx, pruneInterval)
	go a.reloadLoop(ctx, mon, opts)

	if err := printer.Banner(fmt.Sprintf("Real-time SSH log monitor started (%s)...", origin)); err != nil {
		return err
	}
	log.Infow("monitoring", "source", origin, "format", cfg.Output.Format)

	err = mon.Run(ctx, lines)
	log.Infow("shutting down")
	return err
}

// buildMonitor wires the configured filter, detector and sinks. Only a live
// monitor gets a detector and sinks: the detection window is wall-clock
// time, which a replayed file does not follow. The returned cleanup closes
// whatever was opened.
func (a *app) buildMonitor(ctx context.Context, cfg *types.Config, printer *render.Printer, live bool) (*monitor.Monitor, func(), error) {
	log := logging.Get(ctx)
	cleanup := func() {}

	f, err := filter.Compile(cfg.Detection.Filter)
	if err != nil {
		return nil, cleanup, err
	}

	var detector *detect.Engine
	if live && cfg.Detection.BruteForce {
		detector = detect.NewEngine(cfg.Detection.BruteForceThreshold, cfg.Detection.BruteForceWindow)
	}

	sinks := make(map[string]monitor.Sink)
	var alertSinks []monitor.AlertSink
	if live {
		if cfg.History.Enabled {
			store, err := state.NewStore(cfg.History.DBPath)
			if err != nil {
				return nil, cleanup, err
			}
			cleanup = func() {
				if err := store.Close(); err != nil {
					log.Warnw("failed to close history store", "error", err)
				}
			}
			sinks["history"] = store
			log.Infow("history enabled", "db", cfg.History.DBPath)
		}
		if cfg.Output.AuditLogPath != "" {
			al := audit.NewLogger(cfg.Output.AuditLogPath)
			sinks["audit"] = al
			alertSinks = append(alertSinks, al)
		}
	}

	mon := monitor.New(monitor.Options{
		Parser:   parser.NewSSHParser(),
		Printer:  printer,
		Filter:   f,
		Detector: detector,
		Sinks:    sinks,
		Alerts:   alertSinks,
		Log:      log,
	})
	return mon, cleanup, nil
}

// reloadLoop re-reads the config on SIGHUP or when the file changes on disk.
// Input, output and history settings need a restart, and so does turning
// brute-force alerts on.
func (a *app) reloadLoop(ctx context.Context, mon *monitor.Monitor, opts *watchOptions) {
	log := logging.Get(ctx)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	changed := make(chan struct{}, 1)
	if _, err := os.Stat(a.configPath); err == nil {
		w := config.NewWatcher(a.configPath, 0, log, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Warnw("config watcher stopped", "error", err)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			a.reload(log, mon, opts)
		case <-changed:
			a.reload(log, mon, opts)
		}
	}
}

func (a *app) reload(log *zap.SugaredLogger, mon *monitor.Monitor, opts *watchOptions) {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warnw("config file missing, keeping current settings", "path", a.configPath)
			return
		}
		log.Errorw("config reload rejected", "error", err)
		return
	}
	// Flags given on the command line keep precedence over the file.
	if opts.filterSet {
		cfg.Detection.Filter = opts.filter
	}
	if opts.alertsSet {
		cfg.Detection.BruteForce = opts.alerts
	}
	if err := mon.Apply(cfg); err != nil {
		log.Errorw("config reload rejected", "error", err)
		return
	}
	metrics.ConfigReloads.Inc()
	log.Infow("config reloaded", "path", a.configPath, "filter", cfg.Detection.Filter)
}
