package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sshwatch/internal/config"
	"sshwatch/internal/ingest"
	"sshwatch/internal/logging"
	"sshwatch/internal/render"
)

func newScanCmd(a *app) *cobra.Command {
	opts := &outputOptions{}
	cmd := &cobra.Command{
		Use:   "scan <file>",
		Short: "Classify an existing log file once and exit",
		Example: `  sshwatch scan /var/log/auth.log.1
  sshwatch scan --format json --filter 'Status == "FAILED"' auth.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			opts.apply(cmd.Flags(), cfg)
			if err := config.Validate(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log := logging.Get(ctx)

			printer := render.NewPrinter(cmd.OutOrStdout(), cfg.Output.Format, cfg.Output.Color, cfg.Output.UserWidth)
			mon, cleanup, err := a.buildMonitor(ctx, cfg, printer, false)
			if err != nil {
				return err
			}
			defer cleanup()

			tailer := ingest.NewFileTailer(args[0], cfg.Input.PollInterval, log)
			lines, err := tailer.ReadAll(ctx)
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", args[0], err)
			}
			defer tailer.Stop()

			return mon.Run(ctx, lines)
		},
	}
	opts.register(cmd.Flags())
	return cmd
}
