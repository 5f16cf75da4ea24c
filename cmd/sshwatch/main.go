package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"sshwatch/internal/config"
	"sshwatch/internal/logging"
	"sshwatch/internal/types"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	err := newRootCmd().Execute()
	_ = logging.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// app holds state shared by all subcommands once the root pre-run has
// loaded the configuration.
type app struct {
	configPath string
	logLevel   string

	cfg *types.Config
	log *zap.SugaredLogger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	opts := &watchOptions{}

	root := &cobra.Command{
		Use:   "sshwatch",
		Short: "Real-time SSH authentication log monitor",
		Long: `sshwatch follows the system authentication log and prints one line per
sshd connection or authentication event, colored by outcome.
Without a subcommand it runs "watch".`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd, opts)
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultConfigPath, "Path to config file (optional unless set)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Diagnostic log level: debug, info, warn, error")
	opts.register(root.Flags())

	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newScanCmd(a))
	root.AddCommand(newHistoryCmd(a))
	root.AddCommand(newVersionCmd())
	root.CompletionOptions.HiddenDefaultCmd = true

	return root
}

// setup loads the configuration and initializes logging.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	required := cmd.Flags().Changed("config")
	cfg, err := config.LoadOrDefault(a.configPath, required)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
		if err := config.Validate(cfg); err != nil {
			return err
		}
	}

	a.cfg = cfg
	a.log = logging.Init(cfg.Logging)
	cmd.SetContext(logging.WithContext(cmd.Context(), a.log))
	return nil
}

// outputOptions are the presentation flags shared by watch and scan.
type outputOptions struct {
	format string
	color  string
	filter string

	filterSet bool
}

func (o *outputOptions) register(fs *pflag.FlagSet) {
	fs.StringVar(&o.format, "format", "text", "Output format: text or json")
	fs.StringVar(&o.color, "color", "auto", "Colorize status: auto, always or never")
	fs.StringVar(&o.filter, "filter", "", `Only print events matching an expression, e.g. 'Status == "FAILED"'`)
}

// apply copies explicitly set flags over cfg.
func (o *outputOptions) apply(fs *pflag.FlagSet, cfg *types.Config) {
	if fs.Changed("format") {
		cfg.Output.Format = o.format
	}
	if fs.Changed("color") {
		cfg.Output.Color = o.color
	}
	o.filterSet = fs.Changed("filter")
	if o.filterSet {
		cfg.Detection.Filter = o.filter
	}
}
