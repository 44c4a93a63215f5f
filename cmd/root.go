package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"dmastore/internal/config"
	"dmastore/internal/engine"
	"dmastore/internal/history"
	"dmastore/internal/observability"
	"dmastore/internal/ui"
	"dmastore/pkg/errors"
	"dmastore/pkg/models"
)

const (
	// configKeyAnnotation ties a flag to the config key it overrides
	configKeyAnnotation = "dmastore/config-key"
	// createsConfigAnnotation marks commands that accept a missing --config file
	createsConfigAnnotation = "dmastore/creates-config"
)

var (
	// newConnector builds the engine connector for a command run
	newConnector = func(cfg models.EngineConfig, logger *observability.Logger) (engine.Connector, error) {
		engCfg, err := engine.ConfigFromModel(cfg)
		if err != nil {
			return nil, err
		}
		open := engine.NewConnector(engCfg)
		return func(ctx context.Context) (*engine.Service, error) {
			svc, err := open(ctx)
			if err != nil {
				return nil, err
			}
			return svc.WithLogger(logger), nil
		}, nil
	}

	openLedger = history.Open
)

type rootOptions struct {
	configFile string
	verbose    bool
	quiet      bool
	logFormat  string
}

// app is the state shared by every subcommand after config is loaded
type app struct {
	opts    rootOptions
	v       *viper.Viper
	cfg     *models.Config
	logger  *observability.Logger
	printer *ui.Printer
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{logger: observability.NewNop()}

	root := &cobra.Command{
		Use:   "dmastore",
		Short: "Build and analyze the partitioned telecom win/loss store",
		Long: `dmastore enriches raw carrier win/loss facts with reporting names and
DMA geography, writes them as a hive-partitioned Parquet store, and computes
census-block suppression impact per DMA and state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.opts.configFile, "config", "", "config file (default $DMASTORE_CONFIG or ~/.dmastore/config.yaml)")
	pf.BoolVarP(&a.opts.verbose, "verbose", "v", false, "debug logging")
	pf.BoolVarP(&a.opts.quiet, "quiet", "q", false, "only print errors and requested output")
	pf.StringVar(&a.opts.logFormat, "log-format", "", "log encoding: json or console")
	pf.Int("threads", 0, "engine threads (0 for all cores)")
	bindFlag(pf, "threads", "engine.threads")
	pf.String("memory-limit", "", "engine memory limit, e.g. 8GB")
	bindFlag(pf, "memory-limit", "engine.memory_limit")

	root.AddCommand(
		newBuildCmd(a),
		newSuppressCmd(a),
		newSeriesCmd(a),
		newOutliersCmd(a),
		newHistoryCmd(a),
		newInitCmd(a),
		newVersionCmd(),
	)

	return root, a
}

// bindFlag marks a flag as overriding a config key
func bindFlag(fs *pflag.FlagSet, name, key string) {
	if err := fs.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

// load reads configuration with flag overrides and builds the logger
func (a *app) load(cmd *cobra.Command) error {
	if a.opts.configFile != "" && cmd.Annotations[createsConfigAnnotation] == "" {
		if err := config.RequireFile(a.opts.configFile); err != nil {
			return err
		}
	}

	a.v = viper.New()
	config.Setup(a.v, a.opts.configFile)

	var bindErr error
	bind := func(f *pflag.Flag) {
		if keys, ok := f.Annotations[configKeyAnnotation]; ok && bindErr == nil {
			bindErr = a.v.BindPFlag(keys[0], f)
		}
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)
	if bindErr != nil {
		return errors.Wrap(bindErr, errors.ErrCodeInternal, "Failed to bind flags")
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Logging.Level
	if a.opts.verbose {
		level = "debug"
	}
	format := cfg.Logging.Format
	if a.opts.logFormat != "" {
		format = a.opts.logFormat
	}
	a.logger = observability.NewLogger(observability.LoggerConfig{
		Level:   level,
		Format:  format,
		Output:  cmd.ErrOrStderr(),
		Service: "dmastore",
		Version: Version,
	}).WithField("command", cmd.Name())
	observability.SetDefaultLogger(a.logger)

	a.printer = ui.NewPrinter(cmd.OutOrStdout(), a.opts.quiet)
	return nil
}

// spin starts a spinner on interactive terminals, nil otherwise
func (a *app) spin(message string) *ui.Spinner {
	if a.printer.Quiet() || !ui.ColorEnabled() {
		return nil
	}
	s := ui.NewSpinner(a.printer.Writer(), message)
	s.Start()
	return s
}

// Execute runs the CLI and exits 1 on failure
func Execute() {
	root, a := newRootCmd()
	if err := root.Execute(); err != nil {
		errors.NewErrorHandler(root.ErrOrStderr(), a.logger).Handle(err)
		_ = a.logger.Sync()
		os.Exit(1)
	}
}
