package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"dmastore/internal/config"
	"dmastore/internal/ui"
	"dmastore/pkg/errors"
	"dmastore/pkg/models"
)

// runWizard collects configuration interactively
var runWizard = func(out io.Writer, base models.Config) (*models.Config, error) {
	return ui.NewConfigWizard(out).Run(base)
}

func newInitCmd(a *app) *cobra.Command {
	var (
		force          bool
		nonInteractive bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the dmastore configuration file",
		Long: `Write a configuration file with the input locations, cubes and engine
settings. Values already set by flags, environment or an existing file are
offered as defaults.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{createsConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.opts.configFile
			if path == "" {
				path = config.GetConfigFile()
			}
			if config.Exists(path) && !force {
				return errors.New(errors.ErrCodeInvalidInput, "Configuration file already exists").
					WithContext("file", path).
					WithSuggestions("Re-run with --force to replace it")
			}

			cfg := a.cfg
			if !nonInteractive {
				var err error
				if cfg, err = runWizard(a.printer.Writer(), *a.cfg); err != nil {
					return err
				}
			}

			if err := config.Save(cfg, path); err != nil {
				return err
			}
			a.printer.Success("Configuration written to " + path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "replace an existing configuration file")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "write the current settings without prompting")
	return cmd
}
