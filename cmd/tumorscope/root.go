package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var logLevel string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "tumorscope",
		Short: "TumorScope serves the MRI analysis API",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newMigrateCmd(cfg, &jsonOutput),
		newUserCmd(cfg, &jsonOutput),
	)

	return cmd
}
