package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tasksync/internal/config"
	"tasksync/internal/logging"
)

var (
	cfgFile string
	debug   bool
	cfg     config.Config
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tasksync",
		Short:         "tasksync keeps a local task cache in sync with a task API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = loaded
			logging.Init(debug || cfg.Debug)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (JSON or YAML)")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(tasksCmd())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}
