package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/stategraph/internal/cli"
	"github.com/aretw0/stategraph/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "stategraph",
	Short:         "Stategraph runs state graphs over a typed, mergeable state",
	Long:          `Stategraph compiles graphs of nodes and conditional edges and runs them to completion: portfolio math, stock quotes and tool-calling chat.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("tracing", false, "Print OpenTelemetry spans of every node to stderr")
}

// loadConfig reads --config and applies the flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if tracing, _ := cmd.Flags().GetBool("tracing"); tracing {
		cfg.Engine.Tracing = true
	}
	return cfg, nil
}

// loadApp builds the application for a command. Callers close it.
func loadApp(cmd *cobra.Command, opts cli.AppOptions) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if opts.TraceWriter == nil {
		opts.TraceWriter = os.Stderr
	}
	return cli.NewApp(cmd.Context(), cfg, opts)
}
