// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for querycraft.
// It implements subcommands for asking questions, validating SQL, serving the HTTP
// API and managing connection secrets using the Cobra CLI framework. Command output
// goes to stdout; logs go to stderr so output stays pipeable.
package cmd

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"querycraft/cli/internal/config"
	"querycraft/cli/internal/logging"
)

var (
	showVersion bool
	configPath  string
	logLevel    string
	logFormat   string

	// cfg and logger are populated by the root PersistentPreRunE.
	cfg    config.Config
	logger = logging.Discard()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "querycraft",
	Short: "Ask questions of a database in plain language, safely",
	Long: `querycraft turns a natural-language question into a single read-only SQL query,
checks it against a strict policy, runs it in a read-only transaction and returns
the rows as JSON or a table.

Configure the database with 'querycraft connect' (or QUERYCRAFT_DSN) and the SQL
generation endpoint key with 'querycraft login' (or QUERYCRAFT_LLM_API_KEY).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("querycraft %s\n", Version)
			return nil
		}
		// If no flag is set, show help
		return cmd.Help()
	},
}

// Execute runs the CLI application.
// It executes the root command and handles any errors that occur during execution.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if _, quiet := err.(silentError); !quiet {
			fmt.Fprintln(os.Stderr, logging.Mask(err.Error()))
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI version information")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default $XDG_CONFIG_HOME/querycraft/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error, off")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
}

// loadConfig reads the config file and environment, applies flag overrides and
// builds the logger.
func loadConfig(cmd *cobra.Command) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	l, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// silentError signals a failure that has already been presented to the user.
type silentError struct{ error }

// presented wraps err so Execute exits non-zero without printing it again.
func presented(err error) error {
	if err == nil {
		return nil
	}
	return silentError{err}
}

func printLines(lines ...string) {
	for _, l := range lines {
		pterm.Println(l)
	}
}
