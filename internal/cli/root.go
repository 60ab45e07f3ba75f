package cli

import (
	"fmt"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

// Config holds defaults read from the environment. Flags override them.
type Config struct {
	Database string `env:"REPGRAPH_DB"`
	Format   string `env:"REPGRAPH_FORMAT"  envDefault:"text"`
	Verbose  bool   `env:"REPGRAPH_VERBOSE"`
}

// ParseConfig loads the environment defaults.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string // default --db for commands that use the packet log
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the repgraph CLI.
func NewRootCommand() *cobra.Command {
	cfg, cfgErr := ParseConfig()
	if cfgErr != nil {
		cfg = Config{Format: "text"}
	}
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "repgraph",
		Short: "repgraph - incremental state replication",
		Long: `Replicate graphs of objects from an authority to followers as versioned diffs.

Classes are declared in CUE. The authority sends each follower only what
changed since the version it last acknowledged; every packet can be logged
to SQLite for tracing and replay.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return NewExitError(ExitCommandError, cfgErr.Error())
			}
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags, seeded from REPGRAPH_* variables
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", cfg.Verbose, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", cfg.Format, "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", cfg.Database, "path to SQLite packet log")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
