package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/libris/internal/config"
	"github.com/roach88/libris/internal/crud"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string
	Driver     string
	User       string

	// Config is resolved before any subcommand runs.
	Config config.Config

	// Clock and IDs override the audit clock and the operation id
	// generator (for testing). Nil selects the defaults.
	Clock crud.Clock
	IDs   crud.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the libris CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "libris",
		Short: "libris - authors and books",
		Long: `Manage a library catalog of authors and books.

Every command runs as one transaction against SQLite or PostgreSQL.
Reads accept a GraphQL-style selection (--fields) naming the attributes to load.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if err := resolveConfig(opts, cmd); err != nil {
				out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return out.Report(err)
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")
	flags.StringVar(&opts.Database, "db", "", "database file (sqlite) or URL (postgres)")
	flags.StringVar(&opts.Driver, "driver", "", "database driver (sqlite|postgres)")
	flags.StringVar(&opts.User, "user", "", "acting user recorded in audit fields")

	// Add subcommands
	cmd.AddCommand(NewAuthorCommand(opts))
	cmd.AddCommand(NewBookCommand(opts))

	return cmd
}

// resolveConfig loads the config file and environment, then applies the
// flags the user set.
func resolveConfig(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database.DSN = opts.Database
	}
	if flags.Changed("driver") {
		cfg.Database.Driver = opts.Driver
	}
	if flags.Changed("user") {
		cfg.User = opts.User
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	opts.Config = cfg
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
