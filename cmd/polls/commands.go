package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/artpar/polls/internal/shell/api/middleware"
	"github.com/artpar/polls/internal/shell/fixtures"
	"github.com/artpar/polls/internal/shell/store"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags and the state they resolve to.
type RootOptions struct {
	ConfigPath string

	config *Config
	logger *slog.Logger
}

// NewRootCommand creates the polls command tree. Running it without a
// subcommand serves HTTP.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "polls",
		Short:         "Publish polls and collect votes",
		Long:          "A small polling service: HTML pages for voters, a JSON API for clients and administrators.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))
	cmd.AddCommand(newHashTokenCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// load resolves configuration and the logger once per invocation.
// Logs go to stderr so command output on stdout stays clean.
func (o *RootOptions) load(cmd *cobra.Command) error {
	if o.config != nil {
		return nil
	}
	cfg, err := LoadConfig(o.ConfigPath)
	if err != nil {
		return &ServerError{Op: "LoadConfig", Err: err, ExitCode: ExitConfigError}
	}
	o.config = cfg
	o.logger = SetupLogger(cfg, cmd.ErrOrStderr())
	return nil
}

// =============================================================================
// serve
// =============================================================================

func newServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
	if err := opts.load(cmd); err != nil {
		return err
	}
	opts.logger.Info("starting polls",
		"version", Version,
		"config", opts.ConfigPath,
		"database", opts.config.Database.DSN,
	)

	server, err := NewServer(opts.config, opts.logger)
	if err != nil {
		return err
	}
	return server.Start(cmd.Context())
}

// =============================================================================
// migrate
// =============================================================================

func newMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and report the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(cmd); err != nil {
				return err
			}

			s, err := openStore(opts.config)
			if err != nil {
				return err
			}
			defer s.Close()

			version, dirty, err := s.SchemaVersion(cmd.Context())
			if err != nil {
				return &ServerError{Op: "SchemaVersion", Err: err, ExitCode: ExitDatabaseError}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
}

// =============================================================================
// seed
// =============================================================================

func newSeedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixtures.yaml>",
		Short: "Load questions and choices from a YAML fixture file",
		Long: `Load questions and choices from a YAML fixture file.

Each question is published "days" away from now (negative for the past)
unless it names an absolute pub_date. The whole file is applied in one
transaction.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(cmd); err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return &ServerError{Op: "Seed", Err: err, ExitCode: ExitFixtureError}
			}
			defer f.Close()

			doc, err := fixtures.Read(f)
			if err != nil {
				return &ServerError{Op: "Seed", Err: err, ExitCode: ExitFixtureError}
			}

			s, err := openStore(opts.config)
			if err != nil {
				return err
			}
			defer s.Close()

			summary, err := doc.Apply(cmd.Context(), s, time.Now())
			if err != nil {
				var fErr *fixtures.FixtureError
				if errors.As(err, &fErr) {
					return &ServerError{Op: "Seed", Err: err, ExitCode: ExitFixtureError}
				}
				return &ServerError{Op: "Seed", Err: err, ExitCode: ExitDatabaseError}
			}

			opts.logger.Info("fixtures loaded", "file", args[0], "questions", len(summary.Questions), "choices", summary.Choices)
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d questions, %d choices\n", len(summary.Questions), summary.Choices)
			return nil
		},
	}
}

// =============================================================================
// hash-token
// =============================================================================

func newHashTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Print the bcrypt hash of an admin token for auth.admin_token_hash",
		Long: `Print the bcrypt hash of an admin token for auth.admin_token_hash.

The token is read from the first argument, or from the first line of
standard input when no argument is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no token given")
				}
				token = strings.TrimRight(line, "\r\n")
			}
			if token == "" {
				return errors.New("token must not be empty")
			}

			hash, err := middleware.HashToken(token)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// =============================================================================
// version
// =============================================================================

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "polls %s (built %s)\n", Version, BuildTime)
		},
	}
}

func openStore(cfg *Config) (*store.SQLiteStore, error) {
	if err := cfg.Database.EnsureDir(); err != nil {
		return nil, &ServerError{Op: "OpenStore", Err: err, ExitCode: ExitDatabaseError}
	}
	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{Op: "OpenStore", Err: err, ExitCode: ExitDatabaseError}
	}
	return s, nil
}
