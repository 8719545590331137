// Package cli implements coachctl, the operator tool for the coaching
// backend. It talks to the same document store as the server.
package cli

import (
	"alcyxob/personal-coach/internal/config"
	"alcyxob/personal-coach/internal/identity"
	"alcyxob/personal-coach/internal/logging"
	"alcyxob/personal-coach/internal/repository"
	"alcyxob/personal-coach/internal/repository/memory"
	"alcyxob/personal-coach/internal/repository/mongo"
	"alcyxob/personal-coach/internal/service"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the check ran and found a problem
	ExitCommandError = 2 // the command could not run
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// GetExitCode extracts the exit code from an error returned by Execute.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags and the environment shared by subcommands.
type RootOptions struct {
	ConfigPath string
	Format     string

	env *Env
}

// Env is what commands act on. Tests inject one; otherwise it is built from
// configuration before the first command runs.
type Env struct {
	Deps      service.Deps
	Directory *identity.Directory
	Close     func()
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "coachctl",
		Short:         "Maintenance commands for the personal coach backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)}
			}
			if opts.env != nil {
				return nil
			}
			env, err := buildEnv(opts.ConfigPath, cmd.ErrOrStderr())
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: err.Error()}
			}
			opts.env = env
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", ".", "directory holding config.yaml and .env")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newRepairRostersCommand(opts))
	cmd.AddCommand(newOrphansCommand(opts))
	cmd.AddCommand(newReferralCommand(opts))
	return cmd
}

func buildEnv(configPath string, logOut io.Writer) (*Env, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	logger := logging.New(logOut, cfg.Log)

	env := &Env{Close: func() {}}
	var store repository.DocumentStore
	switch cfg.Database.Driver {
	case config.DriverMemory:
		store = memory.NewStore()
	default:
		conn, err := mongo.Open(context.Background(), cfg.Database.URI, cfg.Database.Name)
		if err != nil {
			return nil, fmt.Errorf("could not connect to MongoDB: %w", err)
		}
		env.Close = func() {
			if err := conn.Close(); err != nil {
				logger.Error("failed to disconnect MongoDB", "error", err)
			}
		}
		store = mongo.NewStore(conn.DB)
	}

	directory, err := identity.NewDirectory(store, identity.Options{
		Secret:            cfg.JWT.Secret,
		TokenTTL:          cfg.JWT.Expiration,
		MaxFailedAttempts: cfg.Identity.MaxFailedAttempts,
		Lockout:           cfg.Identity.Lockout,
	})
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Deps = service.Deps{Store: store, Logger: logger}
	env.Directory = directory
	return env, nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// output writes data as JSON, or calls text for the text format.
func output(cmd *cobra.Command, opts *RootOptions, data interface{}, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	text(w)
	return nil
}

// execute runs cmd and then releases the environment. Cobra skips post-run
// hooks when a command fails, so the release happens here.
func execute(cmd *cobra.Command, opts *RootOptions) error {
	defer func() {
		if opts.env != nil && opts.env.Close != nil {
			opts.env.Close()
		}
	}()
	return cmd.Execute()
}

// Execute runs coachctl and exits with the command's exit code.
func Execute() {
	opts := &RootOptions{}
	if err := execute(newRootCommand(opts), opts); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(GetExitCode(err))
	}
}
