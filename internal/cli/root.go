// Package cli implements the varbatch command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/varbatch/internal/config"
	"github.com/rshade/varbatch/internal/logging"
)

// Exit codes carried by ExitError.
const (
	ExitFailure      = 1
	ExitDeclined     = 2
	ExitCancelled    = 3
	ExitItemFailures = 4
)

// ExitError asks main to exit with Code. The reason has already been shown
// to the user.
type ExitError struct {
	Code   int
	Reason string
}

func (e *ExitError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Reason
}

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// logsOnTerminal is set when log lines go to stderr rather than a file.
var logsOnTerminal bool //nolint:gochecknoglobals // Set once per command by setupLogging

// NewRootCmd creates the root Cobra command for the varbatch CLI.
// It resolves configuration, wires up logging and tracing, and registers
// the run, export, jobs, config, serve and setup commands.
func NewRootCmd(ver string) *cobra.Command {
	var logResult *logging.LogPathResult

	cmd := &cobra.Command{
		Use:           "varbatch",
		Short:         "Chunked, cancellable batch processing with two-row CSV export",
		Long:          "varbatch applies one operation to many document items, a few at a time, and exports before/after text as a two-row CSV.",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}
			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cleanupLogging(cmd, logResult)
		},
	}

	pf := cmd.PersistentFlags()
	pf.Bool("debug", false, "enable debug logging")
	pf.String("config", "", "load this config file on top of the global and project config")
	pf.String("profile", "", "governor profile: standard, strict or relaxed")
	pf.String("project-dir", "", "project directory containing .varbatch/ (default: search upwards)")
	pf.Bool("plain", false, "plain text output without styling or interactive progress")
	pf.Bool("skip-version-check", false, "skip the remote host protocol version check")

	cmd.AddCommand(
		NewRunCmd(), NewExportCmd(), newJobsCmd(), newConfigCmd(),
		NewServeCmd(), NewSetupCmd(),
	)
	return cmd
}

const rootCmdExample = `  # Bind every text object of a document to a variable and export the CSV
  varbatch run --document drawing.yaml --action setvar --csv out.csv --save

  # Unattended run: accept the size warnings, stop at the first timeout
  varbatch run -d drawing.yaml -a upper --yes --on-timeout stop

  # Drive a document served by another process
  varbatch serve --document drawing.yaml --addr 127.0.0.1:50551
  varbatch run --host-addr 127.0.0.1:50551 --action setvar

  # Re-export the latest job with a different prefix
  varbatch export --job latest --csv again.csv

  # Initialize configuration
  varbatch config init`

// loadConfig resolves the effective configuration and installs it as the
// global config: global file, project overlay, --config file, environment,
// then flags.
func loadConfig(cmd *cobra.Command) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	projectFlag, _ := flags.GetString("project-dir")
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	projectDir := config.ResolveProjectDir(ctx, projectFlag, cwd)
	config.SetResolvedProjectDir(projectDir)

	cfg := config.NewWithProjectDir(ctx, projectDir)

	if path, _ := flags.GetString("config"); path != "" {
		if err = cfg.Load(path); err != nil {
			return fmt.Errorf("loading --config: %w", err)
		}
		config.ApplyEnvOverrides(cfg, os.Getenv)
	}

	if profile, _ := flags.GetString("profile"); profile != "" {
		cfg.Governor.Profile = profile
	}
	if skip, _ := flags.GetBool("skip-version-check"); skip {
		cfg.Host.SkipVersionCheck = true
	}

	if err = cfg.Validate(); err != nil {
		return err
	}
	config.SetGlobalConfig(cfg)
	return nil
}

// newConfigCmd creates the config command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigShowCmd(), NewConfigValidateCmd())
	return cmd
}
