package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/rshade/varbatch/internal/config"
	"github.com/rshade/varbatch/internal/logging"
	"github.com/rshade/varbatch/pkg/version"
)

// StepStatus represents the outcome of a single setup step.
type StepStatus int

const (
	// StepSuccess indicates the step completed successfully.
	StepSuccess StepStatus = iota
	// StepWarning indicates the step completed with a non-fatal issue.
	StepWarning
	// StepSkipped indicates the step was intentionally skipped.
	StepSkipped
	// StepError indicates the step failed.
	StepError
)

// StepResult describes the outcome of executing a single setup step.
type StepResult struct {
	Name     string
	Status   StepStatus
	Message  string
	Critical bool
	Err      error
}

// SetupOptions holds the configuration for the setup command, derived from CLI flags.
type SetupOptions struct {
	NonInteractive bool
	SkipProject    bool
}

// SetupResult is the aggregate outcome of all setup steps.
type SetupResult struct {
	Steps       []StepResult
	HasErrors   bool
	HasWarnings bool
}

// dirPermBase is the permission mode for the home and standard directories.
const dirPermBase = 0o700

// formatStatus returns a status marker appropriate for the output mode.
func formatStatus(status StepStatus, nonInteractive bool) string {
	if nonInteractive {
		switch status {
		case StepSuccess:
			return "[OK]"
		case StepWarning:
			return "[WARN]"
		case StepSkipped:
			return "[SKIP]"
		case StepError:
			return "[ERR]"
		default:
			return "[??]"
		}
	}

	switch status {
	case StepSuccess:
		return "\u2713" // ✓
	case StepWarning:
		return "!"
	case StepSkipped:
		return "-"
	case StepError:
		return "\u2717" // ✗
	default:
		return "?"
	}
}

// NewSetupCmd creates the top-level setup command that bootstraps the varbatch environment.
func NewSetupCmd() *cobra.Command {
	var opts SetupOptions

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Bootstrap the varbatch environment",
		Long: `Sets up varbatch by creating the home, cache and log directories, writing a
default configuration, checking the exec command and protecting the project
directory with a .gitignore.

This command is idempotent. Existing configuration files are preserved.`,
		Example: `  # Full setup
  varbatch setup

  # CI/CD setup (no TTY-dependent output)
  varbatch setup --non-interactive`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(cmd, &opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NonInteractive, "non-interactive", false,
		"Disable TTY-dependent output (status symbols)")
	cmd.Flags().BoolVar(&opts.SkipProject, "skip-project", false,
		"Do not touch the project .varbatch directory")

	return cmd
}

// runSetup runs every step and keeps going after failures. It returns an
// error only if a critical step failed.
func runSetup(cmd *cobra.Command, opts *SetupOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	log := logging.FromContext(ctx)

	if !opts.NonInteractive && !isTerminal(os.Stdin) {
		opts.NonInteractive = true
	}

	result := &SetupResult{}
	record := func(steps ...StepResult) {
		for _, s := range steps {
			printStep(cmd, s, opts.NonInteractive)
			result.Steps = append(result.Steps, s)
		}
	}

	record(stepDisplayVersion())
	record(stepCreateDirectories()...)
	record(stepInitConfig())
	record(stepDetectCommand(ctx, config.GetGlobalConfig().Host.Command))

	projectDir := config.GetResolvedProjectDir()
	switch {
	case opts.SkipProject:
		record(StepResult{Name: "Project", Status: StepSkipped, Message: "Skipped project directory"})
	case projectDir == "":
		record(StepResult{
			Name:    "Project",
			Status:  StepSkipped,
			Message: "No project found. Use --project-dir . to set one up here",
		})
	default:
		record(stepProjectGitignore(projectDir))
	}

	for _, s := range result.Steps {
		if s.Status == StepError && s.Critical {
			result.HasErrors = true
		}
		if s.Status == StepWarning {
			result.HasWarnings = true
		}
	}

	printSetupSummary(cmd, result)

	if result.HasErrors {
		log.Error().
			Ctx(ctx).
			Str("component", "setup").
			Msg("setup completed with critical errors")
		return errors.New("setup failed: one or more critical steps failed")
	}

	return nil
}

// printStep outputs a single step's status line.
func printStep(cmd *cobra.Command, step StepResult, nonInteractive bool) {
	marker := formatStatus(step.Status, nonInteractive)
	cmd.Printf("%s %s\n", marker, step.Message)
}

// printSetupSummary outputs the final completion message.
func printSetupSummary(cmd *cobra.Command, result *SetupResult) {
	cmd.Println()
	if result.HasErrors {
		cmd.Println("Setup completed with errors. Review the messages above for remediation steps.")
	} else {
		cmd.Println("Setup complete! Run 'varbatch run --document doc.yaml --csv out.csv' to get started.")
	}
}

// stepDisplayVersion prints the varbatch version and Go runtime info.
func stepDisplayVersion() StepResult {
	return StepResult{
		Name:    "Version display",
		Status:  StepSuccess,
		Message: fmt.Sprintf("varbatch v%s (%s)", version.GetVersion(), runtime.Version()),
	}
}

// stepDetectCommand checks that the configured exec command is on PATH.
func stepDetectCommand(ctx context.Context, command []string) StepResult {
	if len(command) == 0 {
		return StepResult{
			Name:    "Exec command",
			Status:  StepSkipped,
			Message: "No exec command configured (host.command)",
		}
	}

	path, err := exec.LookPath(command[0])
	if err != nil {
		logging.FromContext(ctx).Debug().
			Ctx(ctx).
			Str("component", "setup").
			Str("command", command[0]).
			Msg("exec command not found on PATH")
		return StepResult{
			Name:    "Exec command",
			Status:  StepWarning,
			Message: fmt.Sprintf("Exec command %q not found on PATH; the exec action will fail", command[0]),
			Err:     err,
		}
	}

	return StepResult{
		Name:    "Exec command",
		Status:  StepSuccess,
		Message: fmt.Sprintf("Exec command found (%s)", path),
	}
}

// stepCreateDirectories creates the home, cache and log directories.
// Returns one StepResult per directory.
func stepCreateDirectories() []StepResult {
	baseDir, err := config.GetConfigDir()
	if err != nil {
		return []StepResult{{
			Name: "Directory creation", Status: StepError, Critical: true, Err: err,
			Message: fmt.Sprintf("Cannot determine the varbatch home: %v\n  Try: export %s=/path/to/dir", err, config.EnvHome),
		}}
	}

	cfg := config.GetGlobalConfig()
	dirs := []string{baseDir}
	if cacheDir, cacheErr := cfg.Cache.CacheDirectory(); cacheErr == nil && cfg.Cache.Enabled {
		dirs = append(dirs, cacheDir)
	}
	if cfg.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(cfg.Logging.File))
	}

	results := make([]StepResult, 0, len(dirs))
	for _, dir := range dirs {
		info, statErr := os.Stat(dir)
		if statErr == nil && info.IsDir() {
			results = append(results, StepResult{
				Name:     "Directory creation",
				Status:   StepSuccess,
				Message:  fmt.Sprintf("Directory exists: %s", dir),
				Critical: true,
			})
			continue
		}

		if mkErr := os.MkdirAll(dir, dirPermBase); mkErr != nil {
			results = append(results, StepResult{
				Name:   "Directory creation",
				Status: StepError,
				Message: fmt.Sprintf(
					"Failed to create %s: %v\n  Try: export %s=/path/to/writable/directory",
					dir, mkErr, config.EnvHome,
				),
				Critical: true,
				Err:      mkErr,
			})
			continue
		}

		results = append(results, StepResult{
			Name:     "Directory creation",
			Status:   StepSuccess,
			Message:  fmt.Sprintf("Created %s", dir),
			Critical: true,
		})
	}

	return results
}

// stepInitConfig writes the default config file if one does not exist.
func stepInitConfig() StepResult {
	configPath, err := config.ConfigFilePath()
	if err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			return StepResult{
				Name:     "Config initialization",
				Status:   StepSuccess,
				Message:  fmt.Sprintf("Config already exists (%s)", configPath),
				Critical: true,
			}
		}
		err = config.Default().Save(configPath)
	}
	if err != nil {
		return StepResult{
			Name:     "Config initialization",
			Status:   StepError,
			Message:  fmt.Sprintf("Failed to initialize config: %v", err),
			Critical: true,
			Err:      err,
		}
	}

	return StepResult{
		Name:     "Config initialization",
		Status:   StepSuccess,
		Message:  fmt.Sprintf("Initialized config (%s)", configPath),
		Critical: true,
	}
}

// stepProjectGitignore creates the project directory and its .gitignore.
func stepProjectGitignore(projectDir string) StepResult {
	created, err := config.EnsureGitignore(projectDir)
	if err != nil {
		return StepResult{
			Name:    "Project",
			Status:  StepWarning,
			Message: fmt.Sprintf("Could not write %s/.gitignore: %v", projectDir, err),
			Err:     err,
		}
	}
	if !created {
		return StepResult{
			Name:    "Project",
			Status:  StepSuccess,
			Message: fmt.Sprintf("Project .gitignore exists (%s)", projectDir),
		}
	}
	return StepResult{
		Name:    "Project",
		Status:  StepSuccess,
		Message: fmt.Sprintf("Created %s/.gitignore", projectDir),
	}
}
