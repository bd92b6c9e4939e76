package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/varbatch/internal/config"
)

var errConfigExists = errors.New("configuration file already exists, use --force to overwrite")

// NewConfigInitCmd creates the config init command for initializing configuration.
// When run inside a varbatch project (without --global), it writes the
// project-local .varbatch/config.yaml and .gitignore. Otherwise, it creates the
// global ~/.varbatch/config.yaml.
func NewConfigInitCmd() *cobra.Command {
	var (
		force  bool
		global bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates a new configuration file with default values.

When run inside a project (a directory tree containing .varbatch/ or selected
with --project-dir), creates $PROJECT/.varbatch/config.yaml with a .gitignore
for exports and logs. Use --global to initialize the global configuration
even inside a project.`,
		Example: `  # Create project-local configuration
  varbatch config init --project-dir .

  # Create global configuration
  varbatch config init --global

  # Create configuration, overwriting existing
  varbatch config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projectDir := config.GetResolvedProjectDir()

			if projectDir != "" && !global {
				return initProjectConfig(cmd, projectDir, force)
			}

			return initGlobalConfig(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	cmd.Flags().BoolVar(&global, "global", false, "force global configuration init even inside a project")

	return cmd
}

// checkWritable refuses to overwrite an existing config without force.
func checkWritable(path string, force bool) error {
	if force {
		return nil
	}
	_, err := os.Stat(path)
	if err == nil {
		return errConfigExists
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("cannot access config path %s: %w", path, err)
	}
	return nil
}

// initProjectConfig creates project-local config at projectDir/config.yaml with .gitignore.
func initProjectConfig(cmd *cobra.Command, projectDir string, force bool) error {
	configPath := filepath.Join(projectDir, "config.yaml")
	if err := checkWritable(configPath, force); err != nil {
		return err
	}

	if err := os.MkdirAll(projectDir, 0o750); err != nil {
		return fmt.Errorf("failed to create project config directory: %w", err)
	}

	if err := config.Default().Save(configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	// Never overwrites an existing .gitignore.
	created, err := config.EnsureGitignore(projectDir)
	if err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}

	cmd.Printf("Configuration initialized at %s\n", configPath)
	if created {
		cmd.Printf("Created .gitignore for exports, metrics and logs\n")
	}

	return nil
}

// initGlobalConfig creates global config at ~/.varbatch/config.yaml.
func initGlobalConfig(cmd *cobra.Command, force bool) error {
	path, err := config.ConfigFilePath()
	if err != nil {
		return err
	}
	if err = checkWritable(path, force); err != nil {
		return err
	}

	if err = config.Default().Save(path); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	cmd.Printf("Configuration initialized successfully\n")
	cmd.Printf("Configuration file: %s\n", path)

	return nil
}

// NewConfigShowCmd prints the effective configuration.
func NewConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Prints the configuration after merging defaults, the global file, the
project overlay, --config, .env files and VARBATCH_* variables.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := yaml.Marshal(config.GetGlobalConfig())
			if err != nil {
				return fmt.Errorf("encode configuration: %w", err)
			}
			if dir := config.GetResolvedProjectDir(); dir != "" {
				cmd.Printf("# project: %s\n", dir)
			}
			cmd.Print(string(out))
			return nil
		},
	}
}

// NewConfigValidateCmd checks a configuration file, or the effective
// configuration when no file is given.
func NewConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetGlobalConfig()
			source := "effective configuration"
			if len(args) == 1 {
				cfg = config.Default()
				if err := cfg.Load(args[0]); err != nil {
					return err
				}
				source = args[0]
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			gov, err := cfg.Governor.Build("")
			if err != nil {
				return err
			}
			cmd.Printf("%s is valid\n", source)
			cmd.Printf("  profile %s: chunk size %d, confirm above %d/%d items, deadline %s, reclaim %s\n",
				cfg.Governor.Profile, gov.ChunkSize, gov.SoftThreshold, gov.HardThreshold, gov.Deadline, gov.Reclaim)
			return nil
		},
	}
}
