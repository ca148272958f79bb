package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/fieldcrawl/configs"
	"github.com/Aman-CERP/fieldcrawl/internal/config"
	"github.com/Aman-CERP/fieldcrawl/internal/output"
)

func newConfigCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage fieldcrawl configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/fieldcrawl/config.yaml)
  3. Project config (.fieldcrawl.yaml)
  4. Environment variables (FIELDCRAWL_*)`,
		Example: `  # Create a project config with defaults
  fieldcrawl config init

  # Show effective configuration
  fieldcrawl config show

  # Print config file locations
  fieldcrawl config path`,
	}

	cmd.AddCommand(newConfigInitCmd(flags))
	cmd.AddCommand(newConfigShowCmd(flags))
	cmd.AddCommand(newConfigPathCmd(flags))

	return cmd
}

func newConfigInitCmd(flags *rootFlags) *cobra.Command {
	var (
		force bool
		user  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file with defaults",
		Long: `Create .fieldcrawl.yaml in the project directory, or the user config
with --user. An existing file is left alone unless --force is given, in
which case it is backed up first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, flags, user, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file after backing it up")
	cmd.Flags().BoolVar(&user, "user", false, "Create the user config instead of the project config")

	return cmd
}

func newConfigShowCmd(flags *rootFlags) *cobra.Command {
	var (
		jsonOutput bool
		source     string
		outFile    string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Example: `  # Show merged configuration
  fieldcrawl config show

  # Freeze the merged configuration into a file
  fieldcrawl config show --output snapshot.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, flags, jsonOutput, source, outFile)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, defaults")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the configuration as YAML to this file")

	return cmd
}

func newConfigPathCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print config file locations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := filepath.Abs(flags.dir)
			if err != nil {
				return err
			}
			project := config.FindProjectConfig(dir)
			if project == "" {
				project = filepath.Join(dir, config.ProjectFileNames[0]) + " (not found)"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user:    %s\nproject: %s\n", config.GetUserConfigPath(), project)
			return nil
		},
	}
}

func runConfigInit(cmd *cobra.Command, flags *rootFlags, user, force bool) error {
	out := output.New(cmd.OutOrStdout())

	var path string
	if user {
		path = config.GetUserConfigPath()
	} else {
		dir, err := filepath.Abs(flags.dir)
		if err != nil {
			return err
		}
		path = config.FindProjectConfig(dir)
		if path == "" {
			path = filepath.Join(dir, config.ProjectFileNames[0])
		}
	}

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.KeyValue("Location", path)
			out.Status("", "Use --force to replace it with defaults (a backup is kept)")
			return nil
		}
		backup, err := config.BackupFile(path)
		if err != nil {
			return err
		}
		out.KeyValue("Backup", backup)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created configuration")
	out.KeyValue("Location", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, flags *rootFlags, jsonOutput bool, source, outFile string) error {
	var cfg *config.Config
	switch source {
	case "merged":
		dir, err := filepath.Abs(flags.dir)
		if err != nil {
			return err
		}
		cfg, err = config.Load(dir)
		if err != nil {
			return err
		}
	case "defaults":
		cfg = config.NewConfig()
	default:
		return fmt.Errorf("unknown source %q (valid: merged, defaults)", source)
	}

	if outFile != "" {
		if err := cfg.WriteYAML(outFile); err != nil {
			return err
		}
		output.New(cmd.OutOrStdout()).Successf("Wrote %s configuration to %s", source, outFile)
		return nil
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
