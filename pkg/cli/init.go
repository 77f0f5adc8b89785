package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/uberpack/uberpack/pkg/types"
	"gopkg.in/yaml.v3"
)

func (c *CLI) newInitCmd() *cobra.Command {
	var format string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default uberpack configuration",
		Long: `Write uberpack.config.json (or .yaml) in the project root using the
conventional layout: target/main/artifact plus deps/ as inputs, the archive in
target/uber and staging in target/uber-exploded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(format, force)
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "config format (json, yaml)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")

	return cmd
}

func (c *CLI) runInit(format string, force bool) error {
	root, err := c.projectRoot()
	if err != nil {
		return err
	}

	if existing, ok := c.manager.FindConfig(root); ok && !force {
		return fmt.Errorf("configuration already exists at %s. Use --force to overwrite", existing)
	}

	data, name, err := encodeConfig(c.manager.GetDefaultConfig(), format)
	if err != nil {
		return err
	}

	configPath := filepath.Join(root, name)
	if c.config.ConfigFile != "" {
		configPath = c.config.ConfigFile
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	c.console.Success(fmt.Sprintf("Created configuration at %s", configPath))
	c.console.Info("Edit moduleDependencyPath to list your dependency directories in layering order")
	return nil
}

func encodeConfig(cfg *types.PackagerConfig, format string) ([]byte, string, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal config: %w", err)
		}
		return append(data, '\n'), "uberpack.config.json", nil
	case "yaml", "yml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal config: %w", err)
		}
		return data, "uberpack.config.yaml", nil
	default:
		return nil, "", fmt.Errorf("unknown config format: %s", format)
	}
}
