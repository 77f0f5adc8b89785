// Package cli provides the command-line interface for uberpack
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/uberpack/uberpack/pkg/archive"
	"github.com/uberpack/uberpack/pkg/assembler"
	"github.com/uberpack/uberpack/pkg/config"
	"github.com/uberpack/uberpack/pkg/logger"
	"github.com/uberpack/uberpack/pkg/state"
	"github.com/uberpack/uberpack/pkg/types"
)

// CLI holds the command tree and its I/O
type CLI struct {
	config   *Config
	rootCmd  *cobra.Command
	viper    *viper.Viper
	manager  *config.Manager
	console  *logger.ConsoleLogger
	output   io.Writer
	errorOut io.Writer
}

// NewCLI creates a CLI writing to the process stdout and stderr
func NewCLI(cfg *Config) *CLI {
	return NewCLIWithOutput(cfg, os.Stdout, os.Stderr)
}

// NewCLIWithOutput creates a CLI with custom output writers
func NewCLIWithOutput(cfg *Config, output, errorOut io.Writer) *CLI {
	if cfg == nil {
		cfg = NewConfig()
	}

	c := &CLI{
		config:   cfg,
		viper:    viper.New(),
		manager:  config.NewManager(),
		console:  logger.NewConsoleLogger(output, errorOut),
		output:   output,
		errorOut: errorOut,
	}

	c.setupCommands()
	return c
}

// Execute runs the process CLI and reports the error, if any, on stderr
func Execute(version string) error {
	cfg := NewConfig()
	cfg.Version = version

	c := NewCLI(cfg)
	err := c.ExecuteContext(context.Background(), os.Args[1:])
	if err != nil {
		c.console.Error(err.Error())
	}
	return err
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	return c.ExecuteContext(context.Background(), args)
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "uberpack",
		Short: "Assemble a self-launching uber-archive from a module path",
		Long: `📦 uberpack - uber-archive assembler

uberpack stages a launcher bundle, writes the module manifest, and merges the
artifact directory and every dependency directory into a single executable
archive. Later directories win when entries collide.`,

		PersistentPreRunE: c.initializeConfig,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	c.rootCmd.SetOut(c.output)
	c.rootCmd.SetErr(c.errorOut)

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("📦 uberpack v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newPackageCmd())
	c.rootCmd.AddCommand(c.newWatchCmd())
	c.rootCmd.AddCommand(c.newManifestCmd())
	c.rootCmd.AddCommand(c.newInputsCmd())
	c.rootCmd.AddCommand(c.newStatusCmd())
	c.rootCmd.AddCommand(c.newWaitCmd())
	c.rootCmd.AddCommand(c.newInitCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.ConfigFile, "config", "", "config file (default: uberpack.config.json in the project root)")
	flags.StringVar(&c.config.ProjectRoot, keyRoot, ".", "project root directory")
	flags.StringVarP(&c.config.Verbosity, keyVerbosity, "v", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&c.config.LogFile, keyLogFile, "", "also append logs to this file")
}

// buildFlags adds the flags shared by commands that assemble an archive
func buildFlags(cmd *cobra.Command) {
	cmd.Flags().String(keyArchiver, "", "archiving backend (zip, jar)")
	cmd.Flags().String(keyJarCommand, "", "jar tool used by the jar backend")
	cmd.Flags().Bool(keyNoSort, false, "keep directory enumeration order in the manifest")
}

func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	c.viper.SetEnvPrefix("UBERPACK")
	c.viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.viper.AutomaticEnv()

	if err := c.viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	c.config.ProjectRoot = c.viper.GetString(keyRoot)
	c.config.Verbosity = c.viper.GetString(keyVerbosity)
	c.config.LogFile = c.viper.GetString(keyLogFile)
	return nil
}

// projectRoot returns the absolute project root
func (c *CLI) projectRoot() (string, error) {
	root, err := filepath.Abs(c.config.ProjectRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project root: %w", err)
	}
	return root, nil
}

// configPath returns the explicit --config file or the first default file
// found in the project root
func (c *CLI) configPath(root string) (string, error) {
	if c.config.ConfigFile != "" {
		return c.config.ConfigFile, nil
	}
	if path, ok := c.manager.FindConfig(root); ok {
		return path, nil
	}
	return "", fmt.Errorf("no configuration found in %s; run 'uberpack init'", root)
}

// loadPackagerConfig loads the project config, applies flag and environment
// overrides and resolves every path against the project root
func (c *CLI) loadPackagerConfig() (*types.PackagerConfig, string, error) {
	root, err := c.projectRoot()
	if err != nil {
		return nil, "", err
	}

	path, err := c.configPath(root)
	if err != nil {
		return nil, "", err
	}

	cfg, err := c.manager.LoadConfig(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}

	if v := c.viper.GetString(keyArchiver); v != "" {
		cfg.Archiver = types.ArchiverKind(v)
	}
	if v := c.viper.GetString(keyJarCommand); v != "" {
		cfg.JarCommand = v
	}
	if c.viper.GetBool(keyNoSort) {
		sorted := false
		cfg.SortEntries = &sorted
	}
	if c.viper.GetBool(keyNotify) {
		enabled := true
		if cfg.Notifications == nil {
			cfg.Notifications = &types.NotificationConfig{}
		}
		cfg.Notifications.Enabled = &enabled
	}

	// Overlap checks compare absolute paths, so resolve first
	c.manager.ResolvePaths(cfg, root)
	if err := c.manager.ValidateConfig(cfg); err != nil {
		return nil, "", err
	}
	return cfg, root, nil
}

// newLogger creates the structured logger. The --verbosity flag or
// UBERPACK_VERBOSITY wins over the config file's logLevel.
func (c *CLI) newLogger(cfg *types.PackagerConfig) logger.Logger {
	level := c.config.Verbosity
	if cfg != nil && cfg.LogLevel != "" && !c.viper.IsSet(keyVerbosity) {
		level = string(cfg.LogLevel)
	}
	if c.config.LogFile != "" {
		return logger.CreateLogger(c.config.LogFile, level)
	}
	return logger.CreateLoggerWithOutput(level, c.errorOut)
}

func newArchiver(cfg *types.PackagerConfig, log logger.Logger) (archive.Archiver, error) {
	switch cfg.Archiver {
	case types.ArchiverJar:
		return archive.NewJarToolArchiver(cfg.JarCommand, log)
	default:
		return archive.NewZipArchiver(log), nil
	}
}

func (c *CLI) newAssembler(cfg *types.PackagerConfig, root string, log logger.Logger) (*assembler.Assembler, error) {
	arch, err := newArchiver(cfg, log)
	if err != nil {
		return nil, &assembler.RunError{State: types.RunStateInit, Kind: assembler.ErrEnvironment, Err: err}
	}
	store := state.NewStore(joinState(root))
	return assembler.New(cfg, arch, log, assembler.WithRecorder(store)), nil
}

func joinState(root string) string {
	return filepath.Join(root, stateDirName)
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
