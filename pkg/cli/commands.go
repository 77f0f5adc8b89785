package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/uberpack/uberpack/pkg/bootstrap"
	"github.com/uberpack/uberpack/pkg/manifest"
	"github.com/uberpack/uberpack/pkg/state"
	"github.com/uberpack/uberpack/pkg/utils"
)

func (c *CLI) newPackageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "package",
		Short: "Assemble the uber-archive once",
		Long: `Rebuild the staging directory, write the manifest, create the archive from
the staging directory and merge every module path directory into it in order.
Exits non-zero unless the archive was committed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPackage(cmd)
		},
	}

	buildFlags(cmd)
	return cmd
}

func (c *CLI) runPackage(cmd *cobra.Command) error {
	cfg, root, err := c.loadPackagerConfig()
	if err != nil {
		return err
	}

	log := c.newLogger(cfg)
	asm, err := c.newAssembler(cfg, root, log)
	if err != nil {
		return err
	}

	res, err := asm.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("packaging failed: %w", err)
	}

	size := ""
	if n, statErr := fileSize(res.ArchivePath); statErr == nil {
		size = ", " + utils.FormatBytes(n)
	}
	c.console.Success(fmt.Sprintf("Assembled %s (%d layers, %d manifest entries%s) in %s",
		res.ArchivePath, res.Layers, len(res.Manifest), size, res.Duration.Round(time.Millisecond)))
	return nil
}

func (c *CLI) newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Print the manifest without building",
		Long:  `Compute the manifest lines a package run would write, without touching any output.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runManifest()
		},
	}

	cmd.Flags().Bool(keyNoSort, false, "keep directory enumeration order")
	return cmd
}

func (c *CLI) runManifest() error {
	cfg, _, err := c.loadPackagerConfig()
	if err != nil {
		return err
	}

	log := c.newLogger(cfg)
	descriptor, err := bootstrap.NewExtractor(nil, log).Resolve()
	if err != nil {
		return err
	}

	w := manifest.NewWriter(log, manifest.WithSortedEntries(cfg.ShouldSortEntries()))
	lines, err := w.Lines(descriptor, cfg.ModulePaths())
	if err != nil {
		return err
	}

	for _, line := range lines {
		fmt.Fprintln(c.output, line)
	}
	return nil
}

func (c *CLI) newInputsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inputs",
		Short: "List the input directories",
		Long:  `List the module path directories in layering order, as the watch command
registers them, with the total size of the files each one contributes.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInputs()
		},
	}
}

func (c *CLI) runInputs() error {
	cfg, _, err := c.loadPackagerConfig()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	for i, dir := range cfg.ModulePaths() {
		if !utils.DirectoryExists(dir) {
			fmt.Fprintf(w, "%d\t%s\t%s\t-\n", i, dir, color.RedString("missing"))
			continue
		}
		size := "?"
		if n, err := utils.GetDirectorySize(dir); err == nil {
			size = utils.FormatBytes(n)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, dir, color.GreenString("ok"), size)
	}
	return w.Flush()
}

func (c *CLI) newStatusCmd() *cobra.Command {
	var asJSON, forget bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last run",
		Long:  `Display the outcome of the last package run and whether its archive is usable.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus(asJSON, forget)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw run record")
	cmd.Flags().BoolVar(&forget, "clear", false, "forget the last run record")
	return cmd
}

func (c *CLI) runStatus(asJSON, forget bool) error {
	root, err := c.projectRoot()
	if err != nil {
		return err
	}

	store := state.NewStore(joinState(root))
	if forget {
		if err := store.Clear(); err != nil {
			return fmt.Errorf("failed to clear run record: %w", err)
		}
		c.console.Success("Cleared run record")
		return nil
	}

	rec, err := store.Load()
	if errors.Is(err, state.ErrNoRecord) {
		c.console.Info("No runs recorded yet")
		return nil
	}
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(c.output)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	usable := color.GreenString("yes")
	if !rec.Usable() {
		usable = color.RedString("no")
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Run:\t%s\n", rec.RunID)
	fmt.Fprintf(w, "State:\t%s\n", rec.State)
	fmt.Fprintf(w, "Archive:\t%s\n", rec.ArchivePath)
	fmt.Fprintf(w, "Usable:\t%s\n", usable)
	fmt.Fprintf(w, "Started:\t%s\n", rec.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration:\t%s\n", rec.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Layers:\t%d\n", rec.Layers)
	fmt.Fprintf(w, "Manifest:\t%d entries\n", rec.ManifestEntries)
	if rec.LastError != "" {
		fmt.Fprintf(w, "Error:\t%s\n", rec.LastError)
	}
	return w.Flush()
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(c.output, "📦 uberpack v%s\n", c.config.Version)
			return nil
		},
	}
}
