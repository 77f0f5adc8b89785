package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/uberpack/uberpack/internal/engine"
	"github.com/uberpack/uberpack/pkg/notifier"
	"github.com/uberpack/uberpack/pkg/watcher"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	var settle time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Package, then repackage whenever an input directory changes",
		Long: `Assemble the archive once, then watch the artifact directory and every
dependency directory. A change triggers a full rebuild after the settling
delay. A failed build keeps the watch running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), settle)
		},
	}

	buildFlags(cmd)
	cmd.Flags().Bool(keyNotify, false, "show desktop notifications")
	cmd.Flags().DurationVar(&settle, "settle", watcher.DefaultSettlingDelay, "settling delay before a rebuild")
	cmd.Flags().StringSlice(keyIgnore, nil, "extra base-name globs that never trigger a rebuild")

	return cmd
}

func (c *CLI) runWatch(ctx context.Context, settle time.Duration) error {
	cfg, root, err := c.loadPackagerConfig()
	if err != nil {
		return err
	}

	log := c.newLogger(cfg)
	asm, err := c.newAssembler(cfg, root, log)
	if err != nil {
		return err
	}

	registry, err := watcher.NewRegistry(log)
	if err != nil {
		return err
	}
	defer registry.Close()
	registry.SetSettlingDelay(settle)
	if extra := c.viper.GetStringSlice(keyIgnore); len(extra) > 0 {
		registry.SetIgnore(append(append([]string(nil), watcher.DefaultIgnore...), extra...))
	}

	// A nil *PackageNotifier must not become a non-nil interface
	var notes engine.Notifier
	if cfg.NotificationsEnabled() {
		notes = notifier.New(notifier.FromTypes(cfg.Notifications), log)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.console.Info(fmt.Sprintf("Starting uberpack v%s", c.config.Version))

	e := engine.New(asm, registry, notes, cfg.ArchivePath(), log)
	if err := e.Start(ctx); err != nil {
		return err
	}

	stats := e.Stats()
	c.console.Success(fmt.Sprintf("Stopped after %d runs (%d failed)", stats.Runs, stats.Failures))
	return nil
}
