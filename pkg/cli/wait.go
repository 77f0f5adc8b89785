package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/uberpack/uberpack/pkg/state"
)

func (c *CLI) newWaitCmd() *cobra.Command {
	var timeout, pollInterval time.Duration

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait for the next package run to finish",
		Long: `Block until a package run started elsewhere, typically by 'uberpack watch',
records its outcome. Succeeds only when that run reached DONE, so scripts can
edit inputs and then wait for a usable archive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWait(cmd.Context(), timeout, pollInterval)
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 5*time.Minute, "give up after this long (0 waits forever)")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 500*time.Millisecond, "how often to read the run record")

	return cmd
}

func (c *CLI) runWait(ctx context.Context, timeout, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", pollInterval)
	}

	root, err := c.projectRoot()
	if err != nil {
		return err
	}
	store := state.NewStore(joinState(root))

	// Only a record with a different run id counts as the next run
	previous := ""
	rec, err := store.Load()
	switch {
	case err == nil:
		previous = rec.RunID
	case !errors.Is(err, state.ErrNoRecord):
		return err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c.console.Info("Waiting for the next run to finish")
	rec, err = waitForRun(ctx, store, previous, pollInterval)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s waiting for a run", timeout)
	}
	if err != nil {
		return err
	}

	if !rec.Usable() {
		return fmt.Errorf("run %s ended %s: %s", rec.RunID, rec.State, rec.LastError)
	}
	c.console.Success(fmt.Sprintf("Run %s finished in %s: %s",
		rec.RunID, rec.Duration.Round(time.Millisecond), rec.ArchivePath))
	return nil
}

// waitForRun polls the store until it holds a run other than previous
func waitForRun(ctx context.Context, store *state.Store, previous string, pollInterval time.Duration) (*state.RunRecord, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			rec, err := store.Load()
			if errors.Is(err, state.ErrNoRecord) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if rec.RunID != previous {
				return rec, nil
			}
		}
	}
}
