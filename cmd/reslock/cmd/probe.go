package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ezraisw/reslock"
	"github.com/spf13/cobra"
)

var (
	probeCount int

	// probeCmd measures how long it takes to get a lock
	probeCmd = &cobra.Command{
		Use:   "probe [id]",
		Short: "Acquire and release a write lock, reporting the wait",
		Args:  cobra.ExactArgs(1),
		RunE:  runProbe,
	}
)

func init() {
	probeCmd.Flags().IntVar(&probeCount, "count", 1, "number of probes")
}

func runProbe(cmd *cobra.Command, args []string) error {
	id := args[0]

	stack, err := newStack()
	if err != nil {
		return err
	}
	defer stack.Close()

	for i := 0; i < probeCount; i++ {
		start := time.Now()
		var waited time.Duration

		err := stack.Locker.WithWriteLock(cmd.Context(), id, func(context.Context, reslock.MaintainFunc) error {
			waited = time.Since(start)
			return nil
		})
		if err != nil {
			return fmt.Errorf("probe %d failed: %w", i, err)
		}

		fmt.Printf("probe=%d waited=%s total=%s\n", i, waited, time.Since(start))
	}

	return nil
}
