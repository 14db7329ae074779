package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ezraisw/reslock"
	"github.com/spf13/cobra"
)

var (
	holdMode string
	holdFor  time.Duration

	// holdCmd keeps a lock until the duration elapses or the process is interrupted
	holdCmd = &cobra.Command{
		Use:   "hold [id]",
		Short: "Hold a lock on a resource",
		Long:  "Hold a read or write lock on a resource, for example during manual maintenance. The lock is released on timeout or interrupt.",
		Args:  cobra.ExactArgs(1),
		RunE:  runHold,
	}
)

func init() {
	holdCmd.Flags().StringVar(&holdMode, "mode", "write", "lock mode (read, write)")
	holdCmd.Flags().DurationVar(&holdFor, "for", 30*time.Second, "how long to hold the lock")
}

func runHold(cmd *cobra.Command, args []string) error {
	id := args[0]

	stack, err := newStack()
	if err != nil {
		return err
	}
	defer stack.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Maintain well within the expiration window.
	interval := v.GetDuration("expiration") / 3
	if interval <= 0 {
		interval = time.Second
	}

	fn := func(ctx context.Context, maintain reslock.MaintainFunc) error {
		fmt.Printf("holding %s lock on %s\n", holdMode, id)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		deadline := time.After(holdFor)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-deadline:
				return nil
			case <-ticker.C:
				maintain()
			}
		}
	}

	switch holdMode {
	case "read":
		err = stack.Locker.WithReadLock(ctx, id, fn)
	case "write":
		err = stack.Locker.WithWriteLock(ctx, id, fn)
	default:
		return fmt.Errorf("invalid mode %s", holdMode)
	}
	if err != nil {
		return fmt.Errorf("failed to hold lock: %w", err)
	}

	fmt.Printf("released %s\n", id)
	return nil
}
