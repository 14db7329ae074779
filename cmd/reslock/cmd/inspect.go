package cmd

import (
	"fmt"
	"time"

	"github.com/ezraisw/reslock/locker/redsync"
	"github.com/spf13/cobra"
)

// inspectCmd shows who holds a distributed lock
var inspectCmd = &cobra.Command{
	Use:   "inspect [id]",
	Short: "Show the owner of a distributed lock",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	id := args[0]

	stack, err := newStack()
	if err != nil {
		return err
	}
	defer stack.Close()

	l, ok := stack.Exclusive.(*redsync.Locker)
	if !ok {
		return fmt.Errorf("inspect requires the redsync backend")
	}

	owner, err := l.Inspect(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to inspect lock: %w", err)
	}

	if owner == nil {
		fmt.Printf("locked=false\n")
		return nil
	}

	fmt.Printf("locked=true, token=%s, host=%s, pid=%d, acquiredAt=%s\n",
		owner.Token, owner.Host, owner.PID, owner.AcquiredAt.Format(time.RFC3339))
	return nil
}
