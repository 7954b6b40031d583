package queue

import (
	"fmt"
	"strconv"

	"github.com/ValentinKolb/kvcollections/cmd/util"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	"github.com/ValentinKolb/kvcollections/lib/sequence"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var (
	seq      *sequence.Sequence[string]
	queueMap linkedmap.LinkedMap[int64, string]

	// QueueCommands represents the queue command group
	QueueCommands = &cobra.Command{
		Use:                "queue",
		Short:              "Perform operations on the persistent FIFO queue",
		PersistentPreRunE:  openQueue,
		PersistentPostRunE: closeQueue,
	}
	pushCmd = &cobra.Command{
		Use:   "push [item]...",
		Short: "Appends items to the tail of the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := seq.AddAll(args); err != nil {
				return err
			}
			fmt.Printf("pushed %d items\n", len(args))
			return nil
		},
	}
	popCmd = &cobra.Command{
		Use:   "pop [n]",
		Short: "Removes and prints up to n items from the head of the queue (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 1
			if len(args) == 1 {
				var err error
				if n, err = strconv.Atoi(args[0]); err != nil || n < 1 {
					return errors.Newf("n must be a positive number, got %q", args[0])
				}
			}
			for i := 0; i < n; i++ {
				item, ok, err := seq.Pop()
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("(queue is empty)")
					break
				}
				fmt.Println(item)
			}
			return nil
		},
	}
	peekCmd = &cobra.Command{
		Use:   "peek",
		Short: "Prints the head of the queue without removing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			item, ok, err := seq.Peek()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("(queue is empty)")
				return nil
			}
			fmt.Println(item)
			return nil
		},
	}
	lenCmd = &cobra.Command{
		Use:   "len",
		Short: "Prints the number of queued items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(seq.Len())
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Removes all items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := seq.Clear(); err != nil {
				return err
			}
			fmt.Println("cleared successfully")
			return nil
		},
	}
)

func init() {
	QueueCommands.AddCommand(pushCmd)
	QueueCommands.AddCommand(popCmd)
	QueueCommands.AddCommand(peekCmd)
	QueueCommands.AddCommand(lenCmd)
	QueueCommands.AddCommand(clearCmd)
}

func openQueue(cmd *cobra.Command, _ []string) error {
	cfg, err := util.Setup(cmd)
	if err != nil {
		return err
	}
	seq, queueMap, err = util.OpenQueue(cfg)
	return err
}

// closeQueue discards consumed items before the map is closed
func closeQueue(_ *cobra.Command, _ []string) error {
	if seq == nil {
		return nil
	}
	return errors.CombineErrors(seq.Close(), queueMap.Close())
}
