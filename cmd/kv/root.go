package kv

import (
	"github.com/ValentinKolb/kvcollections/cmd/util"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var log = logger.GetLogger("cli")

var (
	kvMap linkedmap.LinkedMap[string, []byte]

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform operations on the ordered key-value collection",
		PersistentPreRunE:  openKV,
		PersistentPostRunE: closeKV,
	}
)

func init() {
	KeyValueCommands.AddCommand(putCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(mergeCmd)
	KeyValueCommands.AddCommand(scanCmd)
	KeyValueCommands.AddCommand(delRangeCmd)
	KeyValueCommands.AddCommand(firstCmd)
	KeyValueCommands.AddCommand(lastCmd)
	KeyValueCommands.AddCommand(clearCmd)
	KeyValueCommands.AddCommand(perfTestCmd)

	for _, cmd := range []*cobra.Command{getCmd, mergeCmd, scanCmd, putCmd} {
		cmd.Flags().Bool("int", false, util.WrapString("Treat values as 8 byte big-endian integers (for the uint64add merge operator)"))
	}
	scanCmd.Flags().Int("limit", 0, util.WrapString("Maximum number of pairs to print (0 = all)"))
}

// openKV opens the key value collection of the configured engine
func openKV(cmd *cobra.Command, _ []string) error {
	cfg, err := util.Setup(cmd)
	if err != nil {
		return err
	}
	kvMap, err = util.OpenKV(cfg)
	return err
}

func closeKV(_ *cobra.Command, _ []string) error {
	if kvMap == nil {
		return nil
	}
	return kvMap.Close()
}
