package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/kvcollections/cmd/info"
	"github.com/ValentinKolb/kvcollections/cmd/kv"
	"github.com/ValentinKolb/kvcollections/cmd/queue"
	"github.com/ValentinKolb/kvcollections/cmd/row"
	"github.com/ValentinKolb/kvcollections/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kvc",
		Short: "ordered key-value collections",
		Long: fmt.Sprintf(`kvc (v%s)

Ordered, typed key-value collections on top of embedded storage engines
(memory, pebble, leveldb), with a persistent FIFO queue and a
wide-column row format with a reconciling merge operator.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvc",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kvc v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(queue.QueueCommands)
	RootCmd.AddCommand(row.RowCommands)
	RootCmd.AddCommand(info.InfoCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupStoreFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
