package info

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ValentinKolb/kvcollections/cmd/util"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	"github.com/spf13/cobra"
)

// InfoCmd prints the configuration, the state of the kv collection and the
// process metrics
var InfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print configuration, collection info and metrics",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func init() {
	InfoCmd.Flags().StringArray("property", nil, util.WrapString("Engine property to print (level engine only, e.g. leveldb.stats)"))
	InfoCmd.Flags().Bool("metrics", false, util.WrapString("Print the metrics in Prometheus text format"))
}

// propertyReader is implemented by engines that expose internal properties
type propertyReader interface {
	Property(name string) (string, error)
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := util.Setup(cmd)
	if err != nil {
		return err
	}
	fmt.Print(cfg.String())

	m, err := util.OpenKV(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	info, err := json.MarshalIndent(m.GetInfo(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("\nCollection:\n%s\n", info)

	properties, _ := cmd.Flags().GetStringArray("property")
	if pr, ok := m.(propertyReader); ok {
		for _, name := range properties {
			value, err := pr.Property(name)
			if err != nil {
				return err
			}
			fmt.Printf("\n%s:\n%s\n", name, value)
		}
	} else if len(properties) > 0 {
		return linkedmap.Unsupported(m.GetInfo().Engine, "property")
	}

	if showMetrics, _ := cmd.Flags().GetBool("metrics"); showMetrics {
		fmt.Println()
		linkedmap.WriteMetrics(os.Stdout)
	}
	return nil
}
