package row

import (
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/ValentinKolb/kvcollections/cmd/util"
	"github.com/ValentinKolb/kvcollections/lib/cassandra"
	"github.com/ValentinKolb/kvcollections/lib/codec"
	"github.com/ValentinKolb/kvcollections/lib/common"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var (
	cfg  *common.Config
	rows = cassandra.RowCodec(codec.UTF8)

	// RowCommands represents the row command group
	RowCommands = &cobra.Command{
		Use:   "row",
		Short: "Encode, decode and merge wide-column rows",
		Long: `Encode, decode and merge wide-column rows.

Rows are printed and read as hex strings. Timestamps are microseconds,
local deletion times and ttls are seconds since the epoch.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err = util.Setup(cmd)
			return err
		},
	}
	encodeCmd = &cobra.Command{
		Use:   "encode",
		Short: "Encodes a row from cell flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			row, err := rowFromFlags(cmd)
			if err != nil {
				return err
			}
			data, err := codec.Marshal(rows, row)
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(data))
			return nil
		},
	}
	decodeCmd = &cobra.Command{
		Use:   "decode [hex]",
		Short: "Decodes and prints a row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := decodeRow(args[0])
			if err != nil {
				return err
			}
			printRow(row)
			return nil
		},
	}
	mergeCmd = &cobra.Command{
		Use:   "merge [hex]...",
		Short: "Reconciles rows (oldest first) and prints the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			operands := make([]cassandra.Row[string], 0, len(args))
			for _, arg := range args {
				row, err := decodeRow(arg)
				if err != nil {
					return err
				}
				operands = append(operands, row)
			}

			purge, _ := cmd.Flags().GetBool("purge")
			gcGrace := cfg.Storage.GCGrace
			if cmd.Flags().Changed("gc-grace") {
				gcGrace, _ = cmd.Flags().GetDuration("gc-grace")
			}
			merged := cassandra.Reconcile(operands, time.Now(), gcGrace, purge)

			data, err := codec.Marshal(rows, merged)
			if err != nil {
				return err
			}
			printRow(merged)
			fmt.Println(hex.EncodeToString(data))
			return nil
		},
	}
)

func init() {
	RowCommands.AddCommand(encodeCmd)
	RowCommands.AddCommand(decodeCmd)
	RowCommands.AddCommand(mergeCmd)

	encodeCmd.Flags().StringArray("cell", nil, util.WrapString("Regular cell as column:timestamp:payload (repeatable)"))
	encodeCmd.Flags().StringArray("expiring", nil, util.WrapString("Expiring cell as column:timestamp:ttl:payload (repeatable)"))
	encodeCmd.Flags().StringArray("tombstone", nil, util.WrapString("Deleted cell as column:ldt:mfda (repeatable)"))
	encodeCmd.Flags().String("row-tombstone", "", util.WrapString("Encode a row tombstone ldt:mfda instead of cells"))

	mergeCmd.Flags().Bool("purge", false, util.WrapString("Drop tombstones older than the gc grace period (like a full compaction)"))
	mergeCmd.Flags().Duration("gc-grace", 0, util.WrapString("Grace period before tombstones can be purged (default from config)"))
}

func rowFromFlags(cmd *cobra.Command) (cassandra.Row[string], error) {
	if rt, _ := cmd.Flags().GetString("row-tombstone"); rt != "" {
		ldt, mfda, err := parseRowTombstone(rt)
		if err != nil {
			return cassandra.Row[string]{}, err
		}
		return cassandra.TombstoneRow[string](ldt, mfda), nil
	}

	var cells []cassandra.Cell[string]
	for flag, parse := range map[string]func(string) (cassandra.Cell[string], error){
		"cell":      parseCell,
		"expiring":  parseExpiringCell,
		"tombstone": parseTombstoneCell,
	} {
		values, _ := cmd.Flags().GetStringArray(flag)
		for _, v := range values {
			c, err := parse(v)
			if err != nil {
				return cassandra.Row[string]{}, err
			}
			cells = append(cells, c)
		}
	}
	if len(cells) == 0 {
		return cassandra.Row[string]{}, errors.New("a row needs at least one cell or --row-tombstone")
	}
	return cassandra.NewRow(sortCells(cells)...), nil
}

func decodeRow(s string) (cassandra.Row[string], error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return cassandra.Row[string]{}, errors.Wrap(err, "row must be hex encoded")
	}
	return codec.Unmarshal(rows, data)
}

func printRow(row cassandra.Row[string]) {
	if row.IsTombstone() {
		fmt.Printf("row tombstone: ldt=%d mfda=%d\n", row.LocalDeletionTime, row.MarkedForDeleteAt)
	}
	for _, c := range row.Cells {
		switch c := c.(type) {
		case cassandra.RegularCell[string]:
			fmt.Printf("%4d  regular    ts=%d  %q\n", c.Index, c.Timestamp, c.Payload)
		case cassandra.ExpiringCell[string]:
			fmt.Printf("%4d  expiring   ts=%d  ttl=%d (expires %s)  %q\n", c.Index, c.Timestamp, c.TTL,
				time.Unix(c.ExpiresAt(), 0).UTC().Format(time.RFC3339), c.Payload)
		case cassandra.TombstoneCell[string]:
			mfda := fmt.Sprint(c.MarkedForDeleteAt)
			if c.MarkedForDeleteAt == math.MinInt64 {
				mfda = "none"
			}
			fmt.Printf("%4d  tombstone  ldt=%d  mfda=%s\n", c.Index, c.LocalDeletionTime, mfda)
		}
	}
	fmt.Printf("(%d cells, last modified %d)\n", len(row.Cells), row.LastModified())
}
