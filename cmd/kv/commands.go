package kv

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	"github.com/spf13/cobra"
)

var (
	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(cmd, args[1])
			if err != nil {
				return err
			}
			n, err := kvMap.Put(args[0], value)
			if err != nil {
				return err
			}
			fmt.Printf("put successfully (%d bytes)\n", n)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value, ok, err := kvMap.Get(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, value=%s\n", key, ok, formatValue(cmd, value))
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvMap.Remove(args[0]); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	mergeCmd = &cobra.Command{
		Use:   "merge [key] [value]",
		Short: "Merges a value into a key with the configured merge operator",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(cmd, args[1])
			if err != nil {
				return err
			}
			if err := kvMap.Merge(args[0], value); err != nil {
				return err
			}
			fmt.Println("merge successfully")
			return nil
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan [prefix]",
		Short: "Prints all pairs in key order, starting at the first key >= prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			var it linkedmap.Iterator[string, []byte]
			var err error
			if len(args) == 1 {
				it, err = kvMap.IteratorFrom(args[0])
			} else {
				it, err = kvMap.Iterator()
			}
			if err != nil {
				return err
			}
			defer it.Close()

			count := 0
			for it.HasNext() && (limit <= 0 || count < limit) {
				p, err := it.Next()
				if err != nil {
					return err
				}
				fmt.Printf("%s=%s\n", p.Key, formatValue(cmd, p.Value))
				count++
			}
			fmt.Printf("(%d pairs)\n", count)
			return it.Close()
		},
	}
	delRangeCmd = &cobra.Command{
		Use:   "delrange [from] [to]",
		Short: "Deletes all keys in [from, to), the upper bound is kept",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvMap.RemoveRange(args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("range deleted successfully")
			return nil
		},
	}
	firstCmd = &cobra.Command{
		Use:   "first",
		Short: "Prints the smallest key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printKey(kvMap.FirstKey())
		},
	}
	lastCmd = &cobra.Command{
		Use:   "last [prefix]",
		Short: "Prints the greatest key, or the greatest key starting with prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return printKey(kvMap.LastKeyWithPrefix(args[0]))
			}
			return printKey(kvMap.LastKey())
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Deletes all keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvMap.Clear(); err != nil {
				return err
			}
			fmt.Println("cleared successfully")
			return nil
		},
	}
)

func printKey(key string, ok bool, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("key=%s, found=%v\n", key, ok)
	return nil
}

// parseValue encodes arg as an 8 byte integer if --int is set
func parseValue(cmd *cobra.Command, arg string) ([]byte, error) {
	if asInt, _ := cmd.Flags().GetBool("int"); !asInt {
		return []byte(arg), nil
	}
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("value must be a number: %w", err)
	}
	return binary.BigEndian.AppendUint64(nil, uint64(n)), nil
}

func formatValue(cmd *cobra.Command, value []byte) string {
	if asInt, _ := cmd.Flags().GetBool("int"); asInt && len(value) == 8 {
		return strconv.FormatInt(int64(binary.BigEndian.Uint64(value)), 10)
	}
	return string(value)
}
