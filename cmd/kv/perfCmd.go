package kv

import (
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/kvcollections/cmd/util"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the configured engine",
		Long:    "Runs a set of parallel benchmarks against a scratch key range of the kv collection.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// benchmark describes one perf test. prepare runs before the timer starts,
// op is called from every worker with a per-worker counter.
type benchmark struct {
	name    string
	feature linkedmap.Feature
	prepare func(m linkedmap.LinkedMap[string, []byte], keys []string) error
	op      func(m linkedmap.LinkedMap[string, []byte], key string, counter int) error
}

var (
	smallValue = []byte("test")
	one        = binary.BigEndian.AppendUint64(nil, 1)
)

func fill(value []byte) func(linkedmap.LinkedMap[string, []byte], []string) error {
	return func(m linkedmap.LinkedMap[string, []byte], keys []string) error {
		pairs := make([]linkedmap.Pair[string, []byte], len(keys))
		for i, k := range keys {
			pairs[i] = linkedmap.PairOf(k, value)
		}
		return m.PutAll(pairs)
	}
}

func benchmarks() []benchmark {
	largeValue := make([]byte, perfLargeValueSizeKB*1024)

	return []benchmark{
		{
			name: "set",
			op: func(m linkedmap.LinkedMap[string, []byte], key string, _ int) error {
				_, err := m.Put(key, smallValue)
				return err
			},
		},
		{
			name: "set-large",
			op: func(m linkedmap.LinkedMap[string, []byte], key string, _ int) error {
				_, err := m.Put(key, largeValue)
				return err
			},
		},
		{
			name:    "get",
			prepare: fill(smallValue),
			op: func(m linkedmap.LinkedMap[string, []byte], key string, _ int) error {
				_, _, err := m.Get(key)
				return err
			},
		},
		{
			name:    "merge",
			feature: linkedmap.FeatureMerge,
			prepare: fill(binary.BigEndian.AppendUint64(nil, 0)),
			op: func(m linkedmap.LinkedMap[string, []byte], key string, _ int) error {
				return m.Merge(key, one)
			},
		},
		{
			name:    "scan",
			prepare: fill(smallValue),
			op: func(m linkedmap.LinkedMap[string, []byte], _ string, _ int) error {
				it, err := m.IteratorFrom(perfKeyPrefix)
				if err != nil {
					return err
				}
				for i := 0; i < 10 && it.HasNext(); i++ {
					if _, err := it.Next(); err != nil {
						it.Close()
						return err
					}
				}
				return it.Close()
			},
		},
		{
			name:    "delete",
			prepare: fill(smallValue),
			op: func(m linkedmap.LinkedMap[string, []byte], key string, _ int) error {
				return m.Remove(key)
			},
		},
		{
			name:    "mixed",
			prepare: fill(smallValue),
			op: func(m linkedmap.LinkedMap[string, []byte], key string, counter int) error {
				var err error
				switch counter % 4 {
				case 0: // set
					_, err = m.Put(key, smallValue)
				case 1: // get
					_, _, err = m.Get(key)
				case 2: // delete
					err = m.Remove(key)
				case 3: // first key
					_, _, err = m.FirstKey()
				}
				return err
			},
		},
	}
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for kvc")

	info := kvMap.GetInfo()
	fmt.Println()
	fmt.Printf("Engine:  %s\n", info.Engine)
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	// the engines assume one writer, the workers share one synchronized map
	m := linkedmap.Synchronized(kvMap)

	results := make(map[string]testing.BenchmarkResult)
	for _, bm := range benchmarks() {
		if shouldSkip(bm.name) || (bm.feature != 0 && !m.SupportsFeature(bm.feature)) {
			results[bm.name] = testing.BenchmarkResult{}
			printResult(bm.name, testing.BenchmarkResult{})
			continue
		}
		result := testing.Benchmark(func(b *testing.B) {
			runBenchmark(b, m, bm)
		})
		results[bm.name] = result
		printResult(bm.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, string(info.Engine)); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

func runBenchmark(b *testing.B, m linkedmap.LinkedMap[string, []byte], bm benchmark) {
	keys := getKeys(bm.name)

	if bm.prepare != nil {
		if err := bm.prepare(m, keys); err != nil {
			log.Errorf("(%s) - error preparing keys: %v", bm.name, err)
		}
	}

	// cleanup
	b.Cleanup(func() {
		if err := m.RemoveRange(keys[0], keys[len(keys)-1]); err != nil {
			log.Errorf("(%s) - error deleting keys: %v", bm.name, err)
		}
		if err := m.Remove(keys[len(keys)-1]); err != nil {
			log.Errorf("(%s) - error deleting key: %v", bm.name, err)
		}
	})

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			if err := bm.op(m, keys[counter%len(keys)], counter); err != nil {
				log.Errorf("(%s) - error performing operation: %v", bm.name, err)
			}
			counter++
		}
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// getKeys creates the sorted test keys of one benchmark. All keys have the
// same length, so their order is the same under every comparator.
func getKeys(prefix string) []string {
	keys := make([]string, perfKeySpread)
	width := len(strconv.Itoa(perfKeySpread))
	for i := range keys {
		keys[i] = fmt.Sprintf("%s-%s-%0*d", perfKeyPrefix, prefix, width, i)
	}
	return keys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, engine string) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Engine", "Comparator", "MergeOperator",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			engine,
			viper.GetString("comparator"),
			viper.GetString("merge-operator"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
