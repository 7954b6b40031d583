package util

import (
	"cmp"
	"path/filepath"
	"strings"

	"github.com/ValentinKolb/kvcollections/lib/codec"
	"github.com/ValentinKolb/kvcollections/lib/common"
	"github.com/ValentinKolb/kvcollections/lib/comparator"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap/engines/levelmap"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap/engines/memmap"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap/engines/pebblemap"
	"github.com/ValentinKolb/kvcollections/lib/sequence"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

var log = logger.GetLogger("cli")

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// SetupStoreFlags adds the flags that select and tune the local store
func SetupStoreFlags(cmd *cobra.Command) {
	key := "config"
	cmd.PersistentFlags().String(key, "", WrapString("Path to a YAML config file. Flags and KVC_* environment variables override it"))

	key = "engine"
	cmd.PersistentFlags().String(key, "pebble", WrapString("Storage engine (memory, pebble, level)"))

	key = "data-dir"
	cmd.PersistentFlags().String(key, "./kvc-data", WrapString("Directory holding the persistent collections"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Log level (debug, info, warn, error)"))

	key = "comparator"
	cmd.PersistentFlags().String(key, common.ComparatorLengthFirst, WrapString("Key order of the persistent engines (length-first, lexicographic). Must match the order the data was written with"))

	key = "merge-operator"
	cmd.PersistentFlags().String(key, common.MergeUInt64Add, WrapString("Merge operator of the pebble engine (none, uint64add, stringappend, cassandra)"))

	key = "no-sync"
	cmd.PersistentFlags().Bool(key, false, WrapString("Do not fsync on every write"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("kvc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetConfig loads the config file and applies flags and environment
// variables on top of it
func GetConfig() (*common.Config, error) {
	cfg, err := common.LoadConfig(viper.GetString("config"))
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"engine":         &cfg.Engine,
		"data-dir":       &cfg.DataDir,
		"log-level":      &cfg.LogLevel,
		"comparator":     &cfg.Storage.Comparator,
		"merge-operator": &cfg.Storage.MergeOperator,
	}
	for key, field := range overrides {
		if viper.IsSet(key) {
			*field = viper.GetString(key)
		}
	}
	if viper.IsSet("no-sync") {
		cfg.Storage.Sync = !viper.GetBool("no-sync")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// --------------------------------------------------------------------------
// Collections
// --------------------------------------------------------------------------

// OpenMap opens the collection name of the configured engine. Persistent
// collections live in a sub directory of the data dir. compare orders keys
// of the in-memory engine.
func OpenMap[K, V any](cfg *common.Config, name string, keys codec.Codec[K], values codec.Codec[V], compare func(a, b K) int) (linkedmap.LinkedMap[K, V], error) {
	dir := filepath.Join(cfg.DataDir, name)
	log.Debugf("opening %s collection %s", cfg.Engine, dir)

	switch linkedmap.Implementation(cfg.Engine) {
	case linkedmap.ImplMemory:
		return memmap.New(memmap.Options[K, V]{Compare: compare})
	case linkedmap.ImplPebble:
		return pebblemap.Open(dir, keys, values, cfg.PebbleOptions())
	case linkedmap.ImplLevel:
		m, err := levelmap.Open(dir, keys, values, cfg.LevelOptions())
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, errors.Newf("invalid engine %s", cfg.Engine)
	}
}

// StringCompare returns the in-memory order of string keys matching the
// configured comparator
func StringCompare(cfg *common.Config) func(a, b string) int {
	if cfg.Storage.Comparator == common.ComparatorLexicographic {
		return strings.Compare
	}
	return func(a, b string) int {
		return comparator.CompareBytes([]byte(a), []byte(b))
	}
}

// OpenKV opens the key value collection
func OpenKV(cfg *common.Config) (linkedmap.LinkedMap[string, []byte], error) {
	return OpenMap(cfg, "kv", codec.UTF8, codec.Remaining, StringCompare(cfg))
}

// OpenQueue opens the queue collection and the sequence on top of it
func OpenQueue(cfg *common.Config) (*sequence.Sequence[string], linkedmap.LinkedMap[int64, string], error) {
	m, err := OpenMap(cfg, "queue", codec.Int64, codec.UTF8, cmp.Compare[int64])
	if err != nil {
		return nil, nil, err
	}
	seq, err := sequence.New(m, cfg.SequenceOptions())
	if err != nil {
		m.Close()
		return nil, nil, err
	}
	return seq, m, nil
}

// Setup binds the flags of cmd, loads the configuration and initializes the
// loggers. Every command group calls it before opening a collection.
func Setup(cmd *cobra.Command) (*common.Config, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	if err := common.InitLoggers(cfg.LogLevel, cfg.LogLevels); err != nil {
		return nil, err
	}
	return cfg, nil
}
