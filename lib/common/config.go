package common

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/kvcollections/lib/cassandra"
	"github.com/ValentinKolb/kvcollections/lib/comparator"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap/engines/levelmap"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap/engines/pebblemap"
	"github.com/ValentinKolb/kvcollections/lib/sequence"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/goccy/go-yaml"
)

// Comparator names accepted in StorageConfig.Comparator.
const (
	ComparatorLengthFirst   = "length-first"
	ComparatorLexicographic = "lexicographic"
)

// Merge operator names accepted in StorageConfig.MergeOperator.
const (
	MergeNone         = "none"
	MergeUInt64Add    = "uint64add"
	MergeStringAppend = "stringappend"
	MergeCassandra    = "cassandra"
)

// --------------------------------------------------------------------------
// Configuration structs
// --------------------------------------------------------------------------

// StorageConfig holds the options of the persistent engines.
type StorageConfig struct {
	Comparator      string        `yaml:"comparator"`
	BlockSize       int           `yaml:"block_size"`
	Compression     bool          `yaml:"compression"`
	Sync            bool          `yaml:"sync"`
	CompactOnClose  bool          `yaml:"compact_on_close"`
	CompactionDelay time.Duration `yaml:"compaction_delay"`
	DeleteBatchSize int           `yaml:"delete_batch_size"` // level only

	// pebble only
	MergeOperator string        `yaml:"merge_operator"`
	AppendSep     string        `yaml:"append_separator"`
	GCGrace       time.Duration `yaml:"gc_grace"`
}

// QueueConfig holds the MapBasedSequence options.
type QueueConfig struct {
	IteratorModeDistance int `yaml:"iterator_mode_distance"`
	DiscardThreshold     int `yaml:"discard_threshold"`
}

// Config is the configuration of the kvc tool.
type Config struct {
	Engine    string            `yaml:"engine"`
	DataDir   string            `yaml:"data_dir"`
	LogLevel  string            `yaml:"log_level"`
	LogLevels map[string]string `yaml:"log_levels"` // per logger overrides of LogLevel
	Storage   StorageConfig     `yaml:"storage"`
	Queue     QueueConfig       `yaml:"queue"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	seq := sequence.DefaultOptions()
	return Config{
		Engine:   string(linkedmap.ImplPebble),
		DataDir:  "./kvc-data",
		LogLevel: "warn",
		Storage: StorageConfig{
			Comparator:      ComparatorLengthFirst,
			BlockSize:       64 * 1024,
			Compression:     true,
			Sync:            true,
			CompactionDelay: 2 * time.Second,
			DeleteBatchSize: 5 * 1024,
			MergeOperator:   MergeUInt64Add,
			AppendSep:       ",",
			GCGrace:         10 * 24 * time.Hour,
		},
		Queue: QueueConfig{
			IteratorModeDistance: seq.IteratorModeDistance,
			DiscardThreshold:     seq.DiscardThreshold,
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. A missing file
// yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate checks that every field holds a supported value.
func (c *Config) Validate() error {
	switch linkedmap.Implementation(c.Engine) {
	case linkedmap.ImplMemory, linkedmap.ImplPebble, linkedmap.ImplLevel:
	default:
		return errors.Newf("invalid engine %q: must be one of memory, pebble, level", c.Engine)
	}
	if c.Engine != string(linkedmap.ImplMemory) && c.DataDir == "" {
		return errors.New("data_dir is required for persistent engines")
	}
	if _, err := componentLevels(c.LogLevel, c.LogLevels); err != nil {
		return err
	}
	if _, err := c.Storage.comparator(); err != nil {
		return err
	}
	switch c.Storage.MergeOperator {
	case MergeNone, MergeUInt64Add, MergeStringAppend, MergeCassandra:
	default:
		return errors.Newf("invalid merge operator %q", c.Storage.MergeOperator)
	}
	if c.Queue.IteratorModeDistance <= 0 || c.Queue.DiscardThreshold <= 0 {
		return errors.New("queue options must be positive")
	}
	return nil
}

// --------------------------------------------------------------------------
// Conversions
// --------------------------------------------------------------------------

func (s *StorageConfig) comparator() (comparator.Comparator, error) {
	switch s.Comparator {
	case "", ComparatorLengthFirst:
		return comparator.LengthFirst, nil
	case ComparatorLexicographic:
		return comparator.Lexicographic, nil
	default:
		return nil, errors.Newf("invalid comparator %q: must be %s or %s", s.Comparator, ComparatorLengthFirst, ComparatorLexicographic)
	}
}

// merger returns the pebble merge operator, nil for MergeNone
func (s *StorageConfig) merger() *pebble.Merger {
	switch s.MergeOperator {
	case MergeUInt64Add:
		return pebblemap.UInt64AddMerger
	case MergeStringAppend:
		return pebblemap.StringAppendMerger(s.AppendSep)
	case MergeCassandra:
		return cassandra.NewMerger(s.GCGrace, nil)
	default:
		return nil
	}
}

// PebbleOptions converts the storage config to pebblemap options.
func (c *Config) PebbleOptions() *pebblemap.Options {
	cmp, _ := c.Storage.comparator()
	return &pebblemap.Options{
		Comparator:      cmp,
		Merger:          c.Storage.merger(),
		BlockSize:       c.Storage.BlockSize,
		NoCompression:   !c.Storage.Compression,
		NoSync:          !c.Storage.Sync,
		CompactOnClose:  c.Storage.CompactOnClose,
		CompactionDelay: c.Storage.CompactionDelay,
	}
}

// LevelOptions converts the storage config to levelmap options.
func (c *Config) LevelOptions() *levelmap.Options {
	cmp, _ := c.Storage.comparator()
	return &levelmap.Options{
		Comparator:      cmp,
		BlockSize:       c.Storage.BlockSize,
		NoCompression:   !c.Storage.Compression,
		NoSync:          !c.Storage.Sync,
		DeleteBatchSize: c.Storage.DeleteBatchSize,
		CompactOnClose:  c.Storage.CompactOnClose,
		CompactionDelay: c.Storage.CompactionDelay,
	}
}

// SequenceOptions converts the queue config to sequence options.
func (c *Config) SequenceOptions() sequence.Options {
	return sequence.Options{
		IteratorModeDistance: c.Queue.IteratorModeDistance,
		DiscardThreshold:     c.Queue.DiscardThreshold,
	}
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("General")
	addField("Engine", c.Engine)
	addField("Data Directory", c.DataDir)
	addField("Log Level", c.LogLevel)
	if len(c.LogLevels) > 0 {
		names := make([]string, 0, len(c.LogLevels))
		for name := range c.LogLevels {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			addField("Log Level ("+name+")", c.LogLevels[name])
		}
	}

	if c.Engine != string(linkedmap.ImplMemory) {
		addSection("Storage")
		addField("Comparator", c.Storage.Comparator)
		addField("Block Size", fmt.Sprintf("%d bytes", c.Storage.BlockSize))
		addField("Compression", strconv.FormatBool(c.Storage.Compression))
		addField("Sync Writes", strconv.FormatBool(c.Storage.Sync))
		addField("Compact On Close", strconv.FormatBool(c.Storage.CompactOnClose))
		addField("Compaction Delay", c.Storage.CompactionDelay.String())
		if c.Engine == string(linkedmap.ImplLevel) {
			addField("Delete Batch Size", strconv.Itoa(c.Storage.DeleteBatchSize))
		} else {
			addField("Merge Operator", c.Storage.MergeOperator)
			if c.Storage.MergeOperator == MergeCassandra {
				addField("GC Grace", c.Storage.GCGrace.String())
			}
		}
	}

	addSection("Queue")
	addField("Iterator Mode Distance", strconv.Itoa(c.Queue.IteratorModeDistance))
	addField("Discard Threshold", strconv.Itoa(c.Queue.DiscardThreshold))
	return sb.String()
}
