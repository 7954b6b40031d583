package common

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/kvcollections/lib/comparator"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap/engines/pebblemap"
	"github.com/lni/dragonboat/v4/logger"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	if cfg.PebbleOptions().Merger != pebblemap.UInt64AddMerger {
		t.Errorf("Expected the uint64 add merger by default")
	}
	if cfg.LevelOptions().Comparator != comparator.LengthFirst {
		t.Errorf("Expected the length-first comparator by default")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvc.yaml")
	data := `
engine: level
data_dir: /tmp/kvc
log_level: debug
log_levels:
  pebblemap: error
storage:
  comparator: lexicographic
  sync: false
  compaction_delay: 500ms
  delete_batch_size: 100
queue:
  iterator_mode_distance: 16
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Engine != "level" || cfg.DataDir != "/tmp/kvc" || cfg.LogLevel != "debug" {
		t.Errorf("Unexpected general settings: %+v", cfg)
	}
	if cfg.LogLevels["pebblemap"] != "error" {
		t.Errorf("Expected pebblemap log level override, got %v", cfg.LogLevels)
	}
	opts := cfg.LevelOptions()
	if opts.Comparator != comparator.Lexicographic || !opts.NoSync || opts.DeleteBatchSize != 100 {
		t.Errorf("Unexpected level options: %+v", opts)
	}
	if opts.CompactionDelay != 500*time.Millisecond {
		t.Errorf("Expected compaction delay 500ms, got %s", opts.CompactionDelay)
	}
	// fields missing in the file keep their defaults
	if cfg.Queue.IteratorModeDistance != 16 || cfg.Queue.DiscardThreshold != DefaultConfig().Queue.DiscardThreshold {
		t.Errorf("Unexpected queue options: %+v", cfg.Queue)
	}
	if opts.NoCompression {
		t.Errorf("Expected compression to stay enabled")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Engine != DefaultConfig().Engine {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"engine":     func(c *Config) { c.Engine = "rocks" },
		"data dir":   func(c *Config) { c.DataDir = "" },
		"log level":  func(c *Config) { c.LogLevel = "loud" },
		"comparator": func(c *Config) { c.Storage.Comparator = "reverse" },
		"merger":     func(c *Config) { c.Storage.MergeOperator = "max" },
		"queue":      func(c *Config) { c.Queue.DiscardThreshold = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Engine, cfg.DataDir = "memory", ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Memory engine needs no data dir: %v", err)
	}
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	out := cfg.String()
	for _, want := range []string{"GENERAL", "STORAGE", "QUEUE", "Merge Operator", "uint64add"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := &kvcLogger{name: "test", level: logger.WARNING, logger: log.New(&buf, "", 0)}

	l.Infof("hidden")
	l.Warningf("shown %d", 1)
	if got := buf.String(); got != "WARN  | test            | shown 1\n" {
		t.Errorf("Unexpected log output %q", got)
	}

	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Errorf("Expected an error for an unknown level")
	}
	if lvl, _ := ParseLogLevel("WARN"); lvl != logger.WARNING {
		t.Errorf("Expected WARNING, got %v", lvl)
	}
}

func TestComponentLevels(t *testing.T) {
	levels, err := componentLevels("warn", map[string]string{"pebblemap": "debug", "sequence": "ERROR"})
	if err != nil {
		t.Fatalf("componentLevels failed: %v", err)
	}
	if levels["pebblemap"] != logger.DEBUG || levels["sequence"] != logger.ERROR {
		t.Errorf("Expected overrides to apply, got %v", levels)
	}
	for _, name := range []string{"linkedmap", "memmap", "levelmap", "cassandra", "cli"} {
		if levels[name] != logger.WARNING {
			t.Errorf("Expected %s to use the base level, got %v", name, levels[name])
		}
	}

	if _, err := componentLevels("warn", map[string]string{"raft": "debug"}); err == nil || !strings.Contains(err.Error(), "pebblemap") {
		t.Errorf("Expected unknown logger error listing the known names, got %v", err)
	}
	if _, err := componentLevels("warn", map[string]string{"memmap": "loud"}); err == nil {
		t.Errorf("Expected an error for an invalid override level")
	}

	cfg := DefaultConfig()
	cfg.LogLevels = map[string]string{"nope": "info"}
	if err := cfg.Validate(); err == nil {
		t.Errorf("Expected Validate to reject an unknown logger")
	}
	if err := InitLoggers("info", map[string]string{"cli": "debug"}); err != nil {
		t.Errorf("InitLoggers failed: %v", err)
	}
}
