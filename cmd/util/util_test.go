package util

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/ValentinKolb/kvcollections/lib/common"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	"github.com/spf13/viper"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("Line exceeds %d characters: %q", Wrap, line)
		}
	}
	if WrapString("short text") != "short text" {
		t.Error("Expected short text to stay on one line")
	}
}

func TestGetConfigOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	viper.Set("engine", "memory")
	viper.Set("data-dir", dir)
	viper.Set("no-sync", true)

	cfg, err := GetConfig()
	if err != nil {
		t.Fatalf("Failed to get config: %v", err)
	}
	if cfg.Engine != "memory" || cfg.DataDir != dir {
		t.Errorf("Expected overrides to apply, got %s %s", cfg.Engine, cfg.DataDir)
	}
	if cfg.Storage.Sync {
		t.Error("Expected no-sync to disable sync")
	}
	if cfg.Storage.Comparator != common.ComparatorLengthFirst {
		t.Errorf("Expected default comparator, got %s", cfg.Storage.Comparator)
	}

	viper.Set("engine", "bogus")
	if _, err := GetConfig(); err == nil {
		t.Error("Expected invalid engine to be rejected")
	}
}

func TestOpenKV(t *testing.T) {
	for _, engine := range []linkedmap.Implementation{linkedmap.ImplMemory, linkedmap.ImplPebble, linkedmap.ImplLevel} {
		t.Run(string(engine), func(t *testing.T) {
			cfg := common.DefaultConfig()
			cfg.Engine = string(engine)
			cfg.DataDir = t.TempDir()
			cfg.Storage.Sync = false

			m, err := OpenKV(&cfg)
			if err != nil {
				t.Fatalf("Failed to open kv: %v", err)
			}
			defer m.Close()

			if _, err := m.Put("b", []byte("2")); err != nil {
				t.Fatalf("Failed to put: %v", err)
			}
			if _, err := m.Put("aa", []byte("1")); err != nil {
				t.Fatalf("Failed to put: %v", err)
			}
			// length-first: "b" sorts before "aa"
			first, ok, err := m.FirstKey()
			if err != nil || !ok || first != "b" {
				t.Errorf("Expected first key b, got %q (%v, %v)", first, ok, err)
			}
			if engine != linkedmap.ImplMemory {
				if want := filepath.Join(cfg.DataDir, "kv"); m.GetInfo().Location != want {
					t.Errorf("Expected location %s, got %s", want, m.GetInfo().Location)
				}
			}
		})
	}
}

func TestOpenQueue(t *testing.T) {
	cfg := common.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Storage.Sync = false

	seq, m, err := OpenQueue(&cfg)
	if err != nil {
		t.Fatalf("Failed to open queue: %v", err)
	}
	if err := seq.AddAll([]string{"a", "b"}); err != nil {
		t.Fatalf("Failed to add: %v", err)
	}
	item, ok, err := seq.Pop()
	if err != nil || !ok || item != "a" {
		t.Errorf("Expected a, got %q (%v, %v)", item, ok, err)
	}
	if err := seq.Close(); err != nil {
		t.Fatalf("Failed to close queue: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Failed to close map: %v", err)
	}

	seq, m, err = OpenQueue(&cfg)
	if err != nil {
		t.Fatalf("Failed to reopen queue: %v", err)
	}
	defer m.Close()
	if seq.Len() != 1 {
		t.Errorf("Expected 1 item after reopen, got %d", seq.Len())
	}
}
