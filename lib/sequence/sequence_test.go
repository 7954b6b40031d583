package sequence

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/ValentinKolb/kvcollections/lib/codec"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap/engines/levelmap"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap/engines/memmap"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap/engines/pebblemap"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

type mapFactory func(t *testing.T, dir string) linkedmap.LinkedMap[int64, string]

var engines = map[string]mapFactory{
	"MemMap": func(t *testing.T, _ string) linkedmap.LinkedMap[int64, string] {
		m, err := memmap.New(memmap.Options[int64, string]{Compare: cmp.Compare[int64]})
		if err != nil {
			t.Fatalf("memmap.New failed: %v", err)
		}
		return m
	},
	"PebbleMap": func(t *testing.T, dir string) linkedmap.LinkedMap[int64, string] {
		m, err := pebblemap.Open(dir, codec.Int64, codec.UTF8, &pebblemap.Options{NoSync: true})
		if err != nil {
			t.Fatalf("pebblemap.Open failed: %v", err)
		}
		return m
	},
	"LevelMap": func(t *testing.T, dir string) linkedmap.LinkedMap[int64, string] {
		m, err := levelmap.Open(dir, codec.Int64, codec.UTF8, &levelmap.Options{NoSync: true})
		if err != nil {
			t.Fatalf("levelmap.Open failed: %v", err)
		}
		return m
	},
}

// forEachEngine runs test once per map engine
func forEachEngine(t *testing.T, test func(t *testing.T, open func() linkedmap.LinkedMap[int64, string])) {
	for name, factory := range engines {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			test(t, func() linkedmap.LinkedMap[int64, string] {
				m := factory(t, dir)
				t.Cleanup(func() { m.Close() })
				return m
			})
		})
	}
}

func newSequence(t *testing.T, m linkedmap.LinkedMap[int64, string], opts Options) *Sequence[string] {
	s, err := New(m, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func items(from, to int) []string {
	var out []string
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf("item-%d", i))
	}
	return out
}

func popN(t *testing.T, s Queue[string], n int) []string {
	var out []string
	for i := 0; i < n; i++ {
		v, ok, err := s.Pop()
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		if !ok {
			t.Fatalf("Pop %d: queue unexpectedly empty", i)
		}
		out = append(out, v)
	}
	return out
}

func expectItems(t *testing.T, got, want []string) {
	t.Helper()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestFIFO(t *testing.T) {
	forEachEngine(t, func(t *testing.T, open func() linkedmap.LinkedMap[int64, string]) {
		s := newSequence(t, open(), DefaultOptions())
		for _, v := range []string{"1", "2", "3"} {
			if err := s.Add(v); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
		}
		if v, ok, _ := s.Peek(); !ok || v != "1" {
			t.Errorf("Expected peek 1, got %q (%v)", v, ok)
		}
		expectItems(t, popN(t, s, 3), []string{"1", "2", "3"})

		if empty, _ := s.IsEmpty(); !empty {
			t.Errorf("Expected empty queue")
		}
		if _, ok, _ := s.Pop(); ok {
			t.Errorf("Expected Pop on empty queue to return nothing")
		}
	})
}

func TestModeSwitch(t *testing.T) {
	forEachEngine(t, func(t *testing.T, open func() linkedmap.LinkedMap[int64, string]) {
		s := newSequence(t, open(), Options{IteratorModeDistance: 4, DiscardThreshold: 100})

		s.AddAll(items(1, 4))
		if s.Mode() != ModeDirect {
			t.Errorf("Expected direct mode at backlog 4, got %s", s.Mode())
		}
		s.Add("item-5")
		if s.Mode() != ModeCursor {
			t.Errorf("Expected cursor mode at backlog 5, got %s", s.Mode())
		}

		expectItems(t, popN(t, s, 5), items(1, 5))
		if s.Mode() != ModeDirect {
			t.Errorf("Expected direct mode after draining, got %s", s.Mode())
		}
	})
}

func TestDirtyCursorIsReopened(t *testing.T) {
	forEachEngine(t, func(t *testing.T, open func() linkedmap.LinkedMap[int64, string]) {
		s := newSequence(t, open(), Options{IteratorModeDistance: 2, DiscardThreshold: 100})

		s.AddAll(items(1, 5))
		expectItems(t, popN(t, s, 3), items(1, 3))

		// the open cursor does not see these items
		s.AddAll(items(6, 8))
		if s.state != cursorDirty {
			t.Errorf("Expected dirty cursor after add")
		}
		expectItems(t, popN(t, s, 5), items(4, 8))

		if empty, _ := s.IsEmpty(); !empty {
			t.Errorf("Expected empty queue")
		}
	})
}

func TestAddToIdleQueue(t *testing.T) {
	forEachEngine(t, func(t *testing.T, open func() linkedmap.LinkedMap[int64, string]) {
		s := newSequence(t, open(), Options{IteratorModeDistance: 1, DiscardThreshold: 100})

		s.AddAll(items(1, 3))
		popN(t, s, 3)

		s.AddAll(items(4, 6))
		if v, ok, err := s.Peek(); err != nil || !ok || v != "item-4" {
			t.Errorf("Expected peek item-4, got %q %v %v", v, ok, err)
		}
		expectItems(t, popN(t, s, 3), items(4, 6))
	})
}

func TestDiscardThreshold(t *testing.T) {
	forEachEngine(t, func(t *testing.T, open func() linkedmap.LinkedMap[int64, string]) {
		m := open()
		s := newSequence(t, m, Options{IteratorModeDistance: 100, DiscardThreshold: 3})

		s.AddAll(items(1, 10))
		popN(t, s, 3)
		if k, _, _ := m.FirstKey(); k != 1 {
			t.Errorf("Expected consumed items to be kept, first key %d", k)
		}

		popN(t, s, 1)
		if k, _, _ := m.FirstKey(); k != 5 {
			t.Errorf("Expected first key 5 after discard, got %d", k)
		}

		// the next discard starts where the previous one ended
		popN(t, s, 4)
		if k, _, _ := m.FirstKey(); k != 9 {
			t.Errorf("Expected first key 9 after second discard, got %d", k)
		}
	})
}

func TestCloseDiscardsAndReopenContinues(t *testing.T) {
	forEachEngine(t, func(t *testing.T, open func() linkedmap.LinkedMap[int64, string]) {
		m := open()
		s := newSequence(t, m, DefaultOptions())
		s.AddAll(items(1, 5))
		popN(t, s, 2)
		if err := s.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if _, _, err := s.Pop(); !errors.Is(err, linkedmap.ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
		if k, _, _ := m.FirstKey(); k != 3 {
			t.Errorf("Expected consumed items to be removed on close, first key %d", k)
		}

		s = newSequence(t, m, DefaultOptions())
		if s.Len() != 3 {
			t.Errorf("Expected 3 items after reopen, got %d", s.Len())
		}
		s.Add("item-6")
		expectItems(t, popN(t, s, 4), append(items(3, 5), "item-6"))
	})
}

func TestPersistence(t *testing.T) {
	for _, name := range []string{"PebbleMap", "LevelMap"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			m := engines[name](t, dir)
			s := newSequence(t, m, Options{IteratorModeDistance: 2, DiscardThreshold: 2})
			s.AddAll(items(1, 6))
			popN(t, s, 2)
			s.Close()
			m.Close()

			m = engines[name](t, dir)
			defer m.Close()
			s = newSequence(t, m, DefaultOptions())
			defer s.Close()
			expectItems(t, popN(t, s, 4), items(3, 6))
		})
	}
}

func TestClear(t *testing.T) {
	forEachEngine(t, func(t *testing.T, open func() linkedmap.LinkedMap[int64, string]) {
		m := open()
		s := newSequence(t, m, Options{IteratorModeDistance: 1, DiscardThreshold: 100})
		s.AddAll(items(1, 5))
		popN(t, s, 1)

		if err := s.Clear(); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if empty, _ := m.IsEmpty(); !empty {
			t.Errorf("Expected empty map after Clear")
		}
		if s.Len() != 0 || s.Mode() != ModeDirect {
			t.Errorf("Expected reset state, got len %d mode %s", s.Len(), s.Mode())
		}

		s.Add("fresh")
		if _, ok, _ := m.Get(1); !ok {
			t.Errorf("Expected numbering to restart at 1")
		}
		expectItems(t, popN(t, s, 1), []string{"fresh"})
	})
}

func TestSequenceExhausted(t *testing.T) {
	m, _ := memmap.New(memmap.Options[int64, string]{Compare: cmp.Compare[int64]})
	m.Put(math.MaxInt64-3, "last")
	s := newSequence(t, m, DefaultOptions())

	if err := s.AddAll([]string{"a", "b", "c"}); !errors.Is(err, linkedmap.ErrSequenceExhausted) {
		t.Errorf("Expected ErrSequenceExhausted, got %v", err)
	}
	if err := s.AddAll([]string{"a", "b"}); err != nil {
		t.Fatalf("AddAll failed: %v", err)
	}
	if err := s.Add("c"); !errors.Is(err, linkedmap.ErrSequenceExhausted) {
		t.Errorf("Expected ErrSequenceExhausted, got %v", err)
	}

	// reads keep working
	expectItems(t, popN(t, s, 3), []string{"last", "a", "b"})
}

func TestInvalidOptions(t *testing.T) {
	m, _ := memmap.New(memmap.Options[int64, string]{Compare: cmp.Compare[int64]})
	for _, opts := range []Options{{IteratorModeDistance: 0, DiscardThreshold: 1}, {IteratorModeDistance: 1, DiscardThreshold: -1}} {
		if _, err := New(m, opts); !errors.Is(err, linkedmap.ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument for %+v, got %v", opts, err)
		}
	}
}

func TestSynchronized(t *testing.T) {
	m, _ := memmap.New(memmap.Options[int64, string]{Compare: cmp.Compare[int64]})
	s := Synchronized[string](newSequence(t, m, Options{IteratorModeDistance: 8, DiscardThreshold: 16}))
	defer s.Close()

	const producers, perProducer = 4, 100
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := s.Add(fmt.Sprintf("%d-%d", p, i)); err != nil {
					t.Errorf("Add failed: %v", err)
					return
				}
			}
		}(p)
	}

	seen := make(map[string]bool)
	var mu sync.Mutex
	var consumers sync.WaitGroup
	done := make(chan struct{})
	for c := 0; c < 2; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				v, ok, err := s.Pop()
				if err != nil {
					t.Errorf("Pop failed: %v", err)
					return
				}
				if ok {
					mu.Lock()
					if seen[v] {
						t.Errorf("Item %s popped twice", v)
					}
					seen[v] = true
					mu.Unlock()
					continue
				}
				select {
				case <-done:
					return
				default:
				}
			}
		}()
	}

	wg.Wait()
	close(done)
	consumers.Wait()

	for {
		v, ok, _ := s.Pop()
		if !ok {
			break
		}
		seen[v] = true
	}
	if len(seen) != producers*perProducer {
		t.Errorf("Expected %d items, got %d", producers*perProducer, len(seen))
	}
}
