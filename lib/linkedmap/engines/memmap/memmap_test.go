package memmap

import (
	"cmp"
	"errors"
	"testing"

	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
)

func TestRequiresCompare(t *testing.T) {
	if _, err := New(Options[int, int]{}); !errors.Is(err, linkedmap.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument without Compare, got %v", err)
	}
}

func TestDefaultMergeReplaces(t *testing.T) {
	m, _ := New(Options[int, string]{Compare: cmp.Compare[int]})
	defer m.Close()

	m.Put(1, "old")
	if err := m.Merge(1, "new"); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if v, _, _ := m.Get(1); v != "new" {
		t.Errorf("Expected default merge to keep the replacement, got %q", v)
	}
}

func TestDefaultPrefixMatchSeeks(t *testing.T) {
	m, _ := New(Options[int, int]{Compare: cmp.Compare[int]})
	defer m.Close()

	for _, k := range []int{10, 20, 30, 40} {
		m.Put(k, k)
	}
	it, err := m.IteratorFrom(25)
	if err != nil {
		t.Fatalf("IteratorFrom failed: %v", err)
	}
	defer it.Close()

	var got []int
	for it.HasNext() {
		p, _ := it.Next()
		got = append(got, p.Key)
	}
	if len(got) != 2 || got[0] != 30 || got[1] != 40 {
		t.Errorf("Expected [30 40], got %v", got)
	}
}

func TestLastKeyAfterRemovingLast(t *testing.T) {
	m, _ := New(Options[int, int]{Compare: cmp.Compare[int]})
	defer m.Close()

	for k := 1; k <= 5; k++ {
		m.Put(k, k)
	}
	m.Remove(5)
	if k, ok, _ := m.LastKey(); !ok || k != 4 {
		t.Errorf("Expected last key 4, got %d (found=%v)", k, ok)
	}
	m.RemoveRange(3, 100)
	if k, ok, _ := m.LastKey(); !ok || k != 2 {
		t.Errorf("Expected last key 2, got %d (found=%v)", k, ok)
	}
	m.Put(9, 9)
	if k, _, _ := m.LastKey(); k != 9 {
		t.Errorf("Expected last key 9, got %d", k)
	}
	m.Clear()
	if _, ok, _ := m.LastKey(); ok {
		t.Errorf("Expected no last key after Clear")
	}
}

func TestIteratorCloseStopsEarly(t *testing.T) {
	m, _ := New(Options[int, int]{Compare: cmp.Compare[int]})
	defer m.Close()

	for k := 0; k < 100; k++ {
		m.Put(k, k)
	}
	it, _ := m.Iterator()
	it.Next()
	if err := it.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if it.HasNext() {
		t.Errorf("Closed iterator must not report more elements")
	}
	if _, err := it.Next(); !errors.Is(err, linkedmap.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
