package testing

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
)

// MapFactory opens a map at dir. Calling it twice with the same dir must
// reopen the same storage for persistent engines.
type MapFactory func(dir string) linkedmap.LinkedMap[string, int64]

// RunLinkedMapTests runs the conformance suite for a LinkedMap engine.
func RunLinkedMapTests(t *testing.T, name string, factory MapFactory) {
	open := func(t *testing.T) linkedmap.LinkedMap[string, int64] {
		return factory(t.TempDir())
	}

	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, open(t))
		})

		t.Run("IsEmpty", func(t *testing.T) {
			testIsEmpty(t, open(t))
		})

		t.Run("FirstLastKey", func(t *testing.T) {
			testFirstLastKey(t, open(t))
		})

		t.Run("LastKeyWithPrefix", func(t *testing.T) {
			testLastKeyWithPrefix(t, open(t))
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, open(t))
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, open(t))
		})

		t.Run("PutAll", func(t *testing.T) {
			testPutAll(t, open(t))
		})

		t.Run("RemoveRange", func(t *testing.T) {
			testRemoveRange(t, open(t))
		})

		t.Run("Merge", func(t *testing.T) {
			testMerge(t, open(t))
		})

		t.Run("LengthFirstOrder", func(t *testing.T) {
			testLengthFirstOrder(t, open(t))
		})

		t.Run("IteratorFrom", func(t *testing.T) {
			testIteratorFrom(t, open(t))
		})

		t.Run("IteratorFromMixedLengths", func(t *testing.T) {
			testIteratorFromMixedLengths(t, open(t))
		})

		t.Run("IteratorPeek", func(t *testing.T) {
			testIteratorPeek(t, open(t))
		})

		t.Run("IteratorMutation", func(t *testing.T) {
			testIteratorMutation(t, open(t))
		})

		t.Run("WriteBatch", func(t *testing.T) {
			testWriteBatch(t, open(t))
		})

		t.Run("WriteBatchDiscard", func(t *testing.T) {
			testWriteBatchDiscard(t, open(t))
		})

		t.Run("WriteBatchMergeClear", func(t *testing.T) {
			testWriteBatchMergeClear(t, open(t))
		})

		t.Run("Persistence", func(t *testing.T) {
			testPersistence(t, factory)
		})

		t.Run("Destroy", func(t *testing.T) {
			testDestroy(t, factory)
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, open(t))
		})

		t.Run("Synchronized", func(t *testing.T) {
			testSynchronized(t, open(t))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, open(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the map supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, m linkedmap.LinkedMap[string, int64], feature linkedmap.Feature) {
	if !m.SupportsFeature(feature) {
		t.Skip()
	}
}

// fill puts the fixture used by most tests: alf=1, cat=5, ann=2, bot=3, dom=6
func fill(t testing.TB, m linkedmap.LinkedMap[string, int64]) {
	for _, p := range []linkedmap.Pair[string, int64]{
		{Key: "alf", Value: 1},
		{Key: "cat", Value: 5},
		{Key: "ann", Value: 2},
		{Key: "bot", Value: 3},
		{Key: "dom", Value: 6},
	} {
		if _, err := m.Put(p.Key, p.Value); err != nil {
			t.Fatalf("Put(%s) failed: %v", p.Key, err)
		}
	}
}

// collect drains the iterator and closes it
func collect(t testing.TB, it linkedmap.Iterator[string, int64]) []string {
	defer func() {
		if err := it.Close(); err != nil {
			t.Errorf("Iterator close failed: %v", err)
		}
	}()
	var keys []string
	for it.HasNext() {
		p, err := it.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		keys = append(keys, p.Key)
	}
	return keys
}

func keysOf(t testing.TB, m linkedmap.LinkedMap[string, int64]) []string {
	it, err := m.Iterator()
	if err != nil {
		t.Fatalf("Iterator failed: %v", err)
	}
	return collect(t, it)
}

func mustGet(t testing.TB, m linkedmap.LinkedMap[string, int64], key string) (int64, bool) {
	v, ok, err := m.Get(key)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", key, err)
	}
	return v, ok
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()

	size, err := m.Put("key", 42)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if size <= 0 {
		t.Errorf("Expected a positive value size, got %d", size)
	}

	if v, ok := mustGet(t, m, "key"); !ok || v != 42 {
		t.Errorf("Expected 42, got %d (found=%v)", v, ok)
	}

	if _, err := m.Put("key", 43); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if v, _ := mustGet(t, m, "key"); v != 43 {
		t.Errorf("Expected overwritten value 43, got %d", v)
	}

	if _, ok := mustGet(t, m, "missing"); ok {
		t.Errorf("Expected missing key to be absent")
	}

	if _, err := m.Put("", 7); err != nil {
		t.Fatalf("Put with empty key failed: %v", err)
	}
	if v, ok := mustGet(t, m, ""); !ok || v != 7 {
		t.Errorf("Expected empty key to map to 7, got %d (found=%v)", v, ok)
	}
}

func testIsEmpty(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()

	if empty, err := m.IsEmpty(); err != nil || !empty {
		t.Errorf("Expected new map to be empty (err=%v)", err)
	}
	m.Put("x", 1)
	if empty, err := m.IsEmpty(); err != nil || empty {
		t.Errorf("Expected map to be non-empty (err=%v)", err)
	}
	m.Remove("x")
	if empty, err := m.IsEmpty(); err != nil || !empty {
		t.Errorf("Expected map to be empty after Remove (err=%v)", err)
	}
}

func testFirstLastKey(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()

	if _, ok, err := m.FirstKey(); err != nil || ok {
		t.Errorf("Expected no first key on empty map (err=%v)", err)
	}
	if _, ok, err := m.LastKey(); err != nil || ok {
		t.Errorf("Expected no last key on empty map (err=%v)", err)
	}

	fill(t, m)

	if k, ok, err := m.FirstKey(); err != nil || !ok || k != "alf" {
		t.Errorf("Expected first key alf, got %q (found=%v, err=%v)", k, ok, err)
	}
	if k, ok, err := m.LastKey(); err != nil || !ok || k != "dom" {
		t.Errorf("Expected last key dom, got %q (found=%v, err=%v)", k, ok, err)
	}
}

func testLastKeyWithPrefix(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()

	for i, k := range []string{"a1", "a2", "b1", "b22", "a333"} {
		m.Put(k, int64(i))
	}

	cases := map[string]string{"a": "a333", "b": "b22", "b2": "b22", "a1": "a1"}
	for prefix, want := range cases {
		k, ok, err := m.LastKeyWithPrefix(prefix)
		if err != nil || !ok || k != want {
			t.Errorf("LastKeyWithPrefix(%q): expected %q, got %q (found=%v, err=%v)", prefix, want, k, ok, err)
		}
	}

	if k, ok, err := m.LastKeyWithPrefix("z"); err != nil || ok {
		t.Errorf("Expected no key with prefix z, got %q (err=%v)", k, err)
	}
}

func testRemove(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()

	fill(t, m)
	if err := m.Remove("bot"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := mustGet(t, m, "bot"); ok {
		t.Errorf("Expected bot to be removed")
	}
	if v, ok := mustGet(t, m, "cat"); !ok || v != 5 {
		t.Errorf("Expected cat to survive, got %d (found=%v)", v, ok)
	}
	if err := m.Remove("never-there"); err != nil {
		t.Errorf("Removing an absent key should not fail: %v", err)
	}
}

func testClear(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()

	if err := m.Clear(); err != nil {
		t.Fatalf("Clear on empty map failed: %v", err)
	}

	fill(t, m)
	if err := m.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if empty, _ := m.IsEmpty(); !empty {
		t.Errorf("Expected map to be empty after Clear, keys: %v", keysOf(t, m))
	}
	if _, ok := mustGet(t, m, "dom"); ok {
		t.Errorf("Expected last key to be cleared as well")
	}
}

func testPutAll(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()

	pairs := make([]linkedmap.Pair[string, int64], 0, 100)
	for i := 0; i < 100; i++ {
		pairs = append(pairs, linkedmap.PairOf(fmt.Sprintf("k%03d", i), int64(i)))
	}
	if err := m.PutAll(pairs); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}
	for _, p := range pairs {
		if v, ok := mustGet(t, m, p.Key); !ok || v != p.Value {
			t.Errorf("Expected %s=%d, got %d (found=%v)", p.Key, p.Value, v, ok)
		}
	}
	if err := m.PutAll(nil); err != nil {
		t.Errorf("PutAll(nil) failed: %v", err)
	}
}

func testRemoveRange(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()
	requireFeature(t, m, linkedmap.FeatureRemoveRange)

	fill(t, m)
	if err := m.RemoveRange("ann", "cat"); err != nil {
		t.Fatalf("RemoveRange failed: %v", err)
	}
	if got := keysOf(t, m); !equalKeys(got, []string{"alf", "cat", "dom"}) {
		t.Errorf("Expected [alf cat dom], got %v", got)
	}

	// [first, last) keeps the last key
	first, _, _ := m.FirstKey()
	last, _, _ := m.LastKey()
	if err := m.RemoveRange(first, last); err != nil {
		t.Fatalf("RemoveRange failed: %v", err)
	}
	if got := keysOf(t, m); !equalKeys(got, []string{"dom"}) {
		t.Errorf("Expected [dom], got %v", got)
	}

	// many keys, more than one delete batch for the batched engines
	pairs := make([]linkedmap.Pair[string, int64], 0, 12000)
	for i := 0; i < 12000; i++ {
		pairs = append(pairs, linkedmap.PairOf(fmt.Sprintf("r%05d", i), int64(i)))
	}
	if err := m.PutAll(pairs); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}
	if err := m.RemoveRange("r00010", "r11990"); err != nil {
		t.Fatalf("RemoveRange failed: %v", err)
	}
	for _, k := range []string{"r00009", "r11990", "r11999"} {
		if _, ok := mustGet(t, m, k); !ok {
			t.Errorf("Expected %s to survive RemoveRange", k)
		}
	}
	for _, k := range []string{"r00010", "r05000", "r11989"} {
		if _, ok := mustGet(t, m, k); ok {
			t.Errorf("Expected %s to be removed", k)
		}
	}

	// empty and inverted ranges are no-ops
	if err := m.RemoveRange("r11999", "r11999"); err != nil {
		t.Errorf("Empty RemoveRange failed: %v", err)
	}
	if _, ok := mustGet(t, m, "r11999"); !ok {
		t.Errorf("Empty range must not remove its bound")
	}
}

func testMerge(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()

	if !m.SupportsFeature(linkedmap.FeatureMerge) {
		if err := m.Merge("k", 1); !errors.Is(err, linkedmap.ErrUnsupportedOperation) {
			t.Errorf("Expected ErrUnsupportedOperation, got %v", err)
		}
		return
	}

	if err := m.Merge("counter", 100); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if err := m.Merge("counter", 1); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if v, ok := mustGet(t, m, "counter"); !ok || v != 101 {
		t.Errorf("Expected 101 after merges, got %d (found=%v)", v, ok)
	}

	err := m.MergeAll([]linkedmap.Pair[string, int64]{
		{Key: "counter", Value: 9},
		{Key: "other", Value: 3},
		{Key: "other", Value: 4},
	})
	if err != nil {
		t.Fatalf("MergeAll failed: %v", err)
	}
	if v, _ := mustGet(t, m, "counter"); v != 110 {
		t.Errorf("Expected 110, got %d", v)
	}
	if v, _ := mustGet(t, m, "other"); v != 7 {
		t.Errorf("Expected 7, got %d", v)
	}
}

func testLengthFirstOrder(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()

	for i, k := range []string{"alpha", "cat", "a", "b", "dome"} {
		m.Put(k, int64(i))
	}
	want := []string{"a", "b", "cat", "dome", "alpha"}
	if got := keysOf(t, m); !equalKeys(got, want) {
		t.Errorf("Expected length-first order %v, got %v", want, got)
	}
}

func testIteratorFrom(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()

	fill(t, m)

	it, err := m.IteratorFrom("c")
	if err != nil {
		t.Fatalf("IteratorFrom failed: %v", err)
	}
	if p, err := it.Peek(); err != nil || p.Key != "cat" || p.Value != 5 {
		t.Errorf("Expected cat=5, got %v (err=%v)", p, err)
	}
	it.Close()

	it, err = m.IteratorFrom("b")
	if err != nil {
		t.Fatalf("IteratorFrom failed: %v", err)
	}
	first, err := it.Next()
	if err != nil || first.Key != "bot" {
		t.Fatalf("Expected bot, got %v (err=%v)", first, err)
	}
	// keys written after the iterator was opened may or may not be visible,
	// but a key beyond the last key at open time must not appear
	m.Put("zara", 26)
	rest := collect(t, it)
	if !equalKeys(rest, []string{"cat", "dom"}) {
		t.Errorf("Expected [cat dom], got %v", rest)
	}

	it, err = m.IteratorFrom("zzzz")
	if err != nil {
		t.Fatalf("IteratorFrom failed: %v", err)
	}
	if got := collect(t, it); len(got) != 0 {
		t.Errorf("Expected no keys after zzzz, got %v", got)
	}
}

// testIteratorFromMixedLengths uses keys of different lengths, where a plain
// seek to the prefix lands on the first longer key under length-first order.
func testIteratorFromMixedLengths(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()

	for i, k := range []string{"a", "alpha", "b", "cat", "dome"} {
		if _, err := m.Put(k, int64(i)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	cases := []struct {
		prefix string
		want   []string
	}{
		{"c", []string{"cat", "dome", "alpha"}},
		{"al", []string{"alpha"}},
		{"a", []string{"a", "b", "cat", "dome", "alpha"}},
		{"do", []string{"dome", "alpha"}},
		{"x", nil},
	}
	for _, c := range cases {
		it, err := m.IteratorFrom(c.prefix)
		if err != nil {
			t.Fatalf("IteratorFrom(%q) failed: %v", c.prefix, err)
		}
		if got := collect(t, it); !equalKeys(got, c.want) {
			t.Errorf("IteratorFrom(%q): expected %v, got %v", c.prefix, c.want, got)
		}
	}

	if k, ok, err := m.LastKeyWithPrefix("a"); err != nil || !ok || k != "alpha" {
		t.Errorf("LastKeyWithPrefix(a): expected alpha, got %q (found=%v, err=%v)", k, ok, err)
	}
}

func testIteratorPeek(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()

	it, err := m.Iterator()
	if err != nil {
		t.Fatalf("Iterator failed: %v", err)
	}
	if it.HasNext() {
		t.Errorf("Expected empty iterator")
	}
	if _, err := it.Next(); !errors.Is(err, linkedmap.ErrNoSuchElement) {
		t.Errorf("Expected ErrNoSuchElement, got %v", err)
	}
	it.Close()

	fill(t, m)
	it, err = m.Iterator()
	if err != nil {
		t.Fatalf("Iterator failed: %v", err)
	}
	defer it.Close()

	for i := 0; i < 3; i++ {
		p, err := it.Peek()
		if err != nil || p.Key != "alf" {
			t.Errorf("Peek #%d: expected alf, got %v (err=%v)", i, p, err)
		}
	}
	p, _ := it.Next()
	if p.Key != "alf" || p.Value != 1 {
		t.Errorf("Expected alf=1, got %v", p)
	}
	p, _ = it.Peek()
	if p.Key != "ann" {
		t.Errorf("Expected peek after next to return ann, got %v", p)
	}

	var rest []string
	for it.HasNext() {
		p, _ := it.Next()
		rest = append(rest, p.Key)
	}
	if !equalKeys(rest, []string{"ann", "bot", "cat", "dom"}) {
		t.Errorf("Expected [ann bot cat dom], got %v", rest)
	}
	if _, err := it.Peek(); !errors.Is(err, linkedmap.ErrNoSuchElement) {
		t.Errorf("Expected ErrNoSuchElement, got %v", err)
	}
	if err := it.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := it.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

func testIteratorMutation(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()

	for i := 0; i < 200; i++ {
		m.Put(fmt.Sprintf("m%03d", i), int64(i))
	}

	it, err := m.Iterator()
	if err != nil {
		t.Fatalf("Iterator failed: %v", err)
	}
	defer it.Close()

	seen := 0
	for it.HasNext() {
		p, err := it.Next()
		if err != nil {
			t.Fatalf("Next failed during mutation: %v", err)
		}
		seen++
		// remove ahead of the cursor and rewrite behind it
		m.Remove(fmt.Sprintf("m%03d", (p.Value+5)%200))
		m.Put(p.Key, p.Value*2)
	}
	if seen == 0 || seen > 200 {
		t.Errorf("Expected between 1 and 200 pairs, got %d", seen)
	}
}

func testWriteBatch(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()
	requireFeature(t, m, linkedmap.FeatureWriteBatch)

	m.Put("old", 1)

	b, err := m.NewWriteBatch()
	if err != nil {
		t.Fatalf("NewWriteBatch failed: %v", err)
	}
	defer b.Close()

	if _, err := b.Put("a", 1); err != nil {
		t.Fatalf("Batch put failed: %v", err)
	}
	b.Put("b", 2)
	b.Remove("old")

	if _, ok := mustGet(t, m, "a"); ok {
		t.Errorf("Batch writes must not be visible before Commit")
	}

	if err := b.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if got := keysOf(t, m); !equalKeys(got, []string{"a", "b"}) {
		t.Errorf("Expected [a b], got %v", got)
	}

	if _, err := b.Put("c", 3); !errors.Is(err, linkedmap.ErrClosed) {
		t.Errorf("Expected ErrClosed after Commit, got %v", err)
	}
}

func testWriteBatchDiscard(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()
	requireFeature(t, m, linkedmap.FeatureWriteBatch)

	fill(t, m)
	b, err := m.NewWriteBatch()
	if err != nil {
		t.Fatalf("NewWriteBatch failed: %v", err)
	}
	b.Put("new", 1)
	b.Remove("alf")
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := keysOf(t, m); !equalKeys(got, []string{"alf", "ann", "bot", "cat", "dom"}) {
		t.Errorf("Discarded batch modified the map: %v", got)
	}
}

func testWriteBatchMergeClear(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()
	requireFeature(t, m, linkedmap.FeatureWriteBatch)

	fill(t, m)
	b, err := m.NewWriteBatch()
	if err != nil {
		t.Fatalf("NewWriteBatch failed: %v", err)
	}
	defer b.Close()

	if m.SupportsFeature(linkedmap.FeatureBatchMerge) {
		if err := b.Merge("cat", 10); err != nil {
			t.Fatalf("Batch merge failed: %v", err)
		}
	} else if err := b.Merge("cat", 10); !errors.Is(err, linkedmap.ErrUnsupportedOperation) {
		t.Errorf("Expected ErrUnsupportedOperation, got %v", err)
	}

	if m.SupportsFeature(linkedmap.FeatureBatchClear) {
		if err := b.Clear(); err != nil {
			t.Fatalf("Batch clear failed: %v", err)
		}
		b.Put("after", 1)
	} else if err := b.Clear(); !errors.Is(err, linkedmap.ErrUnsupportedOperation) {
		t.Errorf("Expected ErrUnsupportedOperation, got %v", err)
	}

	if err := b.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	switch {
	case m.SupportsFeature(linkedmap.FeatureBatchClear):
		if got := keysOf(t, m); !equalKeys(got, []string{"after"}) {
			t.Errorf("Expected [after], got %v", got)
		}
	case m.SupportsFeature(linkedmap.FeatureBatchMerge):
		if v, _ := mustGet(t, m, "cat"); v != 15 {
			t.Errorf("Expected merged cat=15, got %d", v)
		}
	}
}

func testPersistence(t *testing.T, factory MapFactory) {
	dir := t.TempDir()
	m := factory(dir)
	requireFeature(t, m, linkedmap.FeaturePersistence)

	fill(t, m)
	m.Remove("ann")
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	m = factory(dir)
	defer m.Close()

	if got := keysOf(t, m); !equalKeys(got, []string{"alf", "bot", "cat", "dom"}) {
		t.Errorf("Expected [alf bot cat dom] after reopen, got %v", got)
	}
	if v, _ := mustGet(t, m, "dom"); v != 6 {
		t.Errorf("Expected dom=6 after reopen, got %d", v)
	}
}

func testDestroy(t *testing.T, factory MapFactory) {
	dir := t.TempDir()
	m := factory(dir)
	requireFeature(t, m, linkedmap.FeatureDestroy)

	fill(t, m)
	d, ok := m.(linkedmap.Destroyer)
	if !ok {
		m.Close()
		t.Fatalf("Map reports FeatureDestroy but does not implement Destroyer")
	}
	if err := d.Destroy(); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}

	m = factory(dir)
	defer m.Close()
	if empty, err := m.IsEmpty(); err != nil || !empty {
		t.Errorf("Expected empty map after Destroy, got %v (err=%v)", keysOf(t, m), err)
	}
}

func testClosed(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	fill(t, m)
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
	if _, _, err := m.Get("alf"); !errors.Is(err, linkedmap.ErrClosed) {
		t.Errorf("Expected ErrClosed from Get, got %v", err)
	}
	if _, err := m.Put("x", 1); !errors.Is(err, linkedmap.ErrClosed) {
		t.Errorf("Expected ErrClosed from Put, got %v", err)
	}
	if _, err := m.Iterator(); !errors.Is(err, linkedmap.ErrClosed) {
		t.Errorf("Expected ErrClosed from Iterator, got %v", err)
	}
}

func testSynchronized(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	s := linkedmap.Synchronized(m)
	defer s.Close()

	const workers, perWorker = 8, 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("w%d-%04d", w, i)
				if _, err := s.Put(key, int64(i)); err != nil {
					t.Errorf("Put failed: %v", err)
					return
				}
				if _, ok, err := s.Get(key); err != nil || !ok {
					t.Errorf("Get(%s) failed: found=%v err=%v", key, ok, err)
					return
				}
			}
		}(w)
	}

	// iterate concurrently with the writers
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			it, err := s.Iterator()
			if err != nil {
				t.Errorf("Iterator failed: %v", err)
				return
			}
			for it.HasNext() {
				if _, err := it.Next(); err != nil {
					t.Errorf("Next failed: %v", err)
					break
				}
			}
			it.Close()
		}
	}()
	wg.Wait()

	if got := len(keysOf(t, s)); got != workers*perWorker {
		t.Errorf("Expected %d keys, got %d", workers*perWorker, got)
	}
}

func testInfo(t *testing.T, m linkedmap.LinkedMap[string, int64]) {
	defer m.Close()

	fill(t, m)
	info := m.GetInfo()
	if info.Engine == "" {
		t.Errorf("Expected engine name in info")
	}
	if info.Writes < 5 {
		t.Errorf("Expected at least 5 writes in info, got %d", info.Writes)
	}
	for _, f := range info.SupportedFeatures {
		if !m.SupportsFeature(f) {
			t.Errorf("Info lists %s but SupportsFeature denies it", f)
		}
	}
}
