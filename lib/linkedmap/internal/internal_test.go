package internal

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/kvcollections/lib/codec"
	"github.com/ValentinKolb/kvcollections/lib/comparator"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	"github.com/lni/dragonboat/v4/logger"
)

// sliceCursor is a Cursor over pre-encoded pairs
type sliceCursor struct {
	keys, values [][]byte
	pos          int
	closed       bool
	err          error
}

func (c *sliceCursor) Valid() bool   { return c.pos < len(c.keys) }
func (c *sliceCursor) Key() []byte   { return c.keys[c.pos] }
func (c *sliceCursor) Value() []byte { return c.values[c.pos] }
func (c *sliceCursor) Next() bool    { c.pos++; return c.Valid() }
func (c *sliceCursor) Close() error  { c.closed = true; return c.err }

func newCursor(pairs ...any) *sliceCursor {
	c := &sliceCursor{}
	for i := 0; i < len(pairs); i += 2 {
		c.keys = append(c.keys, []byte(pairs[i].(string)))
		c.values = append(c.values, codec.MustMarshal(codec.Int64, pairs[i+1].(int64)))
	}
	return c
}

func TestDecodingIterator(t *testing.T) {
	cur := newCursor("a", int64(1), "b", int64(2))
	it := Decoding(cur, codec.UTF8, codec.Int64)

	p, err := it.Peek()
	if err != nil || p.Key != "a" || p.Value != 1 {
		t.Fatalf("Expected a=1, got %v (err=%v)", p, err)
	}
	if cur.pos != 1 {
		t.Errorf("Peek should decode one entry ahead, cursor at %d", cur.pos)
	}
	it.Next()
	p, _ = it.Next()
	if p.Key != "b" || p.Value != 2 {
		t.Errorf("Expected b=2, got %v", p)
	}
	if it.HasNext() {
		t.Errorf("Expected exhausted iterator")
	}
	if _, err := it.Next(); !errors.Is(err, linkedmap.ErrNoSuchElement) {
		t.Errorf("Expected ErrNoSuchElement, got %v", err)
	}
	if err := it.Close(); err != nil || !cur.closed {
		t.Errorf("Expected cursor to be closed (err=%v)", err)
	}
}

func TestSkipUntil(t *testing.T) {
	// length-first order: a seek to "c" lands on "alf"
	cur := newCursor("alf", int64(1), "cat", int64(2), "cow", int64(3), "dome", int64(4))
	SkipUntil(cur, []byte("c"), comparator.HasPrefix)
	if !cur.Valid() || string(cur.Key()) != "cat" {
		t.Fatalf("Expected cursor at cat, got pos %d", cur.pos)
	}

	// an already matching position is kept
	SkipUntil(cur, []byte("c"), comparator.HasPrefix)
	if string(cur.Key()) != "cat" {
		t.Errorf("Expected cursor to stay at cat, got %s", cur.Key())
	}

	SkipUntil(cur, []byte("x"), comparator.HasPrefix)
	if cur.Valid() {
		t.Errorf("Expected exhausted cursor, got pos %d", cur.pos)
	}
}

func TestDecodingErrorSurfaces(t *testing.T) {
	cur := newCursor("a", int64(1))
	cur.keys = append(cur.keys, []byte("b"))
	cur.values = append(cur.values, []byte{1, 2}) // truncated int64

	it := Decoding(cur, codec.UTF8, codec.Int64)
	if _, err := it.Next(); err != nil {
		t.Fatalf("First entry should decode: %v", err)
	}
	if _, err := it.Next(); !errors.Is(err, codec.ErrUnderflow) {
		t.Errorf("Expected underflow, got %v", err)
	}
	if err := it.Close(); !errors.Is(err, codec.ErrUnderflow) {
		t.Errorf("Expected Close to report the decode error, got %v", err)
	}
}

func TestCloseReportsCursorError(t *testing.T) {
	cur := newCursor()
	cur.err = errors.New("disk on fire")
	it := Decoding(cur, codec.UTF8, codec.Int64)
	if err := it.Close(); err == nil {
		t.Errorf("Expected cursor error from Close")
	}
	if err := it.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
}

func TestCompactorMergesRanges(t *testing.T) {
	var mu sync.Mutex
	var calls [][2]string
	done := make(chan struct{}, 1)

	c := StartCompactor("test", comparator.Lexicographic, 20*time.Millisecond, logger.GetLogger("test"),
		func(start, end []byte) error {
			mu.Lock()
			calls = append(calls, [2]string{string(start), string(end)})
			mu.Unlock()
			done <- struct{}{}
			return nil
		})
	defer c.Stop()

	c.Schedule([]byte("c"), []byte("d"))
	c.Schedule([]byte("a"), []byte("b"))
	c.Schedule([]byte("b"), []byte("f"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Compaction did not run")
	}

	// runs is counted after the compact function returns
	deadline := time.Now().Add(2 * time.Second)
	for c.Runs() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 || calls[0] != [2]string{"a", "f"} {
		t.Errorf("Expected one compaction of [a, f), got %v", calls)
	}
	if c.Runs() != 1 || c.Pending() {
		t.Errorf("Expected one run and nothing pending, got runs=%d pending=%v", c.Runs(), c.Pending())
	}
}
