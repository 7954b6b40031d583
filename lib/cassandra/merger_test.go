package cassandra

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/ValentinKolb/kvcollections/lib/codec"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap/engines/pebblemap"
)

func TestMergerWithPebble(t *testing.T) {
	m, err := pebblemap.Open(t.TempDir(), codec.UTF8, rows, &pebblemap.Options{
		Merger: NewMerger(time.Second, nil),
		NoSync: true,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer m.Close()

	row1 := NewRow[string](
		RegularCell[string]{Index: math.MinInt8, Timestamp: 1, Payload: "john doe"},
		RegularCell[string]{Index: math.MaxInt8, Timestamp: 9, Payload: "god"},
	)
	row2 := NewRow[string](RegularCell[string]{Index: math.MaxInt8, Timestamp: 12, Payload: "carlos"})

	if _, err := m.Put("key", row1); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := m.Merge("key", row2); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	got, _, err := m.Get("key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := map[int8]string{math.MinInt8: "john doe", math.MaxInt8: "carlos"}
	if !reflect.DeepEqual(payloads(got), want) {
		t.Errorf("Expected %v, got %v", want, payloads(got))
	}

	// a row tombstone acts like a put for everything it covers
	if err := m.Merge("key", TombstoneRow[string](1, 10)); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	got, _, _ = m.Get("key")
	if want := map[int8]string{math.MaxInt8: "carlos"}; !reflect.DeepEqual(payloads(got), want) || got.IsTombstone() {
		t.Errorf("Expected %v, got %+v", want, got)
	}
}

func TestMergerOperandOrder(t *testing.T) {
	merger := NewMerger(time.Hour, func() time.Time { return time.Unix(0, 0) })
	older := codec.MustMarshal(RawRows, NewRow[[]byte](RegularCell[[]byte]{Index: 1, Timestamp: 1, Payload: []byte("a")}))
	newer := codec.MustMarshal(RawRows, NewRow[[]byte](RegularCell[[]byte]{Index: 1, Timestamp: 1, Payload: []byte("b")}))

	vm, err := merger.Merge(nil, newer)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if err := vm.MergeOlder(older); err != nil {
		t.Fatalf("MergeOlder failed: %v", err)
	}
	out, _, err := vm.Finish(false)
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	row, err := codec.Unmarshal(RawRows, out)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if c, ok := row.Cells[0].(RegularCell[[]byte]); !ok || string(c.Payload) != "b" {
		t.Errorf("Expected the newer operand to win a timestamp tie, got %+v", row.Cells)
	}
}

func TestMergerRejectsGarbage(t *testing.T) {
	merger := NewMerger(time.Second, nil)
	if _, err := merger.Merge(nil, []byte{1, 2}); !errors.Is(err, codec.ErrUnderflow) {
		t.Errorf("Expected ErrUnderflow, got %v", err)
	}
}
