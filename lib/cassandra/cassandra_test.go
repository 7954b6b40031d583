package cassandra

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/ValentinKolb/kvcollections/lib/codec"
)

var rows = RowCodec(codec.UTF8)

func TestRowRoundTrip(t *testing.T) {
	cases := []Row[string]{
		NewRow[string](RegularCell[string]{Index: 5, Timestamp: 9, Payload: "x"}),
		NewRow[string](
			RegularCell[string]{Index: math.MinInt8, Timestamp: 1, Payload: "john doe"},
			ExpiringCell[string]{Index: 2, Timestamp: 3, Payload: "", TTL: 60},
			TombstoneCell[string]{Index: math.MaxInt8, LocalDeletionTime: 100, MarkedForDeleteAt: 200},
		),
		TombstoneRow[string](42, 1000),
	}

	for _, row := range cases {
		data, err := codec.Marshal(rows, row)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		got, err := codec.Unmarshal(rows, data)
		if err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if !reflect.DeepEqual(got, row) {
			t.Errorf("Round trip mismatch: got %+v, want %+v", got, row)
		}
	}
}

func TestCellLayout(t *testing.T) {
	cells := CellCodec(codec.UTF8)

	regular := codec.MustMarshal(cells, Cell[string](RegularCell[string]{Index: 5, Timestamp: 9, Payload: "x"}))
	want := []byte{0, 5, 0, 0, 0, 0, 0, 0, 0, 9, 0, 0, 0, 1, 'x'}
	if !bytes.Equal(regular, want) {
		t.Errorf("Regular cell: got %v, want %v", regular, want)
	}

	expiring := codec.MustMarshal(cells, Cell[string](ExpiringCell[string]{Index: 1, Timestamp: 2, Payload: "", TTL: 3}))
	want = []byte{2, 1, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 3}
	if !bytes.Equal(expiring, want) {
		t.Errorf("Expiring cell: got %v, want %v", expiring, want)
	}

	tomb := codec.MustMarshal(cells, Cell[string](TombstoneCell[string]{Index: -1, LocalDeletionTime: 7, MarkedForDeleteAt: 8}))
	want = []byte{1, 0xff, 0, 0, 0, 7, 0, 0, 0, 0, 0, 0, 0, 8}
	if !bytes.Equal(tomb, want) {
		t.Errorf("Tombstone cell: got %v, want %v", tomb, want)
	}

	empty := codec.MustMarshal(rows, NewRow[string]())
	want = []byte{0x7f, 0xff, 0xff, 0xff, 0x80, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(empty, want) {
		t.Errorf("Empty row: got %v, want %v", empty, want)
	}
}

func TestFlagDispatch(t *testing.T) {
	cells := CellCodec(codec.UTF8)

	// the expiring bit wins over the deleting bit
	data := codec.MustMarshal(cells, Cell[string](ExpiringCell[string]{Index: 1, Timestamp: 2, Payload: "p", TTL: 3}))
	data[0] = byte(FlagExpiring | FlagDeleting)
	c, err := codec.Unmarshal(cells, data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, ok := c.(ExpiringCell[string]); !ok {
		t.Errorf("Expected ExpiringCell, got %T", c)
	}

	data[0] = byte(FlagHasEmptyValue)
	_, err = codec.Unmarshal(cells, data)
	if !errors.Is(err, codec.ErrUnknownFormat) {
		t.Errorf("Expected ErrUnknownFormat, got %v", err)
	}
	var ufe *codec.UnknownFormatError
	if !errors.As(err, &ufe) || ufe.Flag != int(FlagHasEmptyValue) {
		t.Errorf("Expected flag %d in error, got %v", FlagHasEmptyValue, err)
	}
}

func TestTruncatedRow(t *testing.T) {
	data := codec.MustMarshal(rows, NewRow[string](RegularCell[string]{Index: 1, Timestamp: 2, Payload: "payload"}))
	for _, n := range []int{3, 12 + 5, len(data) - 1} {
		if _, err := codec.Unmarshal(rows, data[:n]); !errors.Is(err, codec.ErrUnderflow) {
			t.Errorf("Expected ErrUnderflow for %d bytes, got %v", n, err)
		}
	}
}

func TestIsTombstone(t *testing.T) {
	if NewRow[string]().IsTombstone() {
		t.Errorf("A new row must not be a tombstone")
	}
	if !TombstoneRow[string](0, math.MinInt64+1).IsTombstone() {
		t.Errorf("markedForDeleteAt above the sentinel must be a tombstone")
	}
	if TombstoneRow[string](0, math.MinInt64).IsTombstone() {
		t.Errorf("markedForDeleteAt equal to the sentinel must not be a tombstone")
	}

	// a literal without deletion metadata is a tombstone at time 0
	literal := Row[string]{Cells: []Cell[string]{RegularCell[string]{Index: 1, Timestamp: 0, Payload: "x"}}}
	if !literal.IsTombstone() {
		t.Errorf("Expected a zero MarkedForDeleteAt to be a tombstone")
	}
	if got := NewRow(literal.Cells...); got.IsTombstone() || len(got.Cells) != 1 {
		t.Errorf("Expected NewRow to build a live row, got %+v", got)
	}
}

// --------------------------------------------------------------------------
// Reconciliation
// --------------------------------------------------------------------------

func payloads(row Row[string]) map[int8]string {
	out := make(map[int8]string)
	for _, c := range row.Cells {
		if r, ok := c.(RegularCell[string]); ok {
			out[r.Index] = r.Payload
		}
	}
	return out
}

func TestReconcileNewestWins(t *testing.T) {
	row1 := NewRow[string](
		RegularCell[string]{Index: math.MinInt8, Timestamp: 1, Payload: "john doe"},
		RegularCell[string]{Index: math.MaxInt8, Timestamp: 9, Payload: "god"},
	)
	row2 := NewRow[string](RegularCell[string]{Index: math.MaxInt8, Timestamp: 12, Payload: "carlos"})

	got := Reconcile([]Row[string]{row1, row2}, time.Now(), time.Second, true)
	want := map[int8]string{math.MinInt8: "john doe", math.MaxInt8: "carlos"}
	if !reflect.DeepEqual(payloads(got), want) {
		t.Errorf("Expected %v, got %v", want, payloads(got))
	}
	if got.Cells[0].Column() != math.MinInt8 {
		t.Errorf("Expected cells ordered by index, got %+v", got.Cells)
	}

	// an older write arriving later does not win
	got = Reconcile([]Row[string]{row2, row1}, time.Now(), time.Second, true)
	if !reflect.DeepEqual(payloads(got), want) {
		t.Errorf("Expected %v, got %v", want, payloads(got))
	}
}

func TestReconcileRowTombstone(t *testing.T) {
	live := NewRow[string](
		RegularCell[string]{Index: 1, Timestamp: 5, Payload: "old"},
		RegularCell[string]{Index: 2, Timestamp: 10, Payload: "edge"},
		RegularCell[string]{Index: 3, Timestamp: 20, Payload: "new"},
	)

	got := Reconcile([]Row[string]{live, TombstoneRow[string](100, 10)}, time.Now(), time.Second, true)
	if got.IsTombstone() {
		t.Errorf("Merged row must not be a tombstone")
	}
	if want := map[int8]string{3: "new"}; !reflect.DeepEqual(payloads(got), want) {
		t.Errorf("Expected %v, got %v", want, payloads(got))
	}

	got = Reconcile([]Row[string]{live, TombstoneRow[string](100, 50)}, time.Now(), time.Second, true)
	if !got.IsTombstone() || got.MarkedForDeleteAt != 50 || len(got.Cells) != 0 {
		t.Errorf("Expected the tombstone to survive, got %+v", got)
	}
}

func TestReconcileExpiryAndPurge(t *testing.T) {
	now := time.Unix(1_000, 0)
	row := NewRow[string](
		ExpiringCell[string]{Index: 1, Timestamp: 100 * 1_000_000, Payload: "gone", TTL: 10},
		ExpiringCell[string]{Index: 2, Timestamp: 995 * 1_000_000, Payload: "alive", TTL: 10},
		TombstoneCell[string]{Index: 3, LocalDeletionTime: 999, MarkedForDeleteAt: 1},
	)

	got := Reconcile([]Row[string]{row}, now, 5*time.Second, false)
	if len(got.Cells) != 3 {
		t.Fatalf("Expected 3 cells, got %+v", got.Cells)
	}
	tomb, ok := got.Cells[0].(TombstoneCell[string])
	if !ok || tomb.LocalDeletionTime != 110 || tomb.MarkedForDeleteAt != 100*1_000_000 {
		t.Errorf("Expected expired cell to become a tombstone, got %+v", got.Cells[0])
	}

	// a full merge drops tombstone cells older than the grace period
	got = Reconcile([]Row[string]{row}, now, 5*time.Second, true)
	if len(got.Cells) != 2 {
		t.Fatalf("Expected 2 cells after purge, got %+v", got.Cells)
	}
	if got.Cells[0].Column() != 2 || got.Cells[1].Column() != 3 {
		t.Errorf("Unexpected cells after purge: %+v", got.Cells)
	}
}
