package row

import (
	"math"
	"testing"

	"github.com/ValentinKolb/kvcollections/lib/cassandra"
)

func TestParseCell(t *testing.T) {
	c, err := parseCell("3:1700000000000000:a:b")
	if err != nil {
		t.Fatalf("Failed to parse cell: %v", err)
	}
	want := cassandra.RegularCell[string]{Index: 3, Timestamp: 1700000000000000, Payload: "a:b"}
	if c != want {
		t.Errorf("Expected %+v, got %+v", want, c)
	}

	for _, invalid := range []string{"", "1:2", "200:1:x", "1:abc:x"} {
		if _, err := parseCell(invalid); err == nil {
			t.Errorf("Expected error for %q", invalid)
		}
	}
}

func TestParseExpiringCell(t *testing.T) {
	c, err := parseExpiringCell("-128:5:60:payload")
	if err != nil {
		t.Fatalf("Failed to parse cell: %v", err)
	}
	want := cassandra.ExpiringCell[string]{Index: math.MinInt8, Timestamp: 5, TTL: 60, Payload: "payload"}
	if c != want {
		t.Errorf("Expected %+v, got %+v", want, c)
	}
}

func TestParseTombstones(t *testing.T) {
	c, err := parseTombstoneCell("1:100:200")
	if err != nil {
		t.Fatalf("Failed to parse tombstone: %v", err)
	}
	want := cassandra.TombstoneCell[string]{Index: 1, LocalDeletionTime: 100, MarkedForDeleteAt: 200}
	if c != want {
		t.Errorf("Expected %+v, got %+v", want, c)
	}

	ldt, mfda, err := parseRowTombstone("7:9")
	if err != nil || ldt != 7 || mfda != 9 {
		t.Errorf("Expected 7, 9, got %d, %d (%v)", ldt, mfda, err)
	}
	if _, _, err := parseRowTombstone("7"); err == nil {
		t.Error("Expected error for row tombstone without mfda")
	}
}

func TestSortCells(t *testing.T) {
	cells := sortCells([]cassandra.Cell[string]{
		cassandra.RegularCell[string]{Index: 5},
		cassandra.TombstoneCell[string]{Index: -3},
		cassandra.RegularCell[string]{Index: 0},
	})
	for i, want := range []int8{-3, 0, 5} {
		if cells[i].Column() != want {
			t.Errorf("Expected column %d at %d, got %d", want, i, cells[i].Column())
		}
	}
}
