package memmap

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/kvcollections/lib/comparator"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	lmtesting "github.com/ValentinKolb/kvcollections/lib/linkedmap/testing"
)

func compareStrings(a, b string) int {
	return comparator.CompareBytes([]byte(a), []byte(b))
}

func newTestMap(string) linkedmap.LinkedMap[string, int64] {
	m, err := New(Options[string, int64]{
		Compare:     compareStrings,
		PrefixMatch: strings.HasPrefix,
		MergeFn:     func(old, new int64) int64 { return old + new },
	})
	if err != nil {
		panic(err)
	}
	return m
}

func Test(t *testing.T) {
	lmtesting.RunLinkedMapTests(t, "MemMap", newTestMap)
}

func Benchmark(b *testing.B) {
	lmtesting.RunLinkedMapBenchmarks(b, "MemMap", newTestMap)
}
