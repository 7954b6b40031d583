package testing

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
)

// RunLinkedMapBenchmarks runs all benchmarks for a LinkedMap engine.
// Parallel benchmarks share one map through linkedmap.Synchronized.
func RunLinkedMapBenchmarks(b *testing.B, name string, factory MapFactory) {
	open := func(b *testing.B) linkedmap.LinkedMap[string, int64] {
		return factory(b.TempDir())
	}

	b.Run("Put", func(b *testing.B) {
		benchmarkPut(b, open(b))
	})

	b.Run("PutParallel", func(b *testing.B) {
		benchmarkPutParallel(b, open(b))
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, open(b))
	})

	b.Run("GetParallel", func(b *testing.B) {
		benchmarkGetParallel(b, open(b))
	})

	b.Run("Merge", func(b *testing.B) {
		benchmarkMerge(b, open(b))
	})

	b.Run("Iterate", func(b *testing.B) {
		benchmarkIterate(b, open(b))
	})

	b.Run("RemoveRange", func(b *testing.B) {
		benchmarkRemoveRange(b, open(b))
	})

	b.Run("WriteBatch", func(b *testing.B) {
		benchmarkWriteBatch(b, open(b))
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, open(b))
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchKey(i int) string {
	return fmt.Sprintf("bench-key-%08d", i)
}

func prefill(b *testing.B, m linkedmap.LinkedMap[string, int64], n int) {
	pairs := make([]linkedmap.Pair[string, int64], 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, linkedmap.PairOf(benchKey(i), int64(i)))
	}
	if err := m.PutAll(pairs); err != nil {
		b.Fatalf("PutAll failed: %v", err)
	}
}

// Benchmark for Put operation
func benchmarkPut(b *testing.B, m linkedmap.LinkedMap[string, int64]) {
	b.Cleanup(func() {
		m.Close()
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Put(benchKey(i), int64(i))
	}
}

// Parallel benchmarking for Put operation
func benchmarkPutParallel(b *testing.B, m linkedmap.LinkedMap[string, int64]) {
	s := linkedmap.Synchronized(m)
	b.Cleanup(func() {
		s.Close()
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			i := r.Int()
			s.Put(benchKey(i), int64(i))
		}
	})
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, m linkedmap.LinkedMap[string, int64]) {
	b.Cleanup(func() {
		m.Close()
	})

	numKeys := 10000
	prefill(b, m, numKeys)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Get(benchKey(i % numKeys))
	}
}

// Parallel benchmarking for Get operation
func benchmarkGetParallel(b *testing.B, m linkedmap.LinkedMap[string, int64]) {
	s := linkedmap.Synchronized(m)
	b.Cleanup(func() {
		s.Close()
	})

	numKeys := 10000
	prefill(b, s, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			s.Get(benchKey(counter % numKeys))
			counter++
		}
	})
}

// Benchmark for Merge operation
func benchmarkMerge(b *testing.B, m linkedmap.LinkedMap[string, int64]) {
	b.Cleanup(func() {
		m.Close()
	})
	requireFeature(b, m, linkedmap.FeatureMerge)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Merge(benchKey(i%128), 1)
	}
}

// Benchmark for a full scan over 10000 keys
func benchmarkIterate(b *testing.B, m linkedmap.LinkedMap[string, int64]) {
	b.Cleanup(func() {
		m.Close()
	})

	prefill(b, m, 10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		it, err := m.Iterator()
		if err != nil {
			b.Fatalf("Iterator failed: %v", err)
		}
		for it.HasNext() {
			it.Next()
		}
		it.Close()
	}
}

// Benchmark for removing ranges of 100 keys
func benchmarkRemoveRange(b *testing.B, m linkedmap.LinkedMap[string, int64]) {
	b.Cleanup(func() {
		m.Close()
	})
	requireFeature(b, m, linkedmap.FeatureRemoveRange)

	numKeys := b.N * 100
	if numKeys > 1_000_000 {
		numKeys = 1_000_000
	}
	prefill(b, m, numKeys)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		from := (i * 100) % numKeys
		m.RemoveRange(benchKey(from), benchKey(from+100))
	}
}

// Benchmark for committing batches of 100 puts
func benchmarkWriteBatch(b *testing.B, m linkedmap.LinkedMap[string, int64]) {
	b.Cleanup(func() {
		m.Close()
	})
	requireFeature(b, m, linkedmap.FeatureWriteBatch)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		batch, err := m.NewWriteBatch()
		if err != nil {
			b.Fatalf("NewWriteBatch failed: %v", err)
		}
		for j := 0; j < 100; j++ {
			batch.Put(benchKey(i*100+j), int64(j))
		}
		if err := batch.Commit(); err != nil {
			b.Fatalf("Commit failed: %v", err)
		}
		batch.Close()
	}
}

// Benchmark for mixed operations (70% get, 25% put, 5% remove)
func benchmarkMixedUsage(b *testing.B, m linkedmap.LinkedMap[string, int64]) {
	s := linkedmap.Synchronized(m)
	b.Cleanup(func() {
		s.Close()
	})

	numKeys := 10000
	prefill(b, s, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := benchKey(r.Intn(numKeys))
			switch op := r.Intn(100); {
			case op < 70:
				s.Get(key)
			case op < 95:
				s.Put(key, int64(op))
			default:
				s.Remove(key)
			}
		}
	})
}
