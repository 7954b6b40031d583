// Package testing provides standardised tests and benchmarks for
// engines that satisfy the linkedmap.LinkedMap interface.
//
// The package contains:
//   - testing: a conformance suite for the LinkedMap contract (ordering,
//     prefix iteration, range deletes, batches, persistence)
//   - benchmark: throughput tests for the common map operations
//
// The suite works on a LinkedMap[string, int64]. Engines are expected to
// encode keys as raw UTF-8 bytes and to order them with the length-first
// comparator, so that "a" < "b" < "cat" < "dome" < "alpha". Engines that
// support Merge must be configured with an additive merge (for pebble the
// UInt64AddMerger over big-endian values).
//
// Example usage:
//
//	// Creating a factory function for your engine
//	factory := func(dir string) linkedmap.LinkedMap[string, int64] {
//		m, err := mymap.Open(dir, codec.UTF8, codec.Int64, nil)
//		if err != nil {
//			panic(err)
//		}
//		return m
//	}
//
//	// Running the standard test suite
//	lmtesting.RunLinkedMapTests(t, "MyMap", factory)
//
//	// Running performance benchmarks
//	lmtesting.RunLinkedMapBenchmarks(b, "MyMap", factory)
package testing
