// Package pebblemap implements linkedmap.LinkedMap on top of the
// github.com/cockroachdb/pebble storage engine (a RocksDB-class LSM tree).
//
// Keys and values are turned into bytes with lib/codec codecs and ordered by a
// lib/comparator Comparator that is installed as the engine's Comparer. The
// default is the length-first comparator, which means that an existing data
// directory must always be reopened with the same comparator.
//
// Features:
//   - Native merge through a pebble Merger. The package ships StringAppendMerger
//     and UInt64AddMerger; lib/cassandra provides a wide-column row merger.
//   - Atomic write batches including Merge and Clear.
//   - RemoveRange and Clear write range tombstones (one record, independent of
//     the number of keys removed) and schedule a background compaction of the
//     vacated range.
//   - Iterators read from an engine snapshot taken when they are opened, so
//     they never observe later writes and stay valid while the map changes.
//
// IteratorFrom seeks to the encoded prefix and then skips forward to the first
// key for which Options.PrefixMatch holds (by default: the encoded key starts
// with the encoded prefix), continuing in order from there. Under the
// length-first order the seek alone lands on the first longer key. The match
// runs on encoded bytes, so with a length-prefixed key codec the prefix must
// encode to a byte prefix of the wanted keys or a custom matcher is needed.
//
// The merge operator name is persisted by pebble. A directory written with one
// merger cannot be reopened with a differently named merger.
package pebblemap
