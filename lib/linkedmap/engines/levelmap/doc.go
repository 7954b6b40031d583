// Package levelmap implements linkedmap.LinkedMap on top of
// github.com/syndtr/goleveldb, a pure Go LevelDB.
//
// LevelDB has no merge operator, so Merge, MergeAll and WriteBatch.Merge fail
// with linkedmap.ErrUnsupportedOperation. Range deletes walk the range and
// delete keys in batches of Options.DeleteBatchSize; afterwards the range,
// including its upper bound, is compacted in the background. Reads verify
// block checksums and writes are synced by default.
//
// Iterators read from a LevelDB snapshot taken when they are opened.
// IteratorFrom starts at the first key matching Options.PrefixMatch, as in
// pebblemap.
package levelmap
