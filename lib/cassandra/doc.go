// Package cassandra encodes wide-column cells and rows in the value format of
// the RocksDB Cassandra merge operator, and provides a pebble Merger that
// reconciles such rows the same way.
//
// Cell layout (all integers big-endian):
//
//	RegularCell    0x00 | index(1) | timestamp(8) | sized(payload)
//	TombstoneCell  0x01 | index(1) | localDeletionTime(4) | markedForDeleteAt(8)
//	ExpiringCell   0x02 | index(1) | timestamp(8) | sized(payload) | ttl(4)
//
// A row is localDeletionTime(4) | markedForDeleteAt(8) followed by its cells
// with no count. The row codec therefore reads cells until the input is
// exhausted and must only be given a buffer that holds exactly one row.
//
// Timestamps and markedForDeleteAt are microseconds since the epoch,
// localDeletionTime and ttl are seconds.
package cassandra
