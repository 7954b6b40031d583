// Package memmap implements linkedmap.LinkedMap in memory on top of a
// concurrent skip list (github.com/zhangyunhao116/skipmap).
//
// Keys are ordered by a caller supplied comparison function, so the map works
// on typed keys without any encoding. Merge never fails: it combines the old
// and the new value with Options.MergeFn, which defaults to keeping the new
// value.
//
// Iterators read the live skip list and are bounded by the greatest key at the
// time they were opened, so keys appended behind that bound are not observed.
// Removing or overwriting keys while an iterator is open is safe.
//
// IteratorFrom(prefix) scans from the first key until Options.PrefixMatch
// holds for (key, prefix) and then continues in order to the end. The default
// matcher is key >= prefix. Pass a starts-with matcher (strings.HasPrefix for
// string keys) to get the behavior of the persistent engines.
package memmap
