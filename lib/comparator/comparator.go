package comparator

import (
	"bytes"
)

// --------------------------------------------------------------------------
// Comparator interface
// --------------------------------------------------------------------------

// Comparator is a total order over byte strings plus the helpers that
// LevelDB-family engines need to build index blocks and compaction boundaries.
type Comparator interface {
	// Compare returns a negative number if a < b, zero if a == b and a positive number if a > b.
	Compare(a, b []byte) int

	// Name identifies the order. Engines persist it and refuse to reopen
	// data with a differently named comparator.
	Name() string

	// Separator returns a key k with start <= k < limit (or start itself).
	Separator(start, limit []byte) []byte

	// Successor returns a key k with k >= key (or key itself).
	Successor(key []byte) []byte
}

// Name of the length-first comparator. Existing data files were created under
// this name and can only be reopened with it.
const Name = "leveldb.BytewiseComparator"

// LengthFirst is the default comparator (see package doc).
var LengthFirst Comparator = lengthFirst{}

// Lexicographic orders keys as unsigned byte strings, shorter prefix first.
var Lexicographic Comparator = lexicographic{}

// --------------------------------------------------------------------------
// Length-first order
// --------------------------------------------------------------------------

type lengthFirst struct{}

func (lengthFirst) Compare(a, b []byte) int { return CompareBytes(a, b) }
func (lengthFirst) Name() string            { return Name }

func (c lengthFirst) Separator(start, limit []byte) []byte {
	return checkedSeparator(c, start, limit, FindShortestSeparator(start, limit))
}

func (c lengthFirst) Successor(key []byte) []byte {
	return checkedSuccessor(c, key, FindShortSuccessor(key))
}

// Compare orders a and b by length first and by unsigned byte value second.
// A nil slice is treated as absent and sorts before every non-nil slice,
// including an empty one. Two nil slices are equal.
func Compare(a, b []byte) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return CompareBytes(a, b)
}

// CompareBytes is Compare for present keys (nil and empty are equal).
// This is the function installed into the storage engines.
func CompareBytes(a, b []byte) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	for i := range a {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return 0
}

// HasPrefix reports whether key starts with prefix.
func HasPrefix(key, prefix []byte) bool {
	return bytes.HasPrefix(key, prefix)
}

// --------------------------------------------------------------------------
// Separator and successor
// --------------------------------------------------------------------------

// FindShortestSeparator returns a short key between start and limit.
// After the common prefix, the first differing byte of start is incremented if
// it is below 0xff and the increment stays below the byte of limit. In that case
// the prefix plus the incremented byte is returned. Otherwise start is returned
// unchanged (also when one key is a prefix of the other).
// A nil start or limit returns start.
func FindShortestSeparator(start, limit []byte) []byte {
	if start == nil || limit == nil {
		return start
	}

	// find length of common prefix
	minLength := min(len(start), len(limit))
	shared := 0
	for shared < minLength && start[shared] == limit[shared] {
		shared++
	}

	if shared < minLength {
		lastShared := start[shared]
		if lastShared < 0xff && lastShared+1 < limit[shared] {
			shortest := make([]byte, shared+1)
			copy(shortest, start[:shared+1])
			shortest[shared]++
			return shortest
		}
	}

	// do not shorten if one string is a prefix of the other
	return start
}

// FindShortSuccessor returns the shortest key obtained by incrementing the first
// byte that is not 0xff and dropping everything after it. A key made only of
// 0xff bytes is returned unchanged. A nil key returns nil.
func FindShortSuccessor(key []byte) []byte {
	for i, b := range key {
		if b != 0xff {
			successor := make([]byte, i+1)
			copy(successor, key[:i+1])
			successor[i]++
			return successor
		}
	}
	// key is a run of 0xffs, leave it alone
	return key
}

// checkedSeparator accepts candidate only if start <= candidate < limit under c
func checkedSeparator(c Comparator, start, limit, candidate []byte) []byte {
	if c.Compare(candidate, start) >= 0 && c.Compare(candidate, limit) < 0 {
		return candidate
	}
	return start
}

// checkedSuccessor accepts candidate only if it does not sort before key under c
func checkedSuccessor(c Comparator, key, candidate []byte) []byte {
	if c.Compare(candidate, key) >= 0 {
		return candidate
	}
	return key
}

// --------------------------------------------------------------------------
// Lexicographic order
// --------------------------------------------------------------------------

type lexicographic struct{}

func (lexicographic) Compare(a, b []byte) int { return bytes.Compare(a, b) }
func (lexicographic) Name() string            { return "kvcollections.Lexicographic" }

func (c lexicographic) Separator(start, limit []byte) []byte {
	return checkedSeparator(c, start, limit, FindShortestSeparator(start, limit))
}

func (c lexicographic) Successor(key []byte) []byte {
	return checkedSuccessor(c, key, FindShortSuccessor(key))
}
