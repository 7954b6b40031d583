// Package comparator provides the total order over byte strings that the storage
// engines of this module are opened with, and the prefix relation used to decide
// prefix and range membership.
//
// The default order (LengthFirst) is NOT the conventional lexicographic order:
//   - if the two byte strings differ in length, the result is len(a) - len(b),
//     i.e. shorter keys sort before longer keys regardless of content
//   - only keys of equal length are compared byte by byte as unsigned values
//
// This order is kept deliberately because data written by earlier versions of
// the stores depends on it. Keys produced by fixed-width codecs (e.g. int64 sequence
// numbers) are unaffected, since all of them have the same length. Variable-length keys
// such as strings sort by length first. For example "b" < "cat" < "alpha".
//
// The auxiliary operations FindShortestSeparator and FindShortSuccessor implement
// the classic LevelDB byte incrementing logic. Under length-first ordering a
// shortened key can sort before its input, so the Comparator implementations
// check the candidate against Compare and fall back to the input key when the
// candidate would violate the engine contract.
//
// Lexicographic is provided as an alternative order for new data sets.
package comparator
