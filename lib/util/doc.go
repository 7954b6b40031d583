// Package util provides small helpers shared by the linkedmap engines.
//
// SizeHistogram tracks the distribution of encoded value sizes with
// exponential buckets from bytes to gigabytes. Engines feed it on every write
// and report its estimates through linkedmap.Info, so that callers get an idea
// of the stored data without a full scan.
package util
