package util

import (
	"sort"
	"sync/atomic"
)

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// bounds are the inclusive upper bucket boundaries (16B up to 4GB).
// Samples above the last boundary land in an overflow bucket.
var bounds = []int{
	16, 64, 256, 1024, 4096,
	16384, 65536, 262144, 1048576,
	4194304, 16777216, 67108864,
	268435456, 1073741824, 4294967296,
}

// SizeHistogram counts size samples per bucket.
// The zero value is not usable, create one with NewSizeHistogram.
type SizeHistogram struct {
	buckets []atomic.Int64
	count   atomic.Int64
	sum     atomic.Int64
}

// SizeStats is a point-in-time summary of a SizeHistogram.
type SizeStats struct {
	Count  int64 `json:"count"`
	Mean   int   `json:"mean"`
	Median int   `json:"median"`
	P99    int   `json:"p99"`
}

// NewSizeHistogram creates an empty histogram.
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{buckets: make([]atomic.Int64, len(bounds)+1)}
}

// Observe adds a size sample. Negative sizes are counted as zero.
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) Observe(size int) {
	if size < 0 {
		size = 0
	}
	h.buckets[sort.SearchInts(bounds, size)].Add(1)
	h.count.Add(1)
	h.sum.Add(int64(size))
}

// Count returns the number of samples.
func (h *SizeHistogram) Count() int64 {
	return h.count.Load()
}

// Mean returns the exact average of all samples.
func (h *SizeHistogram) Mean() int {
	n := h.count.Load()
	if n == 0 {
		return 0
	}
	return int(h.sum.Load() / n)
}

// Percentile estimates the p-th percentile (0-100) from the bucket midpoints.
// It returns 0 for an empty histogram or an out of range p.
//
// Thread-safe: This method is safe for concurrent use, but the estimate may
// mix samples added during the call
func (h *SizeHistogram) Percentile(p int) int {
	n := h.count.Load()
	if n == 0 || p < 0 || p > 100 {
		return 0
	}
	// ceil(n * p / 100), at least one sample
	target := (n*int64(p) + 99) / 100
	if target == 0 {
		target = 1
	}
	var seen int64
	for i := range h.buckets {
		seen += h.buckets[i].Load()
		if seen >= target {
			return midpoint(i)
		}
	}
	return midpoint(len(bounds))
}

// Median estimates the 50th percentile.
func (h *SizeHistogram) Median() int {
	return h.Percentile(50)
}

// Distribution returns the bucket boundaries and the share of samples in
// percent per bucket. The last share belongs to the overflow bucket.
func (h *SizeHistogram) Distribution() ([]int, []float64) {
	shares := make([]float64, len(h.buckets))
	n := h.count.Load()
	if n == 0 {
		return bounds, shares
	}
	for i := range h.buckets {
		shares[i] = float64(h.buckets[i].Load()) * 100 / float64(n)
	}
	return bounds, shares
}

// Stats summarizes the histogram.
func (h *SizeHistogram) Stats() SizeStats {
	return SizeStats{
		Count:  h.Count(),
		Mean:   h.Mean(),
		Median: h.Median(),
		P99:    h.Percentile(99),
	}
}

// Reset drops all samples.
func (h *SizeHistogram) Reset() {
	for i := range h.buckets {
		h.buckets[i].Store(0)
	}
	h.count.Store(0)
	h.sum.Store(0)
}

// midpoint is the size estimate reported for bucket i
func midpoint(i int) int {
	switch {
	case i == 0:
		return bounds[0] / 2
	case i < len(bounds):
		return (bounds[i-1] + bounds[i]) / 2
	default:
		return bounds[len(bounds)-1] * 2
	}
}
