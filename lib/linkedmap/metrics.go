package linkedmap

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Operation names used as metric labels.
const (
	OpGet         = "get"
	OpPut         = "put"
	OpMerge       = "merge"
	OpRemove      = "remove"
	OpRemoveRange = "remove_range"
	OpClear       = "clear"
	OpIterate     = "iterate"
	OpBatch       = "batch_commit"
)

// CountOp increments the operation counter for engine and op.
func CountOp(engine Implementation, op string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`linkedmap_ops_total{engine=%q,op=%q}`, engine, op)).Inc()
}

// CountError increments the error counter for engine and op.
func CountError(engine Implementation, op string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`linkedmap_errors_total{engine=%q,op=%q}`, engine, op)).Inc()
}

// ObserveValueSize records the encoded size of a written value.
func ObserveValueSize(engine Implementation, size int) {
	metrics.GetOrCreateHistogram(fmt.Sprintf(`linkedmap_value_size_bytes{engine=%q}`, engine)).Update(float64(size))
}

// WriteMetrics writes all linkedmap metrics in Prometheus text format to w.
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
