package cassandra

import (
	"cmp"
	"io"
	"slices"
	"time"

	"github.com/ValentinKolb/kvcollections/lib/codec"
	"github.com/VictoriaMetrics/metrics"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// MergerName is the name pebble persists for the row merger. It is the name of
// the RocksDB Cassandra merge operator.
const MergerName = "CassandraValueMergeOperator"

var (
	mergesTotal       = metrics.GetOrCreateCounter(`cassandra_merges_total`)
	mergeErrorsTotal  = metrics.GetOrCreateCounter(`cassandra_merge_errors_total`)
	purgedCellsTotal  = metrics.GetOrCreateCounter(`cassandra_purged_tombstones_total`)
	expiredCellsTotal = metrics.GetOrCreateCounter(`cassandra_expired_cells_total`)
)

// --------------------------------------------------------------------------
// Reconciliation
// --------------------------------------------------------------------------

// Reconcile merges rows, given oldest first, into one row:
//
//   - the newest row tombstone hides every cell with a write time <= its
//     markedForDeleteAt. If no cell survives, that tombstone is the result.
//   - per column the cell with the newest write time wins, on a tie the later
//     row wins.
//   - expiring cells whose ttl has passed at now become tombstone cells.
//   - with purge set, tombstone cells older than gcGrace are dropped.
//
// The cells of the result are ordered by column index.
func Reconcile[T any](rows []Row[T], now time.Time, gcGrace time.Duration, purge bool) Row[T] {
	tomb := -1
	for i, r := range rows {
		if r.IsTombstone() && (tomb < 0 || r.MarkedForDeleteAt >= rows[tomb].MarkedForDeleteAt) {
			tomb = i
		}
	}

	newest := make(map[int8]Cell[T])
	for _, r := range rows {
		for _, c := range r.Cells {
			if tomb >= 0 && c.WriteTime() <= rows[tomb].MarkedForDeleteAt {
				continue
			}
			if cur, ok := newest[c.Column()]; ok && cur.WriteTime() > c.WriteTime() {
				continue
			}
			newest[c.Column()] = c
		}
	}

	nowSec := now.Unix()
	graceSec := int64(gcGrace / time.Second)
	cells := make([]Cell[T], 0, len(newest))
	for _, c := range newest {
		if e, ok := c.(ExpiringCell[T]); ok && e.ExpiresAt() < nowSec {
			expiredCellsTotal.Inc()
			c = e.Tombstone()
		}
		if t, ok := c.(TombstoneCell[T]); ok && purge && int64(t.LocalDeletionTime)+graceSec < nowSec {
			purgedCellsTotal.Inc()
			continue
		}
		cells = append(cells, c)
	}
	slices.SortFunc(cells, func(a, b Cell[T]) int {
		return cmp.Compare(a.Column(), b.Column())
	})

	if len(cells) == 0 && tomb >= 0 {
		return TombstoneRow[T](rows[tomb].LocalDeletionTime, rows[tomb].MarkedForDeleteAt)
	}
	return NewRow(cells...)
}

// --------------------------------------------------------------------------
// Pebble merger
// --------------------------------------------------------------------------

// NewMerger returns a pebble merge operator that reconciles encoded rows with
// Reconcile. Tombstone cells are only purged on a full merge, i.e. when the
// base value of the key takes part. clock may be nil (time.Now).
func NewMerger(gcGrace time.Duration, clock func() time.Time) *pebble.Merger {
	if clock == nil {
		clock = time.Now
	}
	return &pebble.Merger{
		Name: MergerName,
		Merge: func(_, value []byte) (pebble.ValueMerger, error) {
			m := &rowMerger{gcGrace: gcGrace, clock: clock}
			if err := m.MergeNewer(value); err != nil {
				return nil, err
			}
			return m, nil
		},
	}
}

// rowMerger collects decoded operands, oldest first
type rowMerger struct {
	gcGrace time.Duration
	clock   func() time.Time
	rows    []Row[[]byte]
}

func (m *rowMerger) decode(value []byte) (Row[[]byte], error) {
	row, err := codec.Unmarshal(RawRows, value)
	if err != nil {
		mergeErrorsTotal.Inc()
		log.Warningf("cannot decode merge operand of %d bytes: %v", len(value), err)
		return row, errors.Wrap(err, "cassandra: decode operand")
	}
	return row, nil
}

func (m *rowMerger) MergeNewer(value []byte) error {
	row, err := m.decode(value)
	if err != nil {
		return err
	}
	m.rows = append(m.rows, row)
	return nil
}

func (m *rowMerger) MergeOlder(value []byte) error {
	row, err := m.decode(value)
	if err != nil {
		return err
	}
	m.rows = slices.Insert(m.rows, 0, row)
	return nil
}

func (m *rowMerger) Finish(includesBase bool) ([]byte, io.Closer, error) {
	mergesTotal.Inc()
	merged := Reconcile(m.rows, m.clock(), m.gcGrace, includesBase)
	out, err := codec.Marshal(RawRows, merged)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cassandra: encode merged row")
	}
	return out, nil, nil
}
