package cassandra

import (
	"fmt"
	"math"

	"github.com/ValentinKolb/kvcollections/lib/codec"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("cassandra")

const (
	// NoLocalDeletionTime is the localDeletionTime of a row that is not deleted.
	NoLocalDeletionTime int32 = math.MaxInt32
	// NoMarkedForDeleteAt is the markedForDeleteAt of a row that is not deleted.
	NoMarkedForDeleteAt int64 = math.MinInt64
)

// Row is an ordered list of cells plus row level deletion metadata.
//
// A tombstone row deletes every cell older than MarkedForDeleteAt when it is
// merged into storage. The merged row is no longer a tombstone.
//
// Build rows with NewRow or TombstoneRow. The zero value is not a live row:
// MarkedForDeleteAt 0 is a valid deletion time, so a literal such as
// Row[T]{Cells: cells} is a tombstone at time 0 that hides cells written at 0.
type Row[T any] struct {
	Cells             []Cell[T]
	LocalDeletionTime int32
	MarkedForDeleteAt int64
}

// NewRow returns a live row holding cells.
func NewRow[T any](cells ...Cell[T]) Row[T] {
	return Row[T]{Cells: cells, LocalDeletionTime: NoLocalDeletionTime, MarkedForDeleteAt: NoMarkedForDeleteAt}
}

// TombstoneRow returns a row that deletes everything written up to markedForDeleteAt.
func TombstoneRow[T any](localDeletionTime int32, markedForDeleteAt int64) Row[T] {
	return Row[T]{LocalDeletionTime: localDeletionTime, MarkedForDeleteAt: markedForDeleteAt}
}

// IsTombstone reports whether the row carries a row level deletion.
func (r Row[T]) IsTombstone() bool {
	return r.MarkedForDeleteAt > NoMarkedForDeleteAt
}

// LastModified returns the newest write time of the row and its cells.
func (r Row[T]) LastModified() int64 {
	last := r.MarkedForDeleteAt
	for _, c := range r.Cells {
		last = max(last, c.WriteTime())
	}
	return last
}

// RowCodec returns the codec for rows whose cell payloads are encoded with
// payload. The codec is unbounded: decoding reads cells until the input is
// exhausted.
func RowCodec[T any](payload codec.Codec[T]) codec.Codec[Row[T]] {
	cells := CellCodec(payload)
	name := fmt.Sprintf("row(%s)", payload.Name())

	return codec.New(name, false,
		func(row Row[T], buf *codec.Buffer) error {
			if err := codec.Int32.Encode(row.LocalDeletionTime, buf); err != nil {
				return err
			}
			if err := codec.Int64.Encode(row.MarkedForDeleteAt, buf); err != nil {
				return err
			}
			for _, c := range row.Cells {
				if err := cells.Encode(c, buf); err != nil {
					return err
				}
			}
			return nil
		},
		func(r *codec.Reader) (Row[T], error) {
			var row Row[T]
			ldt, err := codec.Int32.Decode(r)
			if err != nil {
				return row, err
			}
			mfda, err := codec.Int64.Decode(r)
			if err != nil {
				return row, err
			}
			row.LocalDeletionTime = ldt
			row.MarkedForDeleteAt = mfda

			for r.Remaining() > 0 {
				c, err := cells.Decode(r)
				if err != nil {
					return row, err
				}
				row.Cells = append(row.Cells, c)
			}
			return row, nil
		})
}

// RawRows is the row codec with undecoded payloads, used by the merger.
var RawRows = RowCodec(codec.Remaining)
