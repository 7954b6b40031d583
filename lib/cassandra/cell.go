package cassandra

import (
	"fmt"

	"github.com/ValentinKolb/kvcollections/lib/codec"
	"github.com/cockroachdb/errors"
)

// Flag is the first byte of an encoded cell.
type Flag uint8

const (
	FlagRegular         Flag = 0
	FlagDeleting        Flag = 1
	FlagExpiring        Flag = 2
	FlagHasEmptyValue   Flag = 4
	FlagHasRowTimestamp Flag = 8
	FlagUseRowTTL       Flag = 0x10
)

// --------------------------------------------------------------------------
// Cell variants
// --------------------------------------------------------------------------

// Cell is one column value of a row. It is one of RegularCell, ExpiringCell
// or TombstoneCell.
type Cell[T any] interface {
	// Column returns the column index of the cell.
	Column() int8

	// Flag returns the flag byte the cell is encoded with.
	Flag() Flag

	// WriteTime returns the timestamp used for last-write-wins resolution
	// (markedForDeleteAt for tombstones).
	WriteTime() int64

	cell()
}

// RegularCell is a live column value.
type RegularCell[T any] struct {
	Index     int8
	Timestamp int64
	Payload   T
}

// ExpiringCell is a column value that expires ttl seconds after its timestamp.
type ExpiringCell[T any] struct {
	Index     int8
	Timestamp int64
	Payload   T
	TTL       int32
}

// TombstoneCell marks a deleted column.
type TombstoneCell[T any] struct {
	Index             int8
	LocalDeletionTime int32
	MarkedForDeleteAt int64
}

func (c RegularCell[T]) Column() int8     { return c.Index }
func (c RegularCell[T]) Flag() Flag       { return FlagRegular }
func (c RegularCell[T]) WriteTime() int64 { return c.Timestamp }
func (RegularCell[T]) cell()              {}

func (c ExpiringCell[T]) Column() int8     { return c.Index }
func (c ExpiringCell[T]) Flag() Flag       { return FlagExpiring }
func (c ExpiringCell[T]) WriteTime() int64 { return c.Timestamp }
func (ExpiringCell[T]) cell()              {}

// ExpiresAt returns the expiry time in seconds since the epoch.
func (c ExpiringCell[T]) ExpiresAt() int64 { return c.Timestamp/1_000_000 + int64(c.TTL) }

// Tombstone converts the expired cell into the tombstone that replaces it.
func (c ExpiringCell[T]) Tombstone() TombstoneCell[T] {
	return TombstoneCell[T]{Index: c.Index, LocalDeletionTime: int32(c.ExpiresAt()), MarkedForDeleteAt: c.Timestamp}
}

func (c TombstoneCell[T]) Column() int8     { return c.Index }
func (c TombstoneCell[T]) Flag() Flag       { return FlagDeleting }
func (c TombstoneCell[T]) WriteTime() int64 { return c.MarkedForDeleteAt }
func (TombstoneCell[T]) cell()              {}

// --------------------------------------------------------------------------
// Cell codec
// --------------------------------------------------------------------------

// CellCodec returns the bounded codec for cells whose payloads are encoded
// with payload. Payloads are framed with a 4-byte length, so payload may be
// unbounded.
func CellCodec[T any](payload codec.Codec[T]) codec.Codec[Cell[T]] {
	sized := codec.Sized(payload)
	name := fmt.Sprintf("cell(%s)", payload.Name())

	return codec.New(name, true,
		func(c Cell[T], buf *codec.Buffer) error {
			if c == nil {
				return errors.Wrapf(codec.ErrInvalidValue, "%s: nil cell", name)
			}
			buf.WriteByte(byte(c.Flag()))
			buf.WriteByte(byte(c.Column()))

			switch v := c.(type) {
			case RegularCell[T]:
				if err := codec.Int64.Encode(v.Timestamp, buf); err != nil {
					return err
				}
				return sized.Encode(v.Payload, buf)
			case ExpiringCell[T]:
				if err := codec.Int64.Encode(v.Timestamp, buf); err != nil {
					return err
				}
				if err := sized.Encode(v.Payload, buf); err != nil {
					return err
				}
				return codec.Int32.Encode(v.TTL, buf)
			case TombstoneCell[T]:
				if err := codec.Int32.Encode(v.LocalDeletionTime, buf); err != nil {
					return err
				}
				return codec.Int64.Encode(v.MarkedForDeleteAt, buf)
			}
			return errors.Wrapf(codec.ErrInvalidValue, "%s: unexpected cell %T", name, c)
		},
		func(r *codec.Reader) (Cell[T], error) {
			start := r.Offset()
			b, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			flag := Flag(b)

			switch {
			case flag == FlagRegular:
				index, timestamp, err := readHeader(r)
				if err != nil {
					return nil, err
				}
				payload, err := sized.Decode(r)
				if err != nil {
					return nil, err
				}
				return RegularCell[T]{Index: index, Timestamp: timestamp, Payload: payload}, nil

			case flag&FlagExpiring != 0:
				index, timestamp, err := readHeader(r)
				if err != nil {
					return nil, err
				}
				payload, err := sized.Decode(r)
				if err != nil {
					return nil, err
				}
				ttl, err := codec.Int32.Decode(r)
				if err != nil {
					return nil, err
				}
				return ExpiringCell[T]{Index: index, Timestamp: timestamp, Payload: payload, TTL: ttl}, nil

			case flag&FlagDeleting != 0:
				index, err := codec.Byte.Decode(r)
				if err != nil {
					return nil, err
				}
				ldt, err := codec.Int32.Decode(r)
				if err != nil {
					return nil, err
				}
				mfda, err := codec.Int64.Decode(r)
				if err != nil {
					return nil, err
				}
				return TombstoneCell[T]{Index: index, LocalDeletionTime: ldt, MarkedForDeleteAt: mfda}, nil
			}

			log.Debugf("unknown cell flag %d at offset %d", flag, start)
			return nil, &codec.UnknownFormatError{Codec: name, Flag: int(flag)}
		})
}

// readHeader reads the index and timestamp of a regular or expiring cell
func readHeader(r *codec.Reader) (int8, int64, error) {
	index, err := codec.Byte.Decode(r)
	if err != nil {
		return 0, 0, err
	}
	timestamp, err := codec.Int64.Decode(r)
	return index, timestamp, err
}
