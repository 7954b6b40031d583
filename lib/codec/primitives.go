package codec

import (
	"encoding/binary"
)

// --------------------------------------------------------------------------
// Boolean and single byte
// --------------------------------------------------------------------------

// Bool encodes a boolean as one byte (0 or 1). Any non-zero byte decodes as true.
var Bool Codec[bool] = New("bool", true,
	func(v bool, buf *Buffer) error {
		if v {
			return buf.WriteByte(1)
		}
		return buf.WriteByte(0)
	},
	func(r *Reader) (bool, error) {
		p, err := r.Read(1, "bool")
		if err != nil {
			return false, err
		}
		return p[0] != 0, nil
	})

// Byte encodes a signed 8-bit integer.
var Byte Codec[int8] = New("byte", true,
	func(v int8, buf *Buffer) error {
		return buf.WriteByte(byte(v))
	},
	func(r *Reader) (int8, error) {
		p, err := r.Read(1, "byte")
		if err != nil {
			return 0, err
		}
		return int8(p[0]), nil
	})

// --------------------------------------------------------------------------
// Fixed width integers
// --------------------------------------------------------------------------

// Short encodes a signed 16-bit integer in big-endian order.
var Short = fixedInt[int16]("short", 2, binary.BigEndian)

// ShortLE encodes a signed 16-bit integer in little-endian order.
var ShortLE = fixedInt[int16]("shortLE", 2, binary.LittleEndian)

// Int32 encodes a signed 32-bit integer in big-endian order.
var Int32 = fixedInt[int32]("int32", 4, binary.BigEndian)

// Int32LE encodes a signed 32-bit integer in little-endian order.
var Int32LE = fixedInt[int32]("int32LE", 4, binary.LittleEndian)

// Int64 encodes a signed 64-bit integer in big-endian order.
var Int64 = fixedInt[int64]("int64", 8, binary.BigEndian)

// Int64LE encodes a signed 64-bit integer in little-endian order.
var Int64LE = fixedInt[int64]("int64LE", 8, binary.LittleEndian)

// Uint64 encodes an unsigned 64-bit integer in big-endian order.
var Uint64 = fixedInt[uint64]("uint64", 8, binary.BigEndian)

// Medium encodes the low 24 bits of an int32 in big-endian order.
// Decoding sign extends bit 23.
var Medium = medium("medium", false)

// MediumLE encodes the low 24 bits of an int32 in little-endian order.
var MediumLE = medium("mediumLE", true)

type integer interface {
	~int16 | ~int32 | ~int64 | ~uint64
}

// fixedInt builds a codec for an integer of the given byte width
func fixedInt[T integer](name string, width int, order binary.ByteOrder) Codec[T] {
	return New(name, true,
		func(v T, buf *Buffer) error {
			p := buf.grow(width)
			switch width {
			case 2:
				order.PutUint16(p, uint16(v))
			case 4:
				order.PutUint32(p, uint32(v))
			default:
				order.PutUint64(p, uint64(v))
			}
			return nil
		},
		func(r *Reader) (T, error) {
			p, err := r.Read(width, name)
			if err != nil {
				return 0, err
			}
			switch width {
			case 2:
				return T(int16(order.Uint16(p))), nil
			case 4:
				return T(int32(order.Uint32(p))), nil
			default:
				return T(order.Uint64(p)), nil
			}
		})
}

// medium builds a 3-byte integer codec
func medium(name string, littleEndian bool) Codec[int32] {
	return New(name, true,
		func(v int32, buf *Buffer) error {
			p := buf.grow(3)
			u := uint32(v)
			if littleEndian {
				p[0], p[1], p[2] = byte(u), byte(u>>8), byte(u>>16)
			} else {
				p[0], p[1], p[2] = byte(u>>16), byte(u>>8), byte(u)
			}
			return nil
		},
		func(r *Reader) (int32, error) {
			p, err := r.Read(3, name)
			if err != nil {
				return 0, err
			}
			var u uint32
			if littleEndian {
				u = uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16
			} else {
				u = uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
			}
			// sign extend the 24-bit value
			if u&0x800000 != 0 {
				u |= 0xff000000
			}
			return int32(u), nil
		})
}
