package codec

import (
	"encoding/binary"
	"math"
)

// UTF8 writes the string bytes without any framing and decodes by consuming
// the rest of the input. It is unbounded.
var UTF8 Codec[string] = New("utf8", false,
	func(v string, buf *Buffer) error {
		_, err := buf.WriteString(v)
		return err
	},
	func(r *Reader) (string, error) {
		return string(r.ReadRest()), nil
	})

// UTF8Sized writes a 4-byte big-endian byte length followed by the string bytes.
var UTF8Sized Codec[string] = New("utf8Sized", true,
	func(v string, buf *Buffer) error {
		if err := writeLength(len(v), buf); err != nil {
			return err
		}
		_, err := buf.WriteString(v)
		return err
	},
	func(r *Reader) (string, error) {
		p, err := readLengthPrefixed(r, "utf8Sized")
		if err != nil {
			return "", err
		}
		return string(p), nil
	})

// Bytes writes a 4-byte big-endian length followed by the raw bytes.
// A nil slice is encoded like an empty one and decodes as an empty slice.
var Bytes Codec[[]byte] = New("bytes", true,
	func(v []byte, buf *Buffer) error {
		if err := writeLength(len(v), buf); err != nil {
			return err
		}
		_, err := buf.Write(v)
		return err
	},
	func(r *Reader) ([]byte, error) {
		p, err := readLengthPrefixed(r, "bytes")
		if err != nil {
			return nil, err
		}
		return copyBytes(p), nil
	})

// Remaining writes raw bytes without framing and decodes by consuming the rest
// of the input. It is unbounded.
var Remaining Codec[[]byte] = New("remaining", false,
	func(v []byte, buf *Buffer) error {
		_, err := buf.Write(v)
		return err
	},
	func(r *Reader) ([]byte, error) {
		return copyBytes(r.ReadRest()), nil
	})

// writeLength writes n as a 4-byte big-endian integer
func writeLength(n int, buf *Buffer) error {
	if n > math.MaxInt32 {
		return ErrInvalidValue
	}
	binary.BigEndian.PutUint32(buf.grow(4), uint32(n))
	return nil
}

// readLengthPrefixed reads a 4-byte big-endian length and that many bytes
func readLengthPrefixed(r *Reader, codecName string) ([]byte, error) {
	start := r.Offset()
	p, err := r.Read(4, codecName)
	if err != nil {
		return nil, err
	}
	n := int32(binary.BigEndian.Uint32(p))
	if n < 0 {
		return nil, &UnderflowError{Codec: codecName, Offset: start, Need: int(n), Have: r.Remaining()}
	}
	return r.Read(int(n), codecName)
}
