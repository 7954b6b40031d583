package codec

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Codec is a paired encoder/decoder for values of type T.
type Codec[T any] interface {
	// Encode appends the encoding of value to buf.
	Encode(value T, buf *Buffer) error

	// Decode consumes the encoding of one value from r.
	// The cursor is advanced by exactly the number of bytes consumed.
	Decode(r *Reader) (T, error)

	// IsBounded reports whether the codec can determine the end of its own
	// encoding. Unbounded codecs consume the rest of the input.
	IsBounded() bool

	// Name returns a short human-readable description, used in errors.
	Name() string
}

// funcCodec adapts a pair of functions to the Codec interface
type funcCodec[T any] struct {
	name    string
	bounded bool
	enc     func(T, *Buffer) error
	dec     func(*Reader) (T, error)
}

// New creates a codec from an encode and a decode function.
func New[T any](name string, bounded bool, enc func(T, *Buffer) error, dec func(*Reader) (T, error)) Codec[T] {
	return &funcCodec[T]{name: name, bounded: bounded, enc: enc, dec: dec}
}

func (c *funcCodec[T]) Encode(value T, buf *Buffer) error { return c.enc(value, buf) }
func (c *funcCodec[T]) Decode(r *Reader) (T, error)       { return c.dec(r) }
func (c *funcCodec[T]) IsBounded() bool                   { return c.bounded }
func (c *funcCodec[T]) Name() string                      { return c.name }

// --------------------------------------------------------------------------
// Convenience functions
// --------------------------------------------------------------------------

// Marshal encodes value into a freshly allocated byte slice.
func Marshal[T any](c Codec[T], value T) ([]byte, error) {
	buf := NewBuffer(64)
	if err := c.Encode(value, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes one value from data.
// Trailing bytes that the codec does not consume are ignored.
func Unmarshal[T any](c Codec[T], data []byte) (T, error) {
	return c.Decode(NewReader(data))
}

// MustMarshal is like Marshal but panics on error.
// It is intended for codecs that cannot fail on encode (all primitives).
func MustMarshal[T any](c Codec[T], value T) []byte {
	b, err := Marshal(c, value)
	if err != nil {
		panic(fmt.Sprintf("codec %s: %v", c.Name(), err))
	}
	return b
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrUnderflow is matched by every *UnderflowError.
	ErrUnderflow = errors.New("codec: underflow")

	// ErrUnknownFormat is matched by every *UnknownFormatError.
	ErrUnknownFormat = errors.New("codec: unknown format")

	// ErrInvalidValue is returned when a value cannot be represented by a codec
	// (e.g. a negative length or a length that does not fit the size codec).
	ErrInvalidValue = errors.New("codec: invalid value")
)

// UnderflowError is returned when a decoder needs more bytes than available.
type UnderflowError struct {
	Codec  string // Codec that attempted the read
	Offset int    // Reader offset at which the read started
	Need   int    // Bytes requested
	Have   int    // Bytes remaining
}

func (e *UnderflowError) Error() string {
	return fmt.Sprintf("codec: underflow in %s at offset %d: need %d bytes, have %d", e.Codec, e.Offset, e.Need, e.Have)
}

// Is allows UnderflowError to match ErrUnderflow with errors.Is.
func (e *UnderflowError) Is(target error) bool {
	return target == ErrUnderflow
}

// UnknownFormatError is returned when a decoder reads a flag or tag it does not know.
type UnknownFormatError struct {
	Codec string
	Flag  int
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("codec: unknown format in %s: flag %d", e.Codec, e.Flag)
}

// Is allows UnknownFormatError to match ErrUnknownFormat with errors.Is.
func (e *UnknownFormatError) Is(target error) bool {
	return target == ErrUnknownFormat
}
