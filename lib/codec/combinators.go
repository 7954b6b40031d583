package codec

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Sized framing
// --------------------------------------------------------------------------

// Sized frames the inner encoding with a 4-byte big-endian length prefix.
// On decode the inner codec only sees the framed bytes and the cursor is moved
// past the whole frame, even if the inner codec read less.
func Sized[T any](inner Codec[T]) Codec[T] {
	return SizedWith(Int32, inner)
}

// SizedWith is like Sized but uses sizeCodec for the length prefix.
// sizeCodec must have a fixed width.
func SizedWith[T any](sizeCodec Codec[int32], inner Codec[T]) Codec[T] {
	name := fmt.Sprintf("sized(%s)", inner.Name())
	return New(name, true,
		func(v T, buf *Buffer) error {
			// write a placeholder, remember where it is and patch it afterward
			sizeAt := buf.Len()
			if err := sizeCodec.Encode(0, buf); err != nil {
				return err
			}
			start := buf.Len()
			if err := inner.Encode(v, buf); err != nil {
				return err
			}
			size := buf.Len() - start

			var sizeBuf Buffer
			if err := sizeCodec.Encode(int32(size), &sizeBuf); err != nil {
				return err
			}
			if sizeBuf.Len() != start-sizeAt || int(int32(size)) != size {
				return errors.Wrapf(ErrInvalidValue, "%s: frame of %d bytes does not fit %s", name, size, sizeCodec.Name())
			}
			buf.overwrite(sizeAt, sizeBuf.Bytes())
			return nil
		},
		func(r *Reader) (T, error) {
			var zero T
			size, err := sizeCodec.Decode(r)
			if err != nil {
				return zero, err
			}
			sub, err := r.Sub(int(size), name)
			if err != nil {
				return zero, err
			}
			return inner.Decode(sub)
		})
}

// --------------------------------------------------------------------------
// Bimap
// --------------------------------------------------------------------------

// Bimap turns a codec for T into a codec for V using a total bidirectional mapping.
func Bimap[T, V any](inner Codec[T], enc func(V) T, dec func(T) V) Codec[V] {
	return New(inner.Name(), inner.IsBounded(),
		func(v V, buf *Buffer) error {
			return inner.Encode(enc(v), buf)
		},
		func(r *Reader) (V, error) {
			t, err := inner.Decode(r)
			if err != nil {
				var zero V
				return zero, err
			}
			return dec(t), nil
		})
}

// --------------------------------------------------------------------------
// Nullable
// --------------------------------------------------------------------------

// Nullable prefixes the inner encoding with a presence flag (see Bool).
// A nil pointer is written as the single byte 0.
func Nullable[T any](inner Codec[T]) Codec[*T] {
	name := fmt.Sprintf("nullable(%s)", inner.Name())
	return New(name, inner.IsBounded(),
		func(v *T, buf *Buffer) error {
			if v == nil {
				return Bool.Encode(false, buf)
			}
			if err := Bool.Encode(true, buf); err != nil {
				return err
			}
			return inner.Encode(*v, buf)
		},
		func(r *Reader) (*T, error) {
			present, err := Bool.Decode(r)
			if err != nil || !present {
				return nil, err
			}
			v, err := inner.Decode(r)
			if err != nil {
				return nil, err
			}
			return &v, nil
		})
}

// --------------------------------------------------------------------------
// Collections
// --------------------------------------------------------------------------

// ListOf writes the element count with sizeCodec followed by every element in order.
func ListOf[T any](sizeCodec Codec[int32], item Codec[T]) Codec[[]T] {
	name := fmt.Sprintf("list(%s)", item.Name())
	return New(name, sizeCodec.IsBounded() && item.IsBounded(),
		func(v []T, buf *Buffer) error {
			if err := encodeCount(sizeCodec, len(v), buf, name); err != nil {
				return err
			}
			for _, e := range v {
				if err := item.Encode(e, buf); err != nil {
					return err
				}
			}
			return nil
		},
		func(r *Reader) ([]T, error) {
			n, err := decodeCount(sizeCodec, r, name)
			if err != nil {
				return nil, err
			}
			// do not trust n for the allocation, a corrupt count would allocate huge slices
			out := make([]T, 0, min(n, r.Remaining()))
			for i := 0; i < n; i++ {
				e, err := item.Decode(r)
				if err != nil {
					return nil, err
				}
				out = append(out, e)
			}
			return out, nil
		})
}

// MapOf writes the entry count with sizeCodec followed by key/value pairs.
// Entry order on the wire is the map iteration order and carries no meaning.
func MapOf[K comparable, V any](sizeCodec Codec[int32], key Codec[K], value Codec[V]) Codec[map[K]V] {
	name := fmt.Sprintf("map(%s,%s)", key.Name(), value.Name())
	return New(name, sizeCodec.IsBounded() && key.IsBounded() && value.IsBounded(),
		func(v map[K]V, buf *Buffer) error {
			if err := encodeCount(sizeCodec, len(v), buf, name); err != nil {
				return err
			}
			for k, e := range v {
				if err := key.Encode(k, buf); err != nil {
					return err
				}
				if err := value.Encode(e, buf); err != nil {
					return err
				}
			}
			return nil
		},
		func(r *Reader) (map[K]V, error) {
			n, err := decodeCount(sizeCodec, r, name)
			if err != nil {
				return nil, err
			}
			out := make(map[K]V, min(n, r.Remaining()))
			for i := 0; i < n; i++ {
				k, err := key.Decode(r)
				if err != nil {
					return nil, err
				}
				e, err := value.Decode(r)
				if err != nil {
					return nil, err
				}
				out[k] = e
			}
			return out, nil
		})
}

func encodeCount(sizeCodec Codec[int32], n int, buf *Buffer, name string) error {
	if int(int32(n)) != n {
		return errors.Wrapf(ErrInvalidValue, "%s: %d elements", name, n)
	}
	return sizeCodec.Encode(int32(n), buf)
}

func decodeCount(sizeCodec Codec[int32], r *Reader, name string) (int, error) {
	start := r.Offset()
	n, err := sizeCodec.Decode(r)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, &UnderflowError{Codec: name, Offset: start, Need: int(n), Have: r.Remaining()}
	}
	return int(n), nil
}
