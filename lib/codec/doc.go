// Package codec provides a composable binary serialization framework for turning
// typed values into byte sequences with controllable framing.
//
// A Codec pairs an encoder, which appends the encoding of a value to a growable
// Buffer, with a decoder, which consumes bytes from a Reader cursor and advances
// it by exactly the number of bytes it read. Codecs compose: the combinators in
// this package build codecs for larger values out of codecs for smaller ones.
//
// Key Components:
//
//   - Primitive codecs: Bool, Byte, Short/ShortLE (2 bytes), Medium/MediumLE
//     (3 bytes, sign extended), Int32/Int32LE, Int64/Int64LE. Big-endian is the
//     default byte order, the LE variants write little-endian.
//
//   - String and byte codecs: UTF8 consumes the rest of the input and is therefore
//     unbounded. UTF8Sized and Bytes write a 4-byte big-endian length first and
//     are bounded. Remaining is the raw consume-to-end byte codec.
//
//   - Combinators: Sized / SizedWith frame the inner encoding with a length prefix
//     and confine the inner decoder to exactly that many bytes. The outer cursor is
//     always advanced past the whole frame, even if the inner decoder read less.
//     Bimap maps a Codec[T] to a Codec[V] through a total bidirectional mapping.
//     Nullable writes a presence flag. ListOf and MapOf write an element count
//     followed by the elements.
//
//   - Wrappers: Encrypted seals the serialized inner value with an AEAD Cipher
//     (AES-GCM or XChaCha20-Poly1305) and Compressed compresses it (zstd or
//     snappy). Both write [4-byte length][payload].
//
// Boundedness:
//
// Every codec reports whether it is bounded, i.e. whether it can find the end of
// its own encoding without being told the length. Unbounded codecs (UTF8,
// Remaining, and anything built on them without a Sized frame) are only valid
// as the last field of a buffer.
//
// Errors:
//
// Decoding past the available bytes fails with an *UnderflowError (matches
// ErrUnderflow). An unrecognised tag or flag fails with an *UnknownFormatError
// (matches ErrUnknownFormat). A Sized frame that is only partially consumed by
// its inner decoder is not an error.
//
// Example usage:
//
//	pair := codec.ListOf(codec.Int32, codec.Sized(codec.UTF8))
//	data, err := codec.Marshal(pair, []string{"a", "b"})
//	values, err := codec.Unmarshal(pair, data)
package codec
