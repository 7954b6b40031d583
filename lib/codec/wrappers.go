package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/chacha20poly1305"
)

// --------------------------------------------------------------------------
// Encrypted values
// --------------------------------------------------------------------------

// Cipher is a symmetric cipher used by Encrypted.
// Implementations must be safe for concurrent use.
type Cipher interface {
	// Seal encrypts plaintext. The output carries everything Open needs
	// (e.g. the nonce) besides the key.
	Seal(plaintext []byte) ([]byte, error)
	// Open reverses Seal.
	Open(ciphertext []byte) ([]byte, error)
	// Name identifies the algorithm.
	Name() string
}

// ErrDecrypt is returned when a ciphertext fails authentication.
var ErrDecrypt = errors.New("codec: decryption failed")

// aeadCipher implements Cipher for any AEAD, the random nonce is prepended to the ciphertext
type aeadCipher struct {
	name string
	aead cipher.AEAD
}

// NewAESGCM creates an AES-GCM cipher. key must be 16, 24 or 32 bytes long.
func NewAESGCM(key []byte) (Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "codec: aes key")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "codec: gcm")
	}
	return &aeadCipher{name: "aes-gcm", aead: aead}, nil
}

// NewXChaCha20 creates an XChaCha20-Poly1305 cipher. key must be 32 bytes long.
func NewXChaCha20(key []byte) (Cipher, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "codec: xchacha20 key")
	}
	return &aeadCipher{name: "xchacha20-poly1305", aead: aead}, nil
}

func (c *aeadCipher) Name() string { return c.name }

func (c *aeadCipher) Seal(plaintext []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	out := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, errors.Wrap(err, "codec: nonce")
	}
	return c.aead.Seal(out, out, plaintext, nil), nil
}

func (c *aeadCipher) Open(ciphertext []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrDecrypt
	}
	plaintext, err := c.aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, errors.Wrapf(ErrDecrypt, "%s: %v", c.name, err)
	}
	return plaintext, nil
}

// Encrypted serializes the value with inner, encrypts the result and writes
// [4-byte ciphertext length][ciphertext]. Decode decrypts exactly that many
// bytes and decodes the plaintext with inner.
func Encrypted[T any](inner Codec[T], c Cipher) Codec[T] {
	return transformed(fmt.Sprintf("encrypted[%s](%s)", c.Name(), inner.Name()), inner, c.Seal, c.Open)
}

// --------------------------------------------------------------------------
// Compressed values
// --------------------------------------------------------------------------

// Compressor is a block compressor used by Compressed.
// Implementations must be safe for concurrent use.
type Compressor interface {
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
	Name() string
}

type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstd creates a zstd compressor. EncodeAll and DecodeAll of the shared
// encoder and decoder are safe for concurrent use.
func NewZstd() (Compressor, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "codec: zstd writer")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "codec: zstd reader")
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

func (z *zstdCompressor) Name() string { return "zstd" }

func (z *zstdCompressor) Compress(src []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, nil), nil
}

func (z *zstdCompressor) Decompress(src []byte) ([]byte, error) {
	out, err := z.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, errors.Wrap(err, "codec: zstd")
	}
	return out, nil
}

type snappyCompressor struct{}

// Snappy is the snappy block compressor.
var Snappy Compressor = snappyCompressor{}

func (snappyCompressor) Name() string { return "snappy" }

func (snappyCompressor) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCompressor) Decompress(src []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, errors.Wrap(err, "codec: snappy")
	}
	return out, nil
}

// Compressed serializes the value with inner, compresses the result and writes
// [4-byte compressed length][compressed bytes].
func Compressed[T any](inner Codec[T], c Compressor) Codec[T] {
	return transformed(fmt.Sprintf("compressed[%s](%s)", c.Name(), inner.Name()), inner, c.Compress, c.Decompress)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// transformed serializes with inner into a scratch buffer, applies forward and
// writes the result length prefixed. Decode reverses the steps.
func transformed[T any](name string, inner Codec[T], forward, backward func([]byte) ([]byte, error)) Codec[T] {
	return New(name, true,
		func(v T, buf *Buffer) error {
			raw := NewBuffer(64)
			if err := inner.Encode(v, raw); err != nil {
				return err
			}
			out, err := forward(raw.Bytes())
			if err != nil {
				return err
			}
			if err := writeLength(len(out), buf); err != nil {
				return err
			}
			_, err = buf.Write(out)
			return err
		},
		func(r *Reader) (T, error) {
			var zero T
			p, err := readLengthPrefixed(r, name)
			if err != nil {
				return zero, err
			}
			plain, err := backward(p)
			if err != nil {
				return zero, err
			}
			return inner.Decode(NewReader(plain))
		})
}
