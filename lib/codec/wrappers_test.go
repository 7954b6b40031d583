package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func testKey(n int) []byte {
	key := make([]byte, n)
	for i := range key {
		key[i] = byte(i * 7)
	}
	return key
}

func TestEncrypted(t *testing.T) {
	aesCipher, err := NewAESGCM(testKey(32))
	if err != nil {
		t.Fatal(err)
	}
	chacha, err := NewXChaCha20(testKey(32))
	if err != nil {
		t.Fatal(err)
	}

	for _, c := range []Cipher{aesCipher, chacha} {
		t.Run(c.Name(), func(t *testing.T) {
			enc := Encrypted(UTF8, c)
			if !enc.IsBounded() {
				t.Errorf("encrypted codec must be bounded")
			}

			buf := NewBuffer(0)
			if err := enc.Encode("secret payload", buf); err != nil {
				t.Fatal(err)
			}
			_ = Int32.Encode(99, buf)
			data := buf.Bytes()

			// [4-byte length][ciphertext] and the plaintext does not show up
			size := int(binary.BigEndian.Uint32(data[:4]))
			if size+4+4 != len(data) {
				t.Errorf("length prefix %d does not match buffer of %d bytes", size, len(data))
			}
			if bytes.Contains(data, []byte("secret")) {
				t.Errorf("plaintext visible in ciphertext")
			}

			r := NewReader(data)
			got, err := enc.Decode(r)
			if err != nil {
				t.Fatal(err)
			}
			if got != "secret payload" {
				t.Errorf("expected secret payload, got %q", got)
			}
			if n, _ := Int32.Decode(r); n != 99 {
				t.Errorf("cursor not advanced past ciphertext, read %d", n)
			}

			// tampering must be detected
			data[len(data)-5] ^= 0xff
			if _, err := enc.Decode(NewReader(data)); !errors.Is(err, ErrDecrypt) {
				t.Errorf("expected ErrDecrypt, got %v", err)
			}
		})
	}
}

func TestEncryptedWrongKey(t *testing.T) {
	a, _ := NewXChaCha20(testKey(32))
	b, _ := NewXChaCha20(bytes.Repeat([]byte{1}, 32))

	data := MustMarshal(Encrypted(Int64, a), 5)
	if _, err := Unmarshal(Encrypted(Int64, b), data); !errors.Is(err, ErrDecrypt) {
		t.Errorf("expected ErrDecrypt, got %v", err)
	}
}

func TestInvalidKey(t *testing.T) {
	if _, err := NewAESGCM(testKey(7)); err == nil {
		t.Errorf("expected error for 7-byte AES key")
	}
	if _, err := NewXChaCha20(testKey(16)); err == nil {
		t.Errorf("expected error for 16-byte XChaCha20 key")
	}
}

func TestCompressed(t *testing.T) {
	zstdCompressor, err := NewZstd()
	if err != nil {
		t.Fatal(err)
	}

	payload := bytes.Repeat([]byte("abcdefgh"), 512)
	for _, c := range []Compressor{zstdCompressor, Snappy} {
		t.Run(c.Name(), func(t *testing.T) {
			codec := Compressed(Remaining, c)
			data := MustMarshal(codec, payload)
			if len(data) >= len(payload) {
				t.Errorf("expected compression, %d >= %d bytes", len(data), len(payload))
			}
			if got := roundTrip(t, codec, payload); !bytes.Equal(got, payload) {
				t.Errorf("payload mismatch after round trip")
			}
		})
	}
}
