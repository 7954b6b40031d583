package codec

// --------------------------------------------------------------------------
// Buffer (encoder output)
// --------------------------------------------------------------------------

// Buffer is a growable output buffer that encoders append to.
// The zero value is an empty buffer ready to use.
type Buffer struct {
	b []byte
}

// NewBuffer creates a buffer with the given initial capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{b: make([]byte, 0, capacity)}
}

// Bytes returns the encoded bytes. The slice aliases the buffer until the next write.
func (buf *Buffer) Bytes() []byte { return buf.b }

// Len returns the number of bytes written so far.
func (buf *Buffer) Len() int { return len(buf.b) }

// Reset empties the buffer but keeps its capacity.
func (buf *Buffer) Reset() { buf.b = buf.b[:0] }

// Write appends p to the buffer. It never fails.
func (buf *Buffer) Write(p []byte) (int, error) {
	buf.b = append(buf.b, p...)
	return len(p), nil
}

// WriteByte appends a single byte. It never fails.
func (buf *Buffer) WriteByte(c byte) error {
	buf.b = append(buf.b, c)
	return nil
}

// WriteString appends the bytes of s. It never fails.
func (buf *Buffer) WriteString(s string) (int, error) {
	buf.b = append(buf.b, s...)
	return len(s), nil
}

// grow appends n zero bytes and returns the slice holding them
func (buf *Buffer) grow(n int) []byte {
	start := len(buf.b)
	buf.b = append(buf.b, make([]byte, n)...)
	return buf.b[start : start+n]
}

// overwrite replaces the bytes at offset with p, the region must already exist
func (buf *Buffer) overwrite(offset int, p []byte) {
	copy(buf.b[offset:offset+len(p)], p)
}

// --------------------------------------------------------------------------
// Reader (decoder input)
// --------------------------------------------------------------------------

// Reader is a read cursor over an immutable byte slice.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the current read position.
func (r *Reader) Offset() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// Read consumes exactly n bytes. The returned slice aliases the input.
// The codec name is only used to build the error.
func (r *Reader) Read(n int, codecName string) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, &UnderflowError{Codec: codecName, Offset: r.pos, Need: n, Have: r.Remaining()}
	}
	p := r.data[r.pos : r.pos+n]
	r.pos += n
	return p, nil
}

// ReadByte consumes a single byte.
func (r *Reader) ReadByte() (byte, error) {
	p, err := r.Read(1, "byte")
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// ReadRest consumes all remaining bytes.
func (r *Reader) ReadRest() []byte {
	p := r.data[r.pos:]
	r.pos = len(r.data)
	return p
}

// Sub returns a reader over the next n bytes and advances this reader past
// them, no matter how much of the sub reader is consumed later.
func (r *Reader) Sub(n int, codecName string) (*Reader, error) {
	p, err := r.Read(n, codecName)
	if err != nil {
		return nil, err
	}
	return NewReader(p), nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// copyBytes returns a copy of p that does not alias the reader's input
func copyBytes(p []byte) []byte {
	out := make([]byte, len(p))
	copy(out, p)
	return out
}
