package codec

import (
	"bytes"
	"errors"
	"reflect"
	"strconv"
	"testing"
)

func TestSizedLayout(t *testing.T) {
	data := MustMarshal(Sized(UTF8), "hey")
	if !bytes.Equal(data, []byte{0, 0, 0, 3, 'h', 'e', 'y'}) {
		t.Errorf("unexpected layout %v", data)
	}
	if !Sized(UTF8).IsBounded() {
		t.Errorf("sized codec must be bounded")
	}
}

func TestSizedConcatenation(t *testing.T) {
	// an unbounded codec becomes safe to concatenate once it is framed
	buf := NewBuffer(0)
	if err := Sized(UTF8).Encode("first", buf); err != nil {
		t.Fatal(err)
	}
	if err := Int64.Encode(42, buf); err != nil {
		t.Fatal(err)
	}

	r := NewReader(buf.Bytes())
	s, err := Sized(UTF8).Decode(r)
	if err != nil || s != "first" {
		t.Fatalf("expected first, got %q (%v)", s, err)
	}
	n, err := Int64.Decode(r)
	if err != nil || n != 42 {
		t.Fatalf("expected 42, got %d (%v)", n, err)
	}
}

func TestSizedUnderReadIsTolerated(t *testing.T) {
	// the inner codec only reads the first byte of its frame
	firstByte := New("first-byte", true,
		func(v []byte, buf *Buffer) error { _, err := buf.Write(v); return err },
		func(r *Reader) ([]byte, error) {
			p, err := r.Read(1, "first-byte")
			return copyBytes(p), err
		})

	buf := NewBuffer(0)
	_ = Sized(firstByte).Encode([]byte{9, 8, 7, 6}, buf)
	_ = UTF8Sized.Encode("after", buf)

	r := NewReader(buf.Bytes())
	head, err := Sized(firstByte).Decode(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(head, []byte{9}) {
		t.Errorf("expected [9], got %v", head)
	}
	if r.Offset() != 8 {
		t.Errorf("cursor must skip the whole frame: offset %d", r.Offset())
	}
	s, err := UTF8Sized.Decode(r)
	if err != nil || s != "after" {
		t.Errorf("expected after, got %q (%v)", s, err)
	}
}

func TestSizedInnerCannotOverRead(t *testing.T) {
	buf := NewBuffer(0)
	_ = Sized(Short).Encode(1, buf)
	_ = Int64.Encode(5, buf)

	// decode the 2-byte frame with a codec that wants 4 bytes
	_, err := Sized(Int32).Decode(NewReader(buf.Bytes()))
	if !errors.Is(err, ErrUnderflow) {
		t.Errorf("expected underflow inside the frame, got %v", err)
	}
}

func TestSizedWithMedium(t *testing.T) {
	c := SizedWith(Medium, UTF8)
	data := MustMarshal(c, "ab")
	if !bytes.Equal(data, []byte{0, 0, 2, 'a', 'b'}) {
		t.Errorf("unexpected layout %v", data)
	}
	if got := roundTrip(t, c, "ab"); got != "ab" {
		t.Errorf("expected ab, got %q", got)
	}
}

func TestBimap(t *testing.T) {
	c := Bimap(Int64, func(s string) int64 {
		n, _ := strconv.ParseInt(s, 10, 64)
		return n
	}, func(n int64) string {
		return strconv.FormatInt(n, 10)
	})
	if got := roundTrip(t, c, "-1234"); got != "-1234" {
		t.Errorf("expected -1234, got %s", got)
	}
	if !c.IsBounded() {
		t.Errorf("bimap must keep the boundedness of its inner codec")
	}
}

func TestNullable(t *testing.T) {
	c := Nullable(UTF8Sized)
	if got := roundTrip(t, c, nil); got != nil {
		t.Errorf("expected nil, got %v", *got)
	}
	v := "present"
	got := roundTrip(t, c, &v)
	if got == nil || *got != v {
		t.Errorf("expected %q, got %v", v, got)
	}
	if data := MustMarshal(c, nil); !bytes.Equal(data, []byte{0}) {
		t.Errorf("nil must encode as a single zero byte, got %v", data)
	}
}

func TestListOf(t *testing.T) {
	c := ListOf(Int32, UTF8Sized)
	v := []string{"c", "a", "b", ""}
	if got := roundTrip(t, c, v); !reflect.DeepEqual(got, v) {
		t.Errorf("expected %v, got %v", v, got)
	}
	if got := roundTrip(t, c, []string{}); len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
	if ListOf(Int32, UTF8).IsBounded() {
		t.Errorf("list of unbounded items must be unbounded")
	}

	// a count larger than the data must fail with underflow, not allocate
	_, err := Unmarshal(c, []byte{0x7f, 0xff, 0xff, 0xff})
	if !errors.Is(err, ErrUnderflow) {
		t.Errorf("expected underflow, got %v", err)
	}
}

func TestMapOf(t *testing.T) {
	c := MapOf(shortCount(), UTF8Sized, Int64)
	v := map[string]int64{"alf": 1, "cat": 5, "ann": 2}
	if got := roundTrip(t, c, v); !reflect.DeepEqual(got, v) {
		t.Errorf("expected %v, got %v", v, got)
	}
}

// shortCount adapts the 2-byte Short codec for use as a collection count
func shortCount() Codec[int32] {
	return Bimap(Short, func(n int32) int16 { return int16(n) }, func(n int16) int32 { return int32(n) })
}

func TestHeterogeneousRecord(t *testing.T) {
	type record struct {
		ID   int64
		Tags []string
		Note *string
	}
	note := "n"
	rec := record{ID: 77, Tags: []string{"x", "y"}, Note: &note}

	tags := ListOf(Int32, UTF8Sized)
	notes := Nullable(Sized(UTF8))
	c := New("record", true,
		func(v record, buf *Buffer) error {
			if err := Int64.Encode(v.ID, buf); err != nil {
				return err
			}
			if err := tags.Encode(v.Tags, buf); err != nil {
				return err
			}
			return notes.Encode(v.Note, buf)
		},
		func(r *Reader) (record, error) {
			var out record
			var err error
			if out.ID, err = Int64.Decode(r); err != nil {
				return out, err
			}
			if out.Tags, err = tags.Decode(r); err != nil {
				return out, err
			}
			out.Note, err = notes.Decode(r)
			return out, err
		})

	got := roundTrip(t, c, rec)
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("expected %+v, got %+v", rec, got)
	}
}
