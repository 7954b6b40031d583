package comparator

import (
	"bytes"
	"math/rand"
	"testing"
)

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

func TestCompareEqualLength(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		n := rng.Intn(8)
		a := make([]byte, n)
		b := make([]byte, n)
		rng.Read(a)
		rng.Read(b)
		if i%5 == 0 {
			copy(b, a)
		}
		if got, want := sign(CompareBytes(a, b)), bytes.Compare(a, b); got != want {
			t.Fatalf("CompareBytes(%v, %v) = %d, want sign %d", a, b, got, want)
		}
	}
}

func TestCompareUnequalLength(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 2000; i++ {
		a := make([]byte, rng.Intn(10))
		b := make([]byte, rng.Intn(10))
		rng.Read(a)
		rng.Read(b)
		if len(a) == len(b) {
			continue
		}
		if got := CompareBytes(a, b); got != len(a)-len(b) {
			t.Fatalf("CompareBytes(%v, %v) = %d, want %d", a, b, got, len(a)-len(b))
		}
	}

	// content does not matter across lengths (this diverges from bytes.Compare)
	if CompareBytes([]byte{0xff}, []byte{0x00, 0x00}) >= 0 {
		t.Errorf("shorter key must sort first regardless of content")
	}
	if CompareBytes([]byte("b"), []byte("alpha")) != -4 {
		t.Errorf("expected -4 for b vs alpha")
	}
}

func TestCompareUnsignedBytes(t *testing.T) {
	if CompareBytes([]byte{0x80}, []byte{0x7f}) <= 0 {
		t.Errorf("bytes must compare unsigned")
	}
	if got := CompareBytes([]byte{1, 0x10}, []byte{1, 0x01}); got != 15 {
		t.Errorf("expected byte difference 15, got %d", got)
	}
}

func TestCompareAbsent(t *testing.T) {
	if Compare(nil, []byte{}) >= 0 {
		t.Errorf("absent must sort before empty")
	}
	if Compare([]byte{}, nil) <= 0 {
		t.Errorf("present must sort after absent")
	}
	if Compare(nil, nil) != 0 {
		t.Errorf("two absent keys must be equal")
	}
	if Compare([]byte("a"), []byte("a")) != 0 {
		t.Errorf("equal keys must compare 0")
	}
}

func TestFindShortestSeparator(t *testing.T) {
	cases := []struct {
		start, limit, want []byte
	}{
		// common prefix "ab", 'c'+1 < 'f' -> "abd"
		{[]byte("abcxyz"), []byte("abfzz"), []byte("abd")},
		// increment would reach the limit byte -> unchanged
		{[]byte("abc"), []byte("abd"), []byte("abc")},
		// one is a prefix of the other -> unchanged
		{[]byte("ab"), []byte("abc"), []byte("ab")},
		// shared 0xff prefix, 1+1 < 0xff -> incremented
		{[]byte{0xff, 1}, []byte{0xff, 0xff}, []byte{0xff, 2}},
		// differing start byte is 0xff and cannot be incremented -> unchanged
		{[]byte{1, 0xff, 3}, []byte{1, 0x10}, []byte{1, 0xff, 3}},
		{[]byte{0xfe, 5, 5}, []byte{0xff, 1}, []byte{0xfe, 5, 5}},
		{[]byte{1, 2, 3}, []byte{1, 9}, []byte{1, 3}},
		{nil, []byte("x"), nil},
		{[]byte("x"), nil, []byte("x")},
	}
	for _, c := range cases {
		if got := FindShortestSeparator(c.start, c.limit); !bytes.Equal(got, c.want) {
			t.Errorf("FindShortestSeparator(%v, %v) = %v, want %v", c.start, c.limit, got, c.want)
		}
	}
}

func TestFindShortSuccessor(t *testing.T) {
	cases := []struct {
		key, want []byte
	}{
		{[]byte("abc"), []byte("b")},
		{[]byte{0xff, 0xff, 3, 9}, []byte{0xff, 0xff, 4}},
		{[]byte{0xff, 0xff}, []byte{0xff, 0xff}},
		{[]byte{}, []byte{}},
	}
	for _, c := range cases {
		if got := FindShortSuccessor(c.key); !bytes.Equal(got, c.want) {
			t.Errorf("FindShortSuccessor(%v) = %v, want %v", c.key, got, c.want)
		}
	}
	if FindShortSuccessor(nil) != nil {
		t.Errorf("nil key must stay nil")
	}
}

func TestComparatorContract(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, c := range []Comparator{LengthFirst, Lexicographic} {
		for i := 0; i < 5000; i++ {
			a := make([]byte, 1+rng.Intn(6))
			b := make([]byte, 1+rng.Intn(6))
			for j := range a {
				a[j] = byte(rng.Intn(4)) + 0xfc*byte(rng.Intn(2))
			}
			for j := range b {
				b[j] = byte(rng.Intn(4)) + 0xfc*byte(rng.Intn(2))
			}
			if c.Compare(a, b) > 0 {
				a, b = b, a
			}
			if c.Compare(a, b) < 0 {
				sep := c.Separator(a, b)
				if c.Compare(sep, a) < 0 || (c.Compare(sep, b) >= 0 && !bytes.Equal(sep, a)) {
					t.Fatalf("%s: Separator(%v, %v) = %v violates start <= k < limit", c.Name(), a, b, sep)
				}
			}
			if succ := c.Successor(a); c.Compare(succ, a) < 0 {
				t.Fatalf("%s: Successor(%v) = %v sorts before the key", c.Name(), a, succ)
			}
		}
	}
}

func TestLengthFirstGuards(t *testing.T) {
	// "b" is shorter than "abc" and would sort before it
	if got := LengthFirst.Successor([]byte("abc")); !bytes.Equal(got, []byte("abc")) {
		t.Errorf("expected the key itself, got %q", got)
	}
	// equal length keys keep the plain result
	if got := LengthFirst.Successor([]byte{0xff, 1}); !bytes.Equal(got, []byte{0xff, 2}) {
		t.Errorf("expected [255 2], got %v", got)
	}
	// the shortened separator "abd" sorts before "abcxyz" and is rejected
	if got := LengthFirst.Separator([]byte("abcxyz"), []byte("abfzzz")); !bytes.Equal(got, []byte("abcxyz")) {
		t.Errorf("expected start, got %q", got)
	}
	// the lexicographic order accepts the shortened keys
	if got := Lexicographic.Separator([]byte("abcxyz"), []byte("abfzz")); !bytes.Equal(got, []byte("abd")) {
		t.Errorf("expected abd, got %q", got)
	}
	if got := Lexicographic.Successor([]byte("abc")); !bytes.Equal(got, []byte("b")) {
		t.Errorf("expected b, got %q", got)
	}
}

func TestHasPrefix(t *testing.T) {
	if !HasPrefix([]byte("cat"), []byte("c")) || HasPrefix([]byte("c"), []byte("cat")) {
		t.Errorf("HasPrefix mismatch")
	}
	if !HasPrefix([]byte("x"), nil) {
		t.Errorf("every key has the empty prefix")
	}
}
