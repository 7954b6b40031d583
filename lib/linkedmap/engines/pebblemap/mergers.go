package pebblemap

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/pebble"
)

// --------------------------------------------------------------------------
// String append
// --------------------------------------------------------------------------

// StringAppendMerger joins all operands, oldest first, with sep.
// "aa" merged with "bb" and sep "," yields "aa,bb".
func StringAppendMerger(sep string) *pebble.Merger {
	return &pebble.Merger{
		Name: "StringAppendOperator",
		Merge: func(_, value []byte) (pebble.ValueMerger, error) {
			return &stringAppend{sep: []byte(sep), parts: [][]byte{bytes.Clone(value)}}, nil
		},
	}
}

type stringAppend struct {
	sep   []byte
	parts [][]byte // oldest first
}

func (s *stringAppend) MergeNewer(value []byte) error {
	s.parts = append(s.parts, bytes.Clone(value))
	return nil
}

func (s *stringAppend) MergeOlder(value []byte) error {
	s.parts = append([][]byte{bytes.Clone(value)}, s.parts...)
	return nil
}

func (s *stringAppend) Finish(bool) ([]byte, io.Closer, error) {
	return bytes.Join(s.parts, s.sep), nil, nil
}

// --------------------------------------------------------------------------
// Unsigned 64 bit addition
// --------------------------------------------------------------------------

// UInt64AddMerger adds big-endian uint64 operands with wrap-around, which
// matches codec.Int64 and codec.Uint64. An operand that is not exactly 8
// bytes long counts as zero and is logged.
var UInt64AddMerger = &pebble.Merger{
	Name: "UInt64AddOperator",
	Merge: func(_, value []byte) (pebble.ValueMerger, error) {
		s := &uint64Add{}
		s.add(value)
		return s, nil
	},
}

type uint64Add struct {
	sum uint64
}

func (s *uint64Add) add(value []byte) {
	if len(value) != 8 {
		log.Warningf("uint64 add: ignoring operand of %d bytes", len(value))
		return
	}
	s.sum += binary.BigEndian.Uint64(value)
}

func (s *uint64Add) MergeNewer(value []byte) error {
	s.add(value)
	return nil
}

func (s *uint64Add) MergeOlder(value []byte) error {
	s.add(value)
	return nil
}

func (s *uint64Add) Finish(bool) ([]byte, io.Closer, error) {
	return binary.BigEndian.AppendUint64(nil, s.sum), nil, nil
}
