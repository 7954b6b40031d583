// Package internal holds the iterator plumbing shared by the linkedmap engines.
package internal

import (
	"github.com/ValentinKolb/kvcollections/lib/codec"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Peeking Iterator
// --------------------------------------------------------------------------

// NextFunc produces the next pair. ok is false once the source is exhausted.
type NextFunc[K, V any] func() (pair linkedmap.Pair[K, V], ok bool, err error)

// peeking turns a pull function into a linkedmap.Iterator with one pair of lookahead.
type peeking[K, V any] struct {
	next    NextFunc[K, V]
	release func() error

	head    linkedmap.Pair[K, V]
	hasHead bool
	done    bool
	err     error
	closed  bool
}

// Peeking builds an iterator from next. release is called once by Close.
func Peeking[K, V any](next NextFunc[K, V], release func() error) linkedmap.Iterator[K, V] {
	return &peeking[K, V]{next: next, release: release}
}

// fill loads the lookahead slot if it is empty
func (p *peeking[K, V]) fill() {
	if p.hasHead || p.done || p.closed {
		return
	}
	pair, ok, err := p.next()
	if err != nil {
		p.err = err
		p.done = true
		return
	}
	if !ok {
		p.done = true
		return
	}
	p.head, p.hasHead = pair, true
}

func (p *peeking[K, V]) HasNext() bool {
	p.fill()
	return p.hasHead
}

func (p *peeking[K, V]) Peek() (linkedmap.Pair[K, V], error) {
	if p.closed {
		return linkedmap.Pair[K, V]{}, linkedmap.ErrClosed
	}
	p.fill()
	if !p.hasHead {
		if p.err != nil {
			return linkedmap.Pair[K, V]{}, p.err
		}
		return linkedmap.Pair[K, V]{}, linkedmap.ErrNoSuchElement
	}
	return p.head, nil
}

func (p *peeking[K, V]) Next() (linkedmap.Pair[K, V], error) {
	pair, err := p.Peek()
	if err != nil {
		return pair, err
	}
	p.head, p.hasHead = linkedmap.Pair[K, V]{}, false
	return pair, nil
}

func (p *peeking[K, V]) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.hasHead = false
	var err error
	if p.release != nil {
		err = p.release()
	}
	if p.err != nil {
		return p.err
	}
	return err
}

// --------------------------------------------------------------------------
// Engine Cursors
// --------------------------------------------------------------------------

// Cursor is the raw byte iterator an engine exposes. Key and Value are only
// valid until the next call to Next.
type Cursor interface {
	Valid() bool
	Key() []byte
	Value() []byte
	Next() bool
	Close() error
}

// SkipUntil advances cur to the first entry whose key matches prefix.
// Under the length-first order a seek to prefix lands on the first longer
// key, not on the first key starting with prefix.
func SkipUntil(cur Cursor, prefix []byte, match func(key, prefix []byte) bool) {
	for cur.Valid() && !match(cur.Key(), prefix) {
		cur.Next()
	}
}

// Decoding wraps a positioned cursor and decodes each entry with the given codecs.
// The cursor must already point at the first entry to return.
func Decoding[K, V any](cur Cursor, keys codec.Codec[K], values codec.Codec[V]) linkedmap.Iterator[K, V] {
	return Peeking[K, V](func() (linkedmap.Pair[K, V], bool, error) {
		if !cur.Valid() {
			return linkedmap.Pair[K, V]{}, false, nil
		}
		pair, err := DecodePair(cur.Key(), cur.Value(), keys, values)
		if err != nil {
			return pair, false, err
		}
		cur.Next()
		return pair, true, nil
	}, cur.Close)
}

// DecodePair decodes a raw entry. The codecs copy variable length data, so
// the result does not alias k or v.
func DecodePair[K, V any](k, v []byte, keys codec.Codec[K], values codec.Codec[V]) (linkedmap.Pair[K, V], error) {
	key, err := codec.Unmarshal(keys, k)
	if err != nil {
		return linkedmap.Pair[K, V]{}, errors.Wrap(err, "decode key")
	}
	value, err := codec.Unmarshal(values, v)
	if err != nil {
		return linkedmap.Pair[K, V]{}, errors.Wrap(err, "decode value")
	}
	return linkedmap.Pair[K, V]{Key: key, Value: value}, nil
}
