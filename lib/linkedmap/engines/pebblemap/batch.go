package pebblemap

import (
	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// batch wraps a pebble write batch. Keys staged so far are tracked so
// that Clear also covers keys the batch itself wrote.
type batch[K, V any] struct {
	m     *pebbleMap[K, V]
	b     *pebble.Batch
	done  bool
	sizes []int

	// smallest and greatest raw key staged so far
	minKey, maxKey []byte
	cleared        [][2][]byte
}

func (m *pebbleMap[K, V]) NewWriteBatch() (linkedmap.WriteBatch[K, V], error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return &batch[K, V]{m: m, b: m.db.NewBatch()}, nil
}

func (b *batch[K, V]) track(k []byte) {
	cmp := b.m.opts.Comparator
	if b.minKey == nil || cmp.Compare(k, b.minKey) < 0 {
		b.minKey = k
	}
	if b.maxKey == nil || cmp.Compare(k, b.maxKey) > 0 {
		b.maxKey = k
	}
}

func (b *batch[K, V]) encode(key K, value V) ([]byte, []byte, error) {
	if b.done {
		return nil, nil, linkedmap.ErrClosed
	}
	k, err := b.m.encodeKey(key)
	if err != nil {
		return nil, nil, err
	}
	v, err := b.m.encodeValue(value)
	if err != nil {
		return nil, nil, err
	}
	b.track(k)
	return k, v, nil
}

func (b *batch[K, V]) Put(key K, value V) (int, error) {
	k, v, err := b.encode(key, value)
	if err != nil {
		return 0, err
	}
	if err := b.b.Set(k, v, nil); err != nil {
		return 0, errors.Wrap(err, "pebblemap: batch put")
	}
	b.sizes = append(b.sizes, len(v))
	return len(v), nil
}

func (b *batch[K, V]) Merge(key K, value V) error {
	k, v, err := b.encode(key, value)
	if err != nil {
		return err
	}
	if err := b.b.Merge(k, v, nil); err != nil {
		return errors.Wrap(err, "pebblemap: batch merge")
	}
	b.sizes = append(b.sizes, len(v))
	return nil
}

func (b *batch[K, V]) Remove(key K) error {
	if b.done {
		return linkedmap.ErrClosed
	}
	k, err := b.m.encodeKey(key)
	if err != nil {
		return err
	}
	return errors.Wrap(b.b.Delete(k, nil), "pebblemap: batch remove")
}

// Clear stages a range tombstone over the keys in the map and in the batch.
func (b *batch[K, V]) Clear() error {
	if b.done {
		return linkedmap.ErrClosed
	}
	if err := b.m.checkOpen(); err != nil {
		return err
	}
	first, last, err := b.m.bounds()
	if err != nil {
		return errors.Wrap(err, "pebblemap: batch clear")
	}
	cmp := b.m.opts.Comparator
	if b.minKey != nil && (first == nil || cmp.Compare(b.minKey, first) < 0) {
		first = b.minKey
	}
	if b.maxKey != nil && (last == nil || cmp.Compare(b.maxKey, last) > 0) {
		last = b.maxKey
	}
	if first == nil {
		return nil
	}
	if err := clearRange(b.b, first, last); err != nil {
		return errors.Wrap(err, "pebblemap: batch clear")
	}
	b.cleared = append(b.cleared, [2][]byte{first, inclusiveEnd(last)})
	return nil
}

func (b *batch[K, V]) Commit() error {
	if b.done {
		return linkedmap.ErrClosed
	}
	if err := b.m.checkOpen(); err != nil {
		return err
	}
	b.done = true
	if err := b.b.Commit(b.m.writeOpt); err != nil {
		return b.m.failed(linkedmap.OpBatch, errors.Wrap(err, "pebblemap: commit"))
	}
	linkedmap.CountOp(linkedmap.ImplPebble, linkedmap.OpBatch)
	for _, size := range b.sizes {
		b.m.sizes.Observe(size)
		linkedmap.ObserveValueSize(linkedmap.ImplPebble, size)
	}
	for _, r := range b.cleared {
		b.m.scheduleCompaction(r[0], r[1])
	}
	return nil
}

// Close releases the batch. An uncommitted batch is discarded.
func (b *batch[K, V]) Close() error {
	if b.b == nil {
		return nil
	}
	b.done = true
	err := b.b.Close()
	b.b = nil
	return errors.Wrap(err, "pebblemap: close batch")
}
