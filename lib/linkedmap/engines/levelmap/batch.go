package levelmap

import (
	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	"github.com/cockroachdb/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

// batch stages writes in a leveldb.Batch. Staged keys are remembered so
// that Clear can delete them too.
type batch[K, V any] struct {
	m      *Map[K, V]
	b      *leveldb.Batch
	done   bool
	sizes  []int
	staged [][]byte

	// ranges vacated by Clear, compacted after commit
	cleared [][2][]byte
}

func (m *Map[K, V]) NewWriteBatch() (linkedmap.WriteBatch[K, V], error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return &batch[K, V]{m: m, b: new(leveldb.Batch)}, nil
}

func (b *batch[K, V]) Put(key K, value V) (int, error) {
	if b.done {
		return 0, linkedmap.ErrClosed
	}
	k, err := b.m.encodeKey(key)
	if err != nil {
		return 0, err
	}
	v, err := b.m.encodeValue(value)
	if err != nil {
		return 0, err
	}
	b.b.Put(k, v)
	b.staged = append(b.staged, k)
	b.sizes = append(b.sizes, len(v))
	return len(v), nil
}

func (b *batch[K, V]) Merge(K, V) error {
	if b.done {
		return linkedmap.ErrClosed
	}
	return linkedmap.Unsupported(linkedmap.ImplLevel, "batch merge")
}

func (b *batch[K, V]) Remove(key K) error {
	if b.done {
		return linkedmap.ErrClosed
	}
	k, err := b.m.encodeKey(key)
	if err != nil {
		return err
	}
	b.b.Delete(k)
	return nil
}

// Clear stages one delete per key currently in the map and per key staged
// by this batch.
func (b *batch[K, V]) Clear() error {
	if b.done {
		return linkedmap.ErrClosed
	}
	if err := b.m.checkOpen(); err != nil {
		return err
	}
	for _, k := range b.staged {
		b.b.Delete(k)
	}
	b.staged = b.staged[:0]

	first, last, err := b.m.bounds()
	if err != nil {
		return errors.Wrap(err, "levelmap: batch clear")
	}
	if first == nil {
		return nil
	}
	it := b.m.db.NewIterator(nil, b.m.readOpt)
	defer it.Release()
	for it.Next() {
		b.b.Delete(it.Key())
	}
	if err := it.Error(); err != nil {
		return errors.Wrap(err, "levelmap: batch clear")
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
	if err := b.m.db.Write(b.b, b.m.writeOpt); err != nil {
		return b.m.failed(linkedmap.OpBatch, errors.Wrap(err, "levelmap: commit"))
	}
	linkedmap.CountOp(linkedmap.ImplLevel, linkedmap.OpBatch)
	for _, size := range b.sizes {
		b.m.sizes.Observe(size)
		linkedmap.ObserveValueSize(linkedmap.ImplLevel, size)
	}
	for _, r := range b.cleared {
		b.m.scheduleCompaction(r[0], r[1])
	}
	return nil
}

// Close discards an uncommitted batch.
func (b *batch[K, V]) Close() error {
	if b.b == nil {
		return nil
	}
	b.done = true
	b.b.Reset()
	b.b = nil
	return nil
}
