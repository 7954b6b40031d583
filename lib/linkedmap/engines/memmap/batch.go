package memmap

import "github.com/ValentinKolb/kvcollections/lib/linkedmap"

type opKind uint8

const (
	opPut opKind = iota
	opMerge
	opRemove
	opClear
)

type stagedOp[K, V any] struct {
	kind  opKind
	key   K
	value V
}

// batch stages operations and replays them under the map lock on Commit
type batch[K, V any] struct {
	m    *memMap[K, V]
	ops  []stagedOp[K, V]
	done bool
}

func (m *memMap[K, V]) NewWriteBatch() (linkedmap.WriteBatch[K, V], error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return &batch[K, V]{m: m}, nil
}

func (b *batch[K, V]) stage(op stagedOp[K, V]) error {
	if b.done {
		return linkedmap.ErrClosed
	}
	b.ops = append(b.ops, op)
	return nil
}

func (b *batch[K, V]) Put(key K, value V) (int, error) {
	if err := b.stage(stagedOp[K, V]{kind: opPut, key: key, value: value}); err != nil {
		return 0, err
	}
	return b.m.opts.SizeOf(value), nil
}

func (b *batch[K, V]) Merge(key K, value V) error {
	return b.stage(stagedOp[K, V]{kind: opMerge, key: key, value: value})
}

func (b *batch[K, V]) Remove(key K) error {
	return b.stage(stagedOp[K, V]{kind: opRemove, key: key})
}

func (b *batch[K, V]) Clear() error {
	return b.stage(stagedOp[K, V]{kind: opClear})
}

// Commit applies the staged operations in order. Other writers are blocked
// for the duration, readers may observe a partially applied batch.
func (b *batch[K, V]) Commit() error {
	if b.done {
		return linkedmap.ErrClosed
	}
	if err := b.m.checkOpen(); err != nil {
		return err
	}
	b.done = true

	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	for _, op := range b.ops {
		switch op.kind {
		case opPut:
			b.m.put(op.key, op.value)
		case opMerge:
			b.m.merge(op.key, op.value)
		case opRemove:
			b.m.remove(op.key)
		case opClear:
			b.m.clear()
		}
	}
	linkedmap.CountOp(linkedmap.ImplMemory, linkedmap.OpBatch)
	b.ops = nil
	return nil
}

func (b *batch[K, V]) Close() error {
	b.done = true
	b.ops = nil
	return nil
}
