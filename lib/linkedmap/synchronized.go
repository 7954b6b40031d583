package linkedmap

import "sync"

// --------------------------------------------------------------------------
// Synchronized Map
// --------------------------------------------------------------------------

// syncMap serializes every call to the wrapped map, including calls on the
// iterators and batches it hands out.
type syncMap[K, V any] struct {
	mu    sync.Mutex
	inner LinkedMap[K, V]
}

// Synchronized wraps m so that it can be shared between goroutines.
// All operations, including iterator and batch methods, run under one mutex.
func Synchronized[K, V any](m LinkedMap[K, V]) LinkedMap[K, V] {
	if s, ok := m.(*syncMap[K, V]); ok {
		return s
	}
	return &syncMap[K, V]{inner: m}
}

func (s *syncMap[K, V]) Get(key K) (V, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Get(key)
}

func (s *syncMap[K, V]) IsEmpty() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.IsEmpty()
}

func (s *syncMap[K, V]) FirstKey() (K, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.FirstKey()
}

func (s *syncMap[K, V]) LastKey() (K, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.LastKey()
}

func (s *syncMap[K, V]) LastKeyWithPrefix(prefix K) (K, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.LastKeyWithPrefix(prefix)
}

func (s *syncMap[K, V]) Put(key K, value V) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Put(key, value)
}

func (s *syncMap[K, V]) PutAll(pairs []Pair[K, V]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.PutAll(pairs)
}

func (s *syncMap[K, V]) Merge(key K, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Merge(key, value)
}

func (s *syncMap[K, V]) MergeAll(pairs []Pair[K, V]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.MergeAll(pairs)
}

func (s *syncMap[K, V]) Remove(key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Remove(key)
}

func (s *syncMap[K, V]) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Clear()
}

func (s *syncMap[K, V]) RemoveRange(from, to K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.RemoveRange(from, to)
}

func (s *syncMap[K, V]) Iterator() (Iterator[K, V], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, err := s.inner.Iterator()
	if err != nil {
		return nil, err
	}
	return &syncIterator[K, V]{mu: &s.mu, inner: it}, nil
}

func (s *syncMap[K, V]) IteratorFrom(prefix K) (Iterator[K, V], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, err := s.inner.IteratorFrom(prefix)
	if err != nil {
		return nil, err
	}
	return &syncIterator[K, V]{mu: &s.mu, inner: it}, nil
}

func (s *syncMap[K, V]) NewWriteBatch() (WriteBatch[K, V], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.inner.NewWriteBatch()
	if err != nil {
		return nil, err
	}
	return &syncBatch[K, V]{mu: &s.mu, inner: b}, nil
}

func (s *syncMap[K, V]) SupportsFeature(feature Feature) bool {
	return s.inner.SupportsFeature(feature)
}

func (s *syncMap[K, V]) GetInfo() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.GetInfo()
}

func (s *syncMap[K, V]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}

// Destroy forwards to the wrapped map if it implements Destroyer.
func (s *syncMap[K, V]) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.inner.(Destroyer)
	if !ok {
		return ErrUnsupportedOperation
	}
	return d.Destroy()
}

// --------------------------------------------------------------------------
// Synchronized Iterator and Batch
// --------------------------------------------------------------------------

type syncIterator[K, V any] struct {
	mu    *sync.Mutex
	inner Iterator[K, V]
}

func (it *syncIterator[K, V]) HasNext() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.inner.HasNext()
}

func (it *syncIterator[K, V]) Next() (Pair[K, V], error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.inner.Next()
}

func (it *syncIterator[K, V]) Peek() (Pair[K, V], error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.inner.Peek()
}

func (it *syncIterator[K, V]) Close() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.inner.Close()
}

type syncBatch[K, V any] struct {
	mu    *sync.Mutex
	inner WriteBatch[K, V]
}

func (b *syncBatch[K, V]) Put(key K, value V) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inner.Put(key, value)
}

func (b *syncBatch[K, V]) Merge(key K, value V) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inner.Merge(key, value)
}

func (b *syncBatch[K, V]) Remove(key K) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inner.Remove(key)
}

func (b *syncBatch[K, V]) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inner.Clear()
}

func (b *syncBatch[K, V]) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inner.Commit()
}

func (b *syncBatch[K, V]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inner.Close()
}
