package sequence

import "sync"

// syncQueue serializes every call to the wrapped queue
type syncQueue[T any] struct {
	mu    sync.Mutex
	inner Queue[T]
}

// Synchronized wraps q so that it can be shared between goroutines.
func Synchronized[T any](q Queue[T]) Queue[T] {
	if s, ok := q.(*syncQueue[T]); ok {
		return s
	}
	return &syncQueue[T]{inner: q}
}

func (s *syncQueue[T]) Add(item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Add(item)
}

func (s *syncQueue[T]) AddAll(items []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.AddAll(items)
}

func (s *syncQueue[T]) Peek() (T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Peek()
}

func (s *syncQueue[T]) Pop() (T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Pop()
}

func (s *syncQueue[T]) IsEmpty() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.IsEmpty()
}

func (s *syncQueue[T]) Len() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Len()
}

func (s *syncQueue[T]) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Clear()
}

func (s *syncQueue[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}
