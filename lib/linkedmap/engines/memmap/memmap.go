package memmap

import (
	"iter"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap/internal"
	"github.com/ValentinKolb/kvcollections/lib/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/zhangyunhao116/skipmap"
)

var log = logger.GetLogger("memmap")

const supportedFeatures = linkedmap.FeatureMerge |
	linkedmap.FeatureRemoveRange |
	linkedmap.FeatureWriteBatch |
	linkedmap.FeatureBatchMerge |
	linkedmap.FeatureBatchClear |
	linkedmap.FeatureDestroy

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures an in-memory map. Compare is required.
type Options[K, V any] struct {
	// Compare orders keys (negative, zero or positive like bytes.Compare).
	Compare func(a, b K) int
	// PrefixMatch decides where IteratorFrom starts (nil = key >= prefix).
	PrefixMatch linkedmap.PrefixMatcher[K]
	// MergeFn combines the current and the merged value (nil = keep the new value).
	MergeFn func(old, new V) V
	// SizeOf reports the size returned by Put (nil = shallow size of V).
	SizeOf func(V) int
}

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

type memMap[K, V any] struct {
	opts   Options[K, V]
	data   *skipmap.FuncMap[K, V]
	sizes  *util.SizeHistogram
	closed atomic.Bool

	// mu serializes read-modify-write operations and guards the last key cache
	mu        sync.Mutex
	last      K
	hasLast   bool
	lastKnown bool
}

// New creates an empty in-memory map.
func New[K, V any](opts Options[K, V]) (linkedmap.LinkedMap[K, V], error) {
	linkedmap.Init()
	if opts.Compare == nil {
		return nil, linkedmap.NewError(linkedmap.RetCInvalidArgument, "memmap: Options.Compare is required")
	}
	cmp := opts.Compare
	if opts.PrefixMatch == nil {
		opts.PrefixMatch = func(key, prefix K) bool { return cmp(key, prefix) >= 0 }
	}
	if opts.MergeFn == nil {
		opts.MergeFn = func(_, replacement V) V { return replacement }
	}
	if opts.SizeOf == nil {
		opts.SizeOf = func(v V) int { return int(unsafe.Sizeof(v)) }
	}

	log.Debugf("created in-memory map")
	return &memMap[K, V]{
		opts:      opts,
		data:      skipmap.NewFunc[K, V](func(a, b K) bool { return cmp(a, b) < 0 }),
		sizes:     util.NewSizeHistogram(),
		lastKnown: true,
	}, nil
}

func (m *memMap[K, V]) checkOpen() error {
	if m.closed.Load() {
		return linkedmap.ErrClosed
	}
	return nil
}

// --------------------------------------------------------------------------
// Last key cache
// --------------------------------------------------------------------------

// noteWrite updates the cache after key was stored. Requires m.mu.
func (m *memMap[K, V]) noteWrite(key K) {
	if m.lastKnown && (!m.hasLast || m.opts.Compare(key, m.last) > 0) {
		m.last, m.hasLast = key, true
	}
}

// noteRemoved invalidates the cache if the last key fell into [from, to]. Requires m.mu.
func (m *memMap[K, V]) noteRemoved(from, to K, toInclusive bool) {
	if !m.lastKnown || !m.hasLast {
		return
	}
	c := m.opts.Compare(m.last, to)
	if m.opts.Compare(m.last, from) >= 0 && (c < 0 || (toInclusive && c == 0)) {
		m.lastKnown = false
	}
}

// lastKey returns the greatest key, rescanning if the cache was invalidated. Requires m.mu.
func (m *memMap[K, V]) lastKey() (K, bool) {
	if !m.lastKnown {
		var zero K
		m.last, m.hasLast = zero, false
		m.data.Range(func(key K, _ V) bool {
			m.last, m.hasLast = key, true
			return true
		})
		m.lastKnown = true
	}
	return m.last, m.hasLast
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (m *memMap[K, V]) Get(key K) (V, bool, error) {
	if err := m.checkOpen(); err != nil {
		var zero V
		return zero, false, err
	}
	linkedmap.CountOp(linkedmap.ImplMemory, linkedmap.OpGet)
	v, ok := m.data.Load(key)
	return v, ok, nil
}

func (m *memMap[K, V]) IsEmpty() (bool, error) {
	if err := m.checkOpen(); err != nil {
		return false, err
	}
	return m.data.Len() == 0, nil
}

func (m *memMap[K, V]) FirstKey() (K, bool, error) {
	var first K
	if err := m.checkOpen(); err != nil {
		return first, false, err
	}
	found := false
	m.data.Range(func(key K, _ V) bool {
		first, found = key, true
		return false
	})
	return first, found, nil
}

func (m *memMap[K, V]) LastKey() (K, bool, error) {
	if err := m.checkOpen(); err != nil {
		var zero K
		return zero, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.lastKey()
	return k, ok, nil
}

// LastKeyWithPrefix scans the whole map.
func (m *memMap[K, V]) LastKeyWithPrefix(prefix K) (K, bool, error) {
	var last K
	if err := m.checkOpen(); err != nil {
		return last, false, err
	}
	found := false
	m.data.Range(func(key K, _ V) bool {
		if m.opts.PrefixMatch(key, prefix) {
			last, found = key, true
		}
		return true
	})
	return last, found, nil
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// put stores key=value. Requires m.mu.
func (m *memMap[K, V]) put(key K, value V) int {
	m.data.Store(key, value)
	m.noteWrite(key)
	size := m.opts.SizeOf(value)
	m.sizes.Observe(size)
	linkedmap.CountOp(linkedmap.ImplMemory, linkedmap.OpPut)
	linkedmap.ObserveValueSize(linkedmap.ImplMemory, size)
	return size
}

// merge combines value into key. Requires m.mu.
func (m *memMap[K, V]) merge(key K, value V) {
	if old, ok := m.data.Load(key); ok {
		value = m.opts.MergeFn(old, value)
	}
	m.data.Store(key, value)
	m.noteWrite(key)
	m.sizes.Observe(m.opts.SizeOf(value))
	linkedmap.CountOp(linkedmap.ImplMemory, linkedmap.OpMerge)
}

// remove deletes key. Requires m.mu.
func (m *memMap[K, V]) remove(key K) {
	if m.data.Delete(key) {
		m.noteRemoved(key, key, true)
	}
	linkedmap.CountOp(linkedmap.ImplMemory, linkedmap.OpRemove)
}

// clear deletes all keys. Requires m.mu.
func (m *memMap[K, V]) clear() {
	m.data.Range(func(key K, _ V) bool {
		m.data.Delete(key)
		return true
	})
	var zero K
	m.last, m.hasLast, m.lastKnown = zero, false, true
	linkedmap.CountOp(linkedmap.ImplMemory, linkedmap.OpClear)
}

func (m *memMap[K, V]) Put(key K, value V) (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(key, value), nil
}

func (m *memMap[K, V]) PutAll(pairs []linkedmap.Pair[K, V]) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pairs {
		m.put(p.Key, p.Value)
	}
	return nil
}

func (m *memMap[K, V]) Merge(key K, value V) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merge(key, value)
	return nil
}

func (m *memMap[K, V]) MergeAll(pairs []linkedmap.Pair[K, V]) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pairs {
		m.merge(p.Key, p.Value)
	}
	return nil
}

func (m *memMap[K, V]) Remove(key K) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(key)
	return nil
}

func (m *memMap[K, V]) Clear() error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
	return nil
}

func (m *memMap[K, V]) RemoveRange(from, to K) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if m.opts.Compare(from, to) >= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var doomed []K
	m.data.Range(func(key K, _ V) bool {
		if m.opts.Compare(key, to) >= 0 {
			return false
		}
		if m.opts.Compare(key, from) >= 0 {
			doomed = append(doomed, key)
		}
		return true
	})
	for _, key := range doomed {
		m.data.Delete(key)
	}
	m.noteRemoved(from, to, false)
	linkedmap.CountOp(linkedmap.ImplMemory, linkedmap.OpRemoveRange)
	return nil
}

// --------------------------------------------------------------------------
// Iteration
// --------------------------------------------------------------------------

func (m *memMap[K, V]) Iterator() (linkedmap.Iterator[K, V], error) {
	return m.iterator(nil)
}

func (m *memMap[K, V]) IteratorFrom(prefix K) (linkedmap.Iterator[K, V], error) {
	return m.iterator(&prefix)
}

func (m *memMap[K, V]) iterator(prefix *K) (linkedmap.Iterator[K, V], error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	linkedmap.CountOp(linkedmap.ImplMemory, linkedmap.OpIterate)

	m.mu.Lock()
	bound, ok := m.lastKey()
	m.mu.Unlock()
	if !ok {
		return internal.Peeking[K, V](func() (linkedmap.Pair[K, V], bool, error) {
			return linkedmap.Pair[K, V]{}, false, nil
		}, nil), nil
	}

	next, stop := iter.Pull2(iter.Seq2[K, V](m.data.Range))
	started := prefix == nil
	return internal.Peeking[K, V](func() (linkedmap.Pair[K, V], bool, error) {
		for {
			key, value, ok := next()
			if !ok || m.opts.Compare(key, bound) > 0 {
				stop()
				return linkedmap.Pair[K, V]{}, false, nil
			}
			if !started {
				if !m.opts.PrefixMatch(key, *prefix) {
					continue
				}
				started = true
			}
			return linkedmap.Pair[K, V]{Key: key, Value: value}, true, nil
		}
	}, func() error {
		stop()
		return nil
	}), nil
}

// --------------------------------------------------------------------------
// Lifecycle, Features and Metadata
// --------------------------------------------------------------------------

func (m *memMap[K, V]) SupportsFeature(feature linkedmap.Feature) bool {
	return supportedFeatures&feature == feature
}

// GetInfo returns statistics about the map. SizeBytes is an estimate.
func (m *memMap[K, V]) GetInfo() linkedmap.Info {
	entries := m.data.Len()
	entryOverhead := 48 // skip list node with key, value and a few levels
	return linkedmap.Info{
		Engine:            linkedmap.ImplMemory,
		Location:          "memory",
		Comparator:        "func",
		SupportedFeatures: linkedmap.Features(supportedFeatures),
		SizeBytes:         int64(entries * (m.sizes.Mean() + entryOverhead)),
		Writes:            m.sizes.Count(),
		AvgValueSize:      m.sizes.Mean(),
		MedianValueSize:   m.sizes.Median(),
		Metadata: &struct {
			Entries int `json:"entries"`
		}{
			Entries: entries,
		},
	}
}

// Close marks the map closed. The data is kept until the map is garbage collected.
func (m *memMap[K, V]) Close() error {
	if m.closed.CompareAndSwap(false, true) {
		log.Debugf("closed in-memory map with %d entries", m.data.Len())
	}
	return nil
}

// Destroy drops all entries and closes the map.
func (m *memMap[K, V]) Destroy() error {
	if !m.closed.Load() {
		m.mu.Lock()
		m.clear()
		m.mu.Unlock()
	}
	return m.Close()
}
