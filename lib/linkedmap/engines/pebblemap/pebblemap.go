package pebblemap

import (
	"bytes"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/kvcollections/lib/codec"
	"github.com/ValentinKolb/kvcollections/lib/comparator"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	"github.com/ValentinKolb/kvcollections/lib/linkedmap/internal"
	"github.com/ValentinKolb/kvcollections/lib/util"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("pebblemap")

const (
	defaultBlockSize       = 64 * 1024
	defaultCompactionDelay = 2 * time.Second
)

const supportedFeatures = linkedmap.FeatureMerge |
	linkedmap.FeatureRemoveRange |
	linkedmap.FeatureWriteBatch |
	linkedmap.FeatureBatchMerge |
	linkedmap.FeatureBatchClear |
	linkedmap.FeaturePersistence |
	linkedmap.FeatureDestroy |
	linkedmap.FeatureSnapshotIterator |
	linkedmap.FeatureCompaction

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures a pebble backed map.
type Options struct {
	Comparator      comparator.Comparator // Key order (nil = comparator.LengthFirst)
	Merger          *pebble.Merger        // Merge operator (nil = pebble.DefaultMerger, concatenation)
	BlockSize       int                   // Data block size in bytes (0 = 64 KiB)
	NoCompression   bool                  // Disable snappy block compression
	NoSync          bool                  // Do not fsync the WAL on every write
	CompactOnClose  bool                  // Compact the whole key space before closing
	CompactionDelay time.Duration         // Delay before compacting vacated ranges (0 = 2s, <0 = never)

	// PrefixMatch decides on encoded keys where IteratorFrom starts and which
	// keys LastKeyWithPrefix considers (nil = comparator.HasPrefix).
	PrefixMatch func(key, prefix []byte) bool
}

// DefaultOptions returns the default pebblemap options
func DefaultOptions() *Options {
	return &Options{
		Comparator:      comparator.LengthFirst,
		Merger:          pebble.DefaultMerger,
		BlockSize:       defaultBlockSize,
		CompactionDelay: defaultCompactionDelay,
		PrefixMatch:     comparator.HasPrefix,
	}
}

func (o *Options) ensureDefaults() {
	if o.Comparator == nil {
		o.Comparator = comparator.LengthFirst
	}
	if o.Merger == nil {
		o.Merger = pebble.DefaultMerger
	}
	if o.BlockSize <= 0 {
		o.BlockSize = defaultBlockSize
	}
	if o.CompactionDelay == 0 {
		o.CompactionDelay = defaultCompactionDelay
	}
	if o.PrefixMatch == nil {
		o.PrefixMatch = comparator.HasPrefix
	}
}

// newComparer installs c as a pebble Comparer
func newComparer(c comparator.Comparator) *pebble.Comparer {
	return &pebble.Comparer{
		Compare: c.Compare,
		Equal: func(a, b []byte) bool {
			return c.Compare(a, b) == 0
		},
		AbbreviatedKey: abbreviatedKey(c),
		FormatKey:      pebble.DefaultComparer.FormatKey,
		Separator: func(dst, a, b []byte) []byte {
			return append(dst, c.Separator(a, b)...)
		},
		Successor: func(dst, a []byte) []byte {
			return append(dst, c.Successor(a)...)
		},
		// no prefix bloom filters, the whole key is the prefix
		Split: func(key []byte) int {
			return len(key)
		},
		Name: c.Name(),
	}
}

// abbreviatedKey returns an order preserving prefix of a key for c
func abbreviatedKey(c comparator.Comparator) func([]byte) uint64 {
	switch c {
	case comparator.LengthFirst:
		return func(key []byte) uint64 { return uint64(len(key)) }
	case comparator.Lexicographic:
		return pebble.DefaultComparer.AbbreviatedKey
	default:
		// constant, every comparison falls through to Compare
		return func([]byte) uint64 { return 0 }
	}
}

// pebbleLogger forwards engine log output to the package logger
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	log.Panicf(format, args...)
}

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

type pebbleMap[K, V any] struct {
	db       *pebble.DB
	dir      string
	opts     Options
	keys     codec.Codec[K]
	values   codec.Codec[V]
	writeOpt *pebble.WriteOptions

	sizes     *util.SizeHistogram
	compactor *internal.Compactor
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	openIters atomic.Int64
}

// Open opens (or creates) a map in dir. opts may be nil.
//
// Thread-safety: the returned map assumes a single writer, wrap it with
// linkedmap.Synchronized to share it.
func Open[K, V any](dir string, keys codec.Codec[K], values codec.Codec[V], opts *Options) (linkedmap.LinkedMap[K, V], error) {
	m, err := open(dir, keys, values, opts)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func open[K, V any](dir string, keys codec.Codec[K], values codec.Codec[V], opts *Options) (*pebbleMap[K, V], error) {
	linkedmap.Init()

	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	o.ensureDefaults()

	abs, err := linkedmap.AcquireLocation(dir, linkedmap.ImplPebble)
	if err != nil {
		return nil, err
	}

	compression := pebble.SnappyCompression
	if o.NoCompression {
		compression = pebble.NoCompression
	}
	db, err := pebble.Open(abs, &pebble.Options{
		Comparer: newComparer(o.Comparator),
		Merger:   o.Merger,
		Logger:   pebbleLogger{},
		Levels: []pebble.LevelOptions{{
			BlockSize:   o.BlockSize,
			Compression: compression,
		}},
	})
	if err != nil {
		linkedmap.ReleaseLocation(abs)
		return nil, errors.Wrapf(err, "pebblemap: open %s", abs)
	}

	writeOpt := pebble.Sync
	if o.NoSync {
		writeOpt = pebble.NoSync
	}

	m := &pebbleMap[K, V]{
		db:       db,
		dir:      abs,
		opts:     o,
		keys:     keys,
		values:   values,
		writeOpt: writeOpt,
		sizes:    util.NewSizeHistogram(),
	}
	if o.CompactionDelay > 0 {
		m.compactor = internal.StartCompactor(abs, o.Comparator, o.CompactionDelay, log, func(start, end []byte) error {
			return db.Compact(start, end, true)
		})
	}

	log.Infof("opened %s (comparator=%s, merger=%s)", abs, o.Comparator.Name(), o.Merger.Name)
	return m, nil
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func (m *pebbleMap[K, V]) checkOpen() error {
	if m.closed.Load() {
		return linkedmap.ErrClosed
	}
	return nil
}

func (m *pebbleMap[K, V]) encodeKey(key K) ([]byte, error) {
	b, err := codec.Marshal(m.keys, key)
	if err != nil {
		return nil, errors.Wrap(err, "pebblemap: encode key")
	}
	return b, nil
}

func (m *pebbleMap[K, V]) encodeValue(value V) ([]byte, error) {
	b, err := codec.Marshal(m.values, value)
	if err != nil {
		return nil, errors.Wrap(err, "pebblemap: encode value")
	}
	return b, nil
}

func (m *pebbleMap[K, V]) decodeKey(b []byte) (K, error) {
	k, err := codec.Unmarshal(m.keys, b)
	if err != nil {
		return k, errors.Wrap(err, "pebblemap: decode key")
	}
	return k, nil
}

// failed counts an error for op and returns it
func (m *pebbleMap[K, V]) failed(op string, err error) error {
	linkedmap.CountError(linkedmap.ImplPebble, op)
	return err
}

// inclusiveEnd returns the smallest key greater than key under both
// supported orders (a longer key is greater under length-first)
func inclusiveEnd(key []byte) []byte {
	end := make([]byte, len(key)+1)
	copy(end, key)
	return end
}

// bounds returns the first and last raw key
func (m *pebbleMap[K, V]) bounds() (first, last []byte, err error) {
	it := m.db.NewIter(nil)
	defer it.Close()
	if it.First() {
		first = bytes.Clone(it.Key())
	}
	if it.Last() {
		last = bytes.Clone(it.Key())
	}
	return first, last, it.Error()
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (m *pebbleMap[K, V]) Get(key K) (V, bool, error) {
	var zero V
	if err := m.checkOpen(); err != nil {
		return zero, false, err
	}
	linkedmap.CountOp(linkedmap.ImplPebble, linkedmap.OpGet)

	k, err := m.encodeKey(key)
	if err != nil {
		return zero, false, err
	}
	raw, closer, err := m.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, m.failed(linkedmap.OpGet, errors.Wrap(err, "pebblemap: get"))
	}
	defer closer.Close()

	v, err := codec.Unmarshal(m.values, raw)
	if err != nil {
		return zero, false, m.failed(linkedmap.OpGet, errors.Wrap(err, "pebblemap: decode value"))
	}
	return v, true, nil
}

func (m *pebbleMap[K, V]) IsEmpty() (bool, error) {
	if err := m.checkOpen(); err != nil {
		return false, err
	}
	it := m.db.NewIter(nil)
	empty := !it.First()
	if err := it.Close(); err != nil {
		return false, errors.Wrap(err, "pebblemap: is empty")
	}
	return empty, nil
}

func (m *pebbleMap[K, V]) FirstKey() (K, bool, error) {
	return m.edgeKey(true)
}

func (m *pebbleMap[K, V]) LastKey() (K, bool, error) {
	return m.edgeKey(false)
}

func (m *pebbleMap[K, V]) edgeKey(first bool) (K, bool, error) {
	var zero K
	if err := m.checkOpen(); err != nil {
		return zero, false, err
	}
	it := m.db.NewIter(nil)
	defer it.Close()

	var ok bool
	if first {
		ok = it.First()
	} else {
		ok = it.Last()
	}
	if !ok {
		return zero, false, errors.Wrap(it.Error(), "pebblemap: seek")
	}
	k, err := m.decodeKey(it.Key())
	return k, err == nil, err
}

// LastKeyWithPrefix scans from the prefix to the end of the key space, since
// keys sharing a prefix are not contiguous under the length-first order.
func (m *pebbleMap[K, V]) LastKeyWithPrefix(prefix K) (K, bool, error) {
	var zero K
	if err := m.checkOpen(); err != nil {
		return zero, false, err
	}
	p, err := m.encodeKey(prefix)
	if err != nil {
		return zero, false, err
	}

	it := m.db.NewIter(nil)
	defer it.Close()

	var last []byte
	for valid := it.SeekGE(p); valid; valid = it.Next() {
		if m.opts.PrefixMatch(it.Key(), p) {
			last = append(last[:0], it.Key()...)
		}
	}
	if err := it.Error(); err != nil {
		return zero, false, errors.Wrap(err, "pebblemap: scan")
	}
	if last == nil {
		return zero, false, nil
	}
	k, err := m.decodeKey(last)
	return k, err == nil, err
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (m *pebbleMap[K, V]) Put(key K, value V) (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	k, err := m.encodeKey(key)
	if err != nil {
		return 0, err
	}
	v, err := m.encodeValue(value)
	if err != nil {
		return 0, err
	}
	if err := m.db.Set(k, v, m.writeOpt); err != nil {
		return 0, m.failed(linkedmap.OpPut, errors.Wrap(err, "pebblemap: put"))
	}
	m.observe(linkedmap.OpPut, len(v))
	return len(v), nil
}

func (m *pebbleMap[K, V]) observe(op string, size int) {
	m.sizes.Observe(size)
	linkedmap.CountOp(linkedmap.ImplPebble, op)
	linkedmap.ObserveValueSize(linkedmap.ImplPebble, size)
}

// PutAll writes all pairs in one atomic batch.
func (m *pebbleMap[K, V]) PutAll(pairs []linkedmap.Pair[K, V]) error {
	return m.writeAll(pairs, false)
}

func (m *pebbleMap[K, V]) Merge(key K, value V) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	k, err := m.encodeKey(key)
	if err != nil {
		return err
	}
	v, err := m.encodeValue(value)
	if err != nil {
		return err
	}
	if err := m.db.Merge(k, v, m.writeOpt); err != nil {
		return m.failed(linkedmap.OpMerge, errors.Wrap(err, "pebblemap: merge"))
	}
	m.observe(linkedmap.OpMerge, len(v))
	return nil
}

// MergeAll merges all pairs in one atomic batch.
func (m *pebbleMap[K, V]) MergeAll(pairs []linkedmap.Pair[K, V]) error {
	return m.writeAll(pairs, true)
}

func (m *pebbleMap[K, V]) writeAll(pairs []linkedmap.Pair[K, V], merge bool) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if len(pairs) == 0 {
		return nil
	}
	b, err := m.NewWriteBatch()
	if err != nil {
		return err
	}
	defer b.Close()
	for _, p := range pairs {
		if merge {
			err = b.Merge(p.Key, p.Value)
		} else {
			_, err = b.Put(p.Key, p.Value)
		}
		if err != nil {
			return err
		}
	}
	return b.Commit()
}

func (m *pebbleMap[K, V]) Remove(key K) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	k, err := m.encodeKey(key)
	if err != nil {
		return err
	}
	if err := m.db.Delete(k, m.writeOpt); err != nil {
		return m.failed(linkedmap.OpRemove, errors.Wrap(err, "pebblemap: remove"))
	}
	linkedmap.CountOp(linkedmap.ImplPebble, linkedmap.OpRemove)
	return nil
}

// Clear deletes [first, last) with a range tombstone plus the last key itself.
func (m *pebbleMap[K, V]) Clear() error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	first, last, err := m.bounds()
	if err != nil {
		return m.failed(linkedmap.OpClear, errors.Wrap(err, "pebblemap: clear"))
	}
	if first == nil {
		return nil
	}

	b := m.db.NewBatch()
	defer b.Close()
	if err := clearRange(b, first, last); err != nil {
		return m.failed(linkedmap.OpClear, errors.Wrap(err, "pebblemap: clear"))
	}
	if err := b.Commit(m.writeOpt); err != nil {
		return m.failed(linkedmap.OpClear, errors.Wrap(err, "pebblemap: clear"))
	}
	linkedmap.CountOp(linkedmap.ImplPebble, linkedmap.OpClear)
	m.scheduleCompaction(first, inclusiveEnd(last))
	return nil
}

// clearRange stages the deletion of [first, last]
func clearRange(b *pebble.Batch, first, last []byte) error {
	if err := b.DeleteRange(first, last, nil); err != nil {
		return err
	}
	return b.Delete(last, nil)
}

func (m *pebbleMap[K, V]) RemoveRange(from, to K) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	start, err := m.encodeKey(from)
	if err != nil {
		return err
	}
	end, err := m.encodeKey(to)
	if err != nil {
		return err
	}
	if m.opts.Comparator.Compare(start, end) >= 0 {
		return nil
	}
	if err := m.db.DeleteRange(start, end, m.writeOpt); err != nil {
		return m.failed(linkedmap.OpRemoveRange, errors.Wrap(err, "pebblemap: remove range"))
	}
	linkedmap.CountOp(linkedmap.ImplPebble, linkedmap.OpRemoveRange)
	m.scheduleCompaction(start, end)
	return nil
}

func (m *pebbleMap[K, V]) scheduleCompaction(start, end []byte) {
	if m.compactor != nil {
		m.compactor.Schedule(start, end)
	}
}

// --------------------------------------------------------------------------
// Iteration
// --------------------------------------------------------------------------

func (m *pebbleMap[K, V]) Iterator() (linkedmap.Iterator[K, V], error) {
	return m.iterator(nil)
}

func (m *pebbleMap[K, V]) IteratorFrom(prefix K) (linkedmap.Iterator[K, V], error) {
	p, err := m.encodeKey(prefix)
	if err != nil {
		return nil, err
	}
	return m.iterator(p)
}

// snapshotCursor is a pebble iterator over its own snapshot
type snapshotCursor struct {
	snap *pebble.Snapshot
	iter *pebble.Iterator
	done func()
}

func (c *snapshotCursor) Valid() bool   { return c.iter.Valid() }
func (c *snapshotCursor) Key() []byte   { return c.iter.Key() }
func (c *snapshotCursor) Value() []byte { return c.iter.Value() }
func (c *snapshotCursor) Next() bool    { return c.iter.Next() }

func (c *snapshotCursor) Close() error {
	defer c.done()
	err := c.iter.Error()
	if cerr := c.iter.Close(); err == nil {
		err = cerr
	}
	if cerr := c.snap.Close(); err == nil {
		err = cerr
	}
	return err
}

func (m *pebbleMap[K, V]) iterator(seek []byte) (linkedmap.Iterator[K, V], error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	linkedmap.CountOp(linkedmap.ImplPebble, linkedmap.OpIterate)

	snap := m.db.NewSnapshot()
	it := snap.NewIter(nil)
	if seek == nil {
		it.First()
	} else {
		it.SeekGE(seek)
	}
	m.openIters.Add(1)
	cur := &snapshotCursor{snap: snap, iter: it, done: func() { m.openIters.Add(-1) }}
	if seek != nil {
		internal.SkipUntil(cur, seek, m.opts.PrefixMatch)
	}
	return internal.Decoding(cur, m.keys, m.values), nil
}

// --------------------------------------------------------------------------
// Lifecycle, Features and Metadata
// --------------------------------------------------------------------------

func (m *pebbleMap[K, V]) SupportsFeature(feature linkedmap.Feature) bool {
	return supportedFeatures&feature == feature
}

// GetInfo returns statistics about the map.
func (m *pebbleMap[K, V]) GetInfo() linkedmap.Info {
	info := linkedmap.Info{
		Engine:            linkedmap.ImplPebble,
		Location:          m.dir,
		Comparator:        m.opts.Comparator.Name(),
		SupportedFeatures: linkedmap.Features(supportedFeatures),
		Writes:            m.sizes.Count(),
		AvgValueSize:      m.sizes.Mean(),
		MedianValueSize:   m.sizes.Median(),
	}
	if m.closed.Load() {
		return info
	}

	metrics := m.db.Metrics()
	info.SizeBytes = int64(metrics.DiskSpaceUsage())
	var compactions int64
	if m.compactor != nil {
		compactions = m.compactor.Runs()
	}
	info.Metadata = &struct {
		Merger             string `json:"merger"`
		Sync               bool   `json:"sync"`
		OpenIterators      int64  `json:"open_iterators"`
		L0Files            int64  `json:"l0_files"`
		RangeCompactions   int64  `json:"range_compactions"`
		EngineCompactions  int64  `json:"engine_compactions"`
		WALBytes           uint64 `json:"wal_bytes"`
		CompactionInterval string `json:"compaction_delay"`
	}{
		Merger:             m.opts.Merger.Name,
		Sync:               !m.opts.NoSync,
		OpenIterators:      m.openIters.Load(),
		L0Files:            metrics.Levels[0].NumFiles,
		RangeCompactions:   compactions,
		EngineCompactions:  metrics.Compact.Count,
		WALBytes:           metrics.WAL.Size,
		CompactionInterval: m.opts.CompactionDelay.String(),
	}
	return info
}

// Close stops the background compactor and closes the engine.
// Close is idempotent and returns the error of the first call.
func (m *pebbleMap[K, V]) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		if m.compactor != nil {
			m.compactor.Stop()
		}
		if n := m.openIters.Load(); n > 0 {
			log.Warningf("closing %s with %d open iterators", m.dir, n)
		}
		if m.opts.CompactOnClose {
			if first, last, err := m.bounds(); err != nil {
				log.Warningf("compact on close: %v", err)
			} else if first != nil {
				if err := m.db.Compact(first, inclusiveEnd(last), true); err != nil {
					log.Warningf("compact on close: %v", err)
				}
			}
		}
		m.closeErr = errors.Wrapf(m.db.Close(), "pebblemap: close %s", m.dir)
		linkedmap.ReleaseLocation(m.dir)
		log.Infof("closed %s", m.dir)
	})
	return m.closeErr
}

// Destroy closes the map and removes its directory.
func (m *pebbleMap[K, V]) Destroy() error {
	if err := m.Close(); err != nil {
		log.Warningf("destroy: %v", err)
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return errors.Wrapf(err, "pebblemap: destroy %s", m.dir)
	}
	log.Infof("destroyed %s", m.dir)
	return nil
}
