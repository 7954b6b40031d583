package levelmap

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
	"github.com/lni/dragonboat/v4/logger"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlutil "github.com/syndtr/goleveldb/leveldb/util"
)

var log = logger.GetLogger("levelmap")

const (
	defaultBlockSize       = 64 * 1024
	defaultDeleteBatchSize = 5 * 1024
	defaultCompactionDelay = 2 * time.Second
)

const supportedFeatures = linkedmap.FeatureRemoveRange |
	linkedmap.FeatureWriteBatch |
	linkedmap.FeatureBatchClear |
	linkedmap.FeaturePersistence |
	linkedmap.FeatureDestroy |
	linkedmap.FeatureSnapshotIterator |
	linkedmap.FeatureCompaction

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures a LevelDB backed map.
type Options struct {
	Comparator        comparator.Comparator // Key order (nil = comparator.LengthFirst)
	BlockSize         int                   // Data block size in bytes (0 = 64 KiB)
	NoCompression     bool                  // Disable snappy block compression
	NoSync            bool                  // Do not fsync on every write
	NoVerifyChecksums bool                  // Skip block checksum verification on reads
	DeleteBatchSize   int                   // Deletes per write batch in RemoveRange and Clear (0 = 5120)
	CompactOnClose    bool                  // Compact the whole key space before closing
	CompactionDelay   time.Duration         // Delay before compacting vacated ranges (0 = 2s, <0 = never)

	// PrefixMatch decides on encoded keys where IteratorFrom starts and which
	// keys LastKeyWithPrefix considers (nil = comparator.HasPrefix).
	PrefixMatch func(key, prefix []byte) bool
}

// DefaultOptions returns the default levelmap options
func DefaultOptions() *Options {
	return &Options{
		Comparator:      comparator.LengthFirst,
		BlockSize:       defaultBlockSize,
		DeleteBatchSize: defaultDeleteBatchSize,
		CompactionDelay: defaultCompactionDelay,
		PrefixMatch:     comparator.HasPrefix,
	}
}

func (o *Options) ensureDefaults() {
	if o.Comparator == nil {
		o.Comparator = comparator.LengthFirst
	}
	if o.BlockSize <= 0 {
		o.BlockSize = defaultBlockSize
	}
	if o.DeleteBatchSize <= 0 {
		o.DeleteBatchSize = defaultDeleteBatchSize
	}
	if o.CompactionDelay == 0 {
		o.CompactionDelay = defaultCompactionDelay
	}
	if o.PrefixMatch == nil {
		o.PrefixMatch = comparator.HasPrefix
	}
}

// levelComparer adapts a Comparator to goleveldb's comparer.Comparer.
// goleveldb expects nil when no shorter key than the input exists.
type levelComparer struct {
	c comparator.Comparator
}

func (l levelComparer) Compare(a, b []byte) int { return l.c.Compare(a, b) }
func (l levelComparer) Name() string            { return l.c.Name() }

func (l levelComparer) Separator(dst, a, b []byte) []byte {
	sep := l.c.Separator(a, b)
	if bytes.Equal(sep, a) {
		return nil
	}
	return append(dst, sep...)
}

func (l levelComparer) Successor(dst, b []byte) []byte {
	succ := l.c.Successor(b)
	if bytes.Equal(succ, b) {
		return nil
	}
	return append(dst, succ...)
}

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

// Map is a LinkedMap stored in a LevelDB directory.
type Map[K, V any] struct {
	db       *leveldb.DB
	dir      string
	opts     Options
	keys     codec.Codec[K]
	values   codec.Codec[V]
	readOpt  *opt.ReadOptions
	writeOpt *opt.WriteOptions

	sizes     *util.SizeHistogram
	compactor *internal.Compactor
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	openIters atomic.Int64
}

var (
	_ linkedmap.LinkedMap[string, string] = (*Map[string, string])(nil)
	_ linkedmap.Destroyer                 = (*Map[string, string])(nil)
)

// Open opens (or creates) a map in dir. opts may be nil.
//
// Thread-safety: the returned map assumes a single writer, wrap it with
// linkedmap.Synchronized to share it.
func Open[K, V any](dir string, keys codec.Codec[K], values codec.Codec[V], opts *Options) (*Map[K, V], error) {
	linkedmap.Init()

	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	o.ensureDefaults()

	abs, err := linkedmap.AcquireLocation(dir, linkedmap.ImplLevel)
	if err != nil {
		return nil, err
	}

	compression := opt.SnappyCompression
	if o.NoCompression {
		compression = opt.NoCompression
	}
	db, err := leveldb.OpenFile(abs, &opt.Options{
		Comparer:    levelComparer{c: o.Comparator},
		BlockSize:   o.BlockSize,
		Compression: compression,
	})
	if err != nil {
		linkedmap.ReleaseLocation(abs)
		return nil, errors.Wrapf(err, "levelmap: open %s", abs)
	}

	readOpt := &opt.ReadOptions{Strict: opt.StrictBlockChecksum}
	if o.NoVerifyChecksums {
		readOpt = &opt.ReadOptions{}
	}

	m := &Map[K, V]{
		db:       db,
		dir:      abs,
		opts:     o,
		keys:     keys,
		values:   values,
		readOpt:  readOpt,
		writeOpt: &opt.WriteOptions{Sync: !o.NoSync},
		sizes:    util.NewSizeHistogram(),
	}
	if o.CompactionDelay > 0 {
		m.compactor = internal.StartCompactor(abs, o.Comparator, o.CompactionDelay, log, func(start, end []byte) error {
			return db.CompactRange(lvlutil.Range{Start: start, Limit: end})
		})
	}

	log.Infof("opened %s (comparator=%s)", abs, o.Comparator.Name())
	return m, nil
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func (m *Map[K, V]) checkOpen() error {
	if m.closed.Load() {
		return linkedmap.ErrClosed
	}
	return nil
}

func (m *Map[K, V]) encodeKey(key K) ([]byte, error) {
	b, err := codec.Marshal(m.keys, key)
	if err != nil {
		return nil, errors.Wrap(err, "levelmap: encode key")
	}
	return b, nil
}

func (m *Map[K, V]) encodeValue(value V) ([]byte, error) {
	b, err := codec.Marshal(m.values, value)
	if err != nil {
		return nil, errors.Wrap(err, "levelmap: encode value")
	}
	return b, nil
}

func (m *Map[K, V]) decodeKey(b []byte) (K, error) {
	k, err := codec.Unmarshal(m.keys, b)
	if err != nil {
		return k, errors.Wrap(err, "levelmap: decode key")
	}
	return k, nil
}

func (m *Map[K, V]) failed(op string, err error) error {
	linkedmap.CountError(linkedmap.ImplLevel, op)
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
func (m *Map[K, V]) bounds() (first, last []byte, err error) {
	it := m.db.NewIterator(nil, m.readOpt)
	defer it.Release()
	if it.First() {
		first = bytes.Clone(it.Key())
	}
	if it.Last() {
		last = bytes.Clone(it.Key())
	}
	return first, last, it.Error()
}

// deleteKeys removes every key of it in batches of DeleteBatchSize and
// returns the number of deleted keys
func (m *Map[K, V]) deleteKeys(it iterator.Iterator) (int, error) {
	defer it.Release()

	batch := new(leveldb.Batch)
	deleted := 0
	for it.Next() {
		batch.Delete(it.Key())
		if batch.Len() >= m.opts.DeleteBatchSize {
			if err := m.db.Write(batch, m.writeOpt); err != nil {
				return deleted, err
			}
			deleted += batch.Len()
			batch.Reset()
		}
	}
	if err := it.Error(); err != nil {
		return deleted, err
	}
	if batch.Len() > 0 {
		if err := m.db.Write(batch, m.writeOpt); err != nil {
			return deleted, err
		}
		deleted += batch.Len()
	}
	return deleted, nil
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (m *Map[K, V]) Get(key K) (V, bool, error) {
	var zero V
	if err := m.checkOpen(); err != nil {
		return zero, false, err
	}
	linkedmap.CountOp(linkedmap.ImplLevel, linkedmap.OpGet)

	k, err := m.encodeKey(key)
	if err != nil {
		return zero, false, err
	}
	raw, err := m.db.Get(k, m.readOpt)
	if errors.Is(err, leveldb.ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, m.failed(linkedmap.OpGet, errors.Wrap(err, "levelmap: get"))
	}
	v, err := codec.Unmarshal(m.values, raw)
	if err != nil {
		return zero, false, m.failed(linkedmap.OpGet, errors.Wrap(err, "levelmap: decode value"))
	}
	return v, true, nil
}

func (m *Map[K, V]) IsEmpty() (bool, error) {
	if err := m.checkOpen(); err != nil {
		return false, err
	}
	it := m.db.NewIterator(nil, m.readOpt)
	defer it.Release()
	empty := !it.First()
	return empty, errors.Wrap(it.Error(), "levelmap: is empty")
}

func (m *Map[K, V]) FirstKey() (K, bool, error) {
	return m.edgeKey(true)
}

func (m *Map[K, V]) LastKey() (K, bool, error) {
	return m.edgeKey(false)
}

func (m *Map[K, V]) edgeKey(first bool) (K, bool, error) {
	var zero K
	if err := m.checkOpen(); err != nil {
		return zero, false, err
	}
	it := m.db.NewIterator(nil, m.readOpt)
	defer it.Release()

	var ok bool
	if first {
		ok = it.First()
	} else {
		ok = it.Last()
	}
	if !ok {
		return zero, false, errors.Wrap(it.Error(), "levelmap: seek")
	}
	k, err := m.decodeKey(it.Key())
	return k, err == nil, err
}

// LastKeyWithPrefix scans from the prefix to the end of the key space, since
// keys sharing a prefix are not contiguous under the length-first order.
func (m *Map[K, V]) LastKeyWithPrefix(prefix K) (K, bool, error) {
	var zero K
	if err := m.checkOpen(); err != nil {
		return zero, false, err
	}
	p, err := m.encodeKey(prefix)
	if err != nil {
		return zero, false, err
	}

	it := m.db.NewIterator(&lvlutil.Range{Start: p}, m.readOpt)
	defer it.Release()

	var last []byte
	for it.Next() {
		if m.opts.PrefixMatch(it.Key(), p) {
			last = append(last[:0], it.Key()...)
		}
	}
	if err := it.Error(); err != nil {
		return zero, false, errors.Wrap(err, "levelmap: scan")
	}
	if last == nil {
		return zero, false, nil
	}
	k, err := m.decodeKey(last)
	return k, err == nil, err
}

// Property returns a LevelDB property such as "leveldb.stats" or
// "leveldb.num-files-at-level0".
func (m *Map[K, V]) Property(name string) (string, error) {
	if err := m.checkOpen(); err != nil {
		return "", err
	}
	v, err := m.db.GetProperty(name)
	return v, errors.Wrapf(err, "levelmap: property %s", name)
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (m *Map[K, V]) Put(key K, value V) (int, error) {
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
	if err := m.db.Put(k, v, m.writeOpt); err != nil {
		return 0, m.failed(linkedmap.OpPut, errors.Wrap(err, "levelmap: put"))
	}
	m.observe(len(v))
	return len(v), nil
}

func (m *Map[K, V]) observe(size int) {
	m.sizes.Observe(size)
	linkedmap.CountOp(linkedmap.ImplLevel, linkedmap.OpPut)
	linkedmap.ObserveValueSize(linkedmap.ImplLevel, size)
}

// PutAll writes all pairs in one atomic batch.
func (m *Map[K, V]) PutAll(pairs []linkedmap.Pair[K, V]) error {
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
		if _, err := b.Put(p.Key, p.Value); err != nil {
			return err
		}
	}
	return b.Commit()
}

// Merge is not supported by LevelDB.
func (m *Map[K, V]) Merge(K, V) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return linkedmap.Unsupported(linkedmap.ImplLevel, "merge")
}

// MergeAll is not supported by LevelDB.
func (m *Map[K, V]) MergeAll([]linkedmap.Pair[K, V]) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return linkedmap.Unsupported(linkedmap.ImplLevel, "merge")
}

func (m *Map[K, V]) Remove(key K) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	k, err := m.encodeKey(key)
	if err != nil {
		return err
	}
	if err := m.db.Delete(k, m.writeOpt); err != nil {
		return m.failed(linkedmap.OpRemove, errors.Wrap(err, "levelmap: remove"))
	}
	linkedmap.CountOp(linkedmap.ImplLevel, linkedmap.OpRemove)
	return nil
}

// Clear deletes all keys in batches and compacts the vacated key space.
func (m *Map[K, V]) Clear() error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	first, last, err := m.bounds()
	if err != nil {
		return m.failed(linkedmap.OpClear, errors.Wrap(err, "levelmap: clear"))
	}
	if first == nil {
		return nil
	}
	if _, err := m.deleteKeys(m.db.NewIterator(nil, m.readOpt)); err != nil {
		return m.failed(linkedmap.OpClear, errors.Wrap(err, "levelmap: clear"))
	}
	linkedmap.CountOp(linkedmap.ImplLevel, linkedmap.OpClear)
	m.scheduleCompaction(first, inclusiveEnd(last))
	return nil
}

// RemoveRange deletes [from, to) in batches of DeleteBatchSize. The follow-up
// compaction covers [from, to] including the upper bound.
func (m *Map[K, V]) RemoveRange(from, to K) error {
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

	it := m.db.NewIterator(&lvlutil.Range{Start: start, Limit: end}, m.readOpt)
	n, err := m.deleteKeys(it)
	if err != nil {
		return m.failed(linkedmap.OpRemoveRange, errors.Wrap(err, "levelmap: remove range"))
	}
	linkedmap.CountOp(linkedmap.ImplLevel, linkedmap.OpRemoveRange)
	log.Debugf("removed %d keys from %s", n, m.dir)
	if n > 0 {
		m.scheduleCompaction(start, inclusiveEnd(end))
	}
	return nil
}

func (m *Map[K, V]) scheduleCompaction(start, end []byte) {
	if m.compactor != nil {
		m.compactor.Schedule(start, end)
	}
}

// --------------------------------------------------------------------------
// Iteration
// --------------------------------------------------------------------------

func (m *Map[K, V]) Iterator() (linkedmap.Iterator[K, V], error) {
	return m.iterator(nil)
}

func (m *Map[K, V]) IteratorFrom(prefix K) (linkedmap.Iterator[K, V], error) {
	p, err := m.encodeKey(prefix)
	if err != nil {
		return nil, err
	}
	return m.iterator(p)
}

// snapshotCursor is a LevelDB iterator over its own snapshot
type snapshotCursor struct {
	snap *leveldb.Snapshot
	iter iterator.Iterator
	done func()
}

func (c *snapshotCursor) Valid() bool   { return c.iter.Valid() }
func (c *snapshotCursor) Key() []byte   { return c.iter.Key() }
func (c *snapshotCursor) Value() []byte { return c.iter.Value() }
func (c *snapshotCursor) Next() bool    { return c.iter.Next() }

func (c *snapshotCursor) Close() error {
	err := c.iter.Error()
	c.iter.Release()
	c.snap.Release()
	c.done()
	return err
}

func (m *Map[K, V]) iterator(seek []byte) (linkedmap.Iterator[K, V], error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	linkedmap.CountOp(linkedmap.ImplLevel, linkedmap.OpIterate)

	snap, err := m.db.GetSnapshot()
	if err != nil {
		return nil, m.failed(linkedmap.OpIterate, errors.Wrap(err, "levelmap: snapshot"))
	}
	it := snap.NewIterator(nil, m.readOpt)
	if seek == nil {
		it.First()
	} else {
		it.Seek(seek)
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

func (m *Map[K, V]) SupportsFeature(feature linkedmap.Feature) bool {
	return supportedFeatures&feature == feature
}

// GetInfo returns statistics about the map. SizeBytes is LevelDB's
// approximation of the on-disk size of the key space.
func (m *Map[K, V]) GetInfo() linkedmap.Info {
	info := linkedmap.Info{
		Engine:            linkedmap.ImplLevel,
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

	if first, last, err := m.bounds(); err == nil && first != nil {
		if sizes, err := m.db.SizeOf([]lvlutil.Range{{Start: first, Limit: inclusiveEnd(last)}}); err == nil {
			info.SizeBytes = sizes.Sum()
		}
	}
	l0, _ := m.db.GetProperty("leveldb.num-files-at-level0")
	var compactions int64
	if m.compactor != nil {
		compactions = m.compactor.Runs()
	}
	info.Metadata = &struct {
		Sync             bool   `json:"sync"`
		VerifyChecksums  bool   `json:"verify_checksums"`
		DeleteBatchSize  int    `json:"delete_batch_size"`
		OpenIterators    int64  `json:"open_iterators"`
		L0Files          string `json:"l0_files"`
		RangeCompactions int64  `json:"range_compactions"`
	}{
		Sync:             !m.opts.NoSync,
		VerifyChecksums:  !m.opts.NoVerifyChecksums,
		DeleteBatchSize:  m.opts.DeleteBatchSize,
		OpenIterators:    m.openIters.Load(),
		L0Files:          l0,
		RangeCompactions: compactions,
	}
	return info
}

// Close stops the background compactor and closes the database.
// Close is idempotent and returns the error of the first call.
func (m *Map[K, V]) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		if m.compactor != nil {
			m.compactor.Stop()
		}
		if n := m.openIters.Load(); n > 0 {
			log.Warningf("closing %s with %d open iterators", m.dir, n)
		}
		if m.opts.CompactOnClose {
			if err := m.db.CompactRange(lvlutil.Range{}); err != nil {
				log.Warningf("compact on close: %v", err)
			}
		}
		m.closeErr = errors.Wrapf(m.db.Close(), "levelmap: close %s", m.dir)
		linkedmap.ReleaseLocation(m.dir)
		log.Infof("closed %s", m.dir)
	})
	return m.closeErr
}

// Destroy closes the map and removes its directory.
func (m *Map[K, V]) Destroy() error {
	if err := m.Close(); err != nil {
		log.Warningf("destroy: %v", err)
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return errors.Wrapf(err, "levelmap: destroy %s", m.dir)
	}
	log.Infof("destroyed %s", m.dir)
	return nil
}
