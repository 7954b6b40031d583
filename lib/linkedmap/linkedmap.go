package linkedmap

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMemory Implementation = "memory"
	ImplPebble Implementation = "pebble"
	ImplLevel  Implementation = "level"
)

// Feature represents map features as bit flags
type Feature uint64

const (
	FeatureMerge            Feature = 1 << iota // Support for Merge and MergeAll
	FeatureRemoveRange                          // Support for RemoveRange
	FeatureWriteBatch                           // Support for NewWriteBatch
	FeatureBatchMerge                           // Support for WriteBatch.Merge
	FeatureBatchClear                           // Support for WriteBatch.Clear
	FeaturePersistence                          // Data survives Close and reopen
	FeatureDestroy                              // Support for Destroy
	FeatureSnapshotIterator                     // Iterators read from an engine snapshot
	FeatureCompaction                           // Vacated ranges are compacted
)

var allFeatures = []Feature{
	FeatureMerge, FeatureRemoveRange, FeatureWriteBatch, FeatureBatchMerge, FeatureBatchClear,
	FeaturePersistence, FeatureDestroy, FeatureSnapshotIterator, FeatureCompaction,
}

func (f Feature) String() string {
	switch f {
	case FeatureMerge:
		return "Merge"
	case FeatureRemoveRange:
		return "RemoveRange"
	case FeatureWriteBatch:
		return "WriteBatch"
	case FeatureBatchMerge:
		return "BatchMerge"
	case FeatureBatchClear:
		return "BatchClear"
	case FeaturePersistence:
		return "Persistence"
	case FeatureDestroy:
		return "Destroy"
	case FeatureSnapshotIterator:
		return "SnapshotIterator"
	case FeatureCompaction:
		return "Compaction"
	default:
		return "Unknown"
	}
}

// Features splits a feature set into its single flags.
func Features(set Feature) []Feature {
	var out []Feature
	for _, f := range allFeatures {
		if set&f != 0 {
			out = append(out, f)
		}
	}
	return out
}

// Info describes an open map. Sizes are estimates.
type Info struct {
	Engine            Implementation `json:"engine"`
	Location          string         `json:"location"`
	Comparator        string         `json:"comparator"`
	SupportedFeatures []Feature      `json:"supported_features"`
	SizeBytes         int64          `json:"size_bytes"`
	Writes            int64          `json:"writes"`
	AvgValueSize      int            `json:"avg_value_size"`
	MedianValueSize   int            `json:"median_value_size"`
	Metadata          interface{}    `json:"metadata"`
}

// Pair is a key/value pair returned by iterators and accepted by PutAll and MergeAll.
type Pair[K, V any] struct {
	Key   K
	Value V
}

// PairOf builds a Pair.
func PairOf[K, V any](key K, value V) Pair[K, V] {
	return Pair[K, V]{Key: key, Value: value}
}

// PrefixMatcher reports whether key matches the prefix given to IteratorFrom.
type PrefixMatcher[K any] func(key, prefix K) bool

// --------------------------------------------------------------------------
// Iterator Interface
// --------------------------------------------------------------------------

// Iterator is a closeable, peekable cursor over key/value pairs in ascending
// key order. An iterator stays usable when the map is mutated while it is
// open. It may or may not observe such mutations.
//
// Iterators are scoped resources and must be closed on every exit path.
// Closing an iterator never changes the map.
type Iterator[K, V any] interface {
	// HasNext reports whether Next would return a pair.
	HasNext() bool

	// Next returns the next pair and advances the cursor.
	// It fails with ErrNoSuchElement when the iterator is exhausted.
	Next() (Pair[K, V], error)

	// Peek returns the next pair without advancing the cursor.
	// It fails with ErrNoSuchElement when the iterator is exhausted.
	Peek() (Pair[K, V], error)

	// Close releases the iterator. It returns the first error the underlying
	// cursor ran into, if any. Close is idempotent.
	Close() error
}

// --------------------------------------------------------------------------
// Write Batch Interface
// --------------------------------------------------------------------------

// WriteBatch accumulates writes that are applied atomically by Commit.
// Closing a batch without Commit discards it and leaves the map unmodified.
// A batch can be committed once.
type WriteBatch[K, V any] interface {
	// Put stages an upsert and returns the encoded value size.
	Put(key K, value V) (int, error)

	// Merge stages a merge. Fails with ErrUnsupportedOperation when the
	// engine has no batch merge (see FeatureBatchMerge).
	Merge(key K, value V) error

	// Remove stages the deletion of one key.
	Remove(key K) error

	// Clear stages the deletion of all keys in the map. Writes staged after
	// Clear survive it. Fails with ErrUnsupportedOperation without
	// FeatureBatchClear.
	Clear() error

	// Commit applies all staged writes.
	Commit() error

	// Close releases the batch. Close is idempotent.
	Close() error
}

// --------------------------------------------------------------------------
// Map Interface
// --------------------------------------------------------------------------

// LinkedMap is an ordered, mutable key-value map. Keys are unique and iteration
// order is the total order of the map's comparator. Implementations differ in
// durability and in their support for merge, which can be queried with
// SupportsFeature.
//
// A LinkedMap assumes one writer at a time. Use Synchronized to share one
// instance between goroutines.
type LinkedMap[K, V any] interface {

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get returns the value for key. found is false if the key is absent.
	Get(key K) (value V, found bool, err error)

	// IsEmpty reports whether the map holds no keys.
	IsEmpty() (bool, error)

	// FirstKey returns the smallest key. found is false for an empty map.
	FirstKey() (key K, found bool, err error)

	// LastKey returns the greatest key. found is false for an empty map.
	LastKey() (key K, found bool, err error)

	// LastKeyWithPrefix returns the greatest key that matches prefix.
	LastKeyWithPrefix(prefix K) (key K, found bool, err error)

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Put inserts or replaces the value for key and returns the encoded value size.
	Put(key K, value V) (size int, err error)

	// PutAll puts all pairs atomically where the engine allows it.
	PutAll(pairs []Pair[K, V]) error

	// Merge combines value with the current value for key using the engine's
	// merge operator (or the map's merge function). Fails with
	// ErrUnsupportedOperation if the engine cannot merge.
	Merge(key K, value V) error

	// MergeAll merges all pairs in order.
	MergeAll(pairs []Pair[K, V]) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key K) error

	// Clear deletes all keys.
	Clear() error

	// RemoveRange deletes every key k with from <= k < to. The upper bound
	// is exclusive.
	RemoveRange(from, to K) error

	// --------------------------------------------------------------------------
	// Iteration
	// --------------------------------------------------------------------------

	// Iterator returns a cursor positioned at the first key.
	Iterator() (Iterator[K, V], error)

	// IteratorFrom returns a cursor positioned at the first key that matches
	// prefix and continues in key order from there. The persistent engines
	// match encoded keys that start with the encoded prefix.
	IteratorFrom(prefix K) (Iterator[K, V], error)

	// NewWriteBatch returns a scoped write batch.
	NewWriteBatch() (WriteBatch[K, V], error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the map.
	GetInfo() (info Info)

	// Close flushes and releases all resources. Close is idempotent.
	Close() error
}

// Destroyer is implemented by maps that can erase all persisted state.
// Destroy closes the map if it is still open and then irreversibly deletes
// its storage location.
type Destroyer interface {
	Destroy() error
}
