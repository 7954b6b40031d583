package sequence

import (
	"fmt"
	"math"

	"github.com/ValentinKolb/kvcollections/lib/linkedmap"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("sequence")

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Queue is a FIFO queue of items of type T.
type Queue[T any] interface {
	// Add appends one item.
	Add(item T) error
	// AddAll appends items in order, atomically if the map supports batches.
	AddAll(items []T) error
	// Peek returns the oldest unconsumed item without removing it.
	Peek() (item T, ok bool, err error)
	// Pop returns and removes the oldest unconsumed item.
	Pop() (item T, ok bool, err error)
	// IsEmpty reports whether there is no unconsumed item.
	IsEmpty() (bool, error)
	// Len returns the number of unconsumed items.
	Len() int64
	// Clear removes all items and resets the sequence numbers.
	Clear() error
	// Close discards consumed items and releases the cursor. It does not
	// close the underlying map.
	Close() error
}

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options tunes the read mode switch and the deletion of consumed items.
type Options struct {
	IteratorModeDistance int // Backlog above which reads use an iterator
	DiscardThreshold     int // Consumed items kept before they are deleted in one range delete
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		IteratorModeDistance: 128,
		DiscardThreshold:     1024,
	}
}

func (o Options) validate() error {
	if o.IteratorModeDistance <= 0 {
		return linkedmap.NewError(linkedmap.RetCInvalidArgument, "sequence: IteratorModeDistance must be positive")
	}
	if o.DiscardThreshold <= 0 {
		return linkedmap.NewError(linkedmap.RetCInvalidArgument, "sequence: DiscardThreshold must be positive")
	}
	return nil
}

// --------------------------------------------------------------------------
// State
// --------------------------------------------------------------------------

// Mode is the read strategy of a sequence.
type Mode int

const (
	ModeDirect Mode = iota // Point lookups
	ModeCursor             // Iterator over the map
)

func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeCursor:
		return "cursor"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// cursorState tracks whether the open iterator may miss items
type cursorState int

const (
	cursorNone  cursorState = iota // no iterator open
	cursorFresh                    // iterator sees every item added so far
	cursorDirty                    // items were added after the iterator was opened
)

// Sequence is a FIFO queue stored in a LinkedMap[int64, T].
// Invariant: firstRead <= nextRead <= nextWrite.
type Sequence[T any] struct {
	m    linkedmap.LinkedMap[int64, T]
	opts Options

	nextWrite int64 // key of the next added item
	nextRead  int64 // key of the next item to consume
	firstRead int64 // smallest consumed key not deleted yet

	mode   Mode
	cursor linkedmap.Iterator[int64, T]
	state  cursorState
	closed bool
}

var _ Queue[string] = (*Sequence[string])(nil)

// New opens a sequence over m. If m already holds items the sequence
// continues after its greatest key.
func New[T any](m linkedmap.LinkedMap[int64, T], opts Options) (*Sequence[T], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	first, ok, err := m.FirstKey()
	if err != nil {
		return nil, errors.Wrap(err, "sequence: first key")
	}
	if !ok {
		first = 1
	}
	last, ok, err := m.LastKey()
	if err != nil {
		return nil, errors.Wrap(err, "sequence: last key")
	}
	if !ok {
		last = 0
	}

	s := &Sequence[T]{
		m:         m,
		opts:      opts,
		nextWrite: last + 1,
		nextRead:  first,
		firstRead: first,
	}
	s.trySwitchingToCursorMode()
	log.Debugf("opened sequence (next read %d, next write %d, mode %s)", s.nextRead, s.nextWrite, s.mode)
	return s, nil
}

// Mode returns the current read mode.
func (s *Sequence[T]) Mode() Mode { return s.mode }

// Len returns the number of unconsumed items.
func (s *Sequence[T]) Len() int64 { return s.nextWrite - s.nextRead }

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (s *Sequence[T]) Add(item T) error {
	if s.closed {
		return linkedmap.ErrClosed
	}
	if s.nextWrite == math.MaxInt64 {
		return linkedmap.ErrSequenceExhausted
	}
	if _, err := s.m.Put(s.nextWrite, item); err != nil {
		return errors.Wrapf(err, "sequence: add %d", s.nextWrite)
	}
	s.nextWrite++
	s.markDirty()
	s.trySwitchingToCursorMode()
	return nil
}

func (s *Sequence[T]) AddAll(items []T) error {
	if s.closed {
		return linkedmap.ErrClosed
	}
	if len(items) == 0 {
		return nil
	}
	if s.nextWrite > math.MaxInt64-int64(len(items)) {
		return linkedmap.ErrSequenceExhausted
	}

	pairs := make([]linkedmap.Pair[int64, T], len(items))
	for i, item := range items {
		pairs[i] = linkedmap.PairOf(s.nextWrite+int64(i), item)
	}
	if err := s.m.PutAll(pairs); err != nil {
		return errors.Wrapf(err, "sequence: add %d items", len(items))
	}
	s.nextWrite += int64(len(items))
	s.markDirty()
	s.trySwitchingToCursorMode()
	return nil
}

// Clear removes all items from the map and restarts numbering at 1.
func (s *Sequence[T]) Clear() error {
	if s.closed {
		return linkedmap.ErrClosed
	}
	cerr := s.closeCursor()
	if err := s.m.Clear(); err != nil {
		return errors.Wrap(err, "sequence: clear")
	}
	s.nextWrite, s.nextRead, s.firstRead = 1, 1, 1
	s.setMode(ModeDirect)
	return cerr
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

func (s *Sequence[T]) IsEmpty() (bool, error) {
	if s.closed {
		return false, linkedmap.ErrClosed
	}
	if s.mode == ModeDirect {
		return s.nextRead == s.nextWrite, nil
	}
	if err := s.refreshCursor(); err != nil {
		return false, err
	}
	return !s.cursor.HasNext(), nil
}

func (s *Sequence[T]) Peek() (T, bool, error) {
	var zero T
	if s.closed {
		return zero, false, linkedmap.ErrClosed
	}
	if s.nextRead >= s.nextWrite {
		return zero, false, nil
	}

	if s.mode == ModeDirect {
		return s.m.Get(s.nextRead)
	}
	if err := s.refreshCursor(); err != nil {
		return zero, false, err
	}
	if !s.cursor.HasNext() {
		return zero, false, nil
	}
	p, err := s.cursor.Peek()
	if err != nil {
		return zero, false, err
	}
	return p.Value, true, nil
}

func (s *Sequence[T]) Pop() (T, bool, error) {
	var zero T
	if s.closed {
		return zero, false, linkedmap.ErrClosed
	}
	if s.nextRead >= s.nextWrite {
		return zero, false, nil
	}

	item, ok, err := s.take()
	if err != nil {
		return zero, false, err
	}
	if s.mode == ModeCursor && s.nextRead == s.nextWrite {
		if err := s.closeCursor(); err != nil {
			log.Warningf("close cursor: %v", err)
		}
		s.setMode(ModeDirect)
	}
	if err := s.discard(false); err != nil {
		return item, ok, err
	}
	return item, ok, nil
}

// take consumes the next item in the current mode
func (s *Sequence[T]) take() (T, bool, error) {
	var zero T
	if s.mode == ModeDirect {
		item, ok, err := s.m.Get(s.nextRead)
		if err != nil {
			return zero, false, err
		}
		s.nextRead++
		return item, ok, nil
	}

	if err := s.refreshCursor(); err != nil {
		return zero, false, err
	}
	if !s.cursor.HasNext() {
		return zero, false, nil
	}
	p, err := s.cursor.Next()
	if err != nil {
		return zero, false, err
	}
	s.nextRead = p.Key + 1
	if !s.cursor.HasNext() {
		s.state = cursorDirty
	}
	return p.Value, true, nil
}

// --------------------------------------------------------------------------
// Cursor State Machine
// --------------------------------------------------------------------------

func (s *Sequence[T]) setMode(mode Mode) {
	if s.mode != mode {
		log.Debugf("switching from %s to %s mode (backlog %d)", s.mode, mode, s.Len())
		s.mode = mode
	}
}

// trySwitchingToCursorMode enters cursor mode once the backlog exceeds
// IteratorModeDistance
func (s *Sequence[T]) trySwitchingToCursorMode() {
	if s.mode == ModeDirect && s.Len() > int64(s.opts.IteratorModeDistance) {
		s.setMode(ModeCursor)
	}
}

func (s *Sequence[T]) markDirty() {
	if s.state == cursorFresh {
		s.state = cursorDirty
	}
}

// refreshCursor opens the cursor if there is none and reopens a dirty cursor
// that ran dry. Both start at the next unread key, since consumed items may
// still be in the map.
func (s *Sequence[T]) refreshCursor() error {
	switch s.state {
	case cursorFresh:
		return nil
	case cursorDirty:
		if s.cursor.HasNext() {
			return nil
		}
		if err := s.closeCursor(); err != nil {
			log.Warningf("close cursor: %v", err)
		}
	}

	it, err := s.m.IteratorFrom(s.nextRead)
	if err != nil {
		return errors.Wrap(err, "sequence: open cursor")
	}
	s.cursor = it
	s.state = cursorFresh
	return nil
}

func (s *Sequence[T]) closeCursor() error {
	if s.state == cursorNone {
		return nil
	}
	err := s.cursor.Close()
	s.cursor = nil
	s.state = cursorNone
	return err
}

// discard deletes the consumed range [firstRead, nextRead) once it is larger
// than DiscardThreshold, or when it is not empty and force is set
func (s *Sequence[T]) discard(force bool) error {
	threshold := int64(s.opts.DiscardThreshold)
	if force {
		threshold = 0
	}
	if s.nextRead-s.firstRead <= threshold {
		return nil
	}
	if err := s.m.RemoveRange(s.firstRead, s.nextRead); err != nil {
		return errors.Wrapf(err, "sequence: discard [%d, %d)", s.firstRead, s.nextRead)
	}
	log.Debugf("discarded %d consumed items", s.nextRead-s.firstRead)
	s.firstRead = s.nextRead
	return nil
}

// Close deletes all consumed items and closes the cursor. Calling Close more
// than once is a no-op.
func (s *Sequence[T]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	cerr := s.closeCursor()
	if err := s.discard(true); err != nil {
		return err
	}
	return cerr
}
