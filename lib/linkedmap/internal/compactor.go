package internal

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/kvcollections/lib/comparator"
	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Background compaction
// --------------------------------------------------------------------------

// CompactFunc compacts the raw key range [start, end).
type CompactFunc func(start, end []byte) error

// Compactor collects vacated key ranges and compacts their union once no new
// range was scheduled for a configured delay.
type Compactor struct {
	name    string
	cmp     comparator.Comparator
	delay   time.Duration
	compact CompactFunc
	log     logger.ILogger

	mu         sync.Mutex
	start, end []byte // pending union, nil if nothing is pending

	signal chan struct{}
	quit   chan struct{}
	wg     sync.WaitGroup
	runs   atomic.Int64
}

// StartCompactor starts the compaction loop. Stop must be called before the
// engine is closed.
func StartCompactor(name string, cmp comparator.Comparator, delay time.Duration, log logger.ILogger, compact CompactFunc) *Compactor {
	c := &Compactor{
		name:    name,
		cmp:     cmp,
		delay:   delay,
		compact: compact,
		log:     log,
		signal:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

// Schedule adds [start, end) to the pending range. It never blocks.
//
// Thread-safety: This method is safe for concurrent use
func (c *Compactor) Schedule(start, end []byte) {
	c.mu.Lock()
	if c.start == nil || c.cmp.Compare(start, c.start) < 0 {
		c.start = append([]byte(nil), start...)
	}
	if c.end == nil || c.cmp.Compare(end, c.end) > 0 {
		c.end = append([]byte(nil), end...)
	}
	c.mu.Unlock()

	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// Pending reports whether a range is waiting to be compacted.
func (c *Compactor) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start != nil
}

// Runs returns the number of finished compactions.
func (c *Compactor) Runs() int64 {
	return c.runs.Load()
}

// Stop ends the loop. A pending range is dropped.
func (c *Compactor) Stop() {
	close(c.quit)
	c.wg.Wait()
	if c.Pending() {
		c.log.Debugf("%s: dropped pending compaction on stop", c.name)
	}
}

// loop waits until the scheduled ranges settle and then compacts them
func (c *Compactor) loop() {
	defer c.wg.Done()

	timer := time.NewTimer(c.delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-c.quit:
			return
		case <-c.signal:
			// restart the delay on every new range
			timer.Reset(c.delay)
		case <-timer.C:
			c.run()
		}
	}
}

func (c *Compactor) run() {
	c.mu.Lock()
	start, end := c.start, c.end
	c.start, c.end = nil, nil
	c.mu.Unlock()

	if start == nil || c.cmp.Compare(start, end) >= 0 {
		return
	}
	began := time.Now()
	if err := c.compact(start, end); err != nil {
		c.log.Warningf("%s: compaction of [%x, %x) failed: %v", c.name, start, end, err)
		return
	}
	c.runs.Add(1)
	c.log.Debugf("%s: compacted [%x, %x) in %s", c.name, start, end, time.Since(began))
}
