package linkedmap

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	initOnce sync.Once
	log      logger.ILogger

	// locations holds every storage directory that is currently open in this
	// process, keyed by absolute path
	locations *xsync.MapOf[string, Implementation]
)

// Init prepares the package level state (logger and location registry).
// It is safe to call Init more than once; every engine calls it on open.
func Init() {
	initOnce.Do(func() {
		log = logger.GetLogger("linkedmap")
		locations = xsync.NewMapOf[string, Implementation]()
	})
}

// Logger returns the package logger. Engines log through it.
func Logger() logger.ILogger {
	Init()
	return log
}

// AcquireLocation registers path as open by engine. Opening the same
// directory twice in one process fails with ErrAlreadyOpen, since both
// engines hold an exclusive lock on their directory anyway.
//
// Thread-safety: This method is safe for concurrent use
func AcquireLocation(path string, engine Implementation) (string, error) {
	Init()
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", WrapError(RetCInvalidArgument, err, fmt.Sprintf("invalid location %q", path))
	}
	if holder, loaded := locations.LoadOrStore(abs, engine); loaded {
		return "", NewError(RetCAlreadyOpen, fmt.Sprintf("%s is already open by a %s map", abs, holder))
	}
	log.Debugf("acquired location %s (%s)", abs, engine)
	return abs, nil
}

// ReleaseLocation removes path from the registry. Releasing an unknown path is a no-op.
//
// Thread-safety: This method is safe for concurrent use
func ReleaseLocation(abs string) {
	Init()
	locations.Delete(abs)
	log.Debugf("released location %s", abs)
}

// OpenLocations returns the absolute paths of all open storage locations.
func OpenLocations() []string {
	Init()
	out := make([]string, 0, locations.Size())
	locations.Range(func(key string, _ Implementation) bool {
		out = append(out, key)
		return true
	})
	return out
}
