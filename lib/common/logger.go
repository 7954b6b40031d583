package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboat's logger.ILogger)
// --------------------------------------------------------------------------

// kvcLogger implements the ILogger interface with custom formatting
type kvcLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *kvcLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *kvcLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *kvcLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *kvcLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *kvcLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *kvcLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

func (l *kvcLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// logOutput is where created loggers write, stderr keeps stdout free for
// command output
var logOutput io.Writer = os.Stderr

// CreateLogger implements dragonboat's logger.Factory
func CreateLogger(pkgName string) logger.ILogger {
	return &kvcLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: log.New(logOutput, "", log.Ldate|log.Ltime),
	}
}

// ParseLogLevel converts a level name (debug, info, warn, error) to a
// logger.LogLevel.
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return 0, errors.Newf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// componentLevels resolves the level of every named logger of the module:
// the collections, the three engines, the queue, the row merger and the
// cli. overrides maps a logger name to its own level.
func componentLevels(level string, overrides map[string]string) (map[string]logger.LogLevel, error) {
	base, err := ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	levels := map[string]logger.LogLevel{
		"linkedmap": base,
		"memmap":    base,
		"pebblemap": base,
		"levelmap":  base,
		"sequence":  base,
		"cassandra": base,
		"cli":       base,
	}
	for name, lvl := range overrides {
		if _, ok := levels[name]; !ok {
			known := make([]string, 0, len(levels))
			for k := range levels {
				known = append(known, k)
			}
			slices.Sort(known)
			return nil, errors.Newf("unknown logger %q: must be one of %s", name, strings.Join(known, ", "))
		}
		if levels[name], err = ParseLogLevel(lvl); err != nil {
			return nil, errors.Wrapf(err, "logger %s", name)
		}
	}
	return levels, nil
}

// InitLoggers installs CreateLogger as dragonboat's logger factory and sets
// level for every logger of the module, or the level from overrides for the
// loggers named there (e.g. pebblemap: debug while everything else warns).
func InitLoggers(level string, overrides map[string]string) error {
	levels, err := componentLevels(level, overrides)
	if err != nil {
		return err
	}
	logger.SetLoggerFactory(CreateLogger)
	for name, l := range levels {
		logger.GetLogger(name).SetLevel(l)
	}
	return nil
}
