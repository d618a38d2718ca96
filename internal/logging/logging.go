// Package logging configures the process-wide logrus logger from the
// CLI's --verbose/--debug flags, and hands out the per-watch file log
// handles spec.md's persisted-state rules describe, deduplicating
// repeated requests for the same path to a single open handle — the
// shared resource spec.md §5 calls out alongside the cache's
// single-writer discipline and the one HTTP session per Context.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// Init configures the process-wide logger. verbose raises the level to
// Info (the default without either flag is Warn, so routine per-watch
// activity stays quiet); debug raises it further to Debug and switches
// on logrus's caller reporting. Colors are only enabled when stdout is
// an actual terminal, so piping lookout's own log output to a file or
// another process (a common way to run it from cron) doesn't collect
// ANSI escapes.
func Init(verbose, debug bool) {
	log = logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05Z",
		DisableColors:   !isatty.IsTerminal(os.Stdout.Fd()),
	})

	switch {
	case debug:
		log.SetLevel(logrus.DebugLevel)
		log.SetReportCaller(true)
	case verbose:
		log.SetLevel(logrus.InfoLevel)
	default:
		log.SetLevel(logrus.WarnLevel)
	}
}

// Get returns the process-wide logger, initializing it with defaults
// (neither --verbose nor --debug) on first use.
func Get() *logrus.Logger {
	if log == nil {
		Init(false, false)
	}
	return log
}

var (
	fileLoggersMu sync.Mutex
	fileLoggers   = map[string]*logrus.Logger{}
	fileHandles   = map[string]*os.File{}
)

// FileLogger returns a logrus.Logger appending to
// filepath.Join(dataPath, name). Repeated calls for the same resolved
// path return the same Logger and share the same open *os.File, rather
// than reopening it. The `file` action does not use it: it keeps its own
// per-path handle map in internal/action/file.go.
func FileLogger(dataPath, name string) (*logrus.Logger, error) {
	path := filepath.Join(dataPath, name)

	fileLoggersMu.Lock()
	defer fileLoggersMu.Unlock()

	if existing, ok := fileLoggers[path]; ok {
		return existing, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logging: create directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", path, err)
	}

	l := logrus.New()
	l.SetOutput(f)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05Z",
		DisableColors:   true,
	})
	l.SetLevel(logrus.InfoLevel)

	fileLoggers[path] = l
	fileHandles[path] = f
	return l, nil
}

// CloseFileLoggers closes every file handle opened by FileLogger and
// forgets the memoized Loggers.
func CloseFileLoggers() error {
	fileLoggersMu.Lock()
	defer fileLoggersMu.Unlock()

	var firstErr error
	for path, f := range fileHandles {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("logging: close %s: %w", path, err)
		}
	}
	fileLoggers = map[string]*logrus.Logger{}
	fileHandles = map[string]*os.File{}
	return firstErr
}
