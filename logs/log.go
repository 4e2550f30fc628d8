// Package logs implements a subsystem-tagged, leveled logging backend in
// the style of btcsuite's btclog: a Backend fans a formatted record out to
// one or more io.Writers, and each subsystem gets its own Logger with an
// independently adjustable Level.
package logs

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level is a logging priority.
type Level uint32

// Logging levels, lowest verbosity (most severe) first is not how these
// are ordered below; Off always disables, Trace always logs.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

var levelStrings = map[Level]string{
	LevelTrace:    "TRC",
	LevelDebug:    "DBG",
	LevelInfo:     "INF",
	LevelWarn:     "WRN",
	LevelError:    "ERR",
	LevelCritical: "CRT",
	LevelOff:      "OFF",
}

func (l Level) String() string {
	if s, ok := levelStrings[l]; ok {
		return s
	}
	return "UNK"
}

// LevelFromString parses a case-insensitive level name. It returns
// (LevelInfo, false) for anything it doesn't recognize, so callers can
// default to info without a second validity check.
func LevelFromString(s string) (l Level, ok bool) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, true
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	case "critical":
		return LevelCritical, true
	case "off":
		return LevelOff, true
	}
	return LevelInfo, false
}

// BackendWriter is an io.Writer paired with the minimum level at which it
// should receive records.
type BackendWriter struct {
	w        io.Writer
	minLevel Level
}

// NewAllLevelsBackendWriter returns a BackendWriter that receives every
// record regardless of level.
func NewAllLevelsBackendWriter(w io.Writer) *BackendWriter {
	return &BackendWriter{w: w, minLevel: LevelTrace}
}

// NewErrorBackendWriter returns a BackendWriter that receives only records
// at LevelError or above.
func NewErrorBackendWriter(w io.Writer) *BackendWriter {
	return &BackendWriter{w: w, minLevel: LevelError}
}

// Backend multiplexes formatted records to its writers and manufactures
// tagged Loggers. The zero value is not usable; use NewBackend.
type Backend struct {
	writers []*BackendWriter
}

// NewBackend creates a logging backend that writes every record to each of
// the given writers whose minimum level is satisfied.
func NewBackend(writers []*BackendWriter) *Backend {
	return &Backend{writers: writers}
}

// Logger returns a tagged Logger backed by b, at LevelInfo.
func (b *Backend) Logger(tag string) Logger {
	l := &logger{backend: b, tag: tag}
	l.level.Store(uint32(LevelInfo))
	return l
}

func (b *Backend) write(tag string, level Level, s string) {
	record := fmt.Sprintf("%s [%s] %s: %s\n", time.Now().Format("2006-01-02 15:04:05.000"), level, tag, s)
	for _, w := range b.writers {
		if level >= w.minLevel {
			_, _ = io.WriteString(w.w, record)
		}
	}
}

// Logger is a tagged, leveled log sink. Implementations must be safe for
// concurrent use.
type Logger interface {
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})

	Level() Level
	SetLevel(level Level)
}

type logger struct {
	backend *Backend
	tag     string
	level   atomic.Uint32
	mu      sync.Mutex
}

func (l *logger) log(level Level, format string, args ...interface{}) {
	if Level(l.level.Load()) > level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backend.write(l.tag, level, fmt.Sprintf(format, args...))
}

func (l *logger) Tracef(format string, args ...interface{})    { l.log(LevelTrace, format, args...) }
func (l *logger) Debugf(format string, args ...interface{})    { l.log(LevelDebug, format, args...) }
func (l *logger) Infof(format string, args ...interface{})     { l.log(LevelInfo, format, args...) }
func (l *logger) Warnf(format string, args ...interface{})     { l.log(LevelWarn, format, args...) }
func (l *logger) Errorf(format string, args ...interface{})    { l.log(LevelError, format, args...) }
func (l *logger) Criticalf(format string, args ...interface{}) { l.log(LevelCritical, format, args...) }

func (l *logger) Level() Level       { return Level(l.level.Load()) }
func (l *logger) SetLevel(lvl Level) { l.level.Store(uint32(lvl)) }
