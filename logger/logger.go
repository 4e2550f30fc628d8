// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logger wires the fixed set of subsystem tags this repo logs
// under (payload builder, pre-signer, transcript builder, registry,
// artifact pool, config, the replicad harness, and shared utilities) to a
// single rotated-file logs.Backend. Unlike a full node with a pluggable
// set of indexers/rule engines, replicad's subsystem set is small and
// fixed at compile time, so there is no subsystem registration API here —
// just the eight loggers below and the level-parsing helpers cmd/replicad
// needs for its --debuglevel flag.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/daglabs/replicad/logs"
	"github.com/jrick/logrotate/rotator"
)

// routingWriter is an io.Writer that fans out to stdout and to the
// rotator it points at, once InitLogRotators has run; logs written
// before that point are dropped rather than panicking on a nil rotator.
type routingWriter struct {
	dest **rotator.Rotator
}

func (w routingWriter) Write(p []byte) (int, error) {
	if *w.dest != nil {
		os.Stdout.Write(p)
		(*w.dest).Write(p)
	}
	return len(p), nil
}

var (
	// LogRotator and ErrLogRotator are the two logging outputs; they are
	// nil until InitLogRotators runs, and should be closed on shutdown.
	LogRotator, ErrLogRotator *rotator.Rotator

	backendLog = logs.NewBackend([]*logs.BackendWriter{
		logs.NewAllLevelsBackendWriter(routingWriter{dest: &LogRotator}),
		logs.NewErrorBackendWriter(routingWriter{dest: &ErrLogRotator}),
	})
)

// SubsystemTags is the fixed set of subsystem identifiers replicad logs
// under.
var SubsystemTags = struct {
	PAYB, ECDS, XSCB, REGC, POOL, CNFG, RPLD, UTIL string
}{
	PAYB: "PAYB", // payload builder
	ECDS: "ECDS", // pre-signer
	XSCB: "XSCB", // transcript builder
	REGC: "REGC", // registry
	POOL: "POOL", // artifact pool
	CNFG: "CNFG", // cmd/replicad config
	RPLD: "RPLD", // cmd/replicad harness
	UTIL: "UTIL", // shared utilities (panics, etc.)
}

// subsystemLoggers holds one eagerly-created logs.Logger per tag in
// SubsystemTags; there is no dynamic registration since the tag set never
// changes at runtime.
var subsystemLoggers = map[string]logs.Logger{
	SubsystemTags.PAYB: backendLog.Logger(SubsystemTags.PAYB),
	SubsystemTags.ECDS: backendLog.Logger(SubsystemTags.ECDS),
	SubsystemTags.XSCB: backendLog.Logger(SubsystemTags.XSCB),
	SubsystemTags.REGC: backendLog.Logger(SubsystemTags.REGC),
	SubsystemTags.POOL: backendLog.Logger(SubsystemTags.POOL),
	SubsystemTags.CNFG: backendLog.Logger(SubsystemTags.CNFG),
	SubsystemTags.RPLD: backendLog.Logger(SubsystemTags.RPLD),
	SubsystemTags.UTIL: backendLog.Logger(SubsystemTags.UTIL),
}

// Get returns the logger for tag.
func Get(tag string) (logger logs.Logger, ok bool) {
	logger, ok = subsystemLoggers[tag]
	return
}

// InitLogRotators must be called once, before any logger is used, to
// direct log output to logFile and errLogFile (plus stdout).
func InitLogRotators(logFile, errLogFile string) {
	LogRotator = initLogRotator(logFile)
	ErrLogRotator = initLogRotator(errLogFile)
}

func initLogRotator(logFile string) *rotator.Rotator {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %s\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %s\n", err)
		os.Exit(1)
	}
	return r
}

// SetLogLevel sets the level of the named subsystem; unknown subsystems
// are ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, _ := logs.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets every subsystem logger to logLevel.
func SetLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}

// SupportedSubsystems returns the subsystem tags in sorted order, for
// --debuglevel usage/help text.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// ParseAndSetDebugLevels parses a --debuglevel value, either a single
// level applied to every subsystem ("info") or a comma-separated list of
// subsystem=level pairs ("PAYB=debug,ECDS=trace").
func ParseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", debugLevel)
		}
		SetLogLevels(debugLevel)
		return nil
	}

	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		fields := strings.Split(logLevelPair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("the specified debug level contains an invalid subsystem/level pair [%s]", logLevelPair)
		}
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := Get(subsysID); !exists {
			return fmt.Errorf("the specified subsystem [%s] is invalid -- supported subsystems %s",
				subsysID, strings.Join(SupportedSubsystems(), ", "))
		}
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", logLevel)
		}
		SetLogLevel(subsysID, logLevel)
	}
	return nil
}

func validLogLevel(logLevel string) bool {
	_, ok := logs.LevelFromString(logLevel)
	return ok
}
