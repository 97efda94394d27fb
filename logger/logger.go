// Copyright (c) 2019-present, The blockrelay developers.
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// logWriter implements an io.Writer that outputs to both standard output and
// the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

// System tags for loggers
const (
	WireLoggerTag    = "WIRE"
	MempoolLoggerTag = "MPOL"
	RelayLoggerTag   = "RELY"

	logFileSize   = 30 * 1024
	logFileNumber = 3
)

// Loggers per subsystem.  A single backend logger is created and all subsytem
// loggers created from it will write to the backend.  When adding new
// subsystems, add the subsystem logger variable here and to the
// subsystemLoggers map.
var (
	// backendLog is the logging backend used to create all subsystem loggers.
	backendLog = btclog.NewBackend(logWriter{})

	// logRotator is one of the logging outputs.  It should be closed on
	// application shutdown.
	logRotator *rotator.Rotator

	wireLog    = backendLog.Logger(WireLoggerTag)
	mempoolLog = backendLog.Logger(MempoolLoggerTag)
	relayLog   = backendLog.Logger(RelayLoggerTag)
)

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	WireLoggerTag:    wireLog,
	MempoolLoggerTag: mempoolLog,
	RelayLoggerTag:   relayLog,
}

// WireLogger returns the logger for the wire subsystem.
func WireLogger() btclog.Logger {
	return wireLog
}

// MempoolLogger returns the logger for the transaction pool subsystem.
func MempoolLogger() btclog.Logger {
	return mempoolLog
}

// RelayLogger returns the logger for the compact block relay subsystem.
func RelayLogger() btclog.Logger {
	return relayLog
}

// InitLevel initialization those levels.
func InitLevel() {
	wireLog.SetLevel(WireLogLevel)
	mempoolLog.SetLevel(MempoolLogLevel)
	relayLog.SetLevel(RelayLogLevel)
}

// LogCleanup does the necessary cleaning before system shuts down.
func LogCleanup() {
	if logRotator != nil {
		logRotator.Close()
	}
}

// InitLogRotator initializes the logging rotater to write logs to logFile and
// create roll files in the same directory.  It must be called before the
// package-global log rotater variables are used.
func InitLogRotator(logFile string) {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, logFileSize, false, logFileNumber)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %v\n", err)
		os.Exit(1)
	}
	logRotator = r
}

// SetLogLevel sets the logging level for provided subsystem.  Invalid
// subsystems are ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	// Ignore invalid subsystems.
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level.  Invalid log levels are ignored.
func SetLogLevels(logLevel string) {
	// Validate debug log level.
	if !validLogLevel(logLevel) {
		return
	}

	// Change the logging level for all subsystems.
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace":
		fallthrough
	case "debug":
		fallthrough
	case "info":
		fallthrough
	case "warn":
		fallthrough
	case "error":
		fallthrough
	case "critical":
		return true
	}
	return false
}

// SupportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func SupportedSubsystems() []string {
	// Convert the subsystemLoggers map keys to a slice.
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsystems for stable display.
	sort.Strings(subsystems)
	return subsystems
}
