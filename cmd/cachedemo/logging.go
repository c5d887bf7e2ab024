package main

import (
	"log"

	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogging mirrors _examples/johanix-tdns/tdns/logging.go's
// SetupLogging: a rotated log file when one is configured, plain
// stderr otherwise, since this demo binary has no config file of its
// own to require one.
func setupLogging(logfile string) *log.Logger {
	if logfile == "" {
		return log.New(log.Writer(), "cachedemo ", log.Lshortfile|log.Ltime)
	}
	return log.New(&lumberjack.Logger{
		Filename:   logfile,
		MaxSize:    20,
		MaxBackups: 3,
		MaxAge:     14,
	}, "cachedemo ", log.Lshortfile|log.Ltime)
}
