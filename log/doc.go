// Package log provides the leveled logging interface used by every kbrouter
// package.
//
// Logger is a four-method, printf-style interface. The default
// implementation, GologLogger, is backed by github.com/kataras/golog;
// NoOpLogger discards everything and is what tests usually pass in.
//
//	logger := log.NewGologLoggerWithLevel(log.LogLevelDebug)
//	logger.Info("serving on %s", addr)
//
// Constructors across the module accept a nil Logger and fall back to the
// package-level default (see SetDefaultLogger and OrDefault), so wiring a
// logger is optional.
//
// Levels can be parsed from configuration with ParseLevel.
package log
