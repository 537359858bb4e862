// Package wglog provides the single-method logging seam the core's
// components accept, so they never import "log" directly.
package wglog

import "log"

// Logger is the minimal logging contract components depend on.
type Logger interface {
	Printf(format string, v ...any)
}

// StdLogger adapts the standard library's log package to Logger.
type StdLogger struct{}

// NewStdLogger returns a Logger backed by the standard "log" package.
func NewStdLogger() Logger { return StdLogger{} }

func (StdLogger) Printf(format string, v ...any) { log.Printf(format, v...) }

// Nop discards everything. Useful as a default in tests.
type Nop struct{}

func NewNop() Logger { return Nop{} }

func (Nop) Printf(string, ...any) {}
