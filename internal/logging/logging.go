// Package logging holds the process-wide zap logger shared by flatwire
// packages. It is a no-op logger until replaced.
package logging

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

func init() { logger.Store(zap.NewNop()) }

// L returns the current logger.
func L() *zap.Logger { return logger.Load() }

// Set replaces the logger. A nil logger restores the no-op logger.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

// Named returns a child of the current logger. The child is bound to the
// logger current at call time.
func Named(name string) *zap.Logger { return L().Named(name) }
