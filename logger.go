package flatwire

import (
	"go.uber.org/zap"

	"github.com/reoring/flatwire/internal/logging"
)

// SetLogger installs the zap logger used by flatwire packages. The default is
// a no-op logger; nil restores it.
func SetLogger(l *zap.Logger) { logging.Set(l) }

// Logger returns the logger used by flatwire packages.
func Logger() *zap.Logger { return logging.L() }
