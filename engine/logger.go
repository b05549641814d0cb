package engine

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the package-wide fallback logger. Engines created
// without WithLogger use it. No-op by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger replaces the fallback logger. Call before the first
// engine is created.
func SetLogger(log *zap.Logger) {
	if log != nil {
		logger = log
	}
}
