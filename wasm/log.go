package wasm

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the package's diagnostic logger, a no-op by default so
// decoding and validation stay silent unless a caller opts in with
// SetLogger.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger installs l as the package's diagnostic logger; pass nil to
// restore the no-op default. The logger receives one debug-level entry per
// error recorded on an ErrorSink; section and instruction traversal is not
// logged.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// logDecodeError emits a debug-level trace of a recorded decode/validation
// error; it never affects control flow, purely an observability hook for
// callers that enabled a real Logger.
func logDecodeError(offset int, message string) {
	Logger().Debug("decode error", zap.Int("offset", offset), zap.String("message", message))
}
