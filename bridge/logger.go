package bridge

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the bridge package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the bridge package's logger.
// This must be called before any calls are made.
func SetLogger(l *zap.Logger) {
	logger = l
}

func zapSig(sig Signature) []zap.Field {
	return []zap.Field{
		zap.String("func", sig.Name),
		zap.Int("params", len(sig.Params)),
		zap.Stringer("result", sig.Result),
	}
}
