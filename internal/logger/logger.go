// Package logger provides the process-wide zap logger. Init once from
// main; everything else reaches it through Get.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger
type Logger struct {
	*zap.Logger
}

var (
	global *Logger
	once   sync.Once
)

// Init initializes the global logger. Development mode uses the console
// encoder with debug level; production uses JSON at info level.
func Init(environment string, debug bool) (*Logger, error) {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
		if debug {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := cfg.Build(zap.AddCallerSkip(0))
	if err != nil {
		return nil, err
	}

	global = &Logger{Logger: l}
	return global, nil
}

// Get returns the global logger, initializing a no-op fallback when Init
// was never called (tests).
func Get() *Logger {
	once.Do(func() {
		if global == nil {
			global = &Logger{Logger: zap.NewNop()}
		}
	})
	return global
}

// Sync flushes any buffered log entries
func Sync() {
	if global != nil {
		_ = global.Logger.Sync()
	}
}

// With returns a child logger with the given fields attached.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}
