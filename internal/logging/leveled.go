package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// LeveledLogger adapts a zap logger to the key/value logging interface used
// by HTTP client libraries such as go-retryablehttp
type LeveledLogger struct {
	logger *zap.SugaredLogger
}

// NewLeveledLogger wraps logger
func NewLeveledLogger(logger *zap.Logger) *LeveledLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeveledLogger{logger: logger.Sugar()}
}

func (l *LeveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, normalize(keysAndValues)...)
}

func (l *LeveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warnw(msg, normalize(keysAndValues)...)
}

func (l *LeveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Infow(msg, normalize(keysAndValues)...)
}

func (l *LeveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, normalize(keysAndValues)...)
}

// normalize turns non-string keys into strings so zap does not log them
// as errors
func normalize(kv []interface{}) []interface{} {
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if i+1 < len(kv) {
			out = append(out, key, kv[i+1])
		} else {
			out = append(out, key, nil)
		}
	}
	return out
}
