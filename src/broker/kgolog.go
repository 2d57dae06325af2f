package broker

import (
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"

	"orderflow/src/logger"
)

// kgoLogger forwards franz-go client logs to the project logger.
type kgoLogger struct {
	log logger.Logger
}

func newKgoLogger(log logger.Logger) kgo.Logger {
	return kgoLogger{log: log}
}

func (l kgoLogger) Level() kgo.LogLevel {
	return kgo.LogLevelWarn
}

func (l kgoLogger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	line := "[kgo] " + msg + formatKeyvals(keyvals)
	switch level {
	case kgo.LogLevelError:
		l.log.Error("%s", line)
	case kgo.LogLevelWarn:
		l.log.Warn("%s", line)
	case kgo.LogLevelInfo:
		l.log.Info("%s", line)
	default:
		l.log.Debug("%s", line)
	}
}

func formatKeyvals(keyvals []any) string {
	var b strings.Builder
	for i := 0; i+1 < len(keyvals); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keyvals[i], keyvals[i+1])
	}
	if len(keyvals)%2 == 1 {
		fmt.Fprintf(&b, " %v", keyvals[len(keyvals)-1])
	}
	return b.String()
}
