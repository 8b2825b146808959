package log

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lmittmann/tint"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// Output formats understood by SetupLogger.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// SetupLogger installs the slog default logger. JSON output uses Cloud
// Logging field names; text output uses tint for a colored console.
// Both are wrapped by StackTraceHandler.
func SetupLogger(w io.Writer, loglevel, format string) error {
	level, err := ToLogLevel(loglevel)
	if err != nil {
		return err
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case FormatText:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	case FormatJSON, "":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: true,
			Level:     level,
			// Replace attributes to convert to CloudLogging format.
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				switch attr.Key {
				case slog.LevelKey:
					attr.Key = "severity"
				case slog.MessageKey:
					attr.Key = "message"
				case slog.SourceKey:
					attr.Key = "logging.googleapis.com/sourceLocation"
				}
				return attr
			},
		})
	default:
		return errors.Newf("invalid log format: %q", format)
	}

	slog.SetDefault(slog.New(NewStackTraceHandler(handler)))
	return nil
}

// ToLogLevel converts "debug", "info", "warn" or "error" to a slog.Level.
func ToLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "info", "":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.Newf("invalid log level: %q", level)
	}
}

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
