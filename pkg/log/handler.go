package log

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
)

// StackTraceHandler は ErrAttr に載ったエラーのスタックを StacktraceAttrKey として追記する slog.Handler。
type StackTraceHandler struct {
	next slog.Handler
}

// NewStackTraceHandler wraps next.
func NewStackTraceHandler(next slog.Handler) *StackTraceHandler {
	return &StackTraceHandler{next: next}
}

func (h *StackTraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle は既にスタックが付いているレコードには手を加えない
func (h *StackTraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if st := recordStack(r); st != "" {
		r = r.Clone()
		r.AddAttrs(slog.String(StacktraceAttrKey, st))
	}
	return h.next.Handle(ctx, r)
}

func (h *StackTraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewStackTraceHandler(h.next.WithAttrs(attrs))
}

func (h *StackTraceHandler) WithGroup(name string) slog.Handler {
	return NewStackTraceHandler(h.next.WithGroup(name))
}

func recordStack(r slog.Record) string {
	var err error
	r.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case StacktraceAttrKey:
			err = nil
			return false
		case ErrAttrKey:
			if e, ok := a.Value.Any().(error); ok && err == nil {
				err = e
			}
		}
		return true
	})
	if err == nil {
		return ""
	}
	return extractStacktrace(err)
}

// extractStacktrace walks the wrap chain from the outside and returns the
// first stack cockroachdb/errors stored as a safe detail.
func extractStacktrace(err error) string {
	for ; err != nil; err = errors.UnwrapOnce(err) {
		if d := errors.GetSafeDetails(err).SafeDetails; len(d) > 0 && d[0] != "" {
			return d[0]
		}
	}
	return ""
}
