package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times a logical unit of work and tags log lines emitted inside it.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
}

// StartSpan derives a child span from ctx. The trace id is inherited from the
// parent span, or from the request id when this is the first span of a
// request, or minted fresh otherwise.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	base := baseLogger(ctx)

	if TraceIDFromContext(ctx) == "" {
		traceID := RequestIDFromContext(ctx)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx = withTraceID(ctx, traceID)
		base = base.With(slog.String("trace_id", traceID))
		ctx = context.WithValue(ctx, baseKey, base)
	}

	parentSpanID := SpanIDFromContext(ctx)
	spanID := uuid.NewString()

	logger := base.With(
		slog.String("span_id", spanID),
		slog.String("span_name", name),
	)
	if parentSpanID != "" {
		logger = logger.With(slog.String("parent_span_id", parentSpanID))
	}

	ctx = context.WithValue(ctx, loggerKey, logger)
	ctx = withSpanID(ctx, spanID)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// End emits a debug completion entry carrying the span duration and attrs.
func (s *Span) End(attrs ...slog.Attr) {
	if s == nil {
		return
	}
	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.Duration("duration", time.Since(s.start)))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	s.logger.Debug("span completed", args...)
}
