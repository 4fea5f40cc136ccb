package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one step of a request (an upload, a token refresh) and logs its outcome.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	attrs  []any
}

// StartSpan derives a child span from ctx. A trace id is minted when the
// context does not carry one yet.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)

	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	parentSpanID := SpanIDFromContext(ctx)
	spanID := uuid.NewString()

	logger = logger.With(
		slog.String("span_id", spanID),
		slog.String("span_name", name),
	)
	if parentSpanID != "" {
		logger = logger.With(slog.String("parent_span_id", parentSpanID))
	}

	ctx = WithLogger(ctx, logger)
	ctx = WithSpanID(ctx, spanID)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// Annotate attaches key/value pairs to the completion entry.
func (s *Span) Annotate(args ...any) {
	if s == nil {
		return
	}
	s.attrs = append(s.attrs, args...)
}

// End emits the completion entry. A non-nil err marks the span as failed.
func (s *Span) End(err error) {
	if s == nil {
		return
	}
	args := append([]any{slog.Duration("duration", time.Since(s.start))}, s.attrs...)
	if err != nil {
		s.logger.Warn("span failed", append(args, slog.Any("error", err))...)
		return
	}
	s.logger.Info("span completed", args...)
}
