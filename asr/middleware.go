package asr

import (
	"context"
	"time"

	"github.com/skillsenselab/asrkit/errors"
	"github.com/skillsenselab/asrkit/logger"
	"github.com/skillsenselab/asrkit/observability"
)

// RecognizeFunc is the recognize operation signature middleware wraps.
type RecognizeFunc func(ctx context.Context, req Request) (*Transcript, error)

// Middleware transforms a RecognizeFunc by wrapping it with cross-cutting
// behavior (logging, metrics, tracing).
type Middleware func(RecognizeFunc) RecognizeFunc

// Chain composes middlewares into one. The first middleware is outermost:
// Chain(a, b, c)(fn) is equivalent to a(b(c(fn))).
func Chain(middlewares ...Middleware) Middleware {
	return func(inner RecognizeFunc) RecognizeFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			inner = middlewares[i](inner)
		}
		return inner
	}
}

// WithLogging returns a Middleware that logs each recognize call with its
// engine, duration, and outcome.
func WithLogging(log *logger.Logger) Middleware {
	return func(inner RecognizeFunc) RecognizeFunc {
		return func(ctx context.Context, req Request) (*Transcript, error) {
			start := time.Now()
			transcript, err := inner(ctx, req)
			duration := time.Since(start)

			fields := map[string]interface{}{
				logger.FieldEngine:   req.Engine,
				logger.FieldDuration: duration.Milliseconds(),
			}
			if req.Language != "" {
				fields[logger.FieldLanguage] = req.Language
			}

			if err != nil {
				fields[logger.FieldError] = err.Error()
				log.Error("recognize failed", fields)
			} else {
				fields["segments"] = len(transcript.Segments)
				log.Debug("recognize ok", fields)
			}
			return transcript, err
		}
	}
}

// WithMetrics returns a Middleware that records recognition metrics.
func WithMetrics(metrics *observability.Metrics) Middleware {
	return func(inner RecognizeFunc) RecognizeFunc {
		return func(ctx context.Context, req Request) (*Transcript, error) {
			start := time.Now()
			metrics.RecordRecognizeStart(ctx)
			transcript, err := inner(ctx, req)
			duration := time.Since(start)

			operation := "recognize.file"
			if req.Source.IsURL() {
				operation = "recognize.url"
			}
			status := "ok"
			if err != nil {
				status = "error"
				code := errors.ErrCodeInternal
				if appErr, ok := errors.AsAppError(err); ok {
					code = appErr.Code
				}
				metrics.RecordError(ctx, string(code), req.Engine)
			}
			metrics.RecordRecognizeEnd(ctx, req.Engine, operation, status, duration)
			return transcript, err
		}
	}
}

// WithTracing returns a Middleware that wraps each recognize call in an
// OpenTelemetry span.
func WithTracing(serviceName string) Middleware {
	return func(inner RecognizeFunc) RecognizeFunc {
		return func(ctx context.Context, req Request) (*Transcript, error) {
			ctx, span := observability.StartSpan(ctx, observability.SpanRecognize)
			defer span.End()

			observability.SetSpanAttribute(ctx, observability.AttrServiceName, serviceName)
			observability.SetSpanAttribute(ctx, observability.AttrEngine, req.Engine)
			if req.Language != "" {
				observability.SetSpanAttribute(ctx, observability.AttrLanguage, req.Language)
			}

			transcript, err := inner(ctx, req)
			if err != nil {
				observability.SetSpanError(ctx, err)
			}
			return transcript, err
		}
	}
}
