// Package observability provides OpenTelemetry tracing and metrics for
// recognition pipelines.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("asr-service"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanRecognize)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("asr-service"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("asr-service"))
//	metrics.RecordRecognizeEnd(ctx, "funasr", "recognize.url", "ok", duration)
//
// Health checks:
//
//	health := observability.NewServiceHealth("asr-service", "1.0.0")
//	health.AddComponent(engine.CheckHealth(ctx))
package observability
