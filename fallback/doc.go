// Package fallback implements ordered engine failover for recognition
// requests.
//
// A Controller wraps a Recognizer and an ordered engine list. Each call
// tries engines in order until one succeeds. Request-shape problems
// (validation-class errors) surface immediately without trying further
// engines; backend failures, transient or definitive, move the call to the
// next engine. When every engine fails the caller receives an
// AllEnginesFailedError carrying the per-engine outcomes in attempt order.
//
// With Config.CircuitBreaker enabled, each engine gets its own circuit
// breaker; an engine with an open circuit is skipped and the skip is
// recorded as an attempt.
//
//	ctrl := fallback.NewController(recognizer, fallback.Config{
//		Engines:        []string{"funasr", "whisper"},
//		CircuitBreaker: true,
//	})
//	transcript, err := ctrl.Recognize(ctx, req)
package fallback
