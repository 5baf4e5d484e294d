// Package resilience provides fault-tolerance patterns for engine backends.
//
// This package includes:
//   - Retry: retries failed operations with exponential backoff, honoring
//     error retryability classification
//   - CircuitBreaker: fails fast against a backend that keeps failing, so
//     fallback can move on to healthier engines
//
// Example:
//
//	cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("funasr"))
//	err := cb.Execute(func() error {
//	    return resilience.RetryFunc(ctx, resilience.DefaultRetryConfig(), submit)
//	})
package resilience
