package fallback

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/skillsenselab/asrkit/asr"
	"github.com/skillsenselab/asrkit/errors"
	"github.com/skillsenselab/asrkit/logger"
	"github.com/skillsenselab/asrkit/observability"
	"github.com/skillsenselab/asrkit/resilience"
)

// Recognizer is the single-engine recognition operation the controller
// drives. *asr.Recognizer satisfies it.
type Recognizer interface {
	Recognize(ctx context.Context, req asr.Request) (*asr.Transcript, error)
}

// Config configures a fallback controller.
type Config struct {
	// Engines is the ordered engine list. The first entry is the primary.
	Engines []string
	// MaxAttempts is the global ceiling on real (non-skipped) engine
	// attempts per call. Zero means one attempt per engine.
	MaxAttempts int
	// CircuitBreaker enables a per-engine circuit breaker; engines with an
	// open circuit are skipped.
	CircuitBreaker bool
	// CircuitBreakerConfig overrides the breaker defaults. The Name field
	// is set per engine.
	CircuitBreakerConfig *resilience.CircuitBreakerConfig
}

// Attempt records one engine attempt within a single call.
type Attempt struct {
	Engine   string
	Err      error
	Skipped  bool
	Duration time.Duration
}

// AllEnginesFailedError reports that every configured engine failed or was
// skipped. Attempts holds the per-engine outcomes in order.
type AllEnginesFailedError struct {
	Attempts []Attempt

	app *errors.AppError
}

func newAllEnginesFailed(attempts []Attempt) *AllEnginesFailedError {
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		if a.Skipped {
			parts = append(parts, a.Engine+": skipped (circuit open)")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %v", a.Engine, a.Err))
	}
	app := errors.New(errors.ErrCodeAllEnginesFailed,
		"all engines failed: "+strings.Join(parts, "; "))
	for _, a := range attempts {
		if !a.Skipped && errors.IsRetryable(a.Err) {
			app.Retryable = true
			break
		}
	}
	return &AllEnginesFailedError{Attempts: attempts, app: app}
}

func (e *AllEnginesFailedError) Error() string { return e.app.Error() }

// Unwrap exposes the underlying AppError for code classification.
func (e *AllEnginesFailedError) Unwrap() error { return e.app }

// Controller tries engines in order until one succeeds.
type Controller struct {
	recognizer  Recognizer
	engines     []string
	maxAttempts int
	breakers    map[string]*resilience.CircuitBreaker
	metrics     *observability.Metrics
	log         *logger.Logger
}

// Option customizes a Controller.
type Option func(*Controller)

// WithMetrics records a fallback attempt counter per engine attempt.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = metrics }
}

// WithLogger overrides the controller logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// NewController creates a fallback controller over the given recognizer.
func NewController(recognizer Recognizer, cfg Config, opts ...Option) *Controller {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = len(cfg.Engines)
	}

	c := &Controller{
		recognizer:  recognizer,
		engines:     cfg.Engines,
		maxAttempts: maxAttempts,
		log:         logger.Get("fallback"),
	}
	if cfg.CircuitBreaker {
		c.breakers = make(map[string]*resilience.CircuitBreaker, len(cfg.Engines))
		for _, name := range cfg.Engines {
			bc := resilience.DefaultCircuitBreakerConfig(name)
			if cfg.CircuitBreakerConfig != nil {
				bc = *cfg.CircuitBreakerConfig
				bc.Name = name
			}
			c.breakers[name] = resilience.NewCircuitBreaker(bc)
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recognize tries the configured engines in order. Validation-class errors
// from any engine stop the chain immediately; transient and definitive
// backend failures move on to the next engine. An engine is attempted at
// most once per call.
func (c *Controller) Recognize(ctx context.Context, req asr.Request) (*asr.Transcript, error) {
	if len(c.engines) == 0 {
		return nil, errors.InvalidInput("no fallback engines configured")
	}

	var attempts []Attempt
	tried := make(map[string]bool, len(c.engines))
	real := 0

	for _, name := range c.engines {
		if tried[name] {
			continue
		}
		tried[name] = true

		if real >= c.maxAttempts {
			break
		}

		engineReq := req
		engineReq.Engine = name

		start := time.Now()
		transcript, err := c.attempt(ctx, name, engineReq)
		duration := time.Since(start)

		if stderrors.Is(err, resilience.ErrCircuitOpen) {
			c.log.Warn("engine skipped, circuit open", map[string]interface{}{
				logger.FieldEngine: name,
			})
			attempts = append(attempts, Attempt{Engine: name, Err: err, Skipped: true})
			continue
		}

		real++
		if c.metrics != nil {
			c.metrics.RecordFallbackAttempt(ctx, name, real)
		}

		if err == nil {
			c.logSuppressed(attempts, name)
			return transcript, nil
		}

		if errors.IsValidation(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}

		c.log.Warn("engine attempt failed", map[string]interface{}{
			logger.FieldEngine:   name,
			logger.FieldError:    err.Error(),
			logger.FieldDuration: duration.Milliseconds(),
		})
		attempts = append(attempts, Attempt{Engine: name, Err: err, Duration: duration})
	}

	return nil, newAllEnginesFailed(attempts)
}

// attempt runs one engine call, through its circuit breaker when enabled.
func (c *Controller) attempt(ctx context.Context, name string, req asr.Request) (*asr.Transcript, error) {
	breaker := c.breakers[name]
	if breaker == nil {
		return c.recognizer.Recognize(ctx, req)
	}

	var transcript *asr.Transcript
	err := breaker.Execute(func() error {
		var callErr error
		transcript, callErr = c.recognizer.Recognize(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return transcript, nil
}

// BreakerState reports the circuit state for an engine, or closed when
// breakers are disabled.
func (c *Controller) BreakerState(engine string) resilience.State {
	if b := c.breakers[engine]; b != nil {
		return b.State()
	}
	return resilience.StateClosed
}

func (c *Controller) logSuppressed(attempts []Attempt, winner string) {
	for _, a := range attempts {
		if a.Skipped {
			continue
		}
		c.log.Info("earlier engine failure suppressed", map[string]interface{}{
			logger.FieldEngine: a.Engine,
			logger.FieldError:  a.Err.Error(),
			"succeeded_engine": winner,
		})
	}
}
