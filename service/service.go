// Package service wires the recognition façade, fallback controller, and
// transcript export into one high-level entry point.
package service

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/skillsenselab/asrkit/asr"
	"github.com/skillsenselab/asrkit/config"
	"github.com/skillsenselab/asrkit/errors"
	"github.com/skillsenselab/asrkit/export"
	"github.com/skillsenselab/asrkit/fallback"
	"github.com/skillsenselab/asrkit/logger"
	"github.com/skillsenselab/asrkit/observability"
)

// Service recognizes audio through the configured engine chain and exports
// the resulting transcripts.
type Service struct {
	cfg        *config.Config
	registry   *asr.Registry
	recognizer *asr.Recognizer
	controller *fallback.Controller
	exporter   *export.Exporter
	log        *logger.Logger
}

// Option customizes a Service.
type Option func(*options)

type options struct {
	recognizerOpts []asr.RecognizerOption
	controllerOpts []fallback.Option
}

// WithRecognizerOptions forwards options (middleware, frame sizing) to the
// underlying recognizer.
func WithRecognizerOptions(opts ...asr.RecognizerOption) Option {
	return func(o *options) { o.recognizerOpts = append(o.recognizerOpts, opts...) }
}

// WithControllerOptions forwards options to the fallback controller.
func WithControllerOptions(opts ...fallback.Option) Option {
	return func(o *options) { o.controllerOpts = append(o.controllerOpts, opts...) }
}

// New builds a Service from configuration. Engine factories must already be
// registered in the registry; instances are created on Init.
func New(cfg *config.Config, registry *asr.Registry, opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	exporter, err := export.NewExporter(cfg.Output.Dir, cfg.Output.Formats)
	if err != nil {
		return nil, err
	}

	recognizerOpts := append([]asr.RecognizerOption{
		asr.WithPollInterval(cfg.Polling.Interval),
		asr.WithMaxWait(cfg.Polling.MaxWait),
		asr.WithCompleteOnly(cfg.Engine.CompleteOnly),
	}, o.recognizerOpts...)
	recognizer := asr.NewRecognizer(registry, recognizerOpts...)

	controller := fallback.NewController(recognizer, fallback.Config{
		Engines:        cfg.FallbackChain(),
		MaxAttempts:    cfg.Fallback.MaxAttempts,
		CircuitBreaker: cfg.Fallback.CircuitBreaker,
	}, o.controllerOpts...)

	return &Service{
		cfg:        cfg,
		registry:   registry,
		recognizer: recognizer,
		controller: controller,
		exporter:   exporter,
		log:        logger.Get("service"),
	}, nil
}

// Init instantiates every engine in the fallback chain with its configured
// settings and runs engine initialization where supported.
func (s *Service) Init(ctx context.Context) error {
	for _, name := range s.cfg.FallbackChain() {
		if _, ok := s.registry.Get(name); ok {
			continue
		}
		engine, err := s.registry.Create(name, s.cfg.EngineConfig(name))
		if err != nil {
			return err
		}
		if init, ok := engine.(asr.Initializable); ok {
			if err := init.Init(ctx); err != nil {
				return err
			}
		}
		s.registry.Set(name, engine)
	}
	return nil
}

// Close shuts down every instantiated engine that supports it.
func (s *Service) Close(ctx context.Context) error {
	var firstErr error
	for _, name := range s.cfg.FallbackChain() {
		engine, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		closer, ok := engine.(asr.Closeable)
		if !ok {
			continue
		}
		if err := closer.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RecognizeFile recognizes a local audio file through the fallback chain and
// exports the transcript. Export failures are logged, not surfaced.
func (s *Service) RecognizeFile(ctx context.Context, filePath, language string) (*asr.Transcript, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, errors.InvalidInput("audio file not found: " + filePath)
	}
	transcript, err := s.recognize(ctx, asr.Request{
		Source:   asr.FileSource(filePath),
		Language: s.language(language),
	})
	if err != nil {
		return nil, err
	}
	s.export(transcript, baseName(filePath))
	return transcript, nil
}

// RecognizeURL recognizes a publicly reachable audio URL through the
// fallback chain and exports the transcript.
func (s *Service) RecognizeURL(ctx context.Context, audioURL, language string) (*asr.Transcript, error) {
	parsed, err := url.Parse(audioURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.InvalidInput("not an absolute URL: " + audioURL)
	}
	transcript, err := s.recognize(ctx, asr.Request{
		Source:   asr.URLSource(audioURL),
		Language: s.language(language),
	})
	if err != nil {
		return nil, err
	}
	s.export(transcript, baseName(path.Base(parsed.Path)))
	return transcript, nil
}

// BatchResult is the per-input outcome of a batch recognition.
type BatchResult struct {
	Input      string
	Transcript *asr.Transcript
	Err        error
}

// RecognizeBatch recognizes many local files concurrently with a bounded
// worker pool. Results keep input order; one file's failure does not affect
// the others.
func (s *Service) RecognizeBatch(ctx context.Context, filePaths []string, language string) []BatchResult {
	results := make([]BatchResult, len(filePaths))
	jobs := make(chan int)

	workers := s.cfg.Batch.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(filePaths) {
		workers = len(filePaths)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				transcript, err := s.RecognizeFile(ctx, filePaths[i], language)
				results[i] = BatchResult{Input: filePaths[i], Transcript: transcript, Err: err}
			}
		}()
	}

	for i := range filePaths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Err == nil {
			succeeded++
		}
	}
	s.log.Info("batch recognition finished", map[string]interface{}{
		"total":     len(filePaths),
		"succeeded": succeeded,
		"failed":    len(filePaths) - succeeded,
	})
	return results
}

// CheckHealth reports availability of every engine in the fallback chain.
func (s *Service) CheckHealth(ctx context.Context) *observability.ServiceHealth {
	health := observability.NewServiceHealth(s.cfg.Name, s.cfg.Version)
	for _, name := range s.cfg.FallbackChain() {
		engine, ok := s.registry.Get(name)
		switch {
		case !ok:
			health.AddComponent(observability.Degraded(name, "engine not instantiated"))
		case !engine.IsAvailable(ctx):
			health.AddComponent(observability.Down(name, "engine backend unreachable"))
		default:
			health.AddComponent(observability.Up(name))
		}
	}
	return health
}

func (s *Service) recognize(ctx context.Context, req asr.Request) (*asr.Transcript, error) {
	return s.controller.Recognize(ctx, req)
}

func (s *Service) language(language string) string {
	if language != "" {
		return language
	}
	return s.cfg.Engine.Language
}

func (s *Service) export(transcript *asr.Transcript, name string) {
	if _, err := s.exporter.Export(transcript, name); err != nil {
		s.log.Warn("transcript export failed", map[string]interface{}{
			logger.FieldError: err.Error(),
			"base_name":       name,
		})
	}
}

// baseName strips the directory and extension from a file name.
func baseName(filePath string) string {
	base := filepath.Base(filePath)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == "/" {
		base = "transcript"
	}
	return base
}
