// Package whispercpp provides a local file recognition engine backed by the
// whisper.cpp Go bindings. The model is loaded once and reused; whisper.cpp
// contexts are not safe for concurrent use, so recognition calls on one
// engine instance are serialized.
package whispercpp

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/skillsenselab/asrkit/asr"
	"github.com/skillsenselab/asrkit/audio"
	"github.com/skillsenselab/asrkit/errors"
	"github.com/skillsenselab/asrkit/logger"
)

// EngineName is the registered name for the whisper.cpp engine.
const EngineName = "whisper"

const defaultLanguage = "auto"

// Config holds configuration for the whisper.cpp engine.
type Config struct {
	ModelPath string `json:"model_path" yaml:"model_path"`
	Language  string `json:"language,omitempty" yaml:"language"`
	Threads   uint   `json:"threads,omitempty" yaml:"threads"`
}

// Engine recognizes local audio files with a whisper.cpp model.
type Engine struct {
	cfg Config
	log *logger.Logger

	mu    sync.Mutex
	model whisper.Model
}

// NewEngine creates a whisper.cpp engine. The model is loaded lazily on the
// first recognition unless Init is called first.
func NewEngine(cfg Config) *Engine {
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}
	return &Engine{
		cfg: cfg,
		log: logger.Get("whispercpp"),
	}
}

// Factory returns an asr.Factory that creates whisper.cpp engines from a
// generic config map.
func Factory() asr.Factory {
	return func(cfg map[string]any) (asr.Engine, error) {
		wc := Config{}
		if v, ok := cfg["model_path"].(string); ok {
			wc.ModelPath = v
		}
		if v, ok := cfg["language"].(string); ok {
			wc.Language = v
		}
		switch v := cfg["threads"].(type) {
		case int:
			wc.Threads = uint(v)
		case uint:
			wc.Threads = v
		case float64:
			wc.Threads = uint(v)
		}
		if wc.ModelPath == "" {
			return nil, errors.MissingField("model_path")
		}
		return NewEngine(wc), nil
	}
}

// Name returns the engine name.
func (e *Engine) Name() string { return EngineName }

// Capabilities reports local file recognition only.
func (e *Engine) Capabilities() asr.Capability { return asr.CapFile }

// IsAvailable reports whether the model is loaded or loadable.
func (e *Engine) IsAvailable(ctx context.Context) bool {
	e.mu.Lock()
	loaded := e.model != nil
	e.mu.Unlock()
	if loaded {
		return true
	}
	_, err := os.Stat(e.cfg.ModelPath)
	return err == nil
}

// Init loads the whisper model from disk.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadLocked()
}

// Close releases the model.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	return err
}

func (e *Engine) loadLocked() error {
	if e.model != nil {
		return nil
	}
	e.log.Info("loading whisper model", map[string]interface{}{
		"model_path": e.cfg.ModelPath,
	})
	model, err := whisper.New(e.cfg.ModelPath)
	if err != nil {
		return errors.New(errors.ErrCodeServiceUnavailable, "load whisper model: "+err.Error()).
			WithCause(err).WithDetail("model_path", e.cfg.ModelPath)
	}
	e.model = model
	return nil
}

// RecognizeFile transcribes a local WAV file.
func (e *Engine) RecognizeFile(ctx context.Context, req asr.Request) (*asr.Transcript, error) {
	pcm, err := audio.DecodeWAVFile(req.Source.Path)
	if err != nil {
		return nil, errors.InvalidInput("decode audio: " + err.Error())
	}
	samples := pcm.ResampleTo(audio.SampleRate16kHz).Float32()

	language := e.cfg.Language
	if req.Language != "" {
		language = req.Language
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.loadLocked(); err != nil {
		return nil, err
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return nil, errors.RecognitionFailed(EngineName, "create context: "+err.Error())
	}
	if language != "" {
		if err := wctx.SetLanguage(language); err != nil {
			e.log.Warn("language not supported by model", map[string]interface{}{
				logger.FieldLanguage: language,
				logger.FieldError:    err.Error(),
			})
		}
	}
	if e.cfg.Threads > 0 {
		wctx.SetThreads(e.cfg.Threads)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, errors.RecognitionFailed(EngineName, "process: "+err.Error())
	}

	var segments []asr.Segment
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.RecognitionFailed(EngineName, "read segment: "+err.Error())
		}
		segments = append(segments, asr.Segment{
			Start: seg.Start.Seconds(),
			End:   seg.End.Seconds(),
			Text:  strings.TrimSpace(seg.Text),
		})
	}

	return asr.NewTranscript(EngineName, language, segments), nil
}
