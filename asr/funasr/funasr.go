// Package funasr provides an async batch recognition engine over the
// DashScope transcription REST API. The engine accepts publicly reachable
// audio URLs only: tasks are submitted, polled, and their results fetched
// from a signed result URL.
package funasr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/skillsenselab/asrkit/asr"
	"github.com/skillsenselab/asrkit/errors"
	"github.com/skillsenselab/asrkit/logger"
)

// EngineName is the registered name for the FunASR engine.
const EngineName = "funasr"

const (
	defaultBaseURL = "https://dashscope.aliyuncs.com/api/v1"
	defaultModel   = "fun-asr"
	defaultTimeout = 30 * time.Second
)

var defaultLanguageHints = []string{"zh", "en"}

// Config holds configuration for the FunASR engine.
type Config struct {
	APIKey        string        `json:"api_key" yaml:"api_key"`
	BaseURL       string        `json:"base_url" yaml:"base_url"`
	Model         string        `json:"model" yaml:"model"`
	LanguageHints []string      `json:"language_hints,omitempty" yaml:"language_hints"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
}

// Engine submits async transcription tasks to DashScope.
type Engine struct {
	cfg    Config
	client *http.Client
	log    *logger.Logger
}

// NewEngine creates a FunASR engine.
func NewEngine(cfg Config) *Engine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if len(cfg.LanguageHints) == 0 {
		cfg.LanguageHints = defaultLanguageHints
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Engine{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger.Get("funasr"),
	}
}

// Factory returns an asr.Factory that creates FunASR engines from a generic
// config map.
func Factory() asr.Factory {
	return func(cfg map[string]any) (asr.Engine, error) {
		fc := Config{}
		if v, ok := cfg["api_key"].(string); ok {
			fc.APIKey = v
		}
		if v, ok := cfg["base_url"].(string); ok {
			fc.BaseURL = v
		}
		if v, ok := cfg["model"].(string); ok {
			fc.Model = v
		}
		switch v := cfg["language_hints"].(type) {
		case []string:
			fc.LanguageHints = v
		case []any:
			for _, h := range v {
				if s, ok := h.(string); ok {
					fc.LanguageHints = append(fc.LanguageHints, s)
				}
			}
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			fc.Timeout = v
		}
		if fc.APIKey == "" {
			return nil, errors.MissingField("api_key")
		}
		return NewEngine(fc), nil
	}
}

// Name returns the engine name.
func (e *Engine) Name() string { return EngineName }

// Capabilities reports URL recognition only.
func (e *Engine) Capabilities() asr.Capability { return asr.CapURL }

// IsAvailable reports whether the engine is configured with credentials.
func (e *Engine) IsAvailable(ctx context.Context) bool {
	return e.cfg.APIKey != ""
}

// Submit creates an async transcription task for the given audio URLs.
func (e *Engine) Submit(ctx context.Context, urls []string, language string) (*asr.TaskHandle, error) {
	hints := e.cfg.LanguageHints
	if language != "" {
		hints = append([]string{language}, hints...)
	}

	body, err := json.Marshal(submitRequest{
		Model:      e.cfg.Model,
		Input:      submitInput{FileURLs: urls},
		Parameters: submitParameters{LanguageHints: hints},
	})
	if err != nil {
		return nil, errors.Internal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.cfg.BaseURL+"/services/audio/asr/transcription", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Internal(err)
	}
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-DashScope-Async", "enable")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.ConnectionFailed(EngineName).WithCause(err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	var submitResp taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
		return nil, errors.RecognitionFailed(EngineName, "decode submit response: "+err.Error())
	}
	if submitResp.Output.TaskID == "" {
		return nil, errors.RecognitionFailed(EngineName, "submit response carried no task_id")
	}

	e.log.Debug("task submitted", map[string]interface{}{
		"task_id":     submitResp.Output.TaskID,
		"task_status": submitResp.Output.TaskStatus,
	})
	return asr.NewTaskHandle(submitResp.Output.TaskID), nil
}

// Poll reads the current task status.
func (e *Engine) Poll(ctx context.Context, taskID string) (*asr.PollResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		e.cfg.BaseURL+"/tasks/"+taskID, nil)
	if err != nil {
		return nil, errors.Internal(err)
	}
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.ConnectionFailed(EngineName).WithCause(err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	var pollResp taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&pollResp); err != nil {
		return nil, errors.RecognitionFailed(EngineName, "decode poll response: "+err.Error())
	}
	return pollResp.toPollResult(), nil
}

// Fetch downloads and parses the transcription result document.
func (e *Engine) Fetch(ctx context.Context, resultURL string) (*asr.Transcript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, errors.Internal(err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.ConnectionFailed(EngineName).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.RecognitionFailed(EngineName,
			fmt.Sprintf("result fetch returned status %d", resp.StatusCode))
	}

	var doc resultDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, errors.RecognitionFailed(EngineName, "decode result: "+err.Error())
	}
	return doc.toTranscript(), nil
}

// classifyStatus maps DashScope HTTP failures onto the error taxonomy.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.RateLimited(EngineName)
	case resp.StatusCode >= 500:
		return errors.ServiceUnavailable(EngineName)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.RecognitionFailed(EngineName,
			fmt.Sprintf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
	}
}
