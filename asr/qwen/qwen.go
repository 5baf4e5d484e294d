// Package qwen provides a realtime streaming recognition engine over the
// DashScope Omni realtime WebSocket protocol.
package qwen

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/skillsenselab/asrkit/asr"
	"github.com/skillsenselab/asrkit/errors"
	"github.com/skillsenselab/asrkit/logger"
)

// EngineName is the registered name for the Qwen realtime engine.
const EngineName = "qwen"

const (
	defaultURL   = "wss://dashscope.aliyuncs.com/api-ws/v1/realtime"
	defaultModel = "qwen3-asr-flash-realtime"

	defaultHandshakeTimeout = 10 * time.Second

	// Server VAD tuning used for every session.
	vadThreshold         = 0.2
	vadSilenceDurationMs = 800
)

// Config holds configuration for the Qwen realtime engine.
type Config struct {
	APIKey           string        `json:"api_key" yaml:"api_key"`
	URL              string        `json:"url" yaml:"url"`
	Model            string        `json:"model" yaml:"model"`
	HandshakeTimeout time.Duration `json:"handshake_timeout" yaml:"handshake_timeout"`
}

// Engine opens realtime recognition sessions against the DashScope
// realtime WebSocket endpoint.
type Engine struct {
	cfg Config
	log *logger.Logger
}

// NewEngine creates a Qwen realtime engine.
func NewEngine(cfg Config) *Engine {
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Engine{
		cfg: cfg,
		log: logger.Get("qwen"),
	}
}

// Factory returns an asr.Factory that creates Qwen engines from a generic
// config map.
func Factory() asr.Factory {
	return func(cfg map[string]any) (asr.Engine, error) {
		qc := Config{}
		if v, ok := cfg["api_key"].(string); ok {
			qc.APIKey = v
		}
		if v, ok := cfg["url"].(string); ok {
			qc.URL = v
		}
		if v, ok := cfg["model"].(string); ok {
			qc.Model = v
		}
		if v, ok := cfg["handshake_timeout"].(time.Duration); ok {
			qc.HandshakeTimeout = v
		}
		if qc.APIKey == "" {
			return nil, errors.MissingField("api_key")
		}
		return NewEngine(qc), nil
	}
}

// Name returns the engine name.
func (e *Engine) Name() string { return EngineName }

// Capabilities reports streaming recognition only.
func (e *Engine) Capabilities() asr.Capability { return asr.CapStream }

// IsAvailable reports whether the engine is configured with credentials.
func (e *Engine) IsAvailable(ctx context.Context) bool {
	return e.cfg.APIKey != ""
}

// OpenSession dials the realtime endpoint and negotiates the session
// parameters. The negotiated format, sample rate, and VAD mode are immutable
// for the lifetime of the session.
func (e *Engine) OpenSession(ctx context.Context, cfg asr.SessionConfig) (asr.Session, error) {
	dialer := websocket.Dialer{HandshakeTimeout: e.cfg.HandshakeTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := dialer.DialContext(ctx, e.cfg.URL+"?model="+e.cfg.Model, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return nil, errors.RateLimited(EngineName)
		}
		return nil, errors.ConnectionFailed(EngineName).WithCause(err)
	}

	update := clientEvent{
		EventID: "event_" + uuid.NewString(),
		Type:    "session.update",
		Session: &sessionSettings{
			Modalities:       []string{"text"},
			InputAudioFormat: cfg.Format,
			SampleRate:       cfg.SampleRate,
			InputAudioTranscription: &transcriptionSettings{
				Language: cfg.Language,
			},
		},
	}
	if !cfg.DisableVAD {
		update.Session.TurnDetection = &turnDetection{
			Type:              "server_vad",
			Threshold:         vadThreshold,
			SilenceDurationMs: vadSilenceDurationMs,
		}
	}
	if err := conn.WriteJSON(update); err != nil {
		conn.Close()
		return nil, errors.ConnectionFailed(EngineName).WithCause(err)
	}

	s := &session{
		conn:       conn,
		disableVAD: cfg.DisableVAD,
		events:     make(chan asr.Event, eventBuffer),
		done:       make(chan struct{}),
		log:        e.log,
	}
	go s.readLoop()
	return s, nil
}

// --- wire types ---

type clientEvent struct {
	EventID string           `json:"event_id"`
	Type    string           `json:"type"`
	Audio   string           `json:"audio,omitempty"`
	Session *sessionSettings `json:"session,omitempty"`
}

type sessionSettings struct {
	Modalities              []string               `json:"modalities"`
	InputAudioFormat        string                 `json:"input_audio_format"`
	SampleRate              int                    `json:"sample_rate"`
	InputAudioTranscription *transcriptionSettings `json:"input_audio_transcription"`
	TurnDetection           *turnDetection         `json:"turn_detection"`
}

type transcriptionSettings struct {
	Language string `json:"language"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

type serverEvent struct {
	EventID    string       `json:"event_id"`
	Type       string       `json:"type"`
	Transcript string       `json:"transcript"`
	Stash      string       `json:"stash"`
	Error      *serverError `json:"error"`
}

type serverError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// base64Frame encodes one PCM frame for an append event.
func base64Frame(frame []byte) string {
	return base64.StdEncoding.EncodeToString(frame)
}
