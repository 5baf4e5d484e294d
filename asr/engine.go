package asr

import (
	"context"
	"strings"
)

// Capability declares the input modes an engine supports.
type Capability uint8

const (
	// CapFile marks engines that recognize a local audio file directly.
	CapFile Capability = 1 << iota
	// CapURL marks engines that accept publicly reachable URLs via
	// asynchronous submission.
	CapURL
	// CapStream marks engines that consume streamed PCM frames over a
	// persistent connection.
	CapStream
)

// Has reports whether c includes all capabilities in other.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

// String returns a readable capability list, e.g. "file|stream".
func (c Capability) String() string {
	var parts []string
	if c.Has(CapFile) {
		parts = append(parts, "file")
	}
	if c.Has(CapURL) {
		parts = append(parts, "url")
	}
	if c.Has(CapStream) {
		parts = append(parts, "stream")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Engine is the base interface all recognition engines implement.
type Engine interface {
	// Name returns the engine's unique name.
	Name() string
	// Capabilities returns the input modes this engine supports.
	Capabilities() Capability
	// IsAvailable checks if the engine is ready to handle requests.
	IsAvailable(ctx context.Context) bool
}

// FileEngine recognizes a local audio file synchronously.
type FileEngine interface {
	Engine
	// RecognizeFile runs recognition over the file referenced by the request.
	RecognizeFile(ctx context.Context, req Request) (*Transcript, error)
}

// EventType tags a streaming session event.
type EventType string

const (
	// EventPartial carries an interim hypothesis that may still change.
	EventPartial EventType = "partial"
	// EventFinal carries a finalized segment.
	EventFinal EventType = "final"
	// EventClosed signals the server ended the session normally.
	EventClosed EventType = "closed"
	// EventError signals the session failed.
	EventError EventType = "error"
)

// Event is one tagged message from a streaming session.
type Event struct {
	Type    EventType
	Segment *Segment
	Err     error
}

// SessionConfig negotiates a streaming session. It is fixed at session open
// and immutable for the session's lifetime.
type SessionConfig struct {
	// SampleRate is the PCM sample rate in Hz (8000 or 16000).
	SampleRate int
	// Format is the audio frame format (e.g. "pcm").
	Format string
	// Language is the expected language hint.
	Language string
	// DisableVAD turns off server-side voice activity detection; the client
	// must then commit the audio buffer explicitly on CloseSend.
	DisableVAD bool
}

// Session is one live streaming recognition connection. Exactly one sender
// and one receiver may use it concurrently; Close tears down the connection
// and unblocks both.
type Session interface {
	// Send writes one PCM frame to the server.
	Send(frame []byte) error
	// CloseSend signals end of audio input.
	CloseSend() error
	// Events returns the server event stream. The channel is closed after a
	// terminal event (EventClosed or EventError) is delivered.
	Events() <-chan Event
	// Close tears down the connection. Safe to call multiple times.
	Close() error
}

// StreamEngine recognizes audio streamed over a persistent connection with
// server-driven utterance segmentation.
type StreamEngine interface {
	Engine
	// OpenSession negotiates and opens a streaming session.
	OpenSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

// PollResult is one observation of an asynchronous task's state.
type PollResult struct {
	// Status is the provider-reported task state.
	Status TaskStatus
	// ResultURL locates the result payload once the task succeeded.
	ResultURL string
	// Message carries the provider's error detail when the task failed.
	Message string
}

// URLEngine recognizes audio referenced by publicly reachable URLs through
// an asynchronous submit/poll/fetch protocol.
type URLEngine interface {
	Engine
	// Submit starts a recognition task for the given URLs.
	Submit(ctx context.Context, urls []string, language string) (*TaskHandle, error)
	// Poll queries the task's current state.
	Poll(ctx context.Context, taskID string) (*PollResult, error)
	// Fetch retrieves and parses the result payload.
	Fetch(ctx context.Context, resultURL string) (*Transcript, error)
}

// Initializable is optionally implemented by engines that need setup before
// handling requests (e.g., load a model, validate credentials).
type Initializable interface {
	Init(ctx context.Context) error
}

// Closeable is optionally implemented by engines that hold resources
// requiring explicit cleanup (e.g., a loaded model, an open connection).
type Closeable interface {
	Close(ctx context.Context) error
}

// Factory creates an engine instance from configuration.
type Factory func(cfg map[string]any) (Engine, error)
