package asr

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/skillsenselab/asrkit/audio"
	"github.com/skillsenselab/asrkit/errors"
)

// fakeFileEngine recognizes files synchronously and counts invocations.
type fakeFileEngine struct {
	name  string
	calls int
	out   *Transcript
	err   error
}

func (e *fakeFileEngine) Name() string                     { return e.name }
func (e *fakeFileEngine) Capabilities() Capability         { return CapFile }
func (e *fakeFileEngine) IsAvailable(context.Context) bool { return true }

func (e *fakeFileEngine) RecognizeFile(ctx context.Context, req Request) (*Transcript, error) {
	e.calls++
	return e.out, e.err
}

// fakeURLEngine scripts the submit/poll/fetch protocol and counts every
// backend invocation.
type fakeURLEngine struct {
	name    string
	submits int
	polls   int
	fetches int

	pollResults []PollResult // consumed one per poll; last repeats
	fetchOut    *Transcript
}

func (e *fakeURLEngine) Name() string                     { return e.name }
func (e *fakeURLEngine) Capabilities() Capability         { return CapURL }
func (e *fakeURLEngine) IsAvailable(context.Context) bool { return true }

func (e *fakeURLEngine) Submit(ctx context.Context, urls []string, language string) (*TaskHandle, error) {
	e.submits++
	return NewTaskHandle("task-1"), nil
}

func (e *fakeURLEngine) Poll(ctx context.Context, taskID string) (*PollResult, error) {
	idx := e.polls
	if idx >= len(e.pollResults) {
		idx = len(e.pollResults) - 1
	}
	e.polls++
	res := e.pollResults[idx]
	return &res, nil
}

func (e *fakeURLEngine) Fetch(ctx context.Context, resultURL string) (*Transcript, error) {
	e.fetches++
	return e.fetchOut, nil
}

func (e *fakeURLEngine) backendCalls() int { return e.submits + e.polls + e.fetches }

// fakeStreamEngine hands out a scripted session.
type fakeStreamEngine struct {
	name    string
	session *fakeSession
	opens   int
}

func (e *fakeStreamEngine) Name() string                     { return e.name }
func (e *fakeStreamEngine) Capabilities() Capability         { return CapStream }
func (e *fakeStreamEngine) IsAvailable(context.Context) bool { return true }

func (e *fakeStreamEngine) OpenSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	e.opens++
	return e.session, nil
}

// fakeSession replays scripted events and records teardown.
type fakeSession struct {
	mu       sync.Mutex
	events   chan Event
	sent     int
	sendDone bool
	closed   bool
}

func newFakeSession(events ...Event) *fakeSession {
	s := &fakeSession{events: make(chan Event, len(events)+1)}
	for _, ev := range events {
		s.events <- ev
	}
	if len(events) > 0 {
		last := events[len(events)-1]
		if last.Type == EventClosed || last.Type == EventError {
			close(s.events)
		}
	}
	return s
}

func (s *fakeSession) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	return nil
}

func (s *fakeSession) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendDone = true
	return nil
}

func (s *fakeSession) Events() <-chan Event { return s.events }

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// registryWith builds a registry holding pre-built engine instances.
func registryWith(t *testing.T, engines ...Engine) *Registry {
	t.Helper()
	reg := NewRegistry()
	for _, eng := range engines {
		e := eng
		err := reg.Register(e.Name(), Registration{
			Factory:      func(cfg map[string]any) (Engine, error) { return e, nil },
			Capabilities: e.Capabilities(),
		})
		if err != nil {
			t.Fatalf("register %s: %v", e.Name(), err)
		}
	}
	return reg
}

// testWAV writes a short 16kHz mono WAV and returns its path.
func testWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	pcm := &audio.PCM{Samples: make([]int16, 3200), SampleRate: 16000, Channels: 1}
	if err := audio.EncodeWAVFile(path, pcm); err != nil {
		t.Fatalf("write test WAV: %v", err)
	}
	return path
}

func TestRecognizeFileEngine(t *testing.T) {
	want := NewTranscript("local", "en", []Segment{{Start: 0, End: 1, Text: "hello"}})
	engine := &fakeFileEngine{name: "local", out: want}
	rec := NewRecognizer(registryWith(t, engine))

	got, err := rec.Recognize(context.Background(), Request{
		Source: FileSource("a.wav"),
		Engine: "local",
	})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if got != want {
		t.Error("expected the engine's transcript")
	}
	if engine.calls != 1 {
		t.Errorf("engine called %d times, want 1", engine.calls)
	}
}

func TestRecognizeURLOnlyEngineRejectsFile(t *testing.T) {
	engine := &fakeURLEngine{name: "cloud"}
	rec := NewRecognizer(registryWith(t, engine))

	_, err := rec.Recognize(context.Background(), Request{
		Source: FileSource("a.wav"),
		Engine: "cloud",
	})
	if !errors.HasCode(err, errors.ErrCodeUnsupportedInput) {
		t.Fatalf("error = %v, want UNSUPPORTED_INPUT", err)
	}
	if engine.backendCalls() != 0 {
		t.Errorf("expected zero backend calls, got %d", engine.backendCalls())
	}
}

func TestRecognizeFileOnlyEngineRejectsURL(t *testing.T) {
	engine := &fakeFileEngine{name: "local"}
	rec := NewRecognizer(registryWith(t, engine))

	_, err := rec.Recognize(context.Background(), Request{
		Source: URLSource("https://example.com/a.wav"),
		Engine: "local",
	})
	if !errors.HasCode(err, errors.ErrCodeUnsupportedInput) {
		t.Fatalf("error = %v, want UNSUPPORTED_INPUT", err)
	}
	if engine.calls != 0 {
		t.Errorf("expected zero backend calls, got %d", engine.calls)
	}
}

func TestRecognizeInvalidRequests(t *testing.T) {
	rec := NewRecognizer(registryWith(t, &fakeFileEngine{name: "local"}))

	tests := []struct {
		name string
		req  Request
		code errors.ErrorCode
	}{
		{"no engine", Request{Source: FileSource("a.wav")}, errors.ErrCodeMissingField},
		{"no source", Request{Engine: "local"}, errors.ErrCodeMissingField},
		{"unknown engine", Request{Source: FileSource("a.wav"), Engine: "ghost"}, errors.ErrCodeEngineNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rec.Recognize(context.Background(), tt.req)
			if !errors.HasCode(err, tt.code) {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestPollingSucceedsOnThirdPoll(t *testing.T) {
	want := NewTranscript("cloud", "zh", []Segment{{Start: 0, End: 2, Text: "你好"}})
	engine := &fakeURLEngine{
		name: "cloud",
		pollResults: []PollResult{
			{Status: TaskRunning},
			{Status: TaskRunning},
			{Status: TaskSucceeded, ResultURL: "https://results/task-1"},
		},
		fetchOut: want,
	}
	interval := 10 * time.Millisecond
	rec := NewRecognizer(registryWith(t, engine),
		WithPollInterval(interval),
		WithMaxWait(100*time.Millisecond),
	)

	start := time.Now()
	got, err := rec.Recognize(context.Background(), Request{
		Source: URLSource("https://example.com/a.wav"),
		Engine: "cloud",
	})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if got != want {
		t.Error("expected fetched transcript")
	}
	if engine.polls != 3 {
		t.Errorf("polls = %d, want 3", engine.polls)
	}
	if engine.fetches != 1 {
		t.Errorf("fetches = %d, want 1", engine.fetches)
	}
	if elapsed < 2*interval {
		t.Errorf("elapsed = %v, want at least two intervals (%v)", elapsed, 2*interval)
	}
}

func TestPollingTimesOut(t *testing.T) {
	engine := &fakeURLEngine{
		name:        "cloud",
		pollResults: []PollResult{{Status: TaskRunning}},
	}
	rec := NewRecognizer(registryWith(t, engine),
		WithPollInterval(10*time.Millisecond),
		WithMaxWait(25*time.Millisecond),
	)

	_, err := rec.Recognize(context.Background(), Request{
		Source: URLSource("https://example.com/a.wav"),
		Engine: "cloud",
	})
	if !errors.HasCode(err, errors.ErrCodeRecognitionTimeout) {
		t.Fatalf("error = %v, want RECOGNITION_TIMEOUT", err)
	}
	if engine.polls > 3 {
		t.Errorf("polls = %d, want at most 3", engine.polls)
	}
	if engine.fetches != 0 {
		t.Errorf("fetches = %d, want 0", engine.fetches)
	}
}

func TestPollingTaskFailure(t *testing.T) {
	engine := &fakeURLEngine{
		name: "cloud",
		pollResults: []PollResult{
			{Status: TaskRunning},
			{Status: TaskFailed, Message: "audio format rejected"},
		},
	}
	rec := NewRecognizer(registryWith(t, engine),
		WithPollInterval(time.Millisecond),
		WithMaxWait(time.Second),
	)

	_, err := rec.Recognize(context.Background(), Request{
		Source: URLSource("https://example.com/a.wav"),
		Engine: "cloud",
	})
	if !errors.HasCode(err, errors.ErrCodeRecognitionFailed) {
		t.Fatalf("error = %v, want RECOGNITION_FAILED", err)
	}
	appErr, _ := errors.AsAppError(err)
	if appErr.Details["provider_message"] != "audio format rejected" {
		t.Errorf("provider message not carried: %v", appErr.Details)
	}
}

func TestPollingCancellationStopsLocally(t *testing.T) {
	engine := &fakeURLEngine{
		name:        "cloud",
		pollResults: []PollResult{{Status: TaskRunning}},
	}
	rec := NewRecognizer(registryWith(t, engine),
		WithPollInterval(50*time.Millisecond),
		WithMaxWait(time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := rec.Recognize(ctx, Request{
		Source: URLSource("https://example.com/a.wav"),
		Engine: "cloud",
	})
	if err != context.Canceled {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if engine.polls != 1 {
		t.Errorf("polls = %d, want 1 (no polls after cancellation)", engine.polls)
	}
}

func TestStreamAccumulatesFinalsDropsPartials(t *testing.T) {
	session := newFakeSession(
		Event{Type: EventPartial, Segment: &Segment{Start: 0, End: 0.5, Text: "he"}},
		Event{Type: EventFinal, Segment: &Segment{Start: 0, End: 1, Text: "hello"}},
		Event{Type: EventPartial, Segment: &Segment{Start: 1, End: 1.2, Text: "wo"}},
		Event{Type: EventFinal, Segment: &Segment{Start: 1, End: 2, Text: "world"}},
		Event{Type: EventClosed},
	)
	engine := &fakeStreamEngine{name: "realtime", session: session}
	rec := NewRecognizer(registryWith(t, engine))

	got, err := rec.Recognize(context.Background(), Request{
		Source:   FileSource(testWAV(t)),
		Language: "en",
		Engine:   "realtime",
	})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if got.Text != "hello world" {
		t.Errorf("Text = %q, want %q", got.Text, "hello world")
	}
	if len(got.Segments) != 2 {
		t.Errorf("segments = %d, want 2 (partials dropped)", len(got.Segments))
	}
	if got.Incomplete {
		t.Error("clean session end should not be incomplete")
	}
	if !session.isClosed() {
		t.Error("session must be closed after recognition")
	}
}

func TestStreamMidFailureReturnsPartial(t *testing.T) {
	session := newFakeSession(
		Event{Type: EventFinal, Segment: &Segment{Start: 0, End: 1, Text: "hello"}},
		Event{Type: EventError, Err: errors.ConnectionFailed("realtime")},
	)
	engine := &fakeStreamEngine{name: "realtime", session: session}
	rec := NewRecognizer(registryWith(t, engine))

	got, err := rec.Recognize(context.Background(), Request{
		Source:   FileSource(testWAV(t)),
		Language: "en",
		Engine:   "realtime",
	})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if !got.Incomplete {
		t.Error("partial transcript must be tagged Incomplete")
	}
	if got.Text != "hello" {
		t.Errorf("Text = %q, want %q", got.Text, "hello")
	}
	if !session.isClosed() {
		t.Error("session must be closed after failure")
	}
}

func TestStreamMidFailureCompleteOnly(t *testing.T) {
	session := newFakeSession(
		Event{Type: EventFinal, Segment: &Segment{Start: 0, End: 1, Text: "hello"}},
		Event{Type: EventError, Err: errors.ConnectionFailed("realtime")},
	)
	engine := &fakeStreamEngine{name: "realtime", session: session}
	rec := NewRecognizer(registryWith(t, engine), WithCompleteOnly(true))

	_, err := rec.Recognize(context.Background(), Request{
		Source: FileSource(testWAV(t)),
		Engine: "realtime",
	})
	if !errors.HasCode(err, errors.ErrCodeConnectionFailed) {
		t.Fatalf("error = %v, want CONNECTION_FAILED surfaced in complete-only mode", err)
	}
}

func TestStreamFailureWithoutFinals(t *testing.T) {
	session := newFakeSession(
		Event{Type: EventPartial, Segment: &Segment{Start: 0, End: 0.5, Text: "he"}},
		Event{Type: EventError, Err: errors.ConnectionFailed("realtime")},
	)
	engine := &fakeStreamEngine{name: "realtime", session: session}
	rec := NewRecognizer(registryWith(t, engine))

	_, err := rec.Recognize(context.Background(), Request{
		Source: FileSource(testWAV(t)),
		Engine: "realtime",
	})
	if !errors.HasCode(err, errors.ErrCodeConnectionFailed) {
		t.Fatalf("error = %v, want CONNECTION_FAILED", err)
	}
}

func TestStreamCancellationClosesSession(t *testing.T) {
	// No terminal event: the receive path must exit on cancellation.
	session := newFakeSession()
	engine := &fakeStreamEngine{name: "realtime", session: session}
	rec := NewRecognizer(registryWith(t, engine))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := rec.Recognize(ctx, Request{
		Source: FileSource(testWAV(t)),
		Engine: "realtime",
	})
	if err != context.Canceled {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if !session.isClosed() {
		t.Error("cancellation must close the session")
	}
}

func TestStreamTimesOutWhenServerGoesSilent(t *testing.T) {
	// Session accepted but no events, no close frame: the wall-clock cap
	// must end the call, not a caller deadline.
	session := newFakeSession()
	engine := &fakeStreamEngine{name: "realtime", session: session}
	rec := NewRecognizer(registryWith(t, engine), WithMaxWait(50*time.Millisecond))

	start := time.Now()
	_, err := rec.Recognize(context.Background(), Request{
		Source: FileSource(testWAV(t)),
		Engine: "realtime",
	})
	elapsed := time.Since(start)

	if !errors.HasCode(err, errors.ErrCodeRecognitionTimeout) {
		t.Fatalf("error = %v, want RECOGNITION_TIMEOUT", err)
	}
	if elapsed > time.Second {
		t.Errorf("recognize returned after %s, want around the 50ms cap", elapsed)
	}
	if !session.isClosed() {
		t.Error("timeout must close the session")
	}
}

func TestStreamTimeoutAfterFinalsReturnsPartial(t *testing.T) {
	// One final arrives, then the server goes silent.
	seg := Segment{Start: 0, End: 1, Text: "hello"}
	session := newFakeSession(Event{Type: EventFinal, Segment: &seg})
	engine := &fakeStreamEngine{name: "realtime", session: session}
	rec := NewRecognizer(registryWith(t, engine), WithMaxWait(50*time.Millisecond))

	transcript, err := rec.Recognize(context.Background(), Request{
		Source: FileSource(testWAV(t)),
		Engine: "realtime",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !transcript.Incomplete {
		t.Error("transcript after a silent timeout must be marked incomplete")
	}
	if transcript.Text != "hello" {
		t.Errorf("Text = %q, want %q", transcript.Text, "hello")
	}
	if !session.isClosed() {
		t.Error("timeout must close the session")
	}
}

func TestRecognizeMiddlewareOrder(t *testing.T) {
	engine := &fakeFileEngine{
		name: "local",
		out:  NewTranscript("local", "en", nil),
	}

	var order []string
	tag := func(name string) Middleware {
		return func(next RecognizeFunc) RecognizeFunc {
			return func(ctx context.Context, req Request) (*Transcript, error) {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	rec := NewRecognizer(registryWith(t, engine), WithMiddleware(tag("outer"), tag("inner")))
	if _, err := rec.Recognize(context.Background(), Request{Source: FileSource("a.wav"), Engine: "local"}); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("middleware order = %v, want [outer inner]", order)
	}
}
