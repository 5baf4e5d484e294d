package asr

import (
	"context"
	"fmt"
	"time"

	"github.com/skillsenselab/asrkit/audio"
	"github.com/skillsenselab/asrkit/errors"
	"github.com/skillsenselab/asrkit/logger"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxWait      = 5 * time.Minute
	defaultFrameMs      = 100
	defaultSampleRate   = audio.SampleRate16kHz
)

// Recognizer is the recognition façade: it resolves the requested engine and
// dispatches the request by engine capability, normalizing every backend's
// output into a Transcript.
type Recognizer struct {
	registry     *Registry
	pollInterval time.Duration
	maxWait      time.Duration
	completeOnly bool
	frameMs      int
	sampleRate   int
	log          *logger.Logger
	handler      RecognizeFunc
}

// RecognizerOption configures a Recognizer.
type RecognizerOption func(*Recognizer)

// WithPollInterval sets the fixed delay between task status polls.
func WithPollInterval(d time.Duration) RecognizerOption {
	return func(r *Recognizer) { r.pollInterval = d }
}

// WithMaxWait sets the total wall-clock budget for a polled task.
func WithMaxWait(d time.Duration) RecognizerOption {
	return func(r *Recognizer) { r.maxWait = d }
}

// WithCompleteOnly makes mid-stream failures discard partial transcripts and
// surface the error instead of returning an Incomplete transcript.
func WithCompleteOnly(completeOnly bool) RecognizerOption {
	return func(r *Recognizer) { r.completeOnly = completeOnly }
}

// WithFrameDuration sets the streamed PCM frame length in milliseconds.
func WithFrameDuration(ms int) RecognizerOption {
	return func(r *Recognizer) { r.frameMs = ms }
}

// WithSampleRate sets the PCM sample rate streamed to stream engines.
func WithSampleRate(hz int) RecognizerOption {
	return func(r *Recognizer) { r.sampleRate = hz }
}

// WithRecognizerLogger sets the logger used by the façade.
func WithRecognizerLogger(log *logger.Logger) RecognizerOption {
	return func(r *Recognizer) { r.log = log }
}

// WithMiddleware wraps the recognize operation with middleware. The first
// middleware is outermost.
func WithMiddleware(mw ...Middleware) RecognizerOption {
	return func(r *Recognizer) { r.handler = Chain(mw...)(r.dispatch) }
}

// NewRecognizer creates a Recognizer over the given registry.
func NewRecognizer(registry *Registry, opts ...RecognizerOption) *Recognizer {
	r := &Recognizer{
		registry:     registry,
		pollInterval: defaultPollInterval,
		maxWait:      defaultMaxWait,
		frameMs:      defaultFrameMs,
		sampleRate:   defaultSampleRate,
		log:          logger.Get("asr"),
	}
	r.handler = r.dispatch
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recognize runs one recognition request through the configured middleware
// and capability dispatch.
func (r *Recognizer) Recognize(ctx context.Context, req Request) (*Transcript, error) {
	return r.handler(ctx, req)
}

// dispatch validates the request, resolves the engine, and selects the
// invocation mode by capability. Capability mismatches fail fast without any
// backend call.
func (r *Recognizer) dispatch(ctx context.Context, req Request) (*Transcript, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	engine, err := r.registry.Engine(req.Engine)
	if err != nil {
		return nil, err
	}
	caps := engine.Capabilities()

	if req.Source.IsFile() {
		switch {
		case caps.Has(CapFile):
			fileEngine, ok := engine.(FileEngine)
			if !ok {
				return nil, errors.Internal(fmt.Errorf("engine %s declares file capability but does not implement FileEngine", req.Engine))
			}
			return fileEngine.RecognizeFile(ctx, req)
		case caps.Has(CapStream):
			streamEngine, ok := engine.(StreamEngine)
			if !ok {
				return nil, errors.Internal(fmt.Errorf("engine %s declares stream capability but does not implement StreamEngine", req.Engine))
			}
			return r.streamFile(ctx, streamEngine, req)
		default:
			// URL-only engine. The façade never uploads implicitly; URL
			// acquisition belongs to the caller.
			return nil, errors.UnsupportedInput(req.Engine, "engine accepts URLs only; upload the file and pass its URL")
		}
	}

	// URL source.
	if !caps.Has(CapURL) {
		return nil, errors.UnsupportedInput(req.Engine, "engine does not accept URL input")
	}
	urlEngine, ok := engine.(URLEngine)
	if !ok {
		return nil, errors.Internal(fmt.Errorf("engine %s declares url capability but does not implement URLEngine", req.Engine))
	}
	return r.recognizeURL(ctx, urlEngine, req)
}

// streamFile streams a local file's PCM frames to a stream engine and
// accumulates final events into a transcript. One send goroutine and one
// receive path run against the session; teardown is guaranteed on every exit.
func (r *Recognizer) streamFile(ctx context.Context, engine StreamEngine, req Request) (*Transcript, error) {
	pcm, err := audio.DecodeWAVFile(req.Source.Path)
	if err != nil {
		return nil, errors.InvalidInput(fmt.Sprintf("cannot decode %s: %v", req.Source.Path, err))
	}
	pcm = pcm.ResampleTo(r.sampleRate)

	session, err := engine.OpenSession(ctx, SessionConfig{
		SampleRate: r.sampleRate,
		Format:     "pcm",
		Language:   req.Language,
	})
	if err != nil {
		return nil, err
	}

	// Send path. Closing the session unblocks a stuck Send, so the receive
	// path's teardown below is the exit signal for both directions.
	sendDone := make(chan error, 1)
	go func() {
		for _, frame := range pcm.Frames(r.frameMs) {
			select {
			case <-ctx.Done():
				sendDone <- ctx.Err()
				return
			default:
			}
			if err := session.Send(audio.Int16ToBytes(frame)); err != nil {
				sendDone <- err
				return
			}
		}
		sendDone <- session.CloseSend()
	}()

	defer func() {
		session.Close()
		if serr := <-sendDone; serr != nil && serr != ctx.Err() {
			r.log.Debug("stream send path ended with error", logger.Fields(
				logger.FieldEngine, req.Engine,
				logger.FieldError, serr.Error(),
			))
		}
	}()

	// The wall-clock budget covers the whole session: a server that accepts
	// the stream and then goes silent must not hold the call open.
	deadline := time.NewTimer(r.maxWait)
	defer deadline.Stop()
	start := time.Now()

	// Receive path: accumulate finals, drop partials.
	var segments []Segment
	for {
		select {
		case <-ctx.Done():
			// Cancellation discards buffered partial results.
			return nil, ctx.Err()
		case <-deadline.C:
			r.log.Warn("stream wait exhausted", logger.Fields(
				logger.FieldEngine, req.Engine,
				logger.FieldDuration, time.Since(start).Milliseconds(),
			))
			return r.streamFailure(req, segments, errors.RecognitionTimeout(req.Engine, time.Since(start)))
		case ev, ok := <-session.Events():
			if !ok {
				return r.assembleStream(req, segments)
			}
			switch ev.Type {
			case EventFinal:
				if ev.Segment != nil {
					segments = append(segments, *ev.Segment)
				}
			case EventPartial:
				// Only finals make it into the transcript.
			case EventClosed:
				return r.assembleStream(req, segments)
			case EventError:
				return r.streamFailure(req, segments, ev.Err)
			}
		}
	}
}

// assembleStream builds the final transcript from accumulated segments.
func (r *Recognizer) assembleStream(req Request, segments []Segment) (*Transcript, error) {
	t := NewTranscript(req.Engine, req.Language, segments)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// streamFailure resolves a mid-stream failure: with finals already received
// the partial transcript is returned tagged Incomplete, unless complete-only
// mode discards it and surfaces the error.
func (r *Recognizer) streamFailure(req Request, segments []Segment, cause error) (*Transcript, error) {
	err := cause
	if !errors.IsAppError(err) {
		msg := "stream ended unexpectedly"
		if err != nil {
			msg = err.Error()
		}
		err = errors.SessionClosed(req.Engine, msg)
	}

	if len(segments) == 0 || r.completeOnly {
		return nil, err
	}

	r.log.Warn("returning partial transcript after mid-stream failure", logger.Fields(
		logger.FieldEngine, req.Engine,
		"segments", len(segments),
		logger.FieldError, err.Error(),
	))
	t, aerr := r.assembleStream(req, segments)
	if aerr != nil {
		return nil, aerr
	}
	t.Incomplete = true
	return t, nil
}

// recognizeURL submits the URL and drives the polling protocol to a
// terminal state.
func (r *Recognizer) recognizeURL(ctx context.Context, engine URLEngine, req Request) (*Transcript, error) {
	handle, err := engine.Submit(ctx, []string{req.Source.URL}, req.Language)
	if err != nil {
		return nil, err
	}

	r.log.Debug("task submitted", logger.Fields(
		logger.FieldEngine, req.Engine,
		logger.FieldTaskID, handle.ID,
	))
	return r.pollTask(ctx, engine, req, handle)
}
