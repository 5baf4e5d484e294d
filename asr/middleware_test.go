package asr

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/skillsenselab/asrkit/errors"
	"github.com/skillsenselab/asrkit/logger"
	"github.com/skillsenselab/asrkit/observability"
)

func okHandler(transcript *Transcript) RecognizeFunc {
	return func(ctx context.Context, req Request) (*Transcript, error) {
		return transcript, nil
	}
}

func failHandler(err error) RecognizeFunc {
	return func(ctx context.Context, req Request) (*Transcript, error) {
		return nil, err
	}
}

func TestChainComposesOutermostFirst(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next RecognizeFunc) RecognizeFunc {
			return func(ctx context.Context, req Request) (*Transcript, error) {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	fn := Chain(tag("a"), tag("b"), tag("c"))(okHandler(nil))
	if _, err := fn(context.Background(), Request{}); err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("order = %v, want [a b c]", order)
	}
}

func TestChainEmptyIsIdentity(t *testing.T) {
	want := NewTranscript("x", "en", nil)
	got, err := Chain()(okHandler(want))(context.Background(), Request{})
	if err != nil || got != want {
		t.Errorf("empty chain altered the handler: %v, %v", got, err)
	}
}

func TestWithLoggingPassesThrough(t *testing.T) {
	log := logger.Get("middleware-test")
	want := NewTranscript("local", "en", []Segment{{Start: 0, End: 1, Text: "hi"}})

	got, err := WithLogging(log)(okHandler(want))(context.Background(), Request{Engine: "local", Language: "en"})
	if err != nil || got != want {
		t.Fatalf("logging middleware altered result: %v, %v", got, err)
	}

	wantErr := errors.ConnectionFailed("local")
	_, err = WithLogging(log)(failHandler(wantErr))(context.Background(), Request{Engine: "local"})
	if err != wantErr {
		t.Errorf("logging middleware altered error: %v", err)
	}
}

func TestWithMetricsPassesThrough(t *testing.T) {
	metrics, err := observability.NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	want := NewTranscript("local", "en", nil)
	got, err := WithMetrics(metrics)(okHandler(want))(context.Background(), Request{
		Source: URLSource("https://example.com/a.wav"),
		Engine: "local",
	})
	if err != nil || got != want {
		t.Fatalf("metrics middleware altered result: %v, %v", got, err)
	}

	wantErr := errors.RecognitionFailed("local", "bad audio")
	_, err = WithMetrics(metrics)(failHandler(wantErr))(context.Background(), Request{
		Source: FileSource("a.wav"),
		Engine: "local",
	})
	if err != wantErr {
		t.Errorf("metrics middleware altered error: %v", err)
	}
}

func TestWithTracingPassesThrough(t *testing.T) {
	want := NewTranscript("local", "zh", nil)
	got, err := WithTracing("asr-test")(okHandler(want))(context.Background(), Request{
		Engine:   "local",
		Language: "zh",
	})
	if err != nil || got != want {
		t.Fatalf("tracing middleware altered result: %v, %v", got, err)
	}
}
