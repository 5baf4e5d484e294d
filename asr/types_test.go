package asr

import (
	"testing"

	"github.com/skillsenselab/asrkit/errors"
)

func TestTranscriptValidate(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
		wantErr  bool
	}{
		{
			name: "ordered non-overlapping",
			segments: []Segment{
				{Start: 0, End: 1.5, Text: "hello"},
				{Start: 1.5, End: 3, Text: "world"},
				{Start: 4, End: 5, Text: "again"},
			},
		},
		{
			name:     "empty",
			segments: nil,
		},
		{
			name: "single segment",
			segments: []Segment{
				{Start: 0.5, End: 2, Text: "only"},
			},
		},
		{
			name: "overlapping segments",
			segments: []Segment{
				{Start: 0, End: 2, Text: "a"},
				{Start: 1.5, End: 3, Text: "b"},
			},
			wantErr: true,
		},
		{
			name: "segment ends before start",
			segments: []Segment{
				{Start: 2, End: 1, Text: "backwards"},
			},
			wantErr: true,
		},
		{
			name: "out of order",
			segments: []Segment{
				{Start: 3, End: 4, Text: "late"},
				{Start: 0, End: 1, Text: "early"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &Transcript{Segments: tt.segments}
			err := tr.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil && !errors.IsValidation(err) {
				t.Errorf("ordering violation should classify as validation, got %v", err)
			}
		})
	}
}

func TestJoinSegments(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 1, Text: "你好"},
		{Start: 1, End: 2, Text: "世界"},
	}
	english := []Segment{
		{Start: 0, End: 1, Text: "hello"},
		{Start: 1, End: 2, Text: "world"},
	}

	tests := []struct {
		name     string
		segments []Segment
		language string
		want     string
	}{
		{"chinese unspaced", segments, "zh", "你好世界"},
		{"chinese with region", segments, "zh-CN", "你好世界"},
		{"japanese unspaced", segments, "ja", "你好世界"},
		{"english spaced", english, "en", "hello world"},
		{"unknown language spaced", english, "de", "hello world"},
		{"empty language spaced", english, "", "hello world"},
		{"blank segments skipped", []Segment{{Text: "a"}, {Text: "  "}, {Text: "b"}}, "en", "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinSegments(tt.segments, tt.language); got != tt.want {
				t.Errorf("JoinSegments() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewTranscript(t *testing.T) {
	// Out-of-order provider output is normalized by start time.
	segments := []Segment{
		{Start: 2, End: 3, Text: "world"},
		{Start: 0, End: 1.5, Text: "hello"},
	}

	tr := NewTranscript("whisper", "en", segments)
	if tr.Text != "hello world" {
		t.Errorf("Text = %q, want %q", tr.Text, "hello world")
	}
	if tr.Segments[0].Start != 0 || tr.Segments[1].Start != 2 {
		t.Errorf("segments not sorted: %+v", tr.Segments)
	}
	if tr.Duration != 3 {
		t.Errorf("Duration = %f, want 3", tr.Duration)
	}
	if tr.Engine != "whisper" {
		t.Errorf("Engine = %q, want whisper", tr.Engine)
	}
	if err := tr.Validate(); err != nil {
		t.Errorf("normalized transcript should validate: %v", err)
	}
	if tr.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		wantCode errors.ErrorCode
	}{
		{"valid file request", Request{Source: FileSource("a.wav"), Engine: "whisper"}, ""},
		{"valid url request", Request{Source: URLSource("https://x/a.wav"), Engine: "funasr"}, ""},
		{"missing engine", Request{Source: FileSource("a.wav")}, errors.ErrCodeMissingField},
		{"missing source", Request{Engine: "whisper"}, errors.ErrCodeMissingField},
		{"both path and url", Request{Source: Source{Path: "a.wav", URL: "https://x"}, Engine: "whisper"}, errors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.HasCode(err, tt.wantCode) {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestTaskHandleAdvance(t *testing.T) {
	t.Run("forward path", func(t *testing.T) {
		h := NewTaskHandle("task-1")
		if h.Status != TaskSubmitted {
			t.Fatalf("initial status = %s, want submitted", h.Status)
		}
		if err := h.Advance(TaskRunning); err != nil {
			t.Fatalf("submitted -> running: %v", err)
		}
		if err := h.Advance(TaskSucceeded); err != nil {
			t.Fatalf("running -> succeeded: %v", err)
		}
		if !h.Status.Terminal() {
			t.Error("succeeded should be terminal")
		}
	})

	t.Run("skip running", func(t *testing.T) {
		h := NewTaskHandle("task-2")
		if err := h.Advance(TaskFailed); err != nil {
			t.Fatalf("submitted -> failed: %v", err)
		}
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		h := NewTaskHandle("task-3")
		h.Advance(TaskRunning)
		if err := h.Advance(TaskRunning); err != nil {
			t.Errorf("running -> running should be a no-op, got %v", err)
		}
	})

	t.Run("backward transitions rejected", func(t *testing.T) {
		h := NewTaskHandle("task-4")
		h.Advance(TaskRunning)
		if err := h.Advance(TaskSubmitted); err == nil {
			t.Error("running -> submitted should fail")
		}
	})

	t.Run("terminal states are final", func(t *testing.T) {
		h := NewTaskHandle("task-5")
		h.Advance(TaskRunning)
		h.Advance(TaskTimedOut)
		if err := h.Advance(TaskSucceeded); err == nil {
			t.Error("timed_out -> succeeded should fail")
		}
		if err := h.Advance(TaskRunning); err == nil {
			t.Error("timed_out -> running should fail")
		}
	})
}

func TestCapabilityString(t *testing.T) {
	tests := []struct {
		caps Capability
		want string
	}{
		{CapFile, "file"},
		{CapURL, "url"},
		{CapStream, "stream"},
		{CapFile | CapStream, "file|stream"},
		{CapFile | CapURL | CapStream, "file|url|stream"},
		{0, "none"},
	}
	for _, tt := range tests {
		if got := tt.caps.String(); got != tt.want {
			t.Errorf("Capability(%b).String() = %q, want %q", tt.caps, got, tt.want)
		}
	}
}

func TestCapabilityHas(t *testing.T) {
	caps := CapFile | CapStream
	if !caps.Has(CapFile) || !caps.Has(CapStream) {
		t.Error("expected file and stream capabilities")
	}
	if caps.Has(CapURL) {
		t.Error("did not expect url capability")
	}
	if !caps.Has(CapFile | CapStream) {
		t.Error("Has should accept combined masks")
	}
}
