package asr

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/skillsenselab/asrkit/errors"
)

// Segment represents a time-aligned portion of a transcript.
type Segment struct {
	// Start is the segment start time in seconds.
	Start float64 `json:"start"`
	// End is the segment end time in seconds.
	End float64 `json:"end"`
	// Text is the transcribed text for this segment.
	Text string `json:"text"`
	// Confidence is the recognition confidence in [0, 1], if reported.
	Confidence float64 `json:"confidence,omitempty"`
}

// Transcript holds the normalized result of a recognition.
type Transcript struct {
	// Text is the full transcript, segment texts joined per the declared
	// language's join rule.
	Text string `json:"text"`
	// Language is the detected or declared language.
	Language string `json:"language,omitempty"`
	// Duration is the audio duration in seconds.
	Duration float64 `json:"duration,omitempty"`
	// Segments contains time-aligned transcript segments in time order.
	Segments []Segment `json:"segments,omitempty"`
	// Engine names the engine that produced this transcript.
	Engine string `json:"engine,omitempty"`
	// Incomplete marks a transcript cut short by a mid-stream failure after
	// final segments were already received.
	Incomplete bool `json:"incomplete,omitempty"`
	// CreatedAt is when the transcript was assembled.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the segment ordering invariant: segments must be
// time-ordered and non-overlapping.
func (t *Transcript) Validate() error {
	for i, seg := range t.Segments {
		if seg.End < seg.Start {
			return errors.InvalidInput(fmt.Sprintf("segment %d ends (%.3f) before it starts (%.3f)", i, seg.End, seg.Start))
		}
		if i > 0 && seg.Start < t.Segments[i-1].End {
			return errors.InvalidInput(fmt.Sprintf("segment %d starts (%.3f) before segment %d ends (%.3f)", i, seg.Start, i-1, t.Segments[i-1].End))
		}
	}
	return nil
}

// unspacedLanguages declares languages whose transcripts join without spaces.
var unspacedLanguages = map[string]bool{
	"zh":  true,
	"ja":  true,
	"ko":  true,
	"yue": true,
	"th":  true,
}

// JoinSegments concatenates segment texts in time order using the declared
// language's join rule. The decision follows the declared language only,
// never heuristics over the text.
func JoinSegments(segments []Segment, language string) string {
	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if s := strings.TrimSpace(seg.Text); s != "" {
			texts = append(texts, s)
		}
	}

	base := language
	if idx := strings.IndexAny(language, "-_"); idx != -1 {
		base = language[:idx]
	}
	if unspacedLanguages[strings.ToLower(base)] {
		return strings.Join(texts, "")
	}
	return strings.Join(texts, " ")
}

// NewTranscript assembles a transcript from segments: sorts them by start
// time, joins text per the language rule, and derives the duration from the
// last segment when not provided.
func NewTranscript(engine, language string, segments []Segment) *Transcript {
	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	t := &Transcript{
		Text:      JoinSegments(sorted, language),
		Language:  language,
		Segments:  sorted,
		Engine:    engine,
		CreatedAt: time.Now(),
	}
	if len(sorted) > 0 {
		t.Duration = sorted[len(sorted)-1].End
	}
	return t
}

// Source references recognition input: a local file path or a remote URL.
// Exactly one must be set.
type Source struct {
	Path string `json:"path,omitempty"`
	URL  string `json:"url,omitempty"`
}

// IsFile reports whether the source references a local file.
func (s Source) IsFile() bool { return s.Path != "" }

// IsURL reports whether the source references a remote URL.
func (s Source) IsURL() bool { return s.URL != "" }

// FileSource creates a local file source.
func FileSource(path string) Source { return Source{Path: path} }

// URLSource creates a remote URL source.
func URLSource(url string) Source { return Source{URL: url} }

// Request holds the parameters for one recognition call. It is created per
// invocation and never mutated by the façade.
type Request struct {
	// Source is the audio input reference.
	Source Source `json:"source"`
	// Language is the expected language of the audio (e.g. "zh", "en").
	Language string `json:"language,omitempty"`
	// Engine names the engine to dispatch to.
	Engine string `json:"engine"`
}

// Validate checks the request's structural invariants.
func (r Request) Validate() error {
	if r.Engine == "" {
		return errors.MissingField("engine")
	}
	switch {
	case r.Source.IsFile() && r.Source.IsURL():
		return errors.InvalidInput("source must reference a file path or a URL, not both")
	case !r.Source.IsFile() && !r.Source.IsURL():
		return errors.MissingField("source")
	}
	return nil
}

// TaskStatus is the lifecycle state of an asynchronous recognition task.
type TaskStatus string

const (
	TaskSubmitted TaskStatus = "submitted"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskTimedOut  TaskStatus = "timed_out"
)

// statusRank orders task states; transitions may only move to a higher rank.
var statusRank = map[TaskStatus]int{
	TaskSubmitted: 0,
	TaskRunning:   1,
	TaskSucceeded: 2,
	TaskFailed:    2,
	TaskTimedOut:  2,
}

// Terminal reports whether the status is a terminal state.
func (s TaskStatus) Terminal() bool {
	return statusRank[s] == 2
}

// TaskHandle references an asynchronous server-side recognition job. It is
// owned by the polling loop that created it and discarded once terminal.
type TaskHandle struct {
	// ID is the provider-assigned task identifier.
	ID string `json:"id"`
	// SubmittedAt is the submission time.
	SubmittedAt time.Time `json:"submitted_at"`
	// Status is the last observed task state.
	Status TaskStatus `json:"status"`
}

// NewTaskHandle creates a handle in the submitted state.
func NewTaskHandle(id string) *TaskHandle {
	return &TaskHandle{
		ID:          id,
		SubmittedAt: time.Now(),
		Status:      TaskSubmitted,
	}
}

// Advance moves the handle to a new status. Transitions are forward-only:
// moving backward or out of a terminal state is rejected. Advancing to the
// current status is a no-op.
func (h *TaskHandle) Advance(to TaskStatus) error {
	fromRank, ok := statusRank[h.Status]
	if !ok {
		return errors.Internal(fmt.Errorf("task %s has unknown status %q", h.ID, h.Status))
	}
	toRank, ok := statusRank[to]
	if !ok {
		return errors.Internal(fmt.Errorf("task %s: unknown target status %q", h.ID, to))
	}
	if to == h.Status {
		return nil
	}
	if h.Status.Terminal() || toRank <= fromRank {
		return errors.InvalidInput(fmt.Sprintf("task %s cannot move from %s to %s", h.ID, h.Status, to))
	}
	h.Status = to
	return nil
}
