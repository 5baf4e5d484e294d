package funasr

import (
	"strings"

	"github.com/skillsenselab/asrkit/asr"
)

// DashScope task statuses.
const (
	statusPending   = "PENDING"
	statusRunning   = "RUNNING"
	statusSucceeded = "SUCCEEDED"
	statusFailed    = "FAILED"
)

type submitRequest struct {
	Model      string           `json:"model"`
	Input      submitInput      `json:"input"`
	Parameters submitParameters `json:"parameters"`
}

type submitInput struct {
	FileURLs []string `json:"file_urls"`
}

type submitParameters struct {
	LanguageHints []string `json:"language_hints,omitempty"`
}

// taskResponse is the shared shape of submit and poll responses.
type taskResponse struct {
	RequestID string     `json:"request_id"`
	Output    taskOutput `json:"output"`
}

type taskOutput struct {
	TaskID     string       `json:"task_id"`
	TaskStatus string       `json:"task_status"`
	Message    string       `json:"message"`
	Results    []taskResult `json:"results"`
}

type taskResult struct {
	FileURL          string `json:"file_url"`
	TranscriptionURL string `json:"transcription_url"`
	SubtaskStatus    string `json:"subtask_status"`
	Message          string `json:"message"`
}

// toPollResult maps a task response onto the engine-neutral poll result.
// Unknown provider statuses are treated as still running.
func (r *taskResponse) toPollResult() *asr.PollResult {
	switch r.Output.TaskStatus {
	case statusSucceeded:
		for _, res := range r.Output.Results {
			if res.SubtaskStatus == statusSucceeded && res.TranscriptionURL != "" {
				return &asr.PollResult{Status: asr.TaskSucceeded, ResultURL: res.TranscriptionURL}
			}
		}
		message := "task succeeded but no subtask produced a result"
		if len(r.Output.Results) > 0 && r.Output.Results[0].Message != "" {
			message = r.Output.Results[0].Message
		}
		return &asr.PollResult{Status: asr.TaskFailed, Message: message}
	case statusFailed:
		message := r.Output.Message
		if message == "" {
			message = "task failed"
		}
		return &asr.PollResult{Status: asr.TaskFailed, Message: message}
	case statusPending:
		return &asr.PollResult{Status: asr.TaskSubmitted}
	default:
		return &asr.PollResult{Status: asr.TaskRunning}
	}
}

// resultDocument is the transcription payload behind transcription_url.
// Sentence timestamps arrive in milliseconds.
type resultDocument struct {
	Transcripts []resultTranscript `json:"transcripts"`
	Sentences   []resultSentence   `json:"sentences"`
	Language    string             `json:"language"`
	Text        string             `json:"text"`
}

type resultTranscript struct {
	Text      string           `json:"text"`
	Sentences []resultSentence `json:"sentences"`
}

type resultSentence struct {
	BeginTime int64  `json:"begin_time"`
	EndTime   int64  `json:"end_time"`
	Text      string `json:"text"`
}

func (d *resultDocument) toTranscript() *asr.Transcript {
	sentences := d.Sentences
	if len(sentences) == 0 && len(d.Transcripts) > 0 {
		sentences = d.Transcripts[0].Sentences
	}

	segments := make([]asr.Segment, 0, len(sentences))
	for _, s := range sentences {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, asr.Segment{
			Start: float64(s.BeginTime) / 1000,
			End:   float64(s.EndTime) / 1000,
			Text:  text,
		})
	}

	if len(segments) == 0 {
		text := d.Text
		if text == "" && len(d.Transcripts) > 0 {
			text = d.Transcripts[0].Text
		}
		if text = strings.TrimSpace(text); text != "" {
			segments = append(segments, asr.Segment{Text: text})
		}
	}

	return asr.NewTranscript(EngineName, d.Language, segments)
}
