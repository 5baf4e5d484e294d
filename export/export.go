// Package export renders transcripts to output files. Supported formats are
// plain text, SRT subtitles, and JSON.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/skillsenselab/asrkit/asr"
	"github.com/skillsenselab/asrkit/errors"
	"github.com/skillsenselab/asrkit/logger"
)

// Format identifies an output rendering.
type Format string

const (
	FormatTxt  Format = "txt"
	FormatSRT  Format = "srt"
	FormatJSON Format = "json"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatTxt, FormatSRT, FormatJSON}
}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatTxt, FormatSRT, FormatJSON:
		return f, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("unknown export format %q (want txt, srt, or json)", name))
	}
}

// Exporter writes transcript renderings into an output directory.
type Exporter struct {
	dir     string
	formats []Format
	log     *logger.Logger
}

// NewExporter creates an exporter for the given directory and format names.
// With no formats, txt is used.
func NewExporter(dir string, formatNames []string) (*Exporter, error) {
	formats := make([]Format, 0, len(formatNames))
	for _, name := range formatNames {
		f, err := ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	if len(formats) == 0 {
		formats = []Format{FormatTxt}
	}
	return &Exporter{
		dir:     dir,
		formats: formats,
		log:     logger.Get("export"),
	}, nil
}

// Export renders the transcript in every configured format and returns the
// written file paths.
func (e *Exporter) Export(transcript *asr.Transcript, baseName string) ([]string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, errors.Internal(err)
	}

	paths := make([]string, 0, len(e.formats))
	for _, format := range e.formats {
		data, err := Render(transcript, format)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(e.dir, baseName+"."+string(format))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, errors.Internal(err)
		}
		e.log.Debug("transcript exported", map[string]interface{}{
			"path":   path,
			"format": string(format),
		})
		paths = append(paths, path)
	}
	return paths, nil
}

// Render produces one rendering of a transcript.
func Render(transcript *asr.Transcript, format Format) ([]byte, error) {
	switch format {
	case FormatTxt:
		return renderTxt(transcript), nil
	case FormatSRT:
		return renderSRT(transcript), nil
	case FormatJSON:
		return renderJSON(transcript)
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("unknown export format %q", format))
	}
}

func renderTxt(t *asr.Transcript) []byte {
	return []byte(t.Text + "\n")
}

func renderSRT(t *asr.Transcript) []byte {
	var b strings.Builder
	for i, seg := range t.Segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", srtTime(seg.Start), srtTime(seg.End))
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return []byte(b.String())
}

func renderJSON(t *asr.Transcript) ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, errors.Internal(err)
	}
	return append(data, '\n'), nil
}

// srtTime formats seconds as the SRT timestamp HH:MM:SS,mmm.
func srtTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int64(seconds*1000 + 0.5)
	h := millis / 3600000
	m := millis % 3600000 / 60000
	s := millis % 60000 / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
