package qwen

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/skillsenselab/asrkit/asr"
	"github.com/skillsenselab/asrkit/errors"
	"github.com/skillsenselab/asrkit/logger"
)

const eventBuffer = 32

// Server event types the read loop reacts to.
const (
	eventTranscriptionText      = "conversation.item.input_audio_transcription.text"
	eventTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	eventError                  = "error"
)

// session is one realtime recognition session. Writes go through writeMu;
// the read loop is the only reader and owns the events channel.
type session struct {
	conn       *websocket.Conn
	disableVAD bool
	events     chan asr.Event
	done       chan struct{}
	log        *logger.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Send transmits one PCM frame as a base64 append event.
func (s *session) Send(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	err := s.conn.WriteJSON(clientEvent{
		EventID: "event_" + uuid.NewString(),
		Type:    "input_audio_buffer.append",
		Audio:   base64Frame(frame),
	})
	if err != nil {
		return errors.SessionClosed(EngineName, "send frame: "+err.Error())
	}
	return nil
}

// CloseSend signals the end of the audio input. Without server VAD the
// buffered audio must be committed explicitly to trigger recognition.
func (s *session) CloseSend() error {
	if !s.disableVAD {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	err := s.conn.WriteJSON(clientEvent{
		EventID: "event_" + uuid.NewString(),
		Type:    "input_audio_buffer.commit",
	})
	if err != nil {
		return errors.SessionClosed(EngineName, "commit: "+err.Error())
	}
	return nil
}

// Events returns the server event stream. The channel is closed after a
// terminal event.
func (s *session) Events() <-chan asr.Event {
	return s.events
}

// Close tears down the connection. Safe to call multiple times.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		s.conn.Close()
	})
	return nil
}

// emit delivers an event unless the session was closed out from under the
// read loop; a closed session has no consumer left to block for.
func (s *session) emit(ev asr.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// readLoop maps server events to asr events until the connection ends.
// It emits at most one terminal event and then closes the channel.
func (s *session) readLoop() {
	defer close(s.events)

	for {
		var ev serverEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.emit(asr.Event{Type: asr.EventClosed})
			} else {
				s.emit(asr.Event{
					Type: asr.EventError,
					Err:  errors.SessionClosed(EngineName, err.Error()),
				})
			}
			return
		}

		switch ev.Type {
		case eventTranscriptionText:
			if text := strings.TrimSpace(ev.Stash); text != "" {
				if !s.emit(asr.Event{Type: asr.EventPartial, Segment: &asr.Segment{Text: text}}) {
					return
				}
			}
		case eventTranscriptionCompleted:
			if text := strings.TrimSpace(ev.Transcript); text != "" {
				if !s.emit(asr.Event{Type: asr.EventFinal, Segment: &asr.Segment{Text: text}}) {
					return
				}
			}
		case eventError:
			msg := "server error"
			if ev.Error != nil {
				msg = ev.Error.Code + ": " + ev.Error.Message
			}
			s.emit(asr.Event{
				Type: asr.EventError,
				Err:  errors.RecognitionFailed(EngineName, msg),
			})
			return
		default:
			s.log.Debug("ignoring server event", map[string]interface{}{
				"event_type": ev.Type,
			})
		}
	}
}
