package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/verse-backend/internal/audio"
	"github.com/gorilla/websocket"
)

const closeWait = time.Second

type outcome struct {
	transcript Transcript
	err        error
}

// Session is a single connect, send, await, close exchange for one audio
// payload. The read loop and the deadline timer race on resolve; only the
// first call has any effect.
type Session struct {
	id     string
	conn   *websocket.Conn
	logger *slog.Logger
	state  atomic.Int32

	resolveOnce sync.Once
	result      chan outcome

	closeOnce sync.Once
}

func newSession(id string, logger *slog.Logger) *Session {
	return &Session{
		id:     id,
		logger: logger.With("session_id", id),
		result: make(chan outcome, 1),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) connect(ctx context.Context, dialer *websocket.Dialer, url string, header http.Header) error {
	s.state.Store(int32(StateConnecting))

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		s.state.Store(int32(StateResolved))
		detail := "dial"
		if resp != nil {
			detail = fmt.Sprintf("dial: http status %s", resp.Status)
		}
		return newSessionError(KindHandshakeFailed, detail, err)
	}

	s.conn = conn
	s.logger.Debug("connected to realtime transcription service")
	return nil
}

// await sends the append and commit frames and blocks until the session
// resolves. The connection is closed before await returns.
func (s *Session) await(buf audio.Buffer, timeout time.Duration) (Transcript, error) {
	s.state.Store(int32(StateAwaiting))

	timer := time.AfterFunc(timeout, func() {
		s.resolve(outcome{err: newSessionError(KindTimeout, fmt.Sprintf("no transcript within %s", timeout), nil)})
	})
	defer timer.Stop()

	if err := s.send(appendAudioEvent{Type: EventAppendAudio, Audio: buf.Base64()}); err != nil {
		s.resolve(outcome{err: newSessionError(KindTransportError, "send append", err)})
	} else if err := s.send(commitAudioEvent{Type: EventCommitAudio}); err != nil {
		s.resolve(outcome{err: newSessionError(KindTransportError, "send commit", err)})
	} else {
		go s.readLoop()
	}

	out := <-s.result
	return out.transcript, out.err
}

func (s *Session) send(v any) error {
	if s.State() == StateResolved {
		return errors.New("session already resolved")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) readLoop() {
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			detail := "read"
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				detail = "connection closed by peer"
			}
			s.resolve(outcome{err: newSessionError(KindTransportError, detail, err)})
			return
		}

		if s.State() == StateResolved {
			return
		}

		var evt serverEvent
		if err := json.Unmarshal(message, &evt); err != nil {
			s.resolve(outcome{err: newSessionError(KindMalformedResponse, "decode event", err)})
			return
		}
		if evt.Type == "" {
			s.resolve(outcome{err: newSessionError(KindMalformedResponse, "event without type", nil)})
			return
		}

		switch evt.Type {
		case EventTranscriptReady:
			s.resolve(outcome{transcript: transcriptFrom(evt)})
			return
		case EventError:
			detail := "error event"
			if evt.Error != nil && evt.Error.Message != "" {
				detail = evt.Error.Message
			}
			s.resolve(outcome{err: newSessionError(KindTransportError, detail, nil)})
			return
		default:
			s.logger.Debug("ignoring realtime event", "type", evt.Type)
		}
	}
}

func (s *Session) resolve(out outcome) bool {
	resolved := false
	s.resolveOnce.Do(func() {
		resolved = true
		s.state.Store(int32(StateResolved))
		s.close()
		s.result <- out
	})
	return resolved
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		if s.conn == nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("closing realtime connection", "error", err)
		}
	})
}

func transcriptFrom(evt serverEvent) Transcript {
	if evt.Transcript == nil || strings.TrimSpace(*evt.Transcript) == "" {
		return Transcript{Text: PlaceholderTranscript, Placeholder: true, ItemID: evt.ItemID}
	}
	return Transcript{Text: *evt.Transcript, ItemID: evt.ItemID}
}
