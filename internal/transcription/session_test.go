package transcription

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eleven-am/verse-backend/internal/audio"
	"github.com/gorilla/websocket"
)

type peerFrames struct {
	header http.Header
	frames []map[string]any
	closes int
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFakeRealtime reads the two client frames, runs respond, then drains
// the connection until the client closes it. The observed traffic is
// delivered on the returned channel.
func newFakeRealtime(t *testing.T, respond func(ws *websocket.Conn)) (string, <-chan peerFrames) {
	t.Helper()
	observed := make(chan peerFrames, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		seen := peerFrames{header: r.Header.Clone()}
		report := func() {
			select {
			case observed <- seen:
			default:
			}
		}
		for i := 0; i < 2; i++ {
			_, data, err := ws.ReadMessage()
			if err != nil {
				report()
				return
			}
			var frame map[string]any
			_ = json.Unmarshal(data, &frame)
			seen.frames = append(seen.frames, frame)
		}

		respond(ws)

		_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			_, _, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					seen.closes++
				}
				break
			}
		}
		report()
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http"), observed
}

func newTestClient(url string, timeout time.Duration) *Client {
	return NewClient(Config{URL: url, APIKey: "sk-test", Timeout: timeout}, newTestLogger())
}

func testBuffer(t *testing.T) audio.Buffer {
	t.Helper()
	buf, err := audio.NewBuffer([]byte{0x01, 0x00, 0xFF, 0x7F})
	if err != nil {
		t.Fatalf("buffer: %v", err)
	}
	return buf
}

func writeEvent(ws *websocket.Conn, v any) {
	data, _ := json.Marshal(v)
	_ = ws.WriteMessage(websocket.TextMessage, data)
}

func waitObserved(t *testing.T, ch <-chan peerFrames) peerFrames {
	t.Helper()
	select {
	case seen := <-ch:
		return seen
	case <-time.After(5 * time.Second):
		t.Fatal("fake peer did not finish")
		return peerFrames{}
	}
}

func TestTranscribe_Success(t *testing.T) {
	url, observed := newFakeRealtime(t, func(ws *websocket.Conn) {
		writeEvent(ws, map[string]any{"type": "session.created"})
		writeEvent(ws, map[string]any{"type": "response.audio.delta", "delta": "AAAA"})
		writeEvent(ws, map[string]any{"type": EventTranscriptReady, "item_id": "item_1", "transcript": "Tell me about mercy in Islam"})
	})

	buf := testBuffer(t)
	transcript, err := newTestClient(url, 2*time.Second).Transcribe(context.Background(), buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transcript.Text != "Tell me about mercy in Islam" {
		t.Errorf("unexpected transcript %q", transcript.Text)
	}
	if transcript.Placeholder {
		t.Error("transcript should not be a placeholder")
	}
	if transcript.ItemID != "item_1" {
		t.Errorf("expected item_1, got %q", transcript.ItemID)
	}

	seen := waitObserved(t, observed)
	if got := seen.header.Get("Authorization"); got != "Bearer sk-test" {
		t.Errorf("expected bearer credential, got %q", got)
	}
	if got := seen.header.Get("OpenAI-Beta"); got != DefaultBetaHeader {
		t.Errorf("expected protocol header %q, got %q", DefaultBetaHeader, got)
	}
	if len(seen.frames) != 2 {
		t.Fatalf("expected 2 client frames, got %d", len(seen.frames))
	}
	if seen.frames[0]["type"] != EventAppendAudio {
		t.Errorf("first frame should be append, got %v", seen.frames[0]["type"])
	}
	if seen.frames[0]["audio"] != base64.StdEncoding.EncodeToString(buf.Bytes()) {
		t.Error("append frame should carry the whole buffer base64-encoded")
	}
	if seen.frames[1]["type"] != EventCommitAudio {
		t.Errorf("second frame should be commit, got %v", seen.frames[1]["type"])
	}
	if seen.closes != 1 {
		t.Errorf("expected exactly one close, got %d", seen.closes)
	}
}

func TestTranscribe_SecondTranscriptIgnored(t *testing.T) {
	url, _ := newFakeRealtime(t, func(ws *websocket.Conn) {
		writeEvent(ws, map[string]any{"type": EventTranscriptReady, "transcript": "first"})
		writeEvent(ws, map[string]any{"type": EventTranscriptReady, "transcript": "second"})
	})

	transcript, err := newTestClient(url, 2*time.Second).Transcribe(context.Background(), testBuffer(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transcript.Text != "first" {
		t.Errorf("expected first transcript to win, got %q", transcript.Text)
	}
}

func TestTranscribe_EmptyTranscriptIsPlaceholder(t *testing.T) {
	url, _ := newFakeRealtime(t, func(ws *websocket.Conn) {
		writeEvent(ws, map[string]any{"type": EventTranscriptReady})
	})

	transcript, err := newTestClient(url, 2*time.Second).Transcribe(context.Background(), testBuffer(t))
	if err != nil {
		t.Fatalf("empty transcript must not be an error: %v", err)
	}
	if !transcript.Placeholder || transcript.Text != PlaceholderTranscript {
		t.Errorf("expected placeholder transcript, got %+v", transcript)
	}
}

func TestTranscribe_Timeout(t *testing.T) {
	url, observed := newFakeRealtime(t, func(ws *websocket.Conn) {
		writeEvent(ws, map[string]any{"type": "session.created"})
	})

	timeout := 200 * time.Millisecond
	start := time.Now()
	_, err := newTestClient(url, timeout).Transcribe(context.Background(), testBuffer(t))
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed < timeout {
		t.Errorf("resolved after %v, before the %v deadline", elapsed, timeout)
	}
	if elapsed > timeout+time.Second {
		t.Errorf("resolved after %v, too long past the %v deadline", elapsed, timeout)
	}

	seen := waitObserved(t, observed)
	if seen.closes != 1 {
		t.Errorf("expected the connection to be closed exactly once, got %d", seen.closes)
	}
}

func TestTranscribe_MalformedResponse(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"invalid json", "not json"},
		{"missing type", `{"transcript":"hello"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, _ := newFakeRealtime(t, func(ws *websocket.Conn) {
				_ = ws.WriteMessage(websocket.TextMessage, []byte(tt.payload))
			})

			_, err := newTestClient(url, 2*time.Second).Transcribe(context.Background(), testBuffer(t))
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestTranscribe_ErrorEvent(t *testing.T) {
	url, _ := newFakeRealtime(t, func(ws *websocket.Conn) {
		writeEvent(ws, map[string]any{
			"type":  EventError,
			"error": map[string]any{"type": "invalid_request_error", "message": "buffer too small"},
		})
	})

	_, err := newTestClient(url, 2*time.Second).Transcribe(context.Background(), testBuffer(t))
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	var sessErr *SessionError
	if !errors.As(err, &sessErr) {
		t.Fatalf("expected *SessionError, got %T", err)
	}
	if sessErr.Detail != "buffer too small" {
		t.Errorf("expected server message as detail, got %q", sessErr.Detail)
	}
}

func TestTranscribe_PeerClosesEarly(t *testing.T) {
	url, _ := newFakeRealtime(t, func(ws *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})

	_, err := newTestClient(url, 2*time.Second).Transcribe(context.Background(), testBuffer(t))
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestTranscribe_HandshakeFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	_, err := newTestClient(url, time.Second).Transcribe(context.Background(), testBuffer(t))
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("expected ErrHandshakeFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("expected status in error detail, got %q", err.Error())
	}
}

func TestTranscribe_ConcurrentSessions(t *testing.T) {
	url, _ := newFakeRealtime(t, func(ws *websocket.Conn) {
		time.Sleep(100 * time.Millisecond)
		writeEvent(ws, map[string]any{"type": EventTranscriptReady, "transcript": "ok"})
	})
	client := newTestClient(url, 2*time.Second)
	buf := testBuffer(t)

	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := client.Transcribe(context.Background(), buf)
			errs <- err
		}()
	}
	for i := 0; i < 4; i++ {
		if err := <-errs; err != nil {
			t.Errorf("session %d failed: %v", i, err)
		}
	}
}

func TestSession_ResolveOnce(t *testing.T) {
	s := newSession("rt_test", newTestLogger())

	if !s.resolve(outcome{transcript: Transcript{Text: "first"}}) {
		t.Fatal("first resolve should win")
	}
	if s.resolve(outcome{err: newSessionError(KindTimeout, "late", nil)}) {
		t.Error("second resolve should be a no-op")
	}
	if s.State() != StateResolved {
		t.Errorf("expected resolved state, got %s", s.State())
	}

	out := <-s.result
	if out.err != nil || out.transcript.Text != "first" {
		t.Errorf("expected first outcome, got %+v", out)
	}
	select {
	case extra := <-s.result:
		t.Errorf("unexpected second outcome %+v", extra)
	default:
	}
}

func TestNormalizeConfig(t *testing.T) {
	cfg := normalizeConfig(Config{})
	if cfg.URL != DefaultURL {
		t.Errorf("URL = %q, want %q", cfg.URL, DefaultURL)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.HandshakeTimeout != DefaultHandshakeTimeout {
		t.Errorf("HandshakeTimeout = %v, want %v", cfg.HandshakeTimeout, DefaultHandshakeTimeout)
	}

	custom := normalizeConfig(Config{URL: "ws://x", Timeout: time.Second, BetaHeader: "realtime=v2"})
	if custom.URL != "ws://x" || custom.Timeout != time.Second || custom.BetaHeader != "realtime=v2" {
		t.Errorf("custom values should be preserved, got %+v", custom)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateConnecting, "connecting"},
		{StateAwaiting, "awaiting"},
		{StateResolved, "resolved"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
