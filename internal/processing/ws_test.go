package processing

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eleven-am/verse-backend/internal/audio"
	"github.com/eleven-am/verse-backend/internal/classifier"
	"github.com/eleven-am/verse-backend/internal/shared"
	"github.com/gorilla/websocket"
)

func dialTestWS(t *testing.T, env *testEnv, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.echo)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readReply(t *testing.T, conn *websocket.Conn) ClientMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg ClientMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	return msg
}

func TestHandleWebsocket_ClipsInOrder(t *testing.T) {
	env := newTestEnv(t, Config{IncludeTranscript: true})
	conn := dialTestWS(t, env, "?format=webm")

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("clip-one")); err != nil {
		t.Fatalf("write: %v", err)
	}
	first := readReply(t, conn)
	if first.Type != MessageTypeTranscript || first.Result == nil {
		t.Fatalf("unexpected reply %+v", first)
	}
	if first.Result.Religion != classifier.Islam || first.Result.Subtopic != "mercy" {
		t.Errorf("unexpected result %+v", first.Result)
	}
	if first.Transcript != "Tell me about mercy in Islam" {
		t.Errorf("transcript = %q", first.Transcript)
	}
	if first.RequestID == "" {
		t.Error("each clip should carry a request id")
	}

	env.transcriber.setText("You are a fucking idiot")
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("clip-two")); err != nil {
		t.Fatalf("write: %v", err)
	}
	second := readReply(t, conn)
	if second.Result == nil || second.Result.Category != classifier.CategoryAbusive {
		t.Errorf("unexpected reply %+v", second)
	}
	if second.RequestID == first.RequestID {
		t.Error("clips must not share request ids")
	}

	env.normalizer.mu.Lock()
	formats := append([]string(nil), env.normalizer.formats...)
	env.normalizer.mu.Unlock()
	if len(formats) != 2 || formats[0] != "webm" {
		t.Errorf("normalizer formats = %v", formats)
	}
}

func TestHandleWebsocket_ErrorsKeepConnectionOpen(t *testing.T) {
	env := newTestEnv(t, Config{})
	conn := dialTestWS(t, env, "")

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if reply := readReply(t, conn); reply.Type != MessageTypeError {
		t.Errorf("text frame reply = %+v, want error", reply)
	}

	env.normalizer.setErr(&audio.ConversionFailedError{Reason: "moov atom not found"})
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("bad")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply := readReply(t, conn)
	if reply.Type != MessageTypeError || reply.Message != shared.GenericProcessingMessage {
		t.Errorf("reply = %+v, want generic error", reply)
	}
	if strings.Contains(reply.Message, "moov") {
		t.Error("converter diagnostics must not reach the client")
	}

	env.normalizer.setErr(nil)
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("good")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if reply := readReply(t, conn); reply.Type != MessageTypeTranscript {
		t.Errorf("connection should survive a failed clip, got %+v", reply)
	}
}
