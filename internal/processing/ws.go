package processing

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/eleven-am/verse-backend/internal/classifier"
	"github.com/eleven-am/verse-backend/internal/shared"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

const (
	MessageTypeTranscript = "transcript"
	MessageTypeError      = "error"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ClientMessage is the reply sent for every clip received on /ws.
type ClientMessage struct {
	Type       string             `json:"type"`
	RequestID  string             `json:"request_id,omitempty"`
	Transcript string             `json:"transcript,omitempty"`
	Result     *classifier.Result `json:"result,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// HandleWebsocket upgrades the connection and treats every binary message
// as one audio clip. Clips on a connection are processed in order. The
// optional format query parameter is passed to the normalizer as a hint.
func (h *Handler) HandleWebsocket(c echo.Context) error {
	id := requestIDFor(c)
	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "connection_id", id, "error", err)
		return nil
	}

	conn := &wsClient{
		ws:     ws,
		format: formatOf("clip." + c.QueryParam("format")),
		logger: h.logger.With("connection_id", id),
		done:   make(chan struct{}),
	}

	m := h.pipeline.metrics
	m.WebsocketConnections.Inc()
	defer m.WebsocketConnections.Dec()

	conn.logger.Info("websocket client connected", "remote", c.RealIP())
	go conn.pingLoop()
	conn.readLoop(c.Request().Context(), h)
	conn.logger.Info("websocket client disconnected", "clips", conn.clips)
	return nil
}

type wsClient struct {
	ws        *websocket.Conn
	format    string
	logger    *slog.Logger
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	clips     int
}

func (c *wsClient) readLoop(ctx context.Context, h *Handler) {
	defer c.close()

	c.ws.SetReadLimit(h.cfg.MaxUploadBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		if msgType != websocket.BinaryMessage {
			c.write(ClientMessage{Type: MessageTypeError, Message: "Send audio as a binary message."})
			continue
		}

		c.clips++
		clipID := shared.NewID("clip_")
		out, err := h.pipeline.Process(ctx, clipID, EntryWebsocket, data, c.format)
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		if err != nil {
			c.write(ClientMessage{Type: MessageTypeError, RequestID: clipID, Message: shared.GenericProcessingMessage})
			continue
		}

		reply := ClientMessage{Type: MessageTypeTranscript, RequestID: clipID, Result: &out.Result}
		if h.cfg.IncludeTranscript {
			reply.Transcript = out.Transcript.Text
		}
		if err := c.write(reply); err != nil {
			return
		}
	}
}

func (c *wsClient) write(msg ClientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(msg); err != nil {
		c.logger.Warn("websocket write failed", "error", err)
		return err
	}
	return nil
}

func (c *wsClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		c.ws.Close()
	})
}
