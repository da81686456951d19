package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/eleven-am/verse-backend/internal/processing"
	"github.com/gorilla/websocket"
)

// verse-client sends each audio file named on the command line over the
// websocket endpoint and prints the reply. The server reads the format
// hint once per connection, so every file gets its own connection.
//
//	VERSE_URL=ws://localhost:3000/ws verse-client question.webm
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: verse-client <audio file>...")
	}

	serverURL := os.Getenv("VERSE_URL")
	if serverURL == "" {
		serverURL = "ws://localhost:3000/ws"
	}

	base, err := url.Parse(serverURL)
	if err != nil {
		log.Fatal("parse VERSE_URL:", err)
	}

	var (
		mu     sync.Mutex
		active *websocket.Conn
	)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("[VERSE] Shutting down...")
		mu.Lock()
		if active != nil {
			active.Close()
		}
		mu.Unlock()
		os.Exit(1)
	}()

	for _, path := range os.Args[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("[VERSE] %s: %v\n", path, err)
			continue
		}

		target := clipURL(base, path)
		fmt.Printf("[VERSE] Connecting to %s\n", target)

		conn, resp, err := websocket.DefaultDialer.Dial(target, nil)
		if err != nil {
			if resp != nil {
				body, _ := io.ReadAll(resp.Body)
				fmt.Printf("[VERSE] Dial failed: %v, status=%d, body=%s\n", err, resp.StatusCode, string(body))
			}
			log.Fatal("dial:", err)
		}
		mu.Lock()
		active = conn
		mu.Unlock()

		reply, err := send(conn, data)
		mu.Lock()
		active = nil
		mu.Unlock()
		conn.Close()
		if err != nil {
			log.Fatal(err)
		}

		printReply(path, reply)
	}
}

// clipURL returns base with the format query set from the file's extension,
// or cleared when the file has none.
func clipURL(base *url.URL, path string) string {
	u := *base
	q := u.Query()
	if format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); format != "" {
		q.Set("format", format)
	} else {
		q.Del("format")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func send(conn *websocket.Conn, data []byte) (processing.ClientMessage, error) {
	var reply processing.ClientMessage
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return reply, fmt.Errorf("write: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
	if err := conn.ReadJSON(&reply); err != nil {
		return reply, fmt.Errorf("read: %w", err)
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return reply, nil
}

func printReply(path string, reply processing.ClientMessage) {
	if reply.Type == processing.MessageTypeError || reply.Result == nil {
		fmt.Printf("[VERSE] %s: error: %s\n", path, reply.Message)
		return
	}

	if reply.Transcript != "" {
		fmt.Printf("[VERSE] %s: transcript: %q\n", path, reply.Transcript)
	}
	out, _ := json.MarshalIndent(reply.Result, "", "  ")
	fmt.Printf("[VERSE] %s: %s\n", path, out)
}
