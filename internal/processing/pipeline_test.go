package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/eleven-am/verse-backend/internal/classifier"
	"github.com/eleven-am/verse-backend/internal/metrics"
)

func TestPipelineProcess_DebugLogsMatchedReligions(t *testing.T) {
	table, err := classifier.DefaultTable()
	if err != nil {
		t.Fatalf("load taxonomy: %v", err)
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	transcriber := &fakeTranscriber{text: "Is Jesus mentioned in the Quran?"}
	pipeline := NewPipeline(&fakeNormalizer{}, transcriber, classifier.New(table), metrics.New(), logger)

	outcome, err := pipeline.Process(context.Background(), "req-1", EntryHTTP, []byte("clip"), "webm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Result.Religion != classifier.Islam {
		t.Errorf("expected islam to win, got %q", outcome.Result.Religion)
	}

	var found bool
	dec := json.NewDecoder(&logs)
	for dec.More() {
		var entry struct {
			Msg     string   `json:"msg"`
			Matched []string `json:"matched_religions"`
		}
		if err := dec.Decode(&entry); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		if entry.Msg != "transcript" {
			continue
		}
		found = true
		want := []string{"islam", "christianity"}
		if len(entry.Matched) != len(want) {
			t.Fatalf("matched_religions = %v, want %v", entry.Matched, want)
		}
		for i := range want {
			if entry.Matched[i] != want[i] {
				t.Errorf("matched_religions[%d] = %q, want %q", i, entry.Matched[i], want[i])
			}
		}
	}
	if !found {
		t.Fatalf("expected a debug transcript entry, got %s", logs.String())
	}
}
