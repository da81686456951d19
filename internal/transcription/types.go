package transcription

import "time"

const (
	EventAppendAudio     = "input_audio_buffer.append"
	EventCommitAudio     = "input_audio_buffer.commit"
	EventTranscriptReady = "response.audio_transcript.done"
	EventError           = "error"

	PlaceholderTranscript = "No transcript received."

	DefaultURL              = "wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview-2024-10-01"
	DefaultBetaHeader       = "realtime=v1"
	DefaultTimeout          = 30 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

type Config struct {
	URL              string
	APIKey           string
	BetaHeader       string
	Timeout          time.Duration
	HandshakeTimeout time.Duration
}

type Transcript struct {
	Text        string
	Placeholder bool
	ItemID      string
}

type State int32

const (
	StateConnecting State = iota
	StateAwaiting
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaiting:
		return "awaiting"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

type appendAudioEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type commitAudioEvent struct {
	Type string `json:"type"`
}

type serverEvent struct {
	Type       string       `json:"type"`
	EventID    string       `json:"event_id,omitempty"`
	ItemID     string       `json:"item_id,omitempty"`
	Transcript *string      `json:"transcript,omitempty"`
	Error      *serverError `json:"error,omitempty"`
}

type serverError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
