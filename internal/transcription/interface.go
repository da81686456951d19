package transcription

import (
	"context"

	"github.com/eleven-am/verse-backend/internal/audio"
)

type Transcriber interface {
	Transcribe(ctx context.Context, buf audio.Buffer) (Transcript, error)
}
