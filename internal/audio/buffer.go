package audio

import (
	"encoding/base64"
	"fmt"
	"time"
)

const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2
)

// Buffer holds canonical PCM: mono, 16 kHz, signed 16-bit little endian.
// The bytes are never modified after construction.
type Buffer struct {
	data []byte
}

func NewBuffer(pcm []byte) (Buffer, error) {
	if len(pcm)%BytesPerSample != 0 {
		return Buffer{}, fmt.Errorf("pcm length %d is not a multiple of %d", len(pcm), BytesPerSample)
	}
	data := make([]byte, len(pcm))
	copy(data, pcm)
	return Buffer{data: data}, nil
}

func (b Buffer) Len() int {
	return len(b.data)
}

func (b Buffer) IsEmpty() bool {
	return len(b.data) == 0
}

// Bytes returns the underlying PCM. Callers must not modify it.
func (b Buffer) Bytes() []byte {
	return b.data
}

func (b Buffer) Duration() time.Duration {
	samples := len(b.data) / BytesPerSample
	return time.Duration(samples) * time.Second / SampleRate
}

func (b Buffer) Base64() string {
	return base64.StdEncoding.EncodeToString(b.data)
}
