package audio

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestNewBuffer(t *testing.T) {
	pcm := []byte{1, 0, 2, 0}
	buf, err := NewBuffer(pcm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pcm[0] = 9
	if buf.Bytes()[0] != 1 {
		t.Error("buffer should not alias the caller's slice")
	}
	if buf.Len() != 4 {
		t.Errorf("expected length 4, got %d", buf.Len())
	}
}

func TestNewBuffer_OddLength(t *testing.T) {
	if _, err := NewBuffer([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for odd byte count")
	}
}

func TestBuffer_Duration(t *testing.T) {
	buf, _ := NewBuffer(make([]byte, SampleRate*BytesPerSample/2))
	if buf.Duration() != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", buf.Duration())
	}
}

func TestBuffer_Base64(t *testing.T) {
	buf, _ := NewBuffer([]byte{0xFF, 0x7F})
	decoded, err := base64.StdEncoding.DecodeString(buf.Base64())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 2 || decoded[0] != 0xFF || decoded[1] != 0x7F {
		t.Errorf("unexpected decoded bytes %v", decoded)
	}
}

func TestBuffer_Empty(t *testing.T) {
	var buf Buffer
	if !buf.IsEmpty() {
		t.Error("zero Buffer should be empty")
	}
}
