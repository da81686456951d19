package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const wavFormatPCM = 1

var ErrNotWAV = errors.New("not a RIFF/WAVE payload")

type WAVInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	AudioFormat   int
}

// IsWAV sniffs the RIFF/WAVE magic without parsing chunks.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

// DecodeWAV walks the RIFF chunks and returns the interleaved PCM16
// samples of the data chunk. Chunks other than "fmt " and "data" are skipped.
func DecodeWAV(data []byte) ([]int16, WAVInfo, error) {
	if !IsWAV(data) {
		return nil, WAVInfo{}, ErrNotWAV
	}

	var info WAVInfo
	var pcm []byte
	haveFmt := false

	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if size < 0 || body+size > len(data) {
			if id == "data" {
				// streamed WAVs often carry a bogus data size
				size = len(data) - body
			} else {
				return nil, WAVInfo{}, fmt.Errorf("chunk %q overruns payload", id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, WAVInfo{}, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			info.AudioFormat = int(binary.LittleEndian.Uint16(data[body:]))
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14:]))
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}

		offset = body + size + size%2
	}

	if !haveFmt {
		return nil, WAVInfo{}, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	if pcm == nil {
		return nil, WAVInfo{}, fmt.Errorf("invalid WAV file: missing data chunk")
	}
	if info.AudioFormat != wavFormatPCM {
		return nil, info, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", info.AudioFormat)
	}
	if info.BitsPerSample != 16 {
		return nil, info, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", info.BitsPerSample)
	}
	if info.Channels < 1 || info.SampleRate <= 0 {
		return nil, info, fmt.Errorf("invalid WAV format: %d channels at %d Hz", info.Channels, info.SampleRate)
	}

	return PCMBytesToInt16(pcm), info, nil
}
