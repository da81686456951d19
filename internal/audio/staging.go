package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// StagedFile is a request-scoped temp copy of an upload.
type StagedFile struct {
	path string
	once sync.Once
	err  error
}

// Stage writes data to a new temp file under dir. The caller must call
// Remove on every exit path.
func Stage(dir, format string, data []byte) (*StagedFile, error) {
	f, err := os.CreateTemp(dir, "upload-*"+extension(format))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	staged := &StagedFile{path: f.Name()}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = staged.Remove()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = staged.Remove()
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	return staged, nil
}

func (s *StagedFile) Path() string {
	return s.path
}

// Remove deletes the file once; later calls return the first result.
// A file that is already gone is not an error.
func (s *StagedFile) Remove() error {
	s.once.Do(func() {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.err = err
		}
	})
	return s.err
}

func extension(format string) string {
	format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
	if format == "" || len(format) > 8 {
		return ""
	}
	for _, r := range format {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return "." + format
}
