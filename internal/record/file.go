package record

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"petcare-console/internal/telemetry"
)

// FileWriter appends status rows to a JSONL file.
type FileWriter struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// NewFileWriter opens path for appending, creating parent directories.
func NewFileWriter(path string) (*FileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileWriter{f: f, enc: json.NewEncoder(f)}, nil
}

// WriteStatus appends one row.
func (fw *FileWriter) WriteStatus(row telemetry.StatusRow) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.enc.Encode(row)
}

// WriteStatuses appends rows in order.
func (fw *FileWriter) WriteStatuses(rows []telemetry.StatusRow) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	for _, r := range rows {
		if err := fw.enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the file.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.f.Close()
}
