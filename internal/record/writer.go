// Package record keeps a history of robot status samples.
package record

import (
	"errors"
	"sync"

	"petcare-console/internal/telemetry"
)

// Writer handles recorded status rows.
type Writer interface {
	WriteStatus(telemetry.StatusRow) error
}

// Optional: writers may support batch mode.
type batchWriter interface {
	WriteStatuses([]telemetry.StatusRow) error
}

// MultiWriter fans status rows out to several writers. A failing writer does
// not starve the others; all errors are joined.
type MultiWriter struct {
	mu      sync.RWMutex
	writers []Writer
}

// NewMultiWriter creates a MultiWriter over ws. Nil entries are skipped.
func NewMultiWriter(ws ...Writer) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range ws {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// Add attaches w after construction, e.g. a console that exists only once
// the session does.
func (mw *MultiWriter) Add(w Writer) {
	if w == nil {
		return
	}
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.writers = append(mw.writers, w)
}

// Len reports how many writers are attached.
func (mw *MultiWriter) Len() int {
	mw.mu.RLock()
	defer mw.mu.RUnlock()
	return len(mw.writers)
}

func (mw *MultiWriter) snapshot() []Writer {
	mw.mu.RLock()
	defer mw.mu.RUnlock()
	return append([]Writer(nil), mw.writers...)
}

// WriteStatus sends a row to all writers.
func (mw *MultiWriter) WriteStatus(row telemetry.StatusRow) error {
	var errs []error
	for _, w := range mw.snapshot() {
		if err := w.WriteStatus(row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteStatuses sends rows to all writers, using batch mode where supported.
func (mw *MultiWriter) WriteStatuses(rows []telemetry.StatusRow) error {
	var errs []error
	for _, w := range mw.snapshot() {
		if bw, ok := w.(batchWriter); ok {
			if err := bw.WriteStatuses(rows); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		for _, r := range rows {
			if err := w.WriteStatus(r); err != nil {
				errs = append(errs, err)
				break
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every writer that has a Close method.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.snapshot() {
		if c, ok := w.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
