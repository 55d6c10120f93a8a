// Package pipeline runs batches of receipt inputs through the scraper and
// writes the results to CSV, JSONL, bbolt or Kafka sinks.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/oofd-receipts/models"
)

// MultiWriter fans every batch out to several sinks in order. A failing sink
// stops the batch; sinks after it do not see it.
type MultiWriter struct {
	writers []OutputWriter
	mu      sync.Mutex
}

// NewMultiWriter combines writers, e.g. a CSV file and a bolt archive.
func NewMultiWriter(writers ...OutputWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write implements OutputWriter.
func (mw *MultiWriter) Write(records []*models.Record) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for _, w := range mw.writers {
		if err := w.Write(records); err != nil {
			return fmt.Errorf("%T: %w", w, err)
		}
	}
	return nil
}

// Close closes every sink, even when an earlier one fails.
func (mw *MultiWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []error
	for _, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %T: %w", w, err))
		}
	}
	return errors.Join(errs...)
}

// Validate reports every sink that received nothing.
func (mw *MultiWriter) Validate() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	if len(mw.writers) == 0 {
		return fmt.Errorf("no output sinks configured")
	}
	var errs []error
	for _, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("validate %T: %w", w, err))
		}
	}
	return errors.Join(errs...)
}
