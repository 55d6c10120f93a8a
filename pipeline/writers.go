package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aluiziolira/oofd-receipts/models"
)

var csvHeader = []string{
	"url", "scraped_at", "timestamp", "seller", "receipt_total",
	"item_index", "item_name", "item_price", "item_quantity", "item_total",
}

// CSVWriter writes one row per line item.
type CSVWriter struct {
	file    *os.File
	writer  *csv.Writer
	records int
	mu      sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends the line items of each record.
func (cw *CSVWriter) Write(records []*models.Record) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, record := range records {
		receipt := record.Receipt
		for _, item := range receipt.Items {
			row := []string{
				record.URL,
				record.ScrapedAt.Format(time.RFC3339),
				receipt.Timestamp.Format(time.RFC3339),
				receipt.Seller,
				receipt.Total.String(),
				strconv.Itoa(item.Index),
				item.Name,
				item.Price.String(),
				item.Quantity.String(),
				item.Total.String(),
			}
			if err := cw.writer.Write(row); err != nil {
				return fmt.Errorf("write csv record: %w", err)
			}
		}
		cw.records++
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures at least one receipt was written.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.records == 0 {
		return fmt.Errorf("csv file has no receipts")
	}
	return nil
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	closer  io.Closer
	writer  *bufio.Writer
	encoder *json.Encoder
	records int
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer on a new file.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}
	jw := NewJSONStreamWriter(f)
	jw.closer = f
	return jw, nil
}

// NewJSONStreamWriter writes JSONL to w, which it never closes.
func NewJSONStreamWriter(w io.Writer) *JSONWriter {
	buffer := bufio.NewWriter(w)
	return &JSONWriter{
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}
}

// Write appends records in JSONL format.
func (jw *JSONWriter) Write(records []*models.Record) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, record := range records {
		if err := jw.encoder.Encode(record); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
		jw.records++
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close flushes buffers and closes the underlying file, if any.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	if jw.closer == nil {
		return nil
	}
	return jw.closer.Close()
}

// Validate ensures at least one receipt was written.
func (jw *JSONWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	if jw.records == 0 {
		return fmt.Errorf("json output has no receipts")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
