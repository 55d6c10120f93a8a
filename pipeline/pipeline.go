package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/oofd-receipts/models"
	"github.com/aluiziolira/oofd-receipts/parser"
	"github.com/aluiziolira/oofd-receipts/scraper"
)

// ErrPipelineClosed is returned when Run is called after Close.
var ErrPipelineClosed = errors.New("pipeline: closed")

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []*models.Record) error
	Close() error
	Validate() error
}

// Fetcher is the part of the scraper the pipeline drives.
type Fetcher interface {
	URLFromImageFile(path string) (string, error)
	URLFromParams(p scraper.Params) string
	FromURL(ctx context.Context, lookupURL string) (*models.Receipt, error)
}

// Source is one batch input: an image path, a lookup URL or manual
// parameters. Exactly one should be set.
type Source struct {
	ImagePath string
	URL       string
	Params    *scraper.Params
}

func (s Source) String() string {
	switch {
	case s.ImagePath != "":
		return s.ImagePath
	case s.URL != "":
		return s.URL
	case s.Params != nil:
		return fmt.Sprintf("i=%s f=%s", s.Params.ID, s.Params.FiscalID)
	default:
		return "<empty>"
	}
}

// Pipeline feeds sources through the scraper one at a time, skips repeated
// lookup URLs and writes the receipts in batches. A failed source is tallied
// and the run moves on to the next one. Each lookup URL is fetched at most
// once per run: a repeat of a failed URL is tallied again with the first
// error, a repeat of a scraped URL counts as a duplicate_url skip.
type Pipeline struct {
	fetcher   Fetcher
	writer    OutputWriter
	batchSize int
	now       func() time.Time

	seen    map[string]error
	metrics metrics
	closed  bool
}

// NewPipeline builds a pipeline that writes batches of up to 16 records.
func NewPipeline(fetcher Fetcher, writer OutputWriter) *Pipeline {
	return &Pipeline{
		fetcher:   fetcher,
		writer:    writer,
		batchSize: 16,
		now:       time.Now,
		seen:      make(map[string]error),
		metrics:   newMetrics(),
	}
}

// Run processes sources in order. It returns early only on cancellation or
// when the writer fails.
func (p *Pipeline) Run(ctx context.Context, sources []Source) (*models.BatchResult, error) {
	if p.closed {
		return nil, ErrPipelineClosed
	}

	result := &models.BatchResult{
		StartTime:    p.now(),
		ErrorsByType: make(map[string]int),
	}
	batch := make([]*models.Record, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.Write(batch); err != nil {
			return fmt.Errorf("write batch: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			result.EndTime = p.now()
			if flushErr := flush(); flushErr != nil {
				return result, flushErr
			}
			return result, err
		}

		record, err := p.process(ctx, source)
		if err != nil {
			kind := scraper.ErrorKind(err)
			result.ErrorCount++
			result.ErrorsByType[kind]++
			result.FailedInputs = append(result.FailedInputs, source.String())
			slog.Error("receipt failed",
				slog.String("input", source.String()),
				slog.String("category", kind),
				slog.Any("error", err),
			)
			continue
		}
		if record == nil {
			result.SkippedCount++
			continue
		}

		result.Records = append(result.Records, record)
		result.TotalCount++
		batch = append(batch, record)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}

	if err := flush(); err != nil {
		return result, err
	}
	result.EndTime = p.now()
	return result, nil
}

// process returns a nil record without error for skipped sources.
func (p *Pipeline) process(ctx context.Context, source Source) (*models.Record, error) {
	lookupURL, err := p.resolve(source)
	if err != nil {
		return nil, err
	}

	if prev, ok := p.seen[lookupURL]; ok {
		if prev != nil {
			slog.Info("not retrying failed receipt", slog.String("url", lookupURL))
			return nil, prev
		}
		p.metrics.addValidation("duplicate_url")
		slog.Info("skipping duplicate receipt", slog.String("url", lookupURL))
		return nil, nil
	}

	receipt, err := p.fetcher.FromURL(ctx, lookupURL)
	if err == nil {
		if err = parser.ValidateReceipt(receipt); err != nil {
			p.metrics.addValidation("invalid_record")
		}
	}
	p.seen[lookupURL] = err
	if err != nil {
		return nil, err
	}

	p.metrics.incrementProcessed()
	return &models.Record{
		URL:       lookupURL,
		ScrapedAt: p.now(),
		Receipt:   *receipt,
	}, nil
}

func (p *Pipeline) resolve(source Source) (string, error) {
	switch {
	case source.ImagePath != "":
		return p.fetcher.URLFromImageFile(source.ImagePath)
	case source.URL != "":
		return source.URL, nil
	case source.Params != nil:
		return p.fetcher.URLFromParams(*source.Params), nil
	default:
		return "", fmt.Errorf("empty source")
	}
}

// Close closes the writer. Run fails with ErrPipelineClosed afterwards.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

type metrics struct {
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.processed++
}

func (m *metrics) addValidation(kind string) {
	m.validation[kind]++
}

func (m *metrics) snapshot() map[string]interface{} {
	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_receipts": m.processed,
		"validation_errors":  copyValidation,
	}
}
