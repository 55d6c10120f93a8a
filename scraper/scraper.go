// Package scraper resolves receipt inputs to lookup URLs, renders the lookup
// page in a scoped browser session and hands the HTML to the parser.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/aluiziolira/oofd-receipts/config"
	"github.com/aluiziolira/oofd-receipts/models"
	"github.com/aluiziolira/oofd-receipts/parser"
	"github.com/aluiziolira/oofd-receipts/qrcode"
)

// Scraper turns QR images, manual parameters or lookup URLs into receipts.
// Requests are independent and run synchronously.
type Scraper struct {
	browser Browser
	decoder qrcode.Decoder
	baseURL string
	opts    parser.Options
	Metrics *Metrics
}

// Option customizes a Scraper.
type Option func(*Scraper)

// WithBrowser replaces the renderer chosen by the config.
func WithBrowser(b Browser) Option {
	return func(s *Scraper) {
		s.browser = b
	}
}

// WithDecoder replaces the default gozxing decoder.
func WithDecoder(d qrcode.Decoder) Option {
	return func(s *Scraper) {
		s.decoder = d
	}
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config, options ...Option) (*Scraper, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	s := &Scraper{
		decoder: qrcode.NewZXingDecoder(),
		baseURL: cfg.LookupBaseURL,
		opts:    parser.Options{Location: loc},
		Metrics: NewMetrics(),
	}
	for _, option := range options {
		option(s)
	}
	if s.browser == nil {
		if s.browser, err = NewBrowser(cfg); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// URLFromImage decodes the first QR code in img into a lookup URL.
func (s *Scraper) URLFromImage(img image.Image) (string, error) {
	payload, err := qrcode.First(s.decoder, img)
	if err != nil {
		s.recordError(err)
		return "", err
	}
	lookupURL := payload.Text()
	if p, err := ParseURL(lookupURL); err == nil {
		slog.Debug("decoded receipt code",
			slog.String("id", p.ID),
			slog.String("fiscal_id", p.FiscalID),
			slog.String("total", p.Total.String()),
		)
	} else {
		slog.Warn("qr payload is not a lookup url", slog.String("payload", lookupURL), slog.Any("error", err))
	}
	return lookupURL, nil
}

// URLFromImageFile loads an image from disk and decodes its QR code.
func (s *Scraper) URLFromImageFile(path string) (string, error) {
	img, err := qrcode.LoadFile(path)
	if err != nil {
		s.recordError(err)
		return "", fmt.Errorf("load %s: %w", path, err)
	}
	return s.URLFromImage(img)
}

// URLFromParams builds the lookup URL for manually entered parameters.
func (s *Scraper) URLFromParams(p Params) string {
	return BuildURL(s.baseURL, p)
}

// FromImage scrapes the receipt referenced by the QR code in img. No page is
// fetched when the image has no barcode.
func (s *Scraper) FromImage(ctx context.Context, img image.Image) (*models.Receipt, error) {
	lookupURL, err := s.URLFromImage(img)
	if err != nil {
		return nil, err
	}
	return s.FromURL(ctx, lookupURL)
}

// FromImageFile is FromImage for an image on disk.
func (s *Scraper) FromImageFile(ctx context.Context, path string) (*models.Receipt, error) {
	lookupURL, err := s.URLFromImageFile(path)
	if err != nil {
		return nil, err
	}
	return s.FromURL(ctx, lookupURL)
}

// FromParams scrapes the receipt identified by manual parameters.
func (s *Scraper) FromParams(ctx context.Context, p Params) (*models.Receipt, error) {
	return s.FromURL(ctx, s.URLFromParams(p))
}

// FromURL renders lookupURL and extracts the receipt. The browser session is
// closed before extraction starts, whatever the outcome.
func (s *Scraper) FromURL(ctx context.Context, lookupURL string) (*models.Receipt, error) {
	page, err := s.render(ctx, lookupURL)
	if err != nil {
		s.recordError(err)
		return nil, err
	}

	receipt, err := parser.ExtractString(page, s.opts)
	if err != nil {
		s.recordError(err)
		return nil, fmt.Errorf("extract %s: %w", lookupURL, err)
	}

	s.Metrics.IncReceipt(len(receipt.Items))
	slog.Debug("receipt extracted",
		slog.String("url", lookupURL),
		slog.String("seller", receipt.Seller),
		slog.Int("items", len(receipt.Items)),
		slog.String("total", receipt.Total.String()),
	)
	return receipt, nil
}

func (s *Scraper) render(ctx context.Context, lookupURL string) (string, error) {
	session, err := s.browser.Open(ctx)
	if err != nil {
		return "", &RenderError{URL: lookupURL, Reason: ReasonLaunch, Err: fmt.Errorf("open session: %w", err)}
	}
	s.Metrics.SessionOpened()
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("close browser session", slog.String("url", lookupURL), slog.Any("error", err))
		}
		s.Metrics.SessionClosed()
	}()

	start := time.Now()
	page, err := session.Render(ctx, lookupURL)
	s.Metrics.ObserveDuration(time.Since(start))
	if err != nil {
		var structErr *parser.StructureError
		if errors.As(err, &structErr) {
			return "", fmt.Errorf("render %s: %w", lookupURL, err)
		}
		return "", newRenderError(lookupURL, err)
	}
	return page, nil
}

func (s *Scraper) recordError(err error) {
	label := ErrorLabel(err)
	s.Metrics.IncError(label)
	slog.Debug("scrape failed", slog.String("category", label), slog.Any("error", err))
}
