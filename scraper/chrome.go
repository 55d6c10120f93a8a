package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/oofd-receipts/parser"
	"github.com/chromedp/chromedp"
)

// ChromeBrowser renders pages in a headless Chrome driven over the DevTools
// protocol. Every Open launches a fresh browser process.
type ChromeBrowser struct {
	ExecPath      string
	UserAgent     string
	ReadySelector string
	Timeout       time.Duration
}

// Open implements Browser.
func (b *ChromeBrowser) Open(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}
	if b.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			slog.Debug(fmt.Sprintf(format, args...), slog.String("component", "chromedp"))
		}),
	)

	// An empty Run starts the browser so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &chromeSession{
		ctx:           browserCtx,
		cancel:        browserCancel,
		allocCancel:   allocCancel,
		readySelector: b.ReadySelector,
		timeout:       b.Timeout,
	}, nil
}

type chromeSession struct {
	ctx           context.Context
	cancel        context.CancelFunc
	allocCancel   context.CancelFunc
	readySelector string
	timeout       time.Duration
}

// Render navigates to url and waits for the ready selector instead of
// sleeping for a fixed settling delay.
func (s *chromeSession) Render(ctx context.Context, url string) (string, error) {
	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return "", renderFailure("navigate", s.readySelector, s.timeout, err)
	}

	var page string
	err := chromedp.Run(runCtx,
		chromedp.WaitReady(s.readySelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &page, chromedp.ByQuery),
	)
	if err != nil {
		return "", renderFailure("capture html", s.readySelector, s.timeout, err)
	}
	return page, nil
}

// renderFailure maps an error from a bounded render step. Running out of
// time means the ready selector never showed up, which is reported as a
// StructureError whether the deadline hit during navigation or the wait.
// Everything else, cancellation included, is returned wrapped with step.
func renderFailure(step, selector string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &parser.StructureError{
			Element: selector,
			Err:     fmt.Errorf("not rendered within %s: %w", timeout, err),
		}
	}
	return fmt.Errorf("%s: %w", step, err)
}

// Close shuts the browser down and waits for the process to exit.
func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	s.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}
