package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

var errSessionClosed = errors.New("session closed")

// StaticBrowser fetches the server-delivered HTML with a colly collector and
// runs no scripts. It suits prerendered mirrors of the receipt page.
type StaticBrowser struct {
	UserAgent string
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Open implements Browser. Each session gets its own collector.
func (b *StaticBrowser) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts []colly.CollectorOption
	if b.UserAgent != "" {
		opts = append(opts, colly.UserAgent(b.UserAgent))
	}
	collector := colly.NewCollector(opts...)
	collector.IgnoreRobotsTxt = true
	if b.Timeout > 0 {
		collector.SetRequestTimeout(b.Timeout)
	}

	transport := b.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: b.Timeout,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
	collector.WithTransport(transport)

	return &staticSession{collector: collector}, nil
}

type staticSession struct {
	collector *colly.Collector
}

// Render implements Session.
func (s *staticSession) Render(ctx context.Context, url string) (string, error) {
	if s.collector == nil {
		return "", errSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var page []byte
	status := 0
	s.collector.OnResponse(func(r *colly.Response) {
		page = r.Body
	})
	s.collector.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})
	if err := s.collector.Visit(url); err != nil {
		if status != 0 {
			return "", &StatusError{StatusCode: status, Err: err}
		}
		return "", fmt.Errorf("fetch: %w", err)
	}
	if len(page) == 0 {
		return "", fmt.Errorf("fetch: empty response body")
	}
	return string(page), nil
}

// Close implements Session.
func (s *staticSession) Close() error {
	s.collector = nil
	return nil
}
