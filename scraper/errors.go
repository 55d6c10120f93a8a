package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/aluiziolira/oofd-receipts/parser"
	"github.com/aluiziolira/oofd-receipts/qrcode"
)

// Error kinds reported by ErrorKind.
const (
	KindDecode    = "decode"
	KindStructure = "structure"
	KindFormat    = "format"
	KindRender    = "render"
	KindOther     = "other"
)

// Render failure reasons, carried in RenderError.Reason.
const (
	ReasonLaunch      = "launch"
	ReasonTimeout     = "timeout"
	ReasonConnection  = "connection"
	ReasonForbidden   = "forbidden"
	ReasonNotFound    = "not_found"
	ReasonRateLimited = "rate_limited"
	ReasonHTTPStatus  = "http_status"
	ReasonOther       = "other"
)

// RenderError indicates the browser could not load or capture a page.
type RenderError struct {
	URL    string
	Reason string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.URL, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// StatusError is a non-success HTTP response from the lookup service.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func newRenderError(url string, err error) *RenderError {
	return &RenderError{URL: url, Reason: renderReason(err), Err: err}
}

// renderReason sorts a render failure into one of the Reason constants.
func renderReason(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusForbidden:
			return ReasonForbidden
		case http.StatusNotFound:
			return ReasonNotFound
		case http.StatusTooManyRequests:
			return ReasonRateLimited
		default:
			return ReasonHTTPStatus
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return ReasonConnection
	}
	// Chrome reports navigation failures as net::ERR_* text.
	if strings.Contains(err.Error(), "net::ERR_") {
		return ReasonConnection
	}
	return ReasonOther
}

// ErrorKind labels err by its place in the error taxonomy. Decode and format
// errors mean bad input; structure errors mean the page changed or the
// lookup service rejected the request.
func ErrorKind(err error) string {
	if err == nil {
		return "unknown"
	}
	var decodeErr *qrcode.DecodeError
	if errors.As(err, &decodeErr) {
		return KindDecode
	}
	var structErr *parser.StructureError
	if errors.As(err, &structErr) {
		return KindStructure
	}
	var formatErr *parser.FormatError
	if errors.As(err, &formatErr) {
		return KindFormat
	}
	var renderErr *RenderError
	if errors.As(err, &renderErr) {
		return KindRender
	}
	return KindOther
}

// ErrorLabel is ErrorKind with render failures split by reason, e.g.
// "render_not_found". It labels the errors metric.
func ErrorLabel(err error) string {
	var renderErr *RenderError
	if errors.As(err, &renderErr) && renderErr.Reason != "" && ErrorKind(err) == KindRender {
		return KindRender + "_" + renderErr.Reason
	}
	return ErrorKind(err)
}
