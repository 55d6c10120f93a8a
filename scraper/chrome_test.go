package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/oofd-receipts/parser"
)

func TestRenderFailure(t *testing.T) {
	boom := errors.New("net::ERR_CONNECTION_REFUSED")
	tests := []struct {
		name          string
		step          string
		err           error
		wantStructure bool
		wantIs        error
	}{
		{name: "wait deadline", step: "capture html", err: context.DeadlineExceeded, wantStructure: true, wantIs: context.DeadlineExceeded},
		{name: "navigate deadline", step: "navigate", err: fmt.Errorf("page load: %w", context.DeadlineExceeded), wantStructure: true, wantIs: context.DeadlineExceeded},
		{name: "cancelled", step: "navigate", err: context.Canceled, wantIs: context.Canceled},
		{name: "other", step: "navigate", err: boom, wantIs: boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := renderFailure(tt.step, "app-ticket-items", 5*time.Second, tt.err)
			var structErr *parser.StructureError
			if got := errors.As(err, &structErr); got != tt.wantStructure {
				t.Fatalf("StructureError = %v, want %v (err=%v)", got, tt.wantStructure, err)
			}
			if tt.wantStructure && structErr.Element != "app-ticket-items" {
				t.Fatalf("element = %q", structErr.Element)
			}
			if !tt.wantStructure && !strings.HasPrefix(err.Error(), tt.step+": ") {
				t.Fatalf("error %q not prefixed with step %q", err, tt.step)
			}
			if !errors.Is(err, tt.wantIs) {
				t.Fatalf("expected %v in chain, got %v", tt.wantIs, err)
			}
		})
	}
}

func chromeForTest(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping headless chrome in short mode")
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("chrome not installed")
	return ""
}

func TestChromeBrowserMissingSelector(t *testing.T) {
	execPath := chromeForTest(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><app-ticket><p>Чек не найден</p></app-ticket></body></html>`)
	}))
	defer server.Close()

	browser := &ChromeBrowser{
		ExecPath:      execPath,
		ReadySelector: "app-ticket-items",
		Timeout:       3 * time.Second,
	}
	session, err := browser.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	_, err = session.Render(context.Background(), server.URL)
	var structErr *parser.StructureError
	if !errors.As(err, &structErr) {
		t.Fatalf("expected StructureError, got %v", err)
	}
	if structErr.Element != "app-ticket-items" {
		t.Fatalf("element = %q", structErr.Element)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestChromeBrowserRendersPage(t *testing.T) {
	execPath := chromeForTest(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><app-ticket><app-ticket-items></app-ticket-items></app-ticket></body></html>`)
	}))
	defer server.Close()

	browser := &ChromeBrowser{
		ExecPath:      execPath,
		ReadySelector: "app-ticket-items",
		Timeout:       10 * time.Second,
	}
	session, err := browser.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer session.Close()

	page, err := session.Render(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(page, "<app-ticket-items>") {
		t.Fatalf("page missing items container: %s", page)
	}
}
