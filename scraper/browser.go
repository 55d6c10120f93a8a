package scraper

import (
	"context"
	"fmt"

	"github.com/aluiziolira/oofd-receipts/config"
)

// Browser starts isolated rendering sessions. Each request gets its own
// session; sessions are never pooled or reused.
type Browser interface {
	Open(ctx context.Context) (Session, error)
}

// Session renders pages until it is closed. Close must release every
// resource the session holds, including any browser process.
type Session interface {
	Render(ctx context.Context, url string) (string, error)
	Close() error
}

// NewBrowser builds the browser named by cfg.Renderer.
func NewBrowser(cfg *config.Config) (Browser, error) {
	switch cfg.Renderer {
	case config.RendererChrome:
		return &ChromeBrowser{
			ExecPath:      cfg.ChromePath,
			UserAgent:     cfg.UserAgent,
			ReadySelector: cfg.ReadySelector,
			Timeout:       cfg.RenderTimeout,
		}, nil
	case config.RendererStatic:
		return &StaticBrowser{
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.RenderTimeout,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported renderer: %s", cfg.Renderer)
	}
}
