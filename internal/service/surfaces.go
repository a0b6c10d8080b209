package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-grant-filler/internal/webfill"
	"github.com/a3tai/mcp-grant-filler/internal/webfill/browser"
	"github.com/a3tai/mcp-grant-filler/internal/webfill/dom"
)

// Surfaces opens a fresh surface for each fill run or web extraction
type Surfaces interface {
	NewSurface(ctx context.Context) (webfill.Surface, error)
	// Name labels metrics and server info
	Name() string
}

// StaticSurfaces serves HTML-only surfaces over a loader
type StaticSurfaces struct {
	Loader dom.Loader
	Logger *zap.Logger
}

// NewSurface implements Surfaces
func (s StaticSurfaces) NewSurface(ctx context.Context) (webfill.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return dom.New(s.Loader, s.Logger), nil
}

// Name implements Surfaces
func (StaticSurfaces) Name() string { return "static" }

// BrowserSurfaces serves playwright pages from a shared launcher
type BrowserSurfaces struct {
	Launcher *browser.Launcher
	// KeepOpen leaves pages open after a run so an operator can review and
	// submit them by hand
	KeepOpen bool
}

// NewSurface implements Surfaces
func (b BrowserSurfaces) NewSurface(ctx context.Context) (webfill.Surface, error) {
	s, err := b.Launcher.NewSurface(ctx)
	if err != nil {
		return nil, err
	}
	if b.KeepOpen {
		return keepOpen{s}, nil
	}
	return s, nil
}

// Name implements Surfaces
func (BrowserSurfaces) Name() string { return "browser" }

type keepOpen struct {
	webfill.Surface
}

func (keepOpen) Close() error { return nil }
