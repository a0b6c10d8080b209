// Package browser implements webfill.Surface on a headless Chromium page
// driven through playwright-go.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// Default browser timings
const (
	DefaultNavigationTimeout = 60 * time.Second
	DefaultRenderWait        = 3 * time.Second
	DefaultActionTimeout     = 5 * time.Second
)

// Options configures the launcher
type Options struct {
	Headless          bool
	ExecutablePath    string
	InstallDriver     bool
	NavigationTimeout time.Duration
	RenderWait        time.Duration
	ActionTimeout     time.Duration
	Highlight         bool
	ViewportWidth     int
	ViewportHeight    int
}

// DefaultOptions returns headless defaults
func DefaultOptions() Options {
	return Options{
		Headless:          true,
		NavigationTimeout: DefaultNavigationTimeout,
		RenderWait:        DefaultRenderWait,
		ActionTimeout:     DefaultActionTimeout,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
	}
}

// Launcher owns one playwright driver and one browser process, started on
// first use and shared by every surface it creates.
type Launcher struct {
	opts   Options
	logger *zap.Logger

	once    sync.Once
	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	err     error
}

// NewLauncher creates a launcher; nothing starts until NewSurface is called
func NewLauncher(opts Options, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultOptions()
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = defaults.NavigationTimeout
	}
	if opts.RenderWait < 0 {
		opts.RenderWait = 0
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = defaults.ActionTimeout
	}
	if opts.ViewportWidth <= 0 || opts.ViewportHeight <= 0 {
		opts.ViewportWidth, opts.ViewportHeight = defaults.ViewportWidth, defaults.ViewportHeight
	}
	return &Launcher{opts: opts, logger: logger}
}

func (l *Launcher) start() error {
	l.once.Do(func() {
		if l.opts.InstallDriver {
			l.logger.Info("installing playwright driver")
			if err := playwright.Install(&playwright.RunOptions{SkipInstallBrowsers: true}); err != nil {
				l.logger.Warn("playwright driver installation failed", zap.Error(err))
			}
		}

		pw, err := playwright.Run()
		if err != nil {
			l.err = fmt.Errorf("starting playwright: %w", err)
			return
		}

		launch := playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(l.opts.Headless)}
		if l.opts.ExecutablePath != "" {
			launch.ExecutablePath = playwright.String(l.opts.ExecutablePath)
		}
		browser, err := pw.Chromium.Launch(launch)
		if err != nil {
			_ = pw.Stop()
			l.err = fmt.Errorf("launching browser: %w", err)
			return
		}

		l.mu.Lock()
		l.pw, l.browser = pw, browser
		l.mu.Unlock()
		l.logger.Info("browser launched", zap.Bool("headless", l.opts.Headless))
	})
	return l.err
}

// NewSurface opens a fresh browser context with one page. Each fill run
// should use its own surface.
func (l *Launcher) NewSurface(ctx context.Context) (*Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.start(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	browser := l.browser
	l.mu.Unlock()
	if browser == nil {
		return nil, fmt.Errorf("browser has been closed")
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: l.opts.ViewportWidth, Height: l.opts.ViewportHeight},
	})
	if err != nil {
		return nil, fmt.Errorf("creating browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("creating page: %w", err)
	}

	return newSurface(page, func() error { return bctx.Close() }, l.opts, l.logger), nil
}

// Close shuts the browser and the driver down
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	if l.browser != nil {
		if err := l.browser.Close(); err != nil {
			firstErr = err
		}
		l.browser = nil
	}
	if l.pw != nil {
		if err := l.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.pw = nil
	}
	return firstErr
}
