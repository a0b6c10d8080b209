package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-grant-filler/internal/match"
	"github.com/a3tai/mcp-grant-filler/internal/webfill"
)

var (
	//go:embed scripts/fields.js
	fieldsScript string
	//go:embed scripts/options.js
	optionsScript string
	//go:embed scripts/controls.js
	controlsScript string
)

const (
	contentEditableScript = `(el, value) => {
  el.textContent = value;
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
}`
	highlightScript = `el => { el.style.outline = '3px solid #9333ea'; el.style.outlineOffset = '2px'; }`
)

// page is the part of playwright.Page the surface drives
type page interface {
	Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error)
	Evaluate(expression string, arg ...interface{}) (interface{}, error)
	Locator(selector string, options ...playwright.PageLocatorOptions) playwright.Locator
	FrameLocator(selector string) playwright.FrameLocator
	WaitForTimeout(timeout float64)
	WaitForLoadState(options ...playwright.PageWaitForLoadStateOptions) error
	Content() (string, error)
}

// Surface is a live browser page. It is not safe for concurrent use.
type Surface struct {
	page   page
	close  func() error
	opts   Options
	logger *zap.Logger
}

var _ webfill.Surface = (*Surface)(nil)

func newSurface(p page, closeFn func() error, opts Options, logger *zap.Logger) *Surface {
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return &Surface{page: p, close: closeFn, opts: opts, logger: logger}
}

// Open implements webfill.Surface. After the DOM is ready it gives client
// rendering a fixed wait and then waits for network idle, tolerating a
// network that never goes idle.
func (s *Surface) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.opts.NavigationTimeout.Milliseconds())),
	}); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	s.wait(ctx, s.opts.RenderWait)
	return nil
}

func (s *Surface) wait(ctx context.Context, d time.Duration) {
	if d > 0 {
		s.page.WaitForTimeout(float64(d.Milliseconds()))
	}
	if err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: s.timeout(ctx, s.opts.NavigationTimeout),
	}); err != nil {
		s.logger.Debug("network did not go idle", zap.Error(err))
	}
}

// timeout derives a playwright timeout in milliseconds from the context
// deadline, falling back to d.
func (s *Surface) timeout(ctx context.Context, d time.Duration) *float64 {
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining < time.Millisecond {
			remaining = time.Millisecond
		}
		if remaining < d || d <= 0 {
			d = remaining
		}
	}
	return playwright.Float(float64(d.Milliseconds()))
}

func (s *Surface) evaluateJSON(script string, out interface{}, arg ...interface{}) error {
	raw, err := s.page.Evaluate(script, arg...)
	if err != nil {
		return err
	}
	text, ok := raw.(string)
	if !ok {
		return fmt.Errorf("unexpected script result %T", raw)
	}
	return json.Unmarshal([]byte(text), out)
}

// Fields implements webfill.Surface
func (s *Surface) Fields(ctx context.Context) ([]match.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var fields []match.Field
	if err := s.evaluateJSON(fieldsScript, &fields); err != nil {
		return nil, fmt.Errorf("extracting fields: %w", err)
	}
	return fields, nil
}

// Options implements webfill.Surface
func (s *Surface) Options(ctx context.Context, f match.Field) ([]webfill.Option, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	args := map[string]interface{}{
		"frame": f.Frame,
		"index": f.Index,
		"name":  f.Name,
		"type":  string(f.Type),
	}
	var opts []webfill.Option
	if err := s.evaluateJSON(optionsScript, &opts, args); err != nil {
		return nil, fmt.Errorf("listing options of %s: %w", f.Selector(), err)
	}
	return opts, nil
}

// locate resolves an index selector inside the field's document
func (s *Surface) locate(frame int, index string) playwright.Locator {
	selector := match.IndexSelector(index)
	if frame > 0 {
		return s.page.FrameLocator(match.AttrSelector("data-frame-index", strconv.Itoa(frame))).Locator(selector).First()
	}
	return s.page.Locator(selector).First()
}

func (s *Surface) highlight(loc playwright.Locator) {
	if !s.opts.Highlight {
		return
	}
	if _, err := loc.Evaluate(highlightScript, nil); err != nil {
		s.logger.Debug("highlight failed", zap.Error(err))
	}
}

// Fill implements webfill.Surface
func (s *Surface) Fill(ctx context.Context, f match.Field, value string) error {
	loc := s.locate(f.Frame, f.Index)
	s.highlight(loc)

	if f.Type.Kind() == match.KindContentEditable {
		_, err := loc.Evaluate(contentEditableScript, value, playwright.LocatorEvaluateOptions{
			Timeout: s.timeout(ctx, s.opts.ActionTimeout),
		})
		return err
	}
	return loc.Fill(value, playwright.LocatorFillOptions{Timeout: s.timeout(ctx, s.opts.ActionTimeout)})
}

// Check implements webfill.Surface
func (s *Surface) Check(ctx context.Context, f match.Field, opt webfill.Option) error {
	loc := s.locate(f.Frame, opt.Index)
	s.highlight(loc)
	return loc.Check(playwright.LocatorCheckOptions{Timeout: s.timeout(ctx, s.opts.ActionTimeout)})
}

// Select implements webfill.Surface
func (s *Surface) Select(ctx context.Context, f match.Field, values []string) error {
	loc := s.locate(f.Frame, f.Index)
	s.highlight(loc)
	_, err := loc.SelectOption(playwright.SelectOptionValues{Values: &values}, playwright.LocatorSelectOptionOptions{
		Timeout: s.timeout(ctx, s.opts.ActionTimeout),
	})
	return err
}

// Controls implements webfill.Surface
func (s *Surface) Controls(ctx context.Context) ([]webfill.Control, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var controls []webfill.Control
	if err := s.evaluateJSON(controlsScript, &controls); err != nil {
		return nil, fmt.Errorf("listing controls: %w", err)
	}
	return controls, nil
}

// Activate implements webfill.Surface
func (s *Surface) Activate(ctx context.Context, c webfill.Control) error {
	loc := s.page.Locator(match.AttrSelector("data-nav-index", c.Index)).First()
	return loc.Click(playwright.LocatorClickOptions{Timeout: s.timeout(ctx, s.opts.ActionTimeout)})
}

// Settle implements webfill.Surface
func (s *Surface) Settle(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.wait(ctx, d)
	return ctx.Err()
}

// Content implements webfill.Surface
func (s *Surface) Content(ctx context.Context) (string, error) {
	return s.page.Content()
}

// Close releases the browser context backing the page
func (s *Surface) Close() error {
	return s.close()
}
