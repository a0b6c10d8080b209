// Package dom implements webfill.Surface over static HTML. Pages are parsed
// with x/net/html and queried through goquery; writes mutate the parsed
// tree, and navigation follows links, form actions and in-page step
// toggles. It serves dry runs and browserless environments.
package dom

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/a3tai/mcp-grant-filler/internal/match"
	"github.com/a3tai/mcp-grant-filler/internal/webfill"
)

// Surface is a static HTML surface. It is not safe for concurrent use.
type Surface struct {
	loader Loader
	logger *zap.Logger

	base *url.URL
	docs []*document // docs[0] is the page, the rest are same-origin frames
}

var _ webfill.Surface = (*Surface)(nil)

// New creates a surface that fetches pages through loader
func New(loader Loader, logger *zap.Logger) *Surface {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Surface{loader: loader, logger: logger}
}

// Open implements webfill.Surface
func (s *Surface) Open(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	body, err := s.loader.Load(ctx, u.String())
	if err != nil {
		return err
	}
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}

	s.base = u
	s.docs = []*document{newDocument(0, root)}
	s.loadFrames(ctx)
	return nil
}

// loadFrames parses srcdoc and same-origin frames. Cross-origin frames are
// not readable from the page and are skipped silently.
func (s *Surface) loadFrames(ctx context.Context) {
	s.docs[0].doc.Find("iframe").Each(func(_ int, sel *goquery.Selection) {
		var body []byte
		if srcdoc, ok := sel.Attr("srcdoc"); ok {
			body = []byte(srcdoc)
		} else {
			src := strings.TrimSpace(attr(sel, "src"))
			if src == "" {
				return
			}
			ref, err := s.base.Parse(src)
			if err != nil || !sameOrigin(s.base, ref) {
				s.logger.Debug("skipping frame", zap.String("src", src))
				return
			}
			loaded, err := s.loader.Load(ctx, ref.String())
			if err != nil {
				s.logger.Debug("frame could not be loaded", zap.String("src", ref.String()), zap.Error(err))
				return
			}
			body = loaded
		}

		root, err := html.Parse(bytes.NewReader(body))
		if err != nil {
			s.logger.Debug("frame could not be parsed", zap.Error(err))
			return
		}
		frame := len(s.docs)
		sel.SetAttr(frameIndexAttr, strconv.Itoa(frame))
		s.docs = append(s.docs, newDocument(frame, root))
	})
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

func (s *Surface) document(frame int) (*document, error) {
	if frame < 0 || frame >= len(s.docs) {
		return nil, fmt.Errorf("frame %d is not available", frame)
	}
	return s.docs[frame], nil
}

func (s *Surface) element(f match.Field) (*document, *goquery.Selection, error) {
	d, err := s.document(f.Frame)
	if err != nil {
		return nil, nil, err
	}
	el, err := d.element(f.Index)
	if err != nil {
		return nil, nil, err
	}
	return d, el, nil
}

// Fields implements webfill.Surface
func (s *Surface) Fields(ctx context.Context) ([]match.Field, error) {
	if len(s.docs) == 0 {
		return nil, fmt.Errorf("no page is open")
	}
	var fields []match.Field
	for _, d := range s.docs {
		fields = append(fields, d.extract()...)
	}
	return fields, ctx.Err()
}

// Options implements webfill.Surface
func (s *Surface) Options(ctx context.Context, f match.Field) ([]webfill.Option, error) {
	d, err := s.document(f.Frame)
	if err != nil {
		return nil, err
	}
	return d.options(f)
}

// Fill implements webfill.Surface
func (s *Surface) Fill(ctx context.Context, f match.Field, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, el, err := s.element(f)
	if err != nil {
		return err
	}

	switch f.Type.Kind() {
	case match.KindTextLike:
		el.SetAttr("value", value)
	case match.KindTextarea, match.KindContentEditable:
		el.SetText(value)
	default:
		return fmt.Errorf("cannot fill a %s control", f.Type)
	}
	return nil
}

// Check implements webfill.Surface
func (s *Surface) Check(ctx context.Context, f match.Field, opt webfill.Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d, err := s.document(f.Frame)
	if err != nil {
		return err
	}
	el, err := d.element(opt.Index)
	if err != nil {
		return err
	}
	if _, disabled := el.Attr("disabled"); disabled {
		return fmt.Errorf("option %q is disabled", opt.Value)
	}

	if f.Type == match.ControlRadio && f.Name != "" {
		d.doc.Find(`input[type="radio"]` + match.AttrSelector("name", f.Name)).RemoveAttr("checked")
	}
	el.SetAttr("checked", "checked")
	return nil
}

// Select implements webfill.Surface
func (s *Surface) Select(ctx context.Context, f match.Field, values []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, el, err := s.element(f)
	if err != nil {
		return err
	}

	want := make(map[string]bool, len(values))
	for _, v := range values {
		want[v] = true
	}
	single := f.Type != match.ControlSelectMultiple
	chosen := false
	el.Find("option").Each(func(_ int, o *goquery.Selection) {
		if want[optionValue(o)] && !(single && chosen) {
			o.SetAttr("selected", "selected")
			chosen = true
			return
		}
		o.RemoveAttr("selected")
	})
	if !chosen {
		return fmt.Errorf("none of %v is an option of %s", values, f.Selector())
	}
	return nil
}

// Controls implements webfill.Surface
func (s *Surface) Controls(ctx context.Context) ([]webfill.Control, error) {
	if len(s.docs) == 0 {
		return nil, fmt.Errorf("no page is open")
	}
	return s.docs[0].controls(), ctx.Err()
}

// Activate implements webfill.Surface. A control either reveals an in-page
// step through aria-controls or navigates to the target of its link or form.
func (s *Surface) Activate(ctx context.Context, c webfill.Control) error {
	if len(s.docs) == 0 {
		return fmt.Errorf("no page is open")
	}
	main := s.docs[0]
	el := main.doc.Find(match.AttrSelector(navIndexAttr, c.Index)).First()
	if el.Length() == 0 {
		return fmt.Errorf("control %s is not attached to the document", c.Index)
	}
	if _, disabled := el.Attr("disabled"); disabled {
		return fmt.Errorf("control %q is disabled", c.Text)
	}

	if id := strings.TrimSpace(attr(el, "aria-controls")); id != "" {
		if main.reveal(id) {
			return nil
		}
	}

	target := navigationTarget(el)
	if target == "" {
		return fmt.Errorf("control %q has no navigation target", c.Text)
	}
	ref, err := s.base.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid navigation target %q: %w", target, err)
	}
	return s.Open(ctx, ref.String())
}

// navigationTarget resolves where activating el leads: a link's href, a
// button's formaction, or the enclosing form's action.
func navigationTarget(el *goquery.Selection) string {
	if goquery.NodeName(el) == "a" {
		href := strings.TrimSpace(attr(el, "href"))
		if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return ""
		}
		return href
	}
	for _, key := range []string{"formaction", "data-href"} {
		if v := strings.TrimSpace(attr(el, key)); v != "" {
			return v
		}
	}
	if form := el.Closest("form"); form.Length() > 0 {
		return strings.TrimSpace(attr(form, "action"))
	}
	return ""
}

// reveal shows the element with the given id and hides its same-tag
// siblings, the way step wizards switch panels.
func (d *document) reveal(id string) bool {
	target := d.doc.Find(match.AttrSelector("id", id)).First()
	if target.Length() == 0 {
		return false
	}
	tag := goquery.NodeName(target)
	target.Siblings().Each(func(_ int, sib *goquery.Selection) {
		if goquery.NodeName(sib) == tag {
			sib.SetAttr("hidden", "")
		}
	})
	target.RemoveAttr("hidden")
	if style, ok := target.Attr("style"); ok {
		target.SetAttr("style", strings.NewReplacer("display:none", "", "display: none", "").Replace(style))
	}
	return true
}

// Settle implements webfill.Surface. Static pages have nothing pending.
func (s *Surface) Settle(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Content implements webfill.Surface
func (s *Surface) Content(ctx context.Context) (string, error) {
	if len(s.docs) == 0 {
		return "", fmt.Errorf("no page is open")
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, s.docs[0].root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FrameContent returns the markup of a loaded frame
func (s *Surface) FrameContent(frame int) (string, error) {
	d, err := s.document(frame)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Close implements webfill.Surface
func (s *Surface) Close() error {
	s.docs = nil
	return nil
}
