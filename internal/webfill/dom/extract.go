package dom

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/a3tai/mcp-grant-filler/internal/match"
	"github.com/a3tai/mcp-grant-filler/internal/webfill"
)

const (
	indexAttr      = "data-field-index"
	navIndexAttr   = "data-nav-index"
	frameIndexAttr = "data-frame-index"

	controlSelector  = "input, textarea, select"
	editableSelector = "[contenteditable]"
	buttonSelector   = `button, input[type="button"], input[type="submit"], a[role="button"]`
	helperSelector   = "span, small, p, div, em"

	// minHelperLen is the length a nested label fragment needs to count as helper text
	minHelperLen = 20
)

// nonEditableInputs never receive answers
var nonEditableInputs = map[string]bool{
	"hidden": true, "submit": true, "button": true, "reset": true, "image": true,
}

// document is one parsed HTML document: the page itself or a same-origin frame
type document struct {
	frame int
	root  *html.Node
	doc   *goquery.Document
}

func newDocument(frame int, root *html.Node) *document {
	return &document{frame: frame, root: root, doc: goquery.NewDocumentFromNode(root)}
}

func (d *document) prefix() string {
	if d.frame == 0 {
		return ""
	}
	return fmt.Sprintf("f%d-", d.frame)
}

// extract tags every control with a page-local index and describes the
// visible, enabled, editable ones.
func (d *document) extract() []match.Field {
	var fields []match.Field

	d.doc.Find(controlSelector).Each(func(i int, sel *goquery.Selection) {
		index := d.prefix() + strconv.Itoa(i)
		sel.SetAttr(indexAttr, index)

		if goquery.NodeName(sel) == "input" && nonEditableInputs[strings.ToLower(attr(sel, "type"))] {
			return
		}
		if !visible(sel) || !editable(sel) {
			return
		}
		fields = append(fields, d.describe(sel, index))
	})

	d.doc.Find(editableSelector).Each(func(i int, sel *goquery.Selection) {
		if strings.EqualFold(strings.TrimSpace(attr(sel, "contenteditable")), "false") {
			return
		}
		index := d.prefix() + "contenteditable-" + strconv.Itoa(i)
		sel.SetAttr(indexAttr, index)
		if !visible(sel) {
			return
		}
		f := d.describe(sel, index)
		f.Type = match.ControlContentEditable
		f.Name = ""
		if f.Placeholder == "" {
			f.Placeholder = attr(sel, "data-placeholder")
		}
		fields = append(fields, f)
	})

	return fields
}

func (d *document) describe(sel *goquery.Selection, index string) match.Field {
	_, multiple := sel.Attr("multiple")
	_, required := sel.Attr("required")

	f := match.Field{
		Index:       index,
		ID:          attr(sel, "id"),
		Name:        attr(sel, "name"),
		Type:        match.ParseControlType(goquery.NodeName(sel), attr(sel, "type"), multiple),
		Placeholder: cleanText(attr(sel, "placeholder")),
		AriaLabel:   cleanText(attr(sel, "aria-label")),
		Required:    required || strings.EqualFold(attr(sel, "aria-required"), "true"),
		Frame:       d.frame,
	}
	if f.Type == match.ControlRadio || f.Type == match.ControlCheckbox {
		f.Value = inputValue(sel)
	}

	if label := d.findLabel(sel); label != nil {
		f.Label = labelText(label)
		f.Helper = helperText(label)
	}
	if described := d.describedBy(sel); described != "" {
		f.Helper = described
	}
	f.GroupLabel = groupLabel(sel)
	return f
}

// findLabel resolves a label by for=id, then a wrapping label, then an
// immediately preceding sibling label.
func (d *document) findLabel(sel *goquery.Selection) *goquery.Selection {
	if id := attr(sel, "id"); id != "" {
		if l := d.doc.Find("label" + match.AttrSelector("for", id)).First(); l.Length() > 0 {
			return l
		}
	}
	if l := sel.Closest("label"); l.Length() > 0 {
		return l
	}
	if prev := sel.Prev(); prev.Length() > 0 && goquery.NodeName(prev) == "label" {
		return prev
	}
	return nil
}

func (d *document) describedBy(sel *goquery.Selection) string {
	var parts []string
	for _, id := range strings.Fields(attr(sel, "aria-describedby")) {
		if t := cleanText(d.doc.Find(match.AttrSelector("id", id)).First().Text()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// options lists the choices available for f: the options of a select, or
// every input sharing f's name and type in f's document, hidden or not.
func (d *document) options(f match.Field) ([]webfill.Option, error) {
	el, err := d.element(f.Index)
	if err != nil {
		return nil, err
	}

	var out []webfill.Option
	if goquery.NodeName(el) == "select" {
		el.Find("option").Each(func(i int, o *goquery.Selection) {
			_, selected := o.Attr("selected")
			out = append(out, webfill.Option{
				Index:   f.Index + ":" + strconv.Itoa(i),
				Value:   optionValue(o),
				Label:   cleanText(o.Text()),
				Checked: selected,
			})
		})
		return out, nil
	}

	members := el
	if f.Name != "" {
		members = d.doc.Find("input" + match.AttrSelector("name", f.Name))
	}
	members.Each(func(_ int, m *goquery.Selection) {
		if !strings.EqualFold(attr(m, "type"), string(f.Type)) {
			return
		}
		_, checked := m.Attr("checked")
		opt := webfill.Option{
			Index:   attr(m, indexAttr),
			Value:   inputValue(m),
			Checked: checked,
		}
		if label := d.findLabel(m); label != nil {
			opt.Label = labelText(label)
		}
		out = append(out, opt)
	})
	return out, nil
}

func (d *document) element(index string) (*goquery.Selection, error) {
	el := d.doc.Find(match.IndexSelector(index)).First()
	if el.Length() == 0 {
		return nil, fmt.Errorf("element %s is not attached to the document", index)
	}
	return el, nil
}

// controls returns the visible button-like controls with their combined text
func (d *document) controls() []webfill.Control {
	var out []webfill.Control
	d.doc.Find(buttonSelector).Each(func(i int, sel *goquery.Selection) {
		index := "nav-" + strconv.Itoa(i)
		sel.SetAttr(navIndexAttr, index)
		if !visible(sel) {
			return
		}
		text := cleanText(strings.Join([]string{
			sel.Text(), attr(sel, "value"), attr(sel, "aria-label"), attr(sel, "title"),
		}, " "))
		out = append(out, webfill.Control{Index: index, Text: text})
	})
	return out
}

func attr(sel *goquery.Selection, name string) string {
	v, _ := sel.Attr(name)
	return v
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// inputValue mirrors the DOM value of a radio or checkbox, which defaults to "on"
func inputValue(sel *goquery.Selection) string {
	if v, ok := sel.Attr("value"); ok {
		return v
	}
	return "on"
}

func optionValue(o *goquery.Selection) string {
	if v, ok := o.Attr("value"); ok {
		return v
	}
	return cleanText(o.Text())
}

// labelText is the label's own text without the text of nested controls
func labelText(label *goquery.Selection) string {
	clone := label.Clone()
	clone.Find("input, select, textarea, option").Remove()
	return cleanText(clone.Text())
}

func helperText(label *goquery.Selection) string {
	var parts []string
	label.Find(helperSelector).Each(func(_ int, s *goquery.Selection) {
		if t := cleanText(s.Text()); len(t) > minHelperLen {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

func groupLabel(sel *goquery.Selection) string {
	fieldset := sel.Closest("fieldset")
	if fieldset.Length() == 0 {
		return ""
	}
	return cleanText(fieldset.ChildrenFiltered("legend").First().Text())
}

// visible approximates computed visibility from markup: the hidden
// attribute and inline display, visibility and opacity on the element or
// any ancestor.
func visible(sel *goquery.Selection) bool {
	if len(sel.Nodes) == 0 {
		return false
	}
	for n := sel.Nodes[0]; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if hasAttr(n, "hidden") {
			return false
		}
		style := inlineStyle(n)
		if style["display"] == "none" || style["visibility"] == "hidden" {
			return false
		}
		if op, ok := style["opacity"]; ok {
			if v, err := strconv.ParseFloat(op, 64); err == nil && v == 0 {
				return false
			}
		}
	}
	return true
}

// editable rejects disabled and read-only controls
func editable(sel *goquery.Selection) bool {
	if _, ok := sel.Attr("disabled"); ok {
		return false
	}
	if _, ok := sel.Attr("readonly"); ok {
		return false
	}
	return sel.Closest("fieldset[disabled]").Length() == 0
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func inlineStyle(n *html.Node) map[string]string {
	var raw string
	for _, a := range n.Attr {
		if a.Key == "style" {
			raw = a.Val
			break
		}
	}
	if raw == "" {
		return nil
	}

	out := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		prop, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "!important"))
		out[strings.ToLower(strings.TrimSpace(prop))] = strings.ToLower(strings.TrimSpace(value))
	}
	return out
}
