package match

import (
	"fmt"
	"regexp"
	"strings"
)

// ControlType is the native type of a form control
type ControlType string

const (
	ControlText            ControlType = "text"
	ControlEmail           ControlType = "email"
	ControlTel             ControlType = "tel"
	ControlURL             ControlType = "url"
	ControlSearch          ControlType = "search"
	ControlTextarea        ControlType = "textarea"
	ControlNumber          ControlType = "number"
	ControlDate            ControlType = "date"
	ControlRadio           ControlType = "radio"
	ControlCheckbox        ControlType = "checkbox"
	ControlSelectOne       ControlType = "select-one"
	ControlSelectMultiple  ControlType = "select-multiple"
	ControlContentEditable ControlType = "contenteditable"
)

// Kind is the closed set of control families a value writer handles
type Kind int

const (
	KindUnsupported Kind = iota
	KindTextLike
	KindTextarea
	KindRadio
	KindCheckbox
	KindSelect
	KindContentEditable
)

// String returns a string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindTextLike:
		return "text-like"
	case KindTextarea:
		return "textarea"
	case KindRadio:
		return "radio"
	case KindCheckbox:
		return "checkbox"
	case KindSelect:
		return "select"
	case KindContentEditable:
		return "contenteditable"
	default:
		return "unsupported"
	}
}

// Kind maps the native type onto its control family
func (t ControlType) Kind() Kind {
	switch t {
	case ControlText, ControlEmail, ControlTel, ControlURL, ControlSearch, ControlNumber, ControlDate:
		return KindTextLike
	case ControlTextarea:
		return KindTextarea
	case ControlRadio:
		return KindRadio
	case ControlCheckbox:
		return KindCheckbox
	case ControlSelectOne, ControlSelectMultiple:
		return KindSelect
	case ControlContentEditable:
		return KindContentEditable
	default:
		return KindUnsupported
	}
}

// ParseControlType derives the control type from a tag name and its type
// attribute. Inputs without a type attribute are text inputs.
func ParseControlType(tag, typeAttr string, multiple bool) ControlType {
	switch strings.ToLower(tag) {
	case "textarea":
		return ControlTextarea
	case "select":
		if multiple {
			return ControlSelectMultiple
		}
		return ControlSelectOne
	case "input":
		t := strings.ToLower(strings.TrimSpace(typeAttr))
		if t == "" {
			return ControlText
		}
		return ControlType(t)
	default:
		return ControlContentEditable
	}
}

// Field describes one control found on a rendered page. Fields are rebuilt
// on every extraction pass and never persisted.
type Field struct {
	Index       string      `json:"index"`
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name,omitempty"`
	Type        ControlType `json:"type"`
	Value       string      `json:"value,omitempty"`
	Label       string      `json:"labelText,omitempty"`
	Helper      string      `json:"helperText,omitempty"`
	GroupLabel  string      `json:"groupLabel,omitempty"`
	Placeholder string      `json:"placeholder,omitempty"`
	AriaLabel   string      `json:"ariaLabel,omitempty"`
	Required    bool        `json:"required,omitempty"`
	Frame       int         `json:"frame,omitempty"`
	Used        bool        `json:"-"`
}

// InFrame reports whether the field lives inside an iframe document
func (f Field) InFrame() bool {
	return f.Frame > 0
}

// Bundle is the concatenated descriptive text a question is compared with
func (f Field) Bundle() string {
	parts := []string{f.Label, f.Helper, f.GroupLabel, f.ID, f.Name, f.Placeholder, f.AriaLabel}
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// GroupKey identifies the radio or checkbox group the field belongs to.
// Unnamed controls form a group of one.
func (f Field) GroupKey() string {
	if f.Name == "" {
		return "#" + f.Index
	}
	return fmt.Sprintf("%d|%s", f.Frame, f.Name)
}

var cssIdentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Selector returns a locator string for the field that can be replayed
// against the same page state.
func (f Field) Selector() string {
	switch {
	case f.ID != "":
		if cssIdentPattern.MatchString(f.ID) {
			return "#" + f.ID
		}
		return AttrSelector("id", f.ID)
	case f.Name != "" && (f.Type == ControlRadio || f.Type == ControlCheckbox) && f.Value != "":
		return AttrSelector("name", f.Name) + AttrSelector("value", f.Value)
	case f.Name != "":
		return AttrSelector("name", f.Name)
	default:
		return IndexSelector(f.Index)
	}
}

// IndexSelector locates an element by its page-local extraction index
func IndexSelector(index string) string {
	return AttrSelector("data-field-index", index)
}

// AttrSelector builds an attribute-equality selector with the value escaped
func AttrSelector(attr, value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)
	return "[" + attr + `="` + escaped + `"]`
}
