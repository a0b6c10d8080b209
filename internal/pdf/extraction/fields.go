// Package extraction enumerates the interactive AcroForm fields of a PDF.
package extraction

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-grant-filler/internal/pdf/security"
)

// FieldType is the native kind of an AcroForm field
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeCheckbox  FieldType = "checkbox"
	FieldTypeRadio     FieldType = "radio"
	FieldTypeComboBox  FieldType = "combobox"
	FieldTypeListBox   FieldType = "listbox"
	FieldTypeButton    FieldType = "button"
	FieldTypeSignature FieldType = "signature"
	FieldTypeUnknown   FieldType = "unknown"
)

// Field flag bits (PDF 32000-1, 12.7.3.1 and following)
const (
	flagReadOnly    = 1 << 0
	flagRequired    = 1 << 1
	flagMultiline   = 1 << 12
	flagRadio       = 1 << 15
	flagPushButton  = 1 << 16
	flagCombo       = 1 << 17
	flagMultiSelect = 1 << 21
)

// maxFieldDepth bounds recursion through malformed field trees
const maxFieldDepth = 32

// Field is one terminal AcroForm field
type Field struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Value       string    `json:"value,omitempty"`
	Options     []string  `json:"options,omitempty"`
	MaxLen      int       `json:"max_len,omitempty"`
	Multiline   bool      `json:"multiline,omitempty"`
	MultiSelect bool      `json:"multi_select,omitempty"`
	Required    bool      `json:"required,omitempty"`
	ReadOnly    bool      `json:"read_only,omitempty"`
}

// Writable reports whether values can be written into the field
func (f Field) Writable() bool {
	if f.ReadOnly {
		return false
	}
	switch f.Type {
	case FieldTypeText, FieldTypeCheckbox, FieldTypeRadio, FieldTypeComboBox, FieldTypeListBox:
		return true
	default:
		return false
	}
}

// Extractor reads AcroForm fields through pdfcpu
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a field extractor
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// ExtractFromFile extracts all form fields from a PDF file
func (e *Extractor) ExtractFromFile(filePath string) ([]Field, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()

	return e.ExtractFromReader(file)
}

// ExtractFromBytes extracts all form fields from an in-memory PDF
func (e *Extractor) ExtractFromBytes(data []byte) ([]Field, error) {
	return e.ExtractFromReader(bytes.NewReader(data))
}

// ExtractFromReader extracts all form fields from a PDF stream. A document
// without an AcroForm yields no fields and no error.
func (e *Extractor) ExtractFromReader(reader io.ReadSeeker) ([]Field, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(reader, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	fields, err := e.extractFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if perms := documentPermissions(ctx); !perms.CanFillForms() {
		e.logger.Info("document permissions forbid form filling, fields are read-only",
			zap.String("permissions", perms.String()))
		for i := range fields {
			fields[i].ReadOnly = true
		}
	}
	return fields, nil
}

// documentPermissions reads the user permissions of an encrypted document
func documentPermissions(ctx *model.Context) security.Permissions {
	if ctx.E == nil {
		return security.FullPermissions()
	}
	return security.NewPermissions(int32(ctx.E.P))
}

func (e *Extractor) extractFromContext(ctx *model.Context) ([]Field, error) {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		e.logger.Debug("no AcroForm dictionary in document")
		return nil, nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil, nil
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	var fields []Field
	for i, ref := range fieldsArray {
		if err := e.walk(ctx, ref, inherited{}, 0, &fields); err != nil {
			e.logger.Debug("skipping malformed field", zap.Int("index", i), zap.Error(err))
		}
	}
	return fields, nil
}

// inherited carries the attributes a kid field takes from its ancestors
type inherited struct {
	name string
	ft   string
	ff   int
}

func (e *Extractor) walk(ctx *model.Context, obj types.Object, parent inherited, depth int, out *[]Field) error {
	if depth > maxFieldDepth {
		return fmt.Errorf("field tree deeper than %d", maxFieldDepth)
	}
	dict, err := ctx.DereferenceDict(obj)
	if err != nil {
		return fmt.Errorf("failed to dereference field: %w", err)
	}
	if dict == nil {
		return nil
	}

	attrs := parent
	if partial := stringEntry(ctx, dict, "T"); partial != "" {
		if attrs.name != "" {
			attrs.name += "." + partial
		} else {
			attrs.name = partial
		}
	}
	if ftObj, found := dict.Find("FT"); found {
		if ft, err := ctx.DereferenceName(ftObj, model.V10, nil); err == nil {
			attrs.ft = string(ft)
		}
	}
	if ffObj, found := dict.Find("Ff"); found {
		if ff, err := ctx.DereferenceInteger(ffObj); err == nil && ff != nil {
			attrs.ff = int(*ff)
		}
	}

	kids := e.kids(ctx, dict)
	var fieldKids []types.Object
	for _, kid := range kids {
		if kd, err := ctx.DereferenceDict(kid); err == nil && kd != nil {
			if _, isField := kd.Find("T"); isField {
				fieldKids = append(fieldKids, kid)
			}
		}
	}
	if len(fieldKids) > 0 {
		for _, kid := range fieldKids {
			if err := e.walk(ctx, kid, attrs, depth+1, out); err != nil {
				e.logger.Debug("skipping malformed kid field", zap.String("parent", attrs.name), zap.Error(err))
			}
		}
		return nil
	}

	field := Field{
		ID:        objectID(obj),
		Name:      attrs.name,
		Type:      fieldType(attrs.ft, attrs.ff),
		Required:  attrs.ff&flagRequired != 0,
		ReadOnly:  attrs.ff&flagReadOnly != 0,
		Multiline: attrs.ft == "Tx" && attrs.ff&flagMultiline != 0,
	}
	if field.Name == "" {
		field.Name = "field_" + field.ID
	}
	if valueObj, found := dict.Find("V"); found {
		field.Value = valueString(ctx, valueObj)
	}
	if maxLenObj, found := dict.Find("MaxLen"); found {
		if maxLen, err := ctx.DereferenceInteger(maxLenObj); err == nil && maxLen != nil {
			field.MaxLen = int(*maxLen)
		}
	}

	switch field.Type {
	case FieldTypeComboBox, FieldTypeListBox:
		field.Options = choiceOptions(ctx, dict)
		field.MultiSelect = attrs.ff&flagMultiSelect != 0
	case FieldTypeRadio, FieldTypeCheckbox:
		widgets := kids
		if len(widgets) == 0 {
			widgets = []types.Object{obj}
		}
		field.Options = appearanceStates(ctx, widgets)
	}

	*out = append(*out, field)
	return nil
}

func (e *Extractor) kids(ctx *model.Context, dict types.Dict) []types.Object {
	kidsObj, found := dict.Find("Kids")
	if !found {
		return nil
	}
	arr, err := ctx.DereferenceArray(kidsObj)
	if err != nil {
		return nil
	}
	return arr
}

func fieldType(ft string, ff int) FieldType {
	switch ft {
	case "Btn":
		switch {
		case ff&flagRadio != 0:
			return FieldTypeRadio
		case ff&flagPushButton != 0:
			return FieldTypeButton
		default:
			return FieldTypeCheckbox
		}
	case "Tx":
		return FieldTypeText
	case "Ch":
		if ff&flagCombo != 0 {
			return FieldTypeComboBox
		}
		return FieldTypeListBox
	case "Sig":
		return FieldTypeSignature
	default:
		return FieldTypeUnknown
	}
}

func objectID(obj types.Object) string {
	if ir, ok := obj.(types.IndirectRef); ok {
		return strconv.Itoa(int(ir.ObjectNumber))
	}
	if ir, ok := obj.(*types.IndirectRef); ok && ir != nil {
		return strconv.Itoa(int(ir.ObjectNumber))
	}
	return ""
}

func stringEntry(ctx *model.Context, dict types.Dict, key string) string {
	obj, found := dict.Find(key)
	if !found {
		return ""
	}
	s, err := ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

// valueString renders a V entry: a string, a name, or an array of strings
// joined with "; ".
func valueString(ctx *model.Context, obj types.Object) string {
	if s, err := ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil); err == nil {
		return s
	}
	if n, err := ctx.DereferenceName(obj, model.V10, nil); err == nil {
		if n == "Off" {
			return ""
		}
		return string(n)
	}
	if arr, err := ctx.DereferenceArray(obj); err == nil {
		var out string
		for _, item := range arr {
			if s, err := ctx.DereferenceStringOrHexLiteral(item, model.V10, nil); err == nil {
				if out != "" {
					out += "; "
				}
				out += s
			}
		}
		return out
	}
	return ""
}

// choiceOptions reads Opt entries, preferring the display value of
// [export display] pairs.
func choiceOptions(ctx *model.Context, dict types.Dict) []string {
	optObj, found := dict.Find("Opt")
	if !found {
		return nil
	}
	optArray, err := ctx.DereferenceArray(optObj)
	if err != nil {
		return nil
	}

	var options []string
	for _, opt := range optArray {
		if str, err := ctx.DereferenceStringOrHexLiteral(opt, model.V10, nil); err == nil {
			options = append(options, str)
		} else if arr, err := ctx.DereferenceArray(opt); err == nil && len(arr) >= 2 {
			if display, err := ctx.DereferenceStringOrHexLiteral(arr[1], model.V10, nil); err == nil {
				options = append(options, display)
			}
		}
	}
	return options
}

// appearanceStates lists the "on" states of button widgets, in widget
// order, from their normal appearance dictionaries.
func appearanceStates(ctx *model.Context, widgets []types.Object) []string {
	var states []string
	seen := make(map[string]bool)
	for _, w := range widgets {
		wd, err := ctx.DereferenceDict(w)
		if err != nil || wd == nil {
			continue
		}
		apObj, found := wd.Find("AP")
		if !found {
			continue
		}
		ap, err := ctx.DereferenceDict(apObj)
		if err != nil || ap == nil {
			continue
		}
		nObj, found := ap.Find("N")
		if !found {
			continue
		}
		normal, err := ctx.DereferenceDict(nObj)
		if err != nil || normal == nil {
			continue
		}

		keys := make([]string, 0, len(normal))
		for k := range normal {
			if k != "Off" && !seen[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = true
			states = append(states, k)
		}
	}
	return states
}
