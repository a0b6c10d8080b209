// Package formfill fills the native AcroForm fields of a PDF from grant
// answers. Each field is matched by name against the still unassigned
// questions and written according to its kind.
package formfill

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
	"github.com/a3tai/mcp-grant-filler/internal/match"
	"github.com/a3tai/mcp-grant-filler/internal/pdf/extraction"
)

// FieldLister enumerates the form fields of a PDF
type FieldLister interface {
	ExtractFromBytes(data []byte) ([]extraction.Field, error)
}

// FormWriter writes a set of form values into a PDF
type FormWriter interface {
	WriteForm(ctx context.Context, pdf []byte, form Form) ([]byte, error)
}

// Result is the outcome of one PDF fill. When Filled is false, Bytes is the
// unmodified input and the caller should generate a document instead.
type Result struct {
	Filled      bool                `json:"filled"`
	Bytes       []byte              `json:"-"`
	FieldsFound int                 `json:"fieldsFound"`
	Mappings    []grant.FillMapping `json:"mappings"`
}

// Filler is the PDF form adapter
type Filler struct {
	lister     FieldLister
	writer     FormWriter
	thresholds match.Thresholds
	logger     *zap.Logger
}

// NewFiller creates a PDF form adapter
func NewFiller(lister FieldLister, writer FormWriter, thresholds match.Thresholds, logger *zap.Logger) *Filler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if thresholds == (match.Thresholds{}) {
		thresholds = match.DefaultThresholds()
	}
	return &Filler{lister: lister, writer: writer, thresholds: thresholds, logger: logger}
}

// New creates a filler backed by pdfcpu
func New(thresholds match.Thresholds, logger *zap.Logger) *Filler {
	return NewFiller(extraction.NewExtractor(logger), PDFCPUWriter{}, thresholds, logger)
}

// Fill writes answers into the PDF's form fields. An unreadable document is
// an error; a document without fields, or one where nothing could be
// written, comes back unfilled with its original bytes.
func (f *Filler) Fill(ctx context.Context, pdf []byte, questions []grant.Question) (*Result, error) {
	fields, err := f.lister.ExtractFromBytes(pdf)
	if err != nil {
		return nil, grant.NewError(grant.KindSurfaceUnreachable, "pdf fill", "cannot read PDF form", err)
	}

	unfilled := &Result{Filled: false, Bytes: pdf, FieldsFound: len(fields)}
	if len(fields) == 0 {
		f.logger.Info("PDF has no form fields")
		return unfilled, nil
	}

	form, mappings := f.Plan(fields, questions)
	f.logger.Info("PDF fill planned",
		zap.Int("fields", len(fields)),
		zap.Int("filled", form.Len()))
	if form.Len() == 0 {
		return unfilled, nil
	}

	out, err := f.writer.WriteForm(ctx, pdf, form)
	if err != nil {
		f.logger.Warn("writing PDF form failed, returning document unfilled", zap.Error(err))
		return unfilled, nil
	}

	return &Result{Filled: true, Bytes: out, FieldsFound: len(fields), Mappings: mappings}, nil
}

// Plan decides the value of every field without touching the document.
// Fields are visited in document order; each takes the best scoring
// unassigned question. A filled question is retired, except multi_choice
// questions, which may check several checkboxes.
func (f *Filler) Plan(fields []extraction.Field, questions []grant.Question) (Form, []grant.FillMapping) {
	var (
		form     Form
		mappings []grant.FillMapping
	)
	assigned := make([]bool, len(questions))

	for _, field := range fields {
		if !field.Writable() {
			continue
		}
		best, score := f.bestQuestion(field, questions, assigned)
		if best < 0 {
			f.logger.Debug("no question matches PDF field", zap.String("field", field.Name))
			continue
		}

		q := questions[best]
		written, ok := f.place(&form, field, q)
		if !ok {
			f.logger.Debug("PDF field left empty",
				zap.String("field", field.Name), zap.String("question_id", q.ID))
			continue
		}

		if q.Type.Effective() != grant.TypeMultiChoice {
			assigned[best] = true
		}
		mappings = append(mappings, grant.FillMapping{
			QuestionID:   q.ID,
			QuestionText: q.Text,
			Answer:       written,
			Selector:     field.Name,
			Confidence:   score,
		})
	}
	return form, mappings
}

func (f *Filler) bestQuestion(field extraction.Field, questions []grant.Question, assigned []bool) (int, float64) {
	best, bestScore := -1, 0.0
	for i, q := range questions {
		if assigned[i] || q.Answer.IsEmpty() {
			continue
		}
		s := match.FieldNameScore(field.Name, q.Text)
		if s >= f.thresholds.PDF && s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, bestScore
}

// place adds the field's value for q to the form and returns what was written
func (f *Filler) place(form *Form, field extraction.Field, q grant.Question) (string, bool) {
	answer := q.Answer.String()

	switch field.Type {
	case extraction.FieldTypeText:
		value := truncate(answer, field.MaxLen)
		if value == "" {
			return "", false
		}
		form.TextFields = append(form.TextFields, TextField{
			ID: field.ID, Name: field.Name, Value: value, Multiline: field.Multiline,
		})
		return value, true

	case extraction.FieldTypeCheckbox:
		if !checkboxSelected(field, q) {
			return "", false
		}
		form.CheckBoxes = append(form.CheckBoxes, CheckBox{ID: field.ID, Name: field.Name, Value: true})
		return "checked", true

	case extraction.FieldTypeRadio:
		for _, opt := range field.Options {
			if match.Overlaps(opt, answer) {
				form.RadioGroups = append(form.RadioGroups, RadioGroup{
					ID: field.ID, Name: field.Name, Options: field.Options, Value: opt,
				})
				return opt, true
			}
		}
		return "", false

	case extraction.FieldTypeComboBox:
		i, ok := f.pickOption(answer, field.Options)
		if !ok {
			return "", false
		}
		form.ComboBoxes = append(form.ComboBoxes, ComboBox{
			ID: field.ID, Name: field.Name, Options: field.Options, Value: field.Options[i],
		})
		return field.Options[i], true

	case extraction.FieldTypeListBox:
		var values []string
		seen := make(map[int]bool)
		for _, v := range q.Answer.Values() {
			if i, ok := f.pickOption(v, field.Options); ok && !seen[i] {
				seen[i] = true
				values = append(values, field.Options[i])
			}
			if !field.MultiSelect && len(values) > 0 {
				break
			}
		}
		if len(values) == 0 {
			return "", false
		}
		form.ListBoxes = append(form.ListBoxes, ListBox{
			ID: field.ID, Name: field.Name, Options: field.Options, Values: values, Multi: field.MultiSelect,
		})
		return strings.Join(values, grant.ListSeparator), true
	}
	return "", false
}

// pickOption prefers a textual overlap and falls back to lexical similarity
func (f *Filler) pickOption(answer string, options []string) (int, bool) {
	for i, opt := range options {
		if match.Overlaps(opt, answer) {
			return i, true
		}
	}
	return match.PickOption(answer, options, f.thresholds.Option)
}

// checkboxSelected checks a box for a yes_no "Yes", or when a selected
// multi_choice option overlaps the field's name.
func checkboxSelected(field extraction.Field, q grant.Question) bool {
	switch q.Type.Effective() {
	case grant.TypeYesNo:
		return strings.EqualFold(strings.TrimSpace(q.Answer.String()), "yes")
	case grant.TypeMultiChoice:
		for _, v := range q.Answer.Values() {
			if match.Overlaps(v, field.Name) {
				return true
			}
		}
	}
	return false
}

// truncate cuts s to at most limit runes; limit <= 0 means no limit
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
