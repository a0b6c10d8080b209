package formfill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// TextField is a text value in pdfcpu's form JSON
type TextField struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Value     string `json:"value"`
	Multiline bool   `json:"multiline,omitempty"`
}

// CheckBox is a checkbox state in pdfcpu's form JSON
type CheckBox struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

// RadioGroup selects one option of a radio button group
type RadioGroup struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name"`
	Options []string `json:"options,omitempty"`
	Value   string   `json:"value"`
}

// ComboBox selects one option of a combo box
type ComboBox struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name"`
	Options []string `json:"options,omitempty"`
	Value   string   `json:"value"`
}

// ListBox selects options of a list box
type ListBox struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name"`
	Options []string `json:"options,omitempty"`
	Values  []string `json:"values"`
	Multi   bool     `json:"multi,omitempty"`
}

// Form is the set of values written in one pass, laid out the way pdfcpu
// imports form data.
type Form struct {
	TextFields  []TextField  `json:"textfield,omitempty"`
	CheckBoxes  []CheckBox   `json:"checkbox,omitempty"`
	RadioGroups []RadioGroup `json:"radiobuttongroup,omitempty"`
	ComboBoxes  []ComboBox   `json:"combobox,omitempty"`
	ListBoxes   []ListBox    `json:"listbox,omitempty"`
}

// Len is the number of fields the form writes
func (f Form) Len() int {
	return len(f.TextFields) + len(f.CheckBoxes) + len(f.RadioGroups) + len(f.ComboBoxes) + len(f.ListBoxes)
}

type formGroup struct {
	Forms []Form `json:"forms"`
}

// JSON renders the form as a pdfcpu form group document
func (f Form) JSON() ([]byte, error) {
	return json.MarshalIndent(formGroup{Forms: []Form{f}}, "", "  ")
}

// PDFCPUWriter writes form values with pdfcpu's form filling
type PDFCPUWriter struct{}

// WriteForm implements FormWriter
func (PDFCPUWriter) WriteForm(ctx context.Context, pdf []byte, form Form) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := form.JSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode form data: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var out bytes.Buffer
	if err := api.FillForm(bytes.NewReader(pdf), bytes.NewReader(data), &out, conf); err != nil {
		return nil, fmt.Errorf("failed to fill form: %w", err)
	}
	return out.Bytes(), nil
}
