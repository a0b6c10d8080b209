package extraction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a3tai/mcp-grant-filler/internal/pdf/pdftest"
)

func TestExtractFromBytes(t *testing.T) {
	fields, err := NewExtractor(zaptest.NewLogger(t)).ExtractFromBytes(pdftest.Form())
	require.NoError(t, err)
	require.Len(t, fields, 4)

	byName := make(map[string]Field)
	for _, f := range fields {
		byName[f.Name] = f
	}

	org := byName["org_name"]
	assert.Equal(t, FieldTypeText, org.Type)
	assert.Equal(t, "5", org.ID)
	assert.Equal(t, 10, org.MaxLen)
	assert.True(t, org.Required)
	assert.True(t, org.Writable())

	check := byName["is_nonprofit"]
	assert.Equal(t, FieldTypeCheckbox, check.Type)
	assert.Equal(t, []string{"Yes"}, check.Options)
	assert.Empty(t, check.Value)

	radio := byName["org_type"]
	assert.Equal(t, FieldTypeRadio, radio.Type)
	assert.Equal(t, []string{"Nonprofit", "ForProfit"}, radio.Options)

	email := byName["contact.email"]
	assert.Equal(t, FieldTypeText, email.Type)
	assert.Equal(t, "info@example.org", email.Value)
	assert.True(t, email.ReadOnly)
	assert.False(t, email.Writable())
}

func TestExtractWithoutAcroForm(t *testing.T) {
	fields, err := NewExtractor(nil).ExtractFromBytes(pdftest.Blank())
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestExtractErrors(t *testing.T) {
	e := NewExtractor(nil)

	_, err := e.ExtractFromFile("/non/existent/file.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open PDF file")

	path := filepath.Join(t.TempDir(), "invalid.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))
	_, err = e.ExtractFromFile(path)
	assert.Error(t, err)
}

func TestFieldType(t *testing.T) {
	tests := []struct {
		ft   string
		ff   int
		want FieldType
	}{
		{"Tx", 0, FieldTypeText},
		{"Btn", 0, FieldTypeCheckbox},
		{"Btn", flagRadio, FieldTypeRadio},
		{"Btn", flagPushButton, FieldTypeButton},
		{"Ch", flagCombo, FieldTypeComboBox},
		{"Ch", 0, FieldTypeListBox},
		{"Sig", 0, FieldTypeSignature},
		{"", 0, FieldTypeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fieldType(tt.ft, tt.ff), "%s/%d", tt.ft, tt.ff)
	}
}

func TestWritable(t *testing.T) {
	assert.True(t, Field{Type: FieldTypeListBox}.Writable())
	assert.False(t, Field{Type: FieldTypeButton}.Writable())
	assert.False(t, Field{Type: FieldTypeSignature}.Writable())
	assert.False(t, Field{Type: FieldTypeText, ReadOnly: true}.Writable())
}

func TestDocumentPermissions(t *testing.T) {
	plain := &model.Context{XRefTable: &model.XRefTable{}}
	if !documentPermissions(plain).CanFillForms() {
		t.Error("unencrypted document should allow form filling")
	}

	locked := &model.Context{XRefTable: &model.XRefTable{E: &model.Enc{P: 0x04}}}
	if documentPermissions(locked).CanFillForms() {
		t.Error("print-only document should not allow form filling")
	}

	fillable := &model.Context{XRefTable: &model.XRefTable{E: &model.Enc{P: 0x100}}}
	if !documentPermissions(fillable).CanFillForms() {
		t.Error("bit 9 should allow form filling")
	}
}
