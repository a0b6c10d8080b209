package pdf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-grant-filler/internal/pdf/pdftest"
)

func TestNewReader(t *testing.T) {
	tests := []struct {
		name        string
		maxFileSize int64
	}{
		{name: "standard max file size", maxFileSize: 100 * 1024 * 1024},
		{name: "small max file size", maxFileSize: 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewReader(tt.maxFileSize)
			assert.Equal(t, tt.maxFileSize, got.maxFileSize)
			assert.Equal(t, 10*1024*1024, got.maxTextSize)
		})
	}
}

func TestReadBytes(t *testing.T) {
	data := pdftest.Text(
		[]string{"Grant Application", "1. Organization legal name", "2. Describe your mission"},
		[]string{"3. Total budget requested for the project period"},
	)

	text, err := NewReader(1 << 20).ReadBytes(data)
	require.NoError(t, err)
	require.Len(t, text.Pages, 2)
	assert.Contains(t, text.Pages[0], "Organization legal name")
	assert.Contains(t, text.Pages[0], "Describe your mission")
	assert.Contains(t, text.Pages[1], "Total budget requested")
	assert.Equal(t, ContentText, text.ContentType)
	assert.Zero(t, text.ImageCount)
	assert.Contains(t, text.String(), "\n\n")
}

func TestReadBytesBlankDocument(t *testing.T) {
	text, err := NewReader(1 << 20).ReadBytes(pdftest.Blank())
	require.NoError(t, err)
	assert.Equal(t, ContentEmpty, text.ContentType)
	assert.Empty(t, strings.TrimSpace(text.String()))
}

func TestReadBytesErrors(t *testing.T) {
	_, err := NewReader(1 << 20).ReadBytes([]byte("not a pdf"))
	assert.Error(t, err)

	_, err = NewReader(10).ReadBytes(pdftest.Blank())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file too large")
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "questions.pdf")
	require.NoError(t, os.WriteFile(pdfPath, pdftest.Text([]string{"What is your annual operating budget in dollars?"}), 0o644))
	txtPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("hello"), 0o644))

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{name: "valid pdf", path: pdfPath},
		{name: "empty path", path: "", wantErr: "path cannot be empty"},
		{name: "missing file", path: filepath.Join(dir, "missing.pdf"), wantErr: "file does not exist"},
		{name: "directory", path: dir, wantErr: "path is a directory"},
		{name: "not a pdf", path: txtPath, wantErr: "file is not a PDF"},
	}

	r := NewReader(1 << 20)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := r.ReadFile(tt.path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, text.String(), "annual operating budget")
		})
	}
}

func TestAnalyzeContentType(t *testing.T) {
	long := strings.Repeat("word ", 20)
	tests := []struct {
		text   string
		images int
		want   string
	}{
		{long, 0, ContentText},
		{long, 2, ContentMixed},
		{"", 1, ContentScanned},
		{"short", 0, ContentEmpty},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, analyzeContentType(tt.text, tt.images))
	}
}
