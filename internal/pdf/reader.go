// Package pdf reads the plain text of PDF documents that grant questions are
// extracted from.
package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Content types reported for a document
const (
	ContentText    = "text"
	ContentMixed   = "mixed"
	ContentScanned = "scanned_images"
	ContentEmpty   = "no_content"
)

// minMeaningfulTextLength is the least amount of text that counts as content
const minMeaningfulTextLength = 50

// Text is the plain text of a document, one entry per page. Pages whose
// text could not be decoded are empty strings.
type Text struct {
	Pages       []string `json:"pages"`
	ContentType string   `json:"content_type"`
	ImageCount  int      `json:"image_count"`
}

// String joins the non-empty pages with blank lines
func (t *Text) String() string {
	var parts []string
	for _, p := range t.Pages {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Reader handles PDF text extraction
type Reader struct {
	maxFileSize int64
	maxTextSize int
}

// NewReader creates a new PDF reader with the specified constraints
func NewReader(maxFileSize int64) *Reader {
	return &Reader{
		maxFileSize: maxFileSize,
		maxTextSize: 10 * 1024 * 1024, // 10MB text limit
	}
}

// ReadFile extracts the text of a PDF file
func (r *Reader) ReadFile(path string) (*Text, error) {
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if fileInfo.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return nil, fmt.Errorf("file is not a PDF: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return r.ReadBytes(data)
}

// ReadBytes extracts the text of an in-memory PDF
func (r *Reader) ReadBytes(data []byte) (*Text, error) {
	if r.maxFileSize > 0 && int64(len(data)) > r.maxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max: %d bytes)", len(data), r.maxFileSize)
	}

	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	pages := r.extractPages(pdfReader)
	_, imageCount := r.detectImages(pdfReader)

	text := &Text{Pages: pages, ImageCount: imageCount}
	text.ContentType = analyzeContentType(text.String(), imageCount)
	return text, nil
}

// extractPages decodes each page, stopping once maxTextSize is reached
func (r *Reader) extractPages(pdfReader *pdf.Reader) []string {
	pages := make([]string, 0, pdfReader.NumPage())
	totalLength := 0

	for pageNum := 1; pageNum <= pdfReader.NumPage(); pageNum++ {
		content := pageText(pdfReader, pageNum)

		if totalLength+len(content) > r.maxTextSize {
			if remaining := r.maxTextSize - totalLength; remaining > 0 {
				pages = append(pages, content[:remaining])
			}
			break
		}
		pages = append(pages, content)
		totalLength += len(content)
	}
	return pages
}

// pageText returns "" for pages the decoder cannot handle
func pageText(pdfReader *pdf.Reader, pageNum int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	page := pdfReader.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return content
}

func analyzeContentType(text string, imageCount int) string {
	clean := strings.TrimSpace(text)
	switch {
	case len(clean) < minMeaningfulTextLength && imageCount > 0:
		return ContentScanned
	case len(clean) < minMeaningfulTextLength:
		return ContentEmpty
	case imageCount > 0:
		return ContentMixed
	default:
		return ContentText
	}
}

// detectImages scans the PDF for image objects
func (r *Reader) detectImages(pdfReader *pdf.Reader) (bool, int) {
	imageCount := 0
	for pageNum := 1; pageNum <= pdfReader.NumPage(); pageNum++ {
		imageCount += countImagesOnPage(pdfReader, pageNum)
	}
	return imageCount > 0, imageCount
}

func countImagesOnPage(pdfReader *pdf.Reader, pageNum int) (count int) {
	defer func() {
		if recover() != nil {
			count = 0
		}
	}()

	page := pdfReader.Page(pageNum)
	if page.V.IsNull() {
		return 0
	}
	resources := page.V.Key("Resources")
	if resources.IsNull() {
		return 0
	}
	xObjects := resources.Key("XObject")
	if xObjects.IsNull() || xObjects.Kind() != pdf.Dict {
		return 0
	}

	for _, key := range xObjects.Keys() {
		obj := xObjects.Key(key)
		if obj.IsNull() {
			continue
		}
		if subtype := obj.Key("Subtype"); !subtype.IsNull() && subtype.Name() == "Image" {
			count++
		}
	}
	return count
}
