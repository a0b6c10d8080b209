// Package source turns uploaded grant documents into text chunks that
// questions are extracted from.
package source

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
	pdftext "github.com/a3tai/mcp-grant-filler/internal/pdf"
)

// Kind is the document format of a source
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindDOCX Kind = "docx"
	KindHTML Kind = "html"
)

// maxChunkChars bounds the text of one chunk sent for extraction
const maxChunkChars = 12000

// Document is the text of a source split into extraction chunks
type Document struct {
	Kind   Kind     `json:"kind"`
	Chunks []string `json:"chunks"`
}

// Detect identifies a document by extension, falling back to its leading
// bytes.
func Detect(name string, data []byte) (Kind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF, nil
	case ".docx":
		return KindDOCX, nil
	case ".html", ".htm":
		return KindHTML, nil
	}

	head := bytes.TrimSpace(data[:min(len(data), 512)])
	switch {
	case bytes.HasPrefix(head, []byte("%PDF-")):
		return KindPDF, nil
	case bytes.HasPrefix(head, []byte("PK\x03\x04")):
		return KindDOCX, nil
	case bytes.HasPrefix(head, []byte("<")):
		return KindHTML, nil
	}
	return "", grant.NewError(grant.KindMalformedSource, "detect source", fmt.Sprintf("unsupported document %q", name), nil)
}

// Reader extracts text from PDF, DOCX and HTML sources
type Reader struct {
	pdf    *pdftext.Reader
	logger *zap.Logger
}

// NewReader creates a source reader
func NewReader(maxFileSize int64, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{pdf: pdftext.NewReader(maxFileSize), logger: logger}
}

// Read returns the chunks of a document. A document without any text is a
// malformed source.
func (r *Reader) Read(name string, data []byte) (*Document, error) {
	kind, err := Detect(name, data)
	if err != nil {
		return nil, err
	}

	var chunks []string
	switch kind {
	case KindPDF:
		chunks, err = r.readPDF(data)
	case KindDOCX:
		var paragraphs []string
		paragraphs, err = DOCXParagraphs(data)
		chunks = Chunk(paragraphs, maxChunkChars)
	case KindHTML:
		var cleaned string
		cleaned, err = CleanHTML(string(data), MaxHTMLChars)
		if cleaned != "" {
			chunks = []string{cleaned}
		}
	}
	if err != nil {
		return nil, grant.NewError(grant.KindMalformedSource, "read source", fmt.Sprintf("cannot read %s document", kind), err)
	}
	if len(chunks) == 0 {
		return nil, grant.NewError(grant.KindMalformedSource, "read source", fmt.Sprintf("%s document has no extractable text", kind), nil)
	}

	r.logger.Debug("source read",
		zap.String("name", name),
		zap.String("kind", string(kind)),
		zap.Int("chunks", len(chunks)))
	return &Document{Kind: kind, Chunks: chunks}, nil
}

func (r *Reader) readPDF(data []byte) ([]string, error) {
	text, err := r.pdf.ReadBytes(data)
	if err != nil {
		return nil, err
	}
	if text.ContentType == pdftext.ContentScanned {
		r.logger.Warn("PDF looks scanned, text extraction may miss questions", zap.Int("images", text.ImageCount))
	}

	var pages []string
	for _, p := range text.Pages {
		if s := strings.TrimSpace(p); s != "" {
			pages = append(pages, s)
		}
	}
	return Chunk(pages, maxChunkChars), nil
}

// Chunk packs consecutive pieces into chunks of at most limit characters.
// A single piece longer than limit becomes a chunk of its own.
func Chunk(pieces []string, limit int) []string {
	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}
	for _, p := range pieces {
		if cur.Len() > 0 && cur.Len()+len(p)+2 > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(p)
	}
	flush()
	return chunks
}
