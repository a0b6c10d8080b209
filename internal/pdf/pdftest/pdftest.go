// Package pdftest builds small, well-formed PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Build assembles a PDF whose objects are numbered 1..n in the given order.
// Object 1 must be the catalog. Offsets and the xref table are computed, so
// the output parses without repair.
func Build(objects ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// Blank is a one-page document without an AcroForm
func Blank() []byte {
	return Build(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	)
}

// Form is a one-page document with an AcroForm holding a text field
// "org_name" (MaxLen 10), a checkbox "is_nonprofit", a radio group
// "org_type" with kids "Nonprofit" and "ForProfit", and a nested text field
// "contact.email".
func Form() []byte {
	return Build(
		"<< /Type /Catalog /Pages 2 0 R /AcroForm 4 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Annots [5 0 R 6 0 R 8 0 R 9 0 R 11 0 R] >>",
		"<< /Fields [5 0 R 6 0 R 7 0 R 10 0 R] /DA (/Helv 0 Tf 0 g) >>",
		"<< /FT /Tx /T (org_name) /MaxLen 10 /Ff 2 /Type /Annot /Subtype /Widget /Rect [50 700 300 720] /P 3 0 R >>",
		"<< /FT /Btn /T (is_nonprofit) /V /Off /Type /Annot /Subtype /Widget /Rect [50 650 70 670] /P 3 0 R"+
			" /AP << /N << /Yes 12 0 R /Off 12 0 R >> >> >>",
		"<< /FT /Btn /Ff 49152 /T (org_type) /Kids [8 0 R 9 0 R] >>",
		"<< /Parent 7 0 R /Type /Annot /Subtype /Widget /Rect [50 600 70 620] /P 3 0 R"+
			" /AP << /N << /Nonprofit 12 0 R /Off 12 0 R >> >> >>",
		"<< /Parent 7 0 R /Type /Annot /Subtype /Widget /Rect [100 600 120 620] /P 3 0 R"+
			" /AP << /N << /ForProfit 12 0 R /Off 12 0 R >> >> >>",
		"<< /T (contact) /Kids [11 0 R] >>",
		"<< /Parent 10 0 R /FT /Tx /T (email) /Ff 1 /V (info@example.org) /Type /Annot /Subtype /Widget"+
			" /Rect [50 550 300 570] /P 3 0 R >>",
		"<< /Length 0 >>\nstream\n\nendstream",
	)
}

// Text is a document with one page per entry. Each page shows its lines
// in Helvetica, one text line per string.
func Text(pages ...[]string) []byte {
	n := len(pages)
	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	for i, lines := range pages {
		var content bytes.Buffer
		content.WriteString("BT /F1 12 Tf 14 TL 72 720 Td")
		for j, line := range lines {
			if j > 0 {
				content.WriteString(" T*")
			}
			fmt.Fprintf(&content, " (%s) Tj", escape(line))
		}
		content.WriteString(" ET")

		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R"+
				" /Resources << /Font << /F1 3 0 R >> >> >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		)
	}
	return Build(objects...)
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(s)
}
