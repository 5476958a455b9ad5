package report

import (
	"bytes"
	"fmt"
)

// Minimal PDF 1.4 writer, just enough for paginated text reports: Letter
// pages, the built-in Helvetica fonts, one content stream per page. Layout
// units are points (1/72 inch).
const (
	pageWidth  = 612.0
	pageHeight = 792.0
	marginX    = 56.0
	marginTop  = 64.0
	marginBot  = 56.0

	titleSize   = 16.0
	headingSize = 12.0
	bodySize    = 10.0
	lineGap     = 15.0
)

// RenderPDF serializes the document as a PDF file.
func RenderPDF(doc Document) []byte {
	pages := paginate(doc)

	// Object numbering: 1 catalog, 2 pages root, 3 regular font, 4 bold
	// font, then a page object and a content stream per page.
	var buf bytes.Buffer
	offsets := []int{0} // object 0 is the free-list head
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets)-1, body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := ""
	for i := range pages {
		if i > 0 {
			kids += " "
		}
		kids += fmt.Sprintf("%d 0 R", 5+i*2)
	}

	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)))
	writeObj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	writeObj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica-Bold >>")

	for i, content := range pages {
		pageObj := 5 + i*2
		streamObj := pageObj + 1
		writeObj(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] "+
				"/Resources << /Font << /F1 3 0 R /F2 4 0 R >> >> /Contents %d 0 R >>",
			pageWidth, pageHeight, streamObj))
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
			streamObj, len(content), content)
	}

	xrefAt := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets), xrefAt)
	return buf.Bytes()
}

// paginate lays the document out into per-page content streams.
func paginate(doc Document) []string {
	var pages []string
	var page bytes.Buffer
	y := pageHeight - marginTop

	flush := func() {
		pages = append(pages, page.String())
		page.Reset()
		y = pageHeight - marginTop
	}
	text := func(font string, size, x float64, s string) {
		fmt.Fprintf(&page, "BT /%s %g Tf %g %g Td (%s) Tj ET\n",
			font, size, x, y, escapeText(s))
	}

	text("F2", titleSize, marginX, doc.Title)
	y -= lineGap * 2

	for _, line := range doc.Lines {
		if y < marginBot {
			flush()
		}
		switch {
		case line.Text == "":
			// blank spacer
		case line.Heading:
			y -= 4 // extra air above headings
			text("F2", headingSize, marginX, line.Text)
		case line.Indent:
			text("F1", bodySize, marginX+14, line.Text)
		default:
			text("F1", bodySize, marginX, line.Text)
		}
		y -= lineGap
	}
	if page.Len() > 0 || len(pages) == 0 {
		flush()
	}
	return pages
}

// escapeText escapes the characters PDF string literals reserve. Non-ASCII
// bytes pass through; Helvetica covers Latin-1, which is enough for store
// names with accents.
func escapeText(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n', '\r':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
