// Package pdftest writes small text-only PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	PageWidth  = 612
	PageHeight = 792
	FontSize   = 12
)

// Line is a run of text drawn with its baseline at (X, Y), origin bottom-left.
type Line struct {
	X, Y float64
	Text string
}

type Page struct {
	Lines []Line
	// MediaBox, when set, is written on the page and overrides the inherited box.
	MediaBox []float64
}

// Offset moves the page origin to (llx, lly): the lines are translated and the
// page gets its own MediaBox of the default size.
func (p Page) Offset(llx, lly float64) Page {
	lines := make([]Line, len(p.Lines))
	for i, l := range p.Lines {
		lines[i] = Line{X: l.X + llx, Y: l.Y + lly, Text: l.Text}
	}
	return Page{
		Lines:    lines,
		MediaBox: []float64{llx, lly, llx + PageWidth, lly + PageHeight},
	}
}

// Build renders pages with a monospaced Type1 font. The MediaBox is set on
// the page tree root and inherited by every page.
func Build(pages []Page) []byte {
	var objects []string

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 %d %d] >>",
			strings.Join(kids, " "), len(pages), PageWidth, PageHeight),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths ["+
			strings.TrimSpace(strings.Repeat("600 ", 95))+"] >>",
	)

	for i, p := range pages {
		var content strings.Builder
		for _, l := range p.Lines {
			fmt.Fprintf(&content, "BT /F1 %d Tf %.2f %.2f Td (%s) Tj ET\n", FontSize, l.X, l.Y, escape(l.Text))
		}
		stream := content.String()
		var box string
		if len(p.MediaBox) == 4 {
			box = fmt.Sprintf(" /MediaBox [%.2f %.2f %.2f %.2f]", p.MediaBox[0], p.MediaBox[1], p.MediaBox[2], p.MediaBox[3])
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R%s /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", box, 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
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

// Write stores the rendered pages in a file under t.TempDir.
func Write(t testing.TB, name string, pages []Page) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, Build(pages), 0o644); err != nil {
		t.Fatalf("write pdf fixture: %v", err)
	}
	return path
}

// ManualPage is a page with a running header and a page-number footer around body.
func ManualPage(number int, body ...string) Page {
	lines := []Line{{X: 72, Y: PageHeight - 20, Text: "WORKSHOP MANUAL - BRAKES"}}
	y := float64(PageHeight - 100)
	for _, b := range body {
		lines = append(lines, Line{X: 72, Y: y, Text: b})
		y -= 20
	}
	lines = append(lines, Line{X: 300, Y: 20, Text: fmt.Sprintf("Page %d", number)})
	return Page{Lines: lines}
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(s)
}
