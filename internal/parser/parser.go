package parser

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"spec-extractor/internal/config"
	"spec-extractor/internal/models"
)

const (
	// US Letter, used when a page tree carries no MediaBox at all
	defaultPageWidth  = 612
	defaultPageHeight = 792

	// gap between glyphs, as a fraction of the font size, read as a word break
	wordGapRatio = 0.15
)

// PDFParser extracts page text from a PDF, dropping everything printed in the
// header and footer bands.
type PDFParser struct {
	HeaderHeight float64
	FooterHeight float64
}

func NewPDFParser(cfg config.ParserConfig) *PDFParser {
	return &PDFParser{
		HeaderHeight: cfg.HeaderHeight,
		FooterHeight: cfg.FooterHeight,
	}
}

// ExtractText returns one Page per page that still has text after cropping.
// Page numbers are physical, 1-based page positions.
func (p *PDFParser) ExtractText(filePath string) (pages []models.Page, err error) {
	// ledongthuc/pdf panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &models.ParseError{Path: filePath, Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	f, err := os.Open(filePath)
	if err != nil {
		return nil, &models.ParseError{Path: filePath, Err: err}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, &models.ParseError{Path: filePath, Err: err}
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, &models.ParseError{Path: filePath, Err: err}
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text := strings.TrimSpace(p.croppedText(page))
		if text == "" {
			log.Debug().Str("source", filePath).Int("page", i).Msg("Skipping empty page")
			continue
		}
		pages = append(pages, models.Page{
			Text: text,
			Metadata: models.ChunkMetadata{
				Source:     filePath,
				PageNumber: i,
			},
		})
	}

	log.Info().Str("source", filePath).Int("total_pages", numPages).Int("text_pages", len(pages)).Msg("Parsed PDF")
	return pages, nil
}

// croppedText rebuilds the lines of a page from the glyphs whose baseline lies
// inside the crop box.
func (p *PDFParser) croppedText(page pdf.Page) string {
	box := mediaBox(page)
	height := box.ury - box.lly
	top := height - p.HeaderHeight
	bottom := p.FooterHeight

	lines := map[int64][]pdf.Text{}
	for _, t := range page.Content().Text {
		y := t.Y - box.lly
		if y < bottom || y > top {
			continue
		}
		key := int64(math.Round(y))
		lines[key] = append(lines[key], t)
	}

	keys := make([]int64, 0, len(lines))
	for k := range lines {
		keys = append(keys, k)
	}
	// top of the page first
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(joinLine(lines[k]))
	}
	return b.String()
}

func joinLine(glyphs []pdf.Text) string {
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })

	var b strings.Builder
	for i, g := range glyphs {
		if i > 0 {
			prev := glyphs[i-1]
			gap := g.X - (prev.X + prev.W)
			if gap > wordGapRatio*g.FontSize &&
				!strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(g.S, " ") {
				b.WriteString(" ")
			}
		}
		b.WriteString(g.S)
	}
	return b.String()
}

type rect struct {
	llx, lly, urx, ury float64
}

// mediaBox resolves the page MediaBox, walking up the page tree since the
// attribute is inheritable.
func mediaBox(page pdf.Page) rect {
	for v := page.V; !v.IsNull(); v = v.Key("Parent") {
		mb := v.Key("MediaBox")
		if mb.Kind() == pdf.Array && mb.Len() == 4 {
			r := rect{
				llx: mb.Index(0).Float64(),
				lly: mb.Index(1).Float64(),
				urx: mb.Index(2).Float64(),
				ury: mb.Index(3).Float64(),
			}
			if r.ury < r.lly {
				r.lly, r.ury = r.ury, r.lly
			}
			return r
		}
	}
	return rect{urx: defaultPageWidth, ury: defaultPageHeight}
}
