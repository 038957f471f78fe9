package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Report counts what an extraction run wrote.
type Report struct {
	Documents int
	Pages     int
}

// PDFExtractor writes the plain text of every PDF page to
// <out>/page_<N>.txt, numbering pages from 1.
type PDFExtractor struct {
	log *slog.Logger
}

func NewPDFExtractor(log *slog.Logger) *PDFExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &PDFExtractor{log: log}
}

// ExtractDir processes every *.pdf in pdfDir in name order. Each
// <stem>.pdf becomes <outBase>/<stem>/<textDir>/.
func (e *PDFExtractor) ExtractDir(ctx context.Context, pdfDir, outBase, textDir string) (Report, error) {
	entries, err := os.ReadDir(pdfDir)
	if err != nil {
		return Report{}, fmt.Errorf("read pdf dir: %w", err)
	}
	var names []string
	for _, en := range entries {
		if en.Type().IsRegular() && strings.EqualFold(filepath.Ext(en.Name()), ".pdf") {
			names = append(names, en.Name())
		}
	}
	sort.Strings(names)

	var rep Report
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		n, err := e.ExtractText(ctx, filepath.Join(pdfDir, name), filepath.Join(outBase, stem, textDir))
		if err != nil {
			return rep, err
		}
		rep.Documents++
		rep.Pages += n
	}
	return rep, nil
}

// ExtractText writes one file per page and returns the page count. Pages
// whose text cannot be decoded are written empty so numbering stays aligned.
func (e *PDFExtractor) ExtractText(ctx context.Context, pdfPath, outDir string) (int, error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", pdfPath, err)
	}
	defer f.Close()
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, err
	}

	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return i - 1, err
		}
		text := ""
		page := r.Page(i)
		if !page.V.IsNull() {
			fonts := make(map[string]*pdf.Font)
			t, err := page.GetPlainText(fonts)
			if err != nil {
				e.log.Warn("page text not extracted", "pdf", pdfPath, "page", i, "error", err)
			} else {
				text = t
			}
		}
		out := filepath.Join(outDir, fmt.Sprintf("page_%d.txt", i))
		if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
			return i - 1, err
		}
	}
	e.log.Info("extracted pdf text", "pdf", filepath.Base(pdfPath), "pages", pages, "out", outDir)
	return pages, nil
}
