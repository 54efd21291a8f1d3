// Package document turns raw upload bytes into per-page work for the OCR
// stage. PDF pages with usable embedded text skip rasterization entirely;
// everything else is rendered to page images at the configured DPI.
package document

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	_ "image/jpeg"
	_ "image/png"

	"github.com/ledongthuc/pdf"

	"github.com/fortcodeproject/OCR/constants"
	"github.com/fortcodeproject/OCR/internal/common"
	"github.com/fortcodeproject/OCR/internal/ocr"
)

// MinEmbeddedChars is the trimmed-length threshold below which a page's
// embedded text is considered noise and the page goes to OCR.
const MinEmbeddedChars = 40

type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rasterization DPI for scanned pages, default 200
}

// Page is one unit of OCR work in physical document order.
type Page struct {
	Index     int
	Text      string // embedded text, when meaningful
	NeedsOCR  bool
	ImagePath string // rasterized page image (set iff NeedsOCR)
}

// Source is the per-request decomposition of one uploaded document.
// Close removes any rasterization artifacts.
type Source struct {
	Format   string
	Pages    []Page
	Warnings []string
	tmpDir   string
}

func (s *Source) Close() {
	if s.tmpDir != "" {
		_ = os.RemoveAll(s.tmpDir)
	}
}

type Loader struct {
	cfg    Config
	runner ocr.Runner
	logger *slog.Logger
}

func NewLoader(cfg Config, runner ocr.Runner, logger *slog.Logger) *Loader {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 200
	}
	if runner == nil {
		runner = ocr.ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{cfg: cfg, runner: runner, logger: logger}
}

// Load validates the declared type, then decomposes the document into pages.
// Unsupported types and empty/undecodable input are rejected here, before
// any OCR work.
func (l *Loader) Load(ctx context.Context, data []byte, filename, contentType string) (*Source, error) {
	format := constants.MapContentTypeToFormat(contentType)
	if format == "" {
		format = constants.MapExtToFormat(filepath.Ext(filename))
	}
	if format == "" {
		return nil, fmt.Errorf("%w: %q (%s)", common.ErrUnsupportedFormat, filepath.Ext(filename), contentType)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: zero-byte upload", common.ErrEmptyInput)
	}

	switch format {
	case constants.PDF:
		return l.loadPDF(ctx, data)
	default:
		return l.loadImage(data, filename)
	}
}

func (l *Loader) loadPDF(ctx context.Context, data []byte) (*Source, error) {
	src := &Source{Format: constants.PDF}

	texts, warn := embeddedPageTexts(data)
	src.Warnings = append(src.Warnings, warn...)

	needOCR := false
	for i, txt := range texts {
		p := Page{Index: i, Text: txt}
		if !meaningfulText(txt) {
			p.Text = ""
			p.NeedsOCR = true
			needOCR = true
		}
		src.Pages = append(src.Pages, p)
	}

	if len(src.Pages) == 0 {
		// Embedded-text probe failed outright; rasterize everything and let
		// page images define the page count.
		needOCR = true
	}
	if !needOCR {
		return src, nil
	}

	images, tmpDir, err := l.rasterize(ctx, data)
	if err != nil {
		src.Close()
		return nil, err
	}
	src.tmpDir = tmpDir

	if len(src.Pages) == 0 {
		for i := range images {
			src.Pages = append(src.Pages, Page{Index: i, NeedsOCR: true})
		}
	}
	for i := range src.Pages {
		if !src.Pages[i].NeedsOCR {
			continue
		}
		if i < len(images) {
			src.Pages[i].ImagePath = images[i]
		} else {
			// No rendered image for this page: it contributes empty text.
			src.Pages[i].NeedsOCR = false
			src.Warnings = append(src.Warnings, fmt.Sprintf("page %d: no rasterized image", i+1))
		}
	}
	return src, nil
}

func (l *Loader) loadImage(data []byte, filename string) (*Source, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", common.ErrEmptyInput, filepath.Base(filename), err)
	}

	tmpDir, err := os.MkdirTemp("", "inv-doc-*")
	if err != nil {
		return nil, err
	}
	ext := constants.NormalizeExt(filepath.Ext(filename))
	if ext == "" {
		ext = "png"
	}
	path := filepath.Join(tmpDir, "page."+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		_ = os.RemoveAll(tmpDir)
		return nil, err
	}

	return &Source{
		Format: constants.IMAGE,
		Pages:  []Page{{Index: 0, NeedsOCR: true, ImagePath: path}},
		tmpDir: tmpDir,
	}, nil
}

// rasterize renders every page to PNG in one pdftoppm pass and returns the
// image paths in ascending page order.
func (l *Loader) rasterize(ctx context.Context, data []byte) ([]string, string, error) {
	tmpDir, err := os.MkdirTemp("", "inv-doc-*")
	if err != nil {
		return nil, "", err
	}
	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		_ = os.RemoveAll(tmpDir)
		return nil, "", err
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := l.runner.Run(ctx, l.cfg.Pdftoppm, "-r", strconv.Itoa(l.cfg.DPI), "-png", in, prefix)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return nil, "", fmt.Errorf("pdftoppm: %w (%s)", err, truncateStr(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	if len(matches) == 0 {
		_ = os.RemoveAll(tmpDir)
		return nil, "", fmt.Errorf("%w: pdftoppm produced no images", common.ErrEmptyInput)
	}
	return sortByPageNumber(matches), tmpDir, nil
}

var rePageNum = regexp.MustCompile(`-(\d+)\.png$`)

// sortByPageNumber orders rendered files by their numeric page suffix, so
// "page-10.png" sorts after "page-9.png" regardless of zero padding.
func sortByPageNumber(paths []string) []string {
	type numbered struct {
		n    int
		path string
	}
	var pages []numbered
	for _, p := range paths {
		m := rePageNum.FindStringSubmatch(p)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		pages = append(pages, numbered{n: n, path: p})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })
	out := make([]string, 0, len(pages))
	for _, pg := range pages {
		out = append(out, pg.path)
	}
	return out
}

// embeddedPageTexts extracts per-page embedded text. The pdf library panics
// on some malformed files, so the probe is recover-guarded; a failed probe
// just means every page goes to OCR.
func embeddedPageTexts(data []byte) (texts []string, warnings []string) {
	defer func() {
		if r := recover(); r != nil {
			texts = nil
			warnings = append(warnings, fmt.Sprintf("embedded text probe panicked: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, []string{fmt.Sprintf("open pdf: %v", err)}
	}

	n := reader.NumPage()
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		txt, err := page.GetPlainText(nil)
		if err != nil {
			texts = append(texts, "")
			warnings = append(warnings, fmt.Sprintf("page %d: embedded text: %v", i, err))
			continue
		}
		texts = append(texts, txt)
	}
	return texts, warnings
}

// meaningfulText reports whether embedded page text is usable as-is: the
// trimmed length must exceed MinEmbeddedChars and at least one digit must be
// present (an invoice page without digits is almost certainly a scan).
func meaningfulText(s string) bool {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) <= MinEmbeddedChars {
		return false
	}
	return strings.ContainsFunc(trimmed, unicode.IsDigit)
}

func truncateStr(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
