// Package ocr runs text recognition over prepared page images with bounded
// parallelism, collecting results by page index so the final document text
// always follows physical page order.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	Languages     string // tesseract language set, default "por"
	Workers       int    // bounded parallelism, default NumCPU
	MinConfidence float64
}

// PageTask is one page of a document: either carries embedded text that is
// used verbatim, or an image path queued for recognition.
type PageTask struct {
	Index     int
	Text      string
	NeedsOCR  bool
	ImagePath string
}

type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

// NewEngine builds a recognition engine. The engine holds no per-request
// state and is safe for concurrent use across overlapping requests.
func NewEngine(cfg Config, runner Runner, logger *slog.Logger) *Engine {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Languages == "" {
		cfg.Languages = "por"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.35
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, runner: runner, logger: logger}
}

// Run recognizes every queued page and returns the per-document text: the
// embedded-or-OCR text of each page concatenated in ascending page order,
// regardless of which worker finished first. Per-page recognition failures
// degrade to empty text with a warning; they never fail the document.
func (e *Engine) Run(ctx context.Context, pages []PageTask) (string, []string, error) {
	texts := make([]string, len(pages))
	warns := make([][]string, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for i, p := range pages {
		if !p.NeedsOCR {
			texts[i] = p.Text
			continue
		}
		g.Go(func() error {
			txt, w, err := e.recognize(gctx, p.ImagePath)
			if err != nil {
				e.logger.Warn("ocr.page.failed", "page", p.Index, "error", err)
				warns[i] = append(w, fmt.Sprintf("page %d: %v", p.Index+1, err))
				return nil
			}
			texts[i] = txt
			warns[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", nil, err
	}

	var flat []string
	for _, w := range warns {
		flat = append(flat, w...)
	}

	var b strings.Builder
	for i, t := range texts {
		if i > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(t)
	}
	return b.String(), flat, nil
}

// recognize preprocesses one page image and runs tesseract over it in TSV
// mode, dropping fragments below the confidence cutoff.
func (e *Engine) recognize(ctx context.Context, imagePath string) (string, []string, error) {
	prepared, err := PreprocessImage(imagePath)
	if err != nil {
		return "", nil, fmt.Errorf("preprocess: %w", err)
	}

	// tesseract <file> stdout -l <lang> tsv
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, prepared, "stdout", "-l", e.cfg.Languages, "tsv")
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return assembleTSV(string(out), e.cfg.MinConfidence), nil, nil
}
