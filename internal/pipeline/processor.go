// Package pipeline coordinates the per-document stages: load, OCR, cleanup,
// footer scan, structured extraction and reconciliation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fortcodeproject/OCR/internal/common"
	"github.com/fortcodeproject/OCR/internal/document"
	"github.com/fortcodeproject/OCR/internal/entity"
	"github.com/fortcodeproject/OCR/internal/footer"
	"github.com/fortcodeproject/OCR/internal/llm"
	"github.com/fortcodeproject/OCR/internal/ocr"
	"github.com/fortcodeproject/OCR/internal/reconcile"
)

// Result is what a completed request hands back to the caller: the final
// record, the cleaned OCR text it was built from, and everything the
// pipeline tolerated along the way.
type Result struct {
	RequestID string                `json:"request_id"`
	Record    entity.DocumentRecord `json:"record"`
	OCRText   string                `json:"ocr_text"`
	Warnings  []string              `json:"warnings"`
	Anomalies []string              `json:"anomalies"`
	Degraded  bool                  `json:"degraded"`
}

// Processor owns one immutable set of stage instances and is safe for
// concurrent use across overlapping requests.
type Processor struct {
	Logger     *slog.Logger
	Loader     *document.Loader
	OCR        *ocr.Engine
	Footer     *footer.Extractor
	Fields     llm.FieldExtractor
	Reconciler *reconcile.Engine
	MaxChars   int
}

func NewProcessor(logger *slog.Logger, loader *document.Loader, engine *ocr.Engine, ft *footer.Extractor, fields llm.FieldExtractor, rec *reconcile.Engine, maxChars int) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Logger:     logger,
		Loader:     loader,
		OCR:        engine,
		Footer:     ft,
		Fields:     fields,
		Reconciler: rec,
		MaxChars:   maxChars,
	}
}

// Process runs the full pipeline for one uploaded document. Stage failures
// up to and including structured extraction are fatal for the request;
// reconciliation is absorbed into the result.
func (p *Processor) Process(ctx context.Context, data []byte, filename, contentType string) (*Result, error) {
	rid := uuid.New().String()
	start := time.Now()
	log := p.Logger.With("req_id", rid, "filename", filename)

	log.Info("pipeline.start", "bytes", len(data), "content_type", contentType)

	src, err := p.Loader.Load(ctx, data, filename, contentType)
	if err != nil {
		log.Error("pipeline.load.failed", "err", err)
		return nil, err
	}
	defer src.Close()

	tasks := make([]ocr.PageTask, len(src.Pages))
	for i, pg := range src.Pages {
		tasks[i] = ocr.PageTask{
			Index:     pg.Index,
			Text:      pg.Text,
			NeedsOCR:  pg.NeedsOCR,
			ImagePath: pg.ImagePath,
		}
	}
	text, ocrWarnings, err := p.OCR.Run(ctx, tasks)
	if err != nil {
		log.Error("pipeline.ocr.failed", "err", err)
		return nil, err
	}
	warnings := append(append([]string{}, src.Warnings...), ocrWarnings...)

	text = ocr.Normalize(text)
	if strings.TrimSpace(text) == "" {
		log.Error("pipeline.ocr.empty", "pages", len(src.Pages))
		return nil, common.ErrNoTextExtracted
	}
	log.Info("pipeline.ocr.ok", "pages", len(src.Pages), "text_len", len(text), "warnings", len(warnings))

	totals := p.Footer.Extract(text)

	raw, _, err := p.Fields.ExtractInvoice(ctx, llm.ExtractRequest{OCRText: text, MaxChars: p.MaxChars})
	if err != nil {
		log.Error("pipeline.extract.failed", "err", err)
		return nil, fmt.Errorf("%w: %v", common.ErrStructuredExtraction, err)
	}
	log.Info("pipeline.extract.ok", "supplier", raw.SupplierName, "items", len(raw.Items))

	recon := p.Reconciler.Reconcile(raw, &totals)
	if recon.Degraded {
		log.Warn("pipeline.reconcile.degraded", "anomalies", recon.Anomalies)
	}

	log.Info("pipeline.done",
		"invoice_number", recon.Record.InvoiceNumber,
		"total_with_tax", recon.Record.TotalWithTax,
		"degraded", recon.Degraded,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &Result{
		RequestID: rid,
		Record:    recon.Record,
		OCRText:   text,
		Warnings:  warnings,
		Anomalies: recon.Anomalies,
		Degraded:  recon.Degraded,
	}, nil
}
