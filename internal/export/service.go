// Package export produces XLSX workbooks from completed extraction jobs.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fortcodeproject/OCR/internal/repository"
)

// Service is a tiny façade over the job store that produces XLSX bytes.
type Service struct {
	jobs   repository.JobRepository
	logger *slog.Logger
}

func NewService(jobs repository.JobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

// ExportInvoicesXLSX returns an XLSX workbook (as bytes) with one row per
// line item across every completed job. Document fields repeat on each of
// the document's item rows; a document whose record has no items still gets
// one row so its totals are not lost.
func (s *Service) ExportInvoicesXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	jobs, err := s.jobs.ListCompleted(ctx)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Invoices"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// drop the default sheet excelize creates
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Invoice Number",
		"Supplier",
		"Tax ID",
		"Issue Date",
		"Item",
		"Unit Price",
		"Quantity",
		"Tax Rate %",
		"Line Total",
		"Total Tax",
		"Total With Tax",
		"Amount Paid",
		"Source File",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	items := 0
	for _, job := range jobs {
		if job.Record == nil {
			continue
		}
		rec := job.Record

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		writeDocumentCells := func() {
			write(1, rec.InvoiceNumber)
			write(2, rec.SupplierName)
			write(3, rec.TaxID)
			write(4, rec.IssueDate)
			write(10, rec.TotalTax)
			write(11, rec.TotalWithTax)
			write(12, rec.AmountPaid)
			write(13, job.Filename)
		}

		if len(rec.Items) == 0 {
			writeDocumentCells()
			row++
			continue
		}
		for _, it := range rec.Items {
			writeDocumentCells()
			write(5, it.Description)
			write(6, it.UnitPrice)
			write(7, it.Quantity)
			write(8, it.TaxRatePercent)
			write(9, it.ComputedLineTotal)
			row++
			items++
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 18) // invoice number
	_ = f.SetColWidth(sheet, "B", "B", 28) // supplier
	_ = f.SetColWidth(sheet, "C", "D", 14) // tax id, date
	_ = f.SetColWidth(sheet, "E", "E", 40) // item
	_ = f.SetColWidth(sheet, "F", "L", 13) // amounts
	_ = f.SetColWidth(sheet, "M", "M", 40) // source

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"jobs", len(jobs),
		"items", items,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
