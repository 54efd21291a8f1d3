// Package reconcile turns the raw LLM output and the footer totals into a
// single internally consistent invoice record. It is strictly best-effort:
// whatever goes wrong inside the heuristics, the caller still gets a record.
package reconcile

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/fortcodeproject/OCR/internal/common"
	"github.com/fortcodeproject/OCR/internal/entity"
	"github.com/fortcodeproject/OCR/internal/llm"
	"github.com/fortcodeproject/OCR/internal/numtext"
)

const (
	defaultItemTolerance  = 0.01
	defaultTotalTolerance = 0.5
)

// Result carries the reconciled record together with every anomaly the
// engine absorbed on the way. Degraded means at least one heuristic panicked
// and the record is the last consistent snapshot rather than a full pass.
type Result struct {
	Record    entity.DocumentRecord
	Anomalies []string
	Degraded  bool
}

type Engine struct {
	itemTol  float64
	totalTol float64
	log      *slog.Logger
}

func NewEngine(cfg common.ReconcileConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	itemTol := cfg.ItemTolerance
	if itemTol <= 0 {
		itemTol = defaultItemTolerance
	}
	totalTol := cfg.TotalTolerance
	if totalTol <= 0 {
		totalTol = defaultTotalTolerance
	}
	return &Engine{itemTol: itemTol, totalTol: totalTol, log: logger.With("component", "reconcile")}
}

// Reconcile normalizes the raw invoice and runs the full refinement pass.
// It never returns an error.
func (e *Engine) Reconcile(raw llm.RawInvoice, footer *entity.FooterTotals) Result {
	rec := e.normalize(raw)
	return e.ReconcileRecord(rec, footer)
}

// normalize maps heterogeneous raw item keys onto the canonical record
// shape and coerces every numeric field through the tolerant amount parser.
func (e *Engine) normalize(raw llm.RawInvoice) entity.DocumentRecord {
	rec := entity.DocumentRecord{
		SupplierName:  raw.SupplierName,
		TaxID:         raw.TaxID,
		InvoiceNumber: raw.InvoiceNumber,
		IssueDate:     raw.IssueDate,
		TotalWithTax:  coerceNumber(raw.TotalWithTax),
		TotalTax:      coerceNumber(raw.TotalTax),
		AmountPaid:    coerceNumber(raw.AmountPaid),
		Items:         make([]entity.LineItem, 0, len(raw.Items)),
	}
	for _, ri := range raw.Items {
		item := entity.LineItem{
			Description:    lookupString(ri, descriptionKeys),
			UnitPrice:      lookupNumber(ri, unitPriceKeys),
			Quantity:       lookupNumber(ri, quantityKeys),
			TaxRatePercent: lookupNumber(ri, taxRateKeys),
		}
		if lt := lookupNumber(ri, lineTotalKeys); lt != 0 {
			v := lt
			item.ExtractedLineTotal = &v
		}
		rec.Items = append(rec.Items, item)
	}
	return rec
}

// ReconcileRecord runs the ordered refinement steps over an already
// normalized record. Running it again over its own output is a no-op.
func (e *Engine) ReconcileRecord(rec entity.DocumentRecord, footer *entity.FooterTotals) (res Result) {
	// Each step only refines prior signal, so on panic the last snapshot is
	// still a valid, if less reconciled, record.
	best := cloneRecord(rec)
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("reconcile.panic_absorbed", "panic", fmt.Sprint(r))
			res = Result{
				Record:    best,
				Anomalies: append(res.Anomalies, fmt.Sprintf("reconciliation aborted mid-pass: %v", r)),
				Degraded:  true,
			}
		}
	}()

	docRate := 0.0
	if footer != nil && footer.StandardTaxRate != nil {
		docRate = *footer.StandardTaxRate
	}

	for i := range rec.Items {
		e.inferUnitPrice(&rec.Items[i])
		if rec.Items[i].TaxRatePercent == 0 && docRate > 0 {
			rec.Items[i].TaxRatePercent = docRate
		}
		e.stripIncludedTax(&rec.Items[i])
	}
	best = cloneRecord(rec)

	e.detectDocumentTaxInclusive(&rec, footer)
	if docRate > 0 {
		for i := range rec.Items {
			if rec.Items[i].TaxRatePercent == 0 {
				rec.Items[i].TaxRatePercent = docRate
			}
		}
	}
	best = cloneRecord(rec)

	_, totalTax, totalWithTax := aggregate(rec.Items)
	rec.TotalTax = totalTax
	rec.TotalWithTax = totalWithTax
	applyFooterPrecedence(&rec, footer)

	for i := range rec.Items {
		rec.Items[i].UnitPrice = numtext.Round2(rec.Items[i].UnitPrice)
		rec.Items[i].TaxRatePercent = numtext.Round2(rec.Items[i].TaxRatePercent)
		rec.Items[i].ComputedLineTotal = numtext.Round2(rec.Items[i].UnitPrice * rec.Items[i].Quantity)
	}
	rec.TotalWithTax = numtext.Round2(rec.TotalWithTax)
	rec.TotalTax = numtext.Round2(rec.TotalTax)
	rec.AmountPaid = numtext.Round2(rec.AmountPaid)

	return Result{Record: rec}
}

// inferUnitPrice fills a missing unit price from the extracted line total
// when the quantity allows it.
func (e *Engine) inferUnitPrice(item *entity.LineItem) {
	if item.UnitPrice != 0 {
		return
	}
	if item.ExtractedLineTotal == nil || item.Quantity <= 0 {
		return
	}
	item.UnitPrice = numtext.Round2(*item.ExtractedLineTotal / item.Quantity)
}

// stripIncludedTax converts a unit price to its tax-exclusive value when the
// price times quantity lands on the extracted line total, which means the
// document printed gross prices.
func (e *Engine) stripIncludedTax(item *entity.LineItem) {
	if item.ExtractedLineTotal == nil || item.TaxRatePercent <= 0 || item.UnitPrice <= 0 {
		return
	}
	if math.Abs(item.UnitPrice*item.Quantity-*item.ExtractedLineTotal) > e.itemTol {
		return
	}
	excl := numtext.Round2(item.UnitPrice / (1 + item.TaxRatePercent/100))
	e.log.Debug("reconcile.tax_inclusive_item",
		"description", item.Description,
		"unit_price_incl", item.UnitPrice,
		"unit_price_excl", excl,
		"rate", item.TaxRatePercent,
	)
	item.UnitPrice = excl
}

// detectDocumentTaxInclusive tests the hypothesis that every unit price is
// gross when the computed grand total overshoots the footer total and all
// items share one tax rate. The conversion is committed only when the
// candidate total is strictly closer to the footer value.
func (e *Engine) detectDocumentTaxInclusive(rec *entity.DocumentRecord, footer *entity.FooterTotals) {
	if footer == nil || footer.TotalWithTax == nil || len(rec.Items) == 0 {
		return
	}
	_, _, current := aggregate(rec.Items)
	if math.Abs(current-*footer.TotalWithTax) <= e.totalTol {
		return
	}
	rate := rec.Items[0].TaxRatePercent
	if rate <= 0 {
		return
	}
	for _, it := range rec.Items[1:] {
		if it.TaxRatePercent != rate {
			return
		}
	}
	candidate := make([]entity.LineItem, len(rec.Items))
	copy(candidate, rec.Items)
	for i := range candidate {
		candidate[i].UnitPrice = numtext.Round2(candidate[i].UnitPrice / (1 + rate/100))
	}
	_, _, converted := aggregate(candidate)
	if math.Abs(converted-*footer.TotalWithTax) >= math.Abs(current-*footer.TotalWithTax) {
		return
	}
	e.log.Info("reconcile.tax_inclusive_document",
		"rate", rate,
		"total_before", current,
		"total_after", converted,
		"footer_total", *footer.TotalWithTax,
	)
	rec.Items = candidate
}

// aggregate recomputes subtotal, tax and grand total strictly from item
// state. Line totals are rounded before summing so the parts always add up
// to the printed whole.
func aggregate(items []entity.LineItem) (subtotal, totalTax, totalWithTax float64) {
	var taxSum float64
	for _, it := range items {
		line := numtext.Round2(it.UnitPrice * it.Quantity)
		subtotal += line
		taxSum += line * it.TaxRatePercent / 100
	}
	subtotal = numtext.Round2(subtotal)
	totalTax = numtext.Round2(taxSum)
	totalWithTax = numtext.Round2(subtotal + totalTax)
	return subtotal, totalTax, totalWithTax
}

// applyFooterPrecedence lets printed footer amounts override computed ones.
// The footer is OCR of the document's own arithmetic, which beats our
// reconstruction whenever both exist.
func applyFooterPrecedence(rec *entity.DocumentRecord, footer *entity.FooterTotals) {
	if footer != nil {
		if footer.TotalTax != nil && *footer.TotalTax > 0 {
			rec.TotalTax = *footer.TotalTax
		}
		switch {
		case footer.TotalWithTax != nil && *footer.TotalWithTax > 0:
			rec.TotalWithTax = *footer.TotalWithTax
		case footer.NetTotal != nil && rec.TotalTax > 0:
			rec.TotalWithTax = numtext.Round2(*footer.NetTotal + rec.TotalTax)
		}
	}
	if rec.AmountPaid <= 0 {
		if footer != nil && footer.TotalWithTax != nil && *footer.TotalWithTax > 0 {
			rec.AmountPaid = *footer.TotalWithTax
		} else {
			rec.AmountPaid = rec.TotalWithTax
		}
	}
}

func cloneRecord(rec entity.DocumentRecord) entity.DocumentRecord {
	out := rec
	out.Items = make([]entity.LineItem, len(rec.Items))
	copy(out.Items, rec.Items)
	for i := range out.Items {
		if rec.Items[i].ExtractedLineTotal != nil {
			v := *rec.Items[i].ExtractedLineTotal
			out.Items[i].ExtractedLineTotal = &v
		}
	}
	return out
}
