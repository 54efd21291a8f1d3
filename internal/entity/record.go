package entity

// LineItem is one invoice line in document order.
//
// ComputedLineTotal is always recomputed as UnitPrice*Quantity rounded to
// 2 decimals; it is never an independent input. ExtractedLineTotal carries
// the as-seen total for the line before unit-price inference, when the
// source exposed one.
type LineItem struct {
	Description        string   `json:"description"`
	UnitPrice          float64  `json:"unit_price"`
	Quantity           float64  `json:"quantity"`
	TaxRatePercent     float64  `json:"tax_rate_percent"`
	ExtractedLineTotal *float64 `json:"extracted_line_total,omitempty"`
	ComputedLineTotal  float64  `json:"computed_line_total"`
}

// DocumentRecord is the final, reconciled structured record for one invoice.
// Every key is always emitted (zero/empty defaults, never omitted) because
// the record is the sole input contract of the downstream form automation.
type DocumentRecord struct {
	SupplierName  string     `json:"supplier_name"`
	TaxID         string     `json:"tax_id"`
	InvoiceNumber string     `json:"invoice_number"`
	IssueDate     string     `json:"issue_date"` // day-month-year, e.g. "02-01-2025"
	TotalWithTax  float64    `json:"total_with_tax"`
	TotalTax      float64    `json:"total_tax"`
	AmountPaid    float64    `json:"amount_paid"`
	Items         []LineItem `json:"items"`
}

// FooterTotals is the best-effort totals snapshot scraped from the document
// text. Each field is independently optional; nil means "not found", never
// zero. It is transient: produced once per request and consumed by the
// reconciliation engine.
type FooterTotals struct {
	TotalWithTax    *float64
	TotalTax        *float64
	NetTotal        *float64
	StandardTaxRate *float64 // percent
}
