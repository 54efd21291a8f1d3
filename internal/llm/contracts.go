package llm

import "context"

// RawLineItem is one item exactly as the model emitted it. Field names vary
// between runs ("unit_price" vs "preco_unitario", string vs number values),
// so normalization is deferred to the reconciliation engine.
type RawLineItem map[string]any

// RawInvoice is the model's structured answer before reconciliation.
// Monetary header fields stay untyped for the same reason items do.
type RawInvoice struct {
	SupplierName  string        `json:"supplier_name"`
	TaxID         string        `json:"tax_id"`
	InvoiceNumber string        `json:"invoice_number"`
	IssueDate     string        `json:"issue_date"` // day-month-year
	TotalWithTax  any           `json:"total_with_tax"`
	TotalTax      any           `json:"total_tax"`
	AmountPaid    any           `json:"amount_paid"`
	Items         []RawLineItem `json:"items"`
}

type ExtractRequest struct {
	OCRText  string
	MaxChars int // prompt budget; longer text is prefix-cut
}

// FieldExtractor is the interface the pipeline depends on: one blocking
// round-trip per document, no in-band retry.
type FieldExtractor interface {
	ExtractInvoice(ctx context.Context, req ExtractRequest) (RawInvoice, []byte /*rawJSON*/, error)
}
