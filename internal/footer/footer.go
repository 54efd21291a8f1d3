// Package footer scans cleaned invoice text for the summary figures printed
// near the bottom of the document (grand total, tax total, net total) and
// returns a best-effort totals snapshot for the reconciliation engine.
package footer

import (
	"log/slog"
	"regexp"

	"github.com/fortcodeproject/OCR/internal/entity"
	"github.com/fortcodeproject/OCR/internal/numtext"
)

// Label patterns in priority order, canonical form (uppercase, accent-free).
// First match wins within each group.
var (
	totalWithTaxLabels = []string{
		`TOTAL COM IVA`,
		`TOTAL A PAGAR`,
		`TOTAL DA FATURA`,
		`TOTAL FATURA`,
		`TOTAL GERAL`,
	}
	totalTaxLabels = []string{
		`TOTAL DE IVA`,
		`TOTAL IVA`,
		`VALOR DO IVA`,
		`VALOR IVA`,
		`IVA TOTAL`,
	}
	netTotalLabels = []string{
		`TOTAL SEM IVA`,
		`TOTAL LIQUIDO`,
		`BASE TRIBUTAVEL`,
		`SUBTOTAL`,
	}
)

// reRateTable matches tabular rate breakdowns: "<base> <rate>% <tax>",
// e.g. "100,00 23% 23,00".
var reRateTable = regexp.MustCompile(`([0-9][0-9.,]*)\s+([0-9]{1,2}(?:[.,][0-9]+)?)\s*%\s+([0-9][0-9.,]*)`)

// reStandaloneRate matches an inline rate mention like "IVA 23%" or "IVA (23%)".
var reStandaloneRate = regexp.MustCompile(`IVA\s*\(?\s*([0-9]{1,2}(?:[.,][0-9]+)?)\s*%`)

type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract runs the prioritized label searches over the document text.
// Every output field stays independently optional: nil means "not found".
func (e *Extractor) Extract(text string) entity.FooterTotals {
	var out entity.FooterTotals
	canon := numtext.Canonicalize(text)

	if v, ok := numtext.FindLabeledNumber(canon, totalWithTaxLabels); ok {
		out.TotalWithTax = ptr(v)
	}
	if v, ok := numtext.FindLabeledNumber(canon, totalTaxLabels); ok {
		out.TotalTax = ptr(v)
	}
	if v, ok := numtext.FindLabeledNumber(canon, netTotalLabels); ok {
		out.NetTotal = ptr(v)
	}

	e.extractRateTable(canon, &out)

	if out.StandardTaxRate == nil {
		if m := reStandaloneRate.FindStringSubmatch(canon); m != nil {
			out.StandardTaxRate = ptr(numtext.ParseAmount(m[1]))
		}
	}

	// Cross-derive the grand total when the footer printed only its parts.
	if out.TotalWithTax == nil && out.NetTotal != nil && out.TotalTax != nil {
		out.TotalWithTax = ptr(numtext.Round2(*out.NetTotal + *out.TotalTax))
	}

	e.logger.Debug("footer.extract.done",
		"total_with_tax", deref(out.TotalWithTax),
		"total_tax", deref(out.TotalTax),
		"net_total", deref(out.NetTotal),
		"standard_rate", deref(out.StandardTaxRate),
	)
	return out
}

// extractRateTable fills gaps from a "base rate% tax" breakdown line. The
// match is only accepted when both base and tax amounts are positive.
func (e *Extractor) extractRateTable(canon string, out *entity.FooterTotals) {
	m := reRateTable.FindStringSubmatch(canon)
	if m == nil {
		return
	}
	base := numtext.ParseAmount(m[1])
	rate := numtext.ParseAmount(m[2])
	tax := numtext.ParseAmount(m[3])
	if base <= 0 || tax <= 0 {
		return
	}

	out.StandardTaxRate = ptr(rate)
	if out.NetTotal == nil {
		out.NetTotal = ptr(base)
	}
	if out.TotalTax == nil {
		out.TotalTax = ptr(tax)
	}
}

func ptr(v float64) *float64 { return &v }

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
