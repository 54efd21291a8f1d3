package reconcile

import (
	"encoding/json"

	"github.com/fortcodeproject/OCR/internal/llm"
	"github.com/fortcodeproject/OCR/internal/numtext"
)

// The LLM does not reliably honor the schema's preferred item keys when the
// source document uses Portuguese labels, so each logical field accepts an
// ordered list of alternates. Earlier names win. New synonyms are data here,
// not new branches in the engine.
var (
	descriptionKeys = []string{"description", "descricao", "designacao", "item", "produto", "artigo"}
	unitPriceKeys   = []string{"unit_price", "preco_unitario", "valor_unitario", "preco", "price"}
	lineTotalKeys   = []string{"line_total", "preco_total_item", "valor_total", "total_item", "total", "amount"}
	quantityKeys    = []string{"quantity", "quantidade", "qtd", "qty"}
	taxRateKeys     = []string{"tax_rate_percent", "tax_rate", "taxa_iva_percentagem", "taxa_iva", "taxa", "iva", "vat_rate"}
)

func lookupString(item llm.RawLineItem, keys []string) string {
	for _, k := range keys {
		if s, ok := item[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func lookupNumber(item llm.RawLineItem, keys []string) float64 {
	for _, k := range keys {
		v, ok := item[k]
		if !ok || v == nil {
			continue
		}
		if n := coerceNumber(v); n != 0 {
			return n
		}
	}
	return 0
}

// coerceNumber accepts the value shapes encoding/json produces for untyped
// fields plus raw strings copied from the document ("1.234,56", "21%").
// Absent or unparseable values collapse to 0.
func coerceNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return numtext.ParseAmount(n.String())
		}
		return f
	case string:
		return numtext.ParseAmount(n)
	default:
		return 0
	}
}
