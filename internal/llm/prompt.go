package llm

import "strings"

// BuildSystemPrompt composes the extraction instructions: target schema,
// strict-but-practical rules, and output hygiene.
func BuildSystemPrompt() string {
	parts := []string{
		"You are an invoice parser for Portuguese supplier invoices. Return ONLY JSON that matches the provided JSON Schema.",
		"Never invent values: use null or 0 for fields you cannot read with confidence.",
		"All monetary amounts use exactly 2 decimals.",
		"Dates use day-month-year (DD-MM-YYYY).",
		"For each line item include description, unit price, quantity and tax rate percent.",
		"If a line shows only its total, derive the unit price as line total divided by quantity.",
		"Never aggregate lines and never drop items that look like duplicates; keep every line in document order.",
		"Never output explanatory text around the JSON.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the cleaned OCR text, prefix-cut to the request
// budget. The cut is silent and deterministic: request cost stays bounded
// and the invoice header/items, which come first, survive.
func BuildUserPrompt(req ExtractRequest) string {
	text := req.OCRText
	if req.MaxChars > 0 && len(text) > req.MaxChars {
		text = text[:req.MaxChars]
	}

	var b strings.Builder
	b.WriteString("Invoice text extracted by OCR:\n\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn ONLY JSON that matches the provided schema.")
	return b.String()
}
