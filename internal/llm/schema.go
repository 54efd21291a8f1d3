package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass it to the model as a structured output constraint and
// also use it locally to validate the response. Item objects deliberately
// stay open: models name item fields inconsistently and the reconciliation
// engine resolves synonyms afterwards.
func BuildInvoiceJSONSchema() map[string]any {
	amountProp := map[string]any{"type": []string{"number", "string", "null"}}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"supplier_name":  map[string]any{"type": "string"},
			"tax_id":         map[string]any{"type": []string{"string", "null"}},
			"invoice_number": map[string]any{"type": "string"},
			"issue_date":     map[string]any{"type": "string"},
			"total_with_tax": amountProp,
			"total_tax":      amountProp,
			"amount_paid":    amountProp,
			"items": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "object"},
			},
		},
		"required": []string{"supplier_name", "invoice_number", "items"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
