package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var invoiceSchema = sync.OnceValue(func() *jsonschema.Schema {
	s, err := CompileSchema(BuildInvoiceJSONSchema())
	if err != nil {
		// The schema source is a package constant; a compile failure is a
		// programming error, not a runtime condition.
		panic(fmt.Sprintf("compile invoice schema: %v", err))
	}
	return s
})

// InvoiceSchema returns the compiled candidate schema, built once and reused
// across extractions.
func InvoiceSchema() *jsonschema.Schema { return invoiceSchema() }

// CompileSchema compiles a generic schema map into a reusable validator.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("schema.json")
}

// ValidateAgainstSchema validates raw JSON bytes against a compiled schema.
func ValidateAgainstSchema(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
