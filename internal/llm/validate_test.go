package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceSchemaCompiledOnce(t *testing.T) {
	assert.Same(t, InvoiceSchema(), InvoiceSchema())
}

func TestValidateAgainstSchema(t *testing.T) {
	schema := InvoiceSchema()

	require.NoError(t, ValidateAgainstSchema(schema,
		[]byte(`{"numeroFactura": "A-1", "fecha": "2026-07-15", "subtotal": 100, "iva": 16, "total": 116, "moneda": "MXN"}`)))

	for name, payload := range map[string]string{
		"bad date format":  `{"fecha": "15/07/2026"}`,
		"negative amount":  `{"total": -1}`,
		"short currency":   `{"moneda": "MX"}`,
		"items not array":  `{"items": {}}`,
		"number as string": `{"subtotal": "100"}`,
	} {
		assert.Error(t, ValidateAgainstSchema(schema, []byte(payload)), name)
	}
}
