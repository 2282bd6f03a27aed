package llm

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map describing the candidate shape. All fields are optional at this
// stage; the record validator applies the strict cross-field rules.
func BuildInvoiceJSONSchema() map[string]any {
	partyProps := func(withPhone bool) map[string]any {
		p := map[string]any{
			"nombre":    map[string]any{"type": "string"},
			"rfc":       map[string]any{"type": "string"},
			"direccion": map[string]any{"type": "string"},
		}
		if withPhone {
			p["telefono"] = map[string]any{"type": "string"}
		}
		return map[string]any{
			"type":       "object",
			"properties": p,
		}
	}

	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"descripcion":    map[string]any{"type": "string"},
			"cantidad":       amountProp(),
			"precioUnitario": amountProp(),
			"total":          amountProp(),
		},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"numeroFactura":    map[string]any{"type": "string"},
			"fecha":            dateProp(),
			"fechaVencimiento": dateProp(),
			"proveedor":        partyProps(true),
			"cliente":          partyProps(false),
			"items": map[string]any{
				"type":     "array",
				"items":    item,
				"maxItems": 1000,
			},
			"subtotal":      amountProp(),
			"iva":           amountProp(),
			"total":         amountProp(),
			"moneda":        map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
			"formaPago":     map[string]any{"type": "string"},
			"metodoPago":    map[string]any{"type": "string"},
			"usoCFDI":       map[string]any{"type": "string"},
			"observaciones": map[string]any{"type": "string"},
		},
	}
}

func dateProp() map[string]any {
	return map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`}
}

func amountProp() map[string]any {
	return map[string]any{"type": "number", "minimum": 0.0}
}
