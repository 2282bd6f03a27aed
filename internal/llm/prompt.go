package llm

import "strings"

// jsonShape is the exact structure both prompts ask the model to emit. Field
// names match the InvoiceFields JSON tags.
const jsonShape = `{
  "numeroFactura": "string",
  "fecha": "YYYY-MM-DD",
  "fechaVencimiento": "YYYY-MM-DD",
  "proveedor": {"nombre": "string", "rfc": "string", "direccion": "string", "telefono": "string"},
  "cliente": {"nombre": "string", "rfc": "string", "direccion": "string"},
  "items": [{"descripcion": "string", "cantidad": number, "precioUnitario": number, "total": number}],
  "subtotal": number,
  "iva": number,
  "total": number,
  "moneda": "string",
  "formaPago": "string",
  "metodoPago": "string",
  "usoCFDI": "string",
  "observaciones": "string"
}`

// BuildVisionPrompt composes the single-shot instruction sent alongside an
// invoice image.
func BuildVisionPrompt() string {
	parts := []string{
		"Extract ALL the data from this invoice and return it as JSON with exactly this structure:",
		jsonShape,
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Currency must be a 3-letter ISO 4217 code (MXN, USD, ...).",
		"Never output null. If a field is not visible on the invoice, omit it.",
		"Return ONLY the JSON, with no additional text.",
	}
	return strings.Join(parts, "\n\n")
}

// BuildAssistantInstructions composes the system instructions for the
// document-understanding session.
func BuildAssistantInstructions() string {
	parts := []string{
		"You are an expert at extracting structured data from invoices.",
		"Extract every field you can find and return it as a JSON object with this structure:",
		jsonShape,
		"Dates use YYYY-MM-DD. Amounts are plain numbers without currency symbols.",
		"'rfc' holds the party's tax identifier (RFC, NIT or equivalent).",
		"Never output null. If a field is not present, omit it.",
		"Return ONLY the JSON, with no additional text.",
	}
	return strings.Join(parts, "\n\n")
}

// BuildAssistantUserMessage is the single user turn that kicks off the run.
func BuildAssistantUserMessage() string {
	return "Extract all the data from this invoice and return it as JSON."
}
