package llm

import "context"

// PartyFields mirrors the nested party object the model is prompted to emit.
type PartyFields struct {
	Name    string `json:"nombre,omitempty"`
	TaxID   string `json:"rfc,omitempty"`
	Address string `json:"direccion,omitempty"`
	Phone   string `json:"telefono,omitempty"`
}

// ItemFields is one line item as emitted by the model.
type ItemFields struct {
	Description string   `json:"descripcion,omitempty"`
	Quantity    *float64 `json:"cantidad,omitempty"`
	UnitPrice   *float64 `json:"precioUnitario,omitempty"`
	Total       *float64 `json:"total,omitempty"`
}

// InvoiceFields is the extracted candidate: the semi-trusted field map
// recovered from model output, before validation. JSON keys are the
// model-facing field names used in the extraction prompts.
type InvoiceFields struct {
	InvoiceNumber string       `json:"numeroFactura,omitempty"`
	IssueDate     string       `json:"fecha,omitempty"` // YYYY-MM-DD
	DueDate       string       `json:"fechaVencimiento,omitempty"`
	Supplier      *PartyFields `json:"proveedor,omitempty"`
	Customer      *PartyFields `json:"cliente,omitempty"`
	Items         []ItemFields `json:"items,omitempty"`
	Subtotal      *float64     `json:"subtotal,omitempty"`
	Tax           *float64     `json:"iva,omitempty"`
	Total         *float64     `json:"total,omitempty"`
	Currency      string       `json:"moneda,omitempty"` // ISO 4217
	PaymentForm   string       `json:"formaPago,omitempty"`
	PaymentMethod string       `json:"metodoPago,omitempty"`
	TaxUseCode    string       `json:"usoCFDI,omitempty"`
	Notes         string       `json:"observaciones,omitempty"`
}

// ModelClient is the interface the extraction orchestrator depends on. Both
// methods return the model's raw textual reply; JSON recovery happens later.
type ModelClient interface {
	// ExtractFromImage sends a single multimodal request carrying the
	// extraction prompt plus the image. One round trip, no polling.
	ExtractFromImage(ctx context.Context, image []byte, mimeType string) (string, error)

	// ExtractFromDocument uploads the file, drives a tool-augmented session
	// to completion and returns the assistant's reply. Uploaded files and
	// ephemeral sessions are released on every exit path.
	ExtractFromDocument(ctx context.Context, file []byte, filename string) (string, error)

	// ModelID identifies the configured model for provenance metadata.
	ModelID() string
}
